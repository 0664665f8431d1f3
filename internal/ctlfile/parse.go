// Package ctlfile extracts field lists from SQL*Loader-style control files.
// Only field identity is recovered; type specifiers, conditional clauses and
// per-field transformation expressions are not interpreted.
package ctlfile

import (
	"regexp"
	"strings"
)

// Sentinel terminates every non-empty field list. Downstream load templates
// expect it as the last column marker.
const Sentinel = "END"

var fieldNameRe = regexp.MustCompile(`^,?([A-Z0-9_]+)`)

// ParseFields extracts the ordered field names from control-file text.
//
// The field clause list is the parenthesized body following the first
// "INTO TABLE" marker. Lines annotated with CONSTANT, EXPRESSION or FILLER
// describe system-derived values and are skipped, as is a bare END line.
// Duplicate field names are preserved in order. When at least one field was
// captured, the sentinel "END" is appended.
func ParseFields(text string) ([]string, error) {
	intoIdx := strings.Index(text, "INTO TABLE")
	if intoIdx == -1 {
		return nil, &GrammarError{Kind: MissingAnchor}
	}

	openRel := strings.IndexByte(text[intoIdx:], '(')
	if openRel == -1 {
		return nil, &GrammarError{Kind: MissingOpenParen}
	}
	openIdx := intoIdx + openRel

	// Single forward pass with a depth counter. Every literal paren is
	// structural, including ones inside comments or quoted strings; that
	// matches the legacy extractor and is a known limitation.
	depth := 1
	closeIdx := -1
	for i := openIdx + 1; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		}
		if closeIdx != -1 {
			break
		}
	}
	if closeIdx == -1 {
		return nil, &GrammarError{Kind: UnbalancedParens}
	}

	section := text[openIdx+1 : closeIdx]

	var fields []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.ToUpper(line)
		if strings.Contains(line, "CONSTANT") ||
			strings.Contains(line, "EXPRESSION") ||
			strings.Contains(line, "FILLER") ||
			strings.TrimSpace(line) == Sentinel {
			continue
		}
		m := fieldNameRe.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil {
			fields = append(fields, m[1])
		}
	}

	if len(fields) > 0 {
		fields = append(fields, Sentinel)
	}
	return fields, nil
}

// MergeAdditionalFields appends extra field names to a parsed field list,
// skipping names already present and preserving first-seen order. The parsed
// list is not reordered; extras land after the sentinel, matching the legacy
// metadata report.
func MergeAdditionalFields(fields, extra []string) []string {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f] = true
	}
	out := fields
	for _, f := range extra {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
