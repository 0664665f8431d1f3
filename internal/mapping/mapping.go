// Package mapping parses the JSON mapping specification that drives CSV
// generation. Each top-level key names a mapping group ("sheet" in the
// legacy Excel workflow) holding an ordered list of column rules.
//
// Default values arrive in three shapes: a plain scalar, the legacy literal
// "SEQUENCE", or a structured {type, value} object. The shape is decided
// once here, into a tagged DefaultSpec, so the resolver never re-inspects
// raw JSON.
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultKind tags a DefaultSpec variant.
type DefaultKind int

const (
	// KindConstant repeats a literal value for every row.
	KindConstant DefaultKind = iota
	// KindSequence substitutes time tokens (YYYY MM DD HH MI SS) into a
	// pattern at resolution time.
	KindSequence
	// KindScalarQuery evaluates an expression against the scalar query
	// collaborator and broadcasts the single result.
	KindScalarQuery
	// KindLegacy is the bare string "SEQUENCE": a fixed compact timestamp.
	KindLegacy
	// KindUnknown is an unrecognized structured type; the raw declared
	// value passes through unchanged.
	KindUnknown
)

// DefaultSpec describes how to populate a column that has no usable source
// mapping. Exactly one kind is active; Value is the constant literal,
// sequence pattern, query expression, or raw pass-through text depending on
// the kind.
type DefaultSpec struct {
	Kind  DefaultKind
	Value string
}

// Rule maps one output column from a source column, a default, or nothing.
type Rule struct {
	SourceColumn string
	TargetColumn string
	Default      *DefaultSpec

	// HasSource and HasTarget record whether the keys were present in the
	// document at all, distinct from being present but empty.
	HasSource bool
	HasTarget bool
}

// Group is a named, ordered set of column rules producing one output table.
type Group struct {
	Name  string
	Rules []Rule
}

// Spec is the full mapping document, groups in declaration order.
type Spec struct {
	Groups []Group
}

// FormatError is a fatal input error: the mapping document is not valid
// JSON or not shaped as group name -> rule list.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mapping document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("mapping document: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

type ruleDoc struct {
	Source  *string         `json:"Source Column"`
	Target  *string         `json:"Control Column"`
	Default json.RawMessage `json:"Default Value"`
}

// Parse decodes a mapping document. Group declaration order is preserved,
// which keeps archive assembly deterministic.
func Parse(data []byte) (*Spec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &FormatError{Reason: "invalid JSON", Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, &FormatError{Reason: "top level must be an object of group name to rule list"}
	}

	spec := &Spec{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &FormatError{Reason: "invalid JSON", Err: err}
		}
		name := keyTok.(string)

		var docs []ruleDoc
		if err := dec.Decode(&docs); err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("group %q must be a list of rule objects", name), Err: err}
		}

		group := Group{Name: name}
		for _, d := range docs {
			rule := Rule{
				HasSource: d.Source != nil,
				HasTarget: d.Target != nil,
			}
			if d.Source != nil {
				rule.SourceColumn = *d.Source
			}
			if d.Target != nil {
				rule.TargetColumn = *d.Target
			}
			rule.Default = classifyDefault(d.Default)
			group.Rules = append(group.Rules, rule)
		}
		spec.Groups = append(spec.Groups, group)
	}

	if _, err := dec.Token(); err != nil {
		return nil, &FormatError{Reason: "invalid JSON", Err: err}
	}
	return spec, nil
}

// classifyDefault decides the tagged variant for a raw "Default Value".
// A missing or null value means no default. A single bad shape must not
// abort the batch, so anything unrecognized becomes a raw pass-through.
func classifyDefault(raw json.RawMessage) *DefaultSpec {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return &DefaultSpec{Kind: KindUnknown, Value: string(raw)}
		}
		if strings.EqualFold(s, "SEQUENCE") {
			return &DefaultSpec{Kind: KindLegacy}
		}
		return &DefaultSpec{Kind: KindConstant, Value: s}
	case '{':
		var obj struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return &DefaultSpec{Kind: KindUnknown, Value: string(raw)}
		}
		switch strings.ToLower(obj.Type) {
		case "sql":
			return &DefaultSpec{Kind: KindScalarQuery, Value: obj.Value}
		case "sequence":
			pattern := obj.Value
			if pattern == "" {
				pattern = "YYYYMMDDHHMISS"
			}
			return &DefaultSpec{Kind: KindSequence, Value: pattern}
		case "constant":
			return &DefaultSpec{Kind: KindConstant, Value: obj.Value}
		default:
			return &DefaultSpec{Kind: KindUnknown, Value: string(raw)}
		}
	default:
		// Bare number or boolean: treat its literal text as a constant.
		return &DefaultSpec{Kind: KindConstant, Value: string(raw)}
	}
}
