package ctlfile

// GrammarErrorKind identifies which structural anchor was missing or
// malformed in a control file.
type GrammarErrorKind int

const (
	// MissingAnchor means the "INTO TABLE" marker was not found.
	MissingAnchor GrammarErrorKind = iota
	// MissingOpenParen means no "(" follows the INTO TABLE marker.
	MissingOpenParen
	// UnbalancedParens means end of text was reached before the field
	// clause list's closing paren.
	UnbalancedParens
)

// GrammarError is a fatal parse failure. It is never defaulted away; callers
// must reject the input.
type GrammarError struct {
	Kind GrammarErrorKind
}

func (e *GrammarError) Error() string {
	switch e.Kind {
	case MissingAnchor:
		return "control file: could not find 'INTO TABLE'"
	case MissingOpenParen:
		return "control file: could not find opening parenthesis after INTO TABLE"
	case UnbalancedParens:
		return "control file: could not find matching closing parenthesis"
	default:
		return "control file: grammar error"
	}
}
