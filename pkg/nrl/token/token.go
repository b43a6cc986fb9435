package token

import "fmt"

// Kind classifies a lexical unit. The evaluator never branches on kinds;
// they exist so diagnostics can describe what the offending text was.
type Kind string

const (
	KindIdentifier Kind = "identifier"
	KindNumber     Kind = "number"
	KindKeyword    Kind = "keyword"
	KindOperator   Kind = "operator"
	KindString     Kind = "string"
)

// Token is an immutable lexical unit produced by an external lexer.
// Every AST node carries the tokens it was built from, purely as
// provenance for error reporting. Tokens are value-comparable.
type Token struct {
	Kind     Kind   // Lexical class of the token
	Text     string // Literal source text
	Line     int    // Line number (1-based)
	BeginCol int    // First column of the token (1-based)
	EndCol   int    // Column just past the token
}

// New returns a token with the given kind, text and position.
func New(kind Kind, text string, line, beginCol int) Token {
	return Token{
		Kind:     kind,
		Text:     text,
		Line:     line,
		BeginCol: beginCol,
		EndCol:   beginCol + len(text),
	}
}

// Location returns the source location of the token's first character.
func (t Token) Location() Location {
	return Location{Line: t.Line, Column: t.BeginCol}
}

// String returns a compact debug representation.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.BeginCol)
}

// Location identifies a position in the original rule source.
// It enables precise error reporting with file, line and column information.
type Location struct {
	File   string // Path to the rule source file (may be empty)
	Line   int    // Line number (1-based)
	Column int    // Column number (1-based)
}

// String returns a human-readable representation of the location.
// Format: "file:line:column".
func (l Location) String() string {
	if l.File == "" {
		if l.Line == 0 {
			return "<unknown>"
		}
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid returns true if the location carries usable line information.
func (l Location) IsValid() bool {
	return l.Line > 0
}

// Span is the contiguous source region covered by one or more tokens.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Join computes the smallest span covering all given tokens.
// Tokens with a zero line (synthetic tokens) are ignored.
func Join(tokens []Token) Span {
	var s Span
	for _, t := range tokens {
		if t.Line == 0 {
			continue
		}
		if s.StartLine == 0 || t.Line < s.StartLine || (t.Line == s.StartLine && t.BeginCol < s.StartCol) {
			s.StartLine, s.StartCol = t.Line, t.BeginCol
		}
		if t.Line > s.EndLine || (t.Line == s.EndLine && t.EndCol > s.EndCol) {
			s.EndLine, s.EndCol = t.Line, t.EndCol
		}
	}
	return s
}

// String returns "line:col-line:col", or "<synthetic>" for an empty span.
func (s Span) String() string {
	if s.StartLine == 0 {
		return "<synthetic>"
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}
