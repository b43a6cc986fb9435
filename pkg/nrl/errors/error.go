package errors

import (
	"fmt"
	"strings"

	"normative-hq/themis/pkg/nrl/token"
)

// Kind categorizes an NRL error. Each kind has a distinct propagation
// policy: construction errors abort building a program before any session
// starts; scope, type and protocol errors abort only the current
// evaluation session; resolution errors abort the resolution pass.
type Kind string

const (
	// KindConstruction marks an AST node invariant violated at build time.
	// Raised by node constructors, never during evaluation.
	KindConstruction Kind = "construction"

	// KindScope marks a resolved-name address that is out of range or
	// whose stored symbol does not match the queried symbol. Indicates a
	// desynchronization between the resolution pass and the evaluator.
	KindScope Kind = "scope"

	// KindType marks a value of the wrong shape reaching an operator.
	KindType Kind = "type"

	// KindProtocol marks host misuse of the event protocol, such as a
	// continuation invoked twice or resumed with an ill-typed value.
	KindProtocol Kind = "protocol"

	// KindResolution marks an identifier that could not be resolved to
	// an address, or a reference to an undefined type or rule.
	KindResolution Kind = "resolution"
)

// Error is a rich NRL error with kind, location and an optional
// suggested fix. All errors surfaced by the core packages are of this
// type so hosts can branch on Kind.
type Error struct {
	Kind       Kind           // Category of error
	Message    string         // Error message
	Location   token.Location // Source location, if known
	Suggestion string         // Suggested fix (optional)
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At creates an error of the given kind carrying a source location.
func At(kind Kind, loc token.Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// WithSuggestion returns the error with a suggested fix attached.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Error implements the error interface. It returns a formatted message
// with kind, location and suggestion.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Message))
	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf("\n  --> %s", e.Location.String()))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n  = suggestion: %s", e.Suggestion))
	}
	return sb.String()
}

// Is reports whether target is an *Error of the same kind, which lets
// callers use errors.Is with a bare kind sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// List accumulates errors so a pass can report every problem it finds
// instead of stopping at the first one.
type List struct {
	Errors []*Error
}

// NewList creates an empty error list.
func NewList() *List {
	return &List{Errors: make([]*Error, 0)}
}

// Add appends an error to the list.
func (l *List) Add(err *Error) {
	l.Errors = append(l.Errors, err)
}

// Addf creates and appends a new error with the given kind and location.
func (l *List) Addf(kind Kind, loc token.Location, format string, args ...any) {
	l.Add(At(kind, loc, format, args...))
}

// HasErrors returns true if the list contains any errors.
func (l *List) HasErrors() bool {
	return len(l.Errors) > 0
}

// Count returns the number of accumulated errors.
func (l *List) Count() int {
	return len(l.Errors)
}

// Error implements the error interface, formatting all accumulated errors.
func (l *List) Error() string {
	if !l.HasErrors() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d error(s):\n", l.Count()))
	for i, err := range l.Errors {
		sb.WriteString(fmt.Sprintf("\nerror %d:\n%s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ToError returns nil if the list is empty, otherwise the list itself.
func (l *List) ToError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// ByKind returns all accumulated errors of the given kind.
func (l *List) ByKind(kind Kind) []*Error {
	var result []*Error
	for _, err := range l.Errors {
		if err.Kind == kind {
			result = append(result, err)
		}
	}
	return result
}
