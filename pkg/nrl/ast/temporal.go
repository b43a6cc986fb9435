package ast

import (
	"fmt"
	"time"

	"normative-hq/themis/pkg/nrl/errors"
	"normative-hq/themis/pkg/nrl/token"
)

// Timestamp is the closed sum of deadline payloads: RelativeTime or
// AbsoluteTime.
type Timestamp interface {
	timestamp()
}

// RelativeTime is a deadline offset from a reference timestamp supplied
// by the evaluation context.
type RelativeTime struct {
	Days   int
	Months int
	Years  int
}

func (RelativeTime) timestamp() {}

// Resolve returns the absolute deadline obtained by adding the offsets
// to the given reference time.
func (r RelativeTime) Resolve(reference time.Time) time.Time {
	return reference.AddDate(r.Years, r.Months, r.Days)
}

func (r RelativeTime) String() string {
	return fmt.Sprintf("within %dy %dm %dd", r.Years, r.Months, r.Days)
}

// AbsoluteTime is a calendar-date deadline, taken as midnight UTC.
type AbsoluteTime struct {
	Year  int
	Month time.Month
	Day   int
}

func (AbsoluteTime) timestamp() {}

// Time returns the deadline as a time.Time at midnight UTC.
func (a AbsoluteTime) Time() time.Time {
	return time.Date(a.Year, a.Month, a.Day, 0, 0, 0, 0, time.UTC)
}

func (a AbsoluteTime) String() string {
	return a.Time().Format("2006-01-02")
}

// TemporalConstraint is a deadline attached to a deontic action: either
// an absolute calendar date or an offset relative to a reference time.
//
// Invariant: IsRelative must agree with the concrete Timestamp variant.
// The parser guarantees this; the constructor re-asserts it defensively
// because a disagreement means the parser contract was violated.
type TemporalConstraint struct {
	Tok        token.Token
	IsRelative bool
	Time       Timestamp
}

// NewTemporalConstraint builds a temporal constraint, failing with a
// construction error if the IsRelative flag disagrees with the timestamp
// variant or the timestamp is missing.
func NewTemporalConstraint(tok token.Token, isRelative bool, ts Timestamp) (*TemporalConstraint, error) {
	switch ts.(type) {
	case RelativeTime:
		if !isRelative {
			return nil, errors.At(errors.KindConstruction, tok.Location(),
				"temporal constraint marked absolute but carries a relative timestamp")
		}
	case AbsoluteTime:
		if isRelative {
			return nil, errors.At(errors.KindConstruction, tok.Location(),
				"temporal constraint marked relative but carries an absolute timestamp")
		}
	default:
		return nil, errors.At(errors.KindConstruction, tok.Location(),
			"temporal constraint has no timestamp")
	}
	return &TemporalConstraint{Tok: tok, IsRelative: isRelative, Time: ts}, nil
}

// Tokens returns the constraint's source token.
func (t *TemporalConstraint) Tokens() []token.Token { return []token.Token{t.Tok} }
