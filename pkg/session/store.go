package session

import (
	"context"
	"time"
)

// Record is the persisted view of one evaluation session. The live
// evaluator state (stacks, continuation) stays in memory with the
// Manager; the record carries everything a host needs to list, audit
// and expire sessions across the fleet.
type Record struct {
	// ID is the session identifier.
	ID string

	// Rule is the label of the rule under evaluation, or "expression"
	// for expression sessions.
	Rule string

	// State mirrors the evaluator's lifecycle state.
	State string

	// PendingSymbol and PendingType describe the awaited fact while the
	// session is suspended.
	PendingSymbol string
	PendingType   string

	// PendingDescription is the host's Waiting acknowledgment text.
	PendingDescription string

	// FactRequests counts the suspensions this session has gone through.
	FactRequests int

	// Satisfied holds the final verdict of a completed rule session.
	Satisfied *bool

	// Error is the failure message of a failed session.
	Error string

	// Reason is the invalidation reason of an invalidated session.
	Reason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Query filters session records.
type Query struct {
	// States restricts to sessions in any of the given states.
	States []string

	// Rule restricts to sessions evaluating the given rule label.
	Rule string

	// UpdatedBefore restricts to sessions last touched before the given
	// instant. Used by the sweeper to find stale suspensions.
	UpdatedBefore *time.Time

	// Limit and Offset paginate results. A zero limit returns all
	// matches.
	Limit  int
	Offset int
}

// Store persists session records.
type Store interface {
	// Save inserts or updates a record.
	Save(ctx context.Context, record *Record) error

	// Get retrieves a record by ID. Returns NotFoundError when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List retrieves records matching the query, most recently updated
	// first.
	List(ctx context.Context, query *Query) ([]*Record, error)

	// Delete removes records matching the query and returns the count.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases resources held by the store.
	Close() error
}
