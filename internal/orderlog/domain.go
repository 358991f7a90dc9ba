// Package orderlog defines the domain types for the order audit log.
//
// The audit log is a durable append-only trail of every order placement
// attempt, committed or not. It serves two purposes:
//
//  1. Observability: you can query the DB to see how an order attempt ended
//     and correlate it with a distributed trace via the trace_id field.
//
//  2. Client recovery: a caller whose request timed out is told to check its
//     orders before retrying; the log is the operator-side view of the same
//     question ("did attempt X commit?").
package orderlog

import "time"

// Outcome is how a placement attempt ended.
type Outcome string

const (
	// OutcomeCommitted: stock was decremented and the order record inserted.
	OutcomeCommitted Outcome = "COMMITTED"
	// OutcomeConflict: the conditional transaction aborted (lost the race)
	// or its result is unknown (cancelled mid-commit).
	OutcomeConflict Outcome = "CONFLICT"
	// OutcomeRejected: the request never reached the store mutation —
	// invalid input, insufficient stock on the fast path, unknown product.
	OutcomeRejected Outcome = "REJECTED"
	// OutcomeFailed: the store reported a fault.
	OutcomeFailed Outcome = "FAILED"
)

// Entry is a single row in the order_attempts table. It captures one
// placement attempt at the moment the coordinator resolved it.
type Entry struct {
	// OrderID is the id generated for the attempt. Present even for
	// non-committed attempts so client reports can be matched to rows.
	OrderID string

	// ProductID and UserID identify the contended product and the purchaser.
	ProductID string
	UserID    string

	// Quantity is the requested purchase quantity.
	Quantity int

	// Outcome is how the attempt ended.
	Outcome Outcome

	// Detail carries the error text for non-committed attempts. Never
	// includes sensitive product fields.
	Detail string

	// TraceID is the W3C trace ID extracted from the OpenTelemetry span
	// active when the attempt resolved; links the row to the full trace.
	TraceID string

	// SpanID pinpoints the span within the trace.
	SpanID string

	// CreatedAt is the wall-clock time of the entry.
	CreatedAt time.Time
}
