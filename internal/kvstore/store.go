// Package kvstore defines the transactional key-value store contract the
// marketplace is built on.
//
// Records are addressed by a composite key (partition + sort) and may carry
// entries in named secondary indexes, the usual single-table layout: a
// product and its orders share a partition. The one synchronization
// primitive the rest of the system relies on is Apply: a conditional multi-record transaction
// whose preconditions are evaluated against the value as stored at commit
// time, not as previously read. Conflicts are an expected outcome, so Apply
// reports them as a typed Outcome rather than an error.
package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no record exists under the key.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Key is a composite record key.
type Key struct {
	Partition string
	Sort      string
}

func (k Key) String() string {
	return k.Partition + "/" + k.Sort
}

// Outcome is the result of a conditional transaction.
type Outcome int

const (
	// Committed means every operation in the transaction was applied.
	Committed Outcome = iota
	// Aborted means a precondition failed at commit time and nothing was
	// applied. The record a precondition rejected is left untouched.
	Aborted
)

func (o Outcome) String() string {
	if o == Committed {
		return "committed"
	}
	return "aborted"
}

// Condition is a commit-time guard evaluated against the currently stored
// value of a record. Returning false aborts the whole transaction; returning
// an error fails it (the record could not even be interpreted).
type Condition func(current []byte) (bool, error)

// Op is one operation in a conditional transaction. The two implementations
// are UpdateIf and InsertIfAbsent; the interface is sealed.
type Op interface {
	opKey() Key
}

// UpdateIf replaces the value under Key, guarded by Precondition. The
// transaction aborts if the record is absent or the precondition does not
// hold against the stored value at commit time.
type UpdateIf struct {
	Key          Key
	Value        []byte
	Precondition Condition
}

func (u UpdateIf) opKey() Key { return u.Key }

// InsertIfAbsent creates a new record and its index entries. The transaction
// aborts if a record already exists under Key.
type InsertIfAbsent struct {
	Key     Key
	Value   []byte
	Indexes []IndexEntry
}

func (i InsertIfAbsent) opKey() Key { return i.Key }

// IndexEntry places the inserted record into a named secondary index under
// IndexKey. Score orders entries within the index (typically event time);
// queries can walk it in either direction.
type IndexEntry struct {
	Index    string
	IndexKey string
	Score    float64
}

// Store is the transactional store consumed by the catalog, the order
// coordinator and the ledger. Implementations must provide atomicity across
// the operations of a single Apply call, commit-time precondition
// evaluation, and isolation from concurrently committing transactions.
type Store interface {
	// Get returns the stored value under key, or ErrKeyNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Apply executes the operations as a single all-or-nothing transaction.
	// A failed precondition yields (Aborted, nil); the error return is
	// reserved for store-level faults where nothing is known about the
	// outcome.
	Apply(ctx context.Context, ops ...Op) (Outcome, error)

	// QueryIndex returns the values of the records filed under indexKey in
	// the named index, ordered by score (descending when desc is set).
	QueryIndex(ctx context.Context, index, indexKey string, desc bool) ([][]byte, error)

	// QueryPrefix returns the values of all records in partition whose sort
	// key starts with sortPrefix, in ascending sort-key order.
	QueryPrefix(ctx context.Context, partition, sortPrefix string) ([][]byte, error)
}
