// Package memory provides the in-process kvstore.Store implementation.
//
// It is the default backend and the substrate for tests. A single RWMutex
// serializes transactions, which makes the commit-time precondition check
// trivially correct: conditions run under the same lock that applies the
// writes, so no other writer can slip in between.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
)

type indexRef struct {
	score float64
	seq   uint64
	key   kvstore.Key
}

// Store is a mutex-guarded in-memory kvstore.Store.
type Store struct {
	mu      sync.RWMutex
	parts   map[string]map[string][]byte
	indexes map[string]map[string][]indexRef
	seq     uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		parts:   make(map[string]map[string][]byte),
		indexes: make(map[string]map[string][]indexRef),
	}
}

func (s *Store) Get(ctx context.Context, key kvstore.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookup(key)
	if !ok {
		return nil, kvstore.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Apply(ctx context.Context, ops ...kvstore.Op) (kvstore.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return kvstore.Aborted, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every operation first so a late precondition failure cannot
	// leave earlier writes behind.
	for _, op := range ops {
		switch op := op.(type) {
		case kvstore.UpdateIf:
			current, ok := s.lookup(op.Key)
			if !ok {
				return kvstore.Aborted, nil
			}
			if op.Precondition != nil {
				pass, err := op.Precondition(current)
				if err != nil {
					return kvstore.Aborted, err
				}
				if !pass {
					return kvstore.Aborted, nil
				}
			}
		case kvstore.InsertIfAbsent:
			if _, ok := s.lookup(op.Key); ok {
				return kvstore.Aborted, nil
			}
		}
	}

	for _, op := range ops {
		switch op := op.(type) {
		case kvstore.UpdateIf:
			s.put(op.Key, op.Value)
		case kvstore.InsertIfAbsent:
			s.put(op.Key, op.Value)
			for _, entry := range op.Indexes {
				s.seq++
				byKey := s.indexes[entry.Index]
				if byKey == nil {
					byKey = make(map[string][]indexRef)
					s.indexes[entry.Index] = byKey
				}
				byKey[entry.IndexKey] = append(byKey[entry.IndexKey], indexRef{
					score: entry.Score,
					seq:   s.seq,
					key:   op.Key,
				})
			}
		}
	}
	return kvstore.Committed, nil
}

func (s *Store) QueryIndex(ctx context.Context, index, indexKey string, desc bool) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := append([]indexRef(nil), s.indexes[index][indexKey]...)
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].score != refs[j].score {
			if desc {
				return refs[i].score > refs[j].score
			}
			return refs[i].score < refs[j].score
		}
		if desc {
			return refs[i].seq > refs[j].seq
		}
		return refs[i].seq < refs[j].seq
	})

	out := make([][]byte, 0, len(refs))
	for _, ref := range refs {
		if v, ok := s.lookup(ref.key); ok {
			c := make([]byte, len(v))
			copy(c, v)
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) QueryPrefix(ctx context.Context, partition, sortPrefix string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.parts[partition]
	sorts := make([]string, 0, len(part))
	for sk := range part {
		if strings.HasPrefix(sk, sortPrefix) {
			sorts = append(sorts, sk)
		}
	}
	sort.Strings(sorts)

	out := make([][]byte, 0, len(sorts))
	for _, sk := range sorts {
		v := part[sk]
		c := make([]byte, len(v))
		copy(c, v)
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) lookup(key kvstore.Key) ([]byte, bool) {
	part, ok := s.parts[key.Partition]
	if !ok {
		return nil, false
	}
	v, ok := part[key.Sort]
	return v, ok
}

func (s *Store) put(key kvstore.Key, value []byte) {
	part, ok := s.parts[key.Partition]
	if !ok {
		part = make(map[string][]byte)
		s.parts[key.Partition] = part
	}
	c := make([]byte, len(value))
	copy(c, value)
	part[key.Sort] = c
}
