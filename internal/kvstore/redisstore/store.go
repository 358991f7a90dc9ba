// Package redisstore implements kvstore.Store on Redis.
//
// Conditional transactions use the WATCH / MULTI / EXEC optimistic-locking
// idiom: every record key touched by the transaction is watched, the current
// values are read and the preconditions evaluated client-side, and the
// writes are queued in a MULTI block. If any watched key changed between the
// read and EXEC, Redis discards the block and the transaction reports
// Aborted — the same first-committer-wins semantics the memory backend
// provides under its mutex.
//
// Secondary indexes are sorted sets keyed by index name and index key, with
// the record key as member. Each partition additionally keeps a sorted set
// of its sort keys (all at score zero, so members order lexically) to serve
// prefix queries.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
)

var errPreconditionFailed = errors.New("redisstore: precondition failed")

// Store is a Redis-backed kvstore.Store. The client is injected; its
// lifecycle belongs to the process entry point.
type Store struct {
	client   *redis.Client
	keyspace string
}

// New wraps an existing Redis client. keyspace prefixes every key the store
// writes, so several deployments can share one Redis instance.
func New(client *redis.Client, keyspace string) *Store {
	return &Store{client: client, keyspace: keyspace}
}

func (s *Store) Get(ctx context.Context, key kvstore.Key) ([]byte, error) {
	v, err := s.client.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvstore.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Apply(ctx context.Context, ops ...kvstore.Op) (kvstore.Outcome, error) {
	watched := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op := op.(type) {
		case kvstore.UpdateIf:
			watched = append(watched, s.recordKey(op.Key))
		case kvstore.InsertIfAbsent:
			watched = append(watched, s.recordKey(op.Key))
		}
	}

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		// Evaluate every guard against the value as currently stored. A
		// concurrent write to any watched key after this point voids the
		// EXEC below, so the checks and the writes are effectively atomic.
		for _, op := range ops {
			switch op := op.(type) {
			case kvstore.UpdateIf:
				current, err := tx.Get(ctx, s.recordKey(op.Key)).Bytes()
				if errors.Is(err, redis.Nil) {
					return errPreconditionFailed
				}
				if err != nil {
					return err
				}
				if op.Precondition != nil {
					pass, err := op.Precondition(current)
					if err != nil {
						return err
					}
					if !pass {
						return errPreconditionFailed
					}
				}
			case kvstore.InsertIfAbsent:
				_, err := tx.Get(ctx, s.recordKey(op.Key)).Result()
				if err == nil {
					return errPreconditionFailed
				}
				if !errors.Is(err, redis.Nil) {
					return err
				}
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range ops {
				switch op := op.(type) {
				case kvstore.UpdateIf:
					pipe.Set(ctx, s.recordKey(op.Key), op.Value, 0)
				case kvstore.InsertIfAbsent:
					pipe.Set(ctx, s.recordKey(op.Key), op.Value, 0)
					pipe.ZAdd(ctx, s.partitionKey(op.Key.Partition), redis.Z{
						Score:  0,
						Member: op.Key.Sort,
					})
					for _, entry := range op.Indexes {
						pipe.ZAdd(ctx, s.indexKey(entry.Index, entry.IndexKey), redis.Z{
							Score:  entry.Score,
							Member: op.Key.String(),
						})
					}
				}
			}
			return nil
		})
		return err
	}, watched...)

	switch {
	case err == nil:
		return kvstore.Committed, nil
	case errors.Is(err, errPreconditionFailed), errors.Is(err, redis.TxFailedErr):
		return kvstore.Aborted, nil
	default:
		return kvstore.Aborted, fmt.Errorf("redisstore: apply: %w", err)
	}
}

func (s *Store) QueryIndex(ctx context.Context, index, indexKey string, desc bool) ([][]byte, error) {
	zkey := s.indexKey(index, indexKey)
	var members []string
	var err error
	if desc {
		members, err = s.client.ZRevRange(ctx, zkey, 0, -1).Result()
	} else {
		members, err = s.client.ZRange(ctx, zkey, 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: query index %s/%s: %w", index, indexKey, err)
	}
	return s.fetch(ctx, members)
}

func (s *Store) QueryPrefix(ctx context.Context, partition, sortPrefix string) ([][]byte, error) {
	// All partition members sit at score zero, so ZRANGEBYLEX walks them in
	// lexical sort-key order.
	sorts, err := s.client.ZRangeByLex(ctx, s.partitionKey(partition), &redis.ZRangeBy{
		Min: "[" + sortPrefix,
		Max: "[" + sortPrefix + "\xff",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: query prefix %s/%s: %w", partition, sortPrefix, err)
	}
	members := make([]string, len(sorts))
	for i, sk := range sorts {
		members[i] = kvstore.Key{Partition: partition, Sort: sk}.String()
	}
	return s.fetch(ctx, members)
}

// fetch resolves record-key members to their current values, skipping
// members whose record has disappeared.
func (s *Store) fetch(ctx context.Context, members []string) ([][]byte, error) {
	out := make([][]byte, 0, len(members))
	for _, m := range members {
		part, sk, ok := strings.Cut(m, "/")
		if !ok {
			continue
		}
		v, err := s.client.Get(ctx, s.recordKey(kvstore.Key{Partition: part, Sort: sk})).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redisstore: fetch %s: %w", m, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) recordKey(key kvstore.Key) string {
	return fmt.Sprintf("%s:rec:%s", s.keyspace, key)
}

func (s *Store) indexKey(index, indexKey string) string {
	return fmt.Sprintf("%s:idx:%s:%s", s.keyspace, index, indexKey)
}

func (s *Store) partitionKey(partition string) string {
	return fmt.Sprintf("%s:part:%s", s.keyspace, partition)
}
