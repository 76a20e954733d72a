// Package redis implements store.Store on Redis. Entities are JSON strings;
// listings are served from sorted set indexes scored by time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	vercelstore "github.com/xraph/vercel/store"
)

// compile-time interface check
var _ vercelstore.Store = (*Store)(nil)

// Store implements store.Store using Redis.
type Store struct {
	rdb       goredis.UniversalClient
	outputTTL time.Duration
	claimTTL  time.Duration
}

// DefaultClaimTTL bounds how long a crashed dispatcher can hold an event.
const DefaultClaimTTL = 10 * time.Minute

// Option configures a Store.
type Option func(*Store)

// WithOutputTTL expires cached task outputs of a run d after its last write.
func WithOutputTTL(d time.Duration) Option {
	return func(s *Store) { s.outputTTL = d }
}

// WithClaimTTL sets the lease of an event dispatch claim. A claim that is
// neither released nor completed expires after d.
func WithClaimTTL(d time.Duration) Option {
	return func(s *Store) { s.claimTTL = d }
}

// New creates a new Redis store.
func New(rdb goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, claimTTL: DefaultClaimTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op for Redis (no schema migrations needed).
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// scoreFromTime converts a time.Time to a sorted set score (unix seconds as float64).
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// getEntity retrieves and decodes a JSON entity.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// setEntity encodes and stores a JSON entity.
func (s *Store) setEntity(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("vercel/redis: marshal entity: %w", err)
	}
	return s.rdb.Set(ctx, key, raw, 0).Err()
}

// getEntities loads the entities behind ids with one MGET. Missing keys are
// skipped.
func getEntities[M any](ctx context.Context, s *Store, prefix string, ids []string) ([]*M, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, entityID := range ids {
		keys[i] = entityKey(prefix, entityID)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*M, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		m := new(M)
		if err := json.Unmarshal([]byte(str), m); err != nil {
			return nil, fmt.Errorf("vercel/redis: decode entity: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// zRangeByScoreIDs returns member IDs from a sorted set within a score
// range, newest first.
func (s *Store) zRangeByScoreIDs(ctx context.Context, key string, lo, hi float64) ([]string, error) {
	minStr := "-inf"
	maxStr := "+inf"
	if !math.IsInf(lo, -1) {
		minStr = strconv.FormatFloat(lo, 'f', -1, 64)
	}
	if !math.IsInf(hi, 1) {
		maxStr = strconv.FormatFloat(hi, 'f', -1, 64)
	}
	return s.rdb.ZRevRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: minStr,
		Max: maxStr,
	}).Result()
}

// timeBounds converts optional From/To filters to sorted set scores.
func timeBounds(from, to *time.Time) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if from != nil {
		lo = scoreFromTime(*from)
	}
	if to != nil {
		hi = scoreFromTime(*to)
	}
	return lo, hi
}

// applyPagination applies offset and limit to a slice.
func applyPagination[T any](items []T, offset, limit int) []T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
