package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/vercel/run"
)

// GetTaskOutput returns the stored output of a task.
func (s *Store) GetTaskOutput(ctx context.Context, runID, key string) (*run.Output, error) {
	raw, err := s.rdb.HGet(ctx, entityKey(prefixOutput, runID), key).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return nil, run.ErrOutputNotFound
		}
		return nil, fmt.Errorf("vercel/redis: get task output: %w", err)
	}

	var out run.Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("vercel/redis: decode task output: %w", err)
	}
	return &out, nil
}

// SaveTaskOutput stores or replaces a task output. Outputs of one run share
// a hash so DeleteRunOutputs is a single DEL.
func (s *Store) SaveTaskOutput(ctx context.Context, out *run.Output) error {
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("vercel/redis: marshal task output: %w", err)
	}

	key := entityKey(prefixOutput, out.RunID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, out.Key, raw)
	if s.outputTTL > 0 {
		pipe.Expire(ctx, key, s.outputTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vercel/redis: save task output: %w", err)
	}
	return nil
}

// DeleteRunOutputs forgets every output of a run.
func (s *Store) DeleteRunOutputs(ctx context.Context, runID string) error {
	if err := s.rdb.Del(ctx, entityKey(prefixOutput, runID)).Err(); err != nil {
		return fmt.Errorf("vercel/redis: delete run outputs: %w", err)
	}
	return nil
}
