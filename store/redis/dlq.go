package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
)

// dlqEntryModel is the JSON representation stored in Redis.
type dlqEntryModel struct {
	ID             string          `json:"id"`
	RegistrationID string          `json:"registration_id"`
	EventID        string          `json:"event_id,omitempty"`
	EventType      string          `json:"event_type,omitempty"`
	Reason         string          `json:"reason"`
	Error          string          `json:"error"`
	Issues         []catalog.Issue `json:"issues,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	ReplayCount    int             `json:"replay_count"`
	ReplayedAt     *time.Time      `json:"replayed_at,omitempty"`
	FailedAt       time.Time       `json:"failed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		RegistrationID: e.RegistrationID.String(),
		EventID:        e.EventID,
		EventType:      e.EventType,
		Reason:         e.Reason,
		Error:          e.Error,
		Issues:         e.Issues,
		Payload:        e.Payload,
		ReplayCount:    e.ReplayCount,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	e := &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          dlqID,
		EventID:     m.EventID,
		EventType:   m.EventType,
		Reason:      m.Reason,
		Error:       m.Error,
		Issues:      m.Issues,
		Payload:     m.Payload,
		ReplayCount: m.ReplayCount,
		ReplayedAt:  m.ReplayedAt,
		FailedAt:    m.FailedAt,
	}
	if m.RegistrationID != "" {
		regID, err := id.ParseRegistrationID(m.RegistrationID)
		if err != nil {
			return nil, fmt.Errorf("parse registration ID %q: %w", m.RegistrationID, err)
		}
		e.RegistrationID = regID
	}
	return e, nil
}

// PushDLQ adds an entry to the DLQ.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)

	if err := s.setEntity(ctx, entityKey(prefixDLQ, m.ID), m); err != nil {
		return fmt.Errorf("vercel/redis: push dlq: %w", err)
	}

	score := scoreFromTime(m.FailedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zDLQAll, goredis.Z{Score: score, Member: m.ID})
	if m.RegistrationID != "" {
		pipe.ZAdd(ctx, zDLQRegistration+m.RegistrationID, goredis.Z{Score: score, Member: m.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vercel/redis: push dlq indexes: %w", err)
	}
	return nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, dlq.ErrEntryNotFound
		}
		return nil, fmt.Errorf("vercel/redis: get dlq: %w", err)
	}
	return fromDLQEntryModel(&m)
}

// ListDLQ returns DLQ entries, newest first, optionally filtered.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	zKey := zDLQAll
	if opts.RegistrationID != nil {
		zKey = zDLQRegistration + opts.RegistrationID.String()
	}

	lo, hi := timeBounds(opts.From, opts.To)
	ids, err := s.zRangeByScoreIDs(ctx, zKey, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("vercel/redis: list dlq: %w", err)
	}

	models, err := getEntities[dlqEntryModel](ctx, s, prefixDLQ, ids)
	if err != nil {
		return nil, fmt.Errorf("vercel/redis: list dlq: %w", err)
	}

	out := make([]*dlq.Entry, 0, len(models))
	for _, m := range models {
		if opts.Reason != "" && m.Reason != opts.Reason {
			continue
		}
		e, err := fromDLQEntryModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return applyPagination(out, opts.Offset, opts.Limit), nil
}

// UpdateDLQ replaces a DLQ entry.
func (s *Store) UpdateDLQ(ctx context.Context, entry *dlq.Entry) error {
	key := entityKey(prefixDLQ, entry.ID.String())

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("vercel/redis: update dlq: %w", err)
	}
	if n == 0 {
		return dlq.ErrEntryNotFound
	}

	m := toDLQEntryModel(entry)
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("vercel/redis: update dlq: %w", err)
	}
	return nil
}

// DeleteDLQ removes a DLQ entry and its indexes.
func (s *Store) DeleteDLQ(ctx context.Context, dlqID id.ID) error {
	e, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}
	return s.deleteDLQ(ctx, e.ID.String(), e.RegistrationID.String())
}

func (s *Store) deleteDLQ(ctx context.Context, dlqID, regID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, entityKey(prefixDLQ, dlqID))
	pipe.ZRem(ctx, zDLQAll, dlqID)
	if regID != "" {
		pipe.ZRem(ctx, zDLQRegistration+regID, dlqID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vercel/redis: delete dlq: %w", err)
	}
	return nil
}

// PurgeDLQ deletes DLQ entries that failed before a threshold.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, math.Inf(-1), scoreFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("vercel/redis: purge dlq: %w", err)
	}

	models, err := getEntities[dlqEntryModel](ctx, s, prefixDLQ, ids)
	if err != nil {
		return 0, fmt.Errorf("vercel/redis: purge dlq: %w", err)
	}

	var count int64
	for _, m := range models {
		if !m.FailedAt.Before(before) {
			continue
		}
		if err := s.deleteDLQ(ctx, m.ID, m.RegistrationID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("vercel/redis: count dlq: %w", err)
	}
	return n, nil
}
