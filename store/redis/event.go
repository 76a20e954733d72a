package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
)

// eventModel is the JSON representation stored in Redis.
type eventModel struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	RegistrationID string          `json:"registration_id"`
	Body           json.RawMessage `json:"body"`
	Dispatched     bool            `json:"dispatched"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toEventModel(rec *event.Record) *eventModel {
	return &eventModel{
		ID:             rec.ID,
		Type:           string(rec.Type),
		RegistrationID: rec.RegistrationID.String(),
		Body:           rec.Body,
		Dispatched:     rec.Dispatched,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Record, error) {
	rec := &event.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         m.ID,
		Type:       event.Type(m.Type),
		Body:       m.Body,
		Dispatched: m.Dispatched,
	}
	if m.RegistrationID != "" {
		regID, err := id.ParseRegistrationID(m.RegistrationID)
		if err != nil {
			return nil, fmt.Errorf("parse registration ID %q: %w", m.RegistrationID, err)
		}
		rec.RegistrationID = regID
	}
	return rec, nil
}

// CreateEvent records a received event. The entity key is written with
// SET NX so concurrent redeliveries of one event id race safely.
func (s *Store) CreateEvent(ctx context.Context, rec *event.Record) error {
	m := toEventModel(rec)
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("vercel/redis: marshal event: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, entityKey(prefixEvent, m.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("vercel/redis: create event: %w", err)
	}
	if !ok {
		return event.ErrDuplicateEvent
	}

	score := scoreFromTime(m.CreatedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zEventAll, goredis.Z{Score: score, Member: m.ID})
	pipe.ZAdd(ctx, zEventType+m.Type, goredis.Z{Score: score, Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vercel/redis: create event indexes: %w", err)
	}
	return nil
}

// GetEvent returns a recorded event by Vercel event id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*event.Record, error) {
	var m eventModel
	if err := s.getEntity(ctx, entityKey(prefixEvent, eventID), &m); err != nil {
		if isRedisNil(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("vercel/redis: get event: %w", err)
	}
	return fromEventModel(&m)
}

// ClaimEvent takes the dispatch claim with SET NX. The claim is a lease of
// claimTTL until MarkEventDispatched makes it permanent.
func (s *Store) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	rec, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	if rec.Dispatched {
		return false, nil
	}

	ok, err := s.rdb.SetNX(ctx, entityKey(prefixEventClaim, eventID), "1", s.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("vercel/redis: claim event: %w", err)
	}
	return ok, nil
}

// ReleaseEvent drops the dispatch claim on an event.
func (s *Store) ReleaseEvent(ctx context.Context, eventID string) error {
	if err := s.rdb.Del(ctx, entityKey(prefixEventClaim, eventID)).Err(); err != nil {
		return fmt.Errorf("vercel/redis: release event: %w", err)
	}
	return nil
}

// MarkEventDispatched flags a recorded event as dispatched.
func (s *Store) MarkEventDispatched(ctx context.Context, eventID string) error {
	var m eventModel
	key := entityKey(prefixEvent, eventID)
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("vercel/redis: mark event dispatched: %w", err)
	}

	m.Dispatched = true
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("vercel/redis: mark event dispatched: %w", err)
	}
	if err := s.rdb.Set(ctx, entityKey(prefixEventClaim, eventID), "1", 0).Err(); err != nil {
		return fmt.Errorf("vercel/redis: keep event claim: %w", err)
	}
	return nil
}

// ListEvents returns recorded events, newest first.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Record, error) {
	zKey := zEventAll
	if opts.Type != "" {
		zKey = zEventType + string(opts.Type)
	}

	lo, hi := timeBounds(opts.From, opts.To)
	ids, err := s.zRangeByScoreIDs(ctx, zKey, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("vercel/redis: list events: %w", err)
	}
	ids = applyPagination(ids, opts.Offset, opts.Limit)

	models, err := getEntities[eventModel](ctx, s, prefixEvent, ids)
	if err != nil {
		return nil, fmt.Errorf("vercel/redis: list events: %w", err)
	}

	out := make([]*event.Record, 0, len(models))
	for _, m := range models {
		rec, err := fromEventModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
