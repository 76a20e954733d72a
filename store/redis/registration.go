package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
	"github.com/xraph/vercel/trigger"
)

// registrationModel is the JSON representation stored in Redis.
type registrationModel struct {
	ID         string       `json:"id"`
	Key        string       `json:"key"`
	TeamID     string       `json:"team_id,omitempty"`
	ProjectIDs []string     `json:"project_ids,omitempty"`
	EventTypes []event.Type `json:"event_types"`
	WebhookID  string       `json:"webhook_id"`
	Secret     string       `json:"secret"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func toRegistrationModel(r *trigger.Registration) *registrationModel {
	return &registrationModel{
		ID:         r.ID.String(),
		Key:        r.Key,
		TeamID:     r.Params.TeamID,
		ProjectIDs: r.Params.ProjectIDs,
		EventTypes: r.EventTypes,
		WebhookID:  r.WebhookID,
		Secret:     r.Secret,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func fromRegistrationModel(m *registrationModel) (*trigger.Registration, error) {
	regID, err := id.ParseRegistrationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse registration ID %q: %w", m.ID, err)
	}
	return &trigger.Registration{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         regID,
		Key:        m.Key,
		Params:     trigger.Params{TeamID: m.TeamID, ProjectIDs: m.ProjectIDs},
		EventTypes: m.EventTypes,
		WebhookID:  m.WebhookID,
		Secret:     m.Secret,
	}, nil
}

// CreateRegistration persists a registration. The params key is claimed with
// SET NX so two processes cannot register the same scope.
func (s *Store) CreateRegistration(ctx context.Context, reg *trigger.Registration) error {
	m := toRegistrationModel(reg)

	ok, err := s.rdb.SetNX(ctx, uniqueRegistrationKey+m.Key, m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("vercel/redis: create registration key check: %w", err)
	}
	if !ok {
		return trigger.ErrDuplicateRegistration
	}

	if err := s.setEntity(ctx, entityKey(prefixRegistration, m.ID), m); err != nil {
		return fmt.Errorf("vercel/redis: create registration: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, zRegistrationAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID}).Err(); err != nil {
		return fmt.Errorf("vercel/redis: create registration index: %w", err)
	}
	return nil
}

// GetRegistration returns a registration by ID.
func (s *Store) GetRegistration(ctx context.Context, regID id.ID) (*trigger.Registration, error) {
	return s.getRegistration(ctx, regID.String())
}

func (s *Store) getRegistration(ctx context.Context, regID string) (*trigger.Registration, error) {
	var m registrationModel
	if err := s.getEntity(ctx, entityKey(prefixRegistration, regID), &m); err != nil {
		if isRedisNil(err) {
			return nil, trigger.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("vercel/redis: get registration: %w", err)
	}
	return fromRegistrationModel(&m)
}

// GetRegistrationByKey returns the registration serving a params key.
func (s *Store) GetRegistrationByKey(ctx context.Context, key string) (*trigger.Registration, error) {
	regID, err := s.rdb.Get(ctx, uniqueRegistrationKey+key).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, trigger.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("vercel/redis: get registration by key: %w", err)
	}
	return s.getRegistration(ctx, regID)
}

// UpdateRegistration replaces a registration.
func (s *Store) UpdateRegistration(ctx context.Context, reg *trigger.Registration) error {
	key := entityKey(prefixRegistration, reg.ID.String())

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("vercel/redis: update registration: %w", err)
	}
	if n == 0 {
		return trigger.ErrRegistrationNotFound
	}

	m := toRegistrationModel(reg)
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("vercel/redis: update registration: %w", err)
	}
	return nil
}

// DeleteRegistration removes a registration and its indexes.
func (s *Store) DeleteRegistration(ctx context.Context, regID id.ID) error {
	reg, err := s.GetRegistration(ctx, regID)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, entityKey(prefixRegistration, regID.String()))
	pipe.Del(ctx, uniqueRegistrationKey+reg.Key)
	pipe.ZRem(ctx, zRegistrationAll, regID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vercel/redis: delete registration: %w", err)
	}
	return nil
}

// ListRegistrations returns all registrations, oldest first.
func (s *Store) ListRegistrations(ctx context.Context) ([]*trigger.Registration, error) {
	ids, err := s.rdb.ZRange(ctx, zRegistrationAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("vercel/redis: list registrations: %w", err)
	}

	models, err := getEntities[registrationModel](ctx, s, prefixRegistration, ids)
	if err != nil {
		return nil, fmt.Errorf("vercel/redis: list registrations: %w", err)
	}

	out := make([]*trigger.Registration, 0, len(models))
	for _, m := range models {
		reg, err := fromRegistrationModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, nil
}
