package trigger

import (
	"context"
	"errors"
	"slices"

	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
)

// Sentinel errors for registrations.
var (
	ErrRegistrationNotFound  = errors.New("trigger: registration not found")
	ErrDuplicateRegistration = errors.New("trigger: registration key already exists")
)

// Registration is a Vercel webhook created for one Params key.
type Registration struct {
	entity.Entity

	ID         id.ID        `json:"id"`
	Key        string       `json:"key"`
	Params     Params       `json:"params"`
	EventTypes []event.Type `json:"event_types"`

	// WebhookID is Vercel's id for the webhook.
	WebhookID string `json:"webhook_id"`

	// Secret verifies deliveries. It is never rendered by the API.
	Secret string `json:"secret"`
}

// Subscribes reports whether the registration covers t.
func (r *Registration) Subscribes(t event.Type) bool {
	return slices.Contains(r.EventTypes, t)
}

// Accepts reports whether evt belongs to this registration.
func (r *Registration) Accepts(evt *event.WebhookEvent) bool {
	return r.Subscribes(evt.Type) && r.Params.Accepts(evt)
}

// Store persists registrations.
type Store interface {
	// CreateRegistration returns ErrDuplicateRegistration when the key exists.
	CreateRegistration(ctx context.Context, reg *Registration) error

	GetRegistration(ctx context.Context, regID id.ID) (*Registration, error)

	GetRegistrationByKey(ctx context.Context, key string) (*Registration, error)

	UpdateRegistration(ctx context.Context, reg *Registration) error

	DeleteRegistration(ctx context.Context, regID id.ID) error

	ListRegistrations(ctx context.Context) ([]*Registration, error)
}
