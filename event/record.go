package event

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
)

// Sentinel errors returned by event stores.
var (
	// ErrDuplicateEvent is returned when an event id has already been recorded.
	ErrDuplicateEvent = errors.New("event: duplicate event")

	// ErrEventNotFound is returned when a recorded event cannot be found.
	ErrEventNotFound = errors.New("event: event not found")
)

// Record is a webhook delivery accepted by the ingress pipeline.
type Record struct {
	entity.Entity

	// ID is Vercel's event id. Records are unique by ID.
	ID string `json:"id"`

	// Type is the event type tag.
	Type Type `json:"type"`

	// RegistrationID is the webhook registration the delivery arrived on.
	RegistrationID id.ID `json:"registration_id"`

	// Body is the raw, signature-verified request body.
	Body json.RawMessage `json:"body"`

	// Dispatched reports whether at least one trigger received the event.
	Dispatched bool `json:"dispatched"`
}

// ListOpts configures filtering and pagination for record listing.
type ListOpts struct {
	Offset int
	Limit  int
	Type   Type
	From   *time.Time
	To     *time.Time
}
