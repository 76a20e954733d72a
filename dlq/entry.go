package dlq

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
)

// ErrEntryNotFound is returned when a DLQ entry does not exist.
var ErrEntryNotFound = errors.New("dlq: entry not found")

// Reasons a verified delivery ends up in the DLQ.
const (
	// ReasonInvalidPayload means the body failed schema validation.
	ReasonInvalidPayload = "invalid_payload"

	// ReasonDispatchFailed means the event was valid but its handler failed.
	ReasonDispatchFailed = "dispatch_failed"
)

// Entry is a verified webhook delivery that could not be processed.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// RegistrationID is the webhook registration the delivery arrived on.
	RegistrationID id.ID `json:"registration_id"`

	// EventID is Vercel's event id, when the envelope could be read.
	EventID string `json:"event_id,omitempty"`

	// EventType is the type tag, when the envelope could be read.
	EventType string `json:"event_type,omitempty"`

	// Reason is one of the Reason constants.
	Reason string `json:"reason"`

	// Error is the error message from the last processing attempt.
	Error string `json:"error"`

	// Issues lists every schema violation for invalid payloads.
	Issues []catalog.Issue `json:"issues,omitempty"`

	// Payload is the raw request body as received.
	Payload json.RawMessage `json:"payload"`

	// ReplayCount is the number of replay attempts made.
	ReplayCount int `json:"replay_count"`

	// ReplayedAt is set when a replay succeeded.
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`

	// FailedAt is when processing first failed.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset         int
	Limit          int
	RegistrationID *id.ID
	Reason         string
	From           *time.Time
	To             *time.Time
}
