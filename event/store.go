package event

import "context"

// Store defines the persistence contract for received webhook events.
type Store interface {
	// CreateEvent records a received event. Returns ErrDuplicateEvent when the
	// id has been recorded before.
	CreateEvent(ctx context.Context, rec *Record) error

	// GetEvent returns a recorded event by Vercel event id.
	GetEvent(ctx context.Context, eventID string) (*Record, error)

	// ClaimEvent atomically takes the dispatch claim on a recorded event. It
	// reports false when the event was dispatched already or another delivery
	// holds the claim.
	ClaimEvent(ctx context.Context, eventID string) (bool, error)

	// ReleaseEvent drops a claim so a later redelivery or replay may dispatch.
	ReleaseEvent(ctx context.Context, eventID string) error

	// MarkEventDispatched flags a recorded event as handed to its triggers.
	// The claim is kept for good.
	MarkEventDispatched(ctx context.Context, eventID string) error

	// ListEvents returns recorded events, newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Record, error)
}
