package dlq

import (
	"context"
	"time"

	"github.com/xraph/vercel/id"
)

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ adds an entry.
	PushDLQ(ctx context.Context, entry *Entry) error

	// GetDLQ returns a DLQ entry by ID.
	GetDLQ(ctx context.Context, dlqID id.ID) (*Entry, error)

	// ListDLQ returns DLQ entries, newest first, optionally filtered.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// UpdateDLQ replaces a stored entry.
	UpdateDLQ(ctx context.Context, entry *Entry) error

	// DeleteDLQ removes an entry.
	DeleteDLQ(ctx context.Context, dlqID id.ID) error

	// PurgeDLQ deletes entries that failed before a threshold.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of DLQ entries.
	CountDLQ(ctx context.Context) (int64, error)
}
