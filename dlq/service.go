package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
	"github.com/xraph/vercel/observability"
)

// Replayer reprocesses a dead-lettered delivery.
type Replayer interface {
	Replay(ctx context.Context, entry *Entry) error
}

// ReplayerFunc adapts a function to Replayer.
type ReplayerFunc func(ctx context.Context, entry *Entry) error

// Replay implements Replayer.
func (f ReplayerFunc) Replay(ctx context.Context, entry *Entry) error { return f(ctx, entry) }

// Service manages the dead letter queue.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// WithMetrics makes the service track the DLQ size gauge.
func (svc *Service) WithMetrics(m *observability.Metrics) *Service {
	svc.metrics = m
	return svc
}

// Push stores a failed delivery. ID and FailedAt are filled in when zero.
// Schema issues are copied from err when it is a *catalog.ValidationError.
func (svc *Service) Push(ctx context.Context, entry *Entry, err error) error {
	if entry.ID.IsNil() {
		entry.ID = id.NewDLQID()
	}
	if entry.CreatedAt.IsZero() {
		entry.Entity = entity.New()
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	if err != nil {
		entry.Error = err.Error()
		var ve *catalog.ValidationError
		if errors.As(err, &ve) {
			entry.Issues = ve.Issues
		}
	}

	if pushErr := svc.store.PushDLQ(ctx, entry); pushErr != nil {
		return fmt.Errorf("dlq: push: %w", pushErr)
	}
	svc.metrics.AddDLQ(1)

	svc.logger.Warn("delivery dead-lettered",
		"dlq_id", entry.ID.String(),
		"registration_id", entry.RegistrationID.String(),
		"event_id", entry.EventID,
		"reason", entry.Reason,
		"error", entry.Error,
	)
	return nil
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Delete removes a DLQ entry.
func (svc *Service) Delete(ctx context.Context, dlqID id.ID) error {
	if err := svc.store.DeleteDLQ(ctx, dlqID); err != nil {
		return err
	}
	svc.metrics.AddDLQ(-1)
	return nil
}

// Replay hands an entry to r. On success ReplayedAt is set; on failure the
// new error is recorded. The entry stays in the queue either way.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID, r Replayer) error {
	entry, err := svc.store.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}

	entry.ReplayCount++
	entry.Touch()
	replayErr := r.Replay(ctx, entry)
	if replayErr != nil {
		entry.Error = replayErr.Error()
		var ve *catalog.ValidationError
		if errors.As(replayErr, &ve) {
			entry.Issues = ve.Issues
		}
	} else {
		now := time.Now().UTC()
		entry.ReplayedAt = &now
	}

	if err := svc.store.UpdateDLQ(ctx, entry); err != nil {
		return fmt.Errorf("dlq: update after replay: %w", err)
	}

	if replayErr != nil {
		svc.logger.Warn("dlq replay failed", "dlq_id", dlqID.String(), "error", replayErr)
		return fmt.Errorf("dlq: replay %s: %w", dlqID, replayErr)
	}
	svc.logger.Info("dlq entry replayed", "dlq_id", dlqID.String(), "event_id", entry.EventID)
	return nil
}

// Purge removes entries that failed before a threshold.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := svc.store.PurgeDLQ(ctx, before)
	if err != nil {
		return 0, err
	}
	svc.metrics.AddDLQ(-float64(n))
	return n, nil
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
