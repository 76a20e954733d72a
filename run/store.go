package run

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/xraph/vercel/id"
)

// ErrOutputNotFound is returned when no result is stored for a task key.
var ErrOutputNotFound = errors.New("run: task output not found")

// Output is the stored result of a successful task.
type Output struct {
	RunID     string          `json:"run_id"`
	Key       string          `json:"key"`
	TaskID    id.ID           `json:"task_id"`
	Value     json.RawMessage `json:"value"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists task outputs keyed by (run id, task key).
type Store interface {
	// GetTaskOutput returns ErrOutputNotFound when nothing is stored.
	GetTaskOutput(ctx context.Context, runID, key string) (*Output, error)

	// SaveTaskOutput stores or replaces an output.
	SaveTaskOutput(ctx context.Context, out *Output) error

	// DeleteRunOutputs forgets every output of a run.
	DeleteRunOutputs(ctx context.Context, runID string) error
}
