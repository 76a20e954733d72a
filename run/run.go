// Package run defines the run context integrations execute their tasks in,
// and a concrete implementation with retries and a task output cache.
package run

import (
	"context"
	"time"

	"github.com/xraph/vercel/id"
)

// Task describes one execution of a keyed unit of work inside a run.
type Task struct {
	ID            id.ID
	RunID         string
	Key           string
	Name          string
	Icon          string
	ConnectionKey string

	// Attempt is 1 on the first execution and grows with every retry.
	Attempt int

	StartedAt time.Time
}

// TaskFunc is the body of a task.
type TaskFunc func(ctx context.Context, task *Task) (any, error)

// IO is the run context. RunTask executes fn under key at most once per
// run: a successful result is remembered and returned on later calls with
// the same key.
type IO interface {
	RunTask(ctx context.Context, key string, fn TaskFunc, opts *Options, onError ErrorCallback) (any, error)
}

// Options configures a single task.
type Options struct {
	// Name is shown in place of the key when set.
	Name string

	// Icon identifies the integration that owns the task.
	Icon string

	// ConnectionKey binds the task to an integration connection.
	ConnectionKey string

	// Retry is the retry policy. Nil disables retries.
	Retry *RetryOptions

	// NoCache runs the task even if a result for its key exists, and does
	// not store the new result.
	NoCache bool
}

// Merge returns base overlaid with the non-zero fields of override. Neither
// argument is modified.
func Merge(base, override *Options) *Options {
	out := &Options{}
	if base != nil {
		*out = *base
	}
	if override == nil {
		return out
	}

	if override.Name != "" {
		out.Name = override.Name
	}
	if override.Icon != "" {
		out.Icon = override.Icon
	}
	if override.ConnectionKey != "" {
		out.ConnectionKey = override.ConnectionKey
	}
	if override.Retry != nil {
		out.Retry = override.Retry
	}
	if override.NoCache {
		out.NoCache = true
	}
	return out
}
