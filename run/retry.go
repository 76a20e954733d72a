package run

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions is an exponential backoff policy.
type RetryOptions struct {
	// Limit is the number of retries after the first attempt.
	Limit int

	// Factor multiplies the delay after every retry.
	Factor float64

	MinTimeout time.Duration
	MaxTimeout time.Duration

	// Randomize jitters each delay by up to half its value.
	Randomize bool
}

// StandardBackoff is the default policy for integration tasks.
var StandardBackoff = RetryOptions{
	Limit:      8,
	Factor:     1.8,
	MinTimeout: 500 * time.Millisecond,
	MaxTimeout: 30 * time.Second,
	Randomize:  true,
}

// BackOff returns a fresh backoff.BackOff implementing the policy.
func (r RetryOptions) BackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.MinTimeout
	eb.MaxInterval = r.MaxTimeout
	eb.Multiplier = r.Factor
	eb.MaxElapsedTime = 0
	if eb.Multiplier < 1 {
		eb.Multiplier = 1
	}
	if !r.Randomize {
		eb.RandomizationFactor = 0
	}
	eb.Reset()

	limit := r.Limit
	if limit < 0 {
		limit = 0
	}
	return backoff.WithMaxRetries(eb, uint64(limit))
}

// ErrorDecision overrides how a failed attempt is handled.
type ErrorDecision struct {
	// SkipRetrying fails the task immediately.
	SkipRetrying bool

	// RetryAfter replaces the computed delay when positive.
	RetryAfter time.Duration
}

// ErrorCallback inspects a failed attempt. Returning nil applies
// DefaultDecision.
type ErrorCallback func(err error, task *Task) *ErrorDecision

type statusCoder interface {
	StatusCode() int
}

// DefaultDecision classifies err the way webhook deliveries are classified:
//   - context cancellation → terminal
//   - 408, 429 → retry
//   - 400–499 → terminal (client errors won't self-correct)
//   - anything else → retry
func DefaultDecision(err error) *ErrorDecision {
	if errors.Is(err, context.Canceled) {
		return &ErrorDecision{SkipRetrying: true}
	}

	var sc statusCoder
	if !errors.As(err, &sc) {
		return &ErrorDecision{}
	}

	code := sc.StatusCode()
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return &ErrorDecision{}
	case code >= 400 && code < 500:
		return &ErrorDecision{SkipRetrying: true}
	default:
		return &ErrorDecision{}
	}
}
