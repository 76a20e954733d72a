package vercel

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/vercel/observability"
	"github.com/xraph/vercel/ratelimit"
	"github.com/xraph/vercel/trigger"
)

// Option configures a Vercel integration.
type Option func(*Vercel) error

// WithAPIKey authenticates with a Vercel access token instead of hosted
// OAuth connections. An empty key is an error.
func WithAPIKey(key string) Option {
	return func(v *Vercel) error {
		if key == "" {
			return fmt.Errorf("cannot create Vercel integration (%s) as apiKey was undefined: %w", v.id, ErrEmptyAPIKey)
		}
		v.apiKey = key
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(v *Vercel) error {
		v.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vercel) error {
		v.logger = logger
		return nil
	}
}

// WithBaseURL points API clients at a different host.
func WithBaseURL(u string) Option {
	return func(v *Vercel) error {
		v.config.BaseURL = u
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per API call.
func WithRequestTimeout(d time.Duration) Option {
	return func(v *Vercel) error {
		v.config.RequestTimeout = d
		return nil
	}
}

// WithHTTPClient sets the base HTTP client API clients wrap.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *Vercel) error {
		v.httpClient = hc
		return nil
	}
}

// WithRateLimit caps API calls per second.
func WithRateLimit(perSecond int) Option {
	return func(v *Vercel) error {
		v.config.RateLimit = perSecond
		return nil
	}
}

// WithMetrics records metrics for tasks and ingress.
func WithMetrics(m *observability.Metrics) Option {
	return func(v *Vercel) error {
		v.metrics = m
		return nil
	}
}

// WithTracer records spans for tasks and ingress.
func WithTracer(t *observability.Tracer) Option {
	return func(v *Vercel) error {
		v.tracer = t
		return nil
	}
}

// WithSource sets the webhook event source triggers register with.
func WithSource(s *trigger.Source) Option {
	return func(v *Vercel) error {
		v.source = s
		return nil
	}
}

// WithLimiter shares a rate limiter between integrations.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(v *Vercel) error {
		v.limiter = l
		return nil
	}
}
