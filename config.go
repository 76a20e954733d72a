package vercel

import "time"

// Config holds the configuration for a Vercel integration.
type Config struct {
	// BaseURL is the Vercel API endpoint.
	BaseURL string

	// RequestTimeout is the HTTP timeout per API call.
	RequestTimeout time.Duration

	// RateLimit caps API calls per second per integration. 0 disables it.
	RateLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.vercel.com",
		RequestTimeout: 30 * time.Second,
	}
}
