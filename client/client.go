// Package client is a small Vercel REST API client covering webhooks and
// deployment checks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/xraph/vercel/ratelimit"
)

// DefaultBaseURL is the public Vercel API endpoint.
const DefaultBaseURL = "https://api.vercel.com"

const (
	userAgent       = "xraph-vercel/1.0"
	maxResponseBody = 1 << 20
)

// ErrNoTokenSource is returned by New when ts is nil.
var ErrNoTokenSource = errors.New("client: token source is required")

// Client calls the Vercel REST API with bearer authentication.
type Client struct {
	baseURL string
	http    *http.Client

	limiter   *ratelimit.Limiter
	limitKey  string
	rateLimit int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL   string
	base      *http.Client
	limiter   *ratelimit.Limiter
	limitKey  string
	rateLimit int
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the transport the oauth2 client wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.base = hc }
}

// WithRateLimit throttles calls to perSecond using l, bucketed under key.
func WithRateLimit(l *ratelimit.Limiter, key string, perSecond int) Option {
	return func(c *config) {
		c.limiter = l
		c.limitKey = key
		c.rateLimit = perSecond
	}
}

// New creates a client that authenticates every request with tokens from ts.
func New(ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, ErrNoTokenSource
	}

	cfg := config{
		baseURL: DefaultBaseURL,
		base:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.base)
	hc := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, ts))
	hc.Timeout = cfg.base.Timeout

	return &Client{
		baseURL:   cfg.baseURL,
		http:      hc,
		limiter:   cfg.limiter,
		limitKey:  cfg.limitKey,
		rateLimit: cfg.rateLimit,
	}, nil
}

// NewWithToken creates a client for a static access token or API key.
func NewWithToken(accessToken string, opts ...Option) (*Client, error) {
	if accessToken == "" {
		return nil, ErrNoTokenSource
	}
	return New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}), opts...)
}

// BaseURL returns the API host the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func teamQuery(teamID string) url.Values {
	q := url.Values{}
	if teamID != "" {
		q.Set("teamId", teamID)
	}
	return q
}

// do performs a JSON request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.limitKey, c.rateLimit); err != nil {
			return fmt.Errorf("client: rate limit: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests && c.limiter != nil {
		if reset, ok := rateLimitReset(resp.Header); ok {
			c.limiter.Pause(c.limitKey, reset)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// rateLimitReset reads the unix-seconds X-RateLimit-Reset header Vercel sends
// with throttled responses.
func rateLimitReset(h http.Header) (time.Time, bool) {
	v := h.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}
