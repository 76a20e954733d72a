package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vercel/client"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/ratelimit"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...client.Option) *client.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := client.NewWithToken("tok_test", append([]client.Option{
		client.WithBaseURL(srv.URL),
		client.WithHTTPClient(srv.Client()),
	}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresToken(t *testing.T) {
	_, err := client.NewWithToken("")
	assert.ErrorIs(t, err, client.ErrNoTokenSource)

	_, err = client.New(nil)
	assert.ErrorIs(t, err, client.ErrNoTokenSource)
}

func TestListWebhooks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/webhooks", r.URL.Path)
		assert.Equal(t, "team_1", r.URL.Query().Get("teamId"))
		assert.Equal(t, "prj_1", r.URL.Query().Get("projectId"))
		assert.Equal(t, "Bearer tok_test", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "hook_1", "url": "https://example.com/h", "events": []string{"deployment.ready"}, "ownerId": "team_1"},
		})
	})

	hooks, err := c.ListWebhooks(context.Background(), client.ListWebhooksParams{TeamID: "team_1", ProjectID: "prj_1"})
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "hook_1", hooks[0].ID)
	assert.Equal(t, []event.Type{event.DeploymentReady}, hooks[0].Events)
}

func TestCreateWebhook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/webhooks", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("teamId"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com/h", body["url"])
		assert.Equal(t, []any{"deployment.created", "deployment.error"}, body["events"])
		assert.Equal(t, []any{"prj_1"}, body["projectIds"])
		assert.NotContains(t, body, "TeamID")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "hook_2", "url": body["url"], "events": body["events"], "secret": "s3cret", "createdAt": 1,
		})
	})

	hook, err := c.CreateWebhook(context.Background(), client.CreateWebhookParams{
		URL:        "https://example.com/h",
		Events:     []event.Type{event.DeploymentCreated, event.DeploymentError},
		ProjectIDs: []string{"prj_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hook_2", hook.ID)
	assert.Equal(t, "s3cret", hook.Secret)
}

func TestCreateWebhookValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.CreateWebhook(context.Background(), client.CreateWebhookParams{Events: []event.Type{event.DomainCreated}})
	assert.ErrorIs(t, err, client.ErrMissingWebhookURL)

	_, err = c.CreateWebhook(context.Background(), client.CreateWebhookParams{URL: "https://x"})
	assert.ErrorIs(t, err, client.ErrMissingWebhookEvents)

	assert.ErrorIs(t, c.DeleteWebhook(context.Background(), client.DeleteWebhookParams{}), client.ErrMissingWebhookID)
}

func TestDeleteWebhook(t *testing.T) {
	var called bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/webhooks/hook_1", r.URL.Path)
		assert.Equal(t, "team_1", r.URL.Query().Get("teamId"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteWebhook(context.Background(), client.DeleteWebhookParams{TeamID: "team_1", WebhookID: "hook_1"}))
	assert.True(t, called)
}

func TestCreateCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/deployments/dpl_1/checks", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "e2e", body["name"])
		assert.Equal(t, true, body["blocking"])
		assert.NotContains(t, body, "DeploymentID")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chk_1", "name": "e2e", "status": "registered", "blocking": true, "deploymentId": "dpl_1",
		})
	})

	check, err := c.CreateCheck(context.Background(), client.CreateCheckParams{
		DeploymentID: "dpl_1",
		Name:         "e2e",
		Blocking:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "chk_1", check.ID)
	assert.Equal(t, "registered", check.Status)

	_, err = c.CreateCheck(context.Background(), client.CreateCheckParams{Name: "x"})
	assert.ErrorIs(t, err, client.ErrMissingDeploymentID)
	_, err = c.CreateCheck(context.Background(), client.CreateCheckParams{DeploymentID: "dpl_1"})
	assert.ErrorIs(t, err, client.ErrMissingCheckName)
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"forbidden","message":"Not authorized"}}`))
	})

	_, err := c.ListWebhooks(context.Background(), client.ListWebhooksParams{})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode())
	assert.Equal(t, "forbidden", apiErr.Code)
	assert.Equal(t, "Not authorized", apiErr.Message)
	assert.False(t, client.IsNotFound(err))
}

func TestAPIErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.DeleteWebhook(context.Background(), client.DeleteWebhookParams{WebhookID: "gone"})
	assert.True(t, client.IsNotFound(err))
	assert.Contains(t, err.Error(), "Not Found")
}

func TestRateLimitRespectsContext(t *testing.T) {
	l := ratelimit.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, client.WithRateLimit(l, "tok_test", 1))

	_, err := c.ListWebhooks(context.Background(), client.ListWebhooksParams{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListWebhooks(ctx, client.ListWebhooksParams{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitResetPausesKey(t *testing.T) {
	l := ratelimit.New()
	var calls atomic.Int32
	reset := time.Now().Add(time.Hour).Unix()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"Too many requests"}}`))
	}, client.WithRateLimit(l, "tok_test", 100))

	_, err := c.ListWebhooks(context.Background(), client.ListWebhooksParams{})
	require.Error(t, err)
	assert.False(t, l.Allow("tok_test", 100))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListWebhooks(ctx, client.ListWebhooksParams{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}
