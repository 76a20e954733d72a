package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/xraph/vercel/event"
)

// Webhook is a webhook registered with Vercel.
type Webhook struct {
	ID         string       `json:"id"`
	URL        string       `json:"url"`
	Events     []event.Type `json:"events"`
	ProjectIDs []string     `json:"projectIds,omitempty"`
	OwnerID    string       `json:"ownerId"`

	// Secret is only returned when the webhook is created.
	Secret string `json:"secret,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// ListWebhooksParams filters ListWebhooks.
type ListWebhooksParams struct {
	TeamID    string
	ProjectID string
}

// CreateWebhookParams describes a new webhook.
type CreateWebhookParams struct {
	TeamID     string       `json:"-"`
	URL        string       `json:"url"`
	Events     []event.Type `json:"events"`
	ProjectIDs []string     `json:"projectIds,omitempty"`
}

// DeleteWebhookParams identifies the webhook to delete.
type DeleteWebhookParams struct {
	TeamID    string
	WebhookID string
}

// Errors returned before a webhook request is sent.
var (
	ErrMissingWebhookURL    = errors.New("client: webhook url is required")
	ErrMissingWebhookEvents = errors.New("client: at least one webhook event is required")
	ErrMissingWebhookID     = errors.New("client: webhook id is required")
)

// ListWebhooks returns the webhooks visible to the token.
func (c *Client) ListWebhooks(ctx context.Context, p ListWebhooksParams) ([]Webhook, error) {
	q := teamQuery(p.TeamID)
	if p.ProjectID != "" {
		q.Set("projectId", p.ProjectID)
	}

	var out []Webhook
	if err := c.do(ctx, http.MethodGet, "/v1/webhooks", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWebhook registers a webhook. The returned Webhook carries the
// signing secret.
func (c *Client) CreateWebhook(ctx context.Context, p CreateWebhookParams) (*Webhook, error) {
	if p.URL == "" {
		return nil, ErrMissingWebhookURL
	}
	if len(p.Events) == 0 {
		return nil, ErrMissingWebhookEvents
	}

	var out Webhook
	if err := c.do(ctx, http.MethodPost, "/v1/webhooks", teamQuery(p.TeamID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWebhook removes a webhook.
func (c *Client) DeleteWebhook(ctx context.Context, p DeleteWebhookParams) error {
	if p.WebhookID == "" {
		return ErrMissingWebhookID
	}
	return c.do(ctx, http.MethodDelete, "/v1/webhooks/"+url.PathEscape(p.WebhookID), teamQuery(p.TeamID), nil, nil)
}
