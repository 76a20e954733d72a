package vercel

import (
	"context"

	"github.com/xraph/vercel/client"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/run"
)

type taskRunner func(ctx context.Context, key string, fn TaskFunc, opts *run.Options, onError run.ErrorCallback) (any, error)

// UpdateWebhookParams replaces an existing webhook.
type UpdateWebhookParams struct {
	TeamID     string
	WebhookID  string
	URL        string
	Events     []event.Type
	ProjectIDs []string
}

// Webhooks manages Vercel webhooks as run tasks.
type Webhooks struct {
	runTask taskRunner
}

// List returns the webhooks visible to the bound connection.
func (w *Webhooks) List(ctx context.Context, key string, p client.ListWebhooksParams) ([]client.Webhook, error) {
	res, err := w.runTask(ctx, key, func(ctx context.Context, c *client.Client, _ *run.Task, _ run.IO) (any, error) {
		return c.ListWebhooks(ctx, p)
	}, &run.Options{Name: "List Webhooks"}, nil)
	if err != nil {
		return nil, err
	}
	return run.As[[]client.Webhook](res)
}

// Create registers a webhook.
func (w *Webhooks) Create(ctx context.Context, key string, p client.CreateWebhookParams) (*client.Webhook, error) {
	res, err := w.runTask(ctx, key, func(ctx context.Context, c *client.Client, _ *run.Task, _ run.IO) (any, error) {
		return c.CreateWebhook(ctx, p)
	}, &run.Options{Name: "Create Webhook"}, nil)
	if err != nil {
		return nil, err
	}
	return run.As[*client.Webhook](res)
}

// Delete removes a webhook.
func (w *Webhooks) Delete(ctx context.Context, key string, p client.DeleteWebhookParams) error {
	_, err := w.runTask(ctx, key, func(ctx context.Context, c *client.Client, _ *run.Task, _ run.IO) (any, error) {
		return nil, c.DeleteWebhook(ctx, p)
	}, &run.Options{Name: "Delete Webhook"}, nil)
	return err
}

// Update replaces a webhook. Vercel webhooks cannot be edited, so the
// replacement is created first and the old webhook deleted after, each as
// its own task so a retried run does not repeat a finished step.
func (w *Webhooks) Update(ctx context.Context, key string, p UpdateWebhookParams) (*client.Webhook, error) {
	if p.WebhookID == "" {
		return nil, client.ErrMissingWebhookID
	}

	created, err := w.Create(ctx, key+"-create", client.CreateWebhookParams{
		TeamID:     p.TeamID,
		URL:        p.URL,
		Events:     p.Events,
		ProjectIDs: p.ProjectIDs,
	})
	if err != nil {
		return nil, err
	}

	err = w.Delete(ctx, key+"-delete", client.DeleteWebhookParams{
		TeamID:    p.TeamID,
		WebhookID: p.WebhookID,
	})
	if err != nil && !client.IsNotFound(err) {
		return nil, err
	}
	return created, nil
}

// Checks manages deployment checks as run tasks.
type Checks struct {
	runTask taskRunner
}

// Create adds a check to a deployment.
func (c *Checks) Create(ctx context.Context, key string, p client.CreateCheckParams) (*client.Check, error) {
	res, err := c.runTask(ctx, key, func(ctx context.Context, cl *client.Client, _ *run.Task, _ run.IO) (any, error) {
		return cl.CreateCheck(ctx, p)
	}, &run.Options{Name: "Create Check"}, nil)
	if err != nil {
		return nil, err
	}
	return run.As[*client.Check](res)
}

// ── Shortcuts ──────────────────────────────────

// ListWebhooks is Webhooks.List.
func (v *Vercel) ListWebhooks(ctx context.Context, key string, p client.ListWebhooksParams) ([]client.Webhook, error) {
	return v.Webhooks.List(ctx, key, p)
}

// CreateWebhook is Webhooks.Create.
func (v *Vercel) CreateWebhook(ctx context.Context, key string, p client.CreateWebhookParams) (*client.Webhook, error) {
	return v.Webhooks.Create(ctx, key, p)
}

// DeleteWebhook is Webhooks.Delete.
func (v *Vercel) DeleteWebhook(ctx context.Context, key string, p client.DeleteWebhookParams) error {
	return v.Webhooks.Delete(ctx, key, p)
}

// UpdateWebhook is Webhooks.Update.
func (v *Vercel) UpdateWebhook(ctx context.Context, key string, p UpdateWebhookParams) (*client.Webhook, error) {
	return v.Webhooks.Update(ctx, key, p)
}

// CreateCheck is Checks.Create.
func (v *Vercel) CreateCheck(ctx context.Context, key string, p client.CreateCheckParams) (*client.Check, error) {
	return v.Checks.Create(ctx, key, p)
}
