package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xraph/vercel"
	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/client"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/run"
	"github.com/xraph/vercel/signature"
	"github.com/xraph/vercel/trigger"
)

// forwardedEvent is the body POSTed to FORWARD_URL.
type forwardedEvent struct {
	RegistrationID string              `json:"registration_id"`
	Event          *event.WebhookEvent `json:"event"`
	Title          string              `json:"title"`
	Properties     []catalog.Property  `json:"properties"`
}

// dispatcher forwards accepted events and, for new deployments, creates a
// deployment check.
type dispatcher struct {
	logger      *slog.Logger
	http        *http.Client
	forwardURL  string
	secret      string
	integration *vercel.Vercel
	outputs     run.Store
	checkName   string
	maxRetries  uint64
}

var _ trigger.Dispatcher = (*dispatcher)(nil)

func (d *dispatcher) Dispatch(ctx context.Context, del *trigger.Delivery) error {
	d.logger.Info("vercel event",
		"event_id", del.Event.ID,
		"type", string(del.Event.Type),
		"registration_id", del.Registration.ID.String(),
		"triggers", len(del.Triggers),
	)

	// Steps share a run keyed by the event id. With an output store, a
	// redelivered or replayed event skips the steps that already succeeded.
	r := d.newRun(del.Event.ID)

	if d.forwardURL != "" {
		_, err := r.RunTask(ctx, "forward", func(ctx context.Context, _ *run.Task) (any, error) {
			if err := d.forward(ctx, del); err != nil {
				return nil, err
			}
			return true, nil
		}, &run.Options{Name: "Forward event"}, nil)
		if err != nil {
			return err
		}
	}
	if d.checkName != "" && del.Event.Type == event.DeploymentCreated {
		if err := d.createCheck(ctx, r, del); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatcher) newRun(eventID string) *run.Run {
	if d.integration != nil {
		return d.integration.NewRun(eventID, run.WithStore(d.outputs))
	}
	return run.New(eventID, run.WithStore(d.outputs), run.WithLogger(d.logger))
}

func (d *dispatcher) forward(ctx context.Context, del *trigger.Delivery) error {
	body, err := json.Marshal(forwardedEvent{
		RegistrationID: del.Registration.ID.String(),
		Event:          del.Event,
		Title:          del.Spec.Title(),
		Properties:     del.Properties,
	})
	if err != nil {
		return fmt.Errorf("forward: marshal: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.forwardURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if d.secret != "" {
			req.Header.Set(signature.Header, signature.Sign(body, d.secret))
		}

		resp, err := d.http.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
			return backoff.Permanent(fmt.Errorf("forward: status %d", resp.StatusCode))
		default:
			return fmt.Errorf("forward: status %d", resp.StatusCode)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, d.maxRetries), ctx))
}

// createCheck runs in the event's run, so a redelivered or replayed event
// reuses the check created the first time.
func (d *dispatcher) createCheck(ctx context.Context, r *run.Run, del *trigger.Delivery) error {
	payload, ok := del.Event.Payload.(*event.DeploymentCreatedPayload)
	if !ok {
		return errors.New("create check: unexpected payload type")
	}

	runner, err := d.integration.CloneForRun(r, d.integration.ID(), nil)
	if err != nil {
		return fmt.Errorf("create check: %w", err)
	}

	check, err := runner.CreateCheck(ctx, "create-check", client.CreateCheckParams{
		TeamID:       del.Event.TeamID(),
		DeploymentID: payload.Deployment.ID,
		Name:         d.checkName,
		Blocking:     true,
		DetailsURL:   payload.Links.Deployment,
		ExternalID:   del.Event.ID,
	})
	if err != nil {
		return fmt.Errorf("create check: %w", err)
	}

	d.logger.Info("deployment check created",
		"check_id", check.ID,
		"deployment_id", payload.Deployment.ID,
	)
	return nil
}
