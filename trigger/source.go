package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/client"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/internal/entity"
	"github.com/xraph/vercel/observability"
	"github.com/xraph/vercel/signature"
)

// Ingress errors.
var (
	ErrInvalidSignature = errors.New("trigger: invalid webhook signature")
	ErrNoTriggers       = errors.New("trigger: no triggers given")
	ErrNoCallbackURL    = errors.New("trigger: callback url builder is required")
	ErrDispatchFailed   = errors.New("trigger: dispatch failed")
)

// Outcome statuses.
const (
	StatusDispatched   = "dispatched"
	StatusDuplicate    = "duplicate"
	StatusFiltered     = "filtered"
	StatusInvalid      = "invalid"
	StatusDeadLettered = "dead_lettered"
)

// WebhookManager creates and deletes Vercel webhooks. *client.Client
// satisfies it, as does the integration facade.
type WebhookManager interface {
	CreateWebhook(ctx context.Context, p client.CreateWebhookParams) (*client.Webhook, error)
	DeleteWebhook(ctx context.Context, p client.DeleteWebhookParams) error
}

// CallbackURL returns the public URL Vercel should deliver a registration's
// events to.
type CallbackURL func(regID id.ID) string

// Delivery is a verified, validated event handed to a Dispatcher.
type Delivery struct {
	Registration *Registration
	Event        *event.WebhookEvent
	Spec         catalog.Specification
	Properties   []catalog.Property

	// Triggers are the in-process triggers matching the event. It is empty
	// when the process has not re-registered since a restart.
	Triggers []*Trigger
}

// Dispatcher receives accepted events.
type Dispatcher interface {
	Dispatch(ctx context.Context, d *Delivery) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, d *Delivery) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, d *Delivery) error { return f(ctx, d) }

// Outcome describes what happened to a delivery.
type Outcome struct {
	Status     string             `json:"status"`
	EventID    string             `json:"event_id,omitempty"`
	EventType  event.Type         `json:"event_type,omitempty"`
	Properties []catalog.Property `json:"properties,omitempty"`
	DLQID      string             `json:"dlq_id,omitempty"`
}

// Source is the webhook event source for Vercel triggers.
type Source struct {
	regs       Store
	events     event.Store
	dlq        *dlq.Service
	dispatcher Dispatcher
	validator  *catalog.Validator
	logger     *slog.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer

	registerMu sync.Mutex

	mu       sync.RWMutex
	triggers []*Trigger
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) { s.logger = l }
}

// WithMetrics records ingress metrics.
func WithMetrics(m *observability.Metrics) SourceOption {
	return func(s *Source) { s.metrics = m }
}

// WithTracer records ingress spans.
func WithTracer(t *observability.Tracer) SourceOption {
	return func(s *Source) { s.tracer = t }
}

// WithValidator replaces the default schema validator.
func WithValidator(v *catalog.Validator) SourceOption {
	return func(s *Source) { s.validator = v }
}

// NewSource creates a source. dlqSvc may be nil, in which case failed
// deliveries are only logged.
func NewSource(regs Store, events event.Store, dlqSvc *dlq.Service, dispatcher Dispatcher, opts ...SourceOption) *Source {
	s := &Source{
		regs:       regs,
		events:     events,
		dlq:        dlqSvc,
		dispatcher: dispatcher,
		validator:  catalog.DefaultValidator(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Triggers returns the in-process triggers registered so far.
func (s *Source) Triggers() []*Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.triggers)
}

// Register makes sure a Vercel webhook exists for every distinct Params key
// among triggers, covering all of that key's event types. Existing
// registrations are widened when new event types appear; Vercel webhooks
// cannot be edited, so widening creates a replacement and deletes the old
// webhook.
func (s *Source) Register(ctx context.Context, mgr WebhookManager, callback CallbackURL, triggers ...*Trigger) ([]*Registration, error) {
	if len(triggers) == 0 {
		return nil, ErrNoTriggers
	}
	if callback == nil {
		return nil, ErrNoCallbackURL
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	groups := make(map[string][]*Trigger)
	var keys []string
	for _, t := range triggers {
		k := t.Params.Key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], t)
	}

	out := make([]*Registration, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		types := make([]event.Type, 0, len(group))
		for _, t := range group {
			types = append(types, t.EventType())
		}
		types = mergeTypes(nil, types)

		reg, err := s.ensure(ctx, mgr, callback, k, group[0].Params, types)
		if err != nil {
			return out, err
		}
		out = append(out, reg)
	}

	s.mu.Lock()
	for _, t := range triggers {
		if !slices.Contains(s.triggers, t) {
			s.triggers = append(s.triggers, t)
		}
	}
	s.mu.Unlock()

	return out, nil
}

func (s *Source) ensure(ctx context.Context, mgr WebhookManager, callback CallbackURL, key string, params Params, types []event.Type) (*Registration, error) {
	existing, err := s.regs.GetRegistrationByKey(ctx, key)
	if err != nil && !errors.Is(err, ErrRegistrationNotFound) {
		return nil, fmt.Errorf("trigger: load registration %q: %w", key, err)
	}

	if existing == nil {
		reg := &Registration{
			Entity:     entity.New(),
			ID:         id.NewRegistrationID(),
			Key:        key,
			Params:     params,
			EventTypes: types,
		}
		hook, err := mgr.CreateWebhook(ctx, s.webhookParams(reg, callback))
		if err != nil {
			return nil, fmt.Errorf("trigger: create webhook for %q: %w", key, err)
		}
		reg.WebhookID = hook.ID
		reg.Secret = hook.Secret

		if err := s.regs.CreateRegistration(ctx, reg); err != nil {
			return nil, fmt.Errorf("trigger: store registration: %w", err)
		}
		s.metrics.AddRegistrations(1)
		s.logger.Info("webhook registered",
			"registration_id", reg.ID.String(),
			"webhook_id", reg.WebhookID,
			"key", key,
			"events", len(types),
		)
		return reg, nil
	}

	merged := mergeTypes(existing.EventTypes, types)
	if len(merged) == len(existing.EventTypes) {
		return existing, nil
	}

	oldWebhookID := existing.WebhookID
	existing.EventTypes = merged
	hook, err := mgr.CreateWebhook(ctx, s.webhookParams(existing, callback))
	if err != nil {
		return nil, fmt.Errorf("trigger: replace webhook for %q: %w", key, err)
	}
	existing.WebhookID = hook.ID
	existing.Secret = hook.Secret
	existing.Touch()

	if err := s.regs.UpdateRegistration(ctx, existing); err != nil {
		return nil, fmt.Errorf("trigger: update registration: %w", err)
	}

	err = mgr.DeleteWebhook(ctx, client.DeleteWebhookParams{TeamID: params.TeamID, WebhookID: oldWebhookID})
	if err != nil && !client.IsNotFound(err) {
		s.logger.Warn("failed to delete replaced webhook", "webhook_id", oldWebhookID, "error", err)
	}

	s.logger.Info("webhook widened",
		"registration_id", existing.ID.String(),
		"webhook_id", existing.WebhookID,
		"events", len(merged),
	)
	return existing, nil
}

func (s *Source) webhookParams(reg *Registration, callback CallbackURL) client.CreateWebhookParams {
	return client.CreateWebhookParams{
		TeamID:     reg.Params.TeamID,
		URL:        callback(reg.ID),
		Events:     reg.EventTypes,
		ProjectIDs: reg.Params.ProjectIDs,
	}
}

// Unregister deletes a registration and its Vercel webhook.
func (s *Source) Unregister(ctx context.Context, mgr WebhookManager, regID id.ID) error {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	reg, err := s.regs.GetRegistration(ctx, regID)
	if err != nil {
		return err
	}

	err = mgr.DeleteWebhook(ctx, client.DeleteWebhookParams{TeamID: reg.Params.TeamID, WebhookID: reg.WebhookID})
	if err != nil && !client.IsNotFound(err) {
		return fmt.Errorf("trigger: delete webhook %s: %w", reg.WebhookID, err)
	}

	if err := s.regs.DeleteRegistration(ctx, regID); err != nil {
		return err
	}
	s.metrics.AddRegistrations(-1)

	s.mu.Lock()
	s.triggers = slices.DeleteFunc(s.triggers, func(t *Trigger) bool { return t.Params.Key() == reg.Key })
	s.mu.Unlock()

	s.logger.Info("webhook unregistered", "registration_id", regID.String(), "webhook_id", reg.WebhookID)
	return nil
}

// Handle processes one webhook request. Signature failures and unknown
// registrations are rejected without side effects. Invalid payloads are
// dead-lettered and returned as *catalog.ValidationError. Dispatch failures
// are dead-lettered and reported through the outcome only, so Vercel does
// not redeliver them.
func (s *Source) Handle(ctx context.Context, regID id.ID, sig string, body []byte) (out *Outcome, err error) {
	ctx, span := s.tracer.StartIngressSpan(ctx, regID.String())
	defer func() {
		var eventID, eventType, status string
		if out != nil {
			eventID, eventType, status = out.EventID, string(out.EventType), out.Status
		}
		s.tracer.EndIngressSpan(span, eventID, eventType, status, err)
	}()

	reg, err := s.regs.GetRegistration(ctx, regID)
	if err != nil {
		if errors.Is(err, ErrRegistrationNotFound) {
			s.metrics.RecordRejected("unknown_registration")
		}
		return nil, err
	}

	if !signature.Verify(body, reg.Secret, sig) {
		s.metrics.RecordRejected("signature")
		return nil, ErrInvalidSignature
	}

	out, err = s.process(ctx, reg, body)
	if err == nil {
		return out, nil
	}

	reason := dlq.ReasonDispatchFailed
	if out.Status == StatusInvalid {
		reason = dlq.ReasonInvalidPayload
	}
	entry := &dlq.Entry{
		RegistrationID: reg.ID,
		EventID:        out.EventID,
		EventType:      string(out.EventType),
		Reason:         reason,
		Payload:        json.RawMessage(body),
	}
	if s.dlq != nil {
		if pushErr := s.dlq.Push(ctx, entry, err); pushErr != nil {
			s.logger.Error("failed to dead-letter delivery", "registration_id", regID.String(), "error", pushErr)
		} else {
			out.DLQID = entry.ID.String()
		}
	} else {
		s.logger.Error("delivery failed", "registration_id", regID.String(), "reason", reason, "error", err)
	}

	if reason == dlq.ReasonInvalidPayload {
		return out, err
	}
	out.Status = StatusDeadLettered
	return out, nil
}

// Replay reprocesses a dead-lettered delivery. The signature was verified
// when the entry was created. It implements dlq.Replayer.
func (s *Source) Replay(ctx context.Context, entry *dlq.Entry) error {
	reg, err := s.regs.GetRegistration(ctx, entry.RegistrationID)
	if err != nil {
		return err
	}
	_, err = s.process(ctx, reg, entry.Payload)
	return err
}

var _ dlq.Replayer = (*Source)(nil)

// process validates, dedupes, filters and dispatches a verified body. The
// returned outcome is never nil.
func (s *Source) process(ctx context.Context, reg *Registration, body []byte) (*Outcome, error) {
	evt, err := s.validator.ValidateEvent(body)
	if err != nil {
		out := peek(body)
		out.Status = StatusInvalid
		s.metrics.RecordEvent(string(out.EventType), observability.OutcomeInvalid)
		return out, err
	}

	out := &Outcome{EventID: evt.ID, EventType: evt.Type}

	rec := &event.Record{
		Entity:         entity.New(),
		ID:             evt.ID,
		Type:           evt.Type,
		RegistrationID: reg.ID,
		Body:           json.RawMessage(body),
	}
	if err := s.events.CreateEvent(ctx, rec); err != nil && !errors.Is(err, event.ErrDuplicateEvent) {
		return out, fmt.Errorf("trigger: record event: %w", err)
	}

	claimed, err := s.events.ClaimEvent(ctx, evt.ID)
	if err != nil {
		return out, fmt.Errorf("trigger: claim event: %w", err)
	}
	if !claimed {
		out.Status = StatusDuplicate
		s.metrics.RecordEvent(string(evt.Type), observability.OutcomeDuplicate)
		return out, nil
	}

	if !reg.Accepts(evt) {
		s.release(ctx, evt.ID)
		out.Status = StatusFiltered
		s.metrics.RecordEvent(string(evt.Type), observability.OutcomeFiltered)
		return out, nil
	}

	spec, err := catalog.Lookup(evt.Type)
	if err != nil {
		s.release(ctx, evt.ID)
		return out, err
	}
	props, err := spec.RunProperties(evt.Payload)
	if err != nil {
		s.release(ctx, evt.ID)
		return out, err
	}
	out.Properties = props

	d := &Delivery{
		Registration: reg,
		Event:        evt,
		Spec:         spec,
		Properties:   props,
		Triggers:     s.matching(evt),
	}
	if err := s.dispatcher.Dispatch(ctx, d); err != nil {
		s.release(ctx, evt.ID)
		s.metrics.RecordEvent(string(evt.Type), observability.OutcomeFailed)
		return out, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	if err := s.events.MarkEventDispatched(ctx, evt.ID); err != nil {
		s.logger.Warn("failed to mark event dispatched", "event_id", evt.ID, "error", err)
	}

	out.Status = StatusDispatched
	s.metrics.RecordEvent(string(evt.Type), observability.OutcomeDispatched)
	s.logger.Debug("event dispatched",
		"event_id", evt.ID,
		"type", string(evt.Type),
		"registration_id", reg.ID.String(),
		"triggers", len(d.Triggers),
	)
	return out, nil
}

// release drops the dispatch claim. A claim that cannot be dropped blocks
// redelivery until its lease runs out, so the failure is only logged.
func (s *Source) release(ctx context.Context, eventID string) {
	if err := s.events.ReleaseEvent(context.WithoutCancel(ctx), eventID); err != nil {
		s.logger.Warn("failed to release event claim", "event_id", eventID, "error", err)
	}
}

func (s *Source) matching(evt *event.WebhookEvent) []*Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Trigger
	for _, t := range s.triggers {
		if t.Matches(evt) {
			out = append(out, t)
		}
	}
	return out
}

// peek reads what it can of the envelope of an invalid body.
func peek(body []byte) *Outcome {
	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	_ = json.Unmarshal(body, &env)
	return &Outcome{EventID: env.ID, EventType: event.Type(env.Type)}
}
