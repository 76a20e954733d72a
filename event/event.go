package event

import (
	"encoding/json"
	"fmt"
)

// WebhookEvent is a single Vercel webhook delivery. The concrete Payload
// type is selected by Type.
type WebhookEvent struct {
	// ID is Vercel's identifier for the event. Redeliveries reuse it.
	ID string `json:"id"`

	// CreatedAt is the event time in epoch milliseconds.
	CreatedAt int64 `json:"createdAt"`

	// Region is the Vercel region that emitted the event. It is nil when
	// the body had no region.
	Region *string `json:"region,omitempty"`

	// Type is the event type tag.
	Type Type `json:"type"`

	// Payload is the type-dependent event body.
	Payload Payload `json:"payload"`
}

type envelope struct {
	ID        string          `json:"id"`
	CreatedAt int64           `json:"createdAt"`
	Region    *string         `json:"region,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode parses a raw webhook body into a WebhookEvent. It only performs a
// structural decode; use catalog.Validator to check the body against the
// event type's schema first.
func Decode(raw []byte) (*WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("event: decode envelope: %w", err)
	}

	t, err := ParseType(env.Type)
	if err != nil {
		return nil, err
	}

	p, err := DecodePayload(t, env.Payload)
	if err != nil {
		return nil, err
	}

	return &WebhookEvent{
		ID:        env.ID,
		CreatedAt: env.CreatedAt,
		Region:    env.Region,
		Type:      t,
		Payload:   p,
	}, nil
}

// DecodePayload decodes the payload body of an event of type t.
func DecodePayload(t Type, raw []byte) (Payload, error) {
	p, err := NewPayload(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("event: decode %s payload: %w", t, err)
	}
	return p, nil
}

// MarshalJSON implements json.Marshaler. It re-emits the envelope so that a
// decoded event validates again against its own schema.
func (e WebhookEvent) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event: marshal %s: nil payload", e.Type)
	}
	if e.Payload.Family() != e.Type.Family() {
		return nil, fmt.Errorf("event: marshal %s: %T payload", e.Type, e.Payload)
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(envelope{
		ID:        e.ID,
		CreatedAt: e.CreatedAt,
		Region:    e.Region,
		Type:      string(e.Type),
		Payload:   raw,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *WebhookEvent) UnmarshalJSON(raw []byte) error {
	decoded, err := Decode(raw)
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

// TeamID returns the team scope of the event, or "" for personal accounts.
func (e *WebhookEvent) TeamID() string {
	switch p := e.Payload.(type) {
	case *DeploymentPayload:
		return p.TeamID()
	case *DeploymentCreatedPayload:
		return p.TeamID()
	case *ProjectPayload:
		return p.TeamID()
	case *IntegrationConfigPayload:
		return p.TeamID()
	case *DomainPayload:
		return p.TeamID()
	default:
		return ""
	}
}

// ProjectID returns the project the event concerns, or "" for families
// that are not project scoped.
func (e *WebhookEvent) ProjectID() string {
	switch p := e.Payload.(type) {
	case *DeploymentPayload:
		return p.Project.ID
	case *DeploymentCreatedPayload:
		return p.Project.ID
	case *ProjectPayload:
		return p.Project.ID
	default:
		return ""
	}
}
