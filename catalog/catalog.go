// Package catalog holds the Vercel webhook event catalog: one schema, one
// property extractor and one trigger specification per event type.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xraph/vercel/event"
)

// Metadata shared by every Vercel specification.
const (
	EventSource = "vercel.app"
	EventIcon   = "vercel"
)

// ErrSpecMismatch is returned when a payload does not belong to the family a
// specification was registered for. It indicates a wiring bug, not bad input.
var ErrSpecMismatch = errors.New("catalog: payload does not match specification")

// ErrSpecNotFound is returned by Lookup for unknown event types.
var ErrSpecNotFound = errors.New("catalog: no specification for event type")

// Specification binds an event type to its display metadata, examples and
// payload handling.
type Specification interface {
	Name() event.Type
	Title() string
	Source() string
	Icon() string
	Examples() []json.RawMessage

	// ParsePayload validates a payload body and decodes it.
	ParsePayload(raw json.RawMessage) (event.Payload, error)

	// RunProperties summarises a decoded payload for display.
	RunProperties(p event.Payload) ([]Property, error)

	// Definition exports the specification for documentation.
	Definition() WebhookDefinition
}

// EventSpecification is a Specification whose payload decodes into P.
type EventSpecification[P event.Payload] struct {
	name       event.Type
	title      string
	examples   []json.RawMessage
	properties func(P) []Property
	validator  *Validator
}

var _ Specification = (*EventSpecification[*event.ProjectPayload])(nil)

func newSpec[P event.Payload](t event.Type, title string, properties func(P) []Property) *EventSpecification[P] {
	return &EventSpecification[P]{
		name:       t,
		title:      title,
		examples:   []json.RawMessage{mustExample(t)},
		properties: properties,
		validator:  defaultValidator,
	}
}

// Name implements Specification.
func (s *EventSpecification[P]) Name() event.Type { return s.name }

// Title implements Specification.
func (s *EventSpecification[P]) Title() string { return s.title }

// Source implements Specification.
func (s *EventSpecification[P]) Source() string { return EventSource }

// Icon implements Specification.
func (s *EventSpecification[P]) Icon() string { return EventIcon }

// Examples implements Specification.
func (s *EventSpecification[P]) Examples() []json.RawMessage {
	out := make([]json.RawMessage, len(s.examples))
	copy(out, s.examples)
	return out
}

// ParsePayload implements Specification.
func (s *EventSpecification[P]) ParsePayload(raw json.RawMessage) (event.Payload, error) {
	return s.Parse(raw)
}

// Parse validates and decodes a payload body into P.
func (s *EventSpecification[P]) Parse(raw json.RawMessage) (P, error) {
	var zero P
	if err := s.validator.ValidatePayload(s.name, raw); err != nil {
		return zero, err
	}
	decoded, err := event.DecodePayload(s.name, raw)
	if err != nil {
		return zero, err
	}
	typed, ok := decoded.(P)
	if !ok {
		return zero, fmt.Errorf("%w: %s decodes to %T", ErrSpecMismatch, s.name, decoded)
	}
	return typed, nil
}

// RunProperties implements Specification.
func (s *EventSpecification[P]) RunProperties(p event.Payload) ([]Property, error) {
	typed, ok := p.(P)
	if !ok {
		return nil, fmt.Errorf("%w: %s given %T", ErrSpecMismatch, s.name, p)
	}
	return s.properties(typed), nil
}

// Properties summarises a payload of the specification's own type.
func (s *EventSpecification[P]) Properties(p P) []Property {
	return s.properties(p)
}

// Definition implements Specification.
func (s *EventSpecification[P]) Definition() WebhookDefinition {
	return WebhookDefinition{
		Name:     string(s.name),
		Title:    s.title,
		Source:   EventSource,
		Icon:     EventIcon,
		Group:    s.name.Family().String(),
		Schema:   Schema(s.name),
		Examples: s.Examples(),
	}
}

func createdDeploymentProperties(p *event.DeploymentCreatedPayload) []Property {
	return DeploymentProperties(&p.DeploymentPayload)
}

// Registered specifications, one per event type.
var (
	OnDeploymentCreated   = newSpec(event.DeploymentCreated, "On Deployment Created", createdDeploymentProperties)
	OnDeploymentSucceeded = newSpec(event.DeploymentSucceeded, "On Deployment Succeeded", DeploymentProperties)
	OnDeploymentReady     = newSpec(event.DeploymentReady, "On Deployment Ready", DeploymentProperties)
	OnDeploymentCanceled  = newSpec(event.DeploymentCanceled, "On Deployment Canceled", DeploymentProperties)
	OnDeploymentError     = newSpec(event.DeploymentError, "On Deployment Error", DeploymentProperties)

	OnProjectCreated = newSpec(event.ProjectCreated, "On Project Created", ProjectProperties)
	OnProjectRemoved = newSpec(event.ProjectRemoved, "On Project Removed", ProjectProperties)

	OnIntegrationConfigScopeChangeConfirmed = newSpec(event.IntegrationConfigScopeChangeConfirmed,
		"On Integration Config Scope Change Confirmed", IntegrationConfigProperties)
	OnIntegrationConfigRemoved = newSpec(event.IntegrationConfigRemoved,
		"On Integration Config Removed", IntegrationConfigProperties)
	OnIntegrationConfigPermissionUpgraded = newSpec(event.IntegrationConfigPermissionUpgraded,
		"On Integration Config Permission Upgraded", IntegrationConfigProperties)

	OnDomainCreated = newSpec(event.DomainCreated, "On Domain Created", DomainProperties)
)

var registry = func() map[event.Type]Specification {
	specs := []Specification{
		OnDeploymentCreated,
		OnDeploymentSucceeded,
		OnDeploymentReady,
		OnDeploymentCanceled,
		OnDeploymentError,
		OnProjectCreated,
		OnProjectRemoved,
		OnIntegrationConfigScopeChangeConfirmed,
		OnIntegrationConfigRemoved,
		OnIntegrationConfigPermissionUpgraded,
		OnDomainCreated,
	}
	m := make(map[event.Type]Specification, len(specs))
	for _, s := range specs {
		if _, dup := m[s.Name()]; dup {
			panic("catalog: duplicate specification for " + string(s.Name()))
		}
		m[s.Name()] = s
	}
	return m
}()

// Lookup returns the specification registered for t.
func Lookup(t event.Type) (Specification, error) {
	s, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSpecNotFound, t)
	}
	return s, nil
}

// Specifications returns every registered specification in event type order.
func Specifications() []Specification {
	out := make([]Specification, 0, len(registry))
	for _, t := range event.Types() {
		if s, ok := registry[t]; ok {
			out = append(out, s)
		}
	}
	return out
}
