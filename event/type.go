package event

import (
	"errors"
	"fmt"
)

// ErrUnknownType is returned when an event type tag is not one Vercel emits.
var ErrUnknownType = errors.New("event: unknown webhook event type")

// Type is a Vercel webhook event type tag.
type Type string

// Recognised Vercel webhook event types.
const (
	DeploymentCreated   Type = "deployment.created"
	DeploymentSucceeded Type = "deployment.succeeded"
	DeploymentReady     Type = "deployment.ready"
	DeploymentCanceled  Type = "deployment.canceled"
	DeploymentError     Type = "deployment.error"

	ProjectCreated Type = "project.created"
	ProjectRemoved Type = "project.removed"

	IntegrationConfigScopeChangeConfirmed Type = "integration-configuration.scope-change-confirmed"
	IntegrationConfigRemoved              Type = "integration-configuration.removed"
	IntegrationConfigPermissionUpgraded   Type = "integration-configuration.permission-upgraded"

	DomainCreated Type = "domain.created"
)

var allTypes = []Type{
	DeploymentCreated,
	DeploymentSucceeded,
	DeploymentReady,
	DeploymentCanceled,
	DeploymentError,
	ProjectCreated,
	ProjectRemoved,
	IntegrationConfigScopeChangeConfirmed,
	IntegrationConfigRemoved,
	IntegrationConfigPermissionUpgraded,
	DomainCreated,
}

// Types returns every recognised event type in declaration order.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// ParseType converts a raw tag into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the recognised tags.
func (t Type) Valid() bool {
	return t.Family() != FamilyUnknown
}

// String implements fmt.Stringer.
func (t Type) String() string { return string(t) }

// Family groups event types that share a payload shape.
type Family int

// Payload families.
const (
	FamilyUnknown Family = iota
	FamilyDeployment
	FamilyProject
	FamilyIntegrationConfig
	FamilyDomain
)

func (f Family) String() string {
	switch f {
	case FamilyDeployment:
		return "deployment"
	case FamilyProject:
		return "project"
	case FamilyIntegrationConfig:
		return "integration-configuration"
	case FamilyDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Family returns the payload family of t.
func (t Type) Family() Family {
	switch t {
	case DeploymentCreated, DeploymentSucceeded, DeploymentReady, DeploymentCanceled, DeploymentError:
		return FamilyDeployment
	case ProjectCreated, ProjectRemoved:
		return FamilyProject
	case IntegrationConfigScopeChangeConfirmed, IntegrationConfigRemoved, IntegrationConfigPermissionUpgraded:
		return FamilyIntegrationConfig
	case DomainCreated:
		return FamilyDomain
	default:
		return FamilyUnknown
	}
}
