package event

import "encoding/json"

// Payload is the type-dependent body of a WebhookEvent. The set of
// implementations is closed to this package.
type Payload interface {
	// Family reports which payload shape the value carries.
	Family() Family

	payload()
}

// User identifies the Vercel user that triggered the event.
type User struct {
	ID string `json:"id"`
}

// Team identifies the Vercel team scope, when the event happened inside one.
// Vercel may send a team object without an id.
type Team struct {
	ID *string `json:"id,omitempty"`
}

// Owner carries the identity fields shared by every payload family.
type Owner struct {
	User User  `json:"user"`
	Team *Team `json:"team,omitempty"`
}

// TeamID returns the team id, or "" for personal accounts.
func (o Owner) TeamID() string {
	if o.Team == nil || o.Team.ID == nil {
		return ""
	}
	return *o.Team.ID
}

// Deployment targets accepted by Vercel. A nil target means preview.
const (
	TargetProduction = "production"
	TargetStaging    = "staging"
)

// ProjectRef points at the project a deployment belongs to.
type ProjectRef struct {
	ID string `json:"id"`
}

// Deployment describes the deployment a deployment event is about.
type Deployment struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	URL          string         `json:"url"`
	InspectorURL string         `json:"inspectorUrl"`
	Meta         map[string]any `json:"meta"`
}

// Links are dashboard URLs back to the deployment and its project.
type Links struct {
	Deployment string `json:"deployment"`
	Project    string `json:"project"`
}

// DeploymentPayload is shared by all deployment.* events.
type DeploymentPayload struct {
	Owner

	Name       string     `json:"name"`
	Plan       string     `json:"plan"`
	URL        string     `json:"url"`
	Type       string     `json:"type"`
	Target     *string    `json:"target"`
	Regions    []string   `json:"regions"`
	Project    ProjectRef `json:"project"`
	Deployment Deployment `json:"deployment"`
	Links      Links      `json:"links"`
}

// Family implements Payload.
func (*DeploymentPayload) Family() Family { return FamilyDeployment }
func (*DeploymentPayload) payload()       {}

// DeploymentCreatedPayload adds the aliases assigned at creation time.
type DeploymentCreatedPayload struct {
	DeploymentPayload

	Alias []string `json:"alias"`
}

// Project describes a Vercel project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectPayload is shared by project.* events.
type ProjectPayload struct {
	Owner

	Project Project `json:"project"`
}

// Family implements Payload.
func (*ProjectPayload) Family() Family { return FamilyProject }
func (*ProjectPayload) payload()       {}

// Configuration describes an integration configuration. A nil Scopes means
// the field was absent; an empty one is re-emitted as [].
type Configuration struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes"`
}

// MarshalJSON implements json.Marshaler.
func (c Configuration) MarshalJSON() ([]byte, error) {
	out := struct {
		ID     string    `json:"id"`
		Scopes *[]string `json:"scopes,omitempty"`
	}{ID: c.ID}
	if c.Scopes != nil {
		out.Scopes = &c.Scopes
	}
	return json.Marshal(out)
}

// IntegrationConfigPayload is shared by integration-configuration.* events.
type IntegrationConfigPayload struct {
	Owner

	Configuration Configuration `json:"configuration"`
}

// Family implements Payload.
func (*IntegrationConfigPayload) Family() Family { return FamilyIntegrationConfig }
func (*IntegrationConfigPayload) payload()       {}

// Domain describes a domain added to an account.
type Domain struct {
	Name      string `json:"name"`
	Delegated bool   `json:"delegated"`
}

// DomainPayload is carried by domain.created.
type DomainPayload struct {
	Owner

	Domain Domain `json:"domain"`
}

// Family implements Payload.
func (*DomainPayload) Family() Family { return FamilyDomain }
func (*DomainPayload) payload()       {}

// NewPayload returns an empty payload of the concrete type t decodes into.
func NewPayload(t Type) (Payload, error) {
	switch t.Family() {
	case FamilyDeployment:
		if t == DeploymentCreated {
			return &DeploymentCreatedPayload{}, nil
		}
		return &DeploymentPayload{}, nil
	case FamilyProject:
		return &ProjectPayload{}, nil
	case FamilyIntegrationConfig:
		return &IntegrationConfigPayload{}, nil
	case FamilyDomain:
		return &DomainPayload{}, nil
	default:
		return nil, ErrUnknownType
	}
}
