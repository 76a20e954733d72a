package catalog

import (
	"strconv"
	"strings"

	"github.com/xraph/vercel/event"
)

// Property is a display tuple summarising a payload.
type Property struct {
	Label string `json:"label"`
	Text  string `json:"text"`
	URL   string `json:"url,omitempty"`
}

// NormalizeURL makes sure a deployment host carries an explicit https scheme.
func NormalizeURL(u string) string {
	if strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}

// DeploymentProperties summarises a deployment payload.
func DeploymentProperties(p *event.DeploymentPayload) []Property {
	return []Property{
		{Label: "Project Name", Text: p.Deployment.Name, URL: p.Links.Project},
		{Label: "Deployment ID", Text: p.Deployment.ID, URL: p.Links.Deployment},
		{Label: "Application URL", Text: "View Application", URL: NormalizeURL(p.Deployment.URL)},
	}
}

// ProjectProperties summarises a project payload.
func ProjectProperties(p *event.ProjectPayload) []Property {
	return []Property{
		{Label: "Project ID", Text: p.Project.ID},
		{Label: "Project Name", Text: p.Project.Name},
	}
}

// IntegrationConfigProperties summarises an integration configuration payload.
func IntegrationConfigProperties(p *event.IntegrationConfigPayload) []Property {
	return []Property{
		{Label: "Configuration ID", Text: p.Configuration.ID},
	}
}

// DomainProperties summarises a domain payload.
func DomainProperties(p *event.DomainPayload) []Property {
	return []Property{
		{Label: "Domain Name", Text: p.Domain.Name},
		{Label: "Domain Delegated", Text: strconv.FormatBool(p.Domain.Delegated)},
	}
}
