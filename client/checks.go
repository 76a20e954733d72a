package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Check is a deployment check.
type Check struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path,omitempty"`
	Status        string `json:"status"`
	Conclusion    string `json:"conclusion,omitempty"`
	Blocking      bool   `json:"blocking"`
	DetailsURL    string `json:"detailsUrl,omitempty"`
	IntegrationID string `json:"integrationId"`
	DeploymentID  string `json:"deploymentId"`
	ExternalID    string `json:"externalId,omitempty"`
	Rerequestable bool   `json:"rerequestable,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
	StartedAt     int64  `json:"startedAt,omitempty"`
	CompletedAt   int64  `json:"completedAt,omitempty"`
}

// CreateCheckParams describes a new deployment check.
type CreateCheckParams struct {
	TeamID        string `json:"-"`
	DeploymentID  string `json:"-"`
	Name          string `json:"name"`
	Path          string `json:"path,omitempty"`
	Blocking      bool   `json:"blocking"`
	DetailsURL    string `json:"detailsUrl,omitempty"`
	ExternalID    string `json:"externalId,omitempty"`
	Rerequestable bool   `json:"rerequestable,omitempty"`
}

// Errors returned before a check request is sent.
var (
	ErrMissingDeploymentID = errors.New("client: deployment id is required")
	ErrMissingCheckName    = errors.New("client: check name is required")
)

// CreateCheck creates a check on a deployment.
func (c *Client) CreateCheck(ctx context.Context, p CreateCheckParams) (*Check, error) {
	if p.DeploymentID == "" {
		return nil, ErrMissingDeploymentID
	}
	if p.Name == "" {
		return nil, ErrMissingCheckName
	}

	path := "/v1/deployments/" + url.PathEscape(p.DeploymentID) + "/checks"
	var out Check
	if err := c.do(ctx, http.MethodPost, path, teamQuery(p.TeamID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
