// Package trigger binds event specifications to Vercel webhooks and turns
// signed webhook deliveries into dispatched events.
package trigger

import (
	"slices"
	"sort"
	"strings"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/event"
)

// Params scopes a trigger to a team and, optionally, a set of projects.
// An empty TeamID means the personal account of the token owner.
type Params struct {
	TeamID     string   `json:"team_id,omitempty"`
	ProjectIDs []string `json:"project_ids,omitempty"`
}

// Key identifies the webhook that serves these params. Triggers with equal
// keys share one Vercel webhook.
func (p Params) Key() string {
	team := p.TeamID
	if team == "" {
		team = "personal"
	}
	if len(p.ProjectIDs) == 0 {
		return team
	}
	projects := slices.Clone(p.ProjectIDs)
	sort.Strings(projects)
	projects = slices.Compact(projects)
	return team + ":" + strings.Join(projects, ",")
}

// Accepts reports whether evt falls inside the scope. Events that carry no
// project are only filtered by team.
func (p Params) Accepts(evt *event.WebhookEvent) bool {
	if p.TeamID != evt.TeamID() {
		return false
	}
	if len(p.ProjectIDs) == 0 {
		return true
	}
	projectID := evt.ProjectID()
	return projectID == "" || slices.Contains(p.ProjectIDs, projectID)
}

// Trigger subscribes to one event type within a scope.
type Trigger struct {
	Spec   catalog.Specification
	Params Params
}

// New creates a trigger.
func New(spec catalog.Specification, params Params) *Trigger {
	return &Trigger{Spec: spec, Params: params}
}

// EventType returns the subscribed event type.
func (t *Trigger) EventType() event.Type { return t.Spec.Name() }

// Matches reports whether evt should fire the trigger.
func (t *Trigger) Matches(evt *event.WebhookEvent) bool {
	return evt.Type == t.Spec.Name() && t.Params.Accepts(evt)
}

// mergeTypes returns the union of a and b in declaration order.
func mergeTypes(a, b []event.Type) []event.Type {
	seen := make(map[event.Type]bool, len(a)+len(b))
	for _, t := range a {
		seen[t] = true
	}
	for _, t := range b {
		seen[t] = true
	}
	out := make([]event.Type, 0, len(seen))
	for _, t := range event.Types() {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}
