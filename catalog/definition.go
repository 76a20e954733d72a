package catalog

import "encoding/json"

// WebhookDefinition is the exported, documentation-oriented view of an
// event specification.
type WebhookDefinition struct {
	// Name is the Vercel event type tag, e.g. "deployment.created".
	Name string `json:"name"`

	// Title is the human-readable trigger title.
	Title string `json:"title"`

	// Source is the event origin shown next to runs.
	Source string `json:"source"`

	// Icon is the integration icon identifier.
	Icon string `json:"icon"`

	// Group is the payload family, e.g. "deployment".
	Group string `json:"group"`

	// Schema is the JSON Schema a delivery of this type must satisfy.
	Schema json.RawMessage `json:"schema,omitempty"`

	// Examples are sample deliveries for documentation and testing.
	Examples []json.RawMessage `json:"examples,omitempty"`
}
