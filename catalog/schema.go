package catalog

import (
	"encoding/json"

	"github.com/xraph/vercel/event"
)

// Schemas are assembled from shared shapes the same way Vercel documents
// them: an envelope around one of four payload families. Unknown properties
// are allowed everywhere.

type jsonSchema = map[string]any

func object(required []string, props jsonSchema) jsonSchema {
	s := jsonSchema{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str() jsonSchema { return jsonSchema{"type": "string"} }

func strArray() jsonSchema {
	return jsonSchema{"type": "array", "items": str()}
}

// extend returns a copy of base with extra properties, required or not.
func extend(base jsonSchema, required []string, props jsonSchema) jsonSchema {
	merged := jsonSchema{}
	for k, v := range base["properties"].(jsonSchema) {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	var req []string
	if r, ok := base["required"].([]string); ok {
		req = append(req, r...)
	}
	req = append(req, required...)
	return object(req, merged)
}

func ownerShape() jsonSchema {
	return object([]string{"user"}, jsonSchema{
		"user": object([]string{"id"}, jsonSchema{"id": str()}),
		"team": object(nil, jsonSchema{"id": str()}),
	})
}

func deploymentShape() jsonSchema {
	return extend(ownerShape(),
		[]string{"name", "plan", "url", "type", "target", "regions", "project", "deployment", "links"},
		jsonSchema{
			"name":    str(),
			"plan":    str(),
			"url":     str(),
			"type":    str(),
			"target":  jsonSchema{"enum": []any{event.TargetProduction, event.TargetStaging, nil}},
			"regions": strArray(),
			"project": object([]string{"id"}, jsonSchema{"id": str()}),
			"deployment": object(
				[]string{"id", "name", "url", "inspectorUrl", "meta"},
				jsonSchema{
					"id":           str(),
					"name":         str(),
					"url":          str(),
					"inspectorUrl": str(),
					"meta":         jsonSchema{"type": "object"},
				}),
			"links": object([]string{"deployment", "project"}, jsonSchema{
				"deployment": str(),
				"project":    str(),
			}),
		})
}

func projectShape() jsonSchema {
	return extend(ownerShape(), []string{"project"}, jsonSchema{
		"project": object([]string{"id", "name"}, jsonSchema{
			"id":   str(),
			"name": str(),
		}),
	})
}

func integrationConfigShape(requireScopes bool) jsonSchema {
	required := []string{"id"}
	if requireScopes {
		required = append(required, "scopes")
	}
	return extend(ownerShape(), []string{"configuration"}, jsonSchema{
		"configuration": object(required, jsonSchema{
			"id":     str(),
			"scopes": strArray(),
		}),
	})
}

func domainShape() jsonSchema {
	return extend(ownerShape(), []string{"domain"}, jsonSchema{
		"domain": object([]string{"name", "delegated"}, jsonSchema{
			"name":      str(),
			"delegated": jsonSchema{"type": "boolean"},
		}),
	})
}

// payloadSchema returns the schema of the payload body for t, or nil when t
// is not a recognised type.
func payloadSchema(t event.Type) jsonSchema {
	switch t {
	case event.DeploymentCreated:
		return extend(deploymentShape(), []string{"alias"}, jsonSchema{"alias": strArray()})
	case event.DeploymentSucceeded, event.DeploymentReady, event.DeploymentCanceled, event.DeploymentError:
		return deploymentShape()
	case event.ProjectCreated, event.ProjectRemoved:
		return projectShape()
	case event.IntegrationConfigScopeChangeConfirmed:
		return integrationConfigShape(true)
	case event.IntegrationConfigRemoved, event.IntegrationConfigPermissionUpgraded:
		return integrationConfigShape(false)
	case event.DomainCreated:
		return domainShape()
	default:
		return nil
	}
}

func envelope(typeSchema, payload jsonSchema) jsonSchema {
	return object([]string{"id", "createdAt", "type", "payload"}, jsonSchema{
		"id":        str(),
		"createdAt": jsonSchema{"type": "integer"},
		"region":    str(),
		"type":      typeSchema,
		"payload":   payload,
	})
}

// eventSchema returns the full webhook event schema for t.
func eventSchema(t event.Type) jsonSchema {
	p := payloadSchema(t)
	if p == nil {
		return nil
	}
	return envelope(jsonSchema{"const": string(t)}, p)
}

// baseSchema checks the envelope only. It is used when the type tag itself
// is not recognised so the remaining envelope errors are still reported.
func baseSchema() jsonSchema {
	tags := make([]any, 0, len(event.Types()))
	for _, t := range event.Types() {
		tags = append(tags, string(t))
	}
	return envelope(jsonSchema{"type": "string", "enum": tags}, jsonSchema{"type": "object"})
}

// Schema returns the JSON Schema of a full webhook event of type t.
func Schema(t event.Type) json.RawMessage {
	s := eventSchema(t)
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return raw
}
