package catalog

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/xraph/vercel/event"
)

//go:embed examples/*.json
var exampleFS embed.FS

// Example returns the bundled sample delivery for t.
func Example(t event.Type) (json.RawMessage, error) {
	raw, err := exampleFS.ReadFile("examples/" + string(t) + ".json")
	if err != nil {
		return nil, fmt.Errorf("catalog: example for %s: %w", t, err)
	}
	return raw, nil
}

func mustExample(t event.Type) json.RawMessage {
	raw, err := Example(t)
	if err != nil {
		panic(err)
	}
	return raw
}
