package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/xraph/vercel/event"
)

// ErrInvalidPayload is wrapped by every ValidationError.
var ErrInvalidPayload = errors.New("catalog: payload validation failed")

// Issue is a single structural violation.
type Issue struct {
	// Path is a JSON pointer to the offending value ("" is the document root).
	Path string `json:"path"`

	// Message describes the violation.
	Message string `json:"message"`
}

// ValidationError lists every violation found in a webhook body.
type ValidationError struct {
	Type   event.Type `json:"type,omitempty"`
	Issues []Issue    `json:"issues"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		path := is.Path
		if path == "" {
			path = "/"
		}
		parts = append(parts, path+": "+is.Message)
	}
	prefix := "catalog: invalid webhook event"
	if e.Type != "" {
		prefix = "catalog: invalid " + string(e.Type) + " event"
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidPayload).
func (e *ValidationError) Unwrap() error { return ErrInvalidPayload }

// Paths returns the offending JSON pointers in sorted order.
func (e *ValidationError) Paths() []string {
	out := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		out = append(out, is.Path)
	}
	sort.Strings(out)
	return out
}

// Validator validates webhook bodies against the per-type schemas.
// It is safe for concurrent use.
type Validator struct {
	mu      sync.RWMutex
	cache   map[string]*jsonschema.Schema
	printer *message.Printer
}

// NewValidator creates a new schema validator.
func NewValidator() *Validator {
	return &Validator{
		cache:   make(map[string]*jsonschema.Schema),
		printer: message.NewPrinter(language.English),
	}
}

var defaultValidator = NewValidator()

// DefaultValidator returns the process-wide validator used by the registered
// specifications.
func DefaultValidator() *Validator { return defaultValidator }

// ValidateEvent checks a full webhook body and decodes it. All violations are
// reported in a single *ValidationError.
func (v *Validator) ValidateEvent(raw []byte) (*event.WebhookEvent, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &ValidationError{Issues: []Issue{{Message: "malformed JSON: " + err.Error()}}}
	}

	t := event.Type(typeTag(inst))
	key, schema := "event:"+string(t), eventSchema(t)
	if schema == nil {
		key, schema, t = "event:base", baseSchema(), ""
	}

	if err := v.validate(key, schema, t, inst); err != nil {
		return nil, err
	}
	if t == "" {
		// base schema passed but no variant exists for the tag
		return nil, &ValidationError{Issues: []Issue{{Path: "/type", Message: "unknown event type"}}}
	}

	evt, err := event.Decode(raw)
	if err != nil {
		return nil, &ValidationError{Type: t, Issues: []Issue{{Message: err.Error()}}}
	}
	return evt, nil
}

// ValidatePayload checks only the payload body of an event of type t.
func (v *Validator) ValidatePayload(t event.Type, raw []byte) error {
	schema := payloadSchema(t)
	if schema == nil {
		return &ValidationError{Issues: []Issue{{Path: "/type", Message: fmt.Sprintf("unknown event type %q", t)}}}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &ValidationError{Type: t, Issues: []Issue{{Message: "malformed JSON: " + err.Error()}}}
	}
	return v.validate("payload:"+string(t), schema, t, inst)
}

func (v *Validator) validate(key string, schema jsonSchema, t event.Type, inst any) error {
	compiled, err := v.compile(key, schema)
	if err != nil {
		return fmt.Errorf("catalog: schema compilation error: %w", err)
	}

	err = compiled.Validate(inst)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Type: t, Issues: []Issue{{Message: err.Error()}}}
	}

	out := &ValidationError{Type: t}
	v.collect(ve, &out.Issues)
	return out
}

// collect flattens the error tree into its leaves.
func (v *Validator) collect(ve *jsonschema.ValidationError, out *[]Issue) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			v.collect(c, out)
		}
		return
	}

	if req, ok := ve.ErrorKind.(*kind.Required); ok {
		for _, name := range req.Missing {
			*out = append(*out, Issue{
				Path:    pointer(append(append([]string{}, ve.InstanceLocation...), name)),
				Message: "required property is missing",
			})
		}
		return
	}

	*out = append(*out, Issue{
		Path:    pointer(ve.InstanceLocation),
		Message: ve.ErrorKind.LocalizedString(v.printer),
	})
}

// compile returns a compiled schema, using the cache for previously-seen keys.
func (v *Validator) compile(key string, schema jsonSchema) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := "vercel://schema/" + strings.ReplaceAll(key, ":", "/")

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return nil, fmt.Errorf("add schema resource: %w", addErr)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	v.cache[key] = compiled
	v.mu.Unlock()

	return compiled, nil
}

func typeTag(inst any) string {
	obj, ok := inst.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj["type"].(string)
	return s
}

func pointer(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	r := strings.NewReplacer("~", "~0", "/", "~1")
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(r.Replace(s))
	}
	return b.String()
}
