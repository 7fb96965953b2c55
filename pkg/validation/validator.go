package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/snapshot"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBaseURL = "https://schemas.snapshot-safe-sync.local/"

// Error lists every schema violation found in a submission
type Error struct {
	Category string
	Errors   []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed schema validation: %s", e.Category, strings.Join(e.Errors, "; "))
}

// Validator checks submissions against the envelope schema and the schema of their category
type Validator struct {
	envelope   *jsonschema.Schema
	categories map[string]*jsonschema.Schema
}

// NewValidator compiles the embedded schemas
func NewValidator() (*Validator, error) {
	envelope, err := compileSchema("envelope.json")
	if err != nil {
		return nil, err
	}

	v := &Validator{
		envelope:   envelope,
		categories: make(map[string]*jsonschema.Schema),
	}
	for _, primaryType := range snapshot.SupportedPrimaryTypes() {
		schema, err := compileSchema(strings.ToLower(primaryType) + ".json")
		if err != nil {
			return nil, err
		}
		v.categories[primaryType] = schema
	}
	return v, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFiles.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	ref := schemaBaseURL + name

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(ref, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
	}
	schema, err := c.Compile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return schema, nil
}

// Validate checks payload for the given category, returning *Error on schema violations
func (v *Validator) Validate(category string, payload *types.SubmissionPayload) error {
	schema, ok := v.categories[category]
	if !ok {
		return fmt.Errorf("%w: %q", snapshot.ErrUnknownCategory, category)
	}
	if payload == nil {
		return &Error{Category: category, Errors: []string{"payload is empty"}}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	var problems []string
	if err := v.envelope.Validate(doc); err != nil {
		problems = append(problems, flatten(err)...)
	}

	var message interface{}
	if data, ok := doc["data"].(map[string]interface{}); ok {
		message = data["message"]
		if declared, ok := data["types"].(map[string]interface{}); ok {
			if _, ok := declared[category]; !ok {
				problems = append(problems, fmt.Sprintf("/data/types: missing definition of %s", category))
			}
		}
	}
	if err := schema.Validate(message); err != nil {
		problems = append(problems, prefix(flatten(err), "/data/message")...)
	}

	if len(problems) > 0 {
		return &Error{Category: category, Errors: problems}
	}
	return nil
}

// flatten turns a validation error tree into one line per failing leaf
func flatten(err error) []string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", location, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	sort.Strings(out)
	return out
}

func prefix(lines []string, root string) []string {
	for i, line := range lines {
		if strings.HasPrefix(line, "/: ") {
			lines[i] = root + line[1:]
			continue
		}
		lines[i] = root + line
	}
	return lines
}
