package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaID = "https://grovetools.dev/warden/state.schema.json"

var (
	compileOnce    sync.Once
	compiledSchema *validator.Schema
	compileErr     error
)

// GenerateSchema returns the JSON Schema of the state document, reflected
// from SessionState. Unknown keys are allowed so older binaries keep
// accepting documents written by newer ones.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}

	schema := r.Reflect(&SessionState{})
	schema.ID = jsonschema.ID(schemaID)
	schema.Title = "Warden Session State"
	schema.Description = "Persisted workflow state of one project."

	return json.MarshalIndent(schema, "", "  ")
}

func compiled() (*validator.Schema, error) {
	compileOnce.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			compileErr = fmt.Errorf("generate state schema: %w", err)
			return
		}

		compiler := validator.NewCompiler()
		if err := compiler.AddResource(schemaID, bytes.NewReader(data)); err != nil {
			compileErr = fmt.Errorf("add state schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaID)
	})
	return compiledSchema, compileErr
}

// ValidateDocument checks raw JSON against the state schema.
func ValidateDocument(data []byte) error {
	schema, err := compiled()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode state document: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*validator.ValidationError); ok {
			var messages []string
			collectErrors(validationErr, &messages)
			return fmt.Errorf("state schema validation failed:\n%s", strings.Join(messages, "\n"))
		}
		return fmt.Errorf("state schema validation failed: %w", err)
	}
	return nil
}

// collectErrors recursively collects all validation errors into a slice
func collectErrors(err *validator.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
