package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaResource = "warden.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// SchemaValidator validates raw configuration against the generated JSON Schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator creates a new schema validator. The schema is compiled once per process.
func NewSchemaValidator() (*SchemaValidator, error) {
	schemaOnce.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			schemaErr = fmt.Errorf("failed to generate config schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaResource, bytes.NewReader(data)); err != nil {
			schemaErr = fmt.Errorf("failed to add config schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaResource)
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return &SchemaValidator{schema: compiledSchema}, nil
}

// Validate validates configuration data against the schema.
// It accepts anything that can be marshaled to JSON.
func (v *SchemaValidator) Validate(configData interface{}) error {
	jsonData, err := json.Marshal(configData)
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON for validation: %w", err)
	}

	var dataToValidate interface{}
	if err := json.Unmarshal(jsonData, &dataToValidate); err != nil {
		return fmt.Errorf("failed to unmarshal JSON for validation: %w", err)
	}

	if err := v.schema.Validate(dataToValidate); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			var errorMessages []string
			collectErrors(validationErr, &errorMessages)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(errorMessages, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// collectErrors recursively collects all validation errors into a slice
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
