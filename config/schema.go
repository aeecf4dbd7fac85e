package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for warden.yml. Extension
// sections are open, so unknown top-level keys are allowed.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		// Expand struct references instead of using $ref for cleaner base schema.
		ExpandedStruct: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Warden Configuration"
	schema.Description = "Schema for warden.yml properties."

	return json.MarshalIndent(schema, "", "  ")
}
