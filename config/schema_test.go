package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &schema))

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok, "schema should list properties")
	for _, key := range []string{"state_dir", "tasks_dir", "classifier", "tools", "triggers", "branch", "lock", "context", "transcript", "protected_paths"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, props, "Extensions")
	assert.NotContains(t, props, "Sources")
}

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]interface{}{
		"lock":      map[string]interface{}{"timeout": "3s"},
		"extension": map[string]interface{}{"anything": 1},
	}))

	err = v.Validate(map[string]interface{}{
		"lock": map[string]interface{}{"timeout": 3},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/lock/timeout")
}
