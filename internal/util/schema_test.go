package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renameArgs struct {
	Path     string   `json:"path" description:"Directory path"`
	Old      string   `json:"old_name"`
	Mode     string   `json:"mode,omitempty" enum:"copy|move"`
	Depth    *int     `json:"depth"`
	Patterns []string `json:"patterns,omitempty"`
	Ignored  string   `json:"-"`
	hidden   string
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(&renameArgs{})

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"path", "old_name"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 5)
	assert.Equal(t, map[string]any{"type": "string", "description": "Directory path"}, props["path"])
	assert.Equal(t, []string{"copy", "move"}, props["mode"].(map[string]any)["enum"])
	assert.Equal(t, "integer", props["depth"].(map[string]any)["type"])
	assert.Equal(t, "array", props["patterns"].(map[string]any)["type"])
	assert.NotContains(t, props, "Ignored")
	assert.NotContains(t, props, "hidden")
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema("text")
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, schema)
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(renameArgs{})

	tests := []struct {
		name   string
		params map[string]any
		field  string
	}{
		{"valid", map[string]any{"path": ".", "old_name": "a.txt", "depth": float64(2)}, ""},
		{"extra fields allowed", map[string]any{"path": ".", "old_name": "a", "other": 1}, ""},
		{"missing required", map[string]any{"path": "."}, "old_name"},
		{"wrong type", map[string]any{"path": 1, "old_name": "a"}, "path"},
		{"fractional integer", map[string]any{"path": ".", "old_name": "a", "depth": 1.5}, "depth"},
		{"array expected", map[string]any{"path": ".", "old_name": "a", "patterns": "*.go"}, "patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParameters(tt.params, schema)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateParameters_DecodedRequired(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"filename"},
	}

	err := ValidateParameters(map[string]any{}, schema)
	assert.ErrorContains(t, err, "filename")
}
