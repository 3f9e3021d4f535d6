package gemini

import (
	"context"
	"testing"

	"github.com/hupe1980/filemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestToSchema(t *testing.T) {
	s := toSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"next":  map[string]any{"type": "string", "enum": []string{"FINISH", "A"}},
			"count": map[string]any{"type": "integer", "description": "n"},
		},
		"required": []any{"next"},
	})

	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"next"}, s.Required)
	assert.Equal(t, genai.TypeString, s.Properties["next"].Type)
	assert.Equal(t, []string{"FINISH", "A"}, s.Properties["next"].Enum)
	assert.Equal(t, "n", s.Properties["count"].Description)
	assert.Nil(t, toSchema(nil))
}

func TestBuildContents(t *testing.T) {
	named := core.NewTextContent("user", "moved")
	named.Name = "FolderOperationAgent"

	out := buildContents([]core.Content{
		core.NewTextContent("user", "move dir"),
		named,
		core.NewTextContent("system", "pick"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{Name: "list_folders", Arguments: `{"path":"."}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{Name: "list_folders", Response: []string{"a"}}}}},
	})

	require.Len(t, out, 4)
	assert.Equal(t, "[FolderOperationAgent] moved", out[1].Parts[0].Text)
	assert.Equal(t, string(genai.RoleModel), out[2].Role)
	assert.Equal(t, ".", out[2].Parts[0].FunctionCall.Args["path"])
	assert.NotNil(t, out[3].Parts[0].FunctionResponse)
}

func TestNewModel_RequiresKey(t *testing.T) {
	_, err := NewModel(context.Background())
	assert.Error(t, err)
}
