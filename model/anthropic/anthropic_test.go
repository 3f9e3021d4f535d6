package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_ForcedSchemaTool(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "tool_use", "id": "tu_1", "name": "route", "input": {"next": "FileSearchAgent"}}],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 7, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	resp, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "You are a supervisor.",
		Contents: []core.Content{
			core.NewTextContent("user", "find *.go"),
			core.NewTextContent("system", "Select one of the options."),
		},
		ResponseSchema: &model.ResponseSchema{
			Name: "route",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"next": map[string]any{"type": "string"}},
				"required":   []string{"next"},
			},
		},
	})
	require.NoError(t, err)

	var choice map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.Content.Text()), &choice))
	assert.Equal(t, "FileSearchAgent", choice["next"])
	assert.Empty(t, resp.Content.FunctionCalls())
	assert.Equal(t, 9, resp.Usage.TotalTokens)

	toolChoice := captured["tool_choice"].(map[string]any)
	assert.Equal(t, "tool", toolChoice["type"])
	assert.Equal(t, "route", toolChoice["name"])

	system := captured["system"].([]any)
	assert.Len(t, system, 2)
}

func TestBuildMessages_NamedAndTool(t *testing.T) {
	named := core.NewTextContent("user", "done")
	named.Name = "FileUtilsAgent"

	msgs := buildMessages([]core.Content{
		core.NewTextContent("system", "ignored"),
		named,
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "get_file_size", Arguments: `{"filename":"a"}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "get_file_size", Error: "not found"}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}
