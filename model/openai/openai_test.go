package openai

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

func TestModel_StructuredChoice(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"next\":\"FINISH\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
	})

	worker := core.NewTextContent("user", "Created a.txt")
	worker.Name = "FileOperationAgent"

	resp, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "You are a supervisor.",
		Contents: []core.Content{
			core.NewTextContent("user", "create a.txt"),
			worker,
			core.NewTextContent("system", "Select one of: FINISH, FileOperationAgent"),
		},
		ResponseSchema: &model.ResponseSchema{
			Name: "route",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"next": map[string]any{"type": "string", "enum": []string{"FINISH", "FileOperationAgent"}}},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"next":"FINISH"}`, resp.Content.Text())
	assert.Equal(t, 13, resp.Usage.TotalTokens)

	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "FileOperationAgent", messages[2].(map[string]any)["name"])
	assert.Equal(t, "system", messages[3].(map[string]any)["role"])
}

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	msgs := buildMessages(model.Request{Contents: []core.Content{
		core.NewTextContent("user", "read a.txt"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "read_file", Arguments: `{"filename":"a.txt"}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "read_file", Response: "hi"}}}},
	}})

	require.Len(t, msgs, 3)
	require.NotNil(t, msgs[1].OfAssistant)
	assert.Len(t, msgs[1].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[2].OfTool)
	assert.Equal(t, "c1", msgs[2].OfTool.ToolCallID)
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-4o"
		o.APIKey = "x"
	})
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true}, m.Info())
}
