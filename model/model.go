package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/filemesh/core"
)

// ErrNoResponse is returned by Collect when a generation ends without a final response.
var ErrNoResponse = errors.New("model returned no final response")

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// ResponseSchema constrains the reply to a JSON document matching Schema.
// Providers map it onto their native structured output mechanism.
type ResponseSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions   string           `json:"instructions"` // System instructions for the model
	Contents       []core.Content   `json:"contents"`     // Conversation converted to provider messages
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseSchema *ResponseSchema  `json:"response_schema,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows & agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a generation and returns its final (non-partial) response.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final Response
		got   bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final, got = r, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if !got {
		return Response{}, ErrNoResponse
	}

	return final, nil
}

// Func adapts a plain function into a Model. It is the seam used by tests to
// inject deterministic reasoning.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate implements Model.
func (f Func) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := f(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		resp.Partial = false
		out <- resp
	}()

	return out, errCh
}

// Info implements Model.
func (f Func) Info() Info { return Info{Name: "func", Provider: "func", SupportsTools: true} }

// TextResponse builds a final assistant text response.
func TextResponse(text string) Response {
	return Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
	}
}

// ChoiceResponse builds a final assistant response carrying a JSON object
// {"<field>": value}, the shape returned for schema-constrained requests.
func ChoiceResponse(field, value string) Response {
	b, _ := json.Marshal(map[string]string{field: value})
	return TextResponse(string(b))
}

// MockModel is an offline Model for demos and smoke tests. Plain requests are
// answered from canned responses keyed by the last content's text. Requests
// carrying a ResponseSchema with a single enum property pick the first
// non-FINISH option while the last content is the user's, and FINISH
// afterwards.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	return Func(func(ctx context.Context, req Request) (Response, error) {
		if len(req.Contents) == 0 {
			return Response{}, fmt.Errorf("no contents provided")
		}

		last := req.Contents[len(req.Contents)-1]

		if req.ResponseSchema != nil {
			return m.choose(req.ResponseSchema, req.Contents)
		}

		full := m.responses[last.Text()]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", last.Text())
		}

		return TextResponse(full), nil
	}).Generate(ctx, req)
}

func (m *MockModel) choose(rs *ResponseSchema, contents []core.Content) (Response, error) {
	props, _ := rs.Schema["properties"].(map[string]any)
	for field, p := range props {
		prop, _ := p.(map[string]any)
		options, _ := prop["enum"].([]string)
		if len(options) == 0 {
			continue
		}

		pick := core.FinishToken
		if lastNonSystem(contents).Role == "user" && lastNonSystem(contents).Name == "" {
			for _, o := range options {
				if o != core.FinishToken {
					pick = o
					break
				}
			}
		}

		return ChoiceResponse(field, pick), nil
	}

	return Response{}, fmt.Errorf("mock: schema %q has no enum property", rs.Name)
}

func lastNonSystem(contents []core.Content) core.Content {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role != "system" {
			return contents[i]
		}
	}
	return core.Content{}
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// FunctionResponseText renders a tool result as the text sent back to a
// provider. Errors are reported as {"error": "..."}.
func FunctionResponseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		b, _ := json.Marshal(map[string]string{"error": fr.Error})
		return string(b)
	}

	if s, ok := fr.Response.(string); ok {
		return s
	}

	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}

	return string(b)
}
