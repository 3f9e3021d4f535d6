// Package gemini provides an implementation of model.Model backed by the
// Google Gen AI SDK (Gemini API). Response schemas map onto the native
// ResponseSchema with an application/json MIME type.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/model"
	"google.golang.org/genai"
)

// Options configures the Gemini adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
}

// Model wraps genai.Client behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. An API key is required.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:           "gemini-2.0-flash",
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Generate adapts a model.Request into a single GenerateContent call.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, buildContents(req.Contents), m.buildConfig(req))
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			errCh <- fmt.Errorf("gemini: no candidates returned")
			return
		}

		cand := resp.Candidates[0]

		var parts []core.Part
		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				args, _ := json.Marshal(p.FunctionCall.Args)
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        p.FunctionCall.ID,
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				}})
			case p.Text != "":
				parts = append(parts, core.TextPart{Text: p.Text})
			}
		}

		r := model.Response{
			ID:           resp.ResponseID,
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: string(cand.FinishReason),
		}

		if u := resp.UsageMetadata; u != nil {
			r.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}

		out <- r
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}

	system := req.Instructions
	for _, c := range req.Contents {
		if c.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += c.Text()
		}
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  toSchema(t.Function.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if rs := req.ResponseSchema; rs != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toSchema(rs.Schema)
	}

	return cfg
}

// buildContents maps contents onto Gemini's user/model turns. System contents
// are folded into the system instruction by buildConfig.
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		switch c.Role {
		case "system":
			continue
		case "assistant":
			gc := &genai.Content{Role: string(genai.RoleModel)}
			for _, p := range c.Parts {
				switch part := p.(type) {
				case core.TextPart:
					gc.Parts = append(gc.Parts, &genai.Part{Text: part.Text})
				case core.FunctionCallPart:
					var args map[string]any
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
					gc.Parts = append(gc.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   part.FunctionCall.ID,
						Name: part.FunctionCall.Name,
						Args: args,
					}})
				}
			}
			out = append(out, gc)
		case "tool":
			gc := &genai.Content{Role: string(genai.RoleUser)}
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok {
					resp := map[string]any{"output": fr.FunctionResponse.Response}
					if fr.FunctionResponse.Error != "" {
						resp = map[string]any{"error": fr.FunctionResponse.Error}
					}
					gc.Parts = append(gc.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
						ID:       fr.FunctionResponse.ID,
						Name:     fr.FunctionResponse.Name,
						Response: resp,
					}})
				}
			}
			out = append(out, gc)
		default:
			text := c.Text()
			if c.Name != "" {
				text = fmt.Sprintf("[%s] %s", c.Name, text)
			}
			out = append(out, genai.NewContentFromText(text, genai.RoleUser))
		}
	}

	return out
}

// toSchema converts the JSON-schema subset produced by util.CreateSchema and
// the supervisor into a genai.Schema.
func toSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{}

	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}

	if d, ok := s["description"].(string); ok {
		out.Description = d
	}

	out.Enum = stringSlice(s["enum"])
	out.Required = stringSlice(s["required"])

	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				out.Properties[name] = toSchema(pm)
			}
		}
	}

	if items, ok := s["items"].(map[string]any); ok {
		out.Items = toSchema(items)
	}

	return out
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
