package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/flow"
	"github.com/hupe1980/filemesh/model"
	"github.com/hupe1980/filemesh/tool"
)

// DecisionField is the JSON property carrying the supervisor's choice.
const DecisionField = "next"

const defaultSupervisorInstruction = `You are a supervisor managing a conversation among the following workers: {{join ", " .members}}.
{{- range $name, $desc := .descriptions}}
- {{$name}}: {{$desc}}
{{- end}}
Make sure each worker performs its assigned task and reports its results and status.
Use the conversation so far to decide who acts next. Once all tasks are complete, choose FINISH.`

const defaultClosingInstruction = `After reviewing the conversation above, assess whether all tasks have been completed.
If a worker still needs to act, select who should proceed from the following options: {{join ", " (quote .options)}}.
If all tasks are finished, select FINISH. Your choice must be clear and decisive.`

// SupervisorOptions configures a Supervisor instance.
type SupervisorOptions struct {
	// Instruction opens the decision prompt (system instructions).
	Instruction Instruction
	// Closing is appended after the history and asks for the choice.
	Closing Instruction
	// Descriptions maps roles to the responsibility shown in the prompt.
	Descriptions map[string]string
	// RecordDecisions appends each decision as a supervisor-authored message.
	RecordDecisions    bool
	MaxHistoryMessages int
}

// Supervisor produces exactly one routing decision per invocation. The menu
// offered to the reasoning capability and the parsing of its answer are both
// derived from the same registry the graph is built from.
type Supervisor struct {
	registry           *core.Registry
	llm                model.Model
	instruction        Instruction
	closing            Instruction
	descriptions       map[string]string
	recordDecisions    bool
	maxHistoryMessages int
	flow               *flow.SingleAgentFlow
}

// NewSupervisor creates the routing node for registry.
func NewSupervisor(registry *core.Registry, llm model.Model, optFns ...func(o *SupervisorOptions)) *Supervisor {
	opts := SupervisorOptions{
		Instruction: NewInstructionFromText(defaultSupervisorInstruction),
		Closing:     NewInstructionFromText(defaultClosingInstruction),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Supervisor{
		registry:           registry,
		llm:                llm,
		instruction:        opts.Instruction,
		closing:            opts.Closing,
		descriptions:       opts.Descriptions,
		recordDecisions:    opts.RecordDecisions,
		maxHistoryMessages: opts.MaxHistoryMessages,
	}

	s.flow = flow.NewSingleAgentFlow(s, &RoutingProcessor{supervisor: s})

	return s
}

// Registry returns the role registry the supervisor routes over.
func (s *Supervisor) Registry() *core.Registry { return s.registry }

// RecordsDecisions reports whether decisions are appended to the history.
func (s *Supervisor) RecordsDecisions() bool { return s.recordDecisions }

// Name implements core.Node.
func (s *Supervisor) Name() string { return core.SupervisorNode }

// GetName implements flow.FlowAgent.
func (s *Supervisor) GetName() string { return core.SupervisorNode }

// GetLLM implements flow.FlowAgent.
func (s *Supervisor) GetLLM() model.Model { return s.llm }

// GetTools implements flow.FlowAgent. The supervisor never calls tools.
func (s *Supervisor) GetTools() map[string]tool.Tool { return nil }

// MaxHistoryMessages implements flow.FlowAgent.
func (s *Supervisor) MaxHistoryMessages() int { return s.maxHistoryMessages }

// MaxToolRounds implements flow.FlowAgent. The supervisor has no tools, so
// the flow rejects a reply requesting them before any call runs.
func (s *Supervisor) MaxToolRounds() int { return 1 }

// ResolveInstructions implements flow.FlowAgent.
func (s *Supervisor) ResolveInstructions(rc *core.RunContext, state core.State) (string, error) {
	return s.instruction.Resolve(rc, state, s.promptData())
}

func (s *Supervisor) promptData() map[string]any {
	return map[string]any{
		"members":      s.registry.Roles(),
		"options":      s.registry.Menu(),
		"descriptions": s.descriptions,
	}
}

// Schema returns the structured output schema {"next": enum(menu)}.
func (s *Supervisor) Schema() *model.ResponseSchema {
	return &model.ResponseSchema{
		Name:        "route",
		Description: "Selects the worker that should act next, or FINISH.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				DecisionField: map[string]any{
					"type":        "string",
					"description": "The worker that should act next, or FINISH when all tasks are complete.",
					"enum":        s.registry.Menu(),
				},
			},
			"required":             []string{DecisionField},
			"additionalProperties": false,
		},
	}
}

// Run implements core.Node. A reply that is not a JSON object with a string
// "next" field is a capability error; a well-formed token outside the menu is
// an invariant violation.
func (s *Supervisor) Run(rc *core.RunContext, state core.State) (core.Update, error) {
	resp, err := s.flow.Run(rc, state)
	if err != nil {
		return core.Update{}, err
	}

	token, err := decodeDecision(resp.Content.Text())
	if err != nil {
		rc.LogWarn("supervisor.decision.malformed", "error", err.Error())
		return core.Update{}, core.NewError(core.KindCapability, core.SupervisorNode, err)
	}

	route, err := s.registry.Parse(token)
	if err != nil {
		rc.LogWarn("supervisor.decision.rejected", "token", token, "error", err.Error())
		return core.Update{}, err
	}

	rc.LogInfo("supervisor.decision", "next", route.String())

	update := core.Update{Next: &route}
	if s.recordDecisions {
		update.Messages = []core.Message{{Content: route.String(), Author: core.SupervisorNode}}
	}

	return update, nil
}

// decodeDecision extracts the routing token from a structured reply. Markdown
// code fences around the JSON object are tolerated.
func decodeDecision(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var decision map[string]any
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrMalformedDecision, err)
	}

	raw, ok := decision[DecisionField]
	if !ok {
		return "", fmt.Errorf("%w: missing %q field", core.ErrMalformedDecision, DecisionField)
	}

	token, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, not a string", core.ErrMalformedDecision, DecisionField, raw)
	}

	return token, nil
}

// RoutingProcessor appends the closing instruction after the history and
// constrains the reply to the routing schema.
type RoutingProcessor struct {
	supervisor *Supervisor
}

// Name returns the processor's identifier.
func (p *RoutingProcessor) Name() string { return "routing" }

// ProcessRequest implements flow.RequestProcessor.
func (p *RoutingProcessor) ProcessRequest(rc *core.RunContext, state core.State, req *model.Request, _ flow.FlowAgent) error {
	closing, err := p.supervisor.closing.Resolve(rc, state, p.supervisor.promptData())
	if err != nil {
		return fmt.Errorf("failed to resolve closing instruction: %w", err)
	}

	if closing != "" {
		req.Contents = append(req.Contents, core.NewTextContent("system", closing))
	}

	req.ResponseSchema = p.supervisor.Schema()

	return nil
}
