package agent

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/flow"
	"github.com/hupe1980/filemesh/model"
	"github.com/hupe1980/filemesh/tool"
)

const defaultWorkerInstruction = `You are {{.role}}, a worker supervised by {{.supervisor}}.
{{- if .description}} {{.description}}{{end}}
Use your tools to carry out your part of the user's request. When you are done,
reply with a short, factual report of what you did or found. If a tool fails,
say so plainly instead of guessing.`

// WorkerOptions configures a Worker instance.
//
// Use functional options with NewWorker to override defaults.
type WorkerOptions struct {
	Description        string
	Instruction        Instruction
	Tools              []tool.Tool
	MaxHistoryMessages int
	MaxToolRounds      int
	FunctionExecutor   flow.FunctionExecutor
}

// Worker wraps a bounded tool set plus the reasoning capability into a node
// that produces one reply message attributed to its role.
type Worker struct {
	role               string
	description        string
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	maxHistoryMessages int
	maxToolRounds      int
	flow               *flow.SingleAgentFlow
}

// NewWorker creates a worker for role. The role must be registered in the
// graph's core.Registry.
func NewWorker(role string, llm model.Model, optFns ...func(o *WorkerOptions)) *Worker {
	opts := WorkerOptions{
		Instruction:   NewInstructionFromText(defaultWorkerInstruction),
		MaxToolRounds: 10,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	w := &Worker{
		role:               role,
		description:        opts.Description,
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              make(map[string]tool.Tool, len(opts.Tools)),
		maxHistoryMessages: opts.MaxHistoryMessages,
		maxToolRounds:      opts.MaxToolRounds,
	}

	w.RegisterTools(opts.Tools...)

	w.flow = flow.NewSingleAgentFlow(w)
	if opts.FunctionExecutor != nil {
		w.flow.SetFunctionExecutor(opts.FunctionExecutor)
	}

	return w
}

// RegisterTools adds tools to the worker's capability set. A tool with an
// already registered name replaces the previous one.
func (w *Worker) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		w.tools[t.Name()] = t
	}
}

// HasTool checks if a tool is registered with the worker.
func (w *Worker) HasTool(name string) bool {
	_, exists := w.tools[name]
	return exists
}

// ListTools returns the sorted names of all registered tools.
func (w *Worker) ListTools() []string {
	return slices.Sorted(maps.Keys(w.tools))
}

// Name implements core.Node.
func (w *Worker) Name() string { return w.role }

// Description returns the worker's responsibility as shown to the supervisor.
func (w *Worker) Description() string { return w.description }

// GetName implements flow.FlowAgent.
func (w *Worker) GetName() string { return w.role }

// GetLLM implements flow.FlowAgent.
func (w *Worker) GetLLM() model.Model { return w.llm }

// GetTools implements flow.FlowAgent.
func (w *Worker) GetTools() map[string]tool.Tool { return maps.Clone(w.tools) }

// MaxHistoryMessages implements flow.FlowAgent.
func (w *Worker) MaxHistoryMessages() int { return w.maxHistoryMessages }

// MaxToolRounds implements flow.FlowAgent.
func (w *Worker) MaxToolRounds() int { return w.maxToolRounds }

// ResolveInstructions implements flow.FlowAgent.
func (w *Worker) ResolveInstructions(rc *core.RunContext, state core.State) (string, error) {
	return w.instruction.Resolve(rc, state, map[string]any{
		"role":        w.role,
		"description": w.description,
		"supervisor":  core.SupervisorNode,
		"tools":       w.ListTools(),
	})
}

// Run implements core.Node. Reasoning failures are returned unchanged.
func (w *Worker) Run(rc *core.RunContext, state core.State) (core.Update, error) {
	if len(state.Messages) == 0 {
		return core.Update{}, core.NewError(core.KindInvariant, w.role, fmt.Errorf("worker %s invoked with empty history", w.role))
	}

	rc.LogDebug("worker.run.start", "worker", w.role, "messages", len(state.Messages), "tools", len(w.tools))

	resp, err := w.flow.Run(rc, state)
	if err != nil {
		return core.Update{}, err
	}

	reply := strings.TrimSpace(resp.Content.Text())

	rc.LogDebug("worker.run.complete", "worker", w.role, "reply_length", len(reply))

	return core.Update{Messages: []core.Message{{Content: reply, Author: w.role}}}, nil
}
