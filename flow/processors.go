package flow

import (
	"fmt"
	"sort"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/model"
	"github.com/hupe1980/filemesh/tool"
)

// InstructionsProcessor resolves the system instructions.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, state core.State, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx, state)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor converts the conversation history into model contents.
// The request message authored by the user keeps the plain user role; every
// other message is sent as a user turn named after its author.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Contents from state.Messages. When the history
// exceeds MaxHistoryMessages the seed request is kept and the oldest replies
// are dropped.
func (p *ContentsProcessor) ProcessRequest(_ *core.RunContext, state core.State, req *model.Request, agent FlowAgent) error {
	msgs := state.Messages

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(msgs) > limit {
		kept := make([]core.Message, 0, limit)
		kept = append(kept, msgs[0])
		kept = append(kept, msgs[len(msgs)-limit+1:]...)
		msgs = kept
	}

	contents := make([]core.Content, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, MessageContent(m))
	}

	req.Contents = contents

	return nil
}

// MessageContent converts a conversation message into model content.
func MessageContent(m core.Message) core.Content {
	c := core.NewTextContent("user", m.Content)
	if m.Author != core.UserAuthor {
		c.Name = m.Author
	}
	return c
}

// ToolsProcessor declares the agent's tools in a stable order.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets req.Tools.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, _ core.State, req *model.Request, agent FlowAgent) error {
	registry := agent.GetTools()
	if len(registry) == 0 {
		return nil
	}

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, registry[name])
	}

	req.Tools = tool.Definitions(tools)

	return nil
}
