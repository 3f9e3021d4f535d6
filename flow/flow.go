// Package flow provides the reasoning loop that backs FileMesh workers and
// the supervisor.
//
// A flow builds a model request through an ordered pipeline of request
// processors, calls the model, executes any requested tools and feeds their
// results back until the model produces a reply without tool calls. The tool
// loop is internal: callers only observe the final reply.
package flow

import (
	"errors"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/model"
	"github.com/hupe1980/filemesh/tool"
)

// ErrToolRoundsExceeded is returned when the model keeps requesting tools
// beyond the configured number of rounds.
var ErrToolRoundsExceeded = errors.New("tool rounds exceeded")

// ErrNoTools is returned when an agent without tools receives a tool call.
var ErrNoTools = errors.New("tool call from an agent without tools")

// Flow runs one node turn against the reasoning capability.
type Flow interface {
	// Run returns the final (tool-call free) model response for state.
	Run(runCtx *core.RunContext, state core.State) (model.Response, error)
}

// FlowAgent defines what a flow needs from the node it serves.
type FlowAgent interface {
	// GetName returns the node's role name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions renders the system instructions for this turn.
	ResolveInstructions(runCtx *core.RunContext, state core.State) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// MaxHistoryMessages bounds the history sent to the model (0 = all).
	MaxHistoryMessages() int

	// MaxToolRounds bounds the tool loop (0 = unbounded).
	MaxToolRounds() int
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, state core.State, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes each final response received from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse inspects or rewrites the response.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
