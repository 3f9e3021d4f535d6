package flow

import (
	"fmt"
	"time"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/model"
)

// BaseFlow is a request -> LLM -> (optional tool loop) cycle with pluggable
// pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	executor           FunctionExecutor
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewBaseFlow creates a flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{}),
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model turn.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the tool executor.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Run implements Flow.
func (f *BaseFlow) Run(runCtx *core.RunContext, state core.State) (model.Response, error) {
	req := new(model.Request)

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, state, req, f.agent); err != nil {
			return model.Response{}, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	llm := f.agent.GetLLM()
	maxRounds := f.agent.MaxToolRounds()

	for round := 0; ; round++ {
		start := time.Now()

		resp, err := model.Collect(runCtx.Context, llm, *req)
		if err != nil {
			runCtx.LogWarn("flow.model.error", "agent", f.agent.GetName(), "round", round, "error", err.Error())
			return model.Response{}, err
		}

		runCtx.LogDebug("flow.model.response",
			"agent", f.agent.GetName(),
			"round", round,
			"finish_reason", resp.FinishReason,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		for _, processor := range f.responseProcessors {
			if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
				return model.Response{}, fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
			}
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			return resp, nil
		}

		if len(f.agent.GetTools()) == 0 {
			return model.Response{}, fmt.Errorf("%w: %s requested %s", ErrNoTools, f.agent.GetName(), calls[0].Name)
		}

		if maxRounds > 0 && round+1 > maxRounds {
			return model.Response{}, fmt.Errorf("%w: %s requested tools after %d rounds", ErrToolRoundsExceeded, f.agent.GetName(), maxRounds)
		}

		results := f.executor.Execute(runCtx, f.agent, calls)

		req.Contents = append(req.Contents, resp.Content, core.Content{Role: "tool", Parts: results})
	}
}
