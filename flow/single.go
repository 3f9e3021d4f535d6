package flow

// SingleAgentFlow wires the default processors for instruction resolution,
// history assembly and tool declaration.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a flow with the default request pipeline.
// Additional processors run after the defaults.
func NewSingleAgentFlow(agent FlowAgent, extra ...RequestProcessor) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewToolsProcessor())

	for _, p := range extra {
		baseFlow.AddRequestProcessor(p)
	}

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
