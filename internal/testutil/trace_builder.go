package testutil

import (
	"time"

	"github.com/hupe1980/filemesh/core"
)

// TraceBuilder records the trace a supervisor/worker run would produce.
// Example:
//
//	trace := NewTraceBuilder(registry, "list files").
//		Route("FileOperations").
//		Reply("FileOperations", "a.txt").
//		Finish().
//		Build()
//
// Every call appends one entry carrying a snapshot of the state after that
// step, exactly as the graph yields them.
type TraceBuilder struct {
	registry *core.Registry
	state    *core.State
	trace    core.Trace
	duration time.Duration
}

// NewTraceBuilder starts from a state holding the user's request. Routes are
// parsed through registry.
func NewTraceBuilder(registry *core.Registry, request string) *TraceBuilder {
	return &TraceBuilder{registry: registry, state: core.NewState(request), duration: time.Millisecond}
}

// Duration sets the duration recorded on subsequent entries (chainable).
func (b *TraceBuilder) Duration(d time.Duration) *TraceBuilder { b.duration = d; return b }

// Route appends a supervisor step choosing role (chainable). It panics when
// role is not registered.
func (b *TraceBuilder) Route(role string) *TraceBuilder {
	r, err := b.registry.Parse(role)
	if err != nil {
		panic(err)
	}
	return b.decide(r)
}

// Finish appends a supervisor step choosing FINISH (chainable).
func (b *TraceBuilder) Finish() *TraceBuilder { return b.decide(core.Finish) }

// Reply appends a worker step whose reply is authored by role (chainable).
func (b *TraceBuilder) Reply(role, text string) *TraceBuilder {
	b.state.Append(core.Message{Content: text, Author: role})
	return b.step(role)
}

// Build returns the recorded trace.
func (b *TraceBuilder) Build() core.Trace { return b.trace }

// State returns a snapshot of the current state.
func (b *TraceBuilder) State() core.State { return b.state.Snapshot() }

func (b *TraceBuilder) decide(r core.Route) *TraceBuilder {
	b.state.Next = r
	return b.step(core.SupervisorNode)
}

func (b *TraceBuilder) step(node string) *TraceBuilder {
	b.trace = append(b.trace, core.TraceEntry{
		Step:     len(b.trace) + 1,
		Node:     node,
		State:    b.state.Snapshot(),
		Duration: b.duration,
	})
	return b
}
