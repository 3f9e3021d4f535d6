package core

import (
	"context"

	"github.com/hupe1980/filemesh/logging"
)

// RunContext carries the execution scope of one orchestration run. It
// replaces process-wide singletons: everything a node needs besides the
// conversation state is reachable from here.
//
// A RunContext is owned by a single run and is not shared across requests.
// WithNode and WithContext return shallow copies sharing the step Limiter.
type RunContext struct {
	Context context.Context
	RunID   string
	Node    string
	Limiter *StepLimiter

	*scopedLogger
}

// NewRunContext constructs a RunContext with a fresh step limiter.
func NewRunContext(ctx context.Context, runID string, maxSteps int, logger logging.Logger) *RunContext {
	return &RunContext{
		Context:      ctx,
		RunID:        runID,
		Limiter:      NewStepLimiter(maxSteps),
		scopedLogger: newScopedLogger(logger, "run_id", runID),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// WithNode returns a copy scoped to the named node. Its log records carry
// the node field.
func (rc *RunContext) WithNode(name string) *RunContext {
	c := *rc
	c.Node = name
	c.scopedLogger = rc.scopedLogger.with("node", name)
	return &c
}

// WithContext returns a copy bound to ctx (e.g. a per-node deadline).
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := *rc
	c.Context = ctx
	return &c
}
