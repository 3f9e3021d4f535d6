package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/filemesh/core"
)

// Compiled is an immutable, validated graph. It is safe to share across
// concurrent runs; all per-run data lives in the RunContext and State.
type Compiled struct {
	nodes       map[string]core.Node
	order       []string
	edges       map[string]string
	conditional map[string]conditionalEdge
	entry       string
	opts        Options
}

// Entry returns the first node after START.
func (c *Compiled) Entry() string { return c.entry }

// Nodes returns the node names in registration order.
func (c *Compiled) Nodes() []string { return slices.Clone(c.order) }

// IsRouter reports whether name has conditional outgoing edges.
func (c *Compiled) IsRouter(name string) bool {
	_, ok := c.conditional[name]
	return ok
}

// Edge is one transition of the compiled topology. Label is the router key
// for conditional edges and empty otherwise.
type Edge struct {
	From  string
	To    string
	Label string
}

// Edges returns all transitions, starting with START, in a stable order.
func (c *Compiled) Edges() []Edge {
	edges := []Edge{{From: START, To: c.entry}}

	for _, name := range c.order {
		if to, ok := c.edges[name]; ok {
			edges = append(edges, Edge{From: name, To: to})
			continue
		}

		cond := c.conditional[name]
		keys := make([]string, 0, len(cond.targets))
		for k := range cond.targets {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			edges = append(edges, Edge{From: name, To: cond.targets[k], Label: k})
		}
	}

	return edges
}

// Invoke runs the graph to completion and returns the collected trace.
func (c *Compiled) Invoke(rc *core.RunContext, state *core.State) (core.Trace, error) {
	var trace core.Trace

	err := c.Stream(rc, state, func(e core.TraceEntry) error {
		trace = append(trace, e)
		return nil
	})

	return trace, err
}

// Stream runs the graph from START until END, mutating state in place and
// calling yield with a snapshot after every node. A non-nil error from yield
// aborts the run and is returned unchanged.
//
// Failures are returned as *core.Error carrying the failing node. Errors a
// node returns without classification are treated as reasoning capability
// failures.
func (c *Compiled) Stream(rc *core.RunContext, state *core.State, yield func(core.TraceEntry) error) error {
	current := c.entry

	for step := 1; current != END; step++ {
		if err := rc.Err(); err != nil {
			return core.NewError(core.KindCapability, current, err)
		}

		if rc.Limiter != nil {
			if err := rc.Limiter.Increment(); err != nil {
				return core.NewError(core.KindStepLimit, current, err)
			}
		}

		start := time.Now()

		update, err := c.runNode(rc, current, state.Snapshot())
		if err != nil {
			rc.LogWarn("graph.node.error", "node", current, "step", step, "error", err.Error())
			return err
		}

		if err := c.validate(current, update); err != nil {
			return err
		}

		state.Append(update.Messages...)
		if update.Next != nil {
			state.Next = *update.Next
		}

		entry := core.TraceEntry{
			Step:     step,
			Node:     current,
			State:    state.Snapshot(),
			Duration: time.Since(start),
		}

		rc.LogDebug("graph.node.complete",
			"node", current,
			"step", step,
			"messages", state.Len(),
			"duration_ms", entry.Duration.Milliseconds(),
		)

		if err := yield(entry); err != nil {
			return err
		}

		next, err := c.next(current, *state)
		if err != nil {
			return err
		}

		current = next
	}

	return nil
}

func (c *Compiled) runNode(rc *core.RunContext, name string, snapshot core.State) (core.Update, error) {
	ctx, cancel := rc.Context, context.CancelFunc(func() {})
	if c.opts.NodeTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.opts.NodeTimeout)
	}
	defer cancel()

	update, err := c.nodes[name].Run(rc.WithNode(name).WithContext(ctx), snapshot)
	if err == nil {
		return update, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) && rc.Err() == nil {
		return core.Update{}, core.NewError(core.KindCapability, name, fmt.Errorf("%w after %s: %w", ErrNodeTimeout, c.opts.NodeTimeout, err))
	}

	var ce *core.Error
	if errors.As(err, &ce) {
		if ce.Node == "" {
			return core.Update{}, core.NewError(ce.Kind, name, ce.Err)
		}
		return core.Update{}, err
	}

	return core.Update{}, core.NewError(core.KindCapability, name, err)
}

// validate enforces the node contract: a router sets Next and may only
// record its own decision; any other node appends exactly one message
// authored by itself and leaves Next untouched.
func (c *Compiled) validate(name string, update core.Update) error {
	violation := func(format string, args ...any) error {
		return core.NewError(core.KindInvariant, name, fmt.Errorf("%w: "+format, append([]any{ErrContractViolation}, args...)...))
	}

	for _, m := range update.Messages {
		if m.Author != name {
			return violation("message authored by %q", m.Author)
		}
	}

	if c.IsRouter(name) {
		if update.Next == nil || !update.Next.IsSet() {
			return violation("router did not set next")
		}
		if len(update.Messages) > 1 {
			return violation("router appended %d messages", len(update.Messages))
		}
		return nil
	}

	if update.Next != nil {
		return violation("only routers may set next")
	}
	if len(update.Messages) != 1 {
		return violation("expected exactly one message, got %d", len(update.Messages))
	}

	return nil
}

func (c *Compiled) next(current string, state core.State) (string, error) {
	if to, ok := c.edges[current]; ok {
		return to, nil
	}

	cond := c.conditional[current]

	key, err := cond.router(state)
	if err != nil {
		var ce *core.Error
		if errors.As(err, &ce) {
			return "", err
		}
		return "", core.NewError(core.KindInvariant, current, err)
	}

	to, ok := cond.targets[key]
	if !ok {
		return "", core.NewError(core.KindInvariant, current, fmt.Errorf("%w: %q has no target", core.ErrUnknownRoute, key))
	}

	return to, nil
}
