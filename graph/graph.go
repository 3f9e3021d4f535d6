package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/hupe1980/filemesh/core"
)

// Pseudo nodes marking the entry and the terminal state.
const (
	START = core.StartNode
	END   = core.EndNode
)

var (
	// ErrInvalidGraph is returned by Compile for a malformed topology.
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrContractViolation indicates a node update breaking its contract.
	ErrContractViolation = errors.New("node contract violation")
	// ErrNodeTimeout indicates a node exceeding its per-invocation deadline.
	ErrNodeTimeout = errors.New("node timed out")
)

// Router picks the key of the next target from the state observed right after
// the routing node ran.
type Router func(state core.State) (string, error)

type conditionalEdge struct {
	router  Router
	targets map[string]string
}

// StateGraph is a mutable graph builder. Errors are collected and reported by
// Compile so that construction reads as a flat sequence of calls.
type StateGraph struct {
	nodes       map[string]core.Node
	order       []string
	edges       map[string]string
	conditional map[string]conditionalEdge
	entry       string
	errs        []error
}

// NewStateGraph creates an empty graph builder.
func NewStateGraph() *StateGraph {
	return &StateGraph{
		nodes:       make(map[string]core.Node),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge),
	}
}

// AddNode registers node under its Name.
func (g *StateGraph) AddNode(node core.Node) *StateGraph {
	name := node.Name()

	switch {
	case name == "":
		g.errs = append(g.errs, fmt.Errorf("node with empty name"))
	case name == START || name == END:
		g.errs = append(g.errs, fmt.Errorf("node name %q is reserved", name))
	default:
		if _, dup := g.nodes[name]; dup {
			g.errs = append(g.errs, fmt.Errorf("duplicate node %q", name))
			return g
		}
		g.nodes[name] = node
		g.order = append(g.order, name)
	}

	return g
}

// AddEdge adds an unconditional transition. Use START as from to set the
// entry point and END as to for a terminal transition.
func (g *StateGraph) AddEdge(from, to string) *StateGraph {
	if from == START {
		return g.SetEntryPoint(to)
	}

	if g.hasRule(from) {
		g.errs = append(g.errs, fmt.Errorf("node %q already has an outgoing rule", from))
		return g
	}

	g.edges[from] = to

	return g
}

// AddConditionalEdges routes from a node to one of targets, keyed by the
// router's result.
func (g *StateGraph) AddConditionalEdges(from string, router Router, targets map[string]string) *StateGraph {
	if g.hasRule(from) {
		g.errs = append(g.errs, fmt.Errorf("node %q already has an outgoing rule", from))
		return g
	}

	if router == nil || len(targets) == 0 {
		g.errs = append(g.errs, fmt.Errorf("node %q: conditional edges need a router and targets", from))
		return g
	}

	g.conditional[from] = conditionalEdge{router: router, targets: maps.Clone(targets)}

	return g
}

// SetEntryPoint sets the first node executed after START.
func (g *StateGraph) SetEntryPoint(name string) *StateGraph {
	if g.entry != "" {
		g.errs = append(g.errs, fmt.Errorf("entry point already set to %q", g.entry))
		return g
	}

	g.entry = name

	return g
}

func (g *StateGraph) hasRule(name string) bool {
	_, static := g.edges[name]
	_, cond := g.conditional[name]
	return static || cond
}

// Options configures a compiled graph.
type Options struct {
	// NodeTimeout bounds each node invocation (0 = no deadline).
	NodeTimeout time.Duration
}

// Compile validates the topology and freezes it. Every edge endpoint must
// exist, every node needs exactly one outgoing rule and every node must be
// reachable from START.
func (g *StateGraph) Compile(optFns ...func(o *Options)) (*Compiled, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	errs := slices.Clone(g.errs)

	if g.entry == "" {
		errs = append(errs, fmt.Errorf("no entry point"))
	} else if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry point %q is not a node", g.entry))
	}

	for _, name := range g.order {
		if !g.hasRule(name) {
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
		}
	}

	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if !g.isTarget(to) {
			errs = append(errs, fmt.Errorf("edge %q -> %q targets unknown node", from, to))
		}
	}

	for from, cond := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("conditional edges from unknown node %q", from))
		}
		for key, to := range cond.targets {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("conditional target %q of %q (key %q) is not a node", to, from, key))
			}
		}
	}

	if len(errs) == 0 {
		seen := g.reachable()
		for _, name := range g.order {
			if !seen[name] {
				errs = append(errs, fmt.Errorf("node %q is unreachable from %s", name, START))
			}
		}
	}

	if len(errs) > 0 {
		return nil, core.NewError(core.KindInvariant, "", fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...)))
	}

	return &Compiled{
		nodes:       maps.Clone(g.nodes),
		order:       slices.Clone(g.order),
		edges:       maps.Clone(g.edges),
		conditional: maps.Clone(g.conditional),
		entry:       g.entry,
		opts:        opts,
	}, nil
}

func (g *StateGraph) isTarget(name string) bool {
	if name == END {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

func (g *StateGraph) reachable() map[string]bool {
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var next []string
		if to, ok := g.edges[cur]; ok {
			next = append(next, to)
		}
		if cond, ok := g.conditional[cur]; ok {
			next = slices.AppendSeq(next, maps.Values(cond.targets))
		}

		for _, n := range next {
			if n != END && !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}

	return seen
}
