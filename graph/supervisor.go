package graph

import (
	"fmt"
	"slices"

	"github.com/hupe1980/filemesh/core"
)

// RouteByNext is the supervisor's router: it maps state.Next to the role
// name, or to core.FinishToken for the terminal route.
func RouteByNext(state core.State) (string, error) {
	switch {
	case !state.Next.IsSet():
		return "", core.NewError(core.KindInvariant, core.SupervisorNode, fmt.Errorf("%w: next is unset", core.ErrUnknownRoute))
	case state.Next.IsFinish():
		return core.FinishToken, nil
	default:
		return state.Next.Role(), nil
	}
}

// NewSupervisorGraph builds and compiles the supervisor/worker topology. The
// workers must match the registry exactly, one node per role, so that every
// token the supervisor can produce names an existing node.
func NewSupervisorGraph(registry *core.Registry, supervisor core.Node, workers []core.Node, optFns ...func(o *Options)) (*Compiled, error) {
	if supervisor.Name() != core.SupervisorNode {
		return nil, core.NewError(core.KindInvariant, "", fmt.Errorf("%w: supervisor must be named %q, got %q", ErrInvalidGraph, core.SupervisorNode, supervisor.Name()))
	}

	names := make([]string, 0, len(workers))
	for _, w := range workers {
		names = append(names, w.Name())
	}

	roles := registry.Roles()
	if !sameSet(names, roles) {
		return nil, core.NewError(core.KindInvariant, "", fmt.Errorf("%w: workers %v do not match registry %v", ErrInvalidGraph, names, roles))
	}

	g := NewStateGraph().AddNode(supervisor)

	targets := map[string]string{core.FinishToken: END}
	for _, w := range workers {
		g.AddNode(w).AddEdge(w.Name(), core.SupervisorNode)
		targets[w.Name()] = w.Name()
	}

	g.AddEdge(START, core.SupervisorNode)
	g.AddConditionalEdges(core.SupervisorNode, RouteByNext, targets)

	return g.Compile(optFns...)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)

	return slices.Equal(a, b)
}
