package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/filemesh/core"
)

var registry = core.MustRegistry("FileOperations", "FileSearch")

func worker(role, reply string) core.Node {
	return core.NodeFunc{NodeName: role, Fn: func(_ *core.RunContext, _ core.State) (core.Update, error) {
		return core.Update{Messages: []core.Message{{Content: reply, Author: role}}}, nil
	}}
}

// scriptedSupervisor returns the tokens in order, one per call.
func scriptedSupervisor(tokens ...string) core.Node {
	i := 0
	return core.NodeFunc{NodeName: core.SupervisorNode, Fn: func(_ *core.RunContext, _ core.State) (core.Update, error) {
		if i >= len(tokens) {
			return core.Update{}, fmt.Errorf("script exhausted")
		}
		route, err := registry.Parse(tokens[i])
		i++
		if err != nil {
			return core.Update{}, err
		}
		return core.Update{Next: &route}, nil
	}}
}

func workers() []core.Node {
	return []core.Node{worker("FileOperations", "Created a.txt"), worker("FileSearch", "Found a.txt")}
}

func newRunContext(maxSteps int) *core.RunContext {
	return core.NewRunContext(context.Background(), "run", maxSteps, nil)
}

func TestNewSupervisorGraph_Topology(t *testing.T) {
	g, err := NewSupervisorGraph(registry, scriptedSupervisor(), workers())
	require.NoError(t, err)

	assert.Equal(t, core.SupervisorNode, g.Entry())
	assert.True(t, g.IsRouter(core.SupervisorNode))
	assert.False(t, g.IsRouter("FileSearch"))

	want := []Edge{
		{From: START, To: core.SupervisorNode},
		{From: core.SupervisorNode, To: END, Label: core.FinishToken},
		{From: core.SupervisorNode, To: "FileOperations", Label: "FileOperations"},
		{From: core.SupervisorNode, To: "FileSearch", Label: "FileSearch"},
		{From: "FileOperations", To: core.SupervisorNode},
		{From: "FileSearch", To: core.SupervisorNode},
	}
	if diff := cmp.Diff(want, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSupervisorGraph_RegistryMismatch(t *testing.T) {
	_, err := NewSupervisorGraph(registry, scriptedSupervisor(), []core.Node{worker("FileOperations", "")})
	require.ErrorIs(t, err, ErrInvalidGraph)
	assert.Equal(t, core.KindInvariant, core.KindOf(err))

	_, err = NewSupervisorGraph(registry, worker("Boss", ""), workers())
	require.ErrorIs(t, err, ErrInvalidGraph)
}

func TestCompile_Validation(t *testing.T) {
	tests := []struct {
		name  string
		build func() *StateGraph
	}{
		{"no entry", func() *StateGraph {
			return NewStateGraph().AddNode(worker("A", "")).AddEdge("A", END)
		}},
		{"missing outgoing edge", func() *StateGraph {
			return NewStateGraph().AddNode(worker("A", "")).SetEntryPoint("A")
		}},
		{"unknown target", func() *StateGraph {
			return NewStateGraph().AddNode(worker("A", "")).SetEntryPoint("A").AddEdge("A", "B")
		}},
		{"unreachable", func() *StateGraph {
			return NewStateGraph().
				AddNode(worker("A", "")).AddNode(worker("B", "")).
				SetEntryPoint("A").AddEdge("A", END).AddEdge("B", END)
		}},
		{"duplicate node", func() *StateGraph {
			return NewStateGraph().AddNode(worker("A", "")).AddNode(worker("A", "")).SetEntryPoint("A").AddEdge("A", END)
		}},
		{"two rules", func() *StateGraph {
			return NewStateGraph().AddNode(worker("A", "")).SetEntryPoint("A").AddEdge("A", END).
				AddConditionalEdges("A", RouteByNext, map[string]string{"x": END})
		}},
		{"reserved name", func() *StateGraph {
			return NewStateGraph().AddNode(worker(END, "")).SetEntryPoint(END)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Compile()
			require.ErrorIs(t, err, ErrInvalidGraph)
			assert.Equal(t, core.KindInvariant, core.KindOf(err))
		})
	}
}

func TestStream_AlternatesAndGrowsByOne(t *testing.T) {
	g, err := NewSupervisorGraph(registry, scriptedSupervisor("FileOperations", "FileSearch", "FINISH"), workers(),
		func(o *Options) { o.NodeTimeout = time.Second })
	require.NoError(t, err)

	state := core.NewState("create and find a.txt")
	trace, err := g.Invoke(newRunContext(0), state)
	require.NoError(t, err)

	assert.Equal(t, []string{core.SupervisorNode, "FileOperations", core.SupervisorNode, "FileSearch", core.SupervisorNode}, trace.Nodes())

	for i := 1; i < len(trace); i++ {
		assert.NotEqual(t, trace[i-1].Node, trace[i].Node, "consecutive entries from the same node")
		assert.Equal(t, i+1, trace[i].Step)
	}

	wantMessages := []core.Message{
		{Content: "create and find a.txt", Author: core.UserAuthor},
		{Content: "Created a.txt", Author: "FileOperations"},
		{Content: "Found a.txt", Author: "FileSearch"},
	}
	if diff := cmp.Diff(wantMessages, state.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	// Snapshots are independent of later mutations.
	assert.Len(t, trace[1].State.Messages, 2)
	assert.Equal(t, "FileOperations", trace[0].State.Next.Role())
	assert.True(t, trace[4].State.Next.IsFinish())

	reply, ok := trace.LastWorkerReply()
	require.True(t, ok)
	assert.Equal(t, "Found a.txt", reply.Content)
}

func TestStream_StepLimit(t *testing.T) {
	tokens := make([]string, 100)
	for i := range tokens {
		tokens[i] = "FileOperations"
	}

	g, err := NewSupervisorGraph(registry, scriptedSupervisor(tokens...), workers())
	require.NoError(t, err)

	trace, err := g.Invoke(newRunContext(5), core.NewState("loop"))
	require.ErrorIs(t, err, core.ErrStepLimitExceeded)
	assert.Equal(t, core.KindStepLimit, core.KindOf(err))
	assert.Len(t, trace, 5)
}

func TestStream_UnknownRouteIsInvariant(t *testing.T) {
	g, err := NewSupervisorGraph(registry, scriptedSupervisor("Gardener"), workers())
	require.NoError(t, err)

	_, err = g.Invoke(newRunContext(0), core.NewState("x"))
	require.ErrorIs(t, err, core.ErrUnknownRoute)
	assert.Equal(t, core.KindInvariant, core.KindOf(err))
	assert.Equal(t, 500, core.StatusCode(err))
}

func TestStream_NodeTimeout(t *testing.T) {
	slow := core.NodeFunc{NodeName: core.SupervisorNode, Fn: func(rc *core.RunContext, _ core.State) (core.Update, error) {
		<-rc.Done()
		return core.Update{}, rc.Err()
	}}

	g, err := NewSupervisorGraph(registry, slow, workers(), func(o *Options) { o.NodeTimeout = 10 * time.Millisecond })
	require.NoError(t, err)

	_, err = g.Invoke(newRunContext(0), core.NewState("x"))
	require.ErrorIs(t, err, ErrNodeTimeout)
	assert.Equal(t, core.KindCapability, core.KindOf(err))

	var ce *core.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.SupervisorNode, ce.Node)
}

func TestStream_UnclassifiedNodeErrorIsCapability(t *testing.T) {
	boom := errors.New("provider exploded")
	failing := core.NodeFunc{NodeName: core.SupervisorNode, Fn: func(*core.RunContext, core.State) (core.Update, error) {
		return core.Update{}, boom
	}}

	g, err := NewSupervisorGraph(registry, failing, workers())
	require.NoError(t, err)

	_, err = g.Invoke(newRunContext(0), core.NewState("x"))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, core.KindCapability, core.KindOf(err))
}

func TestStream_ContractViolations(t *testing.T) {
	silent := core.NodeFunc{NodeName: "FileOperations", Fn: func(*core.RunContext, core.State) (core.Update, error) {
		return core.Update{}, nil
	}}
	impostor := core.NodeFunc{NodeName: "FileOperations", Fn: func(*core.RunContext, core.State) (core.Update, error) {
		return core.Update{Messages: []core.Message{{Content: "hi", Author: "FileSearch"}}}, nil
	}}
	routing := core.NodeFunc{NodeName: "FileOperations", Fn: func(*core.RunContext, core.State) (core.Update, error) {
		return core.Update{Messages: []core.Message{{Content: "hi", Author: "FileOperations"}}, Next: &core.Finish}, nil
	}}
	undecided := core.NodeFunc{NodeName: core.SupervisorNode, Fn: func(*core.RunContext, core.State) (core.Update, error) {
		return core.Update{}, nil
	}}

	tests := []struct {
		name       string
		supervisor core.Node
		worker     core.Node
	}{
		{"worker appends nothing", scriptedSupervisor("FileOperations"), silent},
		{"worker impersonates", scriptedSupervisor("FileOperations"), impostor},
		{"worker sets next", scriptedSupervisor("FileOperations"), routing},
		{"supervisor without decision", undecided, silent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewSupervisorGraph(registry, tt.supervisor, []core.Node{tt.worker, worker("FileSearch", "")})
			require.NoError(t, err)

			_, err = g.Invoke(newRunContext(0), core.NewState("x"))
			require.ErrorIs(t, err, ErrContractViolation)
			assert.Equal(t, core.KindInvariant, core.KindOf(err))
		})
	}
}

func TestStream_YieldErrorAborts(t *testing.T) {
	g, err := NewSupervisorGraph(registry, scriptedSupervisor("FileOperations", "FINISH"), workers())
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0

	err = g.Stream(newRunContext(0), core.NewState("x"), func(core.TraceEntry) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMermaid(t *testing.T) {
	g, err := NewSupervisorGraph(registry, scriptedSupervisor(), workers())
	require.NoError(t, err)

	out := Mermaid(g, &Overlay{VisitedNodes: []string{core.SupervisorNode, "FileSearch", core.SupervisorNode}, CurrentNode: "FileSearch"})

	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, `START(("start"))`)
	assert.Contains(t, out, `Supervisor{"Supervisor"}`)
	assert.Contains(t, out, `FileOperations["FileOperations"]`)
	assert.Contains(t, out, "START --> Supervisor")
	assert.Contains(t, out, `Supervisor -. "FINISH" .-> END`)
	assert.Contains(t, out, "FileSearch --> Supervisor")
	assert.Contains(t, out, "class FileSearch current;")
	assert.Equal(t, 1, strings.Count(out, "class Supervisor visited;"))
}
