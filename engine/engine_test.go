package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/filemesh/agent"
	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/graph"
	"github.com/hupe1980/filemesh/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var roles = []string{"FileOperations", "FileSearch", "FileUtils", "FolderOperations"}

// stubModel serves both node kinds: schema requests are routing decisions
// answered by decide, everything else is a worker turn answered by reply.
type stubModel struct {
	decide func(call int, req model.Request) (string, error)
	reply  func(worker string, req model.Request) (string, error)
	calls  atomic.Int32
}

func (s *stubModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	return model.Func(func(ctx context.Context, req model.Request) (model.Response, error) {
		if req.ResponseSchema != nil {
			token, err := s.decide(int(s.calls.Add(1)), req)
			if err != nil {
				return model.Response{}, err
			}
			return model.ChoiceResponse(agent.DecisionField, token), nil
		}

		text, err := s.reply(workerOf(req.Instructions), req)
		if err != nil {
			return model.Response{}, err
		}
		return model.TextResponse(text), nil
	}).Generate(ctx, req)
}

func (s *stubModel) Info() model.Info { return model.Info{Name: "stub", Provider: "stub"} }

func workerOf(instructions string) string {
	for _, r := range roles {
		if strings.Contains(instructions, "You are "+r+",") {
			return r
		}
	}
	return ""
}

func newEngine(t *testing.T, llm model.Model, optFns ...func(o *Options)) *Engine {
	t.Helper()

	registry := core.MustRegistry(roles...)

	workers := make([]core.Node, 0, len(roles))
	for _, r := range roles {
		workers = append(workers, agent.NewWorker(r, llm))
	}

	supervisor := agent.NewSupervisor(registry, llm, func(o *agent.SupervisorOptions) { o.RecordDecisions = true })

	g, err := graph.NewSupervisorGraph(registry, supervisor, workers, func(o *graph.Options) { o.NodeTimeout = time.Second })
	require.NoError(t, err)

	return New(g, optFns...)
}

// finishOn routes to FileOperations until the nth decision, which is FINISH.
func finishOn(n int) func(int, model.Request) (string, error) {
	return func(call int, _ model.Request) (string, error) {
		if call >= n {
			return core.FinishToken, nil
		}
		return "FileOperations", nil
	}
}

func TestSubmit_CreateFileScenario(t *testing.T) {
	llm := &stubModel{
		decide: func(call int, req model.Request) (string, error) {
			// FINISH once the worker has reported back.
			if req.Contents[len(req.Contents)-2].Name == "FileOperations" {
				return core.FinishToken, nil
			}
			return "FileOperations", nil
		},
		reply: func(worker string, _ model.Request) (string, error) {
			return "Created a.txt", nil
		},
	}

	answer, status := newEngine(t, llm).Submit(context.Background(), "Create a file named 'a.txt' with content 'hi'")
	assert.Equal(t, 200, status)
	assert.Equal(t, "Created a.txt", answer)
}

func TestSubmit_TimeoutScenario(t *testing.T) {
	llm := &stubModel{
		decide: func(int, model.Request) (string, error) { return "", context.DeadlineExceeded },
		reply:  func(string, model.Request) (string, error) { return "unused", nil },
	}

	r := newEngine(t, llm).Execute(context.Background(), "list files")
	assert.Equal(t, 500, r.Status)
	assert.Equal(t, core.KindCapability, core.KindOf(r.Err))
	assert.NotEmpty(t, r.Message())
	assert.Empty(t, r.Answer)
}

func TestSubmit_UnknownRoleScenario(t *testing.T) {
	llm := &stubModel{
		decide: func(int, model.Request) (string, error) { return "Gardener", nil },
		reply:  func(string, model.Request) (string, error) { return "unused", nil },
	}

	r := newEngine(t, llm).Execute(context.Background(), "water the plants")
	assert.Equal(t, 500, r.Status)
	require.ErrorIs(t, r.Err, core.ErrUnknownRoute)
	assert.Equal(t, core.KindInvariant, core.KindOf(r.Err))
	assert.Contains(t, r.Message(), "Gardener")
}

func TestSubmit_ConcurrentRunsAreIsolated(t *testing.T) {
	llm := &stubModel{
		decide: func(_ int, req model.Request) (string, error) {
			if req.Contents[len(req.Contents)-2].Name == "FileOperations" {
				return core.FinishToken, nil
			}
			return "FileOperations", nil
		},
		reply: func(_ string, req model.Request) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return "done: " + req.Contents[0].Text(), nil
		},
	}

	eng := newEngine(t, llm)

	var wg sync.WaitGroup
	results := make([]*Result, 8)

	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = eng.Execute(context.Background(), fmt.Sprintf("request %d", i))
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("done: request %d", i), r.Answer)
		assert.False(t, seen[r.RunID], "duplicate run id")
		seen[r.RunID] = true

		for _, e := range r.Trace {
			assert.Equal(t, fmt.Sprintf("request %d", i), e.State.Messages[0].Content)
		}
	}
}

func TestExecute_TraceProperties(t *testing.T) {
	const n = 4

	llm := &stubModel{
		decide: finishOn(n),
		reply:  func(w string, _ model.Request) (string, error) { return w + " did its part", nil },
	}

	r := newEngine(t, llm).Execute(context.Background(), "do things")
	require.NoError(t, r.Err)

	supervisorTurns, workerTurns := 0, 0
	for i, e := range r.Trace {
		if e.Node == core.SupervisorNode {
			supervisorTurns++
		} else {
			workerTurns++
		}

		if i > 0 {
			assert.NotEqual(t, r.Trace[i-1].Node, e.Node)
			// With decision recording every node appends exactly one message.
			assert.Equal(t, len(r.Trace[i-1].State.Messages)+1, len(e.State.Messages))
		}
	}

	assert.Equal(t, n, supervisorTurns)
	assert.Equal(t, n-1, workerTurns)
	assert.Equal(t, "FileOperations did its part", r.Answer)
	assert.Equal(t, core.SupervisorNode, r.Trace[len(r.Trace)-1].Node)
	assert.True(t, r.Trace[len(r.Trace)-1].State.Next.IsFinish())
}

func TestExecute_StepLimit(t *testing.T) {
	llm := &stubModel{
		decide: finishOn(1000),
		reply:  func(string, model.Request) (string, error) { return "again", nil },
	}

	r := newEngine(t, llm, func(o *Options) { o.Config.MaxSteps = 7 }).Execute(context.Background(), "never ends")
	require.ErrorIs(t, r.Err, core.ErrStepLimitExceeded)
	assert.Equal(t, core.KindStepLimit, core.KindOf(r.Err))
	assert.Equal(t, 500, r.Status)
	assert.Len(t, r.Trace, 7)
}

func TestExecute_FinishWithoutWorkerReply(t *testing.T) {
	llm := &stubModel{
		decide: finishOn(1),
		reply:  func(string, model.Request) (string, error) { return "unused", nil },
	}

	r := newEngine(t, llm).Execute(context.Background(), "hello")
	require.ErrorIs(t, r.Err, core.ErrNoWorkerReply)
	assert.Equal(t, 500, r.Status)
}

func TestExecute_EmptyRequest(t *testing.T) {
	llm := &stubModel{}

	r := newEngine(t, llm).Execute(context.Background(), "   ")
	require.ErrorIs(t, r.Err, core.ErrEmptyRequest)
	assert.Equal(t, 400, r.Status)
	assert.Empty(t, r.Trace)
	assert.Zero(t, llm.calls.Load())
}

func TestExecute_BusyWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	llm := &stubModel{
		decide: func(call int, req model.Request) (string, error) {
			if req.Contents[0].Text() == "slow" && call == 1 {
				close(entered)
				<-release
			}
			return core.FinishToken, nil
		},
		reply: func(string, model.Request) (string, error) { return "", nil },
	}

	eng := newEngine(t, llm, func(o *Options) { o.Config.MaxConcurrentRuns = 1 })

	done := make(chan *Result)
	go func() { done <- eng.Execute(context.Background(), "slow") }()

	<-entered
	assert.Equal(t, 1, eng.ActiveRuns())

	answer, status := eng.Submit(context.Background(), "fast")
	assert.Equal(t, 503, status)
	assert.Contains(t, answer, core.ErrBusy.Error())

	close(release)
	<-done
	assert.Zero(t, eng.ActiveRuns())
}

func TestExecute_Cancel(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once

	llm := &stubModel{
		decide: func(int, model.Request) (string, error) { return "FileOperations", nil },
		reply: func(string, model.Request) (string, error) {
			once.Do(func() { close(entered) })
			time.Sleep(50 * time.Millisecond)
			return "late", nil
		},
	}

	eng := newEngine(t, llm, func(o *Options) { o.NewRunID = func() string { return "run-42" } })

	done := make(chan *Result)
	go func() { done <- eng.Execute(context.Background(), "work") }()

	<-entered
	require.NoError(t, eng.Cancel("run-42"))
	require.Error(t, eng.Cancel("unknown"))

	r := <-done
	require.Error(t, r.Err)
	assert.Equal(t, "run-42", r.RunID)
}

func TestCallbacks(t *testing.T) {
	llm := &stubModel{
		decide: finishOn(2),
		reply:  func(string, model.Request) (string, error) { return "ok", nil },
	}

	var (
		mu     sync.Mutex
		events []string
	)

	record := func(typ CallbackType) Callback {
		return NewFunctionCallback(typ, func(_ context.Context, cc *CallbackContext) error {
			mu.Lock()
			defer mu.Unlock()
			if cc.Entry != nil {
				events = append(events, fmt.Sprintf("%s:%s", typ, cc.Entry.Node))
			} else {
				events = append(events, string(typ))
			}
			return nil
		})
	}

	var logged []string

	eng := newEngine(t, llm, func(o *Options) {
		o.Callbacks = []Callback{
			record(CallbackRunStart),
			record(CallbackStep),
			record(CallbackOnError),
			record(CallbackRunEnd),
			NewLoggingCallback(CallbackRunEnd, func(msg string) { logged = append(logged, msg) }),
		}
	})

	r := eng.Execute(context.Background(), "go")
	require.NoError(t, r.Err)

	assert.Equal(t, []string{
		"run_start",
		"step:Supervisor",
		"step:FileOperations",
		"step:Supervisor",
		"run_end",
	}, events)

	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "status=200")
}

func TestExecute_NodePanicEndsRun(t *testing.T) {
	registry := core.MustRegistry("FileOperations")

	supervisor := core.NodeFunc{
		NodeName: core.SupervisorNode,
		Fn:       func(*core.RunContext, core.State) (core.Update, error) { panic("boom") },
	}
	worker := agent.NewWorker("FileOperations", &stubModel{})

	g, err := graph.NewSupervisorGraph(registry, supervisor, []core.Node{worker})
	require.NoError(t, err)

	var starts, errs, ends atomic.Int32
	count := func(typ CallbackType, n *atomic.Int32) Callback {
		return NewFunctionCallback(typ, func(context.Context, *CallbackContext) error {
			n.Add(1)
			return nil
		})
	}

	eng := New(g, func(o *Options) {
		o.Callbacks = []Callback{
			count(CallbackRunStart, &starts),
			count(CallbackOnError, &errs),
			count(CallbackRunEnd, &ends),
		}
	})

	r := eng.Execute(context.Background(), "go")
	require.Error(t, r.Err)
	assert.Equal(t, core.KindInternal, core.KindOf(r.Err))
	assert.Equal(t, 500, r.Status)
	assert.Contains(t, r.Err.Error(), "boom")

	assert.Equal(t, int32(1), starts.Load())
	assert.Equal(t, int32(1), errs.Load())
	assert.Equal(t, int32(1), ends.Load())
	assert.Equal(t, 0, eng.ActiveRuns())
}

func TestExecute_RunEndPanicFiresOnce(t *testing.T) {
	llm := &stubModel{
		decide: finishOn(2),
		reply:  func(string, model.Request) (string, error) { return "ok", nil },
	}

	var ends atomic.Int32
	eng := newEngine(t, llm, func(o *Options) {
		o.Callbacks = []Callback{
			NewFunctionCallback(CallbackRunEnd, func(context.Context, *CallbackContext) error {
				ends.Add(1)
				panic("callback")
			}),
		}
	})

	r := eng.Execute(context.Background(), "go")
	require.Error(t, r.Err)
	assert.Equal(t, core.KindInternal, core.KindOf(r.Err))
	assert.Empty(t, r.Answer)
	assert.Equal(t, int32(1), ends.Load())
}

func TestStepValidationCallbackAbortsRun(t *testing.T) {
	llm := &stubModel{
		decide: finishOn(3),
		reply:  func(string, model.Request) (string, error) { return "deleted everything", nil },
	}

	guard := errors.New("deletions are not allowed")

	eng := newEngine(t, llm, func(o *Options) {
		o.Callbacks = []Callback{NewStepValidationCallback(func(e core.TraceEntry) error {
			if last, ok := e.State.Last(); ok && strings.Contains(last.Content, "deleted") {
				return guard
			}
			return nil
		})}
	})

	r := eng.Execute(context.Background(), "clean up")
	require.ErrorIs(t, r.Err, guard)
	assert.Equal(t, 500, r.Status)

	var ce *core.Error
	require.ErrorAs(t, r.Err, &ce)
	assert.Equal(t, "FileOperations", ce.Node)
}

func TestInvoke_StreamsSteps(t *testing.T) {
	llm := &stubModel{
		decide: finishOn(2),
		reply:  func(string, model.Request) (string, error) { return "streamed", nil },
	}

	runID, steps, results := newEngine(t, llm).Invoke(context.Background(), "stream it")
	assert.NotEmpty(t, runID)

	var nodes []string
	for e := range steps {
		nodes = append(nodes, e.Node)
	}

	r := <-results
	require.NoError(t, r.Err)
	assert.Equal(t, runID, r.RunID)
	assert.Equal(t, "streamed", r.Answer)
	assert.Equal(t, r.Trace.Nodes(), nodes)
}
