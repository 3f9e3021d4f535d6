package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/graph"
	"github.com/hupe1980/filemesh/logging"
)

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentRuns limits the number of runs executing simultaneously.
	// Runs beyond the limit are rejected with core.ErrBusy. 0 = unlimited.
	MaxConcurrentRuns int

	// MaxSteps bounds the number of node executions per run. 0 = unlimited.
	MaxSteps int

	// RunTimeout bounds a whole run. 0 = no deadline beyond the caller's.
	RunTimeout time.Duration
}

// DefaultConfig provides default configuration values.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	MaxSteps:          25,
}

// Options configures an Engine instance.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger

	// Callbacks are registered in order on the engine's CallbackManager.
	Callbacks []Callback

	// NewRunID generates run identifiers. Defaults to random UUIDs.
	NewRunID func() string
}

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Request string
	Answer  string
	Status  int
	Trace   core.Trace
	Err     error

	StartedAt time.Time
	Duration  time.Duration

	// ended is set once the terminal callbacks have been dispatched.
	ended bool
}

// OK reports whether the run completed successfully.
func (r *Result) OK() bool { return r.Err == nil }

// Message returns the answer on success and a short diagnostic on failure.
func (r *Result) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Answer
}

// Engine runs the orchestration graph for individual requests.
type Engine struct {
	graph     *graph.Compiled
	config    Config
	logger    logging.Logger
	callbacks *CallbackManager
	newRunID  func() string
	slots     *semaphore.Weighted

	runsMu     sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New creates an engine for a compiled graph.
func New(g *graph.Compiled, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:   DefaultConfig,
		Logger:   logging.NoOpLogger{},
		NewRunID: uuid.NewString,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	e := &Engine{
		graph:      g,
		config:     opts.Config,
		logger:     opts.Logger,
		callbacks:  NewCallbackManager(),
		newRunID:   opts.NewRunID,
		activeRuns: make(map[string]context.CancelFunc),
	}

	if opts.Config.MaxConcurrentRuns > 0 {
		e.slots = semaphore.NewWeighted(int64(opts.Config.MaxConcurrentRuns))
	}

	for _, cb := range opts.Callbacks {
		e.callbacks.RegisterCallback(cb)
	}

	return e
}

// Graph returns the compiled graph the engine runs.
func (e *Engine) Graph() *graph.Compiled { return e.graph }

// Callbacks returns the engine's callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Submit runs one request and returns (answer, status) on success or
// (diagnostic, status) on failure. It never panics past this boundary.
func (e *Engine) Submit(ctx context.Context, text string) (string, int) {
	r := e.Execute(ctx, text)
	return r.Message(), r.Status
}

// Execute runs one request to completion.
func (e *Engine) Execute(ctx context.Context, text string) *Result {
	return e.execute(ctx, e.newRunID(), text, nil)
}

// Invoke starts a run asynchronously. Trace entries are delivered on the
// first channel as the run progresses; the result is delivered on the second
// once the run ends, after which both channels are closed. Callers must drain
// the step channel or cancel ctx.
func (e *Engine) Invoke(ctx context.Context, text string) (string, <-chan core.TraceEntry, <-chan *Result) {
	runID := e.newRunID()

	steps := make(chan core.TraceEntry)
	results := make(chan *Result, 1)

	go func() {
		defer close(results)
		defer close(steps)

		results <- e.execute(ctx, runID, text, func(entry core.TraceEntry) error {
			select {
			case steps <- entry:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return runID, steps, results
}

// Cancel stops an active run. It returns an error if the run is unknown.
func (e *Engine) Cancel(runID string) error {
	e.runsMu.Lock()
	cancel, exists := e.activeRuns[runID]
	e.runsMu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the number of runs currently executing.
func (e *Engine) ActiveRuns() int {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()

	return len(e.activeRuns)
}

func (e *Engine) execute(ctx context.Context, runID, text string, observe func(core.TraceEntry) error) (result *Result) {
	start := time.Now()
	result = &Result{RunID: runID, Request: text, StartedAt: start}

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("engine.run.panic", "run_id", runID, "recover", p)
			err := core.NewError(core.KindInternal, "", fmt.Errorf("panic: %v", p))
			result.Answer = ""

			// Callbacks already ran (or panicked) for this result.
			if result.ended {
				result.Err = err
				result.Status = core.StatusCode(err)
				result.Duration = time.Since(start)
				return
			}
			e.fail(ctx, result, err)
		}
	}()

	if strings.TrimSpace(text) == "" {
		return e.fail(ctx, result, core.NewError(core.KindInvalidInput, "", core.ErrEmptyRequest))
	}

	if e.slots != nil {
		if !e.slots.TryAcquire(1) {
			e.logger.Warn("engine.run.rejected", "run_id", runID, "max_concurrent_runs", e.config.MaxConcurrentRuns)
			return e.fail(ctx, result, core.NewError(core.KindUnavailable, "", core.ErrBusy))
		}
		defer e.slots.Release(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if e.config.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.config.RunTimeout)
	}
	defer cancel()

	e.track(runID, cancel)
	defer e.untrack(runID)

	rc := core.NewRunContext(runCtx, runID, e.config.MaxSteps, e.logger)

	rc.LogInfo("engine.run.start", "request_length", len(text))

	if err := e.callbacks.ExecuteCallbacks(runCtx, CallbackRunStart, &CallbackContext{RunID: runID, Request: text}); err != nil {
		return e.fail(ctx, result, classify("", err))
	}

	state := core.NewState(text)

	var lastReply *core.Message

	err := e.graph.Stream(rc, state, func(entry core.TraceEntry) error {
		result.Trace = append(result.Trace, entry)

		if entry.Node != core.SupervisorNode {
			if m, ok := entry.State.Last(); ok && m.Author == entry.Node {
				lastReply = &m
			}
		}

		if err := e.callbacks.ExecuteCallbacks(runCtx, CallbackStep, &CallbackContext{RunID: runID, Request: text, Entry: &entry}); err != nil {
			return classify(entry.Node, err)
		}

		if observe != nil {
			return observe(entry)
		}

		return nil
	})
	if err != nil {
		return e.fail(ctx, result, err)
	}

	if lastReply == nil {
		return e.fail(ctx, result, core.NewError(core.KindInvariant, core.SupervisorNode, core.ErrNoWorkerReply))
	}

	result.Answer = lastReply.Content
	result.Status = core.StatusCode(nil)

	rc.LogInfo("engine.run.complete",
		"steps", len(result.Trace),
		"answer_length", len(result.Answer),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	e.end(ctx, result)

	return result
}

func (e *Engine) fail(ctx context.Context, result *Result, err error) *Result {
	result.ended = true
	result.Err = err
	result.Status = core.StatusCode(err)

	e.logger.Warn("engine.run.failed",
		"run_id", result.RunID,
		"kind", core.KindOf(err).String(),
		"status", result.Status,
		"steps", len(result.Trace),
		"error", err.Error(),
	)

	cbCtx := &CallbackContext{RunID: result.RunID, Request: result.Request, Result: result, Err: err}
	if cbErr := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackOnError, cbCtx); cbErr != nil {
		e.logger.Warn("engine.callback.error", "run_id", result.RunID, "type", CallbackOnError, "error", cbErr.Error())
	}

	e.end(ctx, result)

	return result
}

func (e *Engine) end(ctx context.Context, result *Result) {
	result.ended = true
	result.Duration = time.Since(result.StartedAt)

	cbCtx := &CallbackContext{RunID: result.RunID, Request: result.Request, Result: result, Err: result.Err}
	if err := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackRunEnd, cbCtx); err != nil {
		e.logger.Warn("engine.callback.error", "run_id", result.RunID, "type", CallbackRunEnd, "error", err.Error())
	}
}

func (e *Engine) track(runID string, cancel context.CancelFunc) {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	e.activeRuns[runID] = cancel
}

func (e *Engine) untrack(runID string) {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	delete(e.activeRuns, runID)
}

// classify attaches a kind to errors raised outside of nodes (callbacks,
// observers). Already classified errors pass through.
func classify(node string, err error) error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	return core.NewError(core.KindOf(err), node, err)
}
