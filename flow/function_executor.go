package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/tool"
)

// FunctionExecutor executes a batch of function calls, possibly in parallel.
// Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and report the failure as a tool error)
//   - Return exactly one FunctionResponsePart per incoming FunctionCall, in call order
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, fnCalls []core.FunctionCall) []core.Part
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(fnCalls))
	LogStartEvents bool // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(runCtx *core.RunContext, agent FlowAgent, fnCalls []core.FunctionCall) []core.Part {
	n := len(fnCalls)
	if n == 0 {
		return nil
	}

	registry := agent.GetTools()
	parts := make([]core.Part, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		parts[0] = e.executeOne(runCtx, agent, registry, fnCalls[0])
		return parts
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()

	var g errgroup.Group
	g.SetLimit(maxPar)

	for i, fc := range fnCalls {
		g.Go(func() error {
			parts[i] = e.executeOne(runCtx, agent, registry, fc)
			return nil
		})
	}

	_ = g.Wait()

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return parts
}

func (e *parallelFunctionExecutor) executeOne(
	runCtx *core.RunContext,
	agent FlowAgent,
	registry map[string]tool.Tool,
	fc core.FunctionCall,
) core.Part {
	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	if ctxErr := runCtx.Err(); ctxErr != nil {
		err = ctxErr
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = panicError(r)
					runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
				}
			}()
			result, err = executeTool(registry, core.NewToolContext(runCtx, fc.ID), fc.Name, fc.Arguments)
		}()
	}

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
	if err != nil {
		resp.Response = nil
		resp.Error = err.Error()
	}

	return core.FunctionResponsePart{FunctionResponse: resp}
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup & execution using the agent tool registry.
func executeTool(registry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := registry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	var argMap map[string]any
	if args == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return impl.Call(toolCtx, argMap)
}
