package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/filemesh/core"
)

// CallbackType defines the lifecycle points where callbacks are executed.
//
// Callbacks run synchronously on the run's goroutine. An error returned from
// a RunStart or Step callback aborts the run; errors from RunEnd and OnError
// callbacks are logged and otherwise ignored.
type CallbackType string

const (
	// CallbackRunStart is triggered after admission, before the first node.
	CallbackRunStart CallbackType = "run_start"

	// CallbackStep is triggered after every node with the new trace entry.
	CallbackStep CallbackType = "step"

	// CallbackRunEnd is triggered once per run with the final result.
	CallbackRunEnd CallbackType = "run_end"

	// CallbackOnError is triggered when a run fails, before CallbackRunEnd.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available at a lifecycle point.
type CallbackContext struct {
	// CallbackType indicates which lifecycle point triggered this execution.
	CallbackType CallbackType

	RunID   string
	Request string

	// Entry is set for CallbackStep.
	Entry *core.TraceEntry

	// Result is set for CallbackRunEnd and CallbackOnError.
	Result *Result

	// Err is set for CallbackOnError.
	Err error
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations must be safe for concurrent use: callbacks are shared by
// all runs of an engine.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	stepLogger := NewFunctionCallback(
//	    CallbackStep,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("%s step %d: %s", cc.RunID, cc.Entry.Step, cc.Entry.Node)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is a registry of callbacks executed in registration order.
// It is safe for concurrent registration and execution.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks of callbackType sequentially and stops
// at the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a log function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackStep, func(msg string) {
//	    log.Printf("[ENGINE] %s", msg)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute logs the lifecycle event. A nil log function is a no-op.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	switch {
	case callbackCtx.Entry != nil:
		c.logger(fmt.Sprintf("[%s] run=%s step=%d node=%s messages=%d",
			c.callbackType, callbackCtx.RunID, callbackCtx.Entry.Step, callbackCtx.Entry.Node, len(callbackCtx.Entry.State.Messages)))
	case callbackCtx.Result != nil:
		c.logger(fmt.Sprintf("[%s] run=%s status=%d steps=%d",
			c.callbackType, callbackCtx.RunID, callbackCtx.Result.Status, len(callbackCtx.Result.Trace)))
	default:
		c.logger(fmt.Sprintf("[%s] run=%s", c.callbackType, callbackCtx.RunID))
	}

	return nil
}

// StepValidationCallback checks every trace entry and aborts the run when
// the validator rejects it.
//
// Example:
//
//	noDeletes := NewStepValidationCallback(func(e core.TraceEntry) error {
//	    if last, _ := e.State.Last(); strings.Contains(last.Content, "deleted") {
//	        return errors.New("deletions are not allowed")
//	    }
//	    return nil
//	})
type StepValidationCallback struct {
	validator func(entry core.TraceEntry) error
}

// NewStepValidationCallback creates a new step validation callback.
func NewStepValidationCallback(validator func(entry core.TraceEntry) error) *StepValidationCallback {
	return &StepValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackStep).
func (c *StepValidationCallback) Type() CallbackType { return CallbackStep }

// Execute validates the step's trace entry.
func (c *StepValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Entry != nil {
		return c.validator(*callbackCtx.Entry)
	}
	return nil
}
