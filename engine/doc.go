// Package engine implements the execution driver of FileMesh.
//
// An Engine owns one compiled orchestration graph and runs it once per
// request:
//
//  1. A fresh conversation state is seeded with the request text.
//  2. The graph runs step by step; every step is recorded in the run trace
//     and reported to the registered callbacks.
//  3. On completion the answer is the last worker-authored reply, tracked
//     explicitly while the run progresses.
//  4. On failure the error is classified (see core.Kind) and converted into
//     a diagnostic and a status code. Nothing is retried.
//
// # Concurrency
//
// Runs are independent: each gets its own state, trace and core.RunContext.
// The compiled graph, the registry and the models are shared read-only.
// MaxConcurrentRuns bounds admission with a weighted semaphore; a saturated
// engine rejects new runs with core.ErrBusy (status 503) instead of queueing.
//
// # Usage
//
//	eng := engine.New(compiled, func(o *engine.Options) {
//	    o.Config.MaxSteps = 25
//	    o.Logger = logger
//	})
//
//	answer, status := eng.Submit(ctx, "Create a file named 'a.txt' with content 'hi'")
//
// Use Execute for the full Result (run ID, trace, classified error) and
// Invoke to observe steps while the run is in flight.
package engine
