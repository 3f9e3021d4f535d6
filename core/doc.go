// Package core provides the foundational domain types shared by every layer
// of FileMesh:
//
//   - Content / Part, the model-facing message representation
//   - Message and State, the conversation state threaded through a run
//   - Route and Registry, the closed routing vocabulary of the supervisor
//   - Trace, the ordered per-step snapshots of a run
//   - Error and Kind, the failure taxonomy mapped to status codes
//   - RunContext / ToolContext, the explicit per-run execution scope
//
// The package has no knowledge of models, tools or transports. It exposes small
// value types and interfaces so graph, agent and engine can be tested against
// deterministic stubs.
package core
