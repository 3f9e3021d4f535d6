// Package model defines the provider-agnostic abstractions for the reasoning
// capability consumed by FileMesh workers and the supervisor.
//
// Core goals:
//   - Hide vendor SDKs behind a single Model interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Support schema-constrained replies (ResponseSchema) for routing choices
//   - Facilitate deterministic stubs for tests (Func, MockModel)
//
// Providers (openai, anthropic, gemini sub-packages) implement Model so the
// orchestration layers remain decoupled from vendor SDKs.
package model
