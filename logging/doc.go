// Package logging provides a minimal logging interface and adapters for FileMesh.
//
// The Logger interface defines the leveled, key/value logging methods the
// engine, graph and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping a zap SugaredLogger
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Backend: "zap"})
//	eng := engine.New(compiled, func(o *engine.Options) { o.Logger = logger })
package logging
