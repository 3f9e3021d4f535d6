package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	records [][]any
}

func (r *recordingLogger) log(msg string, args []any) {
	r.records = append(r.records, append([]any{msg}, args...))
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.log(msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.log(msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.log(msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.log(msg, args) }

func TestRunContext_ScopedLogging(t *testing.T) {
	rec := &recordingLogger{}

	rc := NewRunContext(context.Background(), "run-7", 0, rec)
	rc.LogInfo("start", "n", 1)

	node := rc.WithNode("FileOperations")
	node.LogWarn("node")

	tc := NewToolContext(node, "call-3")
	tc.LogDebug("tool", "ok", true)

	rc.LogError("after")

	assert.Equal(t, [][]any{
		{"start", "run_id", "run-7", "n", 1},
		{"node", "run_id", "run-7", "node", "FileOperations"},
		{"tool", "run_id", "run-7", "node", "FileOperations", "call_id", "call-3", "ok", true},
		{"after", "run_id", "run-7"},
	}, rec.records)

	assert.Same(t, rec, tc.Logger())
}

func TestRunContext_NilLogger(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", 0, nil)

	assert.NotPanics(t, func() { rc.WithNode("n").LogInfo("quiet") })
}
