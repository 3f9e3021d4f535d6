package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_SnapshotIsolation(t *testing.T) {
	s := NewState("hello")
	require.Equal(t, 1, s.Len())

	snap := s.Snapshot()
	s.Append(Message{Content: "reply", Author: "A"})
	s.Messages[0].Content = "changed"

	assert.Len(t, snap.Messages, 1)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.Equal(t, UserAuthor, snap.Messages[0].Author)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "A", last.Author)
}

func TestState_LastEmpty(t *testing.T) {
	var s State
	_, ok := s.Last()
	assert.False(t, ok)
}

func TestStepLimiter(t *testing.T) {
	l := NewStepLimiter(2)
	assert.NoError(t, l.Increment())
	assert.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())

	err := l.Increment()
	assert.ErrorIs(t, err, ErrStepLimitExceeded)
	assert.Equal(t, 3, l.Count())

	assert.Equal(t, -1, NewStepLimiter(0).Remaining())
}

func TestRunContext_Scoping(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", 5, nil)
	require.NotNil(t, rc.Logger(), "nil logger must be replaced by a no-op logger")

	child := rc.WithNode("A")
	assert.Equal(t, "A", child.Node)
	assert.Equal(t, "", rc.Node)
	assert.Same(t, rc.Limiter, child.Limiter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rc.WithContext(ctx).Err())
	assert.NoError(t, rc.Err())

	tc := NewToolContext(child, "call-1")
	assert.NoError(t, tc.Validate())
	assert.Equal(t, "A", tc.Node())
	assert.Equal(t, "run-1", tc.RunID())
}

func TestContent_TextAndCalls(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "a"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "read_file"}},
		TextPart{Text: "b"},
	}}
	assert.Equal(t, "ab", c.Text())
	assert.Len(t, c.FunctionCalls(), 1)
	assert.Equal(t, "x", NewTextContent("user", "x").Text())
}
