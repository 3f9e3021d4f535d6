package model

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/filemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_Func(t *testing.T) {
	m := Func(func(ctx context.Context, req Request) (Response, error) {
		return TextResponse("echo: " + req.Contents[0].Text()), nil
	})

	resp, err := Collect(context.Background(), m, Request{Contents: []core.Content{core.NewTextContent("user", "hi")}})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", resp.Content.Text())
	assert.False(t, resp.Partial)
}

func TestCollect_Error(t *testing.T) {
	boom := errors.New("boom")
	m := Func(func(context.Context, Request) (Response, error) { return Response{}, boom })

	_, err := Collect(context.Background(), m, Request{})
	assert.ErrorIs(t, err, boom)
}

type partialOnly struct{}

func (partialOnly) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error)
	out <- Response{Partial: true}
	close(out)
	close(errCh)
	return out, errCh
}

func (partialOnly) Info() Info { return Info{Name: "partial"} }

func TestCollect_NoFinal(t *testing.T) {
	_, err := Collect(context.Background(), partialOnly{}, Request{})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestCollect_ContextDeadline(t *testing.T) {
	m := Func(func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Collect(ctx, m, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockModel(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("hello", "world")

	resp, err := Collect(context.Background(), m, Request{Contents: []core.Content{core.NewTextContent("user", "hello")}})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Content.Text())

	schema := &ResponseSchema{Name: "route", Schema: map[string]any{
		"type":       "object",
		"properties": map[string]any{"next": map[string]any{"type": "string", "enum": []string{"FINISH", "A", "B"}}},
	}}

	pick := func(contents ...core.Content) string {
		resp, err := Collect(context.Background(), m, Request{Contents: contents, ResponseSchema: schema})
		require.NoError(t, err)
		var out map[string]string
		require.NoError(t, json.Unmarshal([]byte(resp.Content.Text()), &out))
		return out["next"]
	}

	assert.Equal(t, "A", pick(core.NewTextContent("user", "task"), core.NewTextContent("system", "choose")))

	worker := core.NewTextContent("user", "done")
	worker.Name = "A"
	assert.Equal(t, "FINISH", pick(core.NewTextContent("user", "task"), worker, core.NewTextContent("system", "choose")))
}
