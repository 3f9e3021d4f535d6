package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/filemesh/config"
	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/engine"
	"github.com/hupe1980/filemesh/history"
)

type fakeExecutor struct {
	got    []string
	result func(text string) *engine.Result
}

func (f *fakeExecutor) Execute(_ context.Context, text string) *engine.Result {
	f.got = append(f.got, text)
	return f.result(text)
}

func answering(answer string) *fakeExecutor {
	return &fakeExecutor{result: func(text string) *engine.Result {
		return &engine.Result{RunID: "run-1", Request: text, Answer: answer, Status: http.StatusOK}
	}}
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, AgentResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp AgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestAgent_OK(t *testing.T) {
	exec := answering("Created a.txt")
	h := NewHandler(exec)

	rec, resp := post(t, h, `{"msg":"Create a file named 'a.txt' with content 'hi'"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", rec.Header().Get(RunIDHeader))
	assert.Equal(t, AgentResponse{Msg: "Created a.txt", Answer: "Created a.txt", Status: http.StatusOK, RunID: "run-1"}, resp)
	assert.JSONEq(t, `{"msg":"Created a.txt","answer":"Created a.txt","status":200,"run_id":"run-1"}`, rec.Body.String())
	assert.Equal(t, []string{"Create a file named 'a.txt' with content 'hi'"}, exec.got)
}

func TestAgent_Failure(t *testing.T) {
	exec := &fakeExecutor{result: func(text string) *engine.Result {
		err := core.NewError(core.KindInvariant, core.SupervisorNode, errors.New("unknown route"))
		return &engine.Result{RunID: "run-2", Request: text, Err: err, Status: core.StatusCode(err)}
	}}

	rec, resp := post(t, NewHandler(exec), `{"msg":"do something"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Empty(t, resp.Answer)
	assert.Empty(t, resp.Msg)
	assert.Contains(t, resp.Error, "unknown route")
	assert.Equal(t, "run-2", resp.RunID)
}

func TestAgent_InvalidBodies(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"msg":`, http.StatusBadRequest},
		{"wrong type", `{"msg": 42}`, http.StatusBadRequest},
		{"missing msg", `{}`, http.StatusUnprocessableEntity},
		{"blank msg", `{"msg":"  "}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := answering("unused")

			rec, resp := post(t, NewHandler(exec), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, resp.Status)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, exec.got)
		})
	}
}

func TestAgent_BodyTooLarge(t *testing.T) {
	h := NewHandler(answering("unused"), func(o *Options) { o.MaxBodyBytes = 16 })

	rec, _ := post(t, h, `{"msg":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuxiliaryRoutes(t *testing.T) {
	h := NewHandler(answering("unused"), func(o *Options) {
		o.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("filemesh_runs_total 1"))
		})
		o.Graph = func() string { return "graph TD" }
	})

	for path, want := range map[string]string{
		"/healthz": "ok",
		"/metrics": "filemesh_runs_total 1",
		"/graph":   "graph TD",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, want, rec.Body.String(), path)
	}

	rec := httptest.NewRecorder()
	NewHandler(answering("unused")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GracefulShutdown(t *testing.T) {
	srv := New(NewHandler(answering("unused")), config.ServerConfig{
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRuns(t *testing.T) {
	store := history.NewInMemoryStore(0)
	store.Save(&engine.Result{RunID: "r1", Request: "q1", Answer: "a1", Status: http.StatusOK})
	store.Save(&engine.Result{RunID: "r2", Request: "q2", Answer: "a2", Status: http.StatusOK})

	h := NewHandler(answering("unused"), func(o *Options) { o.Runs = store })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "a1", got.Answer)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "r2", list[0].RunID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?q=q1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "r1", list[0].RunID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
