package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/steveyegge/cookbook/internal/history"
	"github.com/steveyegge/cookbook/internal/pipeline"
	"github.com/steveyegge/cookbook/internal/progress"
	"github.com/steveyegge/cookbook/internal/retry"
	"github.com/steveyegge/cookbook/internal/types"
)

type fakeRunner struct {
	mu     sync.Mutex
	reqs   []pipeline.Request
	ctxErr error
	result *pipeline.Result
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) *pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.ctxErr = ctx.Err()
	if f.result != nil {
		return f.result
	}
	return &pipeline.Result{
		RepairedFiles: []types.File{{Path: "src/App.tsx", Content: "x"}},
		PreviewURL:    "https://sb.example",
		SandboxID:     "sb-1",
		BuildErrors:   []types.BuildError{},
		SessionID:     req.SessionID,
		Mode:          req.Mode(),
	}
}

func newTestRegistry(t *testing.T) *progress.Registry {
	t.Helper()
	clock := retry.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := progress.NewRegistry(progress.Config{Clock: clock, Logger: zaptest.NewLogger(t)})
	t.Cleanup(reg.Close)
	return reg
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Runner == nil {
		cfg.Runner = &fakeRunner{}
	}
	if cfg.Registry == nil {
		cfg.Registry = newTestRegistry(t)
	}
	cfg.Logger = zaptest.NewLogger(t)
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGenerate(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(t, Config{Runner: runner})

	rec := do(t, s, http.MethodPost, "/api/generate", `{"description":"a red button","sessionId":"s1","useFixer":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "s1", res["sessionId"])
	assert.Equal(t, "https://sb.example", res["previewUrl"])
	assert.Equal(t, false, res["hasErrors"])

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, "a red button", runner.reqs[0].Description)
	assert.True(t, runner.reqs[0].UseFixer)
}

func TestGenerateDetachesFromRequestContext(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(t, Config{Runner: runner})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"description":"x"}`)).WithContext(ctx)
	s.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, runner.reqs, 1)
	assert.NoError(t, runner.ctxErr)
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"description":`},
		{"missing description", `{"description":"  "}`},
		{"bad existing file", `{"existingFiles":[{"path":"../x","content":""}],"editInstruction":"fix"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s := newTestServer(t, Config{Runner: runner})
			rec := do(t, s, http.MethodPost, "/api/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.Empty(t, runner.reqs)
		})
	}

	t.Run("edit and debug need no description", func(t *testing.T) {
		runner := &fakeRunner{}
		s := newTestServer(t, Config{Runner: runner})
		rec := do(t, s, http.MethodPost, "/api/generate", `{"existingFiles":[{"path":"a","content":"old"}],"editInstruction":"rename"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = do(t, s, http.MethodPost, "/api/generate", `{"debug":true}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, runner.reqs, 2)
	})
}

func TestGenerateFailureResult(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.Result{
		Error:     "generation failed",
		Message:   "generate: generator returned no files",
		SessionID: "s1",
	}}
	s := newTestServer(t, Config{Runner: runner})

	rec := do(t, s, http.MethodPost, "/api/generate", `{"description":"x","sessionId":"s1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "generation failed", res["error"])
	assert.Equal(t, "s1", res["sessionId"])
	assert.NotEmpty(t, res["message"])
}

func TestGenerateRateLimited(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 1})

	rec := do(t, s, http.MethodPost, "/api/generate", `{"description":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/generate", `{"description":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other endpoints are not limited
	rec = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// readEvents reads SSE data frames until the stream ends or n frames arrived
func readEvents(t *testing.T, body *bufio.Scanner, n int) []map[string]any {
	t.Helper()
	var events []map[string]any
	for body.Scan() {
		line := body.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
		if n > 0 && len(events) == n {
			break
		}
	}
	return events
}

func TestProgressStreamEndsOnCompletion(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestServer(t, Config{Registry: reg})
	srv := httptest.NewServer(s)
	defer srv.Close()

	tracker := reg.Create("s1", []progress.StepDef{{ID: "generate"}, {ID: "verify"}})
	defer tracker.Cleanup()

	resp, err := http.Get(srv.URL + "/api/progress/s1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	first := readEvents(t, scanner, 2)
	require.Len(t, first, 2)
	assert.Equal(t, "connected", first[0]["type"])
	assert.Equal(t, "s1", first[0]["sessionId"])
	assert.Equal(t, "progress", first[1]["type"])

	for _, id := range []string{"generate", "verify"} {
		tracker.StartStep(id)
		tracker.CompleteStep(id)
	}

	rest := readEvents(t, scanner, 0)
	require.NotEmpty(t, rest, "stream delivers the final state before closing")
	last := rest[len(rest)-1]
	assert.Equal(t, "progress", last["type"])
	assert.Equal(t, true, last["isComplete"])
}

func TestProgressStreamStopsOnDisconnect(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestServer(t, Config{Registry: reg})
	srv := httptest.NewServer(s)
	defer srv.Close()

	tracker := reg.Create("s1", []progress.StepDef{{ID: "generate"}})
	defer tracker.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/progress/s1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	events := readEvents(t, bufio.NewScanner(resp.Body), 2)
	require.Len(t, events, 2)
	cancel()
	_ = resp.Body.Close()

	// the run keeps going without the client
	tracker.StartStep("generate")
	tracker.CompleteStep("generate")
	st, ok := reg.Get("s1")
	require.True(t, ok)
	assert.True(t, st.IsComplete)
}

func TestProgressStreamEndsAfterCleanup(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestServer(t, Config{Registry: reg, KeepAlive: 10 * time.Millisecond})
	srv := httptest.NewServer(s)
	defer srv.Close()

	tracker := reg.Create("s1", []progress.StepDef{{ID: "generate"}, {ID: "verify"}})

	resp, err := http.Get(srv.URL + "/api/progress/s1")
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	require.Len(t, readEvents(t, scanner, 2), 2)

	tracker.StartStep("generate")
	tracker.ErrorStep("generate", "boom")
	tracker.Cleanup()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for scanner.Scan() {
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after session cleanup")
	}
}

func TestProgressStreamEndsPromptlyOnFailedRun(t *testing.T) {
	reg := newTestRegistry(t)
	s := newTestServer(t, Config{Registry: reg, KeepAlive: time.Hour})
	srv := httptest.NewServer(s)
	defer srv.Close()

	tracker := reg.Create("s1", []progress.StepDef{{ID: "generate"}, {ID: "sandbox"}, {ID: "verify"}})

	resp, err := http.Get(srv.URL + "/api/progress/s1")
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	require.Len(t, readEvents(t, scanner, 2), 2)

	tracker.StartStep("generate")
	tracker.CompleteStep("generate")
	tracker.StartStep("sandbox")
	tracker.FailActive("sandbox provisioning failed")
	tracker.Cleanup()

	events := make(chan []map[string]any, 1)
	go func() {
		var rest []map[string]any
		for scanner.Scan() {
			var ev map[string]any
			if json.Unmarshal([]byte(strings.TrimPrefix(scanner.Text(), "data: ")), &ev) == nil {
				rest = append(rest, ev)
			}
		}
		events <- rest
	}()
	select {
	case rest := <-events:
		require.NotEmpty(t, rest)
		last := rest[len(rest)-1]
		assert.Equal(t, true, last["hasError"])
		assert.Equal(t, false, last["isComplete"])
	case <-time.After(2 * time.Second):
		t.Fatal("stream of a failed run stayed open")
	}
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	store, err := history.Open(ctx, ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, store.Record(ctx, history.Run{
			ID: id, SessionID: "s1", Mode: "generate", StartedAt: now, FinishedAt: now,
			Result: json.RawMessage(`{"sessionId":"s1"}`),
		}))
	}

	s := newTestServer(t, Config{History: store})

	rec := do(t, s, http.MethodGet, "/api/runs?session=s1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []history.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rec = do(t, s, http.MethodGet, "/api/runs/r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":{"sessionId":"s1"}`)

	rec = do(t, s, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/runs?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsWithoutHistory(t *testing.T) {
	s := newTestServer(t, Config{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/runs", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/runs/x", "").Code)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Registry: progress.NewRegistry(progress.Config{})})
	assert.Error(t, err)
	_, err = New(Config{Runner: &fakeRunner{}})
	assert.Error(t, err)
}
