package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/adapters/memory"
	"github.com/aretw0/cogflow/pkg/domain"
)

type mockEngine struct {
	program *domain.Program
	hooks   domain.LifecycleHooks
	gotIn   map[string]any
}

func (m *mockEngine) Program() *domain.Program { return m.program }

func (m *mockEngine) Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error) {
	if _, err := m.program.EntryPrompt(entry); err != nil {
		return nil, err
	}
	m.gotIn = inputs
	if m.hooks.OnPromptEnter != nil {
		m.hooks.OnPromptEnter(ctx, &domain.PromptEvent{
			EventBase: domain.EventBase{Type: domain.EventPromptEnter, RunID: "run-1"},
			Prompt:    "ask",
		})
	}
	return map[string]any{"answer": "blue"}, nil
}

func (m *mockEngine) Graph(kind, prompt string) (string, error) {
	if _, ok := m.program.Prompts[prompt]; !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrPromptNotFound, prompt)
	}
	return "graph TD\n  %% " + kind + "\n", nil
}

func newEngine() *mockEngine {
	return &mockEngine{program: &domain.Program{
		Name:    "quiz",
		Entries: map[string]string{"main": "ask"},
		Prompts: map[string]*domain.Prompt{"ask": {
			Name:   "ask",
			Fields: []*domain.Field{{Name: "answer", Depth: 1, Format: &domain.Format{Kind: domain.FormatCompletion}}},
		}},
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGetHealth(t *testing.T) {
	rr := do(t, NewHandler(newEngine()), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestGetInfo(t *testing.T) {
	rr := do(t, NewHandler(newEngine(), WithVersion("1.2.3")), http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "cogflow-http", resp["app"])
	assert.Equal(t, "1.2.3", resp["version"])
	assert.Equal(t, "quiz", resp["program"])
}

func TestGetProgram(t *testing.T) {
	rr := do(t, NewHandler(newEngine()), http.MethodGet, "/program", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var v ProgramView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	require.Len(t, v.Prompts, 1)
	assert.Equal(t, []string{"answer"}, v.Prompts[0].Fields)
	assert.Equal(t, []string{"return"}, v.Prompts[0].Flows)
}

func TestRun(t *testing.T) {
	eng := newEngine()
	h := NewHandler(eng)

	rr := do(t, h, http.MethodPost, "/run/main", `{"n": 3, "xs": [1, 2.5]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"outputs":{"answer":"blue"}}`, rr.Body.String())
	assert.Equal(t, 3, eng.gotIn["n"])
	assert.Equal(t, []any{1, 2.5}, eng.gotIn["xs"])

	rr = do(t, h, http.MethodPost, "/run/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/run", "{bad")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRuns(t *testing.T) {
	store := memory.NewStore()
	rec := domain.NewRunRecord("r1", "quiz", "main", nil)
	require.NoError(t, store.Save(context.Background(), rec))
	h := NewHandler(newEngine(), WithStore(store))

	rr := do(t, h, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"runs":["r1"]}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/runs/r1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cog":"quiz"`)

	rr = do(t, h, http.MethodGet, "/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, NewHandler(newEngine()), http.MethodGet, "/runs", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetGraph(t *testing.T) {
	h := NewHandler(newEngine())
	rr := do(t, h, http.MethodGet, "/graph/ask?kind=concrete", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "%% concrete")

	rr = do(t, h, http.MethodGet, "/graph/ghost", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "up 1") })
	rr := do(t, NewHandler(newEngine(), WithMetrics(metrics)), http.MethodGet, "/metrics", "")
	assert.Equal(t, "up 1", rr.Body.String())

	rr = do(t, NewHandler(newEngine()), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSubscribeEvents(t *testing.T) {
	eng := newEngine()
	sm := NewStreamManager(nil)
	eng.hooks = sm.Hooks()
	h := NewHandler(eng, WithStreams(sm))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events?run_id=run-1", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(sub, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		sm.mu.RLock()
		defer sm.mu.RUnlock()
		return len(sm.subscribers["run-1"]) == 1
	}, time.Second, 5*time.Millisecond)

	rr := do(t, h, http.MethodPost, "/run/main", "")
	require.Equal(t, http.StatusOK, rr.Code)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	out := sub.Body.String()
	assert.Contains(t, out, "event: ping")
	assert.Contains(t, out, `"type":"prompt_enter"`)
	assert.Contains(t, out, `"prompt":"ask"`)
}
