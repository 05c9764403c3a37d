package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/domain"
)

func TestHooks_Prompts(t *testing.T) {
	m := New()
	h := m.Hooks()
	ctx := context.Background()

	h.OnPromptEnter(ctx, &domain.PromptEvent{Prompt: "ask"})
	h.OnPromptLeave(ctx, &domain.PromptEvent{Prompt: "ask", Next: "done", Queries: 7, Duration: time.Second})
	h.OnPromptEnter(ctx, &domain.PromptEvent{Prompt: "ask"})
	h.OnPromptLeave(ctx, &domain.PromptEvent{Prompt: "ask", IsError: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PromptVisits.WithLabelValues("ask")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PromptErrors.WithLabelValues("ask")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsTaken.WithLabelValues("ask", "done")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ModelQueries.WithLabelValues("ask")))
}

func TestHooks_Calls(t *testing.T) {
	m := New()
	h := m.Hooks()
	h.OnCallReturn(context.Background(), &domain.CallEvent{Cog: "double"})
	h.OnCallReturn(context.Background(), &domain.CallEvent{Cog: "double", IsError: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calls.WithLabelValues("double", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calls.WithLabelValues("double", "error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Hooks().OnPromptEnter(context.Background(), &domain.PromptEvent{Prompt: "main"})

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `cogflow_prompt_visits_total{prompt="main"} 1`))
}
