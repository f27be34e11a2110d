package llm

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudge-sh/nudge/internal/config"
	"github.com/nudge-sh/nudge/pkg/protocol"
)

func testBundle() *protocol.ContextBundle {
	return &protocol.ContextBundle{Sections: []protocol.ContextSection{
		{Kind: protocol.SectionHistory, Payload: "git status", Mandatory: true},
	}}
}

func TestConnector_Complete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"git commit -m fix"}}]}`))
	}))
	defer srv.Close()

	cfg := config.ModelConfig{Endpoint: srv.URL, APIKey: "test-key", Name: "gpt-test", TimeoutMS: 2000}
	conn := New(cfg, DefaultBreakerConfig(), nil)

	parsed, err := conn.Complete(t.Context(), protocol.FormatPlain, testBundle(), "git comm", 8)
	require.NoError(t, err)
	assert.Equal(t, "git commit -m fix", parsed.Suggestion)
}

func TestConnector_Complete_HTTPErrorDoesNotRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	cfg := config.ModelConfig{Endpoint: srv.URL, Name: "gpt-test", TimeoutMS: 2000}
	conn := New(cfg, DefaultBreakerConfig(), nil)

	_, err := conn.Complete(t.Context(), protocol.FormatPlain, testBundle(), "git", 3)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestConnector_Complete_RetriesOnConnectionError(t *testing.T) {
	cfg := config.ModelConfig{Endpoint: "http://127.0.0.1:1", Name: "gpt-test", TimeoutMS: 200}
	conn := New(cfg, DefaultBreakerConfig(), nil)

	_, err := conn.Complete(t.Context(), protocol.FormatPlain, testBundle(), "git", 3)
	require.Error(t, err)
}

func TestConnector_Complete_BreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.ModelConfig{Endpoint: srv.URL, Name: "gpt-test", TimeoutMS: 2000}
	bcfg := BreakerConfig{FailureThreshold: 2, OpenDuration: time.Hour}
	conn := New(cfg, bcfg, nil)

	_, _ = conn.Complete(t.Context(), protocol.FormatPlain, testBundle(), "git", 3)
	_, _ = conn.Complete(t.Context(), protocol.FormatPlain, testBundle(), "git", 3)

	assert.Equal(t, BreakerOpen, conn.BreakerState())

	_, err := conn.Complete(t.Context(), protocol.FormatPlain, testBundle(), "git", 3)
	require.Error(t, err)
}

func TestBuildPrompt_MarksCursor(t *testing.T) {
	prompt := BuildPrompt(protocol.FormatPlain, testBundle(), "git comm", 3)
	assert.Contains(t, prompt, "git<CURSOR> comm")
}

func TestSystemPrompt_UsesOverride(t *testing.T) {
	assert.Equal(t, "custom prompt", SystemPrompt("custom prompt"))
	assert.Contains(t, SystemPrompt(""), "Nudge")
}
