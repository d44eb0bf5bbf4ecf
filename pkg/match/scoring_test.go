package match

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fundermatch/platform/pkg/common/config"
)

func scoringClientFor(t *testing.T, handler http.Handler) *ScoringClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		LLMAPIKey:    "test-key",
		LLMBaseURL:   server.URL,
		LLMModelName: "test-model",
	}
	return NewScoringClient(cfg, DefaultRules())
}

func TestScoringClientExtractsFirstTextBlock(t *testing.T) {
	client := scoringClientFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing version header")
		}

		var payload struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    string `json:"system"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("undecodable request body: %v", err)
		}
		if payload.Model != "test-model" || payload.MaxTokens != 4096 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		if len(payload.Messages) != 1 || payload.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", payload.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": [{"type": "thinking", "text": "hmm"}, {"type": "text", "text": "[]"}]}`))
	}))

	text, err := client.Score(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "[]" {
		t.Fatalf("expected first text block, got %q", text)
	}
}

func TestScoringClientSurfacesUpstreamError(t *testing.T) {
	client := scoringClientFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	}))

	_, err := client.Score(context.Background(), "system", "prompt")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestScoringClientRejectsTextlessResponse(t *testing.T) {
	client := scoringClientFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": []}`))
	}))

	_, err := client.Score(context.Background(), "system", "prompt")
	if err == nil || !strings.Contains(err.Error(), "no text content") {
		t.Fatalf("expected no-text error, got %v", err)
	}
}
