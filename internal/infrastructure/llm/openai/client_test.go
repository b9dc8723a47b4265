package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func TestEmbedderRestoresInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" || r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "sk-test", "gpt", "emb", nil))
	got, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestCompleterSendsTemperatureAndPrompt(t *testing.T) {
	var payload struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"150 Mitarbeiter"}}]}`))
	}))
	defer server.Close()

	completer := NewCompleter(New(server.URL, "", "gpt-4o-mini", "emb", nil))
	got, err := completer.Complete(context.Background(), "Wie viele?", 0.7)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "150 Mitarbeiter" {
		t.Fatalf("unexpected answer %q", got)
	}
	if payload.Model != "gpt-4o-mini" || payload.Temperature != 0.7 || len(payload.Messages) != 1 || payload.Messages[0].Content != "Wie viele?" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCompleterRateLimitIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewCompleter(New(server.URL, "k", "m", "e", nil)).Complete(context.Background(), "q", 0)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
