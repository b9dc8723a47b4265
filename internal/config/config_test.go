package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CHUNK_SIZE", "CHUNK_OVERLAP", "RAG_TOP_K", "LLM_PROVIDER", "EVAL_METRICS", "EVAL_REPORT_FORMATS", "RETRY_MAX_ATTEMPTS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("expected chunking 1000/200, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 4 {
		t.Fatalf("expected default top k 4, got %d", cfg.RAGTopK)
	}
	if cfg.LLMProvider != "ollama" || cfg.VectorBackend != "local" || cfg.ChatStore != "sqlite" {
		t.Fatalf("unexpected backends %q %q %q", cfg.LLMProvider, cfg.VectorBackend, cfg.ChatStore)
	}
	if cfg.EvalMetrics != nil {
		t.Fatalf("expected no extra metrics, got %v", cfg.EvalMetrics)
	}
	if !reflect.DeepEqual(cfg.EvalReportFormats, []string{"csv", "txt"}) {
		t.Fatalf("unexpected report formats %v", cfg.EvalReportFormats)
	}
	if cfg.RetryMaxAttempts != 1 {
		t.Fatalf("retries must be off by default, got %d", cfg.RetryMaxAttempts)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("EVAL_METRICS", " Answer_Similarity, ,answer_correctness")
	t.Setenv("EVAL_RATE_PER_SECOND", "2.5")
	t.Setenv("BREAKER_OPEN_TIMEOUT_SECONDS", "5")
	t.Setenv("CHUNK_SIZE", "not-a-number")

	cfg := Load()
	if cfg.LLMProvider != "openai" || cfg.LLMTemperature != 0.3 {
		t.Fatalf("unexpected llm settings %q %v", cfg.LLMProvider, cfg.LLMTemperature)
	}
	if !reflect.DeepEqual(cfg.EvalMetrics, []string{"answer_similarity", "answer_correctness"}) {
		t.Fatalf("unexpected metrics %v", cfg.EvalMetrics)
	}
	if cfg.EvalRatePerSecond != 2.5 || cfg.BreakerOpenTimeout != 5*time.Second {
		t.Fatalf("unexpected rate/breaker %v %v", cfg.EvalRatePerSecond, cfg.BreakerOpenTimeout)
	}
	if cfg.ChunkSize != 1000 {
		t.Fatalf("invalid int must fall back, got %d", cfg.ChunkSize)
	}
}

func TestLoadTrafficControl(t *testing.T) {
	t.Setenv("API_RATE_LIMIT_RPS", "12.5")
	t.Setenv("API_MAX_IN_FLIGHT", "4")
	t.Setenv("API_BACKPRESSURE_WAIT_MS", "40")

	cfg := Load()
	if cfg.APIRateLimitRPS != 12.5 || cfg.APIMaxInFlight != 4 {
		t.Fatalf("unexpected traffic settings %v %d", cfg.APIRateLimitRPS, cfg.APIMaxInFlight)
	}
	if cfg.APIBackpressureWait != 40*time.Millisecond {
		t.Fatalf("unexpected backpressure wait %v", cfg.APIBackpressureWait)
	}
}
