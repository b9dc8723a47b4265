package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func TestExecuteDoesNotRetryByDefault(t *testing.T) {
	exec := NewExecutor(Config{})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteRetriesWhenConfigured(t *testing.T) {
	exec := NewExecutor(Config{Retry: RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	var transitions []gobreaker.State
	exec := NewExecutor(Config{Breaker: BreakerPolicy{
		Enabled:       true,
		MinRequests:   2,
		FailureRatio:  0.5,
		OpenTimeout:   50 * time.Millisecond,
		HalfOpenCalls: 1,
	}}, WithStateObserver(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}))

	errTemp := errors.New("temporary")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "board.fetch", func(context.Context) error {
			return errTemp
		}, nil)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "board.fetch", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Fatalf("expected one transition to open, got %v", transitions)
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(DefaultConfig())
	got, err := Call(context.Background(), exec, "op", func(context.Context) (int, error) {
		return 42, nil
	}, ClassifyHTTPError)
	if err != nil || got != 42 {
		t.Fatalf("Call() = %d, %v", got, err)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/unavailable":
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		default:
			http.Error(w, "bad token", http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	statusErr := func(path string) error {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		return NewHTTPStatusError("wiki", "fetch", resp)
	}

	unavailable := statusErr("/unavailable")
	if class := ClassifyHTTPError(unavailable); !class.Retryable || !class.RecordFailure {
		t.Fatalf("503 should count against the breaker: %+v", class)
	}
	if !domain.IsKind(WrapTemporary("wiki fetch", unavailable), domain.ErrTemporary) {
		t.Fatalf("503 should be temporary")
	}

	unauthorized := statusErr("/auth")
	if class := ClassifyHTTPError(unauthorized); class.Retryable || class.RecordFailure {
		t.Fatalf("401 is a caller error: %+v", class)
	}
	if !IsUnauthorized(unauthorized) {
		t.Fatalf("expected unauthorized")
	}
	if got := unauthorized.Error(); got != "wiki fetch status: 401 Unauthorized: bad token" {
		t.Fatalf("unexpected message %q", got)
	}
	if class := ClassifyHTTPError(context.Canceled); class.RecordFailure {
		t.Fatalf("cancellation must not trip the breaker")
	}
}

func TestNewExecutorFillsPolicyDefaults(t *testing.T) {
	exec := NewExecutor(Config{
		Retry:   RetryPolicy{MaxAttempts: -1, InitialBackoff: time.Second, MaxBackoff: time.Millisecond},
		Breaker: BreakerPolicy{Enabled: true, FailureRatio: 1.5},
	})
	if exec.retry.MaxAttempts != 1 || exec.retry.MaxBackoff != time.Second || exec.retry.Multiplier != 2 {
		t.Fatalf("unexpected retry policy %+v", exec.retry)
	}
	if exec.breaker.MinRequests != 5 || exec.breaker.FailureRatio != 0.6 || exec.breaker.HalfOpenCalls != 1 {
		t.Fatalf("unexpected breaker policy %+v", exec.breaker)
	}
}
