package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(), quietLogger())

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(), quietLogger())

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	var transitions []gobreaker.State
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, quietLogger()).WithStateObserver(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	errBackend := errors.New("backend down")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "generate", func(context.Context) error {
			return errBackend
		}, classifier)
		if !errors.Is(err, errBackend) {
			t.Fatalf("expected backend error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "generate", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if exec.State("generate") != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", exec.State("generate"))
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Fatalf("expected one transition to open, got %v", transitions)
	}
	if exec.State("embed") != gobreaker.StateClosed {
		t.Fatalf("unused operation must report closed")
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(fastConfig(), quietLogger())
	attempts := 0
	got, err := Call(context.Background(), exec, "embed", func(context.Context) ([]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, &HTTPStatusError{Backend: "ollama", Operation: "embed", StatusCode: http.StatusServiceUnavailable, Status: "503"}
		}
		return []float32{1, 2}, nil
	}, ClassifyTransportError)
	if err != nil || len(got) != 2 || attempts != 2 {
		t.Fatalf("unexpected result %v, %v after %d attempts", got, err, attempts)
	}

	got, err = Call(context.Background(), nil, "embed", func(context.Context) ([]float32, error) {
		return []float32{3}, nil
	}, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("nil executor must call fn directly, got %v, %v", got, err)
	}
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(fastConfig(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancellation before first attempt, got %v (called=%v)", err, called)
	}
}

func TestClassifyTransportError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"canceled", fmt.Errorf("call: %w", context.Canceled), ErrorClassification{}},
		{"throttled", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"bad request", &HTTPStatusError{StatusCode: http.StatusBadRequest}, ErrorClassification{}},
		{"open", gobreaker.ErrOpenState, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"other", errors.New("decode"), ErrorClassification{Retryable: false, RecordFailure: true}},
	}
	for _, tc := range cases {
		if got := ClassifyTransportError(tc.err); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestMarkTemporary(t *testing.T) {
	err := MarkTemporary("ollama chat", &HTTPStatusError{StatusCode: http.StatusBadGateway}, nil)
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	permanent := &HTTPStatusError{StatusCode: http.StatusNotFound}
	if err := MarkTemporary("ollama chat", permanent, nil); errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary")
	}
	if MarkTemporary("op", nil, nil) != nil {
		t.Fatalf("nil stays nil")
	}
}
