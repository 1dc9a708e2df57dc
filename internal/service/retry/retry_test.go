package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDoNonRetryableAttemptedOnce(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error must be attempted exactly once, got %d", calls)
	}
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return Retryable(fmt.Errorf("transient"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls %d, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return &HTTPError{Status: 503, Msg: "unavailable"}
	})
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if calls != 4 { // first attempt plus three retries
		t.Fatalf("calls %d, want 4", calls)
	}
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != 503 {
		t.Fatalf("exhaustion must wrap the last error: %v", err)
	}
}

func TestIsRetryableStatuses(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		if !IsRetryable(&HTTPError{Status: status}) {
			t.Fatalf("status %d must be retryable", status)
		}
	}
	for _, status := range []int{400, 401, 403, 404, 422} {
		if IsRetryable(&HTTPError{Status: status}) {
			t.Fatalf("status %d must not be retryable", status)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors must not be retryable")
	}
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(), func() error {
		t.Fatalf("cancelled context must not attempt")
		return nil
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(fmt.Errorf("transient"))
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got=%d err=%v", got, err)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	if d := Backoff(cfg, 0); d != 100*time.Millisecond {
		t.Fatalf("attempt 0 delay %v", d)
	}
	if d := Backoff(cfg, 2); d != 400*time.Millisecond {
		t.Fatalf("attempt 2 delay %v", d)
	}
	if d := Backoff(cfg, 10); d != time.Second {
		t.Fatalf("delay must cap at max, got %v", d)
	}
}
