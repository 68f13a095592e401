package probe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	n, err := Retry{Retries: 3}.Do(context.Background(), func(int) (bool, error) {
		calls++
		if calls == 1 {
			return true, errors.New("first fail")
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if n != 2 || calls != 2 {
		t.Fatalf("want 2 attempts, got n=%d calls=%d", n, calls)
	}
}

func TestRetry_BoundedAttempts(t *testing.T) {
	calls := 0
	n, err := Retry{Retries: 2, Backoff: time.Millisecond}.Do(context.Background(), func(int) (bool, error) {
		calls++
		return true, errors.New("always")
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if n != 3 || calls != 3 {
		t.Fatalf("want 1+2 attempts, got n=%d calls=%d", n, calls)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	n, err := Retry{Retries: 5}.Do(context.Background(), func(int) (bool, error) {
		calls++
		return false, errors.New("permanent")
	})
	if err == nil || n != 1 || calls != 1 {
		t.Fatalf("want single attempt, got n=%d calls=%d err=%v", n, calls, err)
	}
}

func TestRetry_NegativeRetriesStillTriesOnce(t *testing.T) {
	calls := 0
	_, _ = Retry{Retries: -4}.Do(context.Background(), func(int) (bool, error) {
		calls++
		return true, errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("want one attempt, got %d", calls)
	}
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	n, err := Retry{Retries: 10, Backoff: time.Hour}.Do(ctx, func(int) (bool, error) {
		calls++
		cancel()
		return true, errors.New("x")
	})
	if err == nil || n != 1 || calls != 1 {
		t.Fatalf("want stop after cancel, got n=%d calls=%d err=%v", n, calls, err)
	}
}
