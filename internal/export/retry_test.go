package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type flakyPersister struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	saved    []string
}

func (f *flakyPersister) Save(_ context.Context, blob Blob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	f.saved = append(f.saved, blob.Name)
	return nil
}

func (f *flakyPersister) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	p := &flakyPersister{}
	if err := WithRetry(p, retryConfig()).Save(context.Background(), Blob{Name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected 1 call, got %d", p.calls)
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	p := &flakyPersister{failures: 2, err: errors.New("connection reset")}
	if err := WithRetry(p, retryConfig()).Save(context.Background(), Blob{Name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", p.calls)
	}
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	p := &flakyPersister{failures: 5, err: errors.New("down")}
	if err := WithRetry(p, retryConfig()).Save(context.Background(), Blob{}); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", p.calls)
	}
}

func TestRetry_PermanentNotRetried(t *testing.T) {
	p := &flakyPersister{failures: 5, err: fmt.Errorf("%w: status 400", ErrPermanent)}
	err := WithRetry(p, retryConfig()).Save(context.Background(), Blob{})
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected 1 call, got %d", p.calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	cfg := retryConfig()
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	p := &flakyPersister{failures: 5, err: errors.New("down")}

	done := make(chan error, 1)
	go func() { done <- WithRetry(p, cfg).Save(ctx, Blob{}) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not stop on cancel")
	}
}

type flakyNotifier struct {
	failures int
	calls    int
}

func (f *flakyNotifier) Mail(context.Context, string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("smtp down")
	}
	return nil
}

func TestRetryNotifier(t *testing.T) {
	n := &flakyNotifier{failures: 1}
	if err := WithRetryNotifier(n, retryConfig()).Mail(context.Background(), "a.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", n.calls)
	}
}

func TestBackoff_Bounds(t *testing.T) {
	cfg := RetryConfig{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2}
	for attempt := range 6 {
		want := 100 * time.Millisecond << attempt
		if want > cfg.MaxWait {
			want = cfg.MaxWait
		}
		got := backoff(cfg, attempt)
		lo, hi := time.Duration(float64(want)*0.8), time.Duration(float64(want)*1.2)
		if got < lo || got > hi {
			t.Fatalf("attempt %d: backoff %s outside [%s,%s]", attempt, got, lo, hi)
		}
	}
}
