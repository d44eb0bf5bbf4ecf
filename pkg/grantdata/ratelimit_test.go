package grantdata

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestLimiterSpacesStarts(t *testing.T) {
	interval := 30 * time.Millisecond
	limiter := NewLimiter(interval)
	defer limiter.Close()

	var mu sync.Mutex
	var starts []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Do(context.Background(), func() error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(starts) != 5 {
		t.Fatalf("expected 5 executions, got %d", len(starts))
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	// Allow a small tolerance: the timestamp is taken inside the unit, a
	// moment after the limiter stamps its start.
	minGap := interval - 5*time.Millisecond
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < minGap {
			t.Fatalf("starts %d and %d only %v apart, want at least %v", i-1, i, gap, interval)
		}
	}
}

func TestLimiterRunsInSubmissionOrder(t *testing.T) {
	limiter := NewLimiter(time.Millisecond)
	defer limiter.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.Do(context.Background(), func() error {
			<-release
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	// The first unit is now blocking the worker, so later submissions queue
	// up in the order they are enqueued here.
	time.Sleep(10 * time.Millisecond)
	for i := 1; i <= 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Do(context.Background(), func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestLimiterDeliversErrorToOwnSubmitter(t *testing.T) {
	limiter := NewLimiter(time.Millisecond)
	defer limiter.Close()

	boom := errors.New("boom")
	if err := limiter.Do(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	// A failed unit must not poison the queue behind it.
	if err := limiter.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected nil after failed unit, got %v", err)
	}
}

func TestLimiterDoRespectsContextWhileQueueing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limiter := &Limiter{interval: time.Millisecond, tasks: make(chan limiterTask)}
	// No worker and an unbuffered queue: enqueue can never proceed, so Do
	// must fall through to the cancelled context.
	if err := limiter.Do(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
