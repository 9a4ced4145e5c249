package workers_test

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/quantforge/riskengine/internal/workers"
)

func TestPoolRunsTasks(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), 4, 32)
	defer pool.Stop()

	var mu sync.Mutex
	var wg sync.WaitGroup
	ran := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := pool.SubmitFunc(func() error {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	if ran != 20 {
		t.Errorf("Expected 20 tasks to run, got %d", ran)
	}
	stats := pool.Stats()
	if stats.Submitted != 20 || stats.Completed != 20 {
		t.Errorf("Stats wrong: %+v", stats)
	}
}

func TestPoolRecoversPanic(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), 1, 4)
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(2)

	if err := pool.SubmitFunc(func() error {
		defer wg.Done()
		panic("boom")
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// The pool survives and keeps working.
	if err := pool.SubmitFunc(func() error {
		defer wg.Done()
		return nil
	}); err != nil {
		t.Fatalf("Submit after panic failed: %v", err)
	}
	wg.Wait()

	stats := pool.Stats()
	if stats.Panics != 1 {
		t.Errorf("Expected 1 recorded panic, got %d", stats.Panics)
	}
	if stats.Completed != 1 {
		t.Errorf("Expected 1 completed task, got %d", stats.Completed)
	}
	if stats.Failed != 1 {
		t.Errorf("Panicked task should count as failed, got %d", stats.Failed)
	}
}

func TestPoolCountsFailures(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), 2, 8)
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	pool.SubmitFunc(func() error {
		defer wg.Done()
		return errors.New("task error")
	})
	wg.Wait()

	if stats := pool.Stats(); stats.Failed != 1 || stats.Completed != 0 {
		t.Errorf("Stats wrong: %+v", stats)
	}
}

func TestPoolSubmitAfterStop(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), 2, 8)
	pool.Stop()

	err := pool.SubmitFunc(func() error { return nil })
	if !errors.Is(err, workers.ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped, got %v", err)
	}

	// Stop is idempotent.
	pool.Stop()
}

func TestPoolQueueFull(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), 1, 1)
	defer pool.Stop()

	block := make(chan struct{})
	release := func() error { <-block; return nil }

	// One running, one queued; the next must be rejected.
	pool.SubmitFunc(release)
	pool.SubmitFunc(release)

	var rejected bool
	for i := 0; i < 8; i++ {
		if err := pool.SubmitFunc(release); errors.Is(err, workers.ErrQueueFull) {
			rejected = true
			break
		}
	}
	close(block)

	if !rejected {
		t.Error("Expected at least one ErrQueueFull rejection")
	}
}
