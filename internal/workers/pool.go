// Package workers provides a bounded goroutine pool for fanning out
// independent simulation tasks.
package workers

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task is a unit of work.
type Task interface {
	Execute() error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Errors returned by Submit.
var (
	ErrPoolStopped = &PoolError{Message: "pool is stopped"}
	ErrQueueFull   = &PoolError{Message: "task queue is full"}
)

// PoolError represents a pool error.
type PoolError struct {
	Message string
}

func (e *PoolError) Error() string { return e.Message }

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

// Pool runs submitted tasks on a fixed set of worker goroutines.
// Worker panics are recovered and counted so one bad task cannot take
// down a whole simulation batch.
type Pool struct {
	logger *zap.Logger
	tasks  chan Task
	wg     sync.WaitGroup

	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	panics    atomic.Int64
}

// NewPool creates a started pool. numWorkers <= 0 selects
// runtime.NumCPU().
func NewPool(logger *zap.Logger, numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger: logger,
		tasks:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	p.running.Store(true)
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.execute(id, task)
		}
	}
}

func (p *Pool) execute(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.failed.Add(1)
			p.logger.Error("worker recovered from panic",
				zap.Int("worker", id),
				zap.Any("panic", r),
			)
		}
	}()
	if err := task.Execute(); err != nil {
		p.failed.Add(1)
		p.logger.Debug("task failed", zap.Int("worker", id), zap.Error(err))
		return
	}
	p.completed.Add(1)
}

// Submit queues a task without blocking.
func (p *Pool) Submit(task Task) error {
	if !p.running.Load() {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitFunc queues a function as a task.
func (p *Pool) SubmitFunc(fn func() error) error {
	return p.Submit(TaskFunc(fn))
}

// Stop cancels the workers and waits for them to exit. Tasks still
// queued when Stop is called are abandoned. Safe to call more than
// once.
func (p *Pool) Stop() {
	if !p.running.Swap(false) {
		return
	}
	p.cancel()
	p.wg.Wait()
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Panics:    p.panics.Load(),
	}
}
