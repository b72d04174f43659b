// Package worker runs units of work detached from the request that spawned them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"
)

var (
	// ErrClosed is reported by tasks submitted after Close.
	ErrClosed = errors.New("worker: runner closed")
	// ErrPanic wraps a value recovered from a panicking task.
	ErrPanic = errors.New("worker: task panicked")
)

// Observer receives task outcomes, e.g. for metrics. Status is "ok", "fail" or "panic".
type Observer interface {
	TaskFinished(action, status string, took time.Duration)
}

// Task is a handle on a single unit of work.
type Task struct {
	ID     uint64
	Action string

	done chan struct{}
	err  error
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task result. It is valid only after Done is closed.
func (t *Task) Err() error { return t.err }

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner starts one goroutine per task. Failures never reach the caller:
// they are logged, counted and kept on the Task.
type Runner struct {
	observer Observer

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	seq       atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// New returns a runner. observer may be nil.
func New(observer Observer) *Runner {
	return &Runner{observer: observer}
}

// Go runs fn in the background. The task context keeps ctx values (log metadata)
// but not its cancellation, so the task outlives the inbound request.
func (r *Runner) Go(ctx context.Context, action string, fn func(ctx context.Context) error) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &Task{
		ID:     r.seq.Add(1),
		Action: action,
		done:   make(chan struct{}),
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		t.err = ErrClosed
		close(t.done)
		logger.Warn(ctx, logger.CompWorker, "task.rejected",
			slog.String("action", action),
			slog.String("err", ErrClosed.Error()),
		)
		return t
	}
	r.wg.Add(1)
	r.mu.RUnlock()

	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		defer close(t.done)
		t.err = r.run(taskCtx, t, fn)
	}()
	return t
}

func (r *Runner) run(ctx context.Context, t *Task, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	status := "ok"
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
			status = "panic"
			logger.Error(ctx, logger.CompWorker, "task.panic",
				slog.String("action", t.Action),
				slog.Uint64("task_id", t.ID),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
		took := time.Since(start)
		if err != nil {
			r.failed.Add(1)
			if status == "ok" {
				status = "fail"
			}
			logger.Error(ctx, logger.CompWorker, "task.fail",
				slog.String("action", t.Action),
				slog.Uint64("task_id", t.ID),
				slog.String("outcome", outcomeOf(status)),
				slog.String("err", netutil.Redact(err)),
				slog.String("err_kind", netutil.Classify(err)),
				slog.Duration("duration", logger.RoundMS(took)),
			)
		} else {
			r.completed.Add(1)
			logger.Debug(ctx, logger.CompWorker, "task.done",
				slog.String("action", t.Action),
				slog.Uint64("task_id", t.ID),
				slog.Duration("duration", logger.RoundMS(took)),
			)
		}
		if r.observer != nil {
			r.observer.TaskFinished(t.Action, status, took)
		}
	}()
	return fn(ctx)
}

func outcomeOf(status string) string {
	if status == "panic" {
		return "panic"
	}
	return "fail"
}

// Completed returns the number of tasks that finished without error.
func (r *Runner) Completed() uint64 { return r.completed.Load() }

// Failed returns the number of tasks that returned an error or panicked.
func (r *Runner) Failed() uint64 { return r.failed.Load() }

// Close stops accepting tasks and waits for in-flight ones until ctx is done.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker: waiting for tasks: %w", ctx.Err())
	}
}
