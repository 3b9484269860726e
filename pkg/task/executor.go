package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/ripple-ui/ripple/pkg/loop"
	"github.com/ripple-ui/ripple/pkg/reactive"
)

// ErrExecutorClosed is returned as the completion outcome of work spawned
// after Close.
var ErrExecutorClosed = errors.New("task: executor closed")

// Executor hands background work to a bounded worker pool. Spawning never
// blocks the caller: pool admission happens on the worker goroutine, bounded
// by a weighted semaphore, so a burst of spawns queues rather than stalls the
// owning goroutine.
type Executor struct {
	loop *loop.Loop

	// sem bounds the number of concurrently executing bodies.
	sem *semaphore.Weighted

	// baseCtx parents every handle context; cancelled on Close.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	// handles is the registry of live handles, for shutdown and diagnostics.
	handles   map[uint64]*Handle
	handlesMu sync.Mutex

	nextID atomic.Uint64
	closed atomic.Bool
	wg     sync.WaitGroup

	logger  *slog.Logger
	metrics *Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWorkers bounds the number of concurrently executing task bodies.
// Default: GOMAXPROCS.
func WithWorkers(n int64) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithLogger sets the structured logger for task failures.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics attaches Prometheus instrumentation to the executor.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an executor whose timer-driven helpers deliver onto l.
func NewExecutor(l *loop.Loop, opts ...ExecutorOption) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		loop:       l,
		sem:        semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		baseCtx:    ctx,
		baseCancel: cancel,
		handles:    make(map[uint64]*Handle),
		logger:     slog.Default().With("component", "task"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Spawn hands fn to the pool and returns its handle immediately.
//
// The body must observe ctx for cooperative cancellation. Its returned error
// (or a recovered panic, converted) becomes the handle's completion outcome;
// a failing task never crashes the owning goroutine.
//
// If a reactive.Owner is current on the calling goroutine, the handle is
// registered with it and aborted when that owner unmounts.
func (e *Executor) Spawn(fn func(ctx context.Context) error) *Handle {
	h := newHandle(e.nextID.Add(1), e.baseCtx)

	if owner := reactive.CurrentOwner(); owner != nil {
		owner.RegisterTask(h)
	}

	if e.closed.Load() {
		h.Abort()
		h.finish(ErrExecutorClosed)
		return h
	}

	e.track(h)
	e.metrics.recordSpawn()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.untrack(h)

		// Admission inside the worker keeps Spawn non-blocking.
		if err := e.sem.Acquire(h.ctx, 1); err != nil {
			h.finish(err)
			e.metrics.recordFinish(h)
			return
		}
		defer e.sem.Release(1)

		err := e.runBody(h, fn)
		h.finish(err)
		e.metrics.recordFinish(h)
	}()

	return h
}

// runBody executes the task body, converting panics into completion errors.
func (e *Executor) runBody(h *Handle, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task: panic: %v", r)
			e.metrics.recordBodyPanic()
			e.logger.Error("task body panic",
				"task_id", h.ID(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	return fn(h.ctx)
}

// Running reports the number of live handles in the registry.
func (e *Executor) Running() int {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	return len(e.handles)
}

// Loop returns the dispatch loop this executor delivers onto.
func (e *Executor) Loop() *loop.Loop {
	return e.loop
}

// Close aborts all outstanding work and waits for worker goroutines to
// exit. Cancellation is still cooperative: a body that ignores its context
// will block Close. Idempotent.
func (e *Executor) Close() {
	if e.closed.Swap(true) {
		return
	}

	e.baseCancel()

	e.handlesMu.Lock()
	handles := make([]*Handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	e.handlesMu.Unlock()

	for _, h := range handles {
		h.Abort()
	}

	e.wg.Wait()
}

func (e *Executor) track(h *Handle) {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	e.handles[h.ID()] = h
}

func (e *Executor) untrack(h *Handle) {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	delete(e.handles, h.ID())
}
