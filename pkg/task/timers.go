package task

import (
	"sync"
	"time"

	"github.com/ripple-ui/ripple/pkg/reactive"
)

// IntervalOption configures SpawnInterval.
type IntervalOption func(*intervalConfig)

type intervalConfig struct {
	immediate bool
}

// IntervalImmediate causes the first tick to fire immediately instead of
// after the first period elapses.
func IntervalImmediate() IntervalOption {
	return func(c *intervalConfig) {
		c.immediate = true
	}
}

// SpawnInterval invokes fn on the owning goroutine every period d until the
// returned handle is aborted (or the owner that spawned it unmounts). Ticks
// are delivered through the dispatch loop, never run on the timer goroutine.
//
// Example:
//
//	reactive.CreateEffect(func() reactive.Cleanup {
//	    h := exec.SpawnInterval(time.Second, func() {
//	        counter.Update(func(n int) int { return n + 1 })
//	    })
//	    return h.Abort
//	})
func (e *Executor) SpawnInterval(d time.Duration, fn func(), opts ...IntervalOption) *Handle {
	var cfg intervalConfig
	for _, opt := range opts {
		opt(&cfg)
	}

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
		defer func() {
			h.finish(h.ctx.Err())
			e.metrics.recordFinish(h)
		}()

		if cfg.immediate {
			select {
			case <-h.ctx.Done():
				return
			default:
				e.loop.Dispatch(fn)
			}
		}

		ticker := time.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.loop.Dispatch(fn)
			case <-h.ctx.Done():
				return
			}
		}
	}()

	return h
}

// Debounced coalesces a stream of submissions down to the latest value.
// Every Submit resets the quiet-period timer; once it elapses with no newer
// submission, fn runs on the owning goroutine with the last value. Values
// superseded before the quiet period elapses are discarded.
type Debounced[T any] struct {
	exec  *Executor
	quiet time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	latest  T
	seq     uint64
	stopped bool
}

// NewDebounced creates a trailing-edge debouncer. If a reactive.Owner is
// current, the debouncer is stopped automatically when the owner unmounts.
func NewDebounced[T any](e *Executor, quiet time.Duration, fn func(T)) *Debounced[T] {
	d := &Debounced[T]{
		exec:  e,
		quiet: quiet,
		fn:    fn,
	}

	if owner := reactive.CurrentOwner(); owner != nil {
		owner.RegisterTask(d)
	}

	return d
}

// Submit records a new value and restarts the quiet-period timer.
// Safe from any goroutine; never blocks.
func (d *Debounced[T]) Submit(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.latest = value
	d.seq++
	mySeq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() {
		d.fire(mySeq)
	})
}

// fire delivers the latest value unless a newer submission superseded this
// timer between AfterFunc scheduling and execution.
func (d *Debounced[T]) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	value := d.latest
	d.mu.Unlock()

	d.exec.loop.Dispatch(func() {
		d.fn(value)
	})
}

// Stop cancels any pending delivery and rejects future submissions.
// Idempotent.
func (d *Debounced[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Abort implements reactive.Abortable so owner unmount stops the debouncer.
func (d *Debounced[T]) Abort() {
	d.Stop()
}
