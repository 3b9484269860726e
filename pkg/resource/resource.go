// Package resource models one asynchronous read as a reactive state machine:
// Pending -> Loading -> Ready | Error, keyed to a reactive source. Whenever
// the source value changes, the state resets to Loading and a fresh fetch
// supersedes any in-flight one; only the most recently started fetch may
// commit a terminal state (last writer wins by generation).
package resource

import (
	"context"
	"sync"

	"github.com/ripple-ui/ripple/pkg/reactive"
	"github.com/ripple-ui/ripple/pkg/task"
)

// State represents the current state of a resource.
type State int

const (
	Pending State = iota // before the first fetch starts
	Loading              // fetch in progress
	Ready                // data successfully loaded
	Error                // fetch failed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Loading:
		return "Loading"
	case Ready:
		return "Ready"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Fetcher loads the value for one key. It runs on the executor's worker
// pool and must observe ctx: a superseded or unmounted fetch is cancelled
// through it.
type Fetcher[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Resource manages one async read bound to a reactive key source.
//
// All state is held in signals, so reading State/Data/Err from inside an
// effect subscribes that effect to the resource's lifecycle transitions.
type Resource[K comparable, T any] struct {
	exec  *task.Executor
	fetch Fetcher[K, T]

	state *reactive.Signal[State]
	data  *reactive.Signal[T]
	err   *reactive.Signal[error]

	// mu guards the supersession bookkeeping below.
	mu      sync.Mutex
	gen     uint64
	started bool
	lastKey K
	handle  *task.Handle
}

// New creates a resource from a tracked key function. The key function runs
// inside an effect, so every signal it reads becomes a refetch trigger; the
// fetch restarts whenever the computed key differs from the previous one.
// The initial fetch starts immediately.
func New[K comparable, T any](e *task.Executor, key func() K, fetch Fetcher[K, T]) *Resource[K, T] {
	var zero T
	r := &Resource[K, T]{
		exec:  e,
		fetch: fetch,
		state: reactive.NewSignal(Pending),
		data:  reactive.NewSignal(zero),
		err:   reactive.NewSignal[error](nil),
	}

	reactive.CreateEffect(func() reactive.Cleanup {
		k := key()
		r.start(k, false)
		return nil
	})

	return r
}

// NewKeyed creates a resource keyed directly to a signal.
func NewKeyed[K comparable, T any](e *task.Executor, key *reactive.Signal[K], fetch Fetcher[K, T]) *Resource[K, T] {
	return New(e, key.Get, fetch)
}

// State returns the current state (tracked read).
func (r *Resource[K, T]) State() State {
	return r.state.Get()
}

// Data returns the most recently committed value (tracked read).
// Zero until the first Ready.
func (r *Resource[K, T]) Data() T {
	return r.data.Get()
}

// DataOr returns the committed value, or fallback unless Ready.
func (r *Resource[K, T]) DataOr(fallback T) T {
	if r.state.Get() != Ready {
		return fallback
	}
	return r.data.Get()
}

// Err returns the fetch error from the last Error transition (tracked read).
func (r *Resource[K, T]) Err() error {
	return r.err.Get()
}

// IsLoading reports whether a fetch is pending or in flight.
func (r *Resource[K, T]) IsLoading() bool {
	s := r.state.Get()
	return s == Loading || s == Pending
}

// IsReady reports whether data has been loaded for the current key.
func (r *Resource[K, T]) IsReady() bool {
	return r.state.Get() == Ready
}

// IsError reports whether the latest fetch failed.
func (r *Resource[K, T]) IsError() bool {
	return r.state.Get() == Error
}

// Refetch forces a new fetch with the current key, superseding any fetch in
// flight even though the key is unchanged.
func (r *Resource[K, T]) Refetch() {
	r.mu.Lock()
	k := r.lastKey
	started := r.started
	r.mu.Unlock()

	if !started {
		return
	}
	r.start(k, true)
}

// start begins a new fetch generation for key k. Unless forced, an unchanged
// key is a no-op: the in-flight fetch for the same key keeps running.
func (r *Resource[K, T]) start(k K, force bool) {
	r.mu.Lock()
	if r.started && !force && k == r.lastKey {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.lastKey = k
	r.gen++
	myGen := r.gen
	prev := r.handle
	r.mu.Unlock()

	// The superseded fetch is cancelled cooperatively; even if it finishes
	// anyway, its generation no longer matches and its result is dropped.
	if prev != nil {
		prev.Abort()
	}

	reactive.Batch(func() {
		r.state.Set(Loading)
		r.err.Set(nil)
	})

	h := r.exec.Spawn(func(ctx context.Context) error {
		value, err := r.fetch(ctx, k)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.exec.Loop().Dispatch(func() {
			r.commit(myGen, value, err)
		})
		return err
	})

	r.mu.Lock()
	if r.gen == myGen {
		r.handle = h
	}
	r.mu.Unlock()
}

// commit applies a fetch outcome on the owning goroutine. Results from any
// generation but the latest are dropped silently; commits for a resource
// whose owner unmounted degrade to no-ops inside Signal.Set.
func (r *Resource[K, T]) commit(gen uint64, value T, err error) {
	r.mu.Lock()
	stale := gen != r.gen
	r.mu.Unlock()
	if stale {
		return
	}

	reactive.Batch(func() {
		if err != nil {
			r.err.Set(err)
			r.state.Set(Error)
			return
		}
		r.data.Set(value)
		r.state.Set(Ready)
	})
}
