// Package ripple provides the public API for the ripple reactive engine.
//
// This is the recommended import for most applications:
//
//	import "github.com/ripple-ui/ripple"
//
// Usage:
//
//	l := ripple.NewLoop()
//	count := ripple.NewSignal(0)
//	ripple.CreateEffect(func() ripple.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
//	count.Set(1)
package ripple

import (
	"time"

	"github.com/ripple-ui/ripple/pkg/loop"
	"github.com/ripple-ui/ripple/pkg/reactive"
	"github.com/ripple-ui/ripple/pkg/resource"
	"github.com/ripple-ui/ripple/pkg/task"
)

// =============================================================================
// Reactive primitives (re-export from pkg/reactive)
// =============================================================================

// Signal is a reactive value container. Reads inside effects and memos
// subscribe; writes re-run every subscriber synchronously.
type Signal[T any] = reactive.Signal[T]

// Memo is a cached derived value that recomputes lazily when a dependency
// changes.
type Memo[T any] = reactive.Memo[T]

// Effect is a side effect that re-runs when its dependencies change.
type Effect = reactive.Effect

// Cleanup is a teardown function returned by an effect body, run before the
// next re-run and on disposal.
type Cleanup = reactive.Cleanup

// Owner is a node in the ownership tree; unmounting it tears down everything
// created under it.
type Owner = reactive.Owner

// NewSignal creates a signal owned by the current owner scope.
//
// Example:
//
//	count := ripple.NewSignal(0)
//	count.Set(1)
//	value := count.Get() // 1
func NewSignal[T any](initial T) *Signal[T] {
	return reactive.NewSignal(initial)
}

// NewMemo creates a computed value that automatically tracks dependencies.
//
// Example:
//
//	doubled := ripple.NewMemo(func() int {
//	    return count.Get() * 2
//	})
func NewMemo[T any](compute func() T) *Memo[T] {
	return reactive.NewMemo(compute)
}

// CreateEffect registers a side effect that runs immediately and re-runs
// whenever a signal or memo it read changes.
var CreateEffect = reactive.CreateEffect

// OnCleanup registers fn with the current owner, to run when it unmounts.
var OnCleanup = reactive.OnCleanup

// NewOwner creates an ownership tree node under parent (nil for a root).
var NewOwner = reactive.NewOwner

// CurrentOwner returns the owner on top of this goroutine's owner stack.
var CurrentOwner = reactive.CurrentOwner

// WithOwner runs fn with owner current on this goroutine.
var WithOwner = reactive.WithOwner

// Batch coalesces writes made inside fn: each dirtied effect runs once when
// the outermost batch commits.
var Batch = reactive.Batch

// Untracked runs fn with dependency tracking suspended.
var Untracked = reactive.Untracked

// UntrackedGet reads a signal without subscribing the current listener.
func UntrackedGet[T any](s *Signal[T]) T {
	return reactive.UntrackedGet(s)
}

// =============================================================================
// Dispatch loop and cross-goroutine access (re-export from pkg/loop)
// =============================================================================

// Loop is the FIFO mailbox owned by the reactive goroutine.
type Loop = loop.Loop

// Sender is a thread-safe write proxy for one signal.
type Sender[T any] = loop.Sender[T]

// NewLoop creates a dispatch loop.
var NewLoop = loop.New

// NewSender creates a sender that routes writes to sig through l.
func NewSender[T any](l *Loop, sig *Signal[T]) Sender[T] {
	return loop.NewSender(l, sig)
}

// =============================================================================
// Background tasks (re-export from pkg/task)
// =============================================================================

// Executor hands background work to a bounded pool.
type Executor = task.Executor

// Handle tracks one background task: Running, then Completed or Aborted.
type Handle = task.Handle

// Debounced coalesces a stream of submissions down to the latest value.
type Debounced[T any] = task.Debounced[T]

// NewExecutor creates an executor delivering onto l.
var NewExecutor = task.NewExecutor

// NewDebounced creates a trailing-edge debouncer.
func NewDebounced[T any](e *Executor, quiet time.Duration, fn func(T)) *Debounced[T] {
	return task.NewDebounced(e, quiet, fn)
}

// =============================================================================
// Async resources (re-export from pkg/resource)
// =============================================================================

// Resource is an async read modeled as Pending/Loading/Ready/Error signals.
type Resource[K comparable, T any] = resource.Resource[K, T]

// ResourceState is the lifecycle state of a Resource.
type ResourceState = resource.State

// Resource states.
const (
	ResourcePending = resource.Pending
	ResourceLoading = resource.Loading
	ResourceReady   = resource.Ready
	ResourceError   = resource.Error
)

// NewResource creates a resource from a tracked key function.
func NewResource[K comparable, T any](e *Executor, key func() K, fetch resource.Fetcher[K, T]) *Resource[K, T] {
	return resource.New(e, key, fetch)
}
