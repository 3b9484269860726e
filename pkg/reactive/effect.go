package reactive

import (
	"sync"
	"sync/atomic"
)

// Effect represents a reactive side effect that runs when its dependencies
// change. Effects are created with CreateEffect and track the signals they
// read during execution.
//
// Effects run immediately when created, and re-run synchronously whenever any
// signal or memo they read during their last run is written. They can return
// a Cleanup function that is called before the effect re-runs or when the
// effect is disposed.
type Effect struct {
	id uint64

	// fn is the effect body.
	fn func() Cleanup

	// cleanup is the cleanup function from the last run.
	cleanup Cleanup

	// sources are the signals/memos this effect read on its last run.
	// Rebuilt from scratch on every run so stale edges never accumulate.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// owner is the tree node that owns this effect.
	owner *Owner

	// disposed indicates the effect has been torn down.
	disposed atomic.Bool
}

// MarkDirty re-runs the effect synchronously.
// Implements the Listener interface; called by signals on write and by the
// batch flusher once per dirtied effect when the outermost batch commits.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}
	e.run()
}

// ID returns the unique identifier for this effect.
// Implements the Listener interface.
func (e *Effect) ID() uint64 {
	return e.id
}

// IsDisposed reports whether the effect has been torn down.
// Implements the Listener interface.
func (e *Effect) IsDisposed() bool {
	return e.disposed.Load()
}

// run executes the effect body. Called on initial creation and whenever a
// dependency is written.
//
// A panic inside the body propagates to the caller of the write that
// triggered the run; the deferred block keeps the tracking stack and owner
// bookkeeping consistent regardless. Dependencies read before the panic stay
// subscribed (they were legitimately read this run); everything from the
// previous run was already unsubscribed up front.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	// Run cleanup from the previous run.
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	// Unsubscribe from the previous run's sources; the body re-registers
	// exactly what it still reads.
	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	oldListener := setCurrentListener(e)
	// The effect's owner is current for the duration of the run, so task
	// spawns from inside the body register with the right tree node.
	oldOwner := setCurrentOwner(e.owner)
	beginEffectRun()
	defer func() {
		setCurrentOwner(oldOwner)
		setCurrentListener(oldListener)
		// Runs deferred unmounts once the outermost effect finishes,
		// including during panic unwinding.
		endEffectRun()
	}()

	e.cleanup = e.fn()
}

// addSource records a dependency for this run.
// Called by signals when they are read during effect execution.
func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

// dispose tears down the effect: runs its cleanup and unsubscribes from all
// remaining sources. Idempotent.
func (e *Effect) dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// CreateEffect creates and immediately runs a new effect within the current
// owner context, establishing its initial dependency set. The effect re-runs
// whenever any signal or memo it read changes, and is torn down when its
// owner unmounts.
//
// Example:
//
//	reactive.CreateEffect(func() reactive.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
func CreateEffect(fn func() Cleanup) *Effect {
	e := &Effect{
		id:    nextID(),
		fn:    fn,
		owner: getCurrentOwner(),
	}

	if e.owner != nil {
		e.owner.registerEffect(e)
	}

	e.run()

	return e
}

// OnCleanup registers a cleanup function with the current owner.
// All registered cleanups run exactly once, in registration order, when the
// owner unmounts. Outside any owner scope this is a no-op.
func OnCleanup(fn func()) {
	if owner := getCurrentOwner(); owner != nil {
		owner.OnCleanup(fn)
	}
}

var _ sourceTracker = (*Effect)(nil)
