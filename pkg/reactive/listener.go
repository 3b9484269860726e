package reactive

// Listener is anything that can be notified when a signal it read changes.
// It is implemented by Effect and Memo; external consumers (render or layout
// layers) may implement it to receive change callbacks directly.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	// For effects this re-runs the body synchronously; for memos it
	// invalidates the cached value and propagates downstream.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication in subscriber sets and batch flushes.
	ID() uint64

	// IsDisposed reports whether the listener has been torn down.
	// Disposed listeners are pruned from subscriber sets silently.
	IsDisposed() bool
}

// Cleanup is a function returned by effects to release resources.
// It is called before the effect re-runs and when the effect is disposed.
type Cleanup func()

// Abortable is the subset of a background task handle the owner tree needs:
// the capability to request a cooperative stop. Unmounting an owner calls
// Abort on every task registered to it.
type Abortable interface {
	Abort()
}

// sourceTracker is implemented by listeners that keep a dependency set which
// must be rebuilt on every run (effects and memos). Signals call addSource on
// tracked reads so stale edges can be unsubscribed before the next run.
type sourceTracker interface {
	Listener
	addSource(source *signalBase)
}
