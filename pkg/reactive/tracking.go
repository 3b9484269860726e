package reactive

import (
	"sync"

	"github.com/petermattis/goid"
)

// TrackingContext holds the reactive state for a goroutine: the owner that
// will adopt newly created primitives, the listener currently recording
// dependencies, batch nesting, and unmounts deferred until the running effect
// stack unwinds.
//
// Each goroutine has its own tracking context so that the engine's "owner
// stack" never needs a process-wide global; the innermost active computation
// on this goroutine always wins.
type TrackingContext struct {
	// currentOwner is the Owner that will own newly created signals/effects.
	currentOwner *Owner

	// currentListener is what is currently recording dependencies.
	// nil means no tracking (reads don't create subscriptions).
	currentListener Listener

	// batchDepth tracks nested Batch() calls. When > 0, signal writes queue
	// notifications instead of firing immediately.
	batchDepth int

	// pendingUpdates accumulates listeners to notify when the outermost
	// batch commits. Deduplicated by ID before notification.
	pendingUpdates []Listener

	// effectDepth tracks nested synchronous effect runs on this goroutine.
	effectDepth int

	// deferredUnmounts are owners whose Unmount was requested from inside a
	// running effect. Processed when effectDepth returns to zero.
	deferredUnmounts []*Owner
}

// trackingContexts stores per-goroutine tracking contexts, keyed by
// goroutine ID.
var trackingContexts sync.Map

// getTrackingContext returns the tracking context for the current goroutine,
// creating one if needed.
func getTrackingContext() *TrackingContext {
	gid := goid.Get()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*TrackingContext)
	}

	ctx := &TrackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// getCurrentListener returns the listener currently recording dependencies,
// or nil if no tracking is active.
func getCurrentListener() Listener {
	return getTrackingContext().currentListener
}

// setCurrentListener sets the current listener for dependency tracking.
// Returns the previous listener so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	return old
}

// getCurrentOwner returns the current owner for the goroutine, or nil.
func getCurrentOwner() *Owner {
	return getTrackingContext().currentOwner
}

// setCurrentOwner sets the current owner for signal/effect creation.
// Returns the previous owner so it can be restored.
func setCurrentOwner(o *Owner) *Owner {
	ctx := getTrackingContext()
	old := ctx.currentOwner
	ctx.currentOwner = o
	return old
}

// CurrentOwner returns the owner currently on top of this goroutine's owner
// stack, or nil. Background-task spawning uses this to bind task handles to
// the tree node that initiated them.
func CurrentOwner() *Owner {
	return getCurrentOwner()
}

func getBatchDepth() int {
	return getTrackingContext().batchDepth
}

func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth decreases the batch depth by 1.
// Returns true if batch depth reached 0 (outermost batch complete).
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

// queuePendingUpdate records a listener dirtied during a batch.
func queuePendingUpdate(l Listener) {
	ctx := getTrackingContext()
	ctx.pendingUpdates = append(ctx.pendingUpdates, l)
}

// drainPendingUpdates returns and clears the pending updates queue.
func drainPendingUpdates() []Listener {
	ctx := getTrackingContext()
	updates := ctx.pendingUpdates
	ctx.pendingUpdates = nil
	return updates
}

// beginEffectRun marks entry into a synchronous effect run.
func beginEffectRun() {
	getTrackingContext().effectDepth++
}

// endEffectRun marks exit from a synchronous effect run. When the outermost
// run finishes, unmounts deferred from inside effect bodies are performed.
func endEffectRun() {
	ctx := getTrackingContext()
	ctx.effectDepth--
	if ctx.effectDepth > 0 {
		return
	}

	for len(ctx.deferredUnmounts) > 0 {
		pending := ctx.deferredUnmounts
		ctx.deferredUnmounts = nil
		for _, o := range pending {
			o.unmountNow()
		}
	}
}

// deferUnmount queues an owner whose Unmount was requested from inside a
// running effect. Returns false when no effect is running, in which case the
// caller unmounts inline.
func deferUnmount(o *Owner) bool {
	ctx := getTrackingContext()
	if ctx.effectDepth == 0 {
		return false
	}
	ctx.deferredUnmounts = append(ctx.deferredUnmounts, o)
	return true
}

// WithOwner runs fn with the specified owner as the current owner.
// Used when a goroutine needs to create signals or effects that belong to a
// specific tree node.
//
// Example:
//
//	reactive.WithOwner(node, func() {
//	    count := reactive.NewSignal(0)
//	    _ = count
//	})
func WithOwner(owner *Owner, fn func()) {
	old := setCurrentOwner(owner)
	defer setCurrentOwner(old)
	fn()
}

// WithListener runs fn with the specified listener recording dependencies.
// Used internally to set up tracking; exported for consumers that implement
// their own Listener.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}
