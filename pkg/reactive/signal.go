package reactive

import (
	"sync"
	"sync/atomic"
)

// signalBase provides type-erased subscriber management and versioning.
// It is embedded in Signal[T] and Memo[T] to share subscription logic.
type signalBase struct {
	id uint64

	// version counts committed mutations. Strictly increasing; reads never
	// change it.
	version atomic.Uint64

	// owner is the tree node that created this signal, nil for free-standing
	// signals. Writes to a signal whose owner has been unmounted are no-ops.
	owner *Owner

	// subs are the listeners subscribed to this signal.
	subs []Listener

	// subMu protects the subs slice.
	subMu sync.RWMutex
}

// subscribe adds a listener to this signal's subscribers.
// Deduplicates by listener ID to prevent double-subscription.
func (s *signalBase) subscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}

	s.subs = append(s.subs, l)
}

// unsubscribe removes a listener from this signal's subscribers.
func (s *signalBase) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			// Remove by swapping with last element (order doesn't matter)
			s.subs[i] = s.subs[len(s.subs)-1]
			s.subs = s.subs[:len(s.subs)-1]
			return
		}
	}
}

// notifySubscribers walks the current subscriber set and marks each live
// listener dirty, running effects synchronously in the order discovered.
// Disposed listeners encountered along the way are pruned silently.
//
// Inside a batch, notifications are queued instead and flushed once
// (deduplicated by ID) when the outermost batch commits.
func (s *signalBase) notifySubscribers() {
	// Snapshot and prune under the lock; never hold it during notification,
	// since effect bodies may subscribe or unsubscribe re-entrantly.
	s.subMu.Lock()
	live := s.subs[:0]
	for _, sub := range s.subs {
		if !sub.IsDisposed() {
			live = append(live, sub)
		}
	}
	s.subs = live
	snapshot := make([]Listener, len(live))
	copy(snapshot, live)
	s.subMu.Unlock()

	if getBatchDepth() > 0 {
		for _, sub := range snapshot {
			queuePendingUpdate(sub)
		}
		return
	}

	for _, sub := range snapshot {
		if sub.IsDisposed() {
			// Disposed by an earlier subscriber's effect in this same walk.
			continue
		}
		sub.MarkDirty()
	}
}

// bumpVersion records a committed mutation.
func (s *signalBase) bumpVersion() {
	s.version.Add(1)
}

// Signal is a reactive value container.
// Reading a Signal's value during a tracked context (effect execution or memo
// computation) automatically subscribes the current listener to receive
// notifications when the value changes.
type Signal[T any] struct {
	base signalBase

	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex
}

// NewSignal creates a new signal with the given initial value.
// If an owner is current on this goroutine, the signal is bound to it:
// once that owner unmounts, writes to the signal become no-ops.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		base: signalBase{
			id:    nextID(),
			owner: getCurrentOwner(),
		},
		value: initial,
	}
}

// Get returns the current value and subscribes the current listener.
// If called during a tracked context (effect execution or memo computation),
// the current listener will be notified when this signal's value changes.
func (s *Signal[T]) Get() T {
	// Read value with lock
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track dependency (after releasing the value lock to prevent deadlock)
	if listener := getCurrentListener(); listener != nil {
		s.base.subscribe(listener)
		if tracker, ok := listener.(sourceTracker); ok {
			tracker.addSource(&s.base)
		}
	}

	return value
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the signal's value, increments the version, and propagates.
//
// There is deliberately no value-equality short circuit: every committed write
// notifies, even when the new value equals the old one. Downstream consumers
// rely on forced re-runs, and skipping the comparison keeps this hot path
// simple. Do not "fix" this by equality-gating.
//
// Set does not return until all directly and transitively triggered effects
// have finished running. Writes from inside a running effect recurse through
// the same path.
//
// Writing a signal owned by an unmounted owner is a no-op, not an error:
// background results may legitimately arrive after unmount.
func (s *Signal[T]) Set(value T) {
	if s.base.owner != nil && s.base.owner.IsUnmounted() {
		return
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	s.base.bumpVersion()
	s.base.notifySubscribers()
}

// Update atomically reads and replaces the signal's value.
// The function receives the current value and returns the new value.
// Propagation follows the same always-notify policy as Set.
func (s *Signal[T]) Update(fn func(T) T) {
	if s.base.owner != nil && s.base.owner.IsUnmounted() {
		return
	}

	s.mu.Lock()
	s.value = fn(s.value)
	s.mu.Unlock()

	s.base.bumpVersion()
	s.base.notifySubscribers()
}

// Version returns the number of committed mutations. It increases strictly
// on every Set/Update and is never changed by reads.
func (s *Signal[T]) Version() uint64 {
	return s.base.version.Load()
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

// SubscriberCount reports the current number of subscribed listeners,
// including disposed entries not yet pruned. Intended for tests and
// diagnostics.
func (s *Signal[T]) SubscriberCount() int {
	s.base.subMu.RLock()
	defer s.base.subMu.RUnlock()

	n := 0
	for _, sub := range s.base.subs {
		if !sub.IsDisposed() {
			n++
		}
	}
	return n
}
