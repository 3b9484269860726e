package reactive

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Memo is a cached derived value that automatically tracks its dependencies.
// When any dependency changes, the memo is invalidated and recomputes on the
// next read.
//
// Memos are lazy: they only compute when Get or Peek is called. If multiple
// signals change before a read, the memo recomputes once.
//
// Memos can themselves be subscribed to, behaving like signals, which allows
// chains of derived values.
type Memo[T any] struct {
	base signalBase

	// compute is the function that computes the memo's value.
	compute func() T

	// value is the cached computed value.
	value T

	// valueMu protects value access.
	valueMu sync.RWMutex

	// valid indicates whether the cached value is current.
	valid atomic.Bool

	// sources are the signals/memos this memo depends on.
	// Rebuilt from scratch on every recompute.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// equal decides whether a recomputed value counts as changed.
	// nil uses default equality.
	equal func(T, T) bool

	// computing prevents infinite recursion on circular dependencies.
	computing atomic.Bool

	// disposed marks the memo as torn down.
	disposed atomic.Bool
}

// NewMemo creates a new memo with the given computation function.
// The computation is not run immediately; it runs lazily on first Get.
func NewMemo[T any](compute func() T) *Memo[T] {
	return &Memo[T]{
		base: signalBase{
			id: nextID(),
		},
		compute: compute,
	}
}

// Get returns the memo's value, recomputing if necessary, and subscribes the
// current listener.
func (m *Memo[T]) Get() T {
	if listener := getCurrentListener(); listener != nil {
		m.base.subscribe(listener)
		if tracker, ok := listener.(sourceTracker); ok {
			tracker.addSource(&m.base)
		}
	}

	if !m.valid.Load() {
		m.recompute()
	}

	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// Peek returns the memo's value without subscribing.
// Still triggers recomputation if the cached value is stale.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the memo and propagates to subscribers.
// Implements the Listener interface.
func (m *Memo[T]) MarkDirty() {
	if m.disposed.Load() {
		return
	}
	// CAS keeps invalidation idempotent per dirty cycle.
	if m.valid.CompareAndSwap(true, false) {
		m.base.notifySubscribers()
	}
}

// ID returns the unique identifier for this memo.
// Implements the Listener interface.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// IsDisposed reports whether the memo has been torn down.
// Implements the Listener interface.
func (m *Memo[T]) IsDisposed() bool {
	return m.disposed.Load()
}

// Version returns the number of committed recomputations.
func (m *Memo[T]) Version() uint64 {
	return m.base.version.Load()
}

// addSource records a dependency for this recompute.
func (m *Memo[T]) addSource(source *signalBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// WithEquals configures the memo with a custom equality function, used to
// decide whether a recomputed value should count as a change.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

// Dispose tears down the memo, unsubscribing from all sources. Idempotent.
func (m *Memo[T]) Dispose() {
	if m.disposed.Swap(true) {
		return
	}

	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = nil
	m.sourcesMu.Unlock()
}

// recompute runs the computation and updates the cached value.
func (m *Memo[T]) recompute() {
	// Circular dependency: keep the stale value rather than recurse forever.
	if m.computing.Swap(true) {
		return
	}
	defer m.computing.Store(false)

	// Unsubscribe from the previous compute's sources.
	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	old := setCurrentListener(m)
	newValue := m.compute()
	setCurrentListener(old)

	m.valueMu.Lock()
	changed := !m.equals(m.value, newValue)
	m.value = newValue
	m.valueMu.Unlock()

	m.valid.Store(true)
	if changed {
		m.base.bumpVersion()
	}
}

// equals checks if two values are equal using the configured function.
func (m *Memo[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals provides type-appropriate equality checking.
// Uses == for common comparable types and reflect.DeepEqual otherwise.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int64:
		return av == any(b).(int64)
	case uint64:
		return av == any(b).(uint64)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}

var _ sourceTracker = (*Memo[int])(nil)
