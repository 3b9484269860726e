package reactive

import (
	"sync"
	"sync/atomic"
)

// Owner lifecycle states. The only transitions are
// Created -> Mounted -> Unmounted; Unmounted is terminal.
const (
	stateCreated int32 = iota
	stateMounted
	stateUnmounted
)

// Owner is a node in the component tree. It owns the signals, effects, child
// owners, cleanup callbacks, and background tasks created under it; when it
// unmounts, all of them are torn down in a fixed order:
//
//  1. children, depth-first
//  2. effects (unsubscribing every remaining dependency)
//  3. cleanup callbacks, in registration order
//  4. registered background tasks, aborted
//
// The tree is acyclic by construction: children are exclusively owned and the
// parent link is a non-owning back-reference used only for lookup.
type Owner struct {
	id uint64

	// parent is the parent Owner in the hierarchy, nil for a root.
	parent *Owner

	// children are child owners (sub-components), exclusively owned.
	children   []*Owner
	childrenMu sync.Mutex

	// effects owned by this node.
	effects   []*Effect
	effectsMu sync.Mutex

	// cleanups are the deferred actions registered via OnCleanup.
	// They run in FIFO registration order on unmount.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// tasks are background task handles registered to this node.
	// All of them are aborted on unmount.
	tasks   []Abortable
	tasksMu sync.Mutex

	// values stores context values for this scope.
	values   map[any]any
	valuesMu sync.RWMutex

	// state is one of stateCreated, stateMounted, stateUnmounted.
	state atomic.Int32
}

// NewOwner creates a new Owner with the given parent and registers it as a
// child. If parent is nil, creates a root Owner.
func NewOwner(parent *Owner) *Owner {
	o := &Owner{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(o)
	}

	return o
}

// ID returns the unique identifier for this Owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent Owner, or nil for a root Owner.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// Mount transitions the owner from Created to Mounted, making it eligible to
// own live reactive state. Mounting an already mounted or unmounted owner is
// a no-op.
func (o *Owner) Mount() {
	o.state.CompareAndSwap(stateCreated, stateMounted)
}

// IsMounted reports whether the owner is currently mounted.
func (o *Owner) IsMounted() bool {
	return o.state.Load() == stateMounted
}

// IsUnmounted reports whether the owner has been unmounted.
// Unmounted is terminal; there is no transition back.
func (o *Owner) IsUnmounted() bool {
	return o.state.Load() == stateUnmounted
}

// addChild registers a child Owner.
func (o *Owner) addChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	o.children = append(o.children, child)
}

// removeChild removes a child Owner from this Owner's children.
func (o *Owner) removeChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()

	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// registerEffect adds an effect to this Owner for teardown on unmount.
func (o *Owner) registerEffect(e *Effect) {
	if o.IsUnmounted() {
		return
	}

	o.effectsMu.Lock()
	defer o.effectsMu.Unlock()
	o.effects = append(o.effects, e)
}

// OnCleanup registers a cleanup callback to run when this Owner unmounts.
// Callbacks run exactly once, in registration order. Registering on an
// already unmounted owner runs the callback immediately.
func (o *Owner) OnCleanup(fn func()) {
	if o.IsUnmounted() {
		fn()
		return
	}

	o.cleanupsMu.Lock()
	defer o.cleanupsMu.Unlock()
	o.cleanups = append(o.cleanups, fn)
}

// RegisterTask binds a background task handle to this node. The handle is
// aborted when the node unmounts. Registering on an already unmounted owner
// aborts immediately.
func (o *Owner) RegisterTask(t Abortable) {
	if t == nil {
		return
	}
	if o.IsUnmounted() {
		t.Abort()
		return
	}

	o.tasksMu.Lock()
	defer o.tasksMu.Unlock()
	o.tasks = append(o.tasks, t)
}

// SetValue stores a context value on this scope.
func (o *Owner) SetValue(key, value any) {
	o.valuesMu.Lock()
	defer o.valuesMu.Unlock()
	if o.values == nil {
		o.values = make(map[any]any)
	}
	o.values[key] = value
}

// Value looks up a context value on this scope, walking up the parent chain.
// Returns nil when no scope in the chain holds the key.
func (o *Owner) Value(key any) any {
	for node := o; node != nil; node = node.parent {
		node.valuesMu.RLock()
		v, ok := node.values[key]
		node.valuesMu.RUnlock()
		if ok {
			return v
		}
	}
	return nil
}

// Unmount tears down this Owner and everything it owns. Idempotent.
//
// When called from inside one of this goroutine's running effects, the
// teardown is deferred until the outermost effect run finishes rather than
// re-entered inline; the unmount still happens exactly once.
func (o *Owner) Unmount() {
	if o.IsUnmounted() {
		return
	}
	if deferUnmount(o) {
		return
	}
	o.unmountNow()
}

// unmountNow performs the actual teardown.
func (o *Owner) unmountNow() {
	if o.state.Swap(stateUnmounted) == stateUnmounted {
		// Already unmounted (possibly deferred twice).
		return
	}

	// Detach from the parent's child list.
	if o.parent != nil {
		o.parent.removeChild(o)
	}

	// Children first, depth-first.
	o.childrenMu.Lock()
	children := make([]*Owner, len(o.children))
	copy(children, o.children)
	o.children = nil
	o.childrenMu.Unlock()

	for _, child := range children {
		child.unmountNow()
	}

	// Then this node's effects.
	o.effectsMu.Lock()
	effects := o.effects
	o.effects = nil
	o.effectsMu.Unlock()

	for _, e := range effects {
		e.dispose()
	}

	// Then cleanup callbacks, in registration order.
	o.cleanupsMu.Lock()
	cleanups := o.cleanups
	o.cleanups = nil
	o.cleanupsMu.Unlock()

	for _, fn := range cleanups {
		fn()
	}

	// Finally, cancel background tasks registered to this node. This is the
	// authoritative cancellation boundary: no background callback may assume
	// the node still exists by the time its dispatch runs.
	o.tasksMu.Lock()
	tasks := o.tasks
	o.tasks = nil
	o.tasksMu.Unlock()

	for _, t := range tasks {
		t.Abort()
	}

	o.valuesMu.Lock()
	o.values = nil
	o.valuesMu.Unlock()
}

// Run executes fn with this owner as the current owner on this goroutine,
// restoring the previous owner afterwards.
func (o *Owner) Run(fn func()) {
	WithOwner(o, fn)
}
