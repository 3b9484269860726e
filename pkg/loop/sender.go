package loop

import "github.com/ripple-ui/ripple/pkg/reactive"

// Sender is a thread-safe proxy for mutating one signal from background
// goroutines. It is built on the owning goroutine from a specific signal and
// captures only an apply closure plus the loop; it holds no other reference
// into the reactive graph, so it may be freely copied and moved across
// goroutines.
//
// Set enqueues the actual write via Dispatch; the mutation happens on the
// owning goroutine at drain time. If the signal's owner unmounted before the
// dispatch runs, the write is a no-op.
type Sender[T any] struct {
	loop  *Loop
	apply func(T)
}

// NewSender creates a Sender bound to sig.
func NewSender[T any](l *Loop, sig *reactive.Signal[T]) Sender[T] {
	return Sender[T]{
		loop:  l,
		apply: sig.Set,
	}
}

// NewSenderFunc creates a Sender that runs an arbitrary apply function on the
// owning goroutine instead of a direct signal write. Useful for consumers
// that fan one incoming value out to several signals inside a Batch.
func NewSenderFunc[T any](l *Loop, apply func(T)) Sender[T] {
	return Sender[T]{
		loop:  l,
		apply: apply,
	}
}

// Set requests the mutation from any goroutine. Never blocks.
func (s Sender[T]) Set(value T) {
	if s.loop == nil || s.apply == nil {
		return
	}
	s.loop.Dispatch(func() {
		s.apply(value)
	})
}
