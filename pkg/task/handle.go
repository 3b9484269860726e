package task

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handle states. A handle transitions Running->Completed or Running->Aborted,
// never both; the transition is a single CAS.
const (
	stateRunning int32 = iota
	stateCompleted
	stateAborted
)

// Handle is the lifecycle token for one unit of background work.
//
// State reads are best-effort and eventually consistent: a task may complete
// between a check and a subsequent use. Use Done for synchronization.
type Handle struct {
	id uint64

	// ctx is cancelled by Abort (and by executor shutdown). The work body
	// must observe it; cancellation is cooperative.
	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	// done closes when the work goroutine has exited (or, for never-started
	// work, when it was aborted while queued).
	done     chan struct{}
	doneOnce sync.Once

	// err is the completion outcome. Written once before done closes.
	err   error
	errMu sync.Mutex
}

func newHandle(id uint64, parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the handle's unique, monotonically assigned identifier.
func (h *Handle) ID() uint64 {
	return h.id
}

// Abort requests a cooperative stop. Idempotent: calling it twice, or after
// natural completion, has no additional effect and never panics.
func (h *Handle) Abort() {
	h.cancel()
	h.state.CompareAndSwap(stateRunning, stateAborted)
}

// IsRunning reports whether the task has neither completed nor been aborted.
func (h *Handle) IsRunning() bool {
	return h.state.Load() == stateRunning
}

// IsCompleted reports whether the task ran to natural completion.
func (h *Handle) IsCompleted() bool {
	return h.state.Load() == stateCompleted
}

// IsAborted reports whether the task was cancelled before completing.
func (h *Handle) IsAborted() bool {
	return h.state.Load() == stateAborted
}

// Done returns a channel closed once the work goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the completion outcome: the error returned by the body, a
// recovered panic converted to an error, or the context error for work
// aborted before finishing. Meaningful once Done is closed.
func (h *Handle) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.err
}

// Context returns the handle's cancellation context for the work body.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// finish records the outcome and marks the handle terminal. The CAS keeps
// natural completion from overwriting an earlier Abort.
func (h *Handle) finish(err error) {
	h.errMu.Lock()
	h.err = err
	h.errMu.Unlock()

	h.state.CompareAndSwap(stateRunning, stateCompleted)
	h.doneOnce.Do(func() { close(h.done) })
}
