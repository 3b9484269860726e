package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripple-ui/ripple/pkg/loop"
	"github.com/ripple-ui/ripple/pkg/reactive"
)

func newTestExecutor(t *testing.T) (*loop.Loop, *Executor) {
	t.Helper()
	l := loop.New()
	e := NewExecutor(l)
	t.Cleanup(func() {
		e.Close()
		l.Close()
	})
	return l, e
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish in time")
	}
}

func TestSpawnCompletes(t *testing.T) {
	_, e := newTestExecutor(t)

	ran := make(chan struct{})
	h := e.Spawn(func(ctx context.Context) error {
		close(ran)
		return nil
	})

	require.True(t, h.IsRunning() || h.IsCompleted())
	<-ran
	waitDone(t, h)

	assert.True(t, h.IsCompleted())
	assert.False(t, h.IsAborted())
	assert.NoError(t, h.Err())
}

func TestSpawnErrorOutcome(t *testing.T) {
	_, e := newTestExecutor(t)

	boom := errors.New("boom")
	h := e.Spawn(func(ctx context.Context) error {
		return boom
	})
	waitDone(t, h)

	assert.True(t, h.IsCompleted())
	assert.ErrorIs(t, h.Err(), boom)
}

func TestSpawnPanicBecomesError(t *testing.T) {
	_, e := newTestExecutor(t)

	h := e.Spawn(func(ctx context.Context) error {
		panic("task exploded")
	})
	waitDone(t, h)

	require.Error(t, h.Err())
	assert.Contains(t, h.Err().Error(), "task exploded")
	assert.True(t, h.IsCompleted(), "a panicking body still completes, it does not abort")
}

func TestAbortCancelsContext(t *testing.T) {
	_, e := newTestExecutor(t)

	started := make(chan struct{})
	h := e.Spawn(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	h.Abort()
	waitDone(t, h)

	assert.True(t, h.IsAborted())
	assert.False(t, h.IsCompleted())
	assert.ErrorIs(t, h.Err(), context.Canceled)
}

func TestAbortIsIdempotent(t *testing.T) {
	_, e := newTestExecutor(t)

	h := e.Spawn(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Abort()
	h.Abort()
	h.Abort()
	waitDone(t, h)

	assert.True(t, h.IsAborted())
}

func TestAbortAfterCompletionIsNoop(t *testing.T) {
	_, e := newTestExecutor(t)

	h := e.Spawn(func(ctx context.Context) error {
		return nil
	})
	waitDone(t, h)

	require.True(t, h.IsCompleted())
	h.Abort()
	assert.True(t, h.IsCompleted(), "Abort after completion must not change state")
	assert.False(t, h.IsAborted())
}

func TestSpawnNeverBlocks(t *testing.T) {
	l := loop.New()
	e := NewExecutor(l, WithWorkers(1))
	t.Cleanup(func() {
		e.Close()
		l.Close()
	})

	// Saturate the single worker.
	blocker := e.Spawn(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	// With the pool full, spawning must still return promptly.
	start := time.Now()
	h := e.Spawn(func(ctx context.Context) error {
		return nil
	})
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	blocker.Abort()
	waitDone(t, blocker)
	waitDone(t, h)
	assert.True(t, h.IsCompleted())
}

func TestSpawnAfterClose(t *testing.T) {
	l := loop.New()
	e := NewExecutor(l)
	e.Close()
	l.Close()

	h := e.Spawn(func(ctx context.Context) error {
		t.Error("body ran after close")
		return nil
	})
	waitDone(t, h)

	assert.True(t, h.IsAborted())
	assert.ErrorIs(t, h.Err(), ErrExecutorClosed)
}

func TestCloseAbortsOutstandingWork(t *testing.T) {
	l := loop.New()
	e := NewExecutor(l)
	defer l.Close()

	started := make(chan struct{})
	h := e.Spawn(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	e.Close()

	waitDone(t, h)
	assert.True(t, h.IsAborted())
	assert.Equal(t, 0, e.Running())
}

func TestOwnerUnmountAbortsSpawnedTask(t *testing.T) {
	_, e := newTestExecutor(t)

	owner := reactive.NewOwner(nil)
	owner.Mount()

	started := make(chan struct{})
	var h *Handle
	reactive.WithOwner(owner, func() {
		h = e.Spawn(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	})

	<-started
	owner.Unmount()
	waitDone(t, h)

	assert.True(t, h.IsAborted())
	assert.False(t, h.IsRunning())
}

func TestSpawnWithoutOwnerIsUnregistered(t *testing.T) {
	_, e := newTestExecutor(t)

	h := e.Spawn(func(ctx context.Context) error {
		return nil
	})
	waitDone(t, h)
	assert.True(t, h.IsCompleted())
}
