package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripple-ui/ripple/pkg/loop"
	"github.com/ripple-ui/ripple/pkg/reactive"
)

// drainUntil drains l until cond holds or the deadline passes.
func drainUntil(t *testing.T, l *loop.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.DrainAndRun()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestSpawnIntervalTicks(t *testing.T) {
	l, e := newTestExecutor(t)

	ticks := 0
	h := e.SpawnInterval(5*time.Millisecond, func() {
		ticks++
	})

	drainUntil(t, l, func() bool { return ticks >= 3 })

	h.Abort()
	waitDone(t, h)
	assert.True(t, h.IsAborted())

	// No further ticks arrive after abort.
	l.DrainAndRun()
	settled := ticks
	time.Sleep(20 * time.Millisecond)
	l.DrainAndRun()
	assert.LessOrEqual(t, ticks, settled+1, "ticks kept arriving after abort")
}

func TestSpawnIntervalImmediate(t *testing.T) {
	l, e := newTestExecutor(t)

	ticks := 0
	h := e.SpawnInterval(time.Hour, func() {
		ticks++
	}, IntervalImmediate())

	// The first tick arrives without waiting for the period.
	drainUntil(t, l, func() bool { return ticks == 1 })
	h.Abort()
	waitDone(t, h)
}

func TestSpawnIntervalOwnerUnmount(t *testing.T) {
	l, e := newTestExecutor(t)

	owner := reactive.NewOwner(nil)
	owner.Mount()

	ticks := 0
	var h *Handle
	reactive.WithOwner(owner, func() {
		h = e.SpawnInterval(5*time.Millisecond, func() {
			ticks++
		})
	})

	drainUntil(t, l, func() bool { return ticks >= 1 })

	owner.Unmount()
	waitDone(t, h)
	assert.True(t, h.IsAborted())
}

func TestDebouncedDeliversLatestOnly(t *testing.T) {
	l, e := newTestExecutor(t)

	var got []string
	d := NewDebounced(e, 20*time.Millisecond, func(v string) {
		got = append(got, v)
	})

	d.Submit("a")
	d.Submit("ab")
	d.Submit("abc")

	drainUntil(t, l, func() bool { return len(got) == 1 })
	require.Equal(t, []string{"abc"}, got)

	// A fresh submission after the quiet period delivers again.
	d.Submit("xyz")
	drainUntil(t, l, func() bool { return len(got) == 2 })
	assert.Equal(t, "xyz", got[1])
}

func TestDebouncedStop(t *testing.T) {
	l, e := newTestExecutor(t)

	fired := false
	d := NewDebounced(e, 10*time.Millisecond, func(int) {
		fired = true
	})

	d.Submit(1)
	d.Stop()
	d.Stop()

	time.Sleep(30 * time.Millisecond)
	l.DrainAndRun()
	assert.False(t, fired, "debounced fn ran after Stop")

	d.Submit(2)
	time.Sleep(30 * time.Millisecond)
	l.DrainAndRun()
	assert.False(t, fired, "Submit after Stop delivered")
}

func TestDebouncedOwnerUnmountStops(t *testing.T) {
	l, e := newTestExecutor(t)

	owner := reactive.NewOwner(nil)
	owner.Mount()

	fired := false
	var d *Debounced[int]
	reactive.WithOwner(owner, func() {
		d = NewDebounced(e, 10*time.Millisecond, func(int) {
			fired = true
		})
	})

	d.Submit(1)
	owner.Unmount()

	time.Sleep(30 * time.Millisecond)
	l.DrainAndRun()
	assert.False(t, fired, "debounced fn ran after owner unmount")
}
