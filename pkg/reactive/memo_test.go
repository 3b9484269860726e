package reactive

import (
	"testing"
)

func TestMemoBasic(t *testing.T) {
	count := NewSignal(2)
	doubled := NewMemo(func() int {
		return count.Get() * 2
	})

	if got := doubled.Get(); got != 4 {
		t.Errorf("Get() = %d, want 4", got)
	}

	count.Set(5)
	if got := doubled.Get(); got != 10 {
		t.Errorf("Get() = %d after write, want 10", got)
	}
}

func TestMemoIsLazy(t *testing.T) {
	s := NewSignal(1)

	computes := 0
	m := NewMemo(func() int {
		computes++
		return s.Get()
	})

	if computes != 0 {
		t.Fatalf("computes = %d before first read, want 0", computes)
	}

	m.Get()
	m.Get()
	if computes != 1 {
		t.Errorf("computes = %d after two reads, want 1 (cached)", computes)
	}

	// Two writes, one recompute on the next read.
	s.Set(2)
	s.Set(3)
	if computes != 1 {
		t.Fatalf("computes = %d before re-read, want 1 (lazy)", computes)
	}
	if got := m.Get(); got != 3 {
		t.Errorf("Get() = %d, want 3", got)
	}
	if computes != 2 {
		t.Errorf("computes = %d after re-read, want 2", computes)
	}
}

func TestMemoChaining(t *testing.T) {
	s := NewSignal(1)
	double := NewMemo(func() int { return s.Get() * 2 })
	quad := NewMemo(func() int { return double.Get() * 2 })

	if got := quad.Get(); got != 4 {
		t.Fatalf("quad = %d, want 4", got)
	}

	s.Set(3)
	if got := quad.Get(); got != 12 {
		t.Errorf("quad = %d after write, want 12", got)
	}
}

func TestMemoNotifiesEffects(t *testing.T) {
	s := NewSignal(1)
	m := NewMemo(func() int { return s.Get() * 10 })

	var observed int
	runs := 0
	CreateEffect(func() Cleanup {
		observed = m.Get()
		runs++
		return nil
	})

	s.Set(2)
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
	if observed != 20 {
		t.Errorf("observed = %d, want 20", observed)
	}
}

func TestMemoVersionOnlyBumpsOnChange(t *testing.T) {
	s := NewSignal(1)
	parity := NewMemo(func() int { return s.Get() % 2 })

	parity.Get()
	v1 := parity.Version()

	// 1 -> 3 keeps the parity; the memo recomputes but the value is equal.
	s.Set(3)
	parity.Get()
	if v := parity.Version(); v != v1 {
		t.Errorf("Version() = %d after equal recompute, want %d", v, v1)
	}

	s.Set(4)
	parity.Get()
	if v := parity.Version(); v <= v1 {
		t.Errorf("Version() = %d after changed recompute, want > %d", v, v1)
	}
}

func TestMemoWithEquals(t *testing.T) {
	s := NewSignal(1.0)
	rounded := NewMemo(func() float64 { return s.Get() }).
		WithEquals(func(a, b float64) bool {
			diff := a - b
			return diff > -0.5 && diff < 0.5
		})

	rounded.Get()
	v1 := rounded.Version()

	s.Set(1.2)
	rounded.Get()
	if v := rounded.Version(); v != v1 {
		t.Errorf("Version() = %d after within-epsilon change, want %d", v, v1)
	}
}

func TestMemoRetracksDependencies(t *testing.T) {
	useA := NewSignal(true)
	a := NewSignal("a")
	b := NewSignal("b")

	m := NewMemo(func() string {
		if useA.Get() {
			return a.Get()
		}
		return b.Get()
	})

	if got := m.Get(); got != "a" {
		t.Fatalf("Get() = %q, want a", got)
	}

	useA.Set(false)
	if got := m.Get(); got != "b" {
		t.Fatalf("Get() = %q after switch, want b", got)
	}

	// The stale branch's signal is no longer a dependency.
	if n := a.SubscriberCount(); n != 0 {
		t.Errorf("a.SubscriberCount() = %d, want 0", n)
	}
}

func TestMemoDispose(t *testing.T) {
	s := NewSignal(1)
	m := NewMemo(func() int { return s.Get() })
	m.Get()

	m.Dispose()
	m.Dispose()

	if n := s.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d after dispose, want 0", n)
	}
}
