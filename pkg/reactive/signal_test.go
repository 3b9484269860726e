package reactive

import (
	"testing"
)

func TestSignalBasic(t *testing.T) {
	s := NewSignal(42)

	if got := s.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}

	s.Set(100)
	if got := s.Get(); got != 100 {
		t.Errorf("Get() after Set = %d, want 100", got)
	}
}

func TestSignalUpdate(t *testing.T) {
	s := NewSignal(10)

	s.Update(func(v int) int { return v * 2 })
	if got := s.Get(); got != 20 {
		t.Errorf("Get() after Update = %d, want 20", got)
	}
}

func TestSignalVersionMonotonic(t *testing.T) {
	s := NewSignal(0)

	if v := s.Version(); v != 0 {
		t.Fatalf("initial Version() = %d, want 0", v)
	}

	last := s.Version()
	for i := 0; i < 5; i++ {
		s.Set(i)
		v := s.Version()
		if v <= last {
			t.Fatalf("Version() = %d after write, want > %d", v, last)
		}
		last = v
	}

	// Reads never bump the version.
	_ = s.Get()
	_ = s.Peek()
	if v := s.Version(); v != last {
		t.Errorf("Version() = %d after reads, want %d", v, last)
	}
}

func TestSignalVersionBumpsOnEqualValue(t *testing.T) {
	s := NewSignal(7)
	before := s.Version()

	s.Set(7)
	if v := s.Version(); v != before+1 {
		t.Errorf("Version() = %d after same-value write, want %d", v, before+1)
	}
}

func TestSignalAlwaysNotifies(t *testing.T) {
	s := NewSignal(1)

	runs := 0
	CreateEffect(func() Cleanup {
		s.Get()
		runs++
		return nil
	})

	if runs != 1 {
		t.Fatalf("runs = %d after create, want 1", runs)
	}

	// A write of the identical value still re-runs subscribers.
	s.Set(1)
	if runs != 2 {
		t.Errorf("runs = %d after same-value write, want 2", runs)
	}

	s.Set(2)
	if runs != 3 {
		t.Errorf("runs = %d after changed write, want 3", runs)
	}
}

func TestSignalSetIsSynchronous(t *testing.T) {
	s := NewSignal(0)
	observed := -1

	CreateEffect(func() Cleanup {
		observed = s.Get()
		return nil
	})

	s.Set(5)
	// The effect must have finished before Set returned.
	if observed != 5 {
		t.Errorf("observed = %d immediately after Set, want 5", observed)
	}
}

func TestSignalPeekDoesNotSubscribe(t *testing.T) {
	s := NewSignal(1)

	runs := 0
	CreateEffect(func() Cleanup {
		s.Peek()
		runs++
		return nil
	})

	s.Set(2)
	if runs != 1 {
		t.Errorf("runs = %d, want 1 (Peek must not subscribe)", runs)
	}
	if n := s.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
}

func TestUntrackedGet(t *testing.T) {
	a := NewSignal(1)
	b := NewSignal(10)

	runs := 0
	CreateEffect(func() Cleanup {
		a.Get()
		UntrackedGet(b)
		runs++
		return nil
	})

	b.Set(20)
	if runs != 1 {
		t.Errorf("runs = %d after untracked dependency write, want 1", runs)
	}

	a.Set(2)
	if runs != 2 {
		t.Errorf("runs = %d after tracked dependency write, want 2", runs)
	}
}

func TestSignalWriteAfterOwnerUnmountIsNoop(t *testing.T) {
	owner := NewOwner(nil)
	owner.Mount()

	var s *Signal[int]
	WithOwner(owner, func() {
		s = NewSignal(1)
	})

	owner.Unmount()

	before := s.Version()
	s.Set(99)
	s.Update(func(v int) int { return v + 1 })

	if got := s.Peek(); got != 1 {
		t.Errorf("Peek() = %d after post-unmount writes, want 1", got)
	}
	if v := s.Version(); v != before {
		t.Errorf("Version() = %d after post-unmount writes, want %d", v, before)
	}
}

func TestSignalSubscriberDedup(t *testing.T) {
	s := NewSignal(0)

	runs := 0
	CreateEffect(func() Cleanup {
		// Reading twice must not double-subscribe.
		s.Get()
		s.Get()
		runs++
		return nil
	})

	if n := s.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", n)
	}

	s.Set(1)
	if runs != 2 {
		t.Errorf("runs = %d, want 2 (one run per write)", runs)
	}
}

func TestWriteFromInsideEffectRecurses(t *testing.T) {
	a := NewSignal(0)
	b := NewSignal(0)

	var bObserved int
	CreateEffect(func() Cleanup {
		bObserved = b.Get()
		return nil
	})

	CreateEffect(func() Cleanup {
		v := a.Get()
		if v > 0 {
			b.Set(v * 10)
		}
		return nil
	})

	a.Set(3)
	// The nested write's propagation completed before the outer Set returned.
	if bObserved != 30 {
		t.Errorf("bObserved = %d after re-entrant write, want 30", bObserved)
	}
}
