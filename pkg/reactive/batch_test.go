package reactive

import (
	"testing"
)

func TestBatchCoalescesNotifications(t *testing.T) {
	first := NewSignal("John")
	last := NewSignal("Smith")

	runs := 0
	var full string
	CreateEffect(func() Cleanup {
		full = first.Get() + " " + last.Get()
		runs++
		return nil
	})

	Batch(func() {
		first.Set("Jane")
		last.Set("Doe")

		// Nothing propagates until the batch commits.
		if runs != 1 {
			t.Errorf("runs = %d inside batch, want 1", runs)
		}
	})

	if runs != 2 {
		t.Errorf("runs = %d after batch, want 2 (one run for both writes)", runs)
	}
	if full != "Jane Doe" {
		t.Errorf("full = %q, want Jane Doe", full)
	}
}

func TestBatchVersionsAdvancePerWrite(t *testing.T) {
	s := NewSignal(0)

	Batch(func() {
		s.Set(1)
		s.Set(2)
		s.Set(3)
	})

	if v := s.Version(); v != 3 {
		t.Errorf("Version() = %d, want 3 (versions are per write, not per flush)", v)
	}
}

func TestNestedBatches(t *testing.T) {
	s := NewSignal(0)

	runs := 0
	CreateEffect(func() Cleanup {
		s.Get()
		runs++
		return nil
	})

	Batch(func() {
		s.Set(1)
		Batch(func() {
			s.Set(2)
		})
		// Inner batch completion must not flush.
		if runs != 1 {
			t.Errorf("runs = %d after inner batch, want 1", runs)
		}
		s.Set(3)
	})

	if runs != 2 {
		t.Errorf("runs = %d after outermost batch, want 2", runs)
	}
	if got := s.Peek(); got != 3 {
		t.Errorf("Peek() = %d, want 3", got)
	}
}

func TestTxAlias(t *testing.T) {
	s := NewSignal(0)

	runs := 0
	CreateEffect(func() Cleanup {
		s.Get()
		runs++
		return nil
	})

	Tx(func() {
		s.Set(1)
		s.Set(2)
	})

	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestBatchFlushSkipsListenersDisposedMidBatch(t *testing.T) {
	owner := NewOwner(nil)
	owner.Mount()

	s := NewSignal(0)
	runs := 0
	WithOwner(owner, func() {
		CreateEffect(func() Cleanup {
			s.Get()
			runs++
			return nil
		})
	})

	Batch(func() {
		s.Set(1)
		owner.Unmount()
	})

	if runs != 1 {
		t.Errorf("runs = %d, want 1 (disposed listener must not flush)", runs)
	}
}

func TestUntracked(t *testing.T) {
	a := NewSignal(1)

	runs := 0
	CreateEffect(func() Cleanup {
		runs++
		Untracked(func() {
			a.Get()
		})
		return nil
	})

	a.Set(2)
	if runs != 1 {
		t.Errorf("runs = %d, want 1 (untracked read must not subscribe)", runs)
	}
}
