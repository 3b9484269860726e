package reactive

// Batch groups multiple signal writes into a single notification phase.
// Listeners dirtied inside the batch are collected, deduplicated by ID, and
// each runs exactly once when the outermost batch commits. Versions still
// advance per write; only notification is coalesced.
//
// Batches nest; notifications fire only when the outermost batch completes.
//
// Example:
//
//	reactive.Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	})
//	// dependents re-run once with both changes visible
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			processPendingUpdates()
		}
	}()

	fn()
}

// Tx is an alias for Batch aligning with transaction terminology.
func Tx(fn func()) {
	Batch(fn)
}

// processPendingUpdates deduplicates and notifies all pending listeners.
func processPendingUpdates() {
	updates := drainPendingUpdates()
	if len(updates) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(updates))
	unique := make([]Listener, 0, len(updates))

	for _, listener := range updates {
		id := listener.ID()
		if !seen[id] {
			seen[id] = true
			unique = append(unique, listener)
		}
	}

	for _, listener := range unique {
		if listener.IsDisposed() {
			continue
		}
		listener.MarkDirty()
	}
}

// Untracked runs fn without recording signal reads as dependencies.
//
// Note: for single signal reads, signal.Peek() is more efficient and clearer
// in intent.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}

// UntrackedGet reads a signal's value without creating a dependency.
// Convenience equivalent of signal.Peek().
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}
