// Package reactive implements the fine-grained dependency-tracking engine:
// versioned signal containers, effects with per-run dependency re-tracking,
// and an owner tree that scopes the lifetime of everything created under it.
//
// All signal mutation, dependency tracking, and effect execution is meant to
// happen on a single owning goroutine (typically the one running a loop.Loop).
// Background goroutines communicate with that goroutine exclusively through
// the dispatch queue; see the loop and task packages.
//
// Writes propagate synchronously: Signal.Set does not return until every
// effect it dirtied, directly or transitively, has finished running.
package reactive
