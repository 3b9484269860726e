// Package task runs background work on a bounded worker pool and hands back
// cancellable, queryable handles.
//
// Work never touches reactive graph state directly: results cross back to the
// owning goroutine through the dispatch loop (see the loop package). Spawning
// while a reactive.Owner is current automatically registers the handle with
// that owner, so unmounting a tree node aborts everything it started.
package task
