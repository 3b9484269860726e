// Package loop implements the cross-goroutine dispatch queue and the owning
// goroutine's wakeup mechanism.
//
// A Loop is a FIFO mailbox of callbacks destined for the single goroutine
// that owns all reactive state. Any goroutine may call Dispatch; only the
// owning goroutine may drain. Each drained callback runs with failure
// isolation: a panic inside one callback is caught and logged, and never
// prevents subsequent callbacks or halts the loop.
//
// Embedders with their own event loop (windowing layers, schedulers) supply a
// wakeup function via WithWakeup and call DrainAndRun when woken; everyone
// else calls Run, which blocks the owning goroutine and drains on demand.
package loop
