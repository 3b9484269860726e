package reactive

import "sync/atomic"

// globalIDCounter is the source of unique IDs for all reactive primitives.
var globalIDCounter atomic.Uint64

// nextID returns the next unique ID. IDs are monotonic and never reused.
func nextID() uint64 {
	return globalIDCounter.Add(1)
}
