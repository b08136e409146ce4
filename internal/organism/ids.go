package organism

import "sync/atomic"

// NoParent marks organisms of the initial population and fixed competitors.
const NoParent int64 = -1

// IDAllocator hands out sequential organism ids. Each run owns its own
// allocator so ids restart at the configured base for every run.
type IDAllocator struct {
	next atomic.Int64
}

func NewIDAllocator(start int64) *IDAllocator {
	a := &IDAllocator{}
	a.next.Store(start)
	return a
}

func (a *IDAllocator) Next() int64 {
	return a.next.Add(1) - 1
}

// Peek returns the id the next call to Next will return.
func (a *IDAllocator) Peek() int64 {
	return a.next.Load()
}
