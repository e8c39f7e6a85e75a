package session

import "sync/atomic"

// SequenceAllocator hands out session-wide operation identifiers:
// 1-based, strictly increasing, gapless, shared by every tab. The counter
// is the only state shared across tabs, so it is an atomic rather than a
// field guarded by any router's lock. Allocation never blocks.
type SequenceAllocator struct {
	n atomic.Uint64
}

// Next returns the next operation identifier. Safe for concurrent use;
// no identifier is ever issued twice or skipped.
func (a *SequenceAllocator) Next() uint64 {
	return a.n.Add(1)
}

// Last returns the most recently issued identifier, or 0 when none has
// been issued yet.
func (a *SequenceAllocator) Last() uint64 {
	return a.n.Load()
}
