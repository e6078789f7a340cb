// Package epoch implements the epoch-based reclamation registry described
// in spec component 4.B. It is the mechanism that lets the shard engine
// know when it is safe to hand a retired value back to the arena allocator:
// not before every reader that might still be dereferencing it has left its
// critical section.
//
// Grounded on the enter/leave/bump/min-active shape of a classic epoch
// reclamation scheme (see other_examples' cowbtree epoch manager), adapted
// here to a fixed-size per-reader-slot array instead of a sync.Map, because
// the spec fixes MaxThreads at construction time (component 4.G) and readers
// never register/unregister dynamically — they are handed a stable index in
// [0, MaxThreads) for the lifetime of the cache.
//
// © 2025 arena-cache authors. MIT License.
package epoch

import "sync/atomic"

// Manager tracks the global epoch counter and, per reader slot, the epoch
// that reader last entered (0 meaning "not currently inside a read").
type Manager struct {
    global atomic.Uint64
    slots  []atomic.Uint64
}

// New constructs a Manager with maxThreads reader slots. The global epoch
// starts at 1 so that 0 is unambiguously "not entered".
func New(maxThreads int) *Manager {
    m := &Manager{slots: make([]atomic.Uint64, maxThreads)}
    m.global.Store(1)
    return m
}

// Guard is the scoped handle returned by Enter. Callers must call Leave
// exactly once, typically via defer.
type Guard struct {
    m   *Manager
    tid int
}

// Enter records the current global epoch into the calling reader's slot and
// returns a guard. tid must be in [0, maxThreads) — out of range is a
// precondition violation per spec §7 and will panic (the same "abort with a
// diagnostic" treatment as other invariant violations in this codebase).
func (m *Manager) Enter(tid int) Guard {
    if tid < 0 || tid >= len(m.slots) {
        panic("epoch: thread id out of range")
    }
    m.slots[tid].Store(m.global.Load())
    return Guard{m: m, tid: tid}
}

// Leave clears the reader's slot, signalling that it may no longer
// reference any value visible as of its entry epoch.
func (g Guard) Leave() {
    g.m.slots[g.tid].Store(0)
}

// Epoch returns the epoch this guard entered at. Useful for tests that want
// to assert on the observed epoch without re-reading the global counter.
func (g Guard) Epoch() uint64 {
    return g.m.slots[g.tid].Load()
}

// Bump atomically advances the global epoch and returns the new value.
// Called by the shard writer once per put, before draining recency traces.
func (m *Manager) Bump() uint64 {
    return m.global.Add(1)
}

// Current returns the current global epoch without advancing it.
func (m *Manager) Current() uint64 {
    return m.global.Load()
}

// MinActive scans every reader slot and returns the smallest nonzero entry,
// or the current global epoch if every reader is idle. Retired values
// stamped with an epoch below this number are safe to destroy.
func (m *Manager) MinActive() uint64 {
    min := m.global.Load()
    found := false
    for i := range m.slots {
        v := m.slots[i].Load()
        if v == 0 {
            continue
        }
        if !found || v < min {
            min = v
            found = true
        }
    }
    if !found {
        return m.global.Load()
    }
    return min
}
