// Package spinlock implements the short spin-then-yield lock that the shard
// engine (component 4.E) uses to serialise writers. Readers never touch this
// lock at all — they resolve everything through the sequence-locked flat
// map and the epoch manager instead.
//
// The lock spins on a CAS loop for a fixed number of attempts (the spin
// budget) and from then on calls runtime.Gosched() before every further
// attempt. The back-off is not exponential: the budget does not grow and
// there is no pause between the CAS attempts of the spin phase. The
// contention counter the shard logs through counts Lock calls that reached
// the yield phase.
//
// © 2025 arena-cache authors. MIT License.
package spinlock

import (
    "runtime"
    "sync/atomic"
)

const defaultSpinBudget = 2048

// SpinLock is a non-reentrant mutual exclusion lock. The zero value is not
// usable; construct with New.
type SpinLock struct {
    state       atomic.Uint32 // 0 = unlocked, 1 = locked
    spinBudget  int
    contentions atomic.Uint64 // number of Lock() calls that exceeded the spin budget
}

// New constructs a SpinLock with the given spin budget (number of CAS
// attempts before backing off to Gosched). A budget <= 0 uses the default
// of 2048, matching the spec's example schedule.
func New(spinBudget int) *SpinLock {
    if spinBudget <= 0 {
        spinBudget = defaultSpinBudget
    }
    return &SpinLock{spinBudget: spinBudget}
}

// Lock blocks until the lock is acquired. Acquisition is infallible: the
// caller spins (optionally yielding the OS thread) until it succeeds.
func (l *SpinLock) Lock() {
    spins := 0
    for !l.state.CompareAndSwap(0, 1) {
        spins++
        if spins == l.spinBudget {
            l.contentions.Add(1)
        }
        if spins >= l.spinBudget {
            runtime.Gosched()
        }
    }
}

// Unlock releases the lock. Calling Unlock on an unlocked SpinLock is a
// programming error and corrupts lock state, same as sync.Mutex.
func (l *SpinLock) Unlock() {
    l.state.Store(0)
}

// Contentions returns the number of Lock() calls that exhausted the spin
// budget and had to back off to Gosched. Shards sample this to decide when
// to log a contention warning.
func (l *SpinLock) Contentions() uint64 {
    return l.contentions.Load()
}
