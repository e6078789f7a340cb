// Package spscring implements the bounded trace ring described in spec
// component 4.A: one ring per reader thread id, carrying (slot index,
// observed generation) hints from a reader's lock-free lookup back to the
// shard writer, which drains them under its lock to splice slots to the
// front of the LRU list.
//
// Grounded on the teacher's internal/genring package (a small, atomics-only
// ring with no internal locking) for the overall file shape, and on Dmitry
// Vyukov's bounded MPMC queue algorithm — specialised here to one consumer —
// for the actual Push/Pop mechanism. The ring started life as a strict SPSC
// queue (one producer per ring, matching the spec's nominal "one ring per
// reader thread id"), but the reader thread id assigned by pkg.Cache's
// sync.Pool-backed token pool is a modulo counter, not an enforced cap: more
// than MaxThreads concurrently live callers routinely reassigns one id to
// two simultaneously-held tokens, and both then call Push on the same ring
// at once. A true SPSC ring corrupts under that (the buffer write and the
// tail publish are not atomic with respect to each other); the Vyukov
// layout below lets any number of producers share a ring safely by giving
// every cell its own sequence number, so a producer claims a slot with one
// CAS on the tail counter and no two producers ever write the same cell.
//
// A push that finds the ring full returns false. This is a *legitimate
// drop*, never an error: the ring carries a recency hint, not state, and
// dropping a hint only means that particular read will not influence the
// LRU order (spec §4.A, "Failure semantics").
//
// © 2025 arena-cache authors. MIT License.
package spscring

import (
    "sync/atomic"

    "golang.org/x/sys/cpu"

    "github.com/Voskan/lrucache/internal/unsafehelpers"
)

// UpdateOp is a single recency trace: the slot that was read, and the
// generation counter observed at the time of the read. A writer only honours
// this trace if the slot is still occupied with that exact generation
// (spec invariant 5); otherwise it silently drops it.
type UpdateOp struct {
    Index uint32
    Gen   uint32
}

// cell is one ring slot. seq is the synchronisation point: a producer
// claims a cell by CAS-ing the shared tail counter, writes val, then stores
// pos+1 into seq to publish it; the consumer only reads val once it has
// observed seq == pos+1, and the atomic Store/Load pair makes the producer's
// write of val happen-before that read. No two producers ever hold a successful CAS for
// the same cell at once, so val is never written concurrently.
type cell struct {
    seq atomic.Uint64
    val UpdateOp
}

// Ring is a bounded, power-of-two multi-producer/single-consumer queue of
// UpdateOp. The head/tail counters are split across cache lines via
// cpu.CacheLinePad so that producers and the single draining consumer never
// false-share a line.
type Ring struct {
    head atomic.Uint64
    _    cpu.CacheLinePad

    tail atomic.Uint64
    _    cpu.CacheLinePad

    buf  []cell
    mask uint64
}

// New constructs a ring with the given capacity, which must be a power of
// two (spec §4.A contract). Every cell's sequence is initialised to its own
// index so the first lap of pushes and pops lines up correctly.
func New(capacity uint64) *Ring {
    if !unsafehelpers.IsPowerOfTwo(capacity) {
        panic("spscring: capacity must be a power of two")
    }
    r := &Ring{
        buf:  make([]cell, capacity),
        mask: capacity - 1,
    }
    for i := range r.buf {
        r.buf[i].seq.Store(uint64(i))
    }
    return r
}

// Push enqueues op. Returns false if the ring is full; the caller must treat
// that as a dropped hint, never as an error. Safe for any number of
// concurrent callers (see the package doc for why this must tolerate more
// than one producer).
func (r *Ring) Push(op UpdateOp) bool {
    pos := r.tail.Load()
    for {
        c := &r.buf[pos&r.mask]
        seq := c.seq.Load()
        diff := int64(seq) - int64(pos)
        switch {
        case diff == 0:
            if r.tail.CompareAndSwap(pos, pos+1) {
                c.val = op
                c.seq.Store(pos + 1)
                return true
            }
            pos = r.tail.Load()
        case diff < 0:
            return false
        default:
            pos = r.tail.Load()
        }
    }
}

// Pop dequeues the oldest pending op. Returns false if the ring is empty.
// Single-consumer only — the shard writer holds the shard lock across every
// call, so no synchronisation is needed on the consumer side beyond the
// per-cell sequence check.
func (r *Ring) Pop() (UpdateOp, bool) {
    pos := r.head.Load()
    c := &r.buf[pos&r.mask]
    seq := c.seq.Load()
    diff := int64(seq) - int64(pos+1)
    if diff != 0 {
        return UpdateOp{}, false
    }
    v := c.val
    c.seq.Store(pos + r.mask + 1)
    r.head.Store(pos + 1)
    return v, true
}

// Empty reports whether the ring currently holds no pending traces. The
// shard's drain does not call it; it pops each dirty ring until Pop reports
// empty.
func (r *Ring) Empty() bool {
    return r.head.Load() == r.tail.Load()
}
