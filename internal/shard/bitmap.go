package shard

import "sync/atomic"

// bitmap is the per-shard dirty bitmap from spec §4.E: one bit per reader
// thread id, set by a reader when it pushes a trace, and drained atomically
// by the writer via swap(0). MaxThreads is capped at 64 (spec §4.G) so a
// single word always suffices.
type bitmap struct {
    word atomic.Uint64
}

// set marks thread id's bit, using a CAS loop since multiple readers can set
// distinct bits concurrently.
func (b *bitmap) set(tid int) {
    bit := uint64(1) << uint(tid)
    for {
        old := b.word.Load()
        if old&bit != 0 {
            return
        }
        if b.word.CompareAndSwap(old, old|bit) {
            return
        }
    }
}

// swap atomically reads and clears the whole word, returning the bits that
// were set. Called by the single writer during drain.
func (b *bitmap) swap(new uint64) bitWord {
    return bitWord(b.word.Swap(new))
}

// bitWord is a snapshot of the dirty bitmap taken by swap.
type bitWord uint64

func (w bitWord) isSet(tid int) bool {
    return w&(1<<uint(tid)) != 0
}
