// Package flatmap implements the linked flat map described in spec
// component 4.D: an open-addressed, linearly-probed hash table with an
// intrusive doubly-linked list threaded through its slots to track LRU
// recency, and a per-slot sequence lock that lets readers observe value
// snapshots without ever taking the table's lock.
//
// The table itself has no lock: callers (internal/shard) serialise every
// mutating method behind the shard's spin lock, and readers only ever call
// GetLockless, which is safe precisely because of the sequence-lock
// protocol documented on each method below.
//
// The intrusive-list idea is grounded on the teacher's internal/clockpro
// ring (a doubly-linked list of metaNodes threaded without separate
// allocations); here the links live directly in the table slots instead of
// a parallel node list, per spec §9's "intrusive LRU list inside a flat
// table" design note. The probing and tombstone-skipping discipline is
// grounded on the pack's bigcache/shardcache shard implementations
// (other_examples' rupor-github-bigcache and IvanBrykalov-shardcache).
//
// © 2025 arena-cache authors. MIT License.
package flatmap

import (
    "fmt"
    "runtime"
    "sync/atomic"

    "github.com/Voskan/lrucache/internal/unsafehelpers"
)

// nullIndex is the sentinel for "no slot" in prev/next/head/tail fields.
const nullIndex = ^uint32(0)

// slotState enumerates the lifecycle spec §3 assigns to a table slot.
type slotState uint32

const (
    stateEmpty slotState = iota
    stateOccupied
    stateDeleted
)

// slot is one table cell. gen and state are read by both the writer (under
// the shard lock) and readers (lock-free); key and value are read via an
// atomic pointer load so a concurrent writer's mid-mutation store is never
// a data race, only ever a value the gen check discards. prev/next thread
// the intrusive LRU list and are writer-only (spec §4.D "Linked-list
// discipline").
type slot[K comparable, V any] struct {
    gen   atomic.Uint32
    state atomic.Uint32
    key   atomic.Pointer[K]
    value atomic.Pointer[V]
    prev  uint32
    next  uint32
}

// Table is the flat map described in spec §4.D: 2*capacity slots, load
// factor capped at 0.5, no rehashing. head/tail are mutated only by the
// single writer that holds the shard lock.
type Table[K comparable, V any] struct {
    slots    []slot[K, V]
    mask     uint32
    capacity uint32
    head     uint32
    tail     uint32
    size     uint32
}

// New constructs a table sized for `capacity` live entries (2*capacity
// slots). capacity must be a power of two (spec invariant 1).
func New[K comparable, V any](capacity uint32) *Table[K, V] {
    if !unsafehelpers.IsPowerOfTwo(capacity) {
        panic("flatmap: capacity must be a power of two")
    }
    tableSize := capacity * 2
    t := &Table[K, V]{
        slots:    make([]slot[K, V], tableSize),
        mask:     tableSize - 1,
        capacity: capacity,
        head:     nullIndex,
        tail:     nullIndex,
    }
    return t
}

// Capacity returns the maximum number of live entries (half the slot
// array, per the fixed 0.5 load factor).
func (t *Table[K, V]) Capacity() uint32 { return t.capacity }

// Size returns the number of Occupied slots. Writer-only field; callers
// must already hold the shard lock.
func (t *Table[K, V]) Size() uint32 { return t.size }

// GetHead returns the most-recently-used slot index, or the null sentinel
// if the table is empty.
func (t *Table[K, V]) GetHead() uint32 { return t.head }

// GetTail returns the least-recently-used slot index, or the null sentinel
// if the table is empty.
func (t *Table[K, V]) GetTail() uint32 { return t.tail }

/* -------------------------------------------------------------------------
   Writer-side probing
   ------------------------------------------------------------------------- */

// Lookup performs the writer-side probe under the shard lock: walks slots
// from hash&mask, terminating on the first Empty slot (miss) or on an
// Occupied slot whose key matches (hit). Deleted slots are skipped but the
// first one encountered is remembered as a tombstone insertion hint.
func (t *Table[K, V]) Lookup(hash uint64, key K) (idx uint32, found bool, tombstone uint32) {
    tombstone = nullIndex
    i := uint32(hash) & t.mask
    for step := uint32(0); step <= t.mask; step++ {
        s := &t.slots[i]
        switch slotState(s.state.Load()) {
        case stateEmpty:
            return 0, false, tombstone
        case stateDeleted:
            if tombstone == nullIndex {
                tombstone = i
            }
        case stateOccupied:
            if kp := s.key.Load(); kp != nil && *kp == key {
                return i, true, tombstone
            }
        }
        i = (i + 1) & t.mask
    }
    panic("flatmap: probe exceeded table size — invariant violation")
}

// AssignSlot is a pure probe (no mutation) returning the index where key
// should be planted: the first Deleted slot seen, else the first Empty
// slot. Callers must have already confirmed (via Lookup) that key is not
// present.
func (t *Table[K, V]) AssignSlot(hash uint64) uint32 {
    i := uint32(hash) & t.mask
    tombstone := nullIndex
    for step := uint32(0); step <= t.mask; step++ {
        s := &t.slots[i]
        switch slotState(s.state.Load()) {
        case stateEmpty:
            if tombstone != nullIndex {
                return tombstone
            }
            return i
        case stateDeleted:
            if tombstone == nullIndex {
                tombstone = i
            }
        }
        i = (i + 1) & t.mask
    }
    panic("flatmap: probe exceeded table size — invariant violation")
}

/* -------------------------------------------------------------------------
   Reader-side lockless probing
   ------------------------------------------------------------------------- */

const genWaitSpins = 16

// waitEven spins briefly on an odd generation counter, giving a concurrent
// writer a chance to finish its publication before the reader gives up.
func waitEven(g *atomic.Uint32) uint32 {
    v := g.Load()
    for i := 0; i < genWaitSpins && v&1 != 0; i++ {
        runtime.Gosched()
        v = g.Load()
    }
    return v
}

// GetLockless performs the reader-side probe described in spec §4.D: for
// every slot visited it loads gen (waiting briefly if odd), checks state
// and key, copies the value handle, then re-checks gen to make sure the
// slot was not published into or out from under it. Any inconsistency
// aborts the read as a miss — correctness over completeness, exactly as the
// spec prescribes ("approximate" reads are allowed to miss, never to tear).
func (t *Table[K, V]) GetLockless(hash uint64, key K) (value *V, idx uint32, gen uint32, ok bool) {
    i := uint32(hash) & t.mask
    for step := uint32(0); step <= t.mask; step++ {
        s := &t.slots[i]

        g := s.gen.Load()
        if g&1 != 0 {
            g = waitEven(&s.gen)
            if g&1 != 0 {
                return nil, 0, 0, false
            }
        }

        switch slotState(s.state.Load()) {
        case stateEmpty:
            return nil, 0, 0, false
        case stateOccupied:
            if kp := s.key.Load(); kp != nil && *kp == key {
                vp := s.value.Load()
                if g2 := s.gen.Load(); g2 == g && vp != nil {
                    return vp, i, g, true
                }
                return nil, 0, 0, false
            }
        }
        i = (i + 1) & t.mask
    }
    return nil, 0, 0, false
}

// IsValidGen reports whether idx is still Occupied with exactly generation
// g — the check a writer performs before honouring a pending trace from an
// SPSC ring (spec invariant 5).
func (t *Table[K, V]) IsValidGen(idx uint32, g uint32) bool {
    s := &t.slots[idx]
    return slotState(s.state.Load()) == stateOccupied && s.gen.Load() == g
}

/* -------------------------------------------------------------------------
   Writer-side mutation
   ------------------------------------------------------------------------- */

// PeekValue returns the value handle currently stored at idx without any
// gen protocol — used by the writer, which already holds the shard lock and
// therefore cannot race with another mutator of this slot.
func (t *Table[K, V]) PeekValue(idx uint32) *V {
    return t.slots[idx].value.Load()
}

// PeekKey returns the key currently stored at idx.
func (t *Table[K, V]) PeekKey(idx uint32) *K {
    return t.slots[idx].key.Load()
}

// EmplaceAt publishes a new key/value into a slot whose prior state was
// Empty or Deleted, following the odd→even gen protocol from spec §4.D.
// The slot is linked as detached (prev=next=null); the caller is expected
// to follow with MoveToFront to thread it into the LRU list.
func (t *Table[K, V]) EmplaceAt(idx uint32, key K, value *V) {
    s := &t.slots[idx]
    s.gen.Add(1) // odd: mutation in flight
    s.key.Store(&key)
    s.value.Store(value)
    s.state.Store(uint32(stateOccupied))
    s.gen.Add(1) // even: published
    s.prev, s.next = nullIndex, nullIndex
    t.size++
}

// UpdateSlot replaces the value at an Occupied slot in place, using the
// same odd→even gen protocol, and returns the displaced value so the caller
// can retire it.
func (t *Table[K, V]) UpdateSlot(idx uint32, value *V) (old *V) {
    s := &t.slots[idx]
    old = s.value.Load()
    s.gen.Add(1) // odd
    s.value.Store(value)
    s.gen.Add(1) // even
    return old
}

// EraseIndex detaches the slot from the LRU list and tombstones it,
// following the odd→even gen protocol. The slot's prior value handle is
// returned so the caller can retire it; EraseIndex itself never destroys
// anything.
func (t *Table[K, V]) EraseIndex(idx uint32) (old *V) {
    t.detach(idx)
    s := &t.slots[idx]
    old = s.value.Load()
    s.gen.Add(1) // odd
    s.value.Store(nil)
    s.key.Store(nil)
    s.state.Store(uint32(stateDeleted))
    s.gen.Add(1) // even
    t.size--
    return old
}

/* -------------------------------------------------------------------------
   Intrusive LRU list — writer-only, no gen involvement (recency is meta).
   ------------------------------------------------------------------------- */

func (t *Table[K, V]) detach(idx uint32) {
    s := &t.slots[idx]
    if s.prev != nullIndex {
        t.slots[s.prev].next = s.next
    } else if t.head == idx {
        t.head = s.next
    }
    if s.next != nullIndex {
        t.slots[s.next].prev = s.prev
    } else if t.tail == idx {
        t.tail = s.prev
    }
    s.prev, s.next = nullIndex, nullIndex
}

// MoveToFront detaches idx from wherever it currently sits in the LRU list
// and re-links it as the new head. Idempotent when idx is already head —
// spec §4.D requires this so a quiet-update splice never perturbs an
// already-freshest slot.
func (t *Table[K, V]) MoveToFront(idx uint32) {
    if t.head == idx {
        return
    }
    t.detach(idx)
    s := &t.slots[idx]
    s.next = t.head
    s.prev = nullIndex
    if t.head != nullIndex {
        t.slots[t.head].prev = idx
    }
    t.head = idx
    if t.tail == nullIndex {
        t.tail = idx
    }
}

/* -------------------------------------------------------------------------
   Diagnostics
   ------------------------------------------------------------------------- */

// Walk invokes fn for every Occupied slot in recency order (head to tail).
// Used only by the diagnostic snapshot path (shard.Snapshot, and through it
// Cache.Snapshot); never called from Get/Put.
func (t *Table[K, V]) Walk(fn func(key K, value V)) {
    for i := t.head; i != nullIndex; {
        s := &t.slots[i]
        if slotState(s.state.Load()) != stateOccupied {
            panic(fmt.Sprintf("flatmap: non-occupied slot %d found in LRU chain — invariant violation", i))
        }
        kp, vp := s.key.Load(), s.value.Load()
        if kp != nil && vp != nil {
            fn(*kp, *vp)
        }
        i = s.next
    }
}
