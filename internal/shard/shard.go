// Package shard implements the shard engine described in spec component
// 4.E: it combines a flat map (internal/flatmap), a bounded SPSC trace ring
// per reader (internal/spscring), and an epoch manager (internal/epoch)
// into one LRU partition, and owns the spin lock, the dirty bitmap and the
// retirement list that glue them together.
//
// This supersedes the teacher's pkg/shard.go, which mixed the shard and the
// top-level Cache wrapper in one file and used CLOCK-Pro plus a sync.RWMutex.
// Decomposing it into internal/shard (engine, 4.E) and pkg/cache.go (sharded
// wrapper, 4.F) mirrors the spec's own component boundaries; nothing from
// the original shard.go is discarded, it is restructured and the
// replacement policy is swapped for the spec's approximate LRU.
//
// © 2025 arena-cache authors. MIT License.
package shard

import (
    "errors"
    "fmt"

    "go.uber.org/zap"

    "github.com/Voskan/lrucache/internal/arena"
    "github.com/Voskan/lrucache/internal/epoch"
    "github.com/Voskan/lrucache/internal/flatmap"
    "github.com/Voskan/lrucache/internal/spinlock"
    "github.com/Voskan/lrucache/internal/spscring"
)

// ErrAllocatorExhausted is returned by Put when the configured allocator
// cannot satisfy a value allocation (spec §7, "Allocator failure →
// surfaced to the caller of put as an allocation error").
var ErrAllocatorExhausted = errors.New("lrucache: allocator exhausted")

// retireThreshold is the retirement-list length past which Put consults
// the epoch manager's minimum active epoch and drops everything already
// safe to reclaim (spec §4.E step 10's "small threshold (e.g., 64)").
const retireThreshold = 64

// Metrics is the subset of metricsSink the shard engine needs; pkg.Cache
// supplies either the no-op or the Prometheus-backed implementation.
type Metrics interface {
    IncHit()
    IncMiss()
    IncEvict()
    IncRetired()
    IncReclaimed()
    IncRingDrop()
}

type retireEntry[V any] struct {
    value *V
    epoch uint64
}

// Shard owns one independent partition of the key space: a flat map, a
// spin lock serialising writers, one SPSC ring per reader thread id, a
// dirty bitmap, an epoch manager, a retirement queue and an allocator.
type Shard[K comparable, V comparable] struct {
    lock  *spinlock.SpinLock
    table *flatmap.Table[K, V]

    rings      []*spscring.Ring
    dirty      bitmap
    maxThreads int

    epochs  *epoch.Manager
    retired []retireEntry[V]

    allocator arena.Allocator[V]
    metrics   Metrics
    logger    *zap.Logger
    id        int

    onEvict func(key K, value V)

    // contentionLogThreshold bounds how often Put logs a spin-lock
    // contention warning: only once every time Contentions() crosses a
    // further multiple of this value, so a hot shard under sustained
    // contention logs occasionally instead of flooding (spec §4.H).
    contentionLogThreshold uint64
    loggedContentions      uint64
}

// Config bundles the construction parameters a shard needs from the parent
// Cache; pkg.Config translates user-facing options into this.
type Config[K comparable, V comparable] struct {
    ID         int
    Capacity   uint32 // per-shard capacity, spec §4.F ("shard capacity ... must be >= 64")
    MaxThreads int
    RingSize   uint64
    SpinBudget int
    Allocator  arena.Allocator[V]
    Metrics    Metrics
    Logger     *zap.Logger
    OnEvict    func(key K, value V)
}

// New constructs a Shard per spec §4.E/§4.F.
func New[K comparable, V comparable](cfg Config[K, V]) *Shard[K, V] {
    if cfg.Capacity < 64 {
        panic("shard: capacity must be >= 64")
    }
    logger := cfg.Logger
    if logger == nil {
        logger = zap.NewNop()
    }

    s := &Shard[K, V]{
        lock:                   spinlock.New(cfg.SpinBudget),
        table:                  flatmap.New[K, V](cfg.Capacity),
        rings:                  make([]*spscring.Ring, cfg.MaxThreads),
        maxThreads:             cfg.MaxThreads,
        epochs:                 epoch.New(cfg.MaxThreads),
        allocator:              cfg.Allocator,
        metrics:                cfg.Metrics,
        logger:                 logger,
        id:                     cfg.ID,
        onEvict:                cfg.OnEvict,
        contentionLogThreshold: 1000,
    }
    for i := range s.rings {
        s.rings[i] = spscring.New(cfg.RingSize)
    }
    return s
}

/* -------------------------------------------------------------------------
   get — spec §4.E
   ------------------------------------------------------------------------- */

// Get performs the lockless read path: enter the epoch, probe the table,
// and on a hit push a recency trace into the caller's ring before leaving
// the epoch. tid must be in [0, MaxThreads).
func (s *Shard[K, V]) Get(tid int, hash uint64, key K) (V, bool) {
    guard := s.epochs.Enter(tid)
    defer guard.Leave()

    vp, idx, gen, ok := s.table.GetLockless(hash, key)
    if !ok {
        s.metrics.IncMiss()
        var zero V
        return zero, false
    }
    s.metrics.IncHit()

    if tid >= 0 && tid < len(s.rings) {
        if s.rings[tid].Push(spscring.UpdateOp{Index: idx, Gen: gen}) {
            s.dirty.set(tid)
        } else {
            s.metrics.IncRingDrop()
        }
    }
    return *vp, true
}

/* -------------------------------------------------------------------------
   put — spec §4.E
   ------------------------------------------------------------------------- */

// Put inserts or updates key with value, following the eleven-step
// protocol of spec §4.E: a quiet-update fast path under a first lock
// acquisition, allocation outside the critical section, then a second
// acquisition that drains pending recency traces, performs the
// insert/update/evict, and trims the retirement queue.
func (s *Shard[K, V]) Put(hash uint64, key K, value V) error {
    s.lock.Lock()
    s.logContention()
    if idx, found, _ := s.table.Lookup(hash, key); found {
        if old := s.table.PeekValue(idx); old != nil && *old == value {
            s.table.MoveToFront(idx)
            s.lock.Unlock()
            return nil
        }
    }
    s.lock.Unlock()

    newPtr := arena.New[V](s.allocator)
    if newPtr == nil {
        s.logger.Warn("lrucache: allocator exhausted", zap.Int("shard", s.id))
        return fmt.Errorf("%w: shard %d", ErrAllocatorExhausted, s.id)
    }
    *newPtr = value

    s.lock.Lock()
    s.logContention()
    defer s.lock.Unlock()

    epochNow := s.epochs.Bump()
    s.drainRings()

    idx, found, _ := s.table.Lookup(hash, key)
    switch {
    case found:
        old := s.table.UpdateSlot(idx, newPtr)
        s.retire(old, epochNow)
        s.table.MoveToFront(idx)
    case s.table.Size() < s.table.Capacity():
        idx = s.table.AssignSlot(hash)
        s.table.EmplaceAt(idx, key, newPtr)
        s.table.MoveToFront(idx)
    default:
        tailIdx := s.table.GetTail()
        if tailIdx == ^uint32(0) {
            s.logger.Error("lrucache: invariant violation", zap.Int("shard", s.id),
                zap.String("reason", "table at capacity with no tail"))
            panic("shard: table at capacity with no tail — invariant violation")
        }
        var evictedKey K
        if kp := s.table.PeekKey(tailIdx); kp != nil {
            evictedKey = *kp
        }
        evicted := s.table.EraseIndex(tailIdx)
        if s.onEvict != nil && evicted != nil {
            s.onEvict(evictedKey, *evicted)
        }
        s.retire(evicted, epochNow)
        s.metrics.IncEvict()
        idx = s.table.AssignSlot(hash)
        s.table.EmplaceAt(idx, key, newPtr)
        s.table.MoveToFront(idx)
    }

    if len(s.retired) > retireThreshold {
        s.reclaim(s.epochs.MinActive())
    }
    return nil
}

// drainRings pops every pending trace from every dirty reader ring and
// splices still-valid ones to the front of the LRU list. Called under the
// shard lock, once per Put, per spec §4.E step 5.
func (s *Shard[K, V]) drainRings() {
    word := s.dirty.swap(0)
    if word == 0 {
        return
    }
    for i := 0; i < s.maxThreads; i++ {
        if !word.isSet(i) {
            continue
        }
        ring := s.rings[i]
        for {
            op, ok := ring.Pop()
            if !ok {
                break
            }
            if s.table.IsValidGen(op.Index, op.Gen) {
                s.table.MoveToFront(op.Index)
            }
        }
    }
}

// logContention emits a rate-limited Debug log once Contentions() has
// advanced past the next multiple of contentionLogThreshold since the last
// time this shard logged, so a hotly-contended shard's spin-lock backoff is
// observable without flooding the log on every single backoff (SPEC_FULL
// §4.H). The threshold is set to 1000 in New and has no option to change it.
func (s *Shard[K, V]) logContention() {
    if s.contentionLogThreshold == 0 {
        return
    }
    c := s.lock.Contentions()
    if c-s.loggedContentions < s.contentionLogThreshold {
        return
    }
    s.loggedContentions = c
    s.logger.Debug("lrucache: spin lock contention",
        zap.Int("shard", s.id), zap.Uint64("contentions", c))
}

func (s *Shard[K, V]) retire(value *V, ep uint64) {
    if value == nil {
        return
    }
    s.retired = append(s.retired, retireEntry[V]{value: value, epoch: ep})
    s.metrics.IncRetired()
}

// reclaim destroys every retired value whose retirement epoch is strictly
// below minEpoch — the point past which no reader could still observe it
// (spec §4.E step 10 / §9 "Epoch-based reclamation vs. reference counting").
func (s *Shard[K, V]) reclaim(minEpoch uint64) {
    kept := s.retired[:0]
    for _, e := range s.retired {
        if e.epoch < minEpoch {
            arena.Free(s.allocator, e.value)
            s.metrics.IncReclaimed()
        } else {
            kept = append(kept, e)
        }
    }
    s.retired = kept
}

/* -------------------------------------------------------------------------
   Delete — supplemented operation, SPEC_FULL §4.L
   ------------------------------------------------------------------------- */

// Delete removes key from the shard if present. It does not rehash or
// compact; the slot becomes a tombstone per spec §4.D's erase_index.
func (s *Shard[K, V]) Delete(hash uint64, key K) {
    s.lock.Lock()
    defer s.lock.Unlock()

    idx, found, _ := s.table.Lookup(hash, key)
    if !found {
        return
    }
    old := s.table.EraseIndex(idx)
    s.retire(old, s.epochs.Bump())
    s.metrics.IncEvict()
    if len(s.retired) > retireThreshold {
        s.reclaim(s.epochs.MinActive())
    }
}

/* -------------------------------------------------------------------------
   Introspection
   ------------------------------------------------------------------------- */

// Len returns the current occupied-slot count. Takes the shard lock, so it
// is safe to call concurrently with Put, but is not a hot-path operation.
func (s *Shard[K, V]) Len() int {
    s.lock.Lock()
    defer s.lock.Unlock()
    return int(s.table.Size())
}

// RetiredLen returns the current retirement-queue depth; exposed for the
// debug snapshot and for tests asserting property 7 ("retired-list bound").
func (s *Shard[K, V]) RetiredLen() int {
    s.lock.Lock()
    defer s.lock.Unlock()
    return len(s.retired)
}

// Snapshot invokes fn for every live (key, value) pair, most-recently-used
// first. Used only by diagnostics; takes the shard lock for the duration.
func (s *Shard[K, V]) Snapshot(fn func(key K, value V)) {
    s.lock.Lock()
    defer s.lock.Unlock()
    s.table.Walk(fn)
}

// Contentions reports how many acquisitions of this shard's spin lock (by
// Put, Delete, Len, RetiredLen or Snapshot) had to back off to Gosched.
func (s *Shard[K, V]) Contentions() uint64 {
    return s.lock.Contentions()
}
