package cache

// config.go defines the internal configuration object and the set of
// functional options passed to New[K,V]. A generic Option keeps callbacks
// type-safe with respect to the concrete K/V chosen by the caller.
//
// Design notes
// ------------
// • All fields are initialised with sensible defaults in defaultConfig().
// • Options never allocate unless strictly necessary — they just capture
//   pointers to external objects (registry, logger, allocator).
// • The struct itself is unexported: callers can only influence behaviour
//   via Option[K,V], which keeps the public surface small and stable.
//
// © 2025 arena-cache authors. MIT License.

import (
    "errors"

    "github.com/prometheus/client_golang/prometheus"
    "go.uber.org/zap"

    "github.com/Voskan/lrucache/internal/arena"
    "github.com/Voskan/lrucache/internal/unsafehelpers"
)

// EjectReason classifies why Put displaced a value, passed to an
// EjectCallback. The teacher's CLOCK-Pro design had three reasons (cold/hot
// eviction, ghost-entry aging, generation rotation); this cache has exactly
// one replacement policy, so there is exactly one reason.
type EjectReason uint8

// ReasonEvicted is the sole EjectReason this cache produces: the tail of the
// LRU list was displaced to make room for a new key (spec §4.E step 9).
const ReasonEvicted EjectReason = 0

func (r EjectReason) String() string {
    return "evicted"
}

// EjectCallback is invoked synchronously, from inside the evicting shard's
// critical section, whenever Put displaces a value to make room. It must
// not block or call back into the Cache — the shard lock is held while it
// runs.
type EjectCallback[K comparable, V any] func(key K, val V, reason EjectReason)

// Option is the functional option passed to New. It is generic because one
// option (WithEjectCallback) refers to concrete K/V types.
type Option[K comparable, V any] func(*config[K, V])

// config bundles every knob that influences cache behaviour. All fields are
// immutable once the Cache is constructed.
type config[K comparable, V any] struct {
    capacity   uint32
    shardCount uint32
    maxThreads int
    ringSize   uint64
    spinBudget int

    registry  *prometheus.Registry
    logger    *zap.Logger
    allocator arena.Allocator[V]
    ejectCb   EjectCallback[K, V]
}

/* ---------------- Default configuration ---------------- */

const (
    defaultShardCount = 16
    defaultMaxThreads = 64
    defaultRingSize   = 256
    defaultSpinBudget = 2048
)

func defaultConfig[K comparable, V any](capacity uint32) *config[K, V] {
    return &config[K, V]{
        capacity:   capacity,
        shardCount: defaultShardCount,
        maxThreads: defaultMaxThreads,
        ringSize:   defaultRingSize,
        spinBudget: defaultSpinBudget,
        logger:     zap.NewNop(),
        registry:   nil, // user must opt in to metrics
    }
}

/* ---------------- Functional options exposed to users ---------------- */

// WithShardCount overrides the default shard count. Must be a power of two.
func WithShardCount[K comparable, V any](n uint32) Option[K, V] {
    return func(c *config[K, V]) {
        c.shardCount = n
    }
}

// WithMaxThreads overrides the default bound on concurrently active reader
// thread ids. Capped at 64 so the per-shard dirty bitmap fits one word.
func WithMaxThreads[K comparable, V any](n int) Option[K, V] {
    return func(c *config[K, V]) {
        c.maxThreads = n
    }
}

// WithRingSize overrides the default per-reader SPSC trace ring capacity.
// Must be a power of two.
func WithRingSize[K comparable, V any](n uint64) Option[K, V] {
    return func(c *config[K, V]) {
        c.ringSize = n
    }
}

// WithSpinBudget overrides the number of CAS attempts a writer makes before
// yielding the processor while waiting for a shard's spin lock.
func WithSpinBudget[K comparable, V any](n int) Option[K, V] {
    return func(c *config[K, V]) {
        c.spinBudget = n
    }
}

// WithMetrics enables Prometheus metrics collection for the cache instance.
// Passing nil disables metrics (default).
func WithMetrics[K comparable, V any](reg *prometheus.Registry) Option[K, V] {
    return func(c *config[K, V]) {
        c.registry = reg
    }
}

// WithLogger plugs an external zap.Logger. The cache never logs on the hot
// path; only construction, allocator exhaustion, invariant diagnostics and a
// rate-limited Debug line for spin-lock contention are emitted.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
    return func(c *config[K, V]) {
        if l != nil {
            c.logger = l
        }
    }
}

// WithAllocator overrides the default per-shard PageArena with a
// caller-supplied Allocator. The allocator must outlive every Cache
// constructed with it (see internal/arena's lifetime note).
func WithAllocator[K comparable, V any](a arena.Allocator[V]) Option[K, V] {
    return func(c *config[K, V]) {
        c.allocator = a
    }
}

// WithEjectCallback registers a function invoked whenever Put displaces a
// value to make room for a new key. Runs in the calling goroutine under the
// shard lock and must not block.
//
// This replaces the teacher's WithWeightFn/WithEjectCallback pair: WeightFn
// existed to let CLOCK-Pro weigh admission by an application-defined cost,
// a concept this cache's fixed-capacity LRU has no use for (every slot
// holds exactly one value), so WeightFn is dropped — see DESIGN.md.
// EjectCallback is kept and retargeted at this cache's own EjectReason.
func WithEjectCallback[K comparable, V any](cb EjectCallback[K, V]) Option[K, V] {
    return func(c *config[K, V]) {
        c.ejectCb = cb
    }
}

/* ---------------- Helper: apply options & validate ---------------- */

// applyOptions copies user-supplied options into cfg and validates
// invariants.
func applyOptions[K comparable, V any](cfg *config[K, V], opts []Option[K, V]) error {
    for _, opt := range opts {
        opt(cfg)
    }

    if !unsafehelpers.IsPowerOfTwo(cfg.capacity) {
        return errInvalidCapacity
    }
    if !unsafehelpers.IsPowerOfTwo(cfg.shardCount) {
        return errInvalidShardCount
    }
    if cfg.maxThreads <= 0 || cfg.maxThreads > 64 {
        return errInvalidMaxThreads
    }
    if !unsafehelpers.IsPowerOfTwo(cfg.ringSize) {
        return errInvalidRingSize
    }
    return nil
}

/* ---------------- Error values ---------------- */

var (
    errInvalidCapacity   = errors.New("lrucache: capacity must be a power of two and > 0")
    errInvalidShardCount = errors.New("lrucache: shard count must be a power of two and > 0")
    errInvalidMaxThreads = errors.New("lrucache: max threads must be in (0, 64]")
    errInvalidRingSize   = errors.New("lrucache: ring size must be a power of two and > 0")
)
