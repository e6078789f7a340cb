package cache

// cache.go contains the sharded top-level Cache wrapper (spec component
// 4.F). A Cache is split into N independent internal/shard.Shard instances
// to minimise lock contention; each shard owns its own flat map, SPSC trace
// rings, epoch manager and retirement queue.
//
// The shard engine itself is not exposed from the public API: it lives in
// internal/shard. This file is the thin layer that hashes keys, selects a
// shard, assigns reader thread ids, and fans out Len/SizeBytes/Snapshot
// across every shard.
//
// © 2025 arena-cache authors. MIT License.

import (
    "context"
    "sync"
    "sync/atomic"
    "unsafe"

    "go.uber.org/zap"
    "golang.org/x/sys/cpu"

    "github.com/Voskan/lrucache/internal/arena"
    "github.com/Voskan/lrucache/internal/keyhash"
    "github.com/Voskan/lrucache/internal/shard"
)

// paddedShard aligns each shard pointer to its own cache line so that two
// goroutines hammering adjacent shards never false-share the slice backing
// store itself. The Shard struct behind each pointer carries no padding of
// its own; only its trace rings pad their head/tail counters.
type paddedShard[K comparable, V comparable] struct {
    s *shard.Shard[K, V]
    _ cpu.CacheLinePad
}

// Cache is a bounded, sharded, concurrent LRU key-value cache. Reads never
// block writers and writers never block readers; see internal/shard and
// internal/flatmap for the mechanism.
type Cache[K comparable, V comparable] struct {
    shards  []paddedShard[K, V]
    mask    uint64
    tokens  *tokenPool
    loaders *loaderGroup[K, V]
    metrics metricsSink
    closed  atomic.Bool
}

// New constructs a Cache with the given total capacity (spread evenly
// across shards) and options. Capacity and shard count must both be powers
// of two; per-shard capacity (capacity/shardCount) must be at least 64.
func New[K comparable, V comparable](capacity uint32, opts ...Option[K, V]) (*Cache[K, V], error) {
    cfg := defaultConfig[K, V](capacity)
    if err := applyOptions(cfg, opts); err != nil {
        return nil, err
    }

    perShard := capacity / cfg.shardCount
    if perShard < 64 {
        return nil, errInvalidCapacity
    }

    metrics := newMetricsSink(cfg.registry)

    c := &Cache[K, V]{
        shards:  make([]paddedShard[K, V], cfg.shardCount),
        mask:    uint64(cfg.shardCount - 1),
        tokens:  newTokenPool(cfg.maxThreads),
        loaders: newLoaderGroup[K, V](),
        metrics: metrics,
    }

    var onEvict func(K, V)
    if cfg.ejectCb != nil {
        cb := cfg.ejectCb
        onEvict = func(key K, value V) { cb(key, value, ReasonEvicted) }
    }

    for i := range c.shards {
        alloc := cfg.allocator
        if alloc == nil {
            alloc = arena.NewPageArena[V]()
        }
        c.shards[i].s = shard.New[K, V](shard.Config[K, V]{
            ID:         i,
            Capacity:   perShard,
            MaxThreads: cfg.maxThreads,
            RingSize:   cfg.ringSize,
            SpinBudget: cfg.spinBudget,
            Allocator:  alloc,
            Metrics:    metrics,
            Logger:     cfg.logger,
            OnEvict:    onEvict,
        })
    }

    cfg.logger.Info("lrucache: cache constructed",
        zap.Uint32("capacity", capacity),
        zap.Uint32("shards", cfg.shardCount),
        zap.Int("max_threads", cfg.maxThreads),
    )

    return c, nil
}

func (c *Cache[K, V]) shardFor(hash uint64) *shard.Shard[K, V] {
    return c.shards[hash&c.mask].s
}

/* -------------------------------------------------------------------------
   Core operations
   ------------------------------------------------------------------------- */

// Get retrieves the value stored for key, if present.
func (c *Cache[K, V]) Get(key K) (V, bool) {
    hash := keyhash.Of(key)
    tok := c.tokens.acquire()
    defer c.tokens.release(tok)

    v, ok := c.shardFor(hash).Get(*tok, hash, key)
    idx := int(hash & c.mask)
    if ok {
        c.metrics.incHitShard(idx)
    } else {
        c.metrics.incMissShard(idx)
    }
    return v, ok
}

// Put inserts or updates the value stored for key.
func (c *Cache[K, V]) Put(key K, value V) error {
    hash := keyhash.Of(key)
    return c.shardFor(hash).Put(hash, key, value)
}

// Delete removes key from the cache, if present.
func (c *Cache[K, V]) Delete(key K) {
    hash := keyhash.Of(key)
    c.shardFor(hash).Delete(hash, key)
    c.metrics.incEvictShard(int(hash & c.mask))
}

// GetOrLoad returns the cached value for key, or invokes loader exactly
// once across all concurrently-waiting callers (via singleflight) to
// produce and cache it on a miss. This corrects a gap in the teacher's
// original loader wiring, where the singleflight group was constructed but
// never actually consulted from the hot path (see DESIGN.md).
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, loader LoaderFunc[K, V]) (V, error) {
    if v, ok := c.Get(key); ok {
        return v, nil
    }

    hash := keyhash.Of(key)
    v, err, _ := c.loaders.load(ctx, hash, key, loader)
    if err != nil {
        var zero V
        return zero, err
    }
    if putErr := c.Put(key, v); putErr != nil {
        return v, putErr
    }
    return v, nil
}

// GetOrLoadAsync is the non-blocking counterpart of GetOrLoad: on a cache
// hit it returns immediately with a pre-filled channel; on a miss it
// dispatches loader through the same singleflight group and returns a
// channel that is closed once a result (cached or not) is available.
func (c *Cache[K, V]) GetOrLoadAsync(ctx context.Context, key K, loader LoaderFunc[K, V]) <-chan LoadResult[V] {
    if v, ok := c.Get(key); ok {
        out := make(chan LoadResult[V], 1)
        out <- LoadResult[V]{Value: v}
        close(out)
        return out
    }

    hash := keyhash.Of(key)
    raw := c.loaders.loadAsync(ctx, hash, key, loader)
    out := make(chan LoadResult[V], 1)
    go func() {
        defer close(out)
        res, ok := <-raw
        if !ok {
            return
        }
        if res.Err == nil {
            if putErr := c.Put(key, res.Value); putErr != nil {
                res.Err = putErr
            }
        }
        out <- res
    }()
    return out
}

/* -------------------------------------------------------------------------
   Introspection
   ------------------------------------------------------------------------- */

// Len returns the total number of live entries across every shard.
func (c *Cache[K, V]) Len() int {
    total := 0
    for i := range c.shards {
        total += c.shards[i].s.Len()
    }
    return total
}

// SizeBytes returns an estimate of the total bytes occupied by live values,
// computed as Len() * sizeof(V). Keys, slot metadata and arena fragmentation
// are not accounted for; this is a coarse diagnostic, not a precise budget.
func (c *Cache[K, V]) SizeBytes() int64 {
    var zero V
    return int64(c.Len()) * int64(unsafe.Sizeof(zero))
}

// Snapshot invokes fn for every live (key, value) pair in every shard,
// most-recently-used first within each shard. Intended for diagnostics
// (cmd/lrucache-inspect) — it takes every shard's lock in turn and is not
// suitable for the hot path.
func (c *Cache[K, V]) Snapshot(fn func(key K, value V)) {
    for i := range c.shards {
        c.shards[i].s.Snapshot(fn)
    }
}

// Close marks the cache as closed. It releases nothing and touches no shard,
// and no other method checks the flag. After Close, further calls are not
// supported.
func (c *Cache[K, V]) Close() {
    c.closed.Store(true)
}

/* -------------------------------------------------------------------------
   Reader thread id assignment
   ------------------------------------------------------------------------- */

// tokenPool lazily assigns process-local reader thread ids, wrapped modulo
// maxThreads, and hands out ownership of one id for the duration of a
// single Get call via sync.Pool — the same acquire/release discipline
// Ristretto (pulled in transitively through badger) uses for its per-P
// ring buffers. sync.Pool places no cap on how many items are checked out
// at once and drains its pool on GC, so New's counter can and does wrap
// past maxThreads and reissue an id that is already checked out elsewhere;
// two Get calls can legitimately share one id and push into the same
// reader's ring concurrently. internal/shard's ring is therefore an MPSC
// queue, not a strict SPSC one — see internal/spscring for the producer
// side of that.
type tokenPool struct {
    pool sync.Pool
    next atomic.Int64
    max  int
}

func newTokenPool(max int) *tokenPool {
    tp := &tokenPool{max: max}
    tp.pool.New = func() any {
        id := int(tp.next.Add(1)-1) % tp.max
        v := id
        return &v
    }
    return tp
}

func (tp *tokenPool) acquire() *int  { return tp.pool.Get().(*int) }
func (tp *tokenPool) release(t *int) { tp.pool.Put(t) }
