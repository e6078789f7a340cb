// Package keyhash computes the single hash value that both shard selection
// (component 4.F) and the per-shard flat map (component 4.D) key off of.
//
// A key is hashed exactly once per operation and the resulting uint64 is
// threaded through shard selection and table probing — nothing re-hashes
// downstream. (SPSC trace entries carry a slot index and generation, not
// the hash.)
//
// We use xxhash instead of hash/maphash (the teacher's choice) because
// xxhash.Sum64 has no per-instance seed state to carry around per shard: it
// is a pure function of the bytes, which matters here because the hash must
// be reproducible across the two lookups `put` performs under its own lock
// (drain-then-lookup) without re-deriving a seed. xxhash was already present
// in the dependency graph (pulled in transitively by badger); this package
// promotes it to a direct, exercised dependency.
//
// © 2025 arena-cache authors. MIT License.
package keyhash

import (
    "unsafe"

    "github.com/cespare/xxhash/v2"

    "github.com/Voskan/lrucache/internal/unsafehelpers"
)

// Of hashes an arbitrary comparable key. Strings and []byte are hashed
// directly; every other type is hashed via its in-memory representation.
// This mirrors the teacher's type-switch in shard.hash, swapped to xxhash.
func Of[K comparable](key K) uint64 {
    switch k := any(key).(type) {
    case string:
        return xxhash.Sum64String(k)
    case []byte:
        return xxhash.Sum64(k)
    default:
        ptr := unsafe.Pointer(&key)
        size := unsafe.Sizeof(key)
        b := unsafehelpers.ByteSliceFrom(ptr, size)
        return xxhash.Sum64(b)
    }
}
