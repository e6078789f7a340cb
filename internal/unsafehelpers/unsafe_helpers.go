// Package unsafehelpers collects small `unsafe`-based helpers shared across
// lrucache's packages.  It does not hold every use of `unsafe`:
// internal/arena, internal/keyhash and pkg/cache.go import it directly as
// well.  Every helper is documented with clear pre‑/post‑conditions.
//
// ⚠️  **DISCLAIMER**   These helpers deliberately break the Go memory‑safety
// model for the sake of zero‑allocation conversions.  Use ONLY inside this
// repository; they are not part of the public API and may change without
// notice.  Misuse will lead to subtle data‑races or garbage‑collector
// corruption.
//
// All functions are `go:linkname`‑free, cgo‑free and pure Go 1.24.
//
// © 2025 arena-cache authors. MIT License.

package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   1. Raw-memory view helpers
   ------------------------------------------------------------------------- */

// ByteSliceFrom returns a []byte view of raw memory starting at `ptr` with the
// given length.  Caller must ensure the memory block is at least `length`
// bytes.  Used by the key hasher for scalar key types, where only the
// pointer and size are known at runtime.
func ByteSliceFrom(ptr unsafe.Pointer, length uintptr) []byte {
    return unsafe.Slice((*byte)(ptr), length)
}

/* -------------------------------------------------------------------------
   2. Size-class helpers
   ------------------------------------------------------------------------- */

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
// Shared by every component with a fixed, non-rehashing slot count
// (internal/flatmap, internal/spscring) and by pkg/config.go's option
// validation, so the same bit-twiddle isn't duplicated at each call site.
func IsPowerOfTwo[T ~uint | ~uint32 | ~uint64 | ~uintptr](x T) bool {
    return x != 0 && x&(x-1) == 0
}
