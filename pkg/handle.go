package cache

// handle.go defines Handle, a value wrapper that tells "key absent" apart
// from "key present with the zero value". No function in this package
// returns a Handle, and its fields are unexported: Cache.Snapshot passes keys
// and values to its callback directly, and a Handle built outside the
// package is always the zero Handle (Valid reports false).
//
// © 2025 arena-cache authors. MIT License.

// Handle pairs a value with a flag saying whether it is present.
type Handle[V any] struct {
    value V
    valid bool
}

// Value returns the wrapped value. Only meaningful when Valid reports true.
func (h Handle[V]) Value() V { return h.value }

// Valid reports whether the handle refers to a present key.
func (h Handle[V]) Valid() bool { return h.valid }
