package cache

// loaderfunc.go defines LoaderFunc, the user-supplied callback GetOrLoad
// and GetOrLoadAsync invoke on a miss. It lives in its own file, separate
// from loader.go's singleflight plumbing, so the public callback type has
// no dependency on the de-duplication mechanism behind it.
//
//   - The function must be pure with regard to the cache itself: it must
//     not call Cache.Put or re-enter the same Cache it serves, or it may
//     deadlock or leave the cache in an inconsistent state.
//   - It should honour the provided context for cancellation and deadlines.
//   - If the loader returns an error, loader.go's load does not call Put,
//     and the error is propagated to the caller of GetOrLoad unchanged.
//
// © 2025 arena-cache authors. MIT License.

import "context"

// LoaderFunc is invoked by GetOrLoad when a key is absent. The same
// LoaderFunc instance may be invoked concurrently for different keys, so it
// must be safe for concurrent use; singleflight already guarantees it is
// never invoked twice concurrently for the same key.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)
