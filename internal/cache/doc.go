// Package cache provides the generic keyed store behind the shader
// permutation caches.
//
// [Map] keeps entries in recency order and supports an optional soft limit.
// Entries leaving the map through eviction, Delete or Clear are handed to an
// [EvictFunc], which is where owners release native resources.
//
//	m := cache.New[string, int](100, func(k string, v int) { release(v) })
//	m.Set("key", 42)
//	value, ok := m.Get("key")
//
// # Thread Safety
//
// Map is not safe for concurrent use. The flush path that owns it runs on a
// single goroutine, so no locking is done.
package cache
