// Package diskcache implements the persistent program cache file.
//
// A cache file is an append-only sequence of (key, blob) records behind a
// small header that records the key size, the payload codec, and a version
// string. On open every valid record is replayed to the caller; a trailing
// partial record, left by a crash mid-append, is silently dropped and cut
// from the file.
//
// The store is a pure performance cache. Any failure to read it degrades to
// recompilation, never to a rendering error.
package diskcache
