// Package shader implements the shader permutation cache.
//
// Pipeline state is reduced to a fixed-size [Key]. A [Cache] per stage maps
// keys to compiled programs: the first [Cache.Select] of a key generates
// source, compiles it, creates the native module and appends the bytecode
// to the attached disk store; later selections reuse the program. The most
// recent selection is memoized, so the common case of consecutive draws
// sharing a program costs one key derivation and one comparison.
//
// Compilation failures are cached too. A configuration that failed once
// fails fast afterwards, and the draw needing it is skipped.
//
// In validation mode a [UIDChecker] regenerates the source on every
// selection and reports keys that map to different sources.
package shader
