// Package flush turns accumulated geometry into one draw per batch.
//
// A Coordinator owns the CPU staging buffers of the current batch. Callers
// add primitive lists with Add; points, lines, strips, fans and quads are
// expanded into u16 index lists of the three draw topologies. A change of
// topology class, vertex format or a batch that would no longer fit the
// ring is a batch boundary: NeedsFlush reports it and the caller flushes.
//
// Flush runs the fixed sequence
//
//	pixel Select -> vertex Select -> input layout -> PlaceAndUpload -> Draw
//
// and always ends with empty staging. A failing step drops the batch.
package flush
