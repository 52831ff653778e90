// Package stream uploads transient vertex and index data into a set of
// GPU ring buffers.
//
// Every flush writes one batch: vertices first, then 16-bit indices, in the
// same buffer. Ring plans the placement and Allocator performs the upload
// through gpucore.GPUAdapter map calls.
//
//	a, err := stream.New(adapter, stream.Config{Capacity: 4 << 20, BufferCount: 3})
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	p, err := a.PlaceAndUpload(vertices, stride, indices)
//	// draw from p.Buffer at p.VertexOffset and p.IndexOffset
//
// Batches are appended with gpucore.MapWriteNoOverwrite. When a batch does
// not fit behind the cursor, the allocator moves to the next buffer and maps
// it with gpucore.MapWriteDiscard, so a buffer is rewritten only after all
// the others have been used.
package stream
