// Package fxstate defines the fixed-function pipeline configuration that
// selects shader permutations.
//
// [VertexConfig] and [PixelConfig] hold the state bits one stage's program
// generator reads. Their Key methods pack exactly the canonical form
// returned by Normalize, so two configurations share a key if and only if
// they generate the same program. [VertexDeclaration] is the portable
// vertex layout from which native input layouts are built.
package fxstate
