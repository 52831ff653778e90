package fxstate

import (
	"errors"
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
)

// ErrInvalidAttribute is returned for a type/size combination that has no
// native vertex format.
var ErrInvalidAttribute = errors.New("fxstate: invalid vertex attribute format")

// VarType is the component type of a vertex attribute.
type VarType uint8

const (
	VarUnsignedByte VarType = iota
	VarByte
	VarUnsignedShort
	VarShort
	VarFloat
)

func (t VarType) size() uint32 {
	switch t {
	case VarUnsignedByte, VarByte:
		return 1
	case VarUnsignedShort, VarShort:
		return 2
	default:
		return 4
	}
}

// formatTable is indexed by [integer][components-1][type].
var formatTable = [2][4][5]gpucore.VertexFormat{
	{
		{gpucore.VertexFormatUnorm8, gpucore.VertexFormatSnorm8, gpucore.VertexFormatUnorm16, gpucore.VertexFormatSnorm16, gpucore.VertexFormatFloat32},
		{gpucore.VertexFormatUnorm8x2, gpucore.VertexFormatSnorm8x2, gpucore.VertexFormatUnorm16x2, gpucore.VertexFormatSnorm16x2, gpucore.VertexFormatFloat32x2},
		{0, 0, 0, 0, gpucore.VertexFormatFloat32x3},
		{gpucore.VertexFormatUnorm8x4, gpucore.VertexFormatSnorm8x4, gpucore.VertexFormatUnorm16x4, gpucore.VertexFormatSnorm16x4, gpucore.VertexFormatFloat32x4},
	},
	{
		{gpucore.VertexFormatUint8, gpucore.VertexFormatSint8, gpucore.VertexFormatUint16, gpucore.VertexFormatSint16, 0},
		{gpucore.VertexFormatUint8x2, gpucore.VertexFormatSint8x2, gpucore.VertexFormatUint16x2, gpucore.VertexFormatSint16x2, 0},
		{0, 0, 0, 0, 0},
		{gpucore.VertexFormatUint8x4, gpucore.VertexFormatSint8x4, gpucore.VertexFormatUint16x4, gpucore.VertexFormatSint16x4, 0},
	},
}

// AttributeFormat describes one attribute of a vertex declaration.
type AttributeFormat struct {
	Enable     bool
	Type       VarType
	Components int
	Offset     uint32
	Integer    bool
}

// Format returns the native format of the attribute.
func (a AttributeFormat) Format() (gpucore.VertexFormat, error) {
	if a.Type > VarFloat || a.Components < 1 || a.Components > 4 {
		return gpucore.VertexFormatInvalid, fmt.Errorf("%w: type %d, %d components", ErrInvalidAttribute, a.Type, a.Components)
	}
	integer := 0
	if a.Integer {
		integer = 1
	}
	f := formatTable[integer][a.Components-1][a.Type]
	if f == gpucore.VertexFormatInvalid {
		return f, fmt.Errorf("%w: type %d, %d components, integer %t", ErrInvalidAttribute, a.Type, a.Components, a.Integer)
	}
	return f, nil
}

func (a AttributeFormat) end() uint32 {
	return a.Offset + a.Type.size()*uint32(a.Components)
}

// VertexDeclaration is the portable layout of one vertex in the stream.
type VertexDeclaration struct {
	Stride    uint32
	Position  AttributeFormat
	Normals   [3]AttributeFormat
	Colors    [MaxColorChans]AttributeFormat
	TexCoords [MaxTexGens]AttributeFormat
	PosMtx    AttributeFormat
}

// Attributes converts the declaration to native attributes, in the order
// position, normals, colors, texture coordinates, matrix index.
func (d *VertexDeclaration) Attributes() ([]gpucore.VertexAttribute, error) {
	var attrs []gpucore.VertexAttribute
	add := func(a AttributeFormat, sem gpucore.Semantic, index int) error {
		if !a.Enable {
			return nil
		}
		f, err := a.Format()
		if err != nil {
			return fmt.Errorf("%s%d: %w", sem, index, err)
		}
		if a.end() > d.Stride {
			return fmt.Errorf("%w: %s%d ends at %d past stride %d", ErrInvalidAttribute, sem, index, a.end(), d.Stride)
		}
		attrs = append(attrs, gpucore.VertexAttribute{
			Semantic: sem,
			Index:    uint32(index),
			Format:   f,
			Offset:   a.Offset,
		})
		return nil
	}

	if err := add(d.Position, gpucore.SemanticPosition, 0); err != nil {
		return nil, err
	}
	for i, a := range d.Normals {
		if err := add(a, gpucore.SemanticNormal, i); err != nil {
			return nil, err
		}
	}
	for i, a := range d.Colors {
		if err := add(a, gpucore.SemanticColor, i); err != nil {
			return nil, err
		}
	}
	for i, a := range d.TexCoords {
		if err := add(a, gpucore.SemanticTexCoord, i); err != nil {
			return nil, err
		}
	}
	if err := add(d.PosMtx, gpucore.SemanticBlendIndices, 0); err != nil {
		return nil, err
	}
	return attrs, nil
}

// Components returns the vertex components the declaration provides.
// A texture coordinate with three components carries a matrix index.
func (d *VertexDeclaration) Components() Components {
	var c Components
	if d.PosMtx.Enable {
		c |= CompPosMtxIdx
	}
	if d.Position.Enable {
		c |= CompPosition
	}
	if d.Normals[0].Enable {
		c |= CompNormal
	}
	if d.Normals[1].Enable && d.Normals[2].Enable {
		c |= CompTangents
	}
	if d.Colors[0].Enable {
		c |= CompColor0
	}
	if d.Colors[1].Enable {
		c |= CompColor1
	}
	for i, a := range d.TexCoords {
		if !a.Enable {
			continue
		}
		c |= CompTexCoord(i)
		if a.Components == 3 {
			c |= CompTexMtxIdx(i)
		}
	}
	return c
}
