package fxstate

import "github.com/gogpu/fxpipe/shader"

// MaxTevStages is the number of texture environment stages.
const MaxTevStages = 8

// DstAlphaMode selects how destination alpha is produced.
type DstAlphaMode uint8

const (
	DstAlphaNone DstAlphaMode = iota
	DstAlphaPass
	DstAlphaDualSource
)

// CompareFunc is an alpha test comparison.
type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLEqual
	CompareGreater
	CompareNEqual
	CompareGEqual
	CompareAlways
)

// AlphaLogic combines the two alpha test comparisons.
type AlphaLogic uint8

const (
	AlphaLogicAnd AlphaLogic = iota
	AlphaLogicOr
	AlphaLogicXor
	AlphaLogicXnor
)

// AlphaTest discards fragments whose alpha fails both comparisons combined.
type AlphaTest struct {
	Enabled bool
	Comp0   CompareFunc
	Comp1   CompareFunc
	Logic   AlphaLogic
}

// FogMode is the fog falloff function.
type FogMode uint8

const (
	FogNone FogMode = iota
	FogLinear
	FogExp
	FogExp2
	FogBackwardsExp
	FogBackwardsExp2
)

// TevOp combines the previous stage output with a stage argument.
type TevOp uint8

const (
	TevAdd TevOp = iota
	TevSub
	TevMul
	TevLerp
)

// TevArg is the second operand of a combiner.
type TevArg uint8

const (
	TevArgPrev TevArg = iota
	TevArgTex
	TevArgRas
	TevArgKonst
	TevArgZero
	TevArgOne
	TevArgHalf
)

// TevStage is one texture environment stage. Stage i samples texture i
// with texture coordinate i when Texture is set.
type TevStage struct {
	ColorOp  TevOp
	ColorArg TevArg
	AlphaOp  TevOp
	AlphaArg TevArg
	Texture  bool
}

// PixelConfig is the pixel stage pipeline configuration.
type PixelConfig struct {
	DstAlpha         DstAlphaMode
	NumTevStages     int
	NumTexGens       int
	AlphaTest        AlphaTest
	Fog              FogMode
	PerPixelLighting bool
	TevStages        [MaxTevStages]TevStage
}

// Normalize returns the canonical form of c. See VertexConfig.Normalize.
func (c PixelConfig) Normalize() PixelConfig {
	n := PixelConfig{
		DstAlpha:         min(c.DstAlpha, DstAlphaDualSource),
		NumTevStages:     clampInt(c.NumTevStages, 1, MaxTevStages),
		NumTexGens:       clampInt(c.NumTexGens, 0, MaxTexGens),
		Fog:              min(c.Fog, FogBackwardsExp2),
		PerPixelLighting: c.PerPixelLighting,
	}

	if c.AlphaTest.Enabled {
		n.AlphaTest = AlphaTest{
			Enabled: true,
			Comp0:   c.AlphaTest.Comp0 & 7,
			Comp1:   c.AlphaTest.Comp1 & 7,
			Logic:   c.AlphaTest.Logic & 3,
		}
	}

	for i := 0; i < n.NumTevStages; i++ {
		st := c.TevStages[i]
		tex := st.Texture && i < n.NumTexGens
		n.TevStages[i] = TevStage{
			ColorOp:  st.ColorOp & 3,
			ColorArg: canonicalArg(st.ColorArg, tex),
			AlphaOp:  st.AlphaOp & 3,
			AlphaArg: canonicalArg(st.AlphaArg, tex),
			Texture:  tex,
		}
	}
	return n
}

// canonicalArg maps a texture argument of an untextured stage to one, and
// unknown arguments to zero.
func canonicalArg(a TevArg, textured bool) TevArg {
	switch {
	case a == TevArgTex && !textured:
		return TevArgOne
	case a > TevArgHalf:
		return TevArgZero
	}
	return a
}

// Key derives the configuration key of the pixel stage.
func (c *PixelConfig) Key() shader.Key {
	n := c.Normalize()

	var b shader.KeyBuilder
	b.Put(uint32(n.DstAlpha), 2)
	b.Put(uint32(n.NumTevStages-1), 3)
	b.Put(uint32(n.NumTexGens), 4)
	b.PutBool(n.AlphaTest.Enabled)
	b.Put(uint32(n.AlphaTest.Comp0), 3)
	b.Put(uint32(n.AlphaTest.Comp1), 3)
	b.Put(uint32(n.AlphaTest.Logic), 2)
	b.Put(uint32(n.Fog), 3)
	b.PutBool(n.PerPixelLighting)
	for i := 0; i < n.NumTevStages; i++ {
		st := &n.TevStages[i]
		b.Put(uint32(st.ColorOp), 2)
		b.Put(uint32(st.ColorArg), 3)
		b.Put(uint32(st.AlphaOp), 2)
		b.Put(uint32(st.AlphaArg), 3)
		b.PutBool(st.Texture)
	}
	return b.Key()
}
