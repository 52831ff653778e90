package fxstate

import "github.com/gogpu/fxpipe/shader"

// Components is the set of vertex attributes present in the vertex stream.
type Components uint32

// Vertex components.
const (
	CompPosMtxIdx Components = 1 << iota
	CompPosition
	CompNormal
	CompTangents // binormal and tangent
	CompColor0
	CompColor1
	CompTexCoord0 // CompTexCoord0 << i is texture coordinate i
)

// CompTexMtxIdx0 << i marks texture coordinate i as carrying a texture
// matrix index in its third component.
const CompTexMtxIdx0 = CompTexCoord0 << MaxTexGens

const componentBits = 6 + 2*MaxTexGens

const componentMask = Components(1)<<componentBits - 1

// Pipeline limits.
const (
	MaxTexGens    = 8
	MaxColorChans = 2
	MaxLights     = 8
)

// CompTexCoord returns the component bit of texture coordinate i.
func CompTexCoord(i int) Components { return CompTexCoord0 << i }

// CompTexMtxIdx returns the texture matrix index bit of texture coordinate i.
func CompTexMtxIdx(i int) Components { return CompTexMtxIdx0 << i }

// Has reports whether every component in c is present.
func (m Components) Has(c Components) bool { return m&c == c }

// MatSource selects where a lighting channel reads its color.
type MatSource uint8

const (
	MatSourceRegister MatSource = iota
	MatSourceVertex
)

// DiffuseFunc is the diffuse attenuation of a light.
type DiffuseFunc uint8

const (
	DiffuseNone DiffuseFunc = iota
	DiffuseSign
	DiffuseClamp
)

// AttnFunc is the distance/angle attenuation of a light.
type AttnFunc uint8

const (
	AttnNone AttnFunc = iota
	AttnSpec
	AttnDir
	AttnSpot
)

// LightChannel configures one color channel of the lighting stage.
type LightChannel struct {
	Enabled   bool
	MatSource MatSource
	AmbSource MatSource
	Diffuse   DiffuseFunc
	Attn      AttnFunc
	LightMask uint8
}

// TexGenType is the kind of texture coordinate generation.
type TexGenType uint8

const (
	TexGenRegular TexGenType = iota
	TexGenColor0
	TexGenColor1
)

// TexGenSource is the input row of a regular texture coordinate generator.
type TexGenSource uint8

const (
	TexGenSourcePosition TexGenSource = iota
	TexGenSourceNormal
	TexGenSourceBinormal
	TexGenSourceTangent
	TexGenSourceTex0 // TexGenSourceTex0 + i reads texture coordinate i
	TexGenSourceConstant TexGenSource = TexGenSourceTex0 + MaxTexGens
)

// TexGen configures one texture coordinate generator.
type TexGen struct {
	Type   TexGenType
	Source TexGenSource

	// Projection generates stq instead of st.
	Projection bool

	// Normalize renormalizes the result before the post-transform.
	Normalize bool
}

// VertexConfig is the vertex stage pipeline configuration.
type VertexConfig struct {
	Components       Components
	NumColorChans    int
	Lighting         [MaxColorChans]LightChannel
	NumTexGens       int
	TexGens          [MaxTexGens]TexGen
	PerPixelLighting bool
}

// Normalize returns the canonical form of c: fields that cannot influence
// the generated program are zeroed and out-of-range values are clamped.
// Two configurations generate the same program if and only if their
// canonical forms are equal.
func (c VertexConfig) Normalize() VertexConfig {
	n := VertexConfig{
		Components:       c.Components & componentMask,
		NumColorChans:    clampInt(c.NumColorChans, 0, MaxColorChans),
		NumTexGens:       clampInt(c.NumTexGens, 0, MaxTexGens),
		PerPixelLighting: c.PerPixelLighting,
	}

	for i := 0; i < MaxTexGens; i++ {
		if !n.Components.Has(CompTexCoord(i)) {
			n.Components &^= CompTexMtxIdx(i)
		}
	}

	for i := 0; i < n.NumColorChans; i++ {
		ch := c.Lighting[i]
		out := LightChannel{MatSource: ch.MatSource & 1}
		if ch.Enabled {
			out.Enabled = true
			out.AmbSource = ch.AmbSource & 1
			if ch.LightMask != 0 {
				out.Diffuse = min(ch.Diffuse, DiffuseClamp)
				out.Attn = ch.Attn & 3
				out.LightMask = ch.LightMask
			}
		}
		n.Lighting[i] = out
	}

	for i := 0; i < n.NumTexGens; i++ {
		tg := c.TexGens[i]
		switch tg.Type {
		case TexGenColor0, TexGenColor1:
			n.TexGens[i] = TexGen{Type: tg.Type}
		default:
			n.TexGens[i] = TexGen{
				Type:       TexGenRegular,
				Source:     n.canonicalSource(tg.Source),
				Projection: tg.Projection,
				Normalize:  tg.Normalize,
			}
		}
	}
	return n
}

// canonicalSource maps sources whose input is absent to the constant row.
func (c *VertexConfig) canonicalSource(s TexGenSource) TexGenSource {
	switch {
	case s == TexGenSourcePosition:
		if c.Components.Has(CompPosition) {
			return s
		}
	case s == TexGenSourceNormal:
		if c.Components.Has(CompNormal) {
			return s
		}
	case s == TexGenSourceBinormal, s == TexGenSourceTangent:
		if c.Components.Has(CompTangents) {
			return s
		}
	case s >= TexGenSourceTex0 && s < TexGenSourceConstant:
		if c.Components.Has(CompTexCoord(int(s - TexGenSourceTex0))) {
			return s
		}
	}
	return TexGenSourceConstant
}

// Key derives the configuration key of the vertex stage.
func (c *VertexConfig) Key() shader.Key {
	n := c.Normalize()

	var b shader.KeyBuilder
	b.Put(uint32(n.Components), componentBits)
	b.Put(uint32(n.NumColorChans), 2)
	for i := 0; i < n.NumColorChans; i++ {
		ch := &n.Lighting[i]
		b.PutBool(ch.Enabled)
		b.Put(uint32(ch.MatSource), 1)
		b.Put(uint32(ch.AmbSource), 1)
		b.Put(uint32(ch.Diffuse), 2)
		b.Put(uint32(ch.Attn), 2)
		b.Put(uint32(ch.LightMask), 8)
	}
	b.Put(uint32(n.NumTexGens), 4)
	for i := 0; i < n.NumTexGens; i++ {
		tg := &n.TexGens[i]
		b.Put(uint32(tg.Type), 2)
		b.Put(uint32(tg.Source), 4)
		b.PutBool(tg.Projection)
		b.PutBool(tg.Normalize)
	}
	b.PutBool(n.PerPixelLighting)
	return b.Key()
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
