package wgslgen

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/gogpu/fxpipe/fxstate"
	"github.com/gogpu/fxpipe/shader"
	"github.com/gogpu/naga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVertexConfig(r *rand.Rand) fxstate.VertexConfig {
	var c fxstate.VertexConfig
	c.Components = fxstate.Components(r.Uint32())
	c.NumColorChans = r.IntN(4)
	for i := range c.Lighting {
		c.Lighting[i] = fxstate.LightChannel{
			Enabled:   r.IntN(2) == 0,
			MatSource: fxstate.MatSource(r.IntN(2)),
			AmbSource: fxstate.MatSource(r.IntN(2)),
			Diffuse:   fxstate.DiffuseFunc(r.IntN(4)),
			Attn:      fxstate.AttnFunc(r.IntN(4)),
			LightMask: uint8(r.IntN(4)),
		}
	}
	c.NumTexGens = r.IntN(4)
	for i := range c.TexGens {
		c.TexGens[i] = fxstate.TexGen{
			Type:       fxstate.TexGenType(r.IntN(4)),
			Source:     fxstate.TexGenSource(r.IntN(14)),
			Projection: r.IntN(2) == 0,
			Normalize:  r.IntN(2) == 0,
		}
	}
	c.PerPixelLighting = r.IntN(2) == 0
	return c
}

func randomPixelConfig(r *rand.Rand) fxstate.PixelConfig {
	var c fxstate.PixelConfig
	c.DstAlpha = fxstate.DstAlphaMode(r.IntN(4))
	c.NumTevStages = r.IntN(4)
	c.NumTexGens = r.IntN(3)
	c.AlphaTest = fxstate.AlphaTest{
		Enabled: r.IntN(2) == 0,
		Comp0:   fxstate.CompareFunc(r.IntN(8)),
		Comp1:   fxstate.CompareFunc(r.IntN(8)),
		Logic:   fxstate.AlphaLogic(r.IntN(4)),
	}
	c.Fog = fxstate.FogMode(r.IntN(7))
	c.PerPixelLighting = r.IntN(2) == 0
	for i := range c.TevStages {
		c.TevStages[i] = fxstate.TevStage{
			ColorOp:  fxstate.TevOp(r.IntN(4)),
			ColorArg: fxstate.TevArg(r.IntN(8)),
			AlphaOp:  fxstate.TevOp(r.IntN(4)),
			AlphaArg: fxstate.TevArg(r.IntN(8)),
			Texture:  r.IntN(2) == 0,
		}
	}
	return c
}

// checkKeySourceAgreement feeds every (key, source) pair through a
// UIDChecker: a collision means equal keys with different source, a
// redundant key means equal source with different keys.
func checkKeySourceAgreement(t *testing.T, stage shader.Stage, pairs func(yield func(shader.Key, string))) {
	t.Helper()
	checker := shader.NewUIDChecker(stage, "")
	pairs(func(k shader.Key, src string) {
		require.NoError(t, checker.Check(k, src))
	})
	assert.Zero(t, checker.Redundant(), "identical source under different keys")
}

func TestVertexKeyMatchesSource(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	checkKeySourceAgreement(t, shader.StageVertex, func(yield func(shader.Key, string)) {
		for range 3000 {
			c := randomVertexConfig(r)
			yield(c.Key(), Vertex(&c))
		}
	})
}

func TestPixelKeyMatchesSource(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	checkKeySourceAgreement(t, shader.StagePixel, func(yield func(shader.Key, string)) {
		for range 3000 {
			c := randomPixelConfig(r)
			yield(c.Key(), Pixel(&c))
		}
	})
}

func TestVertexIgnoresUnreadFields(t *testing.T) {
	a := fxstate.VertexConfig{
		Components:    fxstate.CompPosition | fxstate.CompColor0,
		NumColorChans: 1,
		NumTexGens:    1,
	}
	b := a
	// Channel 1 is not in use, channel 0 is unlit, texgen 1 is not in use.
	b.Lighting[1] = fxstate.LightChannel{Enabled: true, LightMask: 0xFF}
	b.Lighting[0].Diffuse = fxstate.DiffuseClamp
	b.TexGens[1].Projection = true
	// Texture coordinate 0 is absent, so the matrix index bit is dropped.
	b.Components |= fxstate.CompTexMtxIdx(0)

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, Vertex(&a), Vertex(&b))
}

func TestPixelIgnoresUnreadFields(t *testing.T) {
	a := fxstate.PixelConfig{NumTevStages: 1}
	b := a
	b.TevStages[3].ColorOp = fxstate.TevLerp
	b.AlphaTest.Comp0 = fxstate.CompareGreater // test disabled
	// Stage 0 has no texture coordinate, so it cannot sample.
	b.TevStages[0].Texture = true

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, Pixel(&a), Pixel(&b))
}

func TestGenerateDeterministic(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for range 50 {
		v := randomVertexConfig(r)
		p := randomPixelConfig(r)
		assert.Equal(t, Vertex(&v), Vertex(&v))
		assert.Equal(t, Pixel(&p), Pixel(&p))
	}
}

func TestVertexStructure(t *testing.T) {
	c := fxstate.VertexConfig{
		Components:       fxstate.CompPosition | fxstate.CompNormal | fxstate.CompTexCoord(0) | fxstate.CompTexMtxIdx(0),
		NumColorChans:    1,
		Lighting:         [2]fxstate.LightChannel{{Enabled: true, Diffuse: fxstate.DiffuseClamp, Attn: fxstate.AttnSpot, LightMask: 0b101}},
		NumTexGens:       1,
		TexGens:          [8]fxstate.TexGen{{Source: fxstate.TexGenSourceTex0}},
		PerPixelLighting: true,
	}
	src := Vertex(&c)

	required := []string{
		"@vertex",
		"fn vs_main",
		"@location(0) position: vec4<f32>",
		"@location(7) tex0: vec3<f32>",
		"u.lights[0]",
		"u.lights[2]",
		"let tm0 = u32(input.tex0.z);",
		"out.wnrm = nrm;",
	}
	for _, req := range required {
		assert.Contains(t, src, req)
	}
	assert.NotContains(t, src, "u.lights[1]")
}

func TestPixelStructure(t *testing.T) {
	c := fxstate.PixelConfig{
		DstAlpha:     fxstate.DstAlphaDualSource,
		NumTevStages: 2,
		NumTexGens:   1,
		AlphaTest:    fxstate.AlphaTest{Enabled: true, Comp0: fxstate.CompareGreater, Comp1: fxstate.CompareAlways, Logic: fxstate.AlphaLogicAnd},
		Fog:          fxstate.FogExp,
		TevStages: [8]fxstate.TevStage{
			{ColorOp: fxstate.TevMul, ColorArg: fxstate.TevArgTex, AlphaArg: fxstate.TevArgTex, Texture: true},
			{ColorOp: fxstate.TevLerp, ColorArg: fxstate.TevArgKonst},
		},
	}
	src := Pixel(&c)

	required := []string{
		"@fragment",
		"fn fs_main",
		"var samp: sampler;",
		"var tex0: texture_2d<f32>;",
		"textureSample(tex0, samp",
		"mix(prev.xyz, p.konst[1].xyz, vec3<f32>(p.konst[1].w))",
		"discard;",
		"exp2(-8.0 * input.frag.z)",
		"@location(1) blend: vec4<f32>",
	}
	for _, req := range required {
		assert.Contains(t, src, req)
	}
}

func TestGeneratedSourceCompiles(t *testing.T) {
	vertexConfigs := []fxstate.VertexConfig{
		{Components: fxstate.CompPosition | fxstate.CompColor0, NumColorChans: 1},
		{
			Components:    fxstate.CompPosition | fxstate.CompPosMtxIdx | fxstate.CompNormal | fxstate.CompTexCoord(0),
			NumColorChans: 2,
			Lighting:      [2]fxstate.LightChannel{{Enabled: true, Diffuse: fxstate.DiffuseClamp, Attn: fxstate.AttnDir, LightMask: 3}},
			NumTexGens:    2,
			TexGens:       [8]fxstate.TexGen{{Source: fxstate.TexGenSourceTex0, Projection: true}, {Type: fxstate.TexGenColor0}},
		},
	}
	pixelConfigs := []fxstate.PixelConfig{
		{NumTevStages: 1},
		{
			DstAlpha:     fxstate.DstAlphaPass,
			NumTevStages: 2,
			NumTexGens:   1,
			AlphaTest:    fxstate.AlphaTest{Enabled: true, Comp0: fxstate.CompareGEqual, Comp1: fxstate.CompareNever, Logic: fxstate.AlphaLogicOr},
			Fog:          fxstate.FogLinear,
			TevStages:    [8]fxstate.TevStage{{ColorOp: fxstate.TevMul, ColorArg: fxstate.TevArgTex, Texture: true}},
		},
	}

	var sources []string
	for i := range vertexConfigs {
		sources = append(sources, Vertex(&vertexConfigs[i]))
	}
	for i := range pixelConfigs {
		sources = append(sources, Pixel(&pixelConfigs[i]))
	}

	for _, src := range sources {
		spirv, err := naga.Compile(src)
		if err != nil {
			msg := err.Error()
			if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
				t.Skipf("Skipping: naga feature not yet implemented: %v", err)
			}
			t.Fatalf("failed to compile generated source: %v\n%s", err, src)
		}
		if len(spirv) == 0 {
			t.Error("SPIR-V output is empty")
		}
	}
}
