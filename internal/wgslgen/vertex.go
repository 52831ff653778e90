// Package wgslgen generates WGSL programs from fixed-function pipeline
// configurations.
//
// Generation is a pure function of the canonical configuration: the same
// configuration always yields byte-identical source, and every field that
// survives normalization changes the output.
package wgslgen

import (
	"fmt"
	"strings"

	"github.com/gogpu/fxpipe/fxstate"
)

// Version identifies the generator output. Persistent program caches
// written by a different generator version are discarded.
const Version = "wgslgen-1"

// Input locations of vertex attributes.
const (
	locPosition = 0
	locPosMtx   = 1
	locNormal   = 2
	locBinormal = 3
	locTangent  = 4
	locColor0   = 5
	locTexCoord = 7
)

// Output locations shared by the vertex and pixel programs.
const (
	locOutColor0 = 0
	locOutTex    = 2
	locOutWPos   = 10
	locOutWNrm   = 11
)

const vertexPrelude = `// fxpipe vertex program

struct Light {
    color: vec4<f32>,
    cosatt: vec4<f32>,
    distatt: vec4<f32>,
    pos: vec4<f32>,
    dir: vec4<f32>,
}

struct VertexUniforms {
    projection: mat4x4<f32>,
    posnormal: array<vec4<f32>, 96>,
    texmtx: array<vec4<f32>, 24>,
    material: array<vec4<f32>, 4>,
    lights: array<Light, 8>,
}

@group(0) @binding(0) var<uniform> u: VertexUniforms;
`

// Vertex returns the vertex program for cfg.
func Vertex(cfg *fxstate.VertexConfig) string {
	c := cfg.Normalize()
	comps := c.Components

	var b strings.Builder
	b.WriteString(vertexPrelude)

	// Inputs. vertex_index keeps the struct non-empty.
	b.WriteString("\nstruct VertexInput {\n    @builtin(vertex_index) vid: u32,\n")
	if comps.Has(fxstate.CompPosition) {
		fmt.Fprintf(&b, "    @location(%d) position: vec4<f32>,\n", locPosition)
	}
	if comps.Has(fxstate.CompPosMtxIdx) {
		fmt.Fprintf(&b, "    @location(%d) posmtx: u32,\n", locPosMtx)
	}
	if comps.Has(fxstate.CompNormal) {
		fmt.Fprintf(&b, "    @location(%d) normal: vec3<f32>,\n", locNormal)
	}
	if comps.Has(fxstate.CompTangents) {
		fmt.Fprintf(&b, "    @location(%d) binormal: vec3<f32>,\n", locBinormal)
		fmt.Fprintf(&b, "    @location(%d) tangent: vec3<f32>,\n", locTangent)
	}
	for i := 0; i < fxstate.MaxColorChans; i++ {
		if comps.Has(fxstate.CompColor0 << i) {
			fmt.Fprintf(&b, "    @location(%d) color%d: vec4<f32>,\n", locColor0+i, i)
		}
	}
	for i := 0; i < fxstate.MaxTexGens; i++ {
		switch {
		case comps.Has(fxstate.CompTexMtxIdx(i)):
			fmt.Fprintf(&b, "    @location(%d) tex%d: vec3<f32>,\n", locTexCoord+i, i)
		case comps.Has(fxstate.CompTexCoord(i)):
			fmt.Fprintf(&b, "    @location(%d) tex%d: vec2<f32>,\n", locTexCoord+i, i)
		}
	}
	b.WriteString("}\n")

	// Outputs.
	b.WriteString("\nstruct VertexOutput {\n    @builtin(position) clip: vec4<f32>,\n")
	for i := 0; i < c.NumColorChans; i++ {
		fmt.Fprintf(&b, "    @location(%d) color%d: vec4<f32>,\n", locOutColor0+i, i)
	}
	for i := 0; i < c.NumTexGens; i++ {
		fmt.Fprintf(&b, "    @location(%d) tex%d: vec3<f32>,\n", locOutTex+i, i)
	}
	if c.PerPixelLighting {
		fmt.Fprintf(&b, "    @location(%d) wpos: vec3<f32>,\n", locOutWPos)
		fmt.Fprintf(&b, "    @location(%d) wnrm: vec3<f32>,\n", locOutWNrm)
	}
	b.WriteString("}\n")

	b.WriteString("\n@vertex\nfn vs_main(input: VertexInput) -> VertexOutput {\n")
	b.WriteString("    var out: VertexOutput;\n")

	if comps.Has(fxstate.CompPosMtxIdx) {
		b.WriteString("    let mtx = input.posmtx;\n")
	} else {
		b.WriteString("    let mtx = 0u;\n")
	}
	if comps.Has(fxstate.CompPosition) {
		b.WriteString("    let pos = input.position;\n")
	} else {
		b.WriteString("    let pos = vec4<f32>(0.0, 0.0, 0.0, 1.0);\n")
	}
	b.WriteString("    let wpos = vec3<f32>(dot(u.posnormal[mtx], pos), dot(u.posnormal[mtx + 1u], pos), dot(u.posnormal[mtx + 2u], pos));\n")
	if comps.Has(fxstate.CompNormal) {
		b.WriteString("    let nrm = normalize(vec3<f32>(dot(u.posnormal[mtx].xyz, input.normal), dot(u.posnormal[mtx + 1u].xyz, input.normal), dot(u.posnormal[mtx + 2u].xyz, input.normal)));\n")
	} else {
		b.WriteString("    let nrm = vec3<f32>(0.0, 0.0, 1.0);\n")
	}
	b.WriteString("    out.clip = u.projection * vec4<f32>(wpos, 1.0);\n")

	for i := 0; i < c.NumColorChans; i++ {
		writeChannel(&b, &c, i)
	}
	for i := 0; i < c.NumTexGens; i++ {
		writeTexGen(&b, &c, i)
	}

	if c.PerPixelLighting {
		b.WriteString("    out.wpos = wpos;\n    out.wnrm = nrm;\n")
	}
	b.WriteString("    return out;\n}\n")
	return b.String()
}

func materialExpr(c *fxstate.VertexConfig, src fxstate.MatSource, channel, reg int) string {
	if src == fxstate.MatSourceVertex {
		if c.Components.Has(fxstate.CompColor0 << channel) {
			return fmt.Sprintf("input.color%d", channel)
		}
		return "vec4<f32>(1.0, 1.0, 1.0, 1.0)"
	}
	return fmt.Sprintf("u.material[%d]", reg)
}

func writeChannel(b *strings.Builder, c *fxstate.VertexConfig, i int) {
	ch := &c.Lighting[i]
	fmt.Fprintf(b, "    var mat%d = %s;\n", i, materialExpr(c, ch.MatSource, i, 2+i))
	if ch.Enabled {
		fmt.Fprintf(b, "    let amb%d = %s;\n", i, materialExpr(c, ch.AmbSource, i, i))
		fmt.Fprintf(b, "    var lacc%d = amb%d.xyz;\n", i, i)
		for j := 0; j < fxstate.MaxLights; j++ {
			if ch.LightMask&(1<<j) == 0 {
				continue
			}
			fmt.Fprintf(b, "    lacc%d = lacc%d + u.lights[%d].color.xyz * (%s) * (%s);\n",
				i, i, j, attnExpr(ch.Attn, j), diffuseExpr(ch.Diffuse, j))
		}
		fmt.Fprintf(b, "    mat%d = vec4<f32>(mat%d.xyz * clamp(lacc%d, vec3<f32>(0.0), vec3<f32>(1.0)), mat%d.w);\n", i, i, i, i)
	}
	fmt.Fprintf(b, "    out.color%d = mat%d;\n", i, i)
}

func diffuseExpr(f fxstate.DiffuseFunc, light int) string {
	switch f {
	case fxstate.DiffuseSign:
		return fmt.Sprintf("dot(normalize(u.lights[%d].pos.xyz - wpos), nrm)", light)
	case fxstate.DiffuseClamp:
		return fmt.Sprintf("max(dot(normalize(u.lights[%d].pos.xyz - wpos), nrm), 0.0)", light)
	default:
		return "1.0"
	}
}

func attnExpr(f fxstate.AttnFunc, light int) string {
	switch f {
	case fxstate.AttnSpec:
		return fmt.Sprintf("max(dot(nrm, u.lights[%d].dir.xyz), 0.0)", light)
	case fxstate.AttnDir:
		return fmt.Sprintf("1.0 / max(length(u.lights[%d].pos.xyz - wpos), 0.0001)", light)
	case fxstate.AttnSpot:
		return fmt.Sprintf("max(dot(normalize(wpos - u.lights[%[1]d].pos.xyz), u.lights[%[1]d].dir.xyz), 0.0) / max(dot(u.lights[%[1]d].distatt.xyz, vec3<f32>(1.0, length(u.lights[%[1]d].pos.xyz - wpos), 0.0)), 0.0001)", light)
	default:
		return "1.0"
	}
}

func texGenSourceExpr(s fxstate.TexGenSource) string {
	switch {
	case s == fxstate.TexGenSourcePosition:
		return "pos"
	case s == fxstate.TexGenSourceNormal:
		return "vec4<f32>(nrm, 1.0)"
	case s == fxstate.TexGenSourceBinormal:
		return "vec4<f32>(input.binormal, 1.0)"
	case s == fxstate.TexGenSourceTangent:
		return "vec4<f32>(input.tangent, 1.0)"
	case s >= fxstate.TexGenSourceTex0 && s < fxstate.TexGenSourceConstant:
		return fmt.Sprintf("vec4<f32>(input.tex%d.xy, 1.0, 1.0)", s-fxstate.TexGenSourceTex0)
	default:
		return "vec4<f32>(0.0, 0.0, 1.0, 1.0)"
	}
}

func writeTexGen(b *strings.Builder, c *fxstate.VertexConfig, i int) {
	tg := &c.TexGens[i]
	switch tg.Type {
	case fxstate.TexGenColor0, fxstate.TexGenColor1:
		k := int(tg.Type - fxstate.TexGenColor0)
		color := fmt.Sprintf("u.material[%d]", 2+k)
		if k < c.NumColorChans {
			color = fmt.Sprintf("mat%d", k)
		}
		fmt.Fprintf(b, "    out.tex%d = vec3<f32>(%s.xy, 1.0);\n", i, color)
		return
	}

	fmt.Fprintf(b, "    let src%d = %s;\n", i, texGenSourceExpr(tg.Source))
	if c.Components.Has(fxstate.CompTexMtxIdx(i)) {
		fmt.Fprintf(b, "    let tm%d = u32(input.tex%d.z);\n", i, i)
	} else {
		fmt.Fprintf(b, "    let tm%d = %du;\n", i, 3*i)
	}
	if tg.Projection {
		fmt.Fprintf(b, "    var t%[1]d = vec3<f32>(dot(u.texmtx[tm%[1]d], src%[1]d), dot(u.texmtx[tm%[1]d + 1u], src%[1]d), dot(u.texmtx[tm%[1]d + 2u], src%[1]d));\n", i)
	} else {
		fmt.Fprintf(b, "    var t%[1]d = vec3<f32>(dot(u.texmtx[tm%[1]d], src%[1]d), dot(u.texmtx[tm%[1]d + 1u], src%[1]d), 1.0);\n", i)
	}
	if tg.Normalize {
		fmt.Fprintf(b, "    t%[1]d = normalize(t%[1]d);\n", i)
	}
	fmt.Fprintf(b, "    out.tex%[1]d = t%[1]d;\n", i)
}
