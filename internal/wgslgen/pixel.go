package wgslgen

import (
	"fmt"
	"strings"

	"github.com/gogpu/fxpipe/fxstate"
)

const pixelPrelude = `// fxpipe pixel program

struct PixelUniforms {
    konst: array<vec4<f32>, 8>,
    alpha_ref: vec4<f32>,
    fog_color: vec4<f32>,
    fog_params: vec4<f32>,
    dst_alpha: vec4<f32>,
    light_dir: vec4<f32>,
}

@group(1) @binding(0) var<uniform> p: PixelUniforms;
`

// Pixel returns the pixel program for cfg.
func Pixel(cfg *fxstate.PixelConfig) string {
	c := cfg.Normalize()

	var b strings.Builder
	b.WriteString(pixelPrelude)

	textured := false
	for i := 0; i < c.NumTevStages; i++ {
		textured = textured || c.TevStages[i].Texture
	}
	if textured {
		b.WriteString("@group(1) @binding(1) var samp: sampler;\n")
		for i := 0; i < c.NumTevStages; i++ {
			if c.TevStages[i].Texture {
				fmt.Fprintf(&b, "@group(1) @binding(%d) var tex%d: texture_2d<f32>;\n", 2+i, i)
			}
		}
	}

	b.WriteString("\nstruct FragmentInput {\n    @builtin(position) frag: vec4<f32>,\n")
	fmt.Fprintf(&b, "    @location(%d) color0: vec4<f32>,\n", locOutColor0)
	for i := 0; i < c.NumTexGens; i++ {
		fmt.Fprintf(&b, "    @location(%d) uv%d: vec3<f32>,\n", locOutTex+i, i)
	}
	if c.PerPixelLighting {
		fmt.Fprintf(&b, "    @location(%d) wpos: vec3<f32>,\n", locOutWPos)
		fmt.Fprintf(&b, "    @location(%d) wnrm: vec3<f32>,\n", locOutWNrm)
	}
	b.WriteString("}\n")

	b.WriteString("\nstruct FragmentOutput {\n    @location(0) color: vec4<f32>,\n")
	if c.DstAlpha == fxstate.DstAlphaDualSource {
		b.WriteString("    @location(1) blend: vec4<f32>,\n")
	}
	b.WriteString("}\n")

	b.WriteString("\n@fragment\nfn fs_main(input: FragmentInput) -> FragmentOutput {\n")
	b.WriteString("    var out: FragmentOutput;\n")
	b.WriteString("    var ras = input.color0;\n")
	if c.PerPixelLighting {
		b.WriteString("    ras = vec4<f32>(ras.xyz * max(dot(normalize(input.wnrm), p.light_dir.xyz), 0.0), ras.w);\n")
	}
	b.WriteString("    var prev = ras;\n")

	for i := 0; i < c.NumTevStages; i++ {
		writeTevStage(&b, &c.TevStages[i], i)
	}

	if c.AlphaTest.Enabled {
		fmt.Fprintf(&b, "    let at0 = %s;\n", compareExpr(c.AlphaTest.Comp0, "p.alpha_ref.x"))
		fmt.Fprintf(&b, "    let at1 = %s;\n", compareExpr(c.AlphaTest.Comp1, "p.alpha_ref.y"))
		fmt.Fprintf(&b, "    if !(%s) {\n        discard;\n    }\n", logicExpr(c.AlphaTest.Logic))
	}

	if c.Fog != fxstate.FogNone {
		fmt.Fprintf(&b, "    let fog = %s;\n", fogExpr(c.Fog))
		b.WriteString("    prev = vec4<f32>(mix(prev.xyz, p.fog_color.xyz, vec3<f32>(fog)), prev.w);\n")
	}

	switch c.DstAlpha {
	case fxstate.DstAlphaPass:
		b.WriteString("    out.color = vec4<f32>(prev.xyz, p.dst_alpha.w);\n")
	case fxstate.DstAlphaDualSource:
		b.WriteString("    out.color = vec4<f32>(prev.xyz, p.dst_alpha.w);\n")
		b.WriteString("    out.blend = prev;\n")
	default:
		b.WriteString("    out.color = prev;\n")
	}
	b.WriteString("    return out;\n}\n")
	return b.String()
}

func writeTevStage(b *strings.Builder, st *fxstate.TevStage, i int) {
	if st.Texture {
		fmt.Fprintf(b, "    let t%[1]d = textureSample(tex%[1]d, samp, input.uv%[1]d.xy / input.uv%[1]d.z);\n", i)
	}
	colorArg := tevArgExpr(st.ColorArg, i) + ".xyz"
	alphaArg := tevArgExpr(st.AlphaArg, i) + ".w"
	fmt.Fprintf(b, "    let c%d = clamp(%s, vec3<f32>(0.0), vec3<f32>(1.0));\n",
		i, tevOpExpr(st.ColorOp, "prev.xyz", colorArg, fmt.Sprintf("vec3<f32>(p.konst[%d].w)", i)))
	fmt.Fprintf(b, "    let a%d = clamp(%s, 0.0, 1.0);\n",
		i, tevOpExpr(st.AlphaOp, "prev.w", alphaArg, fmt.Sprintf("p.konst[%d].w", i)))
	fmt.Fprintf(b, "    prev = vec4<f32>(c%[1]d, a%[1]d);\n", i)
}

func tevArgExpr(a fxstate.TevArg, stage int) string {
	switch a {
	case fxstate.TevArgTex:
		return fmt.Sprintf("t%d", stage)
	case fxstate.TevArgRas:
		return "ras"
	case fxstate.TevArgKonst:
		return fmt.Sprintf("p.konst[%d]", stage)
	case fxstate.TevArgZero:
		return "vec4<f32>(0.0)"
	case fxstate.TevArgOne:
		return "vec4<f32>(1.0)"
	case fxstate.TevArgHalf:
		return "vec4<f32>(0.5)"
	default:
		return "prev"
	}
}

func tevOpExpr(op fxstate.TevOp, a, b, factor string) string {
	switch op {
	case fxstate.TevSub:
		return a + " - " + b
	case fxstate.TevMul:
		return a + " * " + b
	case fxstate.TevLerp:
		return fmt.Sprintf("mix(%s, %s, %s)", a, b, factor)
	default:
		return a + " + " + b
	}
}

func compareExpr(f fxstate.CompareFunc, ref string) string {
	switch f {
	case fxstate.CompareNever:
		return "false"
	case fxstate.CompareLess:
		return "prev.w < " + ref
	case fxstate.CompareEqual:
		return "prev.w == " + ref
	case fxstate.CompareLEqual:
		return "prev.w <= " + ref
	case fxstate.CompareGreater:
		return "prev.w > " + ref
	case fxstate.CompareNEqual:
		return "prev.w != " + ref
	case fxstate.CompareGEqual:
		return "prev.w >= " + ref
	default:
		return "true"
	}
}

func logicExpr(l fxstate.AlphaLogic) string {
	switch l {
	case fxstate.AlphaLogicOr:
		return "at0 || at1"
	case fxstate.AlphaLogicXor:
		return "at0 != at1"
	case fxstate.AlphaLogicXnor:
		return "at0 == at1"
	default:
		return "at0 && at1"
	}
}

func fogExpr(m fxstate.FogMode) string {
	switch m {
	case fxstate.FogLinear:
		return "clamp((input.frag.z - p.fog_params.z) / (p.fog_params.w - p.fog_params.z), 0.0, 1.0)"
	case fxstate.FogExp:
		return "1.0 - exp2(-8.0 * input.frag.z)"
	case fxstate.FogExp2:
		return "1.0 - exp2(-8.0 * input.frag.z * input.frag.z)"
	case fxstate.FogBackwardsExp:
		return "exp2(-8.0 * (1.0 - input.frag.z))"
	default:
		return "exp2(-8.0 * (1.0 - input.frag.z) * (1.0 - input.frag.z))"
	}
}
