package shader

import (
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/internal/handle"
)

// ModuleFactory creates native shader modules. gpucore.GPUAdapter
// satisfies it.
type ModuleFactory interface {
	CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error)
	DestroyShaderModule(id gpucore.ShaderModuleID)
}

// Program is a compiled permutation: the native module plus, when the stage
// needs it, the bytecode the module was created from.
type Program struct {
	module   handle.Unique[gpucore.ShaderModuleID]
	bytecode []byte
}

func newProgram(modules ModuleFactory, label string, bytecode []byte, retain bool) (*Program, error) {
	words, err := SPIRVWords(bytecode)
	if err != nil {
		return nil, err
	}
	id, err := modules.CreateShaderModule(words, label)
	if err != nil {
		return nil, fmt.Errorf("shader: create module %s: %w", label, err)
	}
	p := &Program{module: handle.New(id, modules.DestroyShaderModule)}
	if retain {
		p.bytecode = bytecode
	}
	return p, nil
}

// Module returns the native module handle.
func (p *Program) Module() gpucore.ShaderModuleID {
	return p.module.Get()
}

// Bytecode returns the retained bytecode, or nil if the stage does not
// retain it.
func (p *Program) Bytecode() []byte {
	return p.bytecode
}

// release destroys the native module.
func (p *Program) release() {
	p.module.Close()
	p.bytecode = nil
}

// Entry is one cached permutation.
type Entry struct {
	Key Key

	// Program is nil when compilation failed. The failure is remembered so
	// the same configuration is not compiled again.
	Program *Program

	// Source is the generated source text, kept only in validation mode.
	Source string
}

// OK reports whether the entry holds a usable program.
func (e *Entry) OK() bool {
	return e != nil && e.Program != nil
}
