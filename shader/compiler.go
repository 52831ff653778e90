package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// ErrCompile is matched by every *CompileError.
var ErrCompile = errors.New("shader: compilation failed")

// CompileError reports a failed compilation of generated source.
type CompileError struct {
	Stage Stage
	Key   Key

	// Diagnostics is the compiler output.
	Diagnostics string

	// Err is the underlying compiler or driver error.
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader: compile %s %s: %s", e.Stage, e.Key, e.Diagnostics)
}

// Unwrap returns ErrCompile and the underlying error.
func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCompile}
	}
	return []error{ErrCompile, e.Err}
}

// Compiler turns generated source text into program bytecode.
type Compiler interface {
	Compile(stage Stage, source string) ([]byte, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(stage Stage, source string) ([]byte, error)

// Compile calls f(stage, source).
func (f CompilerFunc) Compile(stage Stage, source string) ([]byte, error) {
	return f(stage, source)
}

// NagaCompiler compiles WGSL to SPIR-V with naga.
type NagaCompiler struct{}

// Compile compiles WGSL source. The stage is selected by the entry point
// attributes in the source.
func (NagaCompiler) Compile(_ Stage, source string) ([]byte, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	if len(spirv) == 0 {
		return nil, errors.New("naga produced empty SPIR-V")
	}
	return spirv, nil
}

// SPIRVWords converts SPIR-V bytes to little-endian 32-bit words.
func SPIRVWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}
