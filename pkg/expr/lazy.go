package expr

import (
	"sync"

	"github.com/google/cel-go/cel"
)

// LazyProgram provides thread-safe lazy compilation of a CEL expression.
// The expression is compiled at most once, even when accessed concurrently.
type LazyProgram struct {
	err        error
	program    cel.Program
	env        *Environment
	expression string
	once       sync.Once
}

// NewLazyProgram creates a new LazyProgram that will compile the given
// expression in env when Get() is first called.
func NewLazyProgram(expression string, env *Environment) *LazyProgram {
	return &LazyProgram{
		expression: expression,
		env:        env,
	}
}

// Get returns the compiled program, compiling it on the first call.
// Subsequent calls return the cached result.
//
//nolint:ireturn // Following CEL's function signature.
func (lp *LazyProgram) Get() (cel.Program, error) {
	lp.once.Do(func() {
		lp.program, lp.err = lp.env.Compile(lp.expression)
	})

	return lp.program, lp.err
}

// IsCompiled returns true if the expression has been compiled.
func (lp *LazyProgram) IsCompiled() bool {
	return lp.program != nil || lp.err != nil
}
