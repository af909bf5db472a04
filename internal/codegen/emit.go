// Package codegen lowers validated programs to C source or to bytecode.
package codegen

import (
	"nlc/internal/bytecode"
	"nlc/internal/sema"
)

type options struct {
	source string
}

// Option configures Emit.
type Option func(*options)

// WithSourceName names the input in the generated C header comment.
func WithSourceName(name string) Option {
	return func(o *options) { o.source = name }
}

// Emit lowers v for backend b. The output depends only on v, b and the
// options, never on iteration order, time or randomness.
func Emit(v *sema.Validated, b Backend, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch b {
	case NativeSource:
		return emitNative(v, o.source)
	case Bytecode:
		mod, err := Lower(v)
		if err != nil {
			return nil, err
		}
		data, err := bytecode.Encode(mod)
		if err != nil {
			return nil, &EmitError{Kind: InternalLoweringError, Backend: b, Msg: err.Error()}
		}
		return data, nil
	}
	return nil, &EmitError{Kind: InternalLoweringError, Backend: b, Msg: "unknown backend"}
}
