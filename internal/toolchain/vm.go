package toolchain

import (
	"context"
	"errors"
	"fmt"

	"nlc/internal/bytecode"
	"nlc/internal/vm"
)

// VM loads bytecode and runs it in-process.
type VM struct {
	settings
}

// NewVM returns the bytecode toolchain.
func NewVM(opts ...Option) *VM {
	v := &VM{settings: newSettings(opts)}
	v.log = v.log.With().Str("component", "vm-toolchain").Logger()
	return v
}

// Compile decodes and verifies an encoded module. Nothing is written to
// disk.
func (v *VM) Compile(_ context.Context, name string, source []byte) (*Artifact, error) {
	mod, err := bytecode.Decode(source)
	if err != nil {
		return nil, &ToolchainError{Op: "compile", Err: err}
	}
	v.log.Debug().Str("program", name).Int("funcs", len(mod.Funcs)).Msg("module loaded")
	return &Artifact{Module: mod}, nil
}

// Run executes the module. Programs take no arguments; any given are
// ignored.
func (v *VM) Run(ctx context.Context, a *Artifact, args []string) (int, error) {
	if a == nil || a.Module == nil {
		return 0, &ToolchainError{Op: "run", Err: errors.New("no module")}
	}
	if len(args) > 0 {
		v.log.Warn().Strs("args", args).Msg("bytecode programs take no arguments")
	}
	code, err := vm.New(a.Module,
		vm.WithStdout(v.stdout),
		vm.WithStdin(v.stdin),
		vm.WithLogger(v.log),
	).Run(ctx)
	// A runtime error ends the program the way the C runtime does: a
	// diagnostic on stderr and exit status 1.
	var rerr *vm.RuntimeError
	if errors.As(err, &rerr) {
		fmt.Fprintf(v.stderr, "runtime error: %s\n", rerr.Msg)
		return 1, nil
	}
	if err != nil {
		return 0, &ToolchainError{Op: "run", Err: err}
	}
	return code, nil
}
