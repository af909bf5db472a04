package pipeline

import (
	"errors"
	"fmt"

	"nlc/internal/codegen"
	"nlc/internal/extract"
	"nlc/internal/sema"
	"nlc/internal/toolchain"
)

// Stage identifies a pipeline stage.
type Stage int

const (
	StageIntent Stage = iota + 1
	StageValidation
	StageEmit
	StageToolchain
)

func (s Stage) String() string {
	switch s {
	case StageIntent:
		return "intent"
	case StageValidation:
		return "validation"
	case StageEmit:
		return "emit"
	case StageToolchain:
		return "toolchain"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ExitStatus is the process exit status for a failure in this stage.
func (s Stage) ExitStatus() int {
	switch s {
	case StageIntent:
		return 2
	case StageValidation:
		return 3
	case StageEmit:
		return 4
	case StageToolchain:
		return 5
	}
	return 1
}

// Failure is the first stage error of a Run. Err is the stage's own error.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("stage=%s kind=%s: %v", f.Stage, f.Kind(), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// ExitStatus is the process exit status for this failure.
func (f *Failure) ExitStatus() int { return f.Stage.ExitStatus() }

// Kind names the error kind reported by the failing stage.
func (f *Failure) Kind() string {
	var (
		ie *extract.IntentError
		ve *sema.ValidationError
		ee *codegen.EmitError
		te *toolchain.ToolchainError
	)
	switch {
	case errors.As(f.Err, &ie):
		return ie.Kind.String()
	case errors.As(f.Err, &ve):
		return ve.Kind.String()
	case errors.As(f.Err, &ee):
		return ee.Kind.String()
	case errors.As(f.Err, &te):
		return te.Op
	}
	return "Error"
}
