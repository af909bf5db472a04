// Package toolchain turns emitted output into something runnable: a C
// compiler driver for native source and the in-process VM for bytecode.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"nlc/internal/bytecode"
)

// ErrNoCompiler is returned when no C compiler can be found.
var ErrNoCompiler = errors.New("no C compiler found")

// Toolchain compiles emitted output and runs the result. Neither operation
// is retried.
type Toolchain interface {
	Compile(ctx context.Context, name string, source []byte) (*Artifact, error)
	Run(ctx context.Context, a *Artifact, args []string) (int, error)
}

// ToolchainError reports a failed toolchain operation.
type ToolchainError struct {
	Op  string // detect, compile or run
	Err error
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("toolchain %s: %v", e.Op, e.Err)
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// Artifact is a compiled program.
type Artifact struct {
	Path   string           // Executable built by CC
	Module *bytecode.Module // Module loaded by VM

	cleanup func() error
}

// Cleanup removes any temporary files behind the artifact. It is safe to
// call more than once.
func (a *Artifact) Cleanup() error {
	if a == nil || a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.cleanup = nil
	return err
}

type settings struct {
	command  string
	flags    []string
	keepTemp bool
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	log      zerolog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a toolchain.
type Option func(*settings)

// WithCommand sets the C compiler to use instead of detecting one.
func WithCommand(cmd string) Option {
	return func(s *settings) { s.command = cmd }
}

// WithFlags adds compiler flags after the defaults.
func WithFlags(flags ...string) Option {
	return func(s *settings) { s.flags = append(s.flags, flags...) }
}

// WithKeepTemp leaves the build directory in place on Cleanup.
func WithKeepTemp(keep bool) Option {
	return func(s *settings) { s.keepTemp = keep }
}

// WithStdio sets the streams of the program being run. Nil leaves a stream
// unchanged.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(s *settings) {
		if stdin != nil {
			s.stdin = stdin
		}
		if stdout != nil {
			s.stdout = stdout
		}
		if stderr != nil {
			s.stderr = stderr
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// Stem derives a file name stem from a program name: the base name without
// extension, with anything but letters, digits, '-' and '_' replaced.
func Stem(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if stem == "" || stem == "." || strings.Trim(stem, "_") == "" {
		return "program"
	}
	return stem
}
