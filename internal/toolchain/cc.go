package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Candidates tried, in order, when no compiler is configured.
var compilerNames = []string{"cc", "gcc", "clang"}

// baseFlags are passed to every compile.
var baseFlags = []string{"-std=c99", "-O2"}

// CC drives a system C compiler.
type CC struct {
	settings
}

// NewCC returns a C compiler driver.
func NewCC(opts ...Option) *CC {
	c := &CC{settings: newSettings(opts)}
	c.log = c.log.With().Str("component", "cc").Logger()
	return c
}

// Detect returns the path of the compiler Compile would use.
func (c *CC) Detect() (string, error) {
	if c.command != "" {
		path, err := exec.LookPath(c.command)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrNoCompiler, c.command, err)
		}
		return path, nil
	}
	for _, name := range compilerNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoCompiler, strings.Join(compilerNames, ", "))
}

// Compile writes source into a fresh temporary directory and builds an
// executable next to it.
func (c *CC) Compile(ctx context.Context, name string, source []byte) (*Artifact, error) {
	compiler, err := c.Detect()
	if err != nil {
		return nil, &ToolchainError{Op: "detect", Err: err}
	}

	stem := Stem(name)
	dir, err := os.MkdirTemp("", "nlc-"+stem+"-")
	if err != nil {
		return nil, &ToolchainError{Op: "compile", Err: fmt.Errorf("creating build directory: %w", err)}
	}
	a := &Artifact{Path: filepath.Join(dir, stem)}
	a.cleanup = func() error {
		if c.keepTemp {
			c.log.Info().Str("dir", dir).Msg("keeping build directory")
			return nil
		}
		return os.RemoveAll(dir)
	}

	src := filepath.Join(dir, stem+".c")
	if err := os.WriteFile(src, source, 0o644); err != nil {
		_ = a.Cleanup()
		return nil, &ToolchainError{Op: "compile", Err: fmt.Errorf("writing source: %w", err)}
	}

	args := append([]string{}, baseFlags...)
	args = append(args, c.flags...)
	args = append(args, "-o", a.Path, src, "-lm")
	c.log.Debug().Str("compiler", compiler).Strs("args", args).Msg("compiling")

	var diag bytes.Buffer
	cmd := exec.CommandContext(ctx, compiler, args...)
	cmd.Stdout = &diag
	cmd.Stderr = &diag
	if err := cmd.Run(); err != nil {
		_ = a.Cleanup()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		msg := strings.TrimSpace(diag.String())
		if msg != "" {
			err = fmt.Errorf("%w\n%s", err, msg)
		}
		return nil, &ToolchainError{Op: "compile", Err: err}
	}
	return a, nil
}

// Run executes the artifact and returns its exit status. A non-zero exit
// status is not an error.
func (c *CC) Run(ctx context.Context, a *Artifact, args []string) (int, error) {
	if a == nil || a.Path == "" {
		return 0, &ToolchainError{Op: "run", Err: errors.New("no executable")}
	}
	cmd := exec.CommandContext(ctx, a.Path, args...)
	cmd.Stdin = c.stdin
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return 0, &ToolchainError{Op: "run", Err: ctx.Err()}
	}
	if code, ok := exitStatus(err); ok {
		return code, nil
	}
	if err != nil {
		return 0, &ToolchainError{Op: "run", Err: err}
	}
	return 0, nil
}

// exitStatus extracts the status of a process that ran and exited. A
// process killed by a signal reports 128 plus the signal number, as shells
// do.
func exitStatus(err error) (int, bool) {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	return exitErr.ExitCode(), true
}
