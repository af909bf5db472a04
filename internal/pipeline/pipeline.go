// Package pipeline sequences intent extraction, validation, emission and
// the optional toolchain step for one program at a time.
package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nlc/internal/codegen"
	"nlc/internal/config"
	"nlc/internal/extract"
	"nlc/internal/ipm"
	"nlc/internal/optimize"
	"nlc/internal/oracle"
	"nlc/internal/sema"
	"nlc/internal/toolchain"
)

// Request describes one compilation.
type Request struct {
	Name    string // Input name, used for diagnostics and output file names
	Text    string
	Backend codegen.Backend
	Execute bool     // Compile the output with the toolchain and run it
	Args    []string // Arguments for the executed program
}

// Result is the outcome of Run. On failure only RequestID, Failure and
// whatever stages completed before it are set; Output is never partial.
type Result struct {
	RequestID string
	Program   *ipm.Program // Extracted program, folded when optimizing
	Output    []byte
	ExitCode  int  // Exit status of the executed program
	Fallback  bool // Executed on the VM because no C compiler was found
	Failure   *Failure
}

// OK reports whether every stage succeeded.
func (r Result) OK() bool { return r.Failure == nil }

// Pipeline runs compilations. Runs share only the configuration, the
// oracle and the toolchains, none of which they mutate.
type Pipeline struct {
	cfg        config.Config
	oracle     oracle.Oracle
	log        zerolog.Logger
	toolchains map[codegen.Backend]toolchain.Toolchain

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithToolchain replaces the toolchain used for backend b.
func WithToolchain(b codegen.Backend, tc toolchain.Toolchain) Option {
	return func(p *Pipeline) { p.toolchains[b] = tc }
}

// WithStdio sets the streams of executed programs.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(p *Pipeline) { p.stdin, p.stdout, p.stderr = stdin, stdout, stderr }
}

// New creates a Pipeline.
func New(cfg config.Config, orc oracle.Oracle, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		oracle:     orc,
		log:        zerolog.Nop(),
		toolchains: make(map[codegen.Backend]toolchain.Toolchain),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("component", "pipeline").Logger()

	tcOpts := []toolchain.Option{
		toolchain.WithStdio(p.stdin, p.stdout, p.stderr),
		toolchain.WithLogger(p.log),
	}
	if _, ok := p.toolchains[codegen.NativeSource]; !ok {
		p.toolchains[codegen.NativeSource] = toolchain.NewCC(append(tcOpts,
			toolchain.WithCommand(cfg.Toolchain.CC),
			toolchain.WithFlags(cfg.Toolchain.Flags...),
			toolchain.WithKeepTemp(cfg.Toolchain.KeepTemp),
		)...)
	}
	if _, ok := p.toolchains[codegen.Bytecode]; !ok {
		p.toolchains[codegen.Bytecode] = toolchain.NewVM(tcOpts...)
	}
	return p
}

// Run compiles one program and, when asked, runs it. It stops at the first
// failing stage and reports that stage's error unchanged.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	res := Result{RequestID: uuid.NewString()}
	log := p.log.With().Str("request_id", res.RequestID).Str("program", req.Name).Logger()
	fail := func(stage Stage, err error) Result {
		res.Output = nil
		res.Failure = &Failure{Stage: stage, Err: err}
		log.Debug().Stringer("stage", stage).Err(err).Msg("stage failed")
		return res
	}

	ext := extract.New(p.oracle,
		extract.WithMaxStatements(p.cfg.Extract.MaxStatements),
		extract.WithTimeout(p.cfg.Oracle.Timeout.Std()),
		extract.WithMinConfidence(p.cfg.Oracle.MinConfidence),
		extract.WithAmbiguityMargin(p.cfg.Oracle.AmbiguityMargin),
		extract.WithLogger(log),
	)
	prog, err := ext.Extract(ctx, req.Text)
	if err != nil {
		return fail(StageIntent, err)
	}
	res.Program = prog
	log.Debug().Int("decls", len(prog.Decls)).Msg("program extracted")

	v, err := sema.Validate(prog)
	if err != nil {
		return fail(StageValidation, err)
	}
	if p.cfg.Optimize {
		folded := optimize.Fold(prog)
		if v, err = sema.Validate(folded); err != nil {
			return fail(StageValidation, err)
		}
		res.Program = folded
	}

	out, err := codegen.Emit(v, req.Backend, codegen.WithSourceName(filepath.Base(req.Name)))
	if err != nil {
		return fail(StageEmit, err)
	}
	res.Output = out
	log.Debug().Stringer("backend", req.Backend).Int("bytes", len(out)).Msg("output emitted")

	if !req.Execute {
		return res
	}
	code, fellBack, err := p.execute(ctx, log, v, req, out)
	if err != nil {
		return fail(StageToolchain, err)
	}
	res.Fallback = fellBack
	res.ExitCode = code
	log.Debug().Int("exit_code", code).Msg("program finished")
	return res
}

// execute compiles and runs out with the toolchain for req.Backend. When
// native source cannot be compiled because no C compiler is installed, the
// program is lowered to bytecode and run on the VM instead.
func (p *Pipeline) execute(ctx context.Context, log zerolog.Logger, v *sema.Validated, req Request, out []byte) (int, bool, error) {
	code, err := p.compileAndRun(ctx, log, req.Backend, req, out)
	if err == nil || req.Backend != codegen.NativeSource || !errors.Is(err, toolchain.ErrNoCompiler) {
		return code, false, err
	}

	log.Warn().Err(err).Msg("no C compiler found, running on the bytecode VM")
	bc, err := codegen.Emit(v, codegen.Bytecode, codegen.WithSourceName(filepath.Base(req.Name)))
	if err != nil {
		return 0, true, &toolchain.ToolchainError{Op: "fallback", Err: err}
	}
	code, err = p.compileAndRun(ctx, log, codegen.Bytecode, req, bc)
	return code, true, err
}

func (p *Pipeline) compileAndRun(ctx context.Context, log zerolog.Logger, b codegen.Backend, req Request, out []byte) (int, error) {
	tc := p.toolchains[b]
	if tc == nil {
		return 0, &toolchain.ToolchainError{Op: "detect", Err: toolchain.ErrNoCompiler}
	}
	artifact, err := tc.Compile(ctx, req.Name, out)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := artifact.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("removing build files")
		}
	}()
	return tc.Run(ctx, artifact, req.Args)
}

// OutputPath derives where the output for input goes: the input's stem
// with the backend's extension, next to the input unless outDir is set.
func OutputPath(input, outDir string, b codegen.Backend) string {
	dir := filepath.Dir(input)
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, toolchain.Stem(input)+b.Extension())
}
