package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nlc/internal/bytecode"
	"nlc/internal/config"
	"nlc/internal/ipm"
	"nlc/internal/oracle"
	"nlc/internal/pipeline"
)

// maxParallel bounds how many inputs are compiled at once.
const maxParallel = 4

type compiler struct {
	cfg *config.Config
	log zerolog.Logger
	run bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// outcome is what compiling one input produced. Listing is written to
// stdout in input order once every input is done.
type outcome struct {
	listing string
	status  int
	err     error
}

func (c *compiler) compileAll(ctx context.Context, inputs []string) error {
	backend, err := c.cfg.BackendKind()
	if err != nil {
		return err
	}
	orc, err := newOracle(c.cfg, c.log)
	if err != nil {
		return err
	}
	p := pipeline.New(*c.cfg, orc,
		pipeline.WithLogger(c.log),
		pipeline.WithStdio(c.stdin, c.stdout, c.stderr),
	)

	outcomes := make([]outcome, len(inputs))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			outcomes[i] = c.compile(ctx, p, input, pipeline.Request{
				Name:    input,
				Backend: backend,
				Execute: c.run,
			})
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	status := 0
	for i, o := range outcomes {
		if o.listing != "" {
			fmt.Fprint(c.stdout, o.listing)
		}
		if o.err == nil {
			continue
		}
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", inputs[i], o.err))
		if status == 0 {
			status = o.status
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		if len(inputs) > 1 {
			c.log.Error().Int("failed", merr.Len()).Int("inputs", len(inputs)).Msg("compilation failed")
		}
		return &exitError{code: status}
	}
	return nil
}

// compile runs one input through the pipeline and writes its output.
// Failures are logged here; the returned status is the process exit
// status they call for.
func (c *compiler) compile(ctx context.Context, p *pipeline.Pipeline, input string, req pipeline.Request) outcome {
	log := c.log.With().Str("file", input).Logger()

	text, err := os.ReadFile(input)
	if err != nil {
		log.Error().Err(err).Msg("reading input")
		return outcome{status: 1, err: err}
	}
	req.Text = string(text)

	res := p.Run(ctx, req)
	if res.Failure != nil {
		log.Error().Str("request_id", res.RequestID).Msg(res.Failure.Error())
		return outcome{status: res.Failure.ExitStatus(), err: res.Failure}
	}

	var o outcome
	switch c.cfg.Emit {
	case config.EmitIPM:
		o.listing = ipm.Format(res.Program)
	case config.EmitDisasm:
		mod, err := bytecode.Decode(res.Output)
		if err != nil {
			log.Error().Err(err).Msg("decoding bytecode")
			return outcome{status: 1, err: err}
		}
		o.listing = bytecode.Disassemble(mod)
	default:
		path := pipeline.OutputPath(input, c.cfg.OutputDir, req.Backend)
		if err := writeOutput(path, res.Output); err != nil {
			log.Error().Err(err).Msg("writing output")
			return outcome{status: 1, err: err}
		}
		log.Info().Str("output", path).Msg("compiled")
	}

	if req.Execute && res.ExitCode != 0 {
		log.Warn().Int("exit_code", res.ExitCode).Msg("program exited with non-zero status")
		o.status = res.ExitCode
		o.err = fmt.Errorf("program exited with status %d", res.ExitCode)
	}
	return o
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}

// newOracle builds the oracle the configuration selects.
func newOracle(cfg *config.Config, log zerolog.Logger) (oracle.Oracle, error) {
	switch cfg.Oracle.Kind {
	case config.OracleRules, "":
		return oracle.NewRules(), nil
	case config.OracleRemote:
		return oracle.NewRemote(cfg.Oracle.Endpoint, cfg.Oracle.Model, cfg.Oracle.APIKey,
			oracle.WithRemoteLogger(log)), nil
	case config.OracleTable:
		t, err := oracle.LoadTable(cfg.Oracle.TablePath)
		if err != nil {
			return nil, fmt.Errorf("loading oracle table: %w", err)
		}
		log.Debug().Int("entries", t.Len()).Msg("oracle table loaded")
		return t, nil
	}
	return nil, errors.New("unknown oracle kind " + cfg.Oracle.Kind)
}
