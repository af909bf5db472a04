// nlc compiles plain-English program descriptions to C source or to
// bytecode for the bundled VM, and optionally runs the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"nlc/internal/config"
)

const usageExamples = `  # Compile a description to C next to the input
  nlc examples/add.nl

  # Compile to bytecode and run it on the VM
  nlc -b bytecode -r examples/add.nl

  # Compile several files into build/ with the table oracle
  nlc -o build --oracle table --oracle-table examples/oracle-table.yaml examples/*.nl

  # Show the extracted program instead of generated code
  nlc --emit ipm examples/countdown.nl

  # Use a config file and the remote oracle (key from NLC_API_KEY or .env)
  nlc -c examples/nlc.yaml --oracle remote examples/greet.nl`

// flags holds the raw command line values. Only flags the user set
// override the configuration.
type flags struct {
	backend     string
	run         bool
	outDir      string
	configFile  string
	envFile     string
	oracle      string
	oracleTable string
	emit        string
	optimize    bool
	verbose     bool
}

func (f *flags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.backend, "backend", "b", config.DefaultBackend, "Backend: c or bytecode")
	fs.BoolVarP(&f.run, "run", "r", false, "Compile and run the program (single input only)")
	fs.StringVarP(&f.outDir, "out-dir", "o", "", "Output directory (default: next to each input)")
	fs.StringVarP(&f.configFile, "config", "c", "", "Config file (YAML/JSON)")
	fs.StringVar(&f.envFile, "env-file", ".env", "Optional dotenv file read before the environment")
	fs.StringVar(&f.oracle, "oracle", config.OracleRules, "Oracle: rules, remote or table")
	fs.StringVar(&f.oracleTable, "oracle-table", "", "Sentence table for the table oracle")
	fs.StringVar(&f.emit, "emit", config.EmitOutput, "What to write: output, ipm or disasm")
	fs.BoolVarP(&f.optimize, "optimize", "O", false, "Fold constant expressions before emitting")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Verbose output")
}

// exitError carries a process exit status out of the command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil && ee.code != 0 {
			fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "nlc [flags] <file>...",
		Short:         "Compile plain-English program descriptions",
		Example:       usageExamples,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}
			if f.run && len(args) != 1 {
				return errors.New("--run takes exactly one input file")
			}
			c := &compiler{
				cfg:    cfg,
				log:    newLogger(stderr, f.verbose),
				run:    f.run,
				stdin:  stdin,
				stdout: stdout,
				stderr: stderr,
			}
			return c.compileAll(cmd.Context(), args)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	f.register(cmd.Flags())
	return cmd
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then the dotenv file and the environment, then flags the user set.
func loadConfig(fs *pflag.FlagSet, f *flags) (*config.Config, error) {
	cfg := config.New()
	if f.configFile != "" {
		if err := cfg.LoadFile(f.configFile); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	key, err := apiKey(f.envFile)
	if err != nil {
		return nil, err
	}
	if key != "" {
		cfg.Oracle.APIKey = key
	}

	if fs.Changed("backend") {
		cfg.Backend = strings.TrimSpace(f.backend)
	}
	if fs.Changed("out-dir") {
		cfg.OutputDir = f.outDir
	}
	if fs.Changed("oracle") {
		cfg.Oracle.Kind = f.oracle
	}
	if fs.Changed("oracle-table") {
		cfg.Oracle.TablePath = f.oracleTable
		if !fs.Changed("oracle") {
			cfg.Oracle.Kind = config.OracleTable
		}
	}
	if fs.Changed("emit") {
		cfg.Emit = f.emit
	}
	if f.optimize {
		cfg.Optimize = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// apiKey looks up NLC_API_KEY in the process environment, then in the
// dotenv file at path. A missing file is not an error.
func apiKey(path string) (string, error) {
	env := viper.New()
	if err := env.BindEnv("nlc_api_key", "NLC_API_KEY"); err != nil {
		return "", fmt.Errorf("binding environment: %w", err)
	}
	if path != "" {
		env.SetConfigFile(path)
		env.SetConfigType("env")
		if err := env.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return env.GetString("nlc_api_key"), nil
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}
	return zerolog.New(out).Level(level)
}
