package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"nlc/internal/codegen"
)

// Config represents the complete configuration.
type Config struct {
	Backend   string    `yaml:"backend" json:"backend"`
	Optimize  bool      `yaml:"optimize" json:"optimize"`
	OutputDir string    `yaml:"outputDir" json:"outputDir"`
	Emit      string    `yaml:"emit" json:"emit"`
	Oracle    Oracle    `yaml:"oracle" json:"oracle"`
	Extract   Extract   `yaml:"extract" json:"extract"`
	Toolchain Toolchain `yaml:"toolchain" json:"toolchain"`
}

// Oracle configures how sentences are interpreted.
type Oracle struct {
	Kind            string   `yaml:"kind" json:"kind"`
	Endpoint        string   `yaml:"endpoint" json:"endpoint"`
	Model           string   `yaml:"model" json:"model"`
	APIKey          string   `yaml:"apiKey" json:"apiKey"`
	Timeout         Duration `yaml:"timeout" json:"timeout"`
	MinConfidence   float64  `yaml:"minConfidence" json:"minConfidence"`
	AmbiguityMargin float64  `yaml:"ambiguityMargin" json:"ambiguityMargin"`
	TablePath       string   `yaml:"tablePath" json:"tablePath"`
}

// Extract configures intent extraction.
type Extract struct {
	MaxStatements int `yaml:"maxStatements" json:"maxStatements"`
}

// Toolchain configures the C compiler driver.
type Toolchain struct {
	CC       string   `yaml:"cc" json:"cc"`
	Flags    []string `yaml:"flags" json:"flags"`
	KeepTemp bool     `yaml:"keepTemp" json:"keepTemp"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration like time.Duration.String.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Backend:   DefaultBackend,
		Emit:      EmitOutput,
		Oracle:    DefaultOracle(),
		Extract:   DefaultExtract(),
		Toolchain: DefaultToolchain(),
	}
}

// LoadFile loads configuration from a file (YAML or JSON based on extension)
// and merges it over the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var loaded Config
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		// Try YAML first, then JSON
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			if err := json.Unmarshal(data, &loaded); err != nil {
				return fmt.Errorf("unable to parse config as YAML or JSON")
			}
		}
	}

	c.merge(&loaded)
	return nil
}

// merge overrides the current values with every non-zero loaded value.
func (c *Config) merge(loaded *Config) {
	setString(&c.Backend, loaded.Backend)
	setString(&c.OutputDir, loaded.OutputDir)
	setString(&c.Emit, loaded.Emit)
	if loaded.Optimize {
		c.Optimize = true
	}

	o := loaded.Oracle
	setString(&c.Oracle.Kind, o.Kind)
	setString(&c.Oracle.Endpoint, o.Endpoint)
	setString(&c.Oracle.Model, o.Model)
	setString(&c.Oracle.APIKey, o.APIKey)
	setString(&c.Oracle.TablePath, o.TablePath)
	if o.Timeout != 0 {
		c.Oracle.Timeout = o.Timeout
	}
	if o.MinConfidence != 0 {
		c.Oracle.MinConfidence = o.MinConfidence
	}
	if o.AmbiguityMargin != 0 {
		c.Oracle.AmbiguityMargin = o.AmbiguityMargin
	}

	if loaded.Extract.MaxStatements != 0 {
		c.Extract.MaxStatements = loaded.Extract.MaxStatements
	}

	setString(&c.Toolchain.CC, loaded.Toolchain.CC)
	if loaded.Toolchain.Flags != nil {
		c.Toolchain.Flags = loaded.Toolchain.Flags
	}
	if loaded.Toolchain.KeepTemp {
		c.Toolchain.KeepTemp = true
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// BackendKind parses the configured backend.
func (c *Config) BackendKind() (codegen.Backend, error) {
	return codegen.ParseBackend(c.Backend)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	backend, err := c.BackendKind()
	if err != nil {
		result = multierror.Append(result, err)
	}
	switch c.Emit {
	case EmitOutput, EmitIPM:
	case EmitDisasm:
		if err == nil && backend != codegen.Bytecode {
			result = multierror.Append(result, errors.New("emit disasm requires the bytecode backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown emit mode %q (want output, ipm or disasm)", c.Emit))
	}

	switch c.Oracle.Kind {
	case OracleRules, OracleRemote:
	case OracleTable:
		if c.Oracle.TablePath == "" {
			result = multierror.Append(result, errors.New("table oracle needs oracle.tablePath"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown oracle %q (want rules, remote or table)", c.Oracle.Kind))
	}
	if c.Oracle.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("oracle timeout must be positive, got %s", c.Oracle.Timeout.Std()))
	}
	if c.Oracle.MinConfidence < 0 || c.Oracle.MinConfidence > 1 {
		result = multierror.Append(result, fmt.Errorf("oracle minConfidence %g is outside [0, 1]", c.Oracle.MinConfidence))
	}
	if c.Oracle.AmbiguityMargin < 0 {
		result = multierror.Append(result, fmt.Errorf("oracle ambiguityMargin %g is negative", c.Oracle.AmbiguityMargin))
	}
	if c.Extract.MaxStatements <= 0 {
		result = multierror.Append(result, fmt.Errorf("extract maxStatements must be positive, got %d", c.Extract.MaxStatements))
	}
	return result.ErrorOrNil()
}
