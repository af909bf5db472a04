// Package config provides configuration handling for nlc.
package config

import (
	"nlc/internal/extract"
	"nlc/internal/oracle"
)

// Emit modes: what nlc writes for each input.
const (
	EmitOutput = "output" // Backend output: C source or encoded bytecode
	EmitIPM    = "ipm"    // Program listing
	EmitDisasm = "disasm" // Bytecode disassembly
)

// Oracle kinds.
const (
	OracleRules  = "rules"
	OracleRemote = "remote"
	OracleTable  = "table"
)

// DefaultBackend is the backend used when none is configured.
const DefaultBackend = "c"

// DefaultOracle returns the default oracle settings: the offline rule
// oracle, with the remote model settings filled in for when it is selected.
func DefaultOracle() Oracle {
	return Oracle{
		Kind:            OracleRules,
		Endpoint:        oracle.DefaultEndpoint,
		Model:           oracle.DefaultModel,
		Timeout:         Duration(extract.DefaultTimeout),
		MinConfidence:   extract.DefaultMinConfidence,
		AmbiguityMargin: extract.DefaultAmbiguityMargin,
	}
}

// DefaultExtract returns the default extraction limits.
func DefaultExtract() Extract {
	return Extract{MaxStatements: extract.DefaultMaxStatements}
}

// DefaultToolchain returns the default toolchain settings: detect the
// compiler, no extra flags.
func DefaultToolchain() Toolchain {
	return Toolchain{}
}
