package codegen

import (
	"fmt"
	"strings"
)

// Backend selects the output format.
type Backend int

const (
	// NativeSource emits a C99 translation unit.
	NativeSource Backend = iota
	// Bytecode emits an encoded bytecode module for the VM.
	Bytecode
)

// Backends lists every backend.
var Backends = []Backend{NativeSource, Bytecode}

func (b Backend) String() string {
	switch b {
	case NativeSource:
		return "c"
	case Bytecode:
		return "bytecode"
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

// Extension returns the file extension of the backend's output.
func (b Backend) Extension() string {
	if b == Bytecode {
		return ".nlbc"
	}
	return ".c"
}

// ParseBackend accepts c, native, bytecode and bc, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "native":
		return NativeSource, nil
	case "bytecode", "bc":
		return Bytecode, nil
	}
	return 0, fmt.Errorf("unknown backend %q (want c or bytecode)", s)
}
