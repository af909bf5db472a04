package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Magic starts every encoded module.
const Magic = "NLBC"

// Version is the format version written after Magic.
const Version byte = 1

// ErrFormat reports data that is not a module of a supported version.
var ErrFormat = errors.New("not an nlc bytecode module")

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		MaxArrayElements: math.MaxInt32,
		MaxMapPairs:      1024,
		MaxNestedLevels:  32,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Encode serializes m. The output is deterministic: equal modules encode
// to equal bytes.
func Encode(m *Module) ([]byte, error) {
	payload, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding module: %w", err)
	}
	out := make([]byte, 0, len(Magic)+1+len(payload))
	out = append(out, Magic...)
	out = append(out, Version)
	return append(out, payload...), nil
}

// Decode parses and verifies an encoded module.
func Decode(data []byte) (*Module, error) {
	if len(data) < len(Magic)+1 || !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return nil, ErrFormat
	}
	if v := data[len(Magic)]; v != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrFormat, v, Version)
	}
	var m Module
	if err := decMode.Unmarshal(data[len(Magic)+1:], &m); err != nil {
		return nil, fmt.Errorf("decoding module: %w", err)
	}
	if err := m.Verify(); err != nil {
		return nil, fmt.Errorf("verifying module: %w", err)
	}
	return &m, nil
}
