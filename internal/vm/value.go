package vm

import (
	"math"
	"strconv"
	"strings"

	"nlc/internal/bytecode"
)

// Value is a runtime value. Only the field matching Kind is meaningful.
type Value struct {
	Kind bytecode.Kind
	I    int64
	F    float64
	B    bool
	S    string
	A    []Value
}

// Zero returns the zero value of kind k.
func Zero(k bytecode.Kind) Value {
	return Value{Kind: k}
}

func fromConst(c bytecode.Const) Value {
	return Value{Kind: c.Kind, I: c.Int, F: c.Float, B: c.Bool, S: c.Str}
}

// Format renders v the way the C backend's printf calls do.
func Format(v Value) string {
	switch v.Kind {
	case bytecode.KindInt:
		return strconv.FormatInt(v.I, 10)
	case bytecode.KindFloat:
		return FormatFloat(v.F)
	case bytecode.KindBool:
		return strconv.FormatBool(v.B)
	case bytecode.KindString:
		return v.S
	case bytecode.KindArray:
		parts := make([]string, len(v.A))
		for i, e := range v.A {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}

// FormatFloat matches C's "%g": six significant digits, trailing zeros
// trimmed.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// parseInput converts one input line to kind k. Unparseable numbers read
// as zero, like the C runtime's strtoll and strtod.
func parseInput(line string, k bytecode.Kind) Value {
	v := Value{Kind: k}
	s := strings.TrimSpace(line)
	switch k {
	case bytecode.KindInt:
		v.I, _ = strconv.ParseInt(s, 10, 64)
	case bytecode.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			v.F = f
		}
	case bytecode.KindBool:
		switch strings.ToLower(s) {
		case "true", "yes", "y", "1":
			v.B = true
		}
	case bytecode.KindString:
		v.S = line
	}
	return v
}
