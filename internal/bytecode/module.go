// Package bytecode defines the stack-machine module produced by the
// bytecode backend, its file encoding and a disassembler.
package bytecode

import "fmt"

// Kind is the runtime type of a value slot.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Opcode is a single VM operation. Operands live in Instr.A and Instr.B.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpConst       // push Consts[A]
	OpLoad        // push local A
	OpStore       // pop into local A
	OpLoadGlobal  // push global A
	OpStoreGlobal // pop into global A
	OpPop         // discard top

	OpAddI
	OpSubI
	OpMulI
	OpDivI
	OpModI
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpConcat
	OpI2F // convert Integer to Float; A=0 top of stack, A=1 the value below it

	OpEqI
	OpNeI
	OpLtI
	OpLeI
	OpGtI
	OpGeI
	OpEqF
	OpNeF
	OpLtF
	OpLeF
	OpGtF
	OpGeF
	OpEqS
	OpNeS
	OpEqB
	OpNeB

	OpJump        // jump to A
	OpJumpIfFalse // pop Bool, jump to A when false
	OpCall        // call Funcs[A] with B arguments
	OpReturn      // return top of stack
	OpReturnVoid  // return without value

	OpPrint // pop value of Kind A, print it with a newline
	OpWrite // pop String, print it without a newline
	OpRead  // read a line, push it parsed as Kind A
)

var opNames = [...]string{
	OpNop:         "nop",
	OpConst:       "const",
	OpLoad:        "load",
	OpStore:       "store",
	OpLoadGlobal:  "load.g",
	OpStoreGlobal: "store.g",
	OpPop:         "pop",
	OpAddI:        "add.i",
	OpSubI:        "sub.i",
	OpMulI:        "mul.i",
	OpDivI:        "div.i",
	OpModI:        "mod.i",
	OpAddF:        "add.f",
	OpSubF:        "sub.f",
	OpMulF:        "mul.f",
	OpDivF:        "div.f",
	OpConcat:      "concat",
	OpI2F:         "i2f",
	OpEqI:         "eq.i",
	OpNeI:         "ne.i",
	OpLtI:         "lt.i",
	OpLeI:         "le.i",
	OpGtI:         "gt.i",
	OpGeI:         "ge.i",
	OpEqF:         "eq.f",
	OpNeF:         "ne.f",
	OpLtF:         "lt.f",
	OpLeF:         "le.f",
	OpGtF:         "gt.f",
	OpGeF:         "ge.f",
	OpEqS:         "eq.s",
	OpNeS:         "ne.s",
	OpEqB:         "eq.b",
	OpNeB:         "ne.b",
	OpJump:        "jump",
	OpJumpIfFalse: "jump.false",
	OpCall:        "call",
	OpReturn:      "ret",
	OpReturnVoid:  "ret.void",
	OpPrint:       "print",
	OpWrite:       "write",
	OpRead:        "read",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	return int(op) < len(opNames) && opNames[op] != ""
}

// Instr is one instruction.
type Instr struct {
	Op Opcode `cbor:"o"`
	A  int32  `cbor:"a,omitempty"`
	B  int32  `cbor:"b,omitempty"`
}

// Const is a constant pool entry. Only the field matching Kind is used.
type Const struct {
	Kind  Kind    `cbor:"k"`
	Int   int64   `cbor:"i,omitempty"`
	Float float64 `cbor:"f"` // Kept when zero: -0.0 must survive encoding
	Bool  bool    `cbor:"b,omitempty"`
	Str   string  `cbor:"s,omitempty"`
}

// Slot names a global.
type Slot struct {
	Name string `cbor:"n"`
	Kind Kind   `cbor:"k"`
}

// Func is a compiled function. Locals lists the kinds of every frame slot,
// parameters first.
type Func struct {
	Name      string  `cbor:"n"`
	NumParams int     `cbor:"p"`
	Locals    []Kind  `cbor:"l"`
	Return    Kind    `cbor:"r"`
	Code      []Instr `cbor:"c"`
}

// Module is a complete program. Init and Entry index Funcs, or are -1.
type Module struct {
	Consts  []Const `cbor:"consts"`
	Globals []Slot  `cbor:"globals"`
	Funcs   []Func  `cbor:"funcs"`
	Init    int     `cbor:"init"`
	Entry   int     `cbor:"entry"`
}

// Verify checks that every operand refers to something that exists.
func (m *Module) Verify() error {
	if m.Init < -1 || m.Init >= len(m.Funcs) {
		return fmt.Errorf("init function %d out of range", m.Init)
	}
	if m.Entry < -1 || m.Entry >= len(m.Funcs) {
		return fmt.Errorf("entry function %d out of range", m.Entry)
	}
	if m.Entry >= 0 && m.Funcs[m.Entry].NumParams != 0 {
		return fmt.Errorf("entry function %s takes parameters", m.Funcs[m.Entry].Name)
	}
	for fi, f := range m.Funcs {
		if f.NumParams < 0 || f.NumParams > len(f.Locals) {
			return fmt.Errorf("func %d (%s): %d params but %d locals", fi, f.Name, f.NumParams, len(f.Locals))
		}
		for pc, in := range f.Code {
			if err := m.verifyInstr(f, in); err != nil {
				return fmt.Errorf("func %d (%s) at %04d: %w", fi, f.Name, pc, err)
			}
		}
	}
	return nil
}

func (m *Module) verifyInstr(f Func, in Instr) error {
	a := int(in.A)
	inRange := func(n int) bool { return a >= 0 && a < n }
	switch in.Op {
	case OpConst:
		if !inRange(len(m.Consts)) {
			return fmt.Errorf("constant %d out of range", a)
		}
	case OpLoad, OpStore:
		if !inRange(len(f.Locals)) {
			return fmt.Errorf("local %d out of range", a)
		}
	case OpLoadGlobal, OpStoreGlobal:
		if !inRange(len(m.Globals)) {
			return fmt.Errorf("global %d out of range", a)
		}
	case OpJump, OpJumpIfFalse:
		if a < 0 || a > len(f.Code) {
			return fmt.Errorf("jump target %d out of range", a)
		}
	case OpCall:
		if !inRange(len(m.Funcs)) {
			return fmt.Errorf("function %d out of range", a)
		}
		if int(in.B) != m.Funcs[a].NumParams {
			return fmt.Errorf("call to %s with %d arguments, want %d", m.Funcs[a].Name, in.B, m.Funcs[a].NumParams)
		}
	case OpI2F:
		if a != 0 && a != 1 {
			return fmt.Errorf("i2f depth %d", a)
		}
	default:
		if !in.Op.Valid() {
			return fmt.Errorf("unknown opcode %d", uint8(in.Op))
		}
	}
	return nil
}
