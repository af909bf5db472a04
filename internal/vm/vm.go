// Package vm executes bytecode modules.
package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"nlc/internal/bytecode"
)

// DefaultMaxDepth bounds nested calls.
const DefaultMaxDepth = 4096

// checkEvery is how many instructions run between context checks.
const checkEvery = 1024

// RuntimeError reports a failure while executing a module.
type RuntimeError struct {
	Func string
	PC   int
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error in %s at %04d: %s", e.Func, e.PC, e.Msg)
}

// VM runs one module. A VM is not safe for concurrent use; create one per
// run.
type VM struct {
	mod      *bytecode.Module
	stdout   io.Writer
	stdin    io.Reader
	maxDepth int
	log      zerolog.Logger

	out     *bufio.Writer
	in      *bufio.Reader
	globals []Value
	depth   int
	steps   int
}

// Option configures a VM.
type Option func(*VM)

// WithStdout sets where Print output goes. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(v *VM) { v.stdout = w }
}

// WithStdin sets where Input reads from. Defaults to os.Stdin.
func WithStdin(r io.Reader) Option {
	return func(v *VM) { v.stdin = r }
}

// WithMaxDepth bounds nested calls.
func WithMaxDepth(n int) Option {
	return func(v *VM) { v.maxDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(v *VM) { v.log = l }
}

// New returns a VM for mod.
func New(mod *bytecode.Module, opts ...Option) *VM {
	v := &VM{
		mod:      mod,
		stdout:   os.Stdout,
		stdin:    os.Stdin,
		maxDepth: DefaultMaxDepth,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With().Str("component", "vm").Logger()
	return v
}

// Run initializes globals, runs the entry function and returns the exit
// code. An Integer result of the entry function is truncated to its low
// byte, as a POSIX exit status is.
func (v *VM) Run(ctx context.Context) (code int, err error) {
	if err := v.mod.Verify(); err != nil {
		return 0, fmt.Errorf("invalid module: %w", err)
	}
	v.out = bufio.NewWriter(v.stdout)
	v.in = bufio.NewReader(v.stdin)
	defer func() {
		if ferr := v.out.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("writing output: %w", ferr)
		}
	}()

	v.globals = make([]Value, len(v.mod.Globals))
	for i, g := range v.mod.Globals {
		v.globals[i] = Zero(g.Kind)
	}
	v.depth, v.steps = 0, 0

	if v.mod.Init >= 0 {
		if _, err := v.call(ctx, v.mod.Init, nil); err != nil {
			return 0, err
		}
	}
	if v.mod.Entry < 0 {
		return 0, nil
	}
	res, err := v.call(ctx, v.mod.Entry, nil)
	if err != nil {
		return 0, err
	}
	v.log.Debug().Int("steps", v.steps).Msg("program finished")
	if res.Kind == bytecode.KindInt {
		return int(uint8(res.I)), nil
	}
	return 0, nil
}

func (v *VM) call(ctx context.Context, fi int, args []Value) (Value, error) {
	f := &v.mod.Funcs[fi]
	if v.depth >= v.maxDepth {
		return Value{}, &RuntimeError{Func: f.Name, Msg: fmt.Sprintf("call depth exceeds %d", v.maxDepth)}
	}
	v.depth++
	defer func() { v.depth-- }()

	locals := make([]Value, len(f.Locals))
	for i, k := range f.Locals {
		locals[i] = Zero(k)
	}
	copy(locals, args)

	var stack []Value
	fail := func(pc int, format string, a ...any) error {
		return &RuntimeError{Func: f.Name, PC: pc, Msg: fmt.Sprintf(format, a...)}
	}
	pop := func() Value {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top
	}

	for pc := 0; pc < len(f.Code); {
		v.steps++
		if v.steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Value{}, err
			}
		}
		in := f.Code[pc]
		if need := stackNeeds(in); len(stack) < need {
			return Value{}, fail(pc, "stack underflow in %s", in.Op)
		}
		pc++

		switch in.Op {
		case bytecode.OpNop:
		case bytecode.OpConst:
			stack = append(stack, fromConst(v.mod.Consts[in.A]))
		case bytecode.OpLoad:
			stack = append(stack, locals[in.A])
		case bytecode.OpStore:
			locals[in.A] = pop()
		case bytecode.OpLoadGlobal:
			stack = append(stack, v.globals[in.A])
		case bytecode.OpStoreGlobal:
			v.globals[in.A] = pop()
		case bytecode.OpPop:
			pop()

		case bytecode.OpAddI, bytecode.OpSubI, bytecode.OpMulI, bytecode.OpDivI, bytecode.OpModI:
			r, l := pop(), pop()
			res, err := intArith(in.Op, l.I, r.I)
			if err != nil {
				return Value{}, fail(pc-1, "%v", err)
			}
			stack = append(stack, Value{Kind: bytecode.KindInt, I: res})
		case bytecode.OpAddF, bytecode.OpSubF, bytecode.OpMulF, bytecode.OpDivF:
			r, l := pop(), pop()
			stack = append(stack, Value{Kind: bytecode.KindFloat, F: floatArith(in.Op, l.F, r.F)})
		case bytecode.OpConcat:
			r, l := pop(), pop()
			stack = append(stack, Value{Kind: bytecode.KindString, S: l.S + r.S})
		case bytecode.OpI2F:
			i := len(stack) - 1 - int(in.A)
			stack[i] = Value{Kind: bytecode.KindFloat, F: float64(stack[i].I)}

		case bytecode.OpEqI, bytecode.OpNeI, bytecode.OpLtI, bytecode.OpLeI, bytecode.OpGtI, bytecode.OpGeI:
			r, l := pop(), pop()
			stack = append(stack, boolValue(compareOp(in.Op, cmpInt(l.I, r.I))))
		case bytecode.OpEqF, bytecode.OpNeF, bytecode.OpLtF, bytecode.OpLeF, bytecode.OpGtF, bytecode.OpGeF:
			r, l := pop(), pop()
			stack = append(stack, boolValue(floatCompare(in.Op, l.F, r.F)))
		case bytecode.OpEqS:
			r, l := pop(), pop()
			stack = append(stack, boolValue(l.S == r.S))
		case bytecode.OpNeS:
			r, l := pop(), pop()
			stack = append(stack, boolValue(l.S != r.S))
		case bytecode.OpEqB:
			r, l := pop(), pop()
			stack = append(stack, boolValue(l.B == r.B))
		case bytecode.OpNeB:
			r, l := pop(), pop()
			stack = append(stack, boolValue(l.B != r.B))

		case bytecode.OpJump:
			pc = int(in.A)
		case bytecode.OpJumpIfFalse:
			if c := pop(); !c.B {
				pc = int(in.A)
			}
		case bytecode.OpCall:
			n := int(in.B)
			args := make([]Value, n)
			copy(args, stack[len(stack)-n:])
			stack = stack[:len(stack)-n]
			res, err := v.call(ctx, int(in.A), args)
			if err != nil {
				return Value{}, err
			}
			if v.mod.Funcs[in.A].Return != bytecode.KindVoid {
				stack = append(stack, res)
			}
		case bytecode.OpReturn:
			return pop(), nil
		case bytecode.OpReturnVoid:
			return Value{}, nil

		case bytecode.OpPrint:
			val := pop()
			if _, err := v.out.WriteString(Format(val) + "\n"); err != nil {
				return Value{}, fmt.Errorf("writing output: %w", err)
			}
		case bytecode.OpWrite:
			if _, err := v.out.WriteString(pop().S); err != nil {
				return Value{}, fmt.Errorf("writing output: %w", err)
			}
		case bytecode.OpRead:
			if err := v.out.Flush(); err != nil {
				return Value{}, fmt.Errorf("writing output: %w", err)
			}
			line, err := v.in.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return Value{}, fmt.Errorf("reading input: %w", err)
			}
			line = strings.TrimRight(line, "\r\n")
			stack = append(stack, parseInput(line, bytecode.Kind(in.A)))

		default:
			return Value{}, fail(pc-1, "bad opcode %s", in.Op)
		}
	}
	// Falling off the end returns the zero value of the result.
	return Zero(f.Return), nil
}

// stackNeeds is the number of operands in pops.
func stackNeeds(in bytecode.Instr) int {
	switch in.Op {
	case bytecode.OpStore, bytecode.OpStoreGlobal, bytecode.OpPop, bytecode.OpJumpIfFalse,
		bytecode.OpReturn, bytecode.OpPrint, bytecode.OpWrite:
		return 1
	case bytecode.OpI2F:
		return int(in.A) + 1
	case bytecode.OpCall:
		return int(in.B)
	case bytecode.OpConst, bytecode.OpLoad, bytecode.OpLoadGlobal, bytecode.OpJump,
		bytecode.OpReturnVoid, bytecode.OpRead, bytecode.OpNop:
		return 0
	}
	return 2
}

func boolValue(b bool) Value {
	return Value{Kind: bytecode.KindBool, B: b}
}

var errDivZero = errors.New("integer division by zero")

func intArith(op bytecode.Opcode, a, b int64) (int64, error) {
	switch op {
	case bytecode.OpAddI:
		return a + b, nil
	case bytecode.OpSubI:
		return a - b, nil
	case bytecode.OpMulI:
		return a * b, nil
	case bytecode.OpDivI:
		if b == 0 {
			return 0, errDivZero
		}
		return a / b, nil
	}
	if b == 0 {
		return 0, errDivZero
	}
	return a % b, nil
}

func floatArith(op bytecode.Opcode, a, b float64) float64 {
	switch op {
	case bytecode.OpAddF:
		return a + b
	case bytecode.OpSubF:
		return a - b
	case bytecode.OpMulF:
		return a * b
	}
	return a / b
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareOp(op bytecode.Opcode, c int) bool {
	switch op {
	case bytecode.OpEqI:
		return c == 0
	case bytecode.OpNeI:
		return c != 0
	case bytecode.OpLtI:
		return c < 0
	case bytecode.OpLeI:
		return c <= 0
	case bytecode.OpGtI:
		return c > 0
	}
	return c >= 0
}

// floatCompare follows IEEE semantics: every comparison with NaN is false
// except !=.
func floatCompare(op bytecode.Opcode, a, b float64) bool {
	switch op {
	case bytecode.OpEqF:
		return a == b
	case bytecode.OpNeF:
		return a != b
	case bytecode.OpLtF:
		return a < b
	case bytecode.OpLeF:
		return a <= b
	case bytecode.OpGtF:
		return a > b
	}
	return a >= b
}
