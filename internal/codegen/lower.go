package codegen

import (
	"fmt"
	"math"

	"nlc/internal/bytecode"
	"nlc/internal/ipm"
	"nlc/internal/sema"
)

// initName names the synthesized function that runs global initializers.
// It is not a valid IPM identifier, so it cannot collide with user code.
const initName = "<init>"

// lowerer builds a bytecode module from a validated program.
type lowerer struct {
	v      *sema.Validated
	mod    *bytecode.Module
	consts map[constKey]int32
	funcs  map[string]int32

	decl string
	fn   *bytecode.Func
	ret  ipm.Type
}

// Lower compiles a validated program into a bytecode module.
func Lower(v *sema.Validated) (*bytecode.Module, error) {
	l := &lowerer{
		v:      v,
		mod:    &bytecode.Module{Init: -1, Entry: -1},
		consts: make(map[constKey]int32),
		funcs:  make(map[string]int32),
	}

	for _, g := range v.Symbols.Globals() {
		l.mod.Globals = append(l.mod.Globals, bytecode.Slot{Name: g.Name, Kind: kindOf(g.Type)})
	}
	// Function indices are fixed before any body is lowered so calls can
	// refer forward.
	for _, sym := range v.Symbols.Functions() {
		l.funcs[sym.Name] = int32(len(l.mod.Funcs))
		l.mod.Funcs = append(l.mod.Funcs, bytecode.Func{Name: sym.Name})
		if sym.Name == "main" {
			l.mod.Entry = len(l.mod.Funcs) - 1
		}
	}

	for _, d := range v.Program.Decls {
		f, ok := d.(*ipm.Function)
		if !ok {
			continue
		}
		if err := l.function(f); err != nil {
			return nil, err
		}
	}
	if err := l.initializers(); err != nil {
		return nil, err
	}
	if err := l.mod.Verify(); err != nil {
		return nil, l.internal("lowered module does not verify: %v", err)
	}
	return l.mod, nil
}

func kindOf(t ipm.Type) bytecode.Kind {
	switch t.Kind {
	case ipm.KindInteger:
		return bytecode.KindInt
	case ipm.KindFloat:
		return bytecode.KindFloat
	case ipm.KindBool:
		return bytecode.KindBool
	case ipm.KindString:
		return bytecode.KindString
	case ipm.KindArray:
		return bytecode.KindArray
	}
	return bytecode.KindVoid
}

func (l *lowerer) unsupported(format string, args ...any) error {
	return &EmitError{Kind: UnsupportedFeature, Backend: Bytecode, Decl: l.decl, Msg: fmt.Sprintf(format, args...)}
}

func (l *lowerer) internal(format string, args ...any) error {
	return &EmitError{Kind: InternalLoweringError, Backend: Bytecode, Decl: l.decl, Msg: fmt.Sprintf(format, args...)}
}

func (l *lowerer) function(d *ipm.Function) error {
	l.decl = d.Name
	info := l.v.Func(d)
	if info == nil {
		return l.internal("function %s was not validated", d.Name)
	}
	l.fn = &l.mod.Funcs[l.funcs[d.Name]]
	l.ret = d.Return
	l.fn.NumParams = len(info.Params)
	l.fn.Return = kindOf(d.Return)
	l.fn.Locals = make([]bytecode.Kind, info.FrameSize())
	for _, p := range info.Params {
		l.fn.Locals[p.Index] = kindOf(p.Type)
	}
	for _, s := range info.Locals {
		l.fn.Locals[s.Index] = kindOf(s.Type)
	}

	if err := l.block(d.Body); err != nil {
		return err
	}
	if d.Return.Kind == ipm.KindVoid {
		l.emit(bytecode.OpReturnVoid, 0, 0)
	}
	return nil
}

// initializers appends the init function when any global has one.
func (l *lowerer) initializers() error {
	var inits []*ipm.Variable
	for _, d := range l.v.Program.Decls {
		if g, ok := d.(*ipm.Variable); ok && g.Init != nil {
			inits = append(inits, g)
		}
	}
	if len(inits) == 0 {
		return nil
	}
	l.mod.Funcs = append(l.mod.Funcs, bytecode.Func{Name: initName, Return: bytecode.KindVoid})
	l.mod.Init = len(l.mod.Funcs) - 1
	l.fn = &l.mod.Funcs[l.mod.Init]
	for _, g := range inits {
		l.decl = g.Name
		sym := l.v.Symbols.Lookup(g.Name)
		if err := l.value(g.Init, sym.Type); err != nil {
			return err
		}
		l.emit(bytecode.OpStoreGlobal, int32(sym.Index), 0)
	}
	l.emit(bytecode.OpReturnVoid, 0, 0)
	return nil
}

func (l *lowerer) emit(op bytecode.Opcode, a, b int32) int {
	l.fn.Code = append(l.fn.Code, bytecode.Instr{Op: op, A: a, B: b})
	return len(l.fn.Code) - 1
}

func (l *lowerer) here() int32 {
	return int32(len(l.fn.Code))
}

// patch points the jump at pc to the current position.
func (l *lowerer) patch(pc int) {
	l.fn.Code[pc].A = l.here()
}

// constKey identifies a pool entry. Floats compare by bit pattern so 0.0
// and -0.0 stay distinct and every NaN maps to one entry.
type constKey struct {
	kind bytecode.Kind
	i    int64
	f    uint64
	b    bool
	s    string
}

func (l *lowerer) constant(c bytecode.Const) int32 {
	key := constKey{kind: c.Kind, i: c.Int, f: math.Float64bits(c.Float), b: c.Bool, s: c.Str}
	if i, ok := l.consts[key]; ok {
		return i
	}
	i := int32(len(l.mod.Consts))
	l.mod.Consts = append(l.mod.Consts, c)
	l.consts[key] = i
	return i
}

func (l *lowerer) block(body []ipm.Stmt) error {
	for _, s := range body {
		if err := l.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) stmt(s ipm.Stmt) error {
	switch s := s.(type) {
	case *ipm.Assign:
		sym := l.v.Resolve(s)
		if sym == nil {
			return l.internal("unresolved target %q", s.Name)
		}
		if err := l.value(s.Value, sym.Type); err != nil {
			return err
		}
		l.store(sym)

	case *ipm.CallStmt:
		if err := l.expr(s.Call); err != nil {
			return err
		}
		if t := l.v.TypeOf(s.Call); t.Kind != ipm.KindVoid {
			l.emit(bytecode.OpPop, 0, 0)
		}

	case *ipm.If:
		if err := l.expr(s.Cond); err != nil {
			return err
		}
		toElse := l.emit(bytecode.OpJumpIfFalse, 0, 0)
		if err := l.block(s.Then); err != nil {
			return err
		}
		if len(s.Else) == 0 {
			l.patch(toElse)
			return nil
		}
		toEnd := l.emit(bytecode.OpJump, 0, 0)
		l.patch(toElse)
		if err := l.block(s.Else); err != nil {
			return err
		}
		l.patch(toEnd)

	case *ipm.Loop:
		start := l.here()
		exit := -1
		if s.Cond != nil {
			if err := l.expr(s.Cond); err != nil {
				return err
			}
			exit = l.emit(bytecode.OpJumpIfFalse, 0, 0)
		}
		if err := l.block(s.Body); err != nil {
			return err
		}
		l.emit(bytecode.OpJump, start, 0)
		if exit >= 0 {
			l.patch(exit)
		}

	case *ipm.Return:
		if s.Value == nil {
			l.emit(bytecode.OpReturnVoid, 0, 0)
			return nil
		}
		if err := l.value(s.Value, l.ret); err != nil {
			return err
		}
		l.emit(bytecode.OpReturn, 0, 0)

	case *ipm.Print:
		t := l.v.TypeOf(s.Value)
		if !t.IsScalar() {
			return l.unsupported("printing a value of type %s", t)
		}
		if err := l.expr(s.Value); err != nil {
			return err
		}
		l.emit(bytecode.OpPrint, int32(kindOf(t)), 0)

	case *ipm.Input:
		sym := l.v.Resolve(s)
		if sym == nil {
			return l.internal("unresolved target %q", s.Name)
		}
		if s.Prompt != "" {
			l.emit(bytecode.OpConst, l.constant(bytecode.Const{Kind: bytecode.KindString, Str: s.Prompt}), 0)
			l.emit(bytecode.OpWrite, 0, 0)
		}
		l.emit(bytecode.OpRead, int32(kindOf(sym.Type)), 0)
		l.store(sym)

	default:
		return l.internal("unknown statement %T", s)
	}
	return nil
}

func (l *lowerer) store(sym *sema.Symbol) {
	if sym.Kind == sema.SymGlobal {
		l.emit(bytecode.OpStoreGlobal, int32(sym.Index), 0)
		return
	}
	l.emit(bytecode.OpStore, int32(sym.Index), 0)
}

// value lowers e and converts the result to want.
func (l *lowerer) value(e ipm.Expr, want ipm.Type) error {
	if err := l.expr(e); err != nil {
		return err
	}
	if want.Kind == ipm.KindFloat && l.v.TypeOf(e).Kind == ipm.KindInteger {
		l.emit(bytecode.OpI2F, 0, 0)
	}
	return nil
}

func (l *lowerer) expr(e ipm.Expr) error {
	switch e := e.(type) {
	case *ipm.Literal:
		c := bytecode.Const{Kind: kindOf(e.Type)}
		switch e.Type.Kind {
		case ipm.KindInteger:
			c.Int = e.Int
		case ipm.KindFloat:
			c.Float = e.Float
		case ipm.KindBool:
			c.Bool = e.Bool
		case ipm.KindString:
			c.Str = e.Str
		default:
			return l.internal("literal of type %s", e.Type)
		}
		l.emit(bytecode.OpConst, l.constant(c), 0)

	case *ipm.VarRef:
		sym := l.v.Resolve(e)
		if sym == nil {
			return l.internal("unresolved variable %q", e.Name)
		}
		if sym.Kind == sema.SymGlobal {
			l.emit(bytecode.OpLoadGlobal, int32(sym.Index), 0)
		} else {
			l.emit(bytecode.OpLoad, int32(sym.Index), 0)
		}

	case *ipm.Binary:
		return l.binary(e)

	case *ipm.Call:
		sym := l.v.Resolve(e)
		if sym == nil || sym.Sig == nil {
			return l.internal("unresolved function %q", e.Name)
		}
		for i, a := range e.Args {
			if err := l.value(a, sym.Sig.Params[i]); err != nil {
				return err
			}
		}
		l.emit(bytecode.OpCall, l.funcs[sym.Name], int32(len(e.Args)))

	default:
		return l.internal("unknown expression %T", e)
	}
	return nil
}

var (
	intOps = map[ipm.Op]bytecode.Opcode{
		ipm.OpAdd: bytecode.OpAddI, ipm.OpSub: bytecode.OpSubI, ipm.OpMul: bytecode.OpMulI,
		ipm.OpDiv: bytecode.OpDivI, ipm.OpMod: bytecode.OpModI,
		ipm.OpEq: bytecode.OpEqI, ipm.OpNe: bytecode.OpNeI, ipm.OpLt: bytecode.OpLtI,
		ipm.OpLe: bytecode.OpLeI, ipm.OpGt: bytecode.OpGtI, ipm.OpGe: bytecode.OpGeI,
	}
	floatOps = map[ipm.Op]bytecode.Opcode{
		ipm.OpAdd: bytecode.OpAddF, ipm.OpSub: bytecode.OpSubF, ipm.OpMul: bytecode.OpMulF,
		ipm.OpDiv: bytecode.OpDivF,
		ipm.OpEq: bytecode.OpEqF, ipm.OpNe: bytecode.OpNeF, ipm.OpLt: bytecode.OpLtF,
		ipm.OpLe: bytecode.OpLeF, ipm.OpGt: bytecode.OpGtF, ipm.OpGe: bytecode.OpGeF,
	}
	stringOps = map[ipm.Op]bytecode.Opcode{
		ipm.OpAdd: bytecode.OpConcat, ipm.OpEq: bytecode.OpEqS, ipm.OpNe: bytecode.OpNeS,
	}
	boolOps = map[ipm.Op]bytecode.Opcode{
		ipm.OpEq: bytecode.OpEqB, ipm.OpNe: bytecode.OpNeB,
	}
)

func (l *lowerer) binary(e *ipm.Binary) error {
	switch e.Op {
	case ipm.OpAnd:
		// left false: push false without evaluating right.
		if err := l.expr(e.Left); err != nil {
			return err
		}
		toFalse := l.emit(bytecode.OpJumpIfFalse, 0, 0)
		if err := l.expr(e.Right); err != nil {
			return err
		}
		toEnd := l.emit(bytecode.OpJump, 0, 0)
		l.patch(toFalse)
		l.emit(bytecode.OpConst, l.constant(bytecode.Const{Kind: bytecode.KindBool, Bool: false}), 0)
		l.patch(toEnd)
		return nil

	case ipm.OpOr:
		if err := l.expr(e.Left); err != nil {
			return err
		}
		toRight := l.emit(bytecode.OpJumpIfFalse, 0, 0)
		l.emit(bytecode.OpConst, l.constant(bytecode.Const{Kind: bytecode.KindBool, Bool: true}), 0)
		toEnd := l.emit(bytecode.OpJump, 0, 0)
		l.patch(toRight)
		if err := l.expr(e.Right); err != nil {
			return err
		}
		l.patch(toEnd)
		return nil
	}

	lt, rt := l.v.TypeOf(e.Left), l.v.TypeOf(e.Right)
	var (
		ops     map[ipm.Op]bytecode.Opcode
		operand ipm.Type
	)
	switch {
	case lt.IsNumeric() && rt.IsNumeric():
		operand = ipm.Integer
		ops = intOps
		if lt.Kind == ipm.KindFloat || rt.Kind == ipm.KindFloat {
			operand = ipm.Float
			ops = floatOps
		}
	case lt.Kind == ipm.KindString:
		operand, ops = ipm.String, stringOps
	case lt.Kind == ipm.KindBool:
		operand, ops = ipm.Bool, boolOps
	}
	op, ok := ops[e.Op]
	if !ok {
		return l.internal("operator %s on %s and %s", e.Op, lt, rt)
	}
	if err := l.value(e.Left, operand); err != nil {
		return err
	}
	if err := l.value(e.Right, operand); err != nil {
		return err
	}
	l.emit(op, 0, 0)
	return nil
}
