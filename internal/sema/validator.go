// Package sema validates an IPM program: name resolution, type checking and
// control-flow well-formedness.
package sema

import (
	"fmt"

	"nlc/internal/ipm"
)

// FuncInfo holds the frame layout of a validated function.
type FuncInfo struct {
	Symbol *Symbol
	Params []*Symbol
	Locals []*Symbol // Declared locals in traversal order; frame slots follow the params
}

// FrameSize returns the number of slots needed for params and locals.
func (fi *FuncInfo) FrameSize() int {
	return len(fi.Params) + len(fi.Locals)
}

// Validated is a Program that passed every check, together with the
// annotations collected while checking it. None of it is mutated after
// Validate returns.
type Validated struct {
	Program *ipm.Program
	Symbols *SymbolTable

	types map[ipm.Expr]ipm.Type
	refs  map[any]*Symbol
	funcs map[*ipm.Function]*FuncInfo
}

// TypeOf returns the type computed for e.
func (v *Validated) TypeOf(e ipm.Expr) ipm.Type {
	return v.types[e]
}

// Resolve returns the symbol a *ipm.VarRef, *ipm.Assign, *ipm.Input or
// *ipm.Call refers to.
func (v *Validated) Resolve(node any) *Symbol {
	return v.refs[node]
}

// Func returns the frame layout of f.
func (v *Validated) Func(f *ipm.Function) *FuncInfo {
	return v.funcs[f]
}

// Validate runs both passes over p. Declarations are visited in order, then
// statements in order, then expressions left to right; the first problem in
// that order is returned as a *ValidationError.
func Validate(p *ipm.Program) (*Validated, error) {
	if err := p.Check(); err != nil {
		return nil, &ValidationError{Kind: MalformedProgram, Msg: err.Error()}
	}

	c := &checker{
		v: &Validated{
			Program: p,
			Symbols: newSymbolTable(),
			types:   make(map[ipm.Expr]ipm.Type),
			refs:    make(map[any]*Symbol),
			funcs:   make(map[*ipm.Function]*FuncInfo),
		},
	}
	if err := c.register(); err != nil {
		return nil, err
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.v, nil
}

type checker struct {
	v *Validated

	decl    string        // Name of the declaration being checked
	fn      *ipm.Function // Function being checked, nil for globals
	info    *FuncInfo
	globals int // Globals visible to a global initializer; -1 inside functions
}

func (c *checker) errorf(kind ErrorKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Decl: c.decl, Msg: fmt.Sprintf(format, args...)}
}

// register is pass 1: every top-level signature goes into the symbol table,
// which makes forward references between functions legal.
func (c *checker) register() error {
	st := c.v.Symbols
	for _, d := range c.v.Program.Decls {
		var sym *Symbol
		switch d := d.(type) {
		case *ipm.Function:
			sig := &Signature{Return: d.Return}
			for _, p := range d.Params {
				sig.Params = append(sig.Params, p.Type)
			}
			sym = &Symbol{Name: d.Name, Kind: SymFunction, Type: d.Return, Sig: sig, Decl: d}
		case *ipm.Variable:
			sym = &Symbol{Name: d.Name, Kind: SymGlobal, Type: d.Type, Decl: d}
		}
		if !st.add(sym) {
			return &ValidationError{
				Kind: DuplicateDeclaration,
				Decl: d.DeclName(),
				Msg:  fmt.Sprintf("%q is already declared", d.DeclName()),
			}
		}
	}
	return nil
}

// check is pass 2: it walks every declaration body.
func (c *checker) check() error {
	global := newGlobalScope(c.v.Symbols)
	for _, d := range c.v.Program.Decls {
		c.decl = d.DeclName()
		switch d := d.(type) {
		case *ipm.Variable:
			if err := c.checkGlobal(d, global); err != nil {
				return err
			}
		case *ipm.Function:
			if err := c.checkFunction(d, global); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *checker) checkGlobal(d *ipm.Variable, global *scope) error {
	sym := c.v.Symbols.Lookup(d.Name)
	c.fn, c.info = nil, nil
	c.globals = sym.Index
	if d.Init == nil {
		return nil
	}
	t, err := c.valueType(d.Init, global)
	if err != nil {
		return err
	}
	if !assignable(d.Type, t) {
		return c.errorf(TypeMismatch, "cannot initialize %s %q with %s", d.Type, d.Name, t)
	}
	return nil
}

func (c *checker) checkFunction(f *ipm.Function, global *scope) error {
	c.fn = f
	c.globals = -1
	c.info = &FuncInfo{Symbol: c.v.Symbols.Lookup(f.Name)}
	c.v.funcs[f] = c.info

	if f.Name == "main" {
		if len(f.Params) != 0 {
			return c.errorf(TypeMismatch, "main must not take parameters")
		}
		if f.Return.Kind != ipm.KindVoid && f.Return.Kind != ipm.KindInteger {
			return c.errorf(TypeMismatch, "main must return Void or Integer, not %s", f.Return)
		}
	}

	fnScope := newScope(global)
	for i, p := range f.Params {
		sym := &Symbol{Name: p.Name, Kind: SymParam, Type: p.Type, Index: i}
		if !fnScope.define(sym) {
			return c.errorf(DuplicateDeclaration, "parameter %q is declared twice", p.Name)
		}
		c.info.Params = append(c.info.Params, sym)
	}

	if err := c.checkBlock(f.Body, fnScope); err != nil {
		return err
	}
	if f.Return.Kind != ipm.KindVoid && !blockReturns(f.Body) {
		return c.errorf(InvalidControlFlow, "missing return on some path of %s function", f.Return)
	}
	return nil
}

func (c *checker) checkBlock(body []ipm.Stmt, s *scope) error {
	for _, st := range body {
		if err := c.checkStmt(st, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkStmt(st ipm.Stmt, s *scope) error {
	switch st := st.(type) {
	case *ipm.Assign:
		vt, err := c.valueType(st.Value, s)
		if err != nil {
			return err
		}
		var target *Symbol
		if st.Decl != nil {
			if target, err = c.declareLocal(st.Name, *st.Decl, s); err != nil {
				return err
			}
		} else if target, err = c.lookupVariable(st.Name, s); err != nil {
			return err
		}
		c.v.refs[st] = target
		if !assignable(target.Type, vt) {
			return c.errorf(TypeMismatch, "cannot assign %s to %s %q", vt, target.Type, st.Name)
		}
		return nil

	case *ipm.CallStmt:
		_, err := c.exprType(st.Call, s)
		return err

	case *ipm.If:
		if err := c.condition(st.Cond, s, "if"); err != nil {
			return err
		}
		if err := c.checkBlock(st.Then, newScope(s)); err != nil {
			return err
		}
		return c.checkBlock(st.Else, newScope(s))

	case *ipm.Loop:
		if st.Cond != nil {
			if err := c.condition(st.Cond, s, "loop"); err != nil {
				return err
			}
		}
		if err := c.checkBlock(st.Body, newScope(s)); err != nil {
			return err
		}
		if st.Cond == nil && !containsReturn(st.Body) {
			return c.errorf(InvalidControlFlow, "loop without condition never exits")
		}
		return nil

	case *ipm.Return:
		if c.fn.Return.Kind == ipm.KindVoid {
			if st.Value != nil {
				return c.errorf(TypeMismatch, "Void function returns a value")
			}
			return nil
		}
		if st.Value == nil {
			return c.errorf(TypeMismatch, "missing return value of type %s", c.fn.Return)
		}
		vt, err := c.valueType(st.Value, s)
		if err != nil {
			return err
		}
		if !assignable(c.fn.Return, vt) {
			return c.errorf(TypeMismatch, "cannot return %s from %s function", vt, c.fn.Return)
		}
		return nil

	case *ipm.Print:
		_, err := c.valueType(st.Value, s)
		return err

	case *ipm.Input:
		var target *Symbol
		var err error
		if st.Decl != nil {
			target, err = c.declareLocal(st.Name, *st.Decl, s)
		} else {
			target, err = c.lookupVariable(st.Name, s)
		}
		if err != nil {
			return err
		}
		c.v.refs[st] = target
		if !target.Type.IsScalar() {
			return c.errorf(TypeMismatch, "cannot read %s %q from input", target.Type, st.Name)
		}
		return nil
	}
	return c.errorf(TypeMismatch, "unknown statement %T", st)
}

func (c *checker) condition(e ipm.Expr, s *scope, what string) error {
	t, err := c.valueType(e, s)
	if err != nil {
		return err
	}
	if t.Kind != ipm.KindBool {
		return c.errorf(TypeMismatch, "%s condition is %s, not Bool", what, t)
	}
	return nil
}

func (c *checker) declareLocal(name string, t ipm.Type, s *scope) (*Symbol, error) {
	sym := &Symbol{
		Name:  name,
		Kind:  SymLocal,
		Type:  t,
		Index: len(c.info.Params) + len(c.info.Locals),
	}
	if !s.define(sym) {
		return nil, c.errorf(DuplicateDeclaration, "%q is already declared in this block", name)
	}
	c.info.Locals = append(c.info.Locals, sym)
	return sym, nil
}

func (c *checker) lookupVariable(name string, s *scope) (*Symbol, error) {
	sym := s.lookup(name)
	if sym == nil || (sym.Kind == SymGlobal && c.globals >= 0 && sym.Index >= c.globals) {
		return nil, c.errorf(UndefinedSymbol, "undefined variable %q", name)
	}
	if !sym.IsVariable() {
		return nil, c.errorf(TypeMismatch, "function %q used as a variable", name)
	}
	return sym, nil
}

// valueType is exprType for positions that need a value.
func (c *checker) valueType(e ipm.Expr, s *scope) (ipm.Type, error) {
	t, err := c.exprType(e, s)
	if err != nil {
		return t, err
	}
	if t.Kind == ipm.KindVoid {
		return t, c.errorf(TypeMismatch, "%s has no value", ipm.FormatExpr(e))
	}
	return t, nil
}

func (c *checker) exprType(e ipm.Expr, s *scope) (ipm.Type, error) {
	t, err := c.computeType(e, s)
	if err == nil {
		c.v.types[e] = t
	}
	return t, err
}

func (c *checker) computeType(e ipm.Expr, s *scope) (ipm.Type, error) {
	switch e := e.(type) {
	case *ipm.Literal:
		return e.Type, nil

	case *ipm.VarRef:
		sym, err := c.lookupVariable(e.Name, s)
		if err != nil {
			return ipm.Type{}, err
		}
		c.v.refs[e] = sym
		return sym.Type, nil

	case *ipm.Binary:
		lt, err := c.valueType(e.Left, s)
		if err != nil {
			return lt, err
		}
		rt, err := c.valueType(e.Right, s)
		if err != nil {
			return rt, err
		}
		t, ok := BinaryResult(e.Op, lt, rt)
		if !ok {
			return t, c.errorf(TypeMismatch, "operator %s not defined on %s and %s", e.Op, lt, rt)
		}
		return t, nil

	case *ipm.Call:
		sym := s.lookup(e.Name)
		if sym == nil {
			return ipm.Type{}, c.errorf(UndefinedSymbol, "undefined function %q", e.Name)
		}
		if sym.Kind != SymFunction {
			return ipm.Type{}, c.errorf(TypeMismatch, "%s %q is not a function", sym.Kind, e.Name)
		}
		c.v.refs[e] = sym
		if len(e.Args) != len(sym.Sig.Params) {
			return ipm.Type{}, c.errorf(TypeMismatch, "%s expects %d arguments, got %d", e.Name, len(sym.Sig.Params), len(e.Args))
		}
		for i, a := range e.Args {
			at, err := c.valueType(a, s)
			if err != nil {
				return at, err
			}
			if !assignable(sym.Sig.Params[i], at) {
				return at, c.errorf(TypeMismatch, "argument %d of %s: cannot use %s as %s", i+1, e.Name, at, sym.Sig.Params[i])
			}
		}
		return sym.Sig.Return, nil
	}
	return ipm.Type{}, c.errorf(TypeMismatch, "unknown expression %T", e)
}

// BinaryResult returns the type of applying op to operands of type l and r.
// Integer and Float unify to Float; + also concatenates strings.
func BinaryResult(op ipm.Op, l, r ipm.Type) (ipm.Type, bool) {
	switch {
	case op.IsLogical():
		if l.Kind == ipm.KindBool && r.Kind == ipm.KindBool {
			return ipm.Bool, true
		}
	case op == ipm.OpMod:
		if l.Kind == ipm.KindInteger && r.Kind == ipm.KindInteger {
			return ipm.Integer, true
		}
	case op.IsArithmetic():
		if op == ipm.OpAdd && l.Kind == ipm.KindString && r.Kind == ipm.KindString {
			return ipm.String, true
		}
		if l.IsNumeric() && r.IsNumeric() {
			return unify(l, r), true
		}
	case op == ipm.OpEq || op == ipm.OpNe:
		if l.IsNumeric() && r.IsNumeric() {
			return ipm.Bool, true
		}
		if l.Equal(r) && l.IsScalar() {
			return ipm.Bool, true
		}
	case op.IsComparison():
		if l.IsNumeric() && r.IsNumeric() {
			return ipm.Bool, true
		}
	}
	return ipm.Type{}, false
}

func unify(l, r ipm.Type) ipm.Type {
	if l.Kind == ipm.KindFloat || r.Kind == ipm.KindFloat {
		return ipm.Float
	}
	return ipm.Integer
}

// assignable reports whether a value of type from can be stored in a
// location of type to.
func assignable(to, from ipm.Type) bool {
	if to.Equal(from) {
		return true
	}
	return to.Kind == ipm.KindFloat && from.Kind == ipm.KindInteger
}

// Assignable is exported for the code generators, which insert the
// Integer to Float conversion.
func Assignable(to, from ipm.Type) bool { return assignable(to, from) }
