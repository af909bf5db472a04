// Package optimize holds Program to Program transforms applied between
// validation and emission.
package optimize

import (
	"math"

	"nlc/internal/ipm"
)

// Fold returns a copy of p in which binary expressions over literals are
// replaced by their value. The input is never modified. Integer division
// or remainder by zero, integer overflow and non-finite float results are
// left for run time.
func Fold(p *ipm.Program) *ipm.Program {
	out := &ipm.Program{Decls: make([]ipm.Decl, 0, len(p.Decls))}
	for _, d := range p.Decls {
		out.Decls = append(out.Decls, foldDecl(d))
	}
	return out
}

func foldDecl(d ipm.Decl) ipm.Decl {
	switch d := d.(type) {
	case *ipm.Function:
		f := &ipm.Function{Name: d.Name, Return: d.Return, Body: foldBlock(d.Body)}
		if d.Params != nil {
			f.Params = append([]ipm.Param(nil), d.Params...)
		}
		return f
	case *ipm.Variable:
		v := &ipm.Variable{Name: d.Name, Type: d.Type}
		if d.Init != nil {
			v.Init = FoldExpr(d.Init)
		}
		return v
	}
	return d
}

func foldBlock(body []ipm.Stmt) []ipm.Stmt {
	if body == nil {
		return nil
	}
	out := make([]ipm.Stmt, len(body))
	for i, s := range body {
		out[i] = foldStmt(s)
	}
	return out
}

func copyType(t *ipm.Type) *ipm.Type {
	if t == nil {
		return nil
	}
	return ipm.TypePtr(*t)
}

func foldStmt(s ipm.Stmt) ipm.Stmt {
	switch s := s.(type) {
	case *ipm.Assign:
		return &ipm.Assign{Name: s.Name, Decl: copyType(s.Decl), Value: FoldExpr(s.Value)}
	case *ipm.CallStmt:
		return &ipm.CallStmt{Call: FoldExpr(s.Call).(*ipm.Call)}
	case *ipm.If:
		return &ipm.If{Cond: FoldExpr(s.Cond), Then: foldBlock(s.Then), Else: foldBlock(s.Else)}
	case *ipm.Loop:
		l := &ipm.Loop{Body: foldBlock(s.Body)}
		if s.Cond != nil {
			l.Cond = FoldExpr(s.Cond)
		}
		return l
	case *ipm.Return:
		r := &ipm.Return{}
		if s.Value != nil {
			r.Value = FoldExpr(s.Value)
		}
		return r
	case *ipm.Print:
		return &ipm.Print{Value: FoldExpr(s.Value)}
	case *ipm.Input:
		return &ipm.Input{Name: s.Name, Decl: copyType(s.Decl), Prompt: s.Prompt}
	}
	return s
}

// FoldExpr returns a folded copy of e.
func FoldExpr(e ipm.Expr) ipm.Expr {
	switch e := e.(type) {
	case *ipm.Literal:
		c := *e
		return &c
	case *ipm.VarRef:
		return &ipm.VarRef{Name: e.Name}
	case *ipm.Call:
		c := &ipm.Call{Name: e.Name}
		if e.Args != nil {
			c.Args = make([]ipm.Expr, len(e.Args))
			for i, a := range e.Args {
				c.Args[i] = FoldExpr(a)
			}
		}
		return c
	case *ipm.Binary:
		l, r := FoldExpr(e.Left), FoldExpr(e.Right)
		ll, lok := l.(*ipm.Literal)
		rl, rok := r.(*ipm.Literal)
		if lok && rok {
			if v, ok := evalBinary(e.Op, ll, rl); ok {
				return v
			}
		}
		return &ipm.Binary{Op: e.Op, Left: l, Right: r}
	}
	return e
}

func evalBinary(op ipm.Op, l, r *ipm.Literal) (*ipm.Literal, bool) {
	lk, rk := l.Type.Kind, r.Type.Kind
	switch {
	case lk == ipm.KindInteger && rk == ipm.KindInteger:
		return evalInt(op, l.Int, r.Int)
	case l.Type.IsNumeric() && r.Type.IsNumeric():
		return evalFloat(op, asFloat(l), asFloat(r))
	case lk == ipm.KindString && rk == ipm.KindString:
		switch op {
		case ipm.OpAdd:
			return ipm.Str(l.Str + r.Str), true
		case ipm.OpEq:
			return ipm.Bln(l.Str == r.Str), true
		case ipm.OpNe:
			return ipm.Bln(l.Str != r.Str), true
		}
	case lk == ipm.KindBool && rk == ipm.KindBool:
		switch op {
		case ipm.OpAnd:
			return ipm.Bln(l.Bool && r.Bool), true
		case ipm.OpOr:
			return ipm.Bln(l.Bool || r.Bool), true
		case ipm.OpEq:
			return ipm.Bln(l.Bool == r.Bool), true
		case ipm.OpNe:
			return ipm.Bln(l.Bool != r.Bool), true
		}
	}
	return nil, false
}

func asFloat(l *ipm.Literal) float64 {
	if l.Type.Kind == ipm.KindInteger {
		return float64(l.Int)
	}
	return l.Float
}

func evalInt(op ipm.Op, a, b int64) (*ipm.Literal, bool) {
	switch op {
	case ipm.OpAdd:
		s := a + b
		if (s > a) != (b > 0) {
			return nil, false
		}
		return ipm.Int(s), true
	case ipm.OpSub:
		d := a - b
		if (d < a) != (b > 0) {
			return nil, false
		}
		return ipm.Int(d), true
	case ipm.OpMul:
		if a == 0 || b == 0 {
			return ipm.Int(0), true
		}
		p := a * b
		if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return nil, false
		}
		return ipm.Int(p), true
	case ipm.OpDiv, ipm.OpMod:
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return nil, false
		}
		if op == ipm.OpDiv {
			return ipm.Int(a / b), true
		}
		return ipm.Int(a % b), true
	}
	return compare(op, cmpInt(a, b))
}

func evalFloat(op ipm.Op, a, b float64) (*ipm.Literal, bool) {
	var v float64
	switch op {
	case ipm.OpAdd:
		v = a + b
	case ipm.OpSub:
		v = a - b
	case ipm.OpMul:
		v = a * b
	case ipm.OpDiv:
		if b == 0 {
			return nil, false
		}
		v = a / b
	case ipm.OpMod:
		return nil, false
	default:
		if math.IsNaN(a) || math.IsNaN(b) {
			return nil, false
		}
		return compare(op, cmpFloat(a, b))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return ipm.Flt(v), true
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

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compare(op ipm.Op, c int) (*ipm.Literal, bool) {
	switch op {
	case ipm.OpEq:
		return ipm.Bln(c == 0), true
	case ipm.OpNe:
		return ipm.Bln(c != 0), true
	case ipm.OpLt:
		return ipm.Bln(c < 0), true
	case ipm.OpLe:
		return ipm.Bln(c <= 0), true
	case ipm.OpGt:
		return ipm.Bln(c > 0), true
	case ipm.OpGe:
		return ipm.Bln(c >= 0), true
	}
	return nil, false
}
