package ipm

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders p as a stable, human-readable listing.
func Format(p *Program) string {
	var b strings.Builder
	for i, d := range p.Decls {
		if i > 0 {
			b.WriteByte('\n')
		}
		formatDecl(&b, d)
	}
	return b.String()
}

// FormatStmt renders a single statement on one or more lines.
func FormatStmt(s Stmt) string {
	var b strings.Builder
	formatStmt(&b, s, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func formatDecl(b *strings.Builder, d Decl) {
	switch d := d.(type) {
	case *Function:
		params := make([]string, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.Name + ": " + p.Type.String()
		}
		fmt.Fprintf(b, "func %s(%s) -> %s {\n", d.Name, strings.Join(params, ", "), d.Return)
		formatBlock(b, d.Body, 1)
		b.WriteString("}\n")
	case *Variable:
		fmt.Fprintf(b, "var %s: %s", d.Name, d.Type)
		if d.Init != nil {
			b.WriteString(" = " + FormatExpr(d.Init))
		}
		b.WriteByte('\n')
	}
}

func formatBlock(b *strings.Builder, body []Stmt, depth int) {
	for _, s := range body {
		formatStmt(b, s, depth)
	}
}

func formatStmt(b *strings.Builder, s Stmt, depth int) {
	indent := strings.Repeat("    ", depth)
	b.WriteString(indent)
	switch s := s.(type) {
	case *Assign:
		if s.Decl != nil {
			fmt.Fprintf(b, "let %s: %s = %s\n", s.Name, *s.Decl, FormatExpr(s.Value))
		} else {
			fmt.Fprintf(b, "%s = %s\n", s.Name, FormatExpr(s.Value))
		}
	case *CallStmt:
		b.WriteString(FormatExpr(s.Call) + "\n")
	case *If:
		fmt.Fprintf(b, "if %s {\n", FormatExpr(s.Cond))
		formatBlock(b, s.Then, depth+1)
		if len(s.Else) > 0 {
			b.WriteString(indent + "} else {\n")
			formatBlock(b, s.Else, depth+1)
		}
		b.WriteString(indent + "}\n")
	case *Loop:
		if s.Cond == nil {
			b.WriteString("loop {\n")
		} else {
			fmt.Fprintf(b, "while %s {\n", FormatExpr(s.Cond))
		}
		formatBlock(b, s.Body, depth+1)
		b.WriteString(indent + "}\n")
	case *Return:
		if s.Value == nil {
			b.WriteString("return\n")
		} else {
			b.WriteString("return " + FormatExpr(s.Value) + "\n")
		}
	case *Print:
		b.WriteString("print " + FormatExpr(s.Value) + "\n")
	case *Input:
		target := s.Name
		if s.Decl != nil {
			target = fmt.Sprintf("let %s: %s", s.Name, *s.Decl)
		}
		if s.Prompt != "" {
			fmt.Fprintf(b, "input %s prompt %s\n", target, strconv.Quote(s.Prompt))
		} else {
			fmt.Fprintf(b, "input %s\n", target)
		}
	default:
		fmt.Fprintf(b, "<%T>\n", s)
	}
}

// FormatExpr renders an expression, parenthesizing nested binary operands.
func FormatExpr(e Expr) string {
	switch e := e.(type) {
	case *Literal:
		return FormatLiteral(e)
	case *VarRef:
		return e.Name
	case *Binary:
		return operand(e.Left) + " " + string(e.Op) + " " + operand(e.Right)
	case *Call:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = FormatExpr(a)
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

func operand(e Expr) string {
	if _, ok := e.(*Binary); ok {
		return "(" + FormatExpr(e) + ")"
	}
	return FormatExpr(e)
}

// FormatLiteral renders a literal in source form. Floats always carry a
// decimal point or exponent.
func FormatLiteral(l *Literal) string {
	switch l.Type.Kind {
	case KindInteger:
		return strconv.FormatInt(l.Int, 10)
	case KindFloat:
		s := strconv.FormatFloat(l.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	case KindBool:
		return strconv.FormatBool(l.Bool)
	case KindString:
		return strconv.Quote(l.Str)
	}
	return "?"
}
