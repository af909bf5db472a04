package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble renders m as a stable text listing.
func Disassemble(m *Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; nlc bytecode v%d\n", Version)

	if len(m.Consts) > 0 {
		b.WriteString("\nconsts:\n")
		for i, c := range m.Consts {
			fmt.Fprintf(&b, "  %3d %-6s %s\n", i, c.Kind, FormatConst(c))
		}
	}
	if len(m.Globals) > 0 {
		b.WriteString("\nglobals:\n")
		for i, g := range m.Globals {
			fmt.Fprintf(&b, "  %3d %-6s %s\n", i, g.Kind, g.Name)
		}
	}

	for i, f := range m.Funcs {
		var tags []string
		if i == m.Init {
			tags = append(tags, "init")
		}
		if i == m.Entry {
			tags = append(tags, "entry")
		}
		fmt.Fprintf(&b, "\nfunc %d %s(params=%d, locals=%d) %s", i, f.Name, f.NumParams, len(f.Locals), f.Return)
		if len(tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(tags, ","))
		}
		b.WriteString("\n")
		for pc, in := range f.Code {
			if ops := operands(m, in); ops != "" {
				fmt.Fprintf(&b, "  %04d %-10s%s\n", pc, in.Op, ops)
			} else {
				fmt.Fprintf(&b, "  %04d %s\n", pc, in.Op)
			}
		}
	}
	return b.String()
}

func operands(m *Module, in Instr) string {
	switch in.Op {
	case OpConst:
		if int(in.A) < len(m.Consts) {
			return fmt.Sprintf(" %d ; %s", in.A, FormatConst(m.Consts[in.A]))
		}
	case OpLoadGlobal, OpStoreGlobal:
		if int(in.A) < len(m.Globals) {
			return fmt.Sprintf(" %d ; %s", in.A, m.Globals[in.A].Name)
		}
	case OpCall:
		if int(in.A) < len(m.Funcs) {
			return fmt.Sprintf(" %d %d ; %s", in.A, in.B, m.Funcs[in.A].Name)
		}
	case OpPrint, OpRead:
		return " " + Kind(in.A).String()
	case OpLoad, OpStore, OpJump, OpJumpIfFalse, OpI2F:
		return fmt.Sprintf(" %d", in.A)
	default:
		return ""
	}
	return fmt.Sprintf(" %d %d", in.A, in.B)
}

// FormatConst renders a constant in source form.
func FormatConst(c Const) string {
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(c.Bool)
	case KindString:
		return strconv.Quote(c.Str)
	}
	return "?"
}
