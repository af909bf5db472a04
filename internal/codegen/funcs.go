package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"nlc/internal/ipm"
)

// templateFuncs returns the functions available to the C skeleton.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"params":  cParams,
		"comment": formatComment,
	}
}

// cType maps an IPM type to its C spelling.
func cType(t ipm.Type) (string, error) {
	switch t.Kind {
	case ipm.KindInteger:
		return "long long", nil
	case ipm.KindFloat:
		return "double", nil
	case ipm.KindBool:
		return "int", nil
	case ipm.KindString:
		return "const char *", nil
	case ipm.KindVoid:
		return "void", nil
	}
	return "", fmt.Errorf("type %s has no C representation", t)
}

// declare renders "type name", gluing pointer stars to the name.
func declare(ctype, name string) string {
	if strings.HasSuffix(ctype, "*") {
		return ctype + name
	}
	return ctype + " " + name
}

// cParams renders a parameter list; an empty list is "void".
func cParams(params []cVar) string {
	if len(params) == 0 {
		return "void"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = declare(p.Type, p.Name)
	}
	return strings.Join(parts, ", ")
}

// cLiteral renders a scalar literal as a C constant expression.
func cLiteral(lit *ipm.Literal) (string, error) {
	switch lit.Type.Kind {
	case ipm.KindInteger:
		return cInt(lit.Int), nil
	case ipm.KindFloat:
		return cFloat(lit.Float), nil
	case ipm.KindBool:
		if lit.Bool {
			return "1", nil
		}
		return "0", nil
	case ipm.KindString:
		return cString(lit.Str), nil
	}
	return "", fmt.Errorf("literal of type %s", lit.Type)
}

func cInt(v int64) string {
	if v == math.MinInt64 {
		return "(-9223372036854775807LL - 1)"
	}
	if v < 0 {
		return "(" + strconv.FormatInt(v, 10) + "LL)"
	}
	return strconv.FormatInt(v, 10) + "LL"
}

func cFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "HUGE_VAL"
	case math.IsInf(f, -1):
		return "(-HUGE_VAL)"
	case math.IsNaN(f):
		return "(0.0 / 0.0)"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	if f < 0 || (f == 0 && math.Signbit(f)) {
		return "(" + s + ")"
	}
	return s
}

// cString renders s as a C string literal. Bytes outside printable ASCII
// become three-digit octal escapes, and "??" is broken up so no trigraph
// can form.
func cString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	var prev byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '?' && prev == '?':
			b.WriteString(`\?`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
		prev = c
	}
	b.WriteByte('"')
	return b.String()
}

// formatComment renders text as a C block comment, one line per line of
// text. Comment terminators inside the text are broken up.
func formatComment(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "*/", "* /")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 1 {
		return "/* " + strings.TrimSpace(lines[0]) + " */"
	}
	result := []string{"/*"}
	for _, line := range lines {
		result = append(result, " * "+strings.TrimSpace(line))
	}
	result = append(result, " */")
	return strings.Join(result, "\n")
}
