package codegen

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"nlc/internal/ipm"
	"nlc/internal/sema"
)

// nativeTemplate is the skeleton of every C translation unit. Function
// bodies are lowered beforehand; the template only lays the parts out.
const nativeTemplate = `{{comment .Header}}
#include <ctype.h>
#include <errno.h>
#include <math.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
{{- if .Runtime.Fail}}

static void nlrt_fail(const char *msg)
{
    fflush(stdout);
    fprintf(stderr, "runtime error: %s\n", msg);
    exit(1);
}
{{- end}}
{{- if .Runtime.Arith}}

static long long nlrt_add(long long a, long long b)
{
    return (long long)((unsigned long long)a + (unsigned long long)b);
}

static long long nlrt_sub(long long a, long long b)
{
    return (long long)((unsigned long long)a - (unsigned long long)b);
}

static long long nlrt_mul(long long a, long long b)
{
    return (long long)((unsigned long long)a * (unsigned long long)b);
}
{{- end}}
{{- if .Runtime.Divide}}

static long long nlrt_div(long long a, long long b)
{
    if (b == 0) {
        nlrt_fail("integer division by zero");
    }
    if (b == -1) {
        return (long long)(0ULL - (unsigned long long)a);
    }
    return a / b;
}

static long long nlrt_mod(long long a, long long b)
{
    if (b == 0) {
        nlrt_fail("integer division by zero");
    }
    if (b == -1) {
        return 0;
    }
    return a % b;
}
{{- end}}
{{- if .Runtime.Concat}}

static const char *nlrt_concat(const char *a, const char *b)
{
    size_t la = strlen(a);
    size_t lb = strlen(b);
    char *s = malloc(la + lb + 1);
    if (s == NULL) {
        nlrt_fail("out of memory");
    }
    memcpy(s, a, la);
    memcpy(s + la, b, lb + 1);
    return s;
}
{{- end}}
{{- if .Runtime.Input}}

static char *nlrt_read_line(const char *prompt)
{
    char buf[4096];
    size_t n;
    char *s;
    fputs(prompt, stdout);
    fflush(stdout);
    if (fgets(buf, sizeof buf, stdin) == NULL) {
        buf[0] = '\0';
    }
    n = strcspn(buf, "\r\n");
    buf[n] = '\0';
    s = malloc(n + 1);
    if (s == NULL) {
        nlrt_fail("out of memory");
    }
    memcpy(s, buf, n + 1);
    return s;
}

static char *nlrt_read_trimmed(const char *prompt)
{
    char *s = nlrt_read_line(prompt);
    size_t n;
    while (isspace((unsigned char)*s)) {
        s++;
    }
    n = strlen(s);
    while (n > 0 && isspace((unsigned char)s[n - 1])) {
        s[--n] = '\0';
    }
    return s;
}

static long long nlrt_read_int(const char *prompt)
{
    const char *s = nlrt_read_trimmed(prompt);
    char *end;
    long long v = strtoll(s, &end, 10);
    if (end == s || *end != '\0') {
        return 0;
    }
    return v;
}

static double nlrt_read_float(const char *prompt)
{
    const char *s = nlrt_read_trimmed(prompt);
    char *end;
    double v;
    errno = 0;
    v = strtod(s, &end);
    if (end == s || *end != '\0') {
        return 0.0;
    }
    if (errno == ERANGE && (v == HUGE_VAL || v == -HUGE_VAL)) {
        return 0.0;
    }
    return v;
}

static int nlrt_read_bool(const char *prompt)
{
    char *s = nlrt_read_trimmed(prompt);
    char *p;
    for (p = s; *p != '\0'; p++) {
        *p = (char)tolower((unsigned char)*p);
    }
    return strcmp(s, "true") == 0 || strcmp(s, "yes") == 0 ||
        strcmp(s, "y") == 0 || strcmp(s, "1") == 0;
}

static const char *nlrt_read_string(const char *prompt)
{
    return nlrt_read_line(prompt);
}
{{- end}}
{{- if .Funcs}}
{{range .Funcs}}
static {{declare .Return .Name}}({{params .Params}});
{{- end}}
{{- end}}
{{- if .Globals}}
{{range .Globals}}
static {{declare .Type .Name}}{{if .Zero}} = {{.Zero}}{{end}};
{{- end}}
{{- end}}

static void nlrt_init_globals(void)
{
{{- range .Globals}}{{if .Init}}
    {{.Name}} = {{.Init}};
{{- end}}{{end}}
}
{{- range .Funcs}}

static {{declare .Return .Name}}({{params .Params}})
{
{{- range .Body}}
{{.}}
{{- end}}
}
{{- end}}

int main(void)
{
{{- range .Main}}
{{.}}
{{- end}}
}
`

var nativeSkeleton = template.Must(template.New("native.c").
	Funcs(templateFuncs()).
	Funcs(template.FuncMap{"declare": declare}).
	Parse(nativeTemplate))

// cVar is a global, parameter or local in C form.
type cVar struct {
	Type string
	Name string
	Zero string // Static initializer, empty for the C default
	Init string // Initializer run by nlrt_init_globals
}

// cFunc is a lowered function.
type cFunc struct {
	Return string
	Name   string
	Params []cVar
	Body   []string
}

// runtimeUse records which runtime helpers a program needs.
type runtimeUse struct {
	Fail   bool
	Arith  bool
	Divide bool
	Concat bool
	Input  bool
}

// nativeData is the data passed to the skeleton.
type nativeData struct {
	Header  string
	Runtime runtimeUse
	Globals []cVar
	Funcs   []cFunc
	Main    []string
}

const indentUnit = "    "

// nativeEmitter lowers a validated program to C.
type nativeEmitter struct {
	v     *sema.Validated
	names *Mangler
	rt    runtimeUse

	decl  string
	lines []string
	depth int
}

func emitNative(v *sema.Validated, source string) ([]byte, error) {
	e := &nativeEmitter{v: v, names: NewMangler()}
	data := &nativeData{Header: "Generated by nlc. Do not edit."}
	if source != "" {
		data.Header = fmt.Sprintf("Generated by nlc from %s. Do not edit.", source)
	}

	var entry *ipm.Function
	for _, d := range v.Program.Decls {
		switch d := d.(type) {
		case *ipm.Variable:
			g, err := e.global(d)
			if err != nil {
				return nil, err
			}
			data.Globals = append(data.Globals, g)
		case *ipm.Function:
			f, err := e.function(d)
			if err != nil {
				return nil, err
			}
			data.Funcs = append(data.Funcs, f)
			if d.Name == "main" {
				entry = d
			}
		}
	}

	data.Main = []string{indentUnit + "nlrt_init_globals();"}
	switch {
	case entry == nil:
		data.Main = append(data.Main, indentUnit+"return 0;")
	case entry.Return.Kind == ipm.KindInteger:
		data.Main = append(data.Main, indentUnit+"return (int)"+e.names.Global(entry.Name)+"();")
	default:
		data.Main = append(data.Main, indentUnit+e.names.Global(entry.Name)+"();", indentUnit+"return 0;")
	}
	e.rt.Fail = e.rt.Fail || e.rt.Divide || e.rt.Concat || e.rt.Input
	data.Runtime = e.rt

	var buf bytes.Buffer
	if err := nativeSkeleton.Execute(&buf, data); err != nil {
		return nil, e.internal("executing template: %v", err)
	}
	return buf.Bytes(), nil
}

func (e *nativeEmitter) unsupported(format string, args ...any) error {
	return &EmitError{Kind: UnsupportedFeature, Backend: NativeSource, Decl: e.decl, Msg: fmt.Sprintf(format, args...)}
}

func (e *nativeEmitter) internal(format string, args ...any) error {
	return &EmitError{Kind: InternalLoweringError, Backend: NativeSource, Decl: e.decl, Msg: fmt.Sprintf(format, args...)}
}

func (e *nativeEmitter) ctype(t ipm.Type, what string) (string, error) {
	ct, err := cType(t)
	if err != nil {
		return "", e.unsupported("%s: %v", what, err)
	}
	return ct, nil
}

func (e *nativeEmitter) global(d *ipm.Variable) (cVar, error) {
	e.decl = d.Name
	ct, err := e.ctype(d.Type, "global "+d.Name)
	if err != nil {
		return cVar{}, err
	}
	g := cVar{Type: ct, Name: e.names.Global(d.Name)}
	if d.Type.Kind == ipm.KindString {
		g.Zero = `""`
	}
	if d.Init != nil {
		if g.Init, err = e.expr(d.Init); err != nil {
			return cVar{}, err
		}
	}
	return g, nil
}

func (e *nativeEmitter) function(d *ipm.Function) (cFunc, error) {
	e.decl = d.Name
	info := e.v.Func(d)
	if info == nil {
		return cFunc{}, e.internal("function %s was not validated", d.Name)
	}
	e.names.Enter(info)

	ret, err := e.ctype(d.Return, "return type of "+d.Name)
	if err != nil {
		return cFunc{}, err
	}
	f := cFunc{Return: ret, Name: e.names.Global(d.Name)}
	for _, p := range info.Params {
		ct, err := e.ctype(p.Type, "parameter "+p.Name)
		if err != nil {
			return cFunc{}, err
		}
		f.Params = append(f.Params, cVar{Type: ct, Name: e.names.Local(p)})
	}

	e.lines, e.depth = nil, 1
	if err := e.block(d.Body); err != nil {
		return cFunc{}, err
	}
	f.Body = e.lines
	return f, nil
}

func (e *nativeEmitter) line(format string, args ...any) {
	e.lines = append(e.lines, strings.Repeat(indentUnit, e.depth)+fmt.Sprintf(format, args...))
}

func (e *nativeEmitter) block(body []ipm.Stmt) error {
	for _, s := range body {
		if err := e.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *nativeEmitter) nested(body []ipm.Stmt) error {
	e.depth++
	defer func() { e.depth-- }()
	return e.block(body)
}

func (e *nativeEmitter) stmt(s ipm.Stmt) error {
	switch s := s.(type) {
	case *ipm.Assign:
		val, err := e.expr(s.Value)
		if err != nil {
			return err
		}
		target, decl, err := e.target(s, s.Name, s.Decl)
		if err != nil {
			return err
		}
		e.line("%s%s = %s;", decl, target, val)

	case *ipm.CallStmt:
		call, err := e.expr(s.Call)
		if err != nil {
			return err
		}
		e.line("%s;", call)

	case *ipm.If:
		cond, err := e.expr(s.Cond)
		if err != nil {
			return err
		}
		e.line("if (%s) {", cond)
		if err := e.nested(s.Then); err != nil {
			return err
		}
		if len(s.Else) > 0 {
			e.line("} else {")
			if err := e.nested(s.Else); err != nil {
				return err
			}
		}
		e.line("}")

	case *ipm.Loop:
		if s.Cond == nil {
			e.line("for (;;) {")
		} else {
			cond, err := e.expr(s.Cond)
			if err != nil {
				return err
			}
			e.line("while (%s) {", cond)
		}
		if err := e.nested(s.Body); err != nil {
			return err
		}
		e.line("}")

	case *ipm.Return:
		if s.Value == nil {
			e.line("return;")
			return nil
		}
		val, err := e.expr(s.Value)
		if err != nil {
			return err
		}
		e.line("return %s;", val)

	case *ipm.Print:
		return e.print(s)

	case *ipm.Input:
		target, decl, err := e.target(s, s.Name, s.Decl)
		if err != nil {
			return err
		}
		sym := e.v.Resolve(s)
		reader, ok := inputReaders[sym.Type.Kind]
		if !ok {
			return e.unsupported("reading %s from input", sym.Type)
		}
		e.rt.Input = true
		e.line("%s%s = %s(%s);", decl, target, reader, cString(s.Prompt))

	default:
		return e.internal("unknown statement %T", s)
	}
	return nil
}

var inputReaders = map[ipm.Kind]string{
	ipm.KindInteger: "nlrt_read_int",
	ipm.KindFloat:   "nlrt_read_float",
	ipm.KindBool:    "nlrt_read_bool",
	ipm.KindString:  "nlrt_read_string",
}

// target returns the C name stored to by an Assign or Input, and the
// declaration prefix when the statement declares a local.
func (e *nativeEmitter) target(node any, name string, declType *ipm.Type) (string, string, error) {
	sym := e.v.Resolve(node)
	if sym == nil {
		return "", "", e.internal("unresolved target %q", name)
	}
	if declType == nil {
		return e.names.Symbol(sym), "", nil
	}
	ct, err := e.ctype(*declType, "local "+name)
	if err != nil {
		return "", "", err
	}
	decl := ct
	if !strings.HasSuffix(decl, "*") {
		decl += " "
	}
	return e.names.Local(sym), decl, nil
}

func (e *nativeEmitter) print(s *ipm.Print) error {
	val, err := e.expr(s.Value)
	if err != nil {
		return err
	}
	switch t := e.v.TypeOf(s.Value); t.Kind {
	case ipm.KindInteger:
		e.line(`printf("%%lld\n", %s);`, val)
	case ipm.KindFloat:
		e.line(`printf("%%g\n", %s);`, val)
	case ipm.KindBool:
		e.line(`printf("%%s\n", %s ? "true" : "false");`, val)
	case ipm.KindString:
		e.line(`printf("%%s\n", %s);`, val)
	default:
		return e.unsupported("printing a value of type %s", t)
	}
	return nil
}

func (e *nativeEmitter) expr(x ipm.Expr) (string, error) {
	switch x := x.(type) {
	case *ipm.Literal:
		lit, err := cLiteral(x)
		if err != nil {
			return "", e.internal("%v", err)
		}
		return lit, nil

	case *ipm.VarRef:
		sym := e.v.Resolve(x)
		if sym == nil {
			return "", e.internal("unresolved variable %q", x.Name)
		}
		if _, err := e.ctype(sym.Type, "variable "+x.Name); err != nil {
			return "", err
		}
		return e.names.Symbol(sym), nil

	case *ipm.Binary:
		return e.binary(x)

	case *ipm.Call:
		sym := e.v.Resolve(x)
		if sym == nil {
			return "", e.internal("unresolved function %q", x.Name)
		}
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			s, err := e.expr(a)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		return e.names.Global(sym.Name) + "(" + strings.Join(args, ", ") + ")", nil
	}
	return "", e.internal("unknown expression %T", x)
}

// arithHelpers wrap on overflow like the VM does. Plain C signed
// overflow is undefined.
var arithHelpers = map[ipm.Op]string{
	ipm.OpAdd: "nlrt_add",
	ipm.OpSub: "nlrt_sub",
	ipm.OpMul: "nlrt_mul",
}

func (e *nativeEmitter) binary(x *ipm.Binary) (string, error) {
	l, err := e.expr(x.Left)
	if err != nil {
		return "", err
	}
	r, err := e.expr(x.Right)
	if err != nil {
		return "", err
	}
	lt, rt := e.v.TypeOf(x.Left), e.v.TypeOf(x.Right)
	bothInt := lt.Kind == ipm.KindInteger && rt.Kind == ipm.KindInteger

	switch {
	case x.Op == ipm.OpAdd && lt.Kind == ipm.KindString:
		e.rt.Concat = true
		return "nlrt_concat(" + l + ", " + r + ")", nil
	case bothInt && (x.Op == ipm.OpAdd || x.Op == ipm.OpSub || x.Op == ipm.OpMul):
		e.rt.Arith = true
		return arithHelpers[x.Op] + "(" + l + ", " + r + ")", nil
	case x.Op == ipm.OpDiv && bothInt:
		e.rt.Divide = true
		return "nlrt_div(" + l + ", " + r + ")", nil
	case x.Op == ipm.OpMod:
		e.rt.Divide = true
		return "nlrt_mod(" + l + ", " + r + ")", nil
	case (x.Op == ipm.OpEq || x.Op == ipm.OpNe) && lt.Kind == ipm.KindString:
		return "(strcmp(" + l + ", " + r + ") " + string(x.Op) + " 0)", nil
	case x.Op == ipm.OpAnd:
		return "(" + l + " && " + r + ")", nil
	case x.Op == ipm.OpOr:
		return "(" + l + " || " + r + ")", nil
	}
	return "(" + l + " " + string(x.Op) + " " + r + ")", nil
}
