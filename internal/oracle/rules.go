package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"nlc/internal/ipm"
	"nlc/internal/sema"
)

// Rules interprets a constrained English grammar with regular expressions.
// It is deterministic and needs no network; every matching rule yields a
// candidate with the rule's fixed confidence.
type Rules struct {
	rules []rule
}

type rule struct {
	name       string
	re         *regexp.Regexp
	confidence float64
	build      func(m []string, snap Snapshot) (Fragment, error)
}

// NewRules returns the rule-based oracle.
func NewRules() *Rules {
	r := &Rules{}
	r.rules = []rule{
		{
			name:       "arithmetic function",
			re:         regexp.MustCompile(`^(?:create|define|write|make) (?:a |an )?function(?: (?:called|named) (\w+))? that (adds|subtracts|multiplies|divides) two (numbers|integers|whole numbers|decimal numbers|decimals|floats) and returns the (?:result|answer)$`),
			confidence: 0.95,
			build:      buildArithmeticFunction,
		},
		{
			name:       "procedure",
			re:         regexp.MustCompile(`^(?:create|define|write|make) (?:a |an )?function (?:called|named) (\w+) that (.+)$`),
			confidence: 0.7,
			build:      buildProcedure,
		},
		{
			name:       "global variable",
			re:         regexp.MustCompile(`^(?:create|declare|define|make) (?:a |an )?(?:global )?(?:(integer|number|float|decimal|string|text|boolean|bool) )?variable (?:called|named) (\w+)(?: (?:with|equal to|set to)(?: the)?(?: initial)?(?: value)? (.+))?$`),
			confidence: 0.9,
			build:      buildGlobal,
		},
		{
			name:       "call",
			re:         regexp.MustCompile(`^call (it|the function|\w+)(?: with (.+))?$`),
			confidence: 0.9,
			build:      buildCall,
		},
		{
			name:       "input",
			re:         regexp.MustCompile(`^(?:ask the user for|ask for|read|get|input) (?:a |an |the )?(number|integer|whole number|decimal number|decimal|float|word|text|string|name|line)(?: (?:called|named|into|as) (\w+))?$`),
			confidence: 0.9,
			build:      buildInput,
		},
		{
			name:       "conditional",
			re:         regexp.MustCompile(`^if (.+?), (?:then )?(.+?)(?:,? (?:otherwise|else) (.+))?$`),
			confidence: 0.9,
			build:      buildIf,
		},
		{
			name:       "loop",
			re:         regexp.MustCompile(`^(?:while|as long as) (.+?), (.+)$`),
			confidence: 0.9,
			build:      buildWhile,
		},
		{
			name:       "action",
			re:         regexp.MustCompile(`^(?:print|display|show|output|write|set|let|add|subtract|increase|increment|decrease|decrement) .+$`),
			confidence: 0.9,
			build:      buildAction,
		},
	}
	return r
}

// Open implements Oracle.
func (r *Rules) Open(context.Context) (Session, error) { return r, nil }

// Close implements Session.
func (r *Rules) Close() error { return nil }

// Interpret implements Session.
func (r *Rules) Interpret(ctx context.Context, chunk string, snap Snapshot) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := normalizeSentence(chunk)

	var out []Candidate
	var firstErr error
	for _, rl := range r.rules {
		m := rl.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		f, err := rl.build(m, snap)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", rl.name, err)
			}
			continue
		}
		out = append(out, Candidate{Fragment: f, Confidence: rl.confidence})
	}
	if len(out) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, chunk)
	}
	return out, nil
}

var spaceRe = regexp.MustCompile(`\s+`)

// normalizeSentence trims terminators, collapses whitespace and lowercases
// everything outside double quotes.
func normalizeSentence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!?;: ")
	s = spaceRe.ReplaceAllString(s, " ")
	var b strings.Builder
	quoted := false
	for _, r := range s {
		if r == '"' {
			quoted = !quoted
		}
		if !quoted {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

var verbOps = map[string]ipm.Op{
	"adds":       ipm.OpAdd,
	"subtracts":  ipm.OpSub,
	"multiplies": ipm.OpMul,
	"divides":    ipm.OpDiv,
}

var verbNames = map[string]string{
	"adds":       "add",
	"subtracts":  "subtract",
	"multiplies": "multiply",
	"divides":    "divide",
}

func buildArithmeticFunction(m []string, snap Snapshot) (Fragment, error) {
	name := m[1]
	if name == "" {
		name = verbNames[m[2]]
	}
	t := ipm.Integer
	if strings.HasPrefix(m[3], "decimal") || m[3] == "floats" {
		t = ipm.Float
	}
	if snap.Declared(name) {
		return Fragment{}, fmt.Errorf("%w: %q is already declared", ErrAmbiguous, name)
	}
	return DeclFragment(&ipm.Function{
		Name:   name,
		Params: []ipm.Param{{Name: "a", Type: t}, {Name: "b", Type: t}},
		Return: t,
		Body:   []ipm.Stmt{&ipm.Return{Value: ipm.Bin(verbOps[m[2]], ipm.Ref("a"), ipm.Ref("b"))}},
	}), nil
}

func buildProcedure(m []string, snap Snapshot) (Fragment, error) {
	if snap.Declared(m[1]) {
		return Fragment{}, fmt.Errorf("%w: %q is already declared", ErrAmbiguous, m[1])
	}
	body, err := parseActions(m[2], Snapshot{Decls: snap.Decls})
	if err != nil {
		return Fragment{}, err
	}
	return DeclFragment(&ipm.Function{Name: m[1], Return: ipm.Void, Body: body}), nil
}

var typeWords = map[string]ipm.Type{
	"integer": ipm.Integer,
	"number":  ipm.Integer,
	"float":   ipm.Float,
	"decimal": ipm.Float,
	"string":  ipm.String,
	"text":    ipm.String,
	"boolean": ipm.Bool,
	"bool":    ipm.Bool,
}

func buildGlobal(m []string, snap Snapshot) (Fragment, error) {
	name := m[2]
	if snap.Declared(name) {
		return Fragment{}, fmt.Errorf("%w: %q is already declared", ErrAmbiguous, name)
	}
	v := &ipm.Variable{Name: name}
	if m[1] != "" {
		v.Type = typeWords[m[1]]
	}
	if m[3] != "" {
		// Globals may only refer to what is already declared at top level.
		init, t, err := parseExpr(m[3], Snapshot{Decls: snap.Decls})
		if err != nil {
			return Fragment{}, err
		}
		v.Init = init
		if v.Type.Kind == "" {
			v.Type = t
		}
	}
	if v.Type.Kind == "" {
		return Fragment{}, fmt.Errorf("%w: no type for variable %q", ErrAmbiguous, name)
	}
	return DeclFragment(v), nil
}

func buildCall(m []string, snap Snapshot) (Fragment, error) {
	s, err := callStatement(m[1], m[2], snap)
	if err != nil {
		return Fragment{}, err
	}
	return StmtFragment(s), nil
}

// callStatement builds a call to target with the given argument text. A call
// to a function with a result stores it in a variable named "result".
func callStatement(target, argText string, snap Snapshot) (ipm.Stmt, error) {
	name := target
	if name == "it" || name == "the function" {
		if snap.LastFunction == "" {
			return nil, fmt.Errorf("%w: no function to call", ErrAmbiguous)
		}
		name = snap.LastFunction
	}
	var args []ipm.Expr
	if argText != "" {
		for _, a := range splitList(argText) {
			e, _, err := parseExpr(a, snap)
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
	}
	call := &ipm.Call{Name: name, Args: args}

	fn, ok := snap.Function(name)
	if !ok || fn.Type.Kind == ipm.KindVoid {
		return &ipm.CallStmt{Call: call}, nil
	}
	dest, declare := resultName(snap, fn.Type)
	a := &ipm.Assign{Name: dest, Value: call}
	if declare {
		a.Decl = ipm.TypePtr(fn.Type)
	}
	return a, nil
}

// resultName picks the variable that receives a call result. It reuses
// "result" when the type matches and otherwise numbers a fresh one.
func resultName(snap Snapshot, t ipm.Type) (string, bool) {
	for i := 1; ; i++ {
		name := "result"
		if i > 1 {
			name = fmt.Sprintf("result_%d", i)
		}
		if vt, ok := snap.VarType(name); ok {
			if vt.Equal(t) {
				return name, false
			}
			continue
		}
		if snap.Declared(name) {
			continue
		}
		return name, true
	}
}

var inputTypes = map[string]ipm.Type{
	"number":         ipm.Integer,
	"integer":        ipm.Integer,
	"whole number":   ipm.Integer,
	"decimal number": ipm.Float,
	"decimal":        ipm.Float,
	"float":          ipm.Float,
	"word":           ipm.String,
	"text":           ipm.String,
	"string":         ipm.String,
	"name":           ipm.String,
	"line":           ipm.String,
}

func buildInput(m []string, snap Snapshot) (Fragment, error) {
	t := inputTypes[m[1]]
	name := m[2]
	if name == "" {
		name = strings.ReplaceAll(m[1], " ", "_")
	}
	in := &ipm.Input{Name: name, Prompt: "Enter " + article(m[1]) + " " + m[1] + ": "}
	if vt, ok := snap.VarType(name); ok {
		if !vt.Equal(t) {
			return Fragment{}, fmt.Errorf("%w: %q is a %s, not a %s", ErrAmbiguous, name, vt, t)
		}
	} else {
		in.Decl = ipm.TypePtr(t)
	}
	return StmtFragment(in), nil
}

func article(noun string) string {
	if strings.ContainsRune("aeiou", rune(noun[0])) {
		return "an"
	}
	return "a"
}

func buildIf(m []string, snap Snapshot) (Fragment, error) {
	cond, err := parseCond(m[1], snap)
	if err != nil {
		return Fragment{}, err
	}
	then, err := parseActions(m[2], snap)
	if err != nil {
		return Fragment{}, err
	}
	s := &ipm.If{Cond: cond, Then: then}
	if m[3] != "" {
		if s.Else, err = parseActions(m[3], snap); err != nil {
			return Fragment{}, err
		}
	}
	return StmtFragment(s), nil
}

func buildWhile(m []string, snap Snapshot) (Fragment, error) {
	cond, err := parseCond(m[1], snap)
	if err != nil {
		return Fragment{}, err
	}
	body, err := parseActions(m[2], snap)
	if err != nil {
		return Fragment{}, err
	}
	return StmtFragment(&ipm.Loop{Cond: cond, Body: body}), nil
}

func buildAction(m []string, snap Snapshot) (Fragment, error) {
	s, err := parseAction(m[0], snap)
	if err != nil {
		return Fragment{}, err
	}
	return StmtFragment(s), nil
}

var actionVerbs = map[string]bool{
	"print": true, "display": true, "show": true, "output": true, "write": true,
	"set": true, "let": true, "add": true, "subtract": true, "increase": true,
	"increment": true, "decrease": true, "decrement": true, "call": true, "return": true,
	"prints": true, "displays": true, "shows": true, "outputs": true, "writes": true,
	"sets": true, "adds": true, "subtracts": true, "increases": true, "increments": true,
	"decreases": true, "decrements": true, "calls": true, "returns": true,
}

// parseActions splits a clause such as "print x and add 1 to x" at every
// "and"/"then" that introduces a new action verb.
func parseActions(text string, snap Snapshot) ([]ipm.Stmt, error) {
	words := strings.Fields(strings.ReplaceAll(text, ",", " ,"))
	var parts []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.Join(cur, " "))
			cur = nil
		}
	}
	for i := 0; i < len(words); i++ {
		w := words[i]
		if (w == "and" || w == "then" || w == ",") && i+1 < len(words) {
			next := words[i+1]
			if next == "then" && i+2 < len(words) {
				next = words[i+2]
			}
			if actionVerbs[next] {
				flush()
				continue
			}
		}
		if w == "then" && len(cur) == 0 {
			continue
		}
		cur = append(cur, w)
	}
	flush()

	var out []ipm.Stmt
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, " ,", ","))
		s, err := parseAction(p, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no action in %q", ErrUnsupported, text)
	}
	return out, nil
}

var (
	printRe    = regexp.MustCompile(`^(?:print|display|show|output|write)s?(?: out)? (.+)$`)
	setRe      = regexp.MustCompile(`^(?:set|assign)s? (\w+) to (.+)$`)
	letRe      = regexp.MustCompile(`^let (\w+) be (.+)$`)
	addToRe    = regexp.MustCompile(`^(add|subtract)s? (.+) (?:to|from) (\w+)$`)
	increaseRe = regexp.MustCompile(`^(increase|increment|decrease|decrement)s? (\w+)(?: by (.+))?$`)
	callRe     = regexp.MustCompile(`^calls? (it|the function|\w+)(?: with (.+))?$`)
	returnRe   = regexp.MustCompile(`^returns?(?: (.+))?$`)
)

// parseAction interprets a single imperative clause.
func parseAction(text string, snap Snapshot) (ipm.Stmt, error) {
	text = strings.TrimSpace(text)
	if m := printRe.FindStringSubmatch(text); m != nil {
		e, _, err := parseExpr(m[1], snap)
		if err != nil {
			return nil, err
		}
		return &ipm.Print{Value: e}, nil
	}
	if m := setRe.FindStringSubmatch(text); m != nil {
		return assignment(m[1], m[2], snap)
	}
	if m := letRe.FindStringSubmatch(text); m != nil {
		return assignment(m[1], m[2], snap)
	}
	if m := addToRe.FindStringSubmatch(text); m != nil {
		op := ipm.OpAdd
		if m[1] == "subtract" {
			op = ipm.OpSub
		}
		return update(m[3], op, m[2], snap)
	}
	if m := increaseRe.FindStringSubmatch(text); m != nil {
		op := ipm.OpAdd
		if strings.HasPrefix(m[1], "de") {
			op = ipm.OpSub
		}
		amount := m[3]
		if amount == "" {
			amount = "1"
		}
		return update(m[2], op, amount, snap)
	}
	if m := callRe.FindStringSubmatch(text); m != nil {
		return callStatement(m[1], m[2], snap)
	}
	if m := returnRe.FindStringSubmatch(text); m != nil {
		if m[1] == "" {
			return &ipm.Return{}, nil
		}
		e, _, err := parseExpr(m[1], snap)
		if err != nil {
			return nil, err
		}
		return &ipm.Return{Value: e}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, text)
}

func assignment(name, valueText string, snap Snapshot) (ipm.Stmt, error) {
	value, t, err := parseExpr(valueText, snap)
	if err != nil {
		return nil, err
	}
	a := &ipm.Assign{Name: name, Value: value}
	if _, known := snap.VarType(name); !known {
		if t.Kind == "" {
			return nil, fmt.Errorf("%w: cannot tell the type of %q", ErrAmbiguous, valueText)
		}
		a.Decl = ipm.TypePtr(t)
	}
	return a, nil
}

func update(name string, op ipm.Op, amountText string, snap Snapshot) (ipm.Stmt, error) {
	if _, known := snap.VarType(name); !known {
		return nil, fmt.Errorf("%w: unknown variable %q", ErrAmbiguous, name)
	}
	amount, _, err := parseExpr(amountText, snap)
	if err != nil {
		return nil, err
	}
	return &ipm.Assign{Name: name, Value: ipm.Bin(op, ipm.Ref(name), amount)}, nil
}

var (
	compareRe = regexp.MustCompile(`^(.+?) is (not equal to|equal to|greater than or equal to|less than or equal to|greater than|more than|bigger than|less than|smaller than|at least|at most|not) (.+)$`)
	symbolRe  = regexp.MustCompile(`^(.+?) (equals|==|!=|>=|<=|>|<) (.+)$`)
	parityRe  = regexp.MustCompile(`^(.+?) is (even|odd)$`)
)

var compareOps = map[string]ipm.Op{
	"not equal to":             ipm.OpNe,
	"equal to":                 ipm.OpEq,
	"greater than or equal to": ipm.OpGe,
	"less than or equal to":    ipm.OpLe,
	"greater than":             ipm.OpGt,
	"more than":                ipm.OpGt,
	"bigger than":              ipm.OpGt,
	"less than":                ipm.OpLt,
	"smaller than":             ipm.OpLt,
	"at least":                 ipm.OpGe,
	"at most":                  ipm.OpLe,
	"not":                      ipm.OpNe,
	"equals":                   ipm.OpEq,
	"==":                       ipm.OpEq,
	"!=":                       ipm.OpNe,
	">=":                       ipm.OpGe,
	"<=":                       ipm.OpLe,
	">":                        ipm.OpGt,
	"<":                        ipm.OpLt,
}

// parseCond interprets a condition such as "x is greater than 5 and y is odd".
func parseCond(text string, snap Snapshot) (ipm.Expr, error) {
	text = strings.TrimSpace(text)
	for _, lg := range []struct {
		word string
		op   ipm.Op
	}{{" or ", ipm.OpOr}, {" and ", ipm.OpAnd}} {
		if i := lastIndexOutside(text, lg.word); i >= 0 {
			l, err := parseCond(text[:i], snap)
			if err != nil {
				return nil, err
			}
			r, err := parseCond(text[i+len(lg.word):], snap)
			if err != nil {
				return nil, err
			}
			return ipm.Bin(lg.op, l, r), nil
		}
	}
	if m := parityRe.FindStringSubmatch(text); m != nil {
		x, _, err := parseExpr(m[1], snap)
		if err != nil {
			return nil, err
		}
		op := ipm.OpEq
		if m[2] == "odd" {
			op = ipm.OpNe
		}
		return ipm.Bin(op, ipm.Bin(ipm.OpMod, x, ipm.Int(2)), ipm.Int(0)), nil
	}
	m := compareRe.FindStringSubmatch(text)
	if m == nil {
		m = symbolRe.FindStringSubmatch(text)
	}
	if m != nil {
		l, _, err := parseExpr(m[1], snap)
		if err != nil {
			return nil, err
		}
		r, _, err := parseExpr(m[3], snap)
		if err != nil {
			return nil, err
		}
		return ipm.Bin(compareOps[m[2]], l, r), nil
	}
	e, _, err := parseExpr(text, snap)
	return e, err
}

var (
	phraseRe = regexp.MustCompile(`^the (sum|product|difference|quotient|remainder) (?:of|between) (.+?) (?:and|divided by|by) (.+)$`)
	intRe    = regexp.MustCompile(`^-?\d+$`)
	floatRe  = regexp.MustCompile(`^-?\d+\.\d+$`)
	callExRe = regexp.MustCompile(`^(\w+)\((.*)\)$`)
	identRe  = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

var phraseOps = map[string]ipm.Op{
	"sum":        ipm.OpAdd,
	"product":    ipm.OpMul,
	"difference": ipm.OpSub,
	"quotient":   ipm.OpDiv,
	"remainder":  ipm.OpMod,
}

// Operator words by increasing precedence. Within a level the rightmost
// occurrence splits first, which makes the operators left-associative.
var opLevels = [][]struct {
	word string
	op   ipm.Op
}{
	{{" plus ", ipm.OpAdd}, {" minus ", ipm.OpSub}, {" + ", ipm.OpAdd}, {" - ", ipm.OpSub}},
	{{" times ", ipm.OpMul}, {" multiplied by ", ipm.OpMul}, {" divided by ", ipm.OpDiv},
		{" modulo ", ipm.OpMod}, {" mod ", ipm.OpMod}, {" * ", ipm.OpMul}, {" / ", ipm.OpDiv}, {" % ", ipm.OpMod}},
}

var numberWords = map[string]int64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"twenty": 20, "hundred": 100,
}

// parseExpr interprets a value phrase and infers its type from the
// snapshot. The returned type is zero when it cannot be inferred; unknown
// names are kept as references for the validator to report.
func parseExpr(text string, snap Snapshot) (ipm.Expr, ipm.Type, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ipm.Type{}, fmt.Errorf("%w: missing value", ErrUnsupported)
	}
	if m := phraseRe.FindStringSubmatch(text); m != nil {
		return binary(phraseOps[m[1]], m[2], m[3], snap)
	}
	for _, level := range opLevels {
		best, bestOp, bestLen := -1, ipm.Op(""), 0
		for _, o := range level {
			if i := lastIndexOutside(text, o.word); i > best {
				best, bestOp, bestLen = i, o.op, len(o.word)
			}
		}
		if best >= 0 {
			return binary(bestOp, text[:best], text[best+bestLen:], snap)
		}
	}
	return operand(text, snap)
}

func binary(op ipm.Op, lt, rt string, snap Snapshot) (ipm.Expr, ipm.Type, error) {
	l, ltyp, err := parseExpr(lt, snap)
	if err != nil {
		return nil, ipm.Type{}, err
	}
	r, rtyp, err := parseExpr(rt, snap)
	if err != nil {
		return nil, ipm.Type{}, err
	}
	t, _ := sema.BinaryResult(op, ltyp, rtyp)
	return ipm.Bin(op, l, r), t, nil
}

func operand(text string, snap Snapshot) (ipm.Expr, ipm.Type, error) {
	switch {
	case len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`):
		return ipm.Str(text[1 : len(text)-1]), ipm.String, nil
	case intRe.MatchString(text):
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, ipm.Type{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return ipm.Int(v), ipm.Integer, nil
	case floatRe.MatchString(text):
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, ipm.Type{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return ipm.Flt(v), ipm.Float, nil
	case text == "true" || text == "false":
		return ipm.Bln(text == "true"), ipm.Bool, nil
	case text == "the result" || text == "it" || text == "that" || text == "the answer" || text == "the value":
		if snap.LastValue == "" {
			return nil, ipm.Type{}, fmt.Errorf("%w: %q refers to nothing", ErrAmbiguous, text)
		}
		t, _ := snap.VarType(snap.LastValue)
		return ipm.Ref(snap.LastValue), t, nil
	}
	if v, ok := numberWords[text]; ok {
		return ipm.Int(v), ipm.Integer, nil
	}
	if m := callExRe.FindStringSubmatch(text); m != nil {
		var args []ipm.Expr
		if strings.TrimSpace(m[2]) != "" {
			for _, a := range splitList(m[2]) {
				e, _, err := parseExpr(a, snap)
				if err != nil {
					return nil, ipm.Type{}, err
				}
				args = append(args, e)
			}
		}
		var t ipm.Type
		if fn, ok := snap.Function(m[1]); ok {
			t = fn.Type
		}
		return &ipm.Call{Name: m[1], Args: args}, t, nil
	}
	name := strings.TrimPrefix(strings.TrimPrefix(text, "the variable "), "the number ")
	if identRe.MatchString(name) {
		t, _ := snap.VarType(name)
		return ipm.Ref(name), t, nil
	}
	return nil, ipm.Type{}, fmt.Errorf("%w: cannot read value %q", ErrUnsupported, text)
}

// splitList splits "5, 3 and 2" into its items, ignoring separators inside
// quotes and parentheses.
func splitList(text string) []string {
	text = strings.ReplaceAll(text, ", and ", ", ")
	var out []string
	for {
		i := indexOutside(text, ", ")
		j := indexOutside(text, " and ")
		switch {
		case i < 0 && j < 0:
			return append(out, strings.TrimSpace(text))
		case j < 0 || (i >= 0 && i < j):
			out = append(out, strings.TrimSpace(text[:i]))
			text = text[i+2:]
		default:
			out = append(out, strings.TrimSpace(text[:j]))
			text = text[j+5:]
		}
	}
}

// indexOutside finds the first occurrence of sep outside quotes and
// parentheses.
func indexOutside(s, sep string) int {
	depth, quoted := 0, false
	for i := 0; i+len(sep) <= len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case '(':
			depth++
		case ')':
			depth--
		}
		if !quoted && depth == 0 && s[i:i+len(sep)] == sep {
			return i
		}
	}
	return -1
}

// lastIndexOutside finds the last occurrence of sep outside quotes and
// parentheses.
func lastIndexOutside(s, sep string) int {
	last := -1
	depth, quoted := 0, false
	for i := 0; i+len(sep) <= len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case '(':
			depth++
		case ')':
			depth--
		}
		if !quoted && depth == 0 && s[i:i+len(sep)] == sep {
			last = i
		}
	}
	return last
}
