package ipm

// Program is the root of the model: an ordered list of declarations.
type Program struct {
	Decls []Decl // Declarations in order of first mention
}

// Lookup returns the declaration with the given name, or nil.
func (p *Program) Lookup(name string) Decl {
	for _, d := range p.Decls {
		if d.DeclName() == name {
			return d
		}
	}
	return nil
}

// Decl is a top-level declaration: *Function or *Variable.
type Decl interface {
	DeclName() string
	decl()
}

// Param is a function parameter.
type Param struct {
	Name string
	Type Type
}

// Function declares a function. The function owns its body.
type Function struct {
	Name   string
	Params []Param
	Return Type
	Body   []Stmt
}

// Variable declares a global variable. Init may be nil, in which case the
// variable starts at the zero value of its type.
type Variable struct {
	Name string
	Type Type
	Init Expr
}

func (f *Function) DeclName() string { return f.Name }
func (v *Variable) DeclName() string { return v.Name }

func (*Function) decl() {}
func (*Variable) decl() {}

// Stmt is one of *Assign, *CallStmt, *If, *Loop, *Return, *Print, *Input.
type Stmt interface {
	stmt()
}

// Assign stores Value into Name. A non-nil Decl declares Name as a new local
// of that type in the current block.
type Assign struct {
	Name  string
	Decl  *Type
	Value Expr
}

// CallStmt calls a function and discards its result.
type CallStmt struct {
	Call *Call
}

// If runs Then when Cond holds, Else otherwise.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// Loop repeats Body while Cond holds. A nil Cond loops until a Return.
type Loop struct {
	Cond Expr
	Body []Stmt
}

// Return leaves the enclosing function. Value is nil in Void functions.
type Return struct {
	Value Expr
}

// Print writes Value followed by a newline.
type Print struct {
	Value Expr
}

// Input reads a value of the target's type from standard input into Name,
// optionally declaring it like Assign does.
type Input struct {
	Name   string
	Decl   *Type
	Prompt string
}

func (*Assign) stmt()   {}
func (*CallStmt) stmt() {}
func (*If) stmt()       {}
func (*Loop) stmt()     {}
func (*Return) stmt()   {}
func (*Print) stmt()    {}
func (*Input) stmt()    {}

// Expr is one of *Literal, *VarRef, *Binary, *Call.
type Expr interface {
	expr()
}

// Literal is a constant of a scalar type. Only the field matching Type.Kind
// is meaningful.
type Literal struct {
	Type  Type
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

// VarRef names a variable. It is resolved against the enclosing scope chain
// during validation.
type VarRef struct {
	Name string
}

// Op is a binary operator.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpAnd Op = "and"
	OpOr  Op = "or"
)

// Ops lists every operator in a fixed order.
var Ops = []Op{OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr}

// IsArithmetic reports whether op is + - * / or %.
func (op Op) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	}
	return false
}

// IsComparison reports whether op yields a Bool from two operands of the
// same type.
func (op Op) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsLogical reports whether op is "and" or "or".
func (op Op) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Call invokes the function Name.
type Call struct {
	Name string
	Args []Expr
}

func (*Literal) expr() {}
func (*VarRef) expr()  {}
func (*Binary) expr()  {}
func (*Call) expr()    {}

// Int returns an Integer literal.
func Int(v int64) *Literal { return &Literal{Type: Integer, Int: v} }

// Flt returns a Float literal.
func Flt(v float64) *Literal { return &Literal{Type: Float, Float: v} }

// Bln returns a Bool literal.
func Bln(v bool) *Literal { return &Literal{Type: Bool, Bool: v} }

// Str returns a String literal.
func Str(v string) *Literal { return &Literal{Type: String, Str: v} }

// Ref returns a variable reference.
func Ref(name string) *VarRef { return &VarRef{Name: name} }

// Bin returns a binary expression.
func Bin(op Op, l, r Expr) *Binary { return &Binary{Op: op, Left: l, Right: r} }

// TypePtr returns a pointer to a copy of t, for Assign.Decl and Input.Decl.
func TypePtr(t Type) *Type { return &t }
