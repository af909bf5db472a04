package ipm

import (
	"fmt"
	"regexp"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdent reports whether s is a valid IPM identifier.
func IsIdent(s string) bool {
	return identRe.MatchString(s)
}

// CheckError reports a structurally malformed node.
type CheckError struct {
	Path string // Location of the node, e.g. "add.body[0].value"
	Msg  string
}

func (e *CheckError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

// Check verifies the structural well-formedness of p: identifiers, non-nil
// nodes and well-formed types. It does not resolve names or check types of
// expressions; that is the validator's job.
func (p *Program) Check() error {
	if p == nil {
		return &CheckError{Msg: "nil program"}
	}
	for i, d := range p.Decls {
		if err := CheckDecl(d); err != nil {
			if ce, ok := err.(*CheckError); ok && ce.Path == "" {
				ce.Path = fmt.Sprintf("decls[%d]", i)
			}
			return err
		}
	}
	return nil
}

// CheckDecl verifies a single declaration.
func CheckDecl(d Decl) error {
	switch d := d.(type) {
	case *Function:
		if d == nil {
			return &CheckError{Msg: "nil function"}
		}
		if !IsIdent(d.Name) {
			return &CheckError{Msg: fmt.Sprintf("invalid function name %q", d.Name)}
		}
		if d.Return.Kind == "" {
			return &CheckError{Path: d.Name, Msg: "missing return type"}
		}
		if err := checkType(d.Return, true); err != nil {
			return &CheckError{Path: d.Name + ".return", Msg: err.Error()}
		}
		for i, prm := range d.Params {
			path := fmt.Sprintf("%s.params[%d]", d.Name, i)
			if !IsIdent(prm.Name) {
				return &CheckError{Path: path, Msg: fmt.Sprintf("invalid parameter name %q", prm.Name)}
			}
			if err := checkType(prm.Type, false); err != nil {
				return &CheckError{Path: path, Msg: err.Error()}
			}
		}
		return checkBlock(d.Name+".body", d.Body)
	case *Variable:
		if d == nil {
			return &CheckError{Msg: "nil variable"}
		}
		if !IsIdent(d.Name) {
			return &CheckError{Msg: fmt.Sprintf("invalid variable name %q", d.Name)}
		}
		if err := checkType(d.Type, false); err != nil {
			return &CheckError{Path: d.Name, Msg: err.Error()}
		}
		if d.Init != nil {
			return checkExpr(d.Name+".init", d.Init)
		}
		return nil
	case nil:
		return &CheckError{Msg: "nil declaration"}
	default:
		return &CheckError{Msg: fmt.Sprintf("unknown declaration %T", d)}
	}
}

// CheckStmt verifies a single statement.
func CheckStmt(s Stmt) error {
	return checkStmt("", s)
}

func checkType(t Type, allowVoid bool) error {
	switch t.Kind {
	case KindInteger, KindFloat, KindBool, KindString:
		return nil
	case KindVoid:
		if allowVoid {
			return nil
		}
		return fmt.Errorf("Void is only allowed as a return type")
	case KindArray:
		if t.Elem == nil {
			return fmt.Errorf("array without element type")
		}
		return checkType(*t.Elem, false)
	case "":
		return fmt.Errorf("unresolved type")
	default:
		return fmt.Errorf("unknown type %q", string(t.Kind))
	}
}

func checkBlock(path string, body []Stmt) error {
	for i, s := range body {
		if err := checkStmt(fmt.Sprintf("%s[%d]", path, i), s); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(path string, s Stmt) error {
	switch s := s.(type) {
	case *Assign:
		if s == nil {
			return &CheckError{Path: path, Msg: "nil assignment"}
		}
		if !IsIdent(s.Name) {
			return &CheckError{Path: path, Msg: fmt.Sprintf("invalid assignment target %q", s.Name)}
		}
		if s.Decl != nil {
			if err := checkType(*s.Decl, false); err != nil {
				return &CheckError{Path: path, Msg: err.Error()}
			}
		}
		if s.Value == nil {
			return &CheckError{Path: path, Msg: "assignment without value"}
		}
		return checkExpr(path+".value", s.Value)
	case *CallStmt:
		if s == nil {
			return &CheckError{Path: path, Msg: "nil call statement"}
		}
		if s.Call == nil {
			return &CheckError{Path: path, Msg: "call statement without call"}
		}
		return checkExpr(path+".call", s.Call)
	case *If:
		if s == nil {
			return &CheckError{Path: path, Msg: "nil if statement"}
		}
		if s.Cond == nil {
			return &CheckError{Path: path, Msg: "if without condition"}
		}
		if err := checkExpr(path+".cond", s.Cond); err != nil {
			return err
		}
		if err := checkBlock(path+".then", s.Then); err != nil {
			return err
		}
		return checkBlock(path+".else", s.Else)
	case *Loop:
		if s == nil {
			return &CheckError{Path: path, Msg: "nil loop"}
		}
		if s.Cond != nil {
			if err := checkExpr(path+".cond", s.Cond); err != nil {
				return err
			}
		}
		return checkBlock(path+".body", s.Body)
	case *Return:
		if s == nil {
			return &CheckError{Path: path, Msg: "nil return statement"}
		}
		if s.Value != nil {
			return checkExpr(path+".value", s.Value)
		}
		return nil
	case *Print:
		if s == nil {
			return &CheckError{Path: path, Msg: "nil print statement"}
		}
		if s.Value == nil {
			return &CheckError{Path: path, Msg: "print without value"}
		}
		return checkExpr(path+".value", s.Value)
	case *Input:
		if s == nil {
			return &CheckError{Path: path, Msg: "nil input statement"}
		}
		if !IsIdent(s.Name) {
			return &CheckError{Path: path, Msg: fmt.Sprintf("invalid input target %q", s.Name)}
		}
		if s.Decl != nil {
			if err := checkType(*s.Decl, false); err != nil {
				return &CheckError{Path: path, Msg: err.Error()}
			}
		}
		return nil
	case nil:
		return &CheckError{Path: path, Msg: "nil statement"}
	default:
		return &CheckError{Path: path, Msg: fmt.Sprintf("unknown statement %T", s)}
	}
}

func checkExpr(path string, e Expr) error {
	switch e := e.(type) {
	case *Literal:
		if e == nil {
			return &CheckError{Path: path, Msg: "nil literal"}
		}
		if !e.Type.IsScalar() {
			return &CheckError{Path: path, Msg: fmt.Sprintf("literal of non-scalar type %s", e.Type)}
		}
		return nil
	case *VarRef:
		if e == nil || !IsIdent(e.Name) {
			return &CheckError{Path: path, Msg: "invalid variable reference"}
		}
		return nil
	case *Binary:
		if e == nil {
			return &CheckError{Path: path, Msg: "nil binary expression"}
		}
		if !knownOp(e.Op) {
			return &CheckError{Path: path, Msg: fmt.Sprintf("unknown operator %q", string(e.Op))}
		}
		if e.Left == nil || e.Right == nil {
			return &CheckError{Path: path, Msg: "binary expression missing operand"}
		}
		if err := checkExpr(path+".left", e.Left); err != nil {
			return err
		}
		return checkExpr(path+".right", e.Right)
	case *Call:
		if e == nil || !IsIdent(e.Name) {
			return &CheckError{Path: path, Msg: "invalid call target"}
		}
		for i, a := range e.Args {
			if a == nil {
				return &CheckError{Path: fmt.Sprintf("%s.args[%d]", path, i), Msg: "nil argument"}
			}
			if err := checkExpr(fmt.Sprintf("%s.args[%d]", path, i), a); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return &CheckError{Path: path, Msg: "nil expression"}
	default:
		return &CheckError{Path: path, Msg: fmt.Sprintf("unknown expression %T", e)}
	}
}

func knownOp(op Op) bool {
	for _, o := range Ops {
		if o == op {
			return true
		}
	}
	return false
}
