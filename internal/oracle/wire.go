package oracle

import (
	"fmt"

	"nlc/internal/ipm"
)

// WireCandidate is the JSON/YAML form of a Candidate.
type WireCandidate struct {
	Confidence float64  `yaml:"confidence" json:"confidence"`
	Fragment   WireNode `yaml:"fragment" json:"fragment"`
}

// WireNode is the JSON/YAML form of a declaration or statement, selected by
// Kind: function, variable, assign, call, if, loop, return, print, input.
type WireNode struct {
	Kind    string      `yaml:"kind" json:"kind"`
	Name    string      `yaml:"name,omitempty" json:"name,omitempty"`
	Params  []WireParam `yaml:"params,omitempty" json:"params,omitempty"`
	Returns string      `yaml:"returns,omitempty" json:"returns,omitempty"`
	Type    string      `yaml:"type,omitempty" json:"type,omitempty"`
	Declare string      `yaml:"declare,omitempty" json:"declare,omitempty"`
	Init    *WireExpr   `yaml:"init,omitempty" json:"init,omitempty"`
	Value   *WireExpr   `yaml:"value,omitempty" json:"value,omitempty"`
	Cond    *WireExpr   `yaml:"cond,omitempty" json:"cond,omitempty"`
	Args    []*WireExpr `yaml:"args,omitempty" json:"args,omitempty"`
	Then    []WireNode  `yaml:"then,omitempty" json:"then,omitempty"`
	Else    []WireNode  `yaml:"else,omitempty" json:"else,omitempty"`
	Body    []WireNode  `yaml:"body,omitempty" json:"body,omitempty"`
	Prompt  string      `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

// WireParam is a function parameter.
type WireParam struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// WireExpr is the JSON/YAML form of an expression. Exactly one of the
// literal fields, Var, Op or Call is set.
type WireExpr struct {
	Int    *int64      `yaml:"int,omitempty" json:"int,omitempty"`
	Float  *float64    `yaml:"float,omitempty" json:"float,omitempty"`
	Bool   *bool       `yaml:"bool,omitempty" json:"bool,omitempty"`
	String *string     `yaml:"string,omitempty" json:"string,omitempty"`
	Var    string      `yaml:"var,omitempty" json:"var,omitempty"`
	Op     string      `yaml:"op,omitempty" json:"op,omitempty"`
	Left   *WireExpr   `yaml:"left,omitempty" json:"left,omitempty"`
	Right  *WireExpr   `yaml:"right,omitempty" json:"right,omitempty"`
	Call   string      `yaml:"call,omitempty" json:"call,omitempty"`
	Args   []*WireExpr `yaml:"args,omitempty" json:"args,omitempty"`
}

// DecodeCandidates converts wire candidates. Any malformed candidate makes
// the whole set malformed.
func DecodeCandidates(ws []WireCandidate) ([]Candidate, error) {
	out := make([]Candidate, 0, len(ws))
	for i, w := range ws {
		f, err := DecodeFragment(w.Fragment)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		out = append(out, Candidate{Fragment: f, Confidence: w.Confidence})
	}
	return out, nil
}

// DecodeFragment converts a wire node into a Fragment. Errors wrap
// ErrMalformed.
func DecodeFragment(n WireNode) (Fragment, error) {
	switch n.Kind {
	case "function":
		ret, err := wireType(n.Returns)
		if err != nil {
			return Fragment{}, err
		}
		f := &ipm.Function{Name: n.Name, Return: ret}
		for _, p := range n.Params {
			t, err := wireType(p.Type)
			if err != nil {
				return Fragment{}, err
			}
			f.Params = append(f.Params, ipm.Param{Name: p.Name, Type: t})
		}
		if f.Body, err = decodeBlock(n.Body); err != nil {
			return Fragment{}, err
		}
		return DeclFragment(f), nil
	case "variable":
		t, err := wireType(n.Type)
		if err != nil {
			return Fragment{}, err
		}
		v := &ipm.Variable{Name: n.Name, Type: t}
		if n.Init != nil {
			if v.Init, err = decodeExpr(n.Init); err != nil {
				return Fragment{}, err
			}
		}
		return DeclFragment(v), nil
	}
	s, err := decodeStmt(n)
	if err != nil {
		return Fragment{}, err
	}
	return StmtFragment(s), nil
}

func wireType(s string) (ipm.Type, error) {
	if s == "" {
		// Left unresolved; the extractor rejects it as ambiguous.
		return ipm.Type{}, nil
	}
	t, ok := ipm.ParseType(s)
	if !ok {
		return ipm.Type{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, s)
	}
	return t, nil
}

func wireDeclare(s string) (*ipm.Type, error) {
	if s == "" {
		return nil, nil
	}
	t, err := wireType(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeBlock(nodes []WireNode) ([]ipm.Stmt, error) {
	var out []ipm.Stmt
	for _, n := range nodes {
		s, err := decodeStmt(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeStmt(n WireNode) (ipm.Stmt, error) {
	var err error
	switch n.Kind {
	case "assign":
		s := &ipm.Assign{Name: n.Name}
		if s.Decl, err = wireDeclare(n.Declare); err != nil {
			return nil, err
		}
		if s.Value, err = decodeExpr(n.Value); err != nil {
			return nil, err
		}
		return s, nil
	case "call":
		c := &ipm.Call{Name: n.Name}
		if c.Args, err = decodeExprs(n.Args); err != nil {
			return nil, err
		}
		return &ipm.CallStmt{Call: c}, nil
	case "if":
		s := &ipm.If{}
		if s.Cond, err = decodeExpr(n.Cond); err != nil {
			return nil, err
		}
		if s.Then, err = decodeBlock(n.Then); err != nil {
			return nil, err
		}
		if s.Else, err = decodeBlock(n.Else); err != nil {
			return nil, err
		}
		return s, nil
	case "loop", "while":
		s := &ipm.Loop{}
		if n.Cond != nil {
			if s.Cond, err = decodeExpr(n.Cond); err != nil {
				return nil, err
			}
		}
		if s.Body, err = decodeBlock(n.Body); err != nil {
			return nil, err
		}
		return s, nil
	case "return":
		s := &ipm.Return{}
		if n.Value != nil {
			if s.Value, err = decodeExpr(n.Value); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "print":
		s := &ipm.Print{}
		if s.Value, err = decodeExpr(n.Value); err != nil {
			return nil, err
		}
		return s, nil
	case "input":
		s := &ipm.Input{Name: n.Name, Prompt: n.Prompt}
		if s.Decl, err = wireDeclare(n.Declare); err != nil {
			return nil, err
		}
		return s, nil
	case "":
		return nil, fmt.Errorf("%w: node without kind", ErrMalformed)
	}
	return nil, fmt.Errorf("%w: unknown statement kind %q", ErrMalformed, n.Kind)
}

func decodeExprs(ws []*WireExpr) ([]ipm.Expr, error) {
	var out []ipm.Expr
	for _, w := range ws {
		e, err := decodeExpr(w)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeExpr(w *WireExpr) (ipm.Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: missing expression", ErrMalformed)
	}
	switch {
	case w.Int != nil:
		return ipm.Int(*w.Int), nil
	case w.Float != nil:
		return ipm.Flt(*w.Float), nil
	case w.Bool != nil:
		return ipm.Bln(*w.Bool), nil
	case w.String != nil:
		return ipm.Str(*w.String), nil
	case w.Var != "":
		return ipm.Ref(w.Var), nil
	case w.Op != "":
		l, err := decodeExpr(w.Left)
		if err != nil {
			return nil, err
		}
		r, err := decodeExpr(w.Right)
		if err != nil {
			return nil, err
		}
		return ipm.Bin(ipm.Op(w.Op), l, r), nil
	case w.Call != "":
		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, err
		}
		return &ipm.Call{Name: w.Call, Args: args}, nil
	}
	return nil, fmt.Errorf("%w: empty expression", ErrMalformed)
}

// EncodeFragment converts a Fragment into its wire form.
func EncodeFragment(f Fragment) WireNode {
	switch d := f.Decl.(type) {
	case *ipm.Function:
		n := WireNode{Kind: "function", Name: d.Name, Returns: d.Return.String(), Body: encodeBlock(d.Body)}
		for _, p := range d.Params {
			n.Params = append(n.Params, WireParam{Name: p.Name, Type: p.Type.String()})
		}
		return n
	case *ipm.Variable:
		n := WireNode{Kind: "variable", Name: d.Name, Type: d.Type.String()}
		if d.Init != nil {
			n.Init = encodeExpr(d.Init)
		}
		return n
	}
	return encodeStmt(f.Stmt)
}

func encodeBlock(body []ipm.Stmt) []WireNode {
	var out []WireNode
	for _, s := range body {
		out = append(out, encodeStmt(s))
	}
	return out
}

func encodeStmt(s ipm.Stmt) WireNode {
	switch s := s.(type) {
	case *ipm.Assign:
		n := WireNode{Kind: "assign", Name: s.Name, Value: encodeExpr(s.Value)}
		if s.Decl != nil {
			n.Declare = s.Decl.String()
		}
		return n
	case *ipm.CallStmt:
		return WireNode{Kind: "call", Name: s.Call.Name, Args: encodeExprs(s.Call.Args)}
	case *ipm.If:
		return WireNode{Kind: "if", Cond: encodeExpr(s.Cond), Then: encodeBlock(s.Then), Else: encodeBlock(s.Else)}
	case *ipm.Loop:
		n := WireNode{Kind: "loop", Body: encodeBlock(s.Body)}
		if s.Cond != nil {
			n.Cond = encodeExpr(s.Cond)
		}
		return n
	case *ipm.Return:
		n := WireNode{Kind: "return"}
		if s.Value != nil {
			n.Value = encodeExpr(s.Value)
		}
		return n
	case *ipm.Print:
		return WireNode{Kind: "print", Value: encodeExpr(s.Value)}
	case *ipm.Input:
		n := WireNode{Kind: "input", Name: s.Name, Prompt: s.Prompt}
		if s.Decl != nil {
			n.Declare = s.Decl.String()
		}
		return n
	}
	return WireNode{}
}

func encodeExprs(es []ipm.Expr) []*WireExpr {
	var out []*WireExpr
	for _, e := range es {
		out = append(out, encodeExpr(e))
	}
	return out
}

func encodeExpr(e ipm.Expr) *WireExpr {
	switch e := e.(type) {
	case *ipm.Literal:
		switch e.Type.Kind {
		case ipm.KindInteger:
			v := e.Int
			return &WireExpr{Int: &v}
		case ipm.KindFloat:
			v := e.Float
			return &WireExpr{Float: &v}
		case ipm.KindBool:
			v := e.Bool
			return &WireExpr{Bool: &v}
		case ipm.KindString:
			v := e.Str
			return &WireExpr{String: &v}
		}
	case *ipm.VarRef:
		return &WireExpr{Var: e.Name}
	case *ipm.Binary:
		return &WireExpr{Op: string(e.Op), Left: encodeExpr(e.Left), Right: encodeExpr(e.Right)}
	case *ipm.Call:
		return &WireExpr{Call: e.Name, Args: encodeExprs(e.Args)}
	}
	return &WireExpr{}
}
