// Package oracle defines the capability that interprets natural-language
// sentences as IPM fragments, along with the oracles shipped with nlc: a
// rule-based interpreter, a remote model client and a fixture table.
package oracle

import (
	"context"
	"errors"

	"nlc/internal/ipm"
)

// Errors an oracle session reports. The extractor maps them onto its own
// error kinds; any other error is treated as the oracle being unavailable.
var (
	ErrUnavailable = errors.New("oracle unavailable")
	ErrUnsupported = errors.New("unsupported construct")
	ErrAmbiguous   = errors.New("ambiguous sentence")
	ErrMalformed   = errors.New("malformed fragment")
)

// Oracle opens sessions. A session is owned by a single extraction and is
// closed when the extraction ends.
type Oracle interface {
	Open(ctx context.Context) (Session, error)
}

// Session interprets sentences one at a time.
type Session interface {
	// Interpret maps one sentence to candidate fragments given a snapshot of
	// the program built so far.
	Interpret(ctx context.Context, chunk string, snap Snapshot) ([]Candidate, error)
	// Close releases the session. When an Interpret call outlives its
	// deadline the extractor abandons it, so Close may run while that call
	// is still in flight; its ctx is already done by then.
	Close() error
}

// Func adapts a function to both Oracle and Session. Open returns the
// function itself and Close does nothing.
type Func func(ctx context.Context, chunk string, snap Snapshot) ([]Candidate, error)

// Open implements Oracle.
func (f Func) Open(context.Context) (Session, error) { return f, nil }

// Interpret implements Session.
func (f Func) Interpret(ctx context.Context, chunk string, snap Snapshot) ([]Candidate, error) {
	return f(ctx, chunk, snap)
}

// Close implements Session.
func (f Func) Close() error { return nil }

// Fragment is a single declaration or a single statement. Exactly one of
// the fields is set.
type Fragment struct {
	Decl ipm.Decl
	Stmt ipm.Stmt
}

// DeclFragment wraps a declaration.
func DeclFragment(d ipm.Decl) Fragment { return Fragment{Decl: d} }

// StmtFragment wraps a statement.
func StmtFragment(s ipm.Stmt) Fragment { return Fragment{Stmt: s} }

// String renders the fragment in ipm listing form.
func (f Fragment) String() string {
	switch {
	case f.Decl != nil:
		return ipm.Format(&ipm.Program{Decls: []ipm.Decl{f.Decl}})
	case f.Stmt != nil:
		return ipm.FormatStmt(f.Stmt)
	}
	return "<empty fragment>"
}

// Candidate is one interpretation of a sentence.
type Candidate struct {
	Fragment   Fragment
	Confidence float64 // In [0, 1]
}

// DeclInfo summarizes a top-level declaration for the oracle.
type DeclInfo struct {
	Name     string
	Function bool
	Type     ipm.Type // Variable type, or return type of a function
	Params   []ipm.Param
}

// Local is a variable declared at the top level of the entry function.
type Local struct {
	Name string
	Type ipm.Type
}

// Snapshot is a read-only view of the program extracted so far.
type Snapshot struct {
	Decls        []DeclInfo
	Locals       []Local
	LastFunction string // Most recently declared function
	LastValue    string // Most recently assigned or read variable
	Index        int    // Zero-based sentence number
}

// Function returns the declared function with the given name.
func (s Snapshot) Function(name string) (DeclInfo, bool) {
	for _, d := range s.Decls {
		if d.Function && d.Name == name {
			return d, true
		}
	}
	return DeclInfo{}, false
}

// VarType returns the type of a visible variable, preferring locals over
// globals.
func (s Snapshot) VarType(name string) (ipm.Type, bool) {
	for i := len(s.Locals) - 1; i >= 0; i-- {
		if s.Locals[i].Name == name {
			return s.Locals[i].Type, true
		}
	}
	for _, d := range s.Decls {
		if !d.Function && d.Name == name {
			return d.Type, true
		}
	}
	return ipm.Type{}, false
}

// Declared reports whether name is used by any declaration or local.
func (s Snapshot) Declared(name string) bool {
	if _, ok := s.VarType(name); ok {
		return true
	}
	for _, d := range s.Decls {
		if d.Name == name {
			return true
		}
	}
	return false
}
