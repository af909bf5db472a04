package extract

import (
	"fmt"

	"nlc/internal/ipm"
	"nlc/internal/oracle"
)

// builder accumulates fragments into a Program. Statements go into an entry
// function created at the position of the first statement.
type builder struct {
	prog         *ipm.Program
	entry        *ipm.Function
	locals       []oracle.Local
	lastFunction string
	lastValue    string
}

func (b *builder) snapshot(index int) oracle.Snapshot {
	snap := oracle.Snapshot{
		LastFunction: b.lastFunction,
		LastValue:    b.lastValue,
		Index:        index,
	}
	for _, d := range b.prog.Decls {
		switch d := d.(type) {
		case *ipm.Function:
			if d == b.entry {
				continue
			}
			params := make([]ipm.Param, len(d.Params))
			copy(params, d.Params)
			snap.Decls = append(snap.Decls, oracle.DeclInfo{Name: d.Name, Function: true, Type: d.Return, Params: params})
		case *ipm.Variable:
			snap.Decls = append(snap.Decls, oracle.DeclInfo{Name: d.Name, Type: d.Type})
		}
	}
	snap.Locals = append([]oracle.Local(nil), b.locals...)
	return snap
}

func (b *builder) merge(f oracle.Fragment) error {
	if f.Decl != nil {
		return b.mergeDecl(f.Decl)
	}
	return b.mergeStmt(f.Stmt)
}

func (b *builder) mergeDecl(d ipm.Decl) error {
	name := d.DeclName()
	if b.prog.Lookup(name) != nil {
		return fmt.Errorf("%q is already declared", name)
	}
	b.prog.Decls = append(b.prog.Decls, d)
	switch d.(type) {
	case *ipm.Function:
		b.lastFunction = name
	case *ipm.Variable:
		b.lastValue = name
	}
	return nil
}

func (b *builder) mergeStmt(s ipm.Stmt) error {
	if b.entry == nil {
		if b.prog.Lookup(EntryName) != nil {
			return fmt.Errorf("statement cannot join the declared function %q", EntryName)
		}
		b.entry = &ipm.Function{Name: EntryName, Return: ipm.Void}
		b.prog.Decls = append(b.prog.Decls, b.entry)
	}
	b.entry.Body = append(b.entry.Body, s)

	switch s := s.(type) {
	case *ipm.Assign:
		if s.Decl != nil {
			b.locals = append(b.locals, oracle.Local{Name: s.Name, Type: *s.Decl})
		}
		b.lastValue = s.Name
	case *ipm.Input:
		if s.Decl != nil {
			b.locals = append(b.locals, oracle.Local{Name: s.Name, Type: *s.Decl})
		}
		b.lastValue = s.Name
	}
	return nil
}
