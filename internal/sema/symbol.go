package sema

import (
	"nlc/internal/ipm"
)

// SymbolKind tells what a symbol names.
type SymbolKind int

const (
	SymFunction SymbolKind = iota
	SymGlobal
	SymParam
	SymLocal
)

func (k SymbolKind) String() string {
	switch k {
	case SymFunction:
		return "function"
	case SymGlobal:
		return "global"
	case SymParam:
		return "parameter"
	case SymLocal:
		return "local"
	}
	return "symbol"
}

// Signature is the type signature of a function.
type Signature struct {
	Params []ipm.Type
	Return ipm.Type
}

// Symbol is a resolved name.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  ipm.Type   // Variable type; the return type for functions
	Sig   *Signature // Set for functions
	Index int        // Global slot, or frame slot for params and locals
	Decl  ipm.Decl   // Declaring node for functions and globals
}

// IsVariable reports whether the symbol names a storage location.
func (s *Symbol) IsVariable() bool {
	return s.Kind != SymFunction
}

// SymbolTable maps top-level declaration names to their symbols. It is built
// once per validation and is read-only afterwards.
type SymbolTable struct {
	byName  map[string]*Symbol
	ordered []*Symbol
	globals []*Symbol
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol)}
}

// Lookup returns the symbol for name, or nil.
func (st *SymbolTable) Lookup(name string) *Symbol {
	return st.byName[name]
}

// Symbols returns all top-level symbols in declaration order.
func (st *SymbolTable) Symbols() []*Symbol {
	return st.ordered
}

// Globals returns the global variables in declaration order; a global's
// Index is its position in this slice.
func (st *SymbolTable) Globals() []*Symbol {
	return st.globals
}

// Functions returns the function symbols in declaration order.
func (st *SymbolTable) Functions() []*Symbol {
	var fns []*Symbol
	for _, s := range st.ordered {
		if s.Kind == SymFunction {
			fns = append(fns, s)
		}
	}
	return fns
}

func (st *SymbolTable) add(sym *Symbol) bool {
	if _, found := st.byName[sym.Name]; found {
		return false
	}
	if sym.Kind == SymGlobal {
		sym.Index = len(st.globals)
		st.globals = append(st.globals, sym)
	}
	st.byName[sym.Name] = sym
	st.ordered = append(st.ordered, sym)
	return true
}

// scope maps identifiers to symbols and is chained to its parent. The
// outermost scope of every function body has the global scope as parent.
type scope struct {
	parent *scope
	table  *SymbolTable // Set only on the global scope
	syms   map[string]*Symbol
}

func newGlobalScope(st *SymbolTable) *scope {
	return &scope{table: st}
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, syms: make(map[string]*Symbol)}
}

// lookup searches the scope chain, innermost first.
func (s *scope) lookup(name string) *Symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.table != nil {
			if sym := cur.table.Lookup(name); sym != nil {
				return sym
			}
			continue
		}
		if sym, found := cur.syms[name]; found {
			return sym
		}
	}
	return nil
}

// define adds sym to this scope. It fails if the name is already defined in
// this same scope.
func (s *scope) define(sym *Symbol) bool {
	if _, found := s.syms[sym.Name]; found {
		return false
	}
	s.syms[sym.Name] = sym
	return true
}
