package codegen

import (
	"fmt"

	"nlc/internal/sema"
)

// Mangler turns IPM names into target identifiers. Globals and functions
// get the nl_ prefix and locals the v_ prefix, which keeps every user name
// clear of C keywords, the C library and the nlrt_ runtime. A local that
// reuses a name already taken in the same function gets a _<n> suffix,
// counting from 1 per function.
type Mangler struct {
	locals map[*sema.Symbol]string
	used   map[string]bool
	counts map[string]int
}

// NewMangler returns an empty Mangler.
func NewMangler() *Mangler {
	m := &Mangler{}
	m.Reset()
	return m
}

// Global returns the identifier of a global variable or function.
func (m *Mangler) Global(name string) string {
	return "nl_" + name
}

// Reset forgets every local; call it at the start of each function.
func (m *Mangler) Reset() {
	m.locals = make(map[*sema.Symbol]string)
	m.used = make(map[string]bool)
	m.counts = make(map[string]int)
}

// Enter assigns names to the params and locals of fn in frame order.
func (m *Mangler) Enter(fn *sema.FuncInfo) {
	m.Reset()
	for _, p := range fn.Params {
		m.Local(p)
	}
	for _, l := range fn.Locals {
		m.Local(l)
	}
}

// Local returns the identifier of a param or local symbol.
func (m *Mangler) Local(sym *sema.Symbol) string {
	if name, ok := m.locals[sym]; ok {
		return name
	}
	name := "v_" + sym.Name
	for m.used[name] {
		m.counts[sym.Name]++
		name = fmt.Sprintf("v_%s_%d", sym.Name, m.counts[sym.Name])
	}
	m.used[name] = true
	m.locals[sym] = name
	return name
}

// Symbol returns the identifier of any resolved symbol.
func (m *Mangler) Symbol(sym *sema.Symbol) string {
	if sym.Kind == sema.SymGlobal || sym.Kind == sema.SymFunction {
		return m.Global(sym.Name)
	}
	return m.Local(sym)
}
