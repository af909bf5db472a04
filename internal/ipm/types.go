// Package ipm defines the intermediate program model produced by intent
// extraction and consumed by validation and code generation.
package ipm

import "strings"

// Kind represents the category of an IPM type.
type Kind string

const (
	KindInteger Kind = "Integer"
	KindFloat   Kind = "Float"
	KindBool    Kind = "Bool"
	KindString  Kind = "String"
	KindVoid    Kind = "Void"
	KindArray   Kind = "Array"
)

// Type is a structural type. Elem is set only for arrays.
type Type struct {
	Kind Kind  // Type category
	Elem *Type // Element type (for arrays)
}

// Predeclared scalar types.
var (
	Integer = Type{Kind: KindInteger}
	Float   = Type{Kind: KindFloat}
	Bool    = Type{Kind: KindBool}
	String  = Type{Kind: KindString}
	Void    = Type{Kind: KindVoid}
)

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem Type) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e}
}

// Equal reports whether t and u are structurally identical.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind {
		return false
	}
	if t.Kind != KindArray {
		return true
	}
	if t.Elem == nil || u.Elem == nil {
		return t.Elem == u.Elem
	}
	return t.Elem.Equal(*u.Elem)
}

// IsNumeric reports whether t is Integer or Float.
func (t Type) IsNumeric() bool {
	return t.Kind == KindInteger || t.Kind == KindFloat
}

// IsScalar reports whether t is a non-void, non-array type.
func (t Type) IsScalar() bool {
	switch t.Kind {
	case KindInteger, KindFloat, KindBool, KindString:
		return true
	}
	return false
}

// String renders the type, e.g. "Array(Integer)".
func (t Type) String() string {
	if t.Kind == KindArray {
		if t.Elem == nil {
			return "Array(?)"
		}
		return "Array(" + t.Elem.String() + ")"
	}
	if t.Kind == "" {
		return "?"
	}
	return string(t.Kind)
}

// ParseType parses the textual form produced by Type.String. Kind names are
// matched case-insensitively.
func ParseType(s string) (Type, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "array(") && strings.HasSuffix(s, ")") {
		elem, ok := ParseType(s[len("array(") : len(s)-1])
		if !ok || elem.Kind == KindVoid {
			return Type{}, false
		}
		return ArrayOf(elem), true
	}
	switch lower {
	case "integer", "int":
		return Integer, true
	case "float":
		return Float, true
	case "bool", "boolean":
		return Bool, true
	case "string":
		return String, true
	case "void":
		return Void, true
	}
	return Type{}, false
}
