package sema

import "fmt"

// ErrorKind classifies validation failures. Kinds can be matched with
// errors.Is(err, sema.TypeMismatch).
type ErrorKind int

const (
	UndefinedSymbol ErrorKind = iota + 1
	TypeMismatch
	DuplicateDeclaration
	InvalidControlFlow
	MalformedProgram // Structurally invalid IPM, rejected before name resolution
)

func (k ErrorKind) String() string {
	switch k {
	case UndefinedSymbol:
		return "UndefinedSymbol"
	case TypeMismatch:
		return "TypeMismatch"
	case DuplicateDeclaration:
		return "DuplicateDeclaration"
	case InvalidControlFlow:
		return "InvalidControlFlow"
	case MalformedProgram:
		return "MalformedProgram"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) Error() string { return k.String() }

// ValidationError is returned by Validate for the first problem found.
type ValidationError struct {
	Kind ErrorKind
	Decl string // Enclosing declaration, empty for program-level problems
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Decl == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s in %s: %s", e.Kind, e.Decl, e.Msg)
}

// Is lets errors.Is match a ValidationError against its ErrorKind.
func (e *ValidationError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}
