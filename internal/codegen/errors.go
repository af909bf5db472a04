package codegen

import "fmt"

// ErrorKind classifies emission failures.
type ErrorKind int

const (
	UnsupportedFeature ErrorKind = iota + 1
	InternalLoweringError
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedFeature:
		return "UnsupportedFeature"
	case InternalLoweringError:
		return "InternalLoweringError"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) Error() string { return k.String() }

// EmitError reports why a validated program could not be lowered.
type EmitError struct {
	Kind    ErrorKind
	Backend Backend
	Decl    string
	Msg     string
}

func (e *EmitError) Error() string {
	if e.Decl == "" {
		return fmt.Sprintf("%s (%s backend): %s", e.Kind, e.Backend, e.Msg)
	}
	return fmt.Sprintf("%s (%s backend) in %s: %s", e.Kind, e.Backend, e.Decl, e.Msg)
}

// Is matches an EmitError against its ErrorKind.
func (e *EmitError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}
