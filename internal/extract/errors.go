package extract

import (
	"fmt"
	"strings"
)

// ErrorKind classifies intent extraction failures. Kinds can be matched
// with errors.Is(err, extract.OracleUnavailable).
type ErrorKind int

const (
	Ambiguous ErrorKind = iota + 1
	UnsupportedConstruct
	OracleUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case Ambiguous:
		return "Ambiguous"
	case UnsupportedConstruct:
		return "UnsupportedConstruct"
	case OracleUnavailable:
		return "OracleUnavailable"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) Error() string { return k.String() }

// IntentError is returned by Extract.
type IntentError struct {
	Kind     ErrorKind
	Sentence int    // 1-based sentence number, 0 when not tied to a sentence
	Text     string // The offending sentence
	Msg      string
	Err      error // Underlying oracle error, if any
}

func (e *IntentError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Sentence > 0 {
		fmt.Fprintf(&b, " at sentence %d (%q)", e.Sentence, e.Text)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *IntentError) Unwrap() error { return e.Err }

// Is lets errors.Is match an IntentError against its ErrorKind.
func (e *IntentError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}
