package optimize

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlc/internal/ipm"
	"nlc/internal/sema"
)

func TestFoldNested(t *testing.T) {
	// (2 + 3) * x + (10 / 4) stays partially symbolic.
	e := ipm.Bin(ipm.OpAdd,
		ipm.Bin(ipm.OpMul, ipm.Bin(ipm.OpAdd, ipm.Int(2), ipm.Int(3)), ipm.Ref("x")),
		ipm.Bin(ipm.OpDiv, ipm.Int(10), ipm.Int(4)),
	)
	got := FoldExpr(e)
	assert.Equal(t, ipm.Bin(ipm.OpAdd, ipm.Bin(ipm.OpMul, ipm.Int(5), ipm.Ref("x")), ipm.Int(2)), got)
}

func TestFoldKinds(t *testing.T) {
	tests := []struct {
		name string
		in   ipm.Expr
		want ipm.Expr
	}{
		{"mixed numeric", ipm.Bin(ipm.OpMul, ipm.Int(2), ipm.Flt(1.5)), ipm.Flt(3)},
		{"float compare", ipm.Bin(ipm.OpLt, ipm.Flt(0.5), ipm.Int(1)), ipm.Bln(true)},
		{"concat", ipm.Bin(ipm.OpAdd, ipm.Str("ab"), ipm.Str("cd")), ipm.Str("abcd")},
		{"string eq", ipm.Bin(ipm.OpEq, ipm.Str("a"), ipm.Str("b")), ipm.Bln(false)},
		{"logic", ipm.Bin(ipm.OpOr, ipm.Bln(false), ipm.Bin(ipm.OpAnd, ipm.Bln(true), ipm.Bln(true))), ipm.Bln(true)},
		{"negative modulo", ipm.Bin(ipm.OpMod, ipm.Int(-7), ipm.Int(3)), ipm.Int(-1)},
		{"truncating division", ipm.Bin(ipm.OpDiv, ipm.Int(-7), ipm.Int(2)), ipm.Int(-3)},
		{"division by zero", ipm.Bin(ipm.OpDiv, ipm.Int(1), ipm.Int(0)), ipm.Bin(ipm.OpDiv, ipm.Int(1), ipm.Int(0))},
		{"float division by zero", ipm.Bin(ipm.OpDiv, ipm.Flt(1), ipm.Flt(0)), ipm.Bin(ipm.OpDiv, ipm.Flt(1), ipm.Flt(0))},
		{"overflow", ipm.Bin(ipm.OpAdd, ipm.Int(math.MaxInt64), ipm.Int(1)), ipm.Bin(ipm.OpAdd, ipm.Int(math.MaxInt64), ipm.Int(1))},
		{"mul overflow", ipm.Bin(ipm.OpMul, ipm.Int(math.MinInt64), ipm.Int(-1)), ipm.Bin(ipm.OpMul, ipm.Int(math.MinInt64), ipm.Int(-1))},
		{"call args", &ipm.Call{Name: "f", Args: []ipm.Expr{ipm.Bin(ipm.OpSub, ipm.Int(3), ipm.Int(1))}}, &ipm.Call{Name: "f", Args: []ipm.Expr{ipm.Int(2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldExpr(tt.in))
		})
	}
}

func TestFoldDoesNotMutate(t *testing.T) {
	prog := &ipm.Program{Decls: []ipm.Decl{
		&ipm.Variable{Name: "g", Type: ipm.Integer, Init: ipm.Bin(ipm.OpMul, ipm.Int(6), ipm.Int(7))},
		&ipm.Function{Name: "main", Return: ipm.Void, Body: []ipm.Stmt{
			&ipm.Assign{Name: "x", Decl: ipm.TypePtr(ipm.Integer), Value: ipm.Bin(ipm.OpAdd, ipm.Int(1), ipm.Int(2))},
			&ipm.If{Cond: ipm.Bin(ipm.OpGt, ipm.Ref("x"), ipm.Bin(ipm.OpSub, ipm.Int(5), ipm.Int(5))), Then: []ipm.Stmt{
				&ipm.Print{Value: ipm.Bin(ipm.OpAdd, ipm.Str("x="), ipm.Str("!"))},
			}},
			&ipm.Loop{Cond: ipm.Bin(ipm.OpLt, ipm.Ref("x"), ipm.Int(0)), Body: []ipm.Stmt{&ipm.Return{}}},
			&ipm.Input{Name: "y", Decl: ipm.TypePtr(ipm.Float), Prompt: "y? "},
		}},
	}}
	before := ipm.Format(prog)

	folded := Fold(prog)
	assert.Equal(t, before, ipm.Format(prog))
	assert.Equal(t, `var g: Integer = 42

func main() -> Void {
    let x: Integer = 3
    if x > 0 {
        print "x=!"
    }
    while x < 0 {
        return
    }
    input let y: Float prompt "y? "
}
`, ipm.Format(folded))

	_, err := sema.Validate(folded)
	require.NoError(t, err)
}

func refInt(op ipm.Op, a, b int64) (*ipm.Literal, bool) {
	switch op {
	case ipm.OpAdd:
		return ipm.Int(a + b), true
	case ipm.OpSub:
		return ipm.Int(a - b), true
	case ipm.OpMul:
		return ipm.Int(a * b), true
	case ipm.OpDiv:
		if b == 0 {
			return nil, false
		}
		return ipm.Int(a / b), true
	case ipm.OpMod:
		if b == 0 {
			return nil, false
		}
		return ipm.Int(a % b), true
	case ipm.OpEq:
		return ipm.Bln(a == b), true
	case ipm.OpNe:
		return ipm.Bln(a != b), true
	case ipm.OpLt:
		return ipm.Bln(a < b), true
	case ipm.OpLe:
		return ipm.Bln(a <= b), true
	case ipm.OpGt:
		return ipm.Bln(a > b), true
	case ipm.OpGe:
		return ipm.Bln(a >= b), true
	}
	return nil, false
}

func TestFoldIntegerProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	intOps := []ipm.Op{ipm.OpAdd, ipm.OpSub, ipm.OpMul, ipm.OpDiv, ipm.OpMod, ipm.OpEq, ipm.OpNe, ipm.OpLt, ipm.OpLe, ipm.OpGt, ipm.OpGe}

	properties.Property("folding two small integers agrees with Go arithmetic", prop.ForAll(
		func(a, b int64, opIndex int) bool {
			op := intOps[opIndex]
			in := ipm.Bin(op, ipm.Int(a), ipm.Int(b))
			got := FoldExpr(in)
			want, ok := refInt(op, a, b)
			if !ok {
				bin, isBin := got.(*ipm.Binary)
				return isBin && bin.Op == op
			}
			lit, isLit := got.(*ipm.Literal)
			return isLit && *lit == *want
		},
		gen.Int64Range(-1_000_000, 1_000_000),
		gen.Int64Range(-1_000, 1_000),
		gen.IntRange(0, len(intOps)-1),
	))

	properties.Property("folding is idempotent", prop.ForAll(
		func(a, b, c int64) bool {
			e := ipm.Bin(ipm.OpSub, ipm.Bin(ipm.OpMul, ipm.Int(a), ipm.Ref("x")), ipm.Bin(ipm.OpAdd, ipm.Int(b), ipm.Int(c)))
			once := FoldExpr(e)
			return assert.ObjectsAreEqual(once, FoldExpr(once))
		},
		gen.Int64(),
		gen.Int64(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
