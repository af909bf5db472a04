package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlc/internal/ipm"
)

func interpretOne(t *testing.T, sentence string, snap Snapshot) Fragment {
	t.Helper()
	cands, err := NewRules().Interpret(context.Background(), sentence, snap)
	require.NoError(t, err)
	require.Len(t, cands, 1, "candidates for %q", sentence)
	return cands[0].Fragment
}

func addSnapshot() Snapshot {
	return Snapshot{
		Decls: []DeclInfo{{
			Name:     "add",
			Function: true,
			Type:     ipm.Integer,
			Params:   []ipm.Param{{Name: "a", Type: ipm.Integer}, {Name: "b", Type: ipm.Integer}},
		}},
		LastFunction: "add",
	}
}

func TestRulesArithmeticFunction(t *testing.T) {
	f := interpretOne(t, "Create a function that adds two numbers and returns the result.", Snapshot{})
	want := &ipm.Function{
		Name:   "add",
		Params: []ipm.Param{{Name: "a", Type: ipm.Integer}, {Name: "b", Type: ipm.Integer}},
		Return: ipm.Integer,
		Body:   []ipm.Stmt{&ipm.Return{Value: ipm.Bin(ipm.OpAdd, ipm.Ref("a"), ipm.Ref("b"))}},
	}
	assert.Equal(t, want, f.Decl)
	assert.Nil(t, f.Stmt)

	f = interpretOne(t, "Define a function named half that divides two decimal numbers and returns the result", Snapshot{})
	fn := f.Decl.(*ipm.Function)
	assert.Equal(t, "half", fn.Name)
	assert.Equal(t, ipm.Float, fn.Return)
	assert.Equal(t, ipm.Float, fn.Params[0].Type)
}

func TestRulesCallAndPrint(t *testing.T) {
	snap := addSnapshot()
	f := interpretOne(t, "Call it with 5 and 3.", snap)
	assert.Equal(t, &ipm.Assign{
		Name:  "result",
		Decl:  ipm.TypePtr(ipm.Integer),
		Value: &ipm.Call{Name: "add", Args: []ipm.Expr{ipm.Int(5), ipm.Int(3)}},
	}, f.Stmt)

	snap.Locals = []Local{{Name: "result", Type: ipm.Integer}}
	snap.LastValue = "result"
	f = interpretOne(t, "Call add with 1 and 2", snap)
	assert.Nil(t, f.Stmt.(*ipm.Assign).Decl, "result is reused")

	f = interpretOne(t, "Print the result.", snap)
	assert.Equal(t, &ipm.Print{Value: ipm.Ref("result")}, f.Stmt)
}

func TestRulesResultNameClash(t *testing.T) {
	snap := addSnapshot()
	snap.Locals = []Local{{Name: "result", Type: ipm.String}}
	f := interpretOne(t, "call it with 1 and 2", snap)
	a := f.Stmt.(*ipm.Assign)
	assert.Equal(t, "result_2", a.Name)
	assert.Equal(t, ipm.TypePtr(ipm.Integer), a.Decl)
}

func TestRulesVoidCall(t *testing.T) {
	snap := Snapshot{Decls: []DeclInfo{{Name: "greet", Function: true, Type: ipm.Void}}}
	f := interpretOne(t, "Call greet.", snap)
	assert.Equal(t, &ipm.CallStmt{Call: &ipm.Call{Name: "greet"}}, f.Stmt)
}

func TestRulesGlobalVariable(t *testing.T) {
	f := interpretOne(t, "Create a variable called total with value 10.", Snapshot{})
	assert.Equal(t, &ipm.Variable{Name: "total", Type: ipm.Integer, Init: ipm.Int(10)}, f.Decl)

	f = interpretOne(t, "Declare a string variable named greeting", Snapshot{})
	assert.Equal(t, &ipm.Variable{Name: "greeting", Type: ipm.String}, f.Decl)

	_, err := NewRules().Interpret(context.Background(), "Declare a variable named x", Snapshot{})
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestRulesSetExpressions(t *testing.T) {
	snap := Snapshot{Locals: []Local{{Name: "x", Type: ipm.Integer}}}

	f := interpretOne(t, "Set y to x times 2.5", snap)
	assert.Equal(t, &ipm.Assign{
		Name:  "y",
		Decl:  ipm.TypePtr(ipm.Float),
		Value: ipm.Bin(ipm.OpMul, ipm.Ref("x"), ipm.Flt(2.5)),
	}, f.Stmt)

	f = interpretOne(t, "Set x to 1 plus 2 times 3", snap)
	assert.Equal(t, &ipm.Assign{
		Name:  "x",
		Value: ipm.Bin(ipm.OpAdd, ipm.Int(1), ipm.Bin(ipm.OpMul, ipm.Int(2), ipm.Int(3))),
	}, f.Stmt)

	f = interpretOne(t, "Let z be 10 minus 2 minus 3", snap)
	assert.Equal(t, ipm.Bin(ipm.OpSub, ipm.Bin(ipm.OpSub, ipm.Int(10), ipm.Int(2)), ipm.Int(3)), f.Stmt.(*ipm.Assign).Value)

	f = interpretOne(t, "Set s to the sum of x and 4", snap)
	assert.Equal(t, ipm.Bin(ipm.OpAdd, ipm.Ref("x"), ipm.Int(4)), f.Stmt.(*ipm.Assign).Value)

	f = interpretOne(t, `Set msg to "Hello, World"`, snap)
	assert.Equal(t, &ipm.Assign{Name: "msg", Decl: ipm.TypePtr(ipm.String), Value: ipm.Str("Hello, World")}, f.Stmt)

	_, err := NewRules().Interpret(context.Background(), "Set w to mystery", snap)
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestRulesUpdates(t *testing.T) {
	snap := Snapshot{Locals: []Local{{Name: "count", Type: ipm.Integer}}}
	f := interpretOne(t, "Add 5 to count.", snap)
	assert.Equal(t, &ipm.Assign{Name: "count", Value: ipm.Bin(ipm.OpAdd, ipm.Ref("count"), ipm.Int(5))}, f.Stmt)

	f = interpretOne(t, "Decrement count", snap)
	assert.Equal(t, &ipm.Assign{Name: "count", Value: ipm.Bin(ipm.OpSub, ipm.Ref("count"), ipm.Int(1))}, f.Stmt)

	_, err := NewRules().Interpret(context.Background(), "Increase missing by 2", snap)
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestRulesInput(t *testing.T) {
	f := interpretOne(t, "Ask the user for a number named age.", Snapshot{})
	assert.Equal(t, &ipm.Input{Name: "age", Decl: ipm.TypePtr(ipm.Integer), Prompt: "Enter a number: "}, f.Stmt)

	snap := Snapshot{Locals: []Local{{Name: "name", Type: ipm.String}}}
	f = interpretOne(t, "Read a name", snap)
	assert.Equal(t, &ipm.Input{Name: "name", Prompt: "Enter a name: "}, f.Stmt)
}

func TestRulesConditional(t *testing.T) {
	snap := Snapshot{Locals: []Local{{Name: "x", Type: ipm.Integer}}}
	f := interpretOne(t, `If x is greater than 5, print "big", otherwise print "small".`, snap)
	assert.Equal(t, &ipm.If{
		Cond: ipm.Bin(ipm.OpGt, ipm.Ref("x"), ipm.Int(5)),
		Then: []ipm.Stmt{&ipm.Print{Value: ipm.Str("big")}},
		Else: []ipm.Stmt{&ipm.Print{Value: ipm.Str("small")}},
	}, f.Stmt)

	f = interpretOne(t, "If x is even and x is at least 10, print x and subtract 10 from x", snap)
	s := f.Stmt.(*ipm.If)
	assert.Equal(t, ipm.OpAnd, s.Cond.(*ipm.Binary).Op)
	require.Len(t, s.Then, 2)
	assert.Empty(t, s.Else)
}

func TestRulesLoop(t *testing.T) {
	snap := Snapshot{Locals: []Local{{Name: "i", Type: ipm.Integer}}}
	f := interpretOne(t, "While i is less than 10, print i and then add 1 to i.", snap)
	assert.Equal(t, &ipm.Loop{
		Cond: ipm.Bin(ipm.OpLt, ipm.Ref("i"), ipm.Int(10)),
		Body: []ipm.Stmt{
			&ipm.Print{Value: ipm.Ref("i")},
			&ipm.Assign{Name: "i", Value: ipm.Bin(ipm.OpAdd, ipm.Ref("i"), ipm.Int(1))},
		},
	}, f.Stmt)
}

func TestRulesProcedure(t *testing.T) {
	f := interpretOne(t, `Create a function called greet that prints "hi"`, Snapshot{})
	assert.Equal(t, &ipm.Function{
		Name:   "greet",
		Return: ipm.Void,
		Body:   []ipm.Stmt{&ipm.Print{Value: ipm.Str("hi")}},
	}, f.Decl)
}

func TestRulesErrors(t *testing.T) {
	r := NewRules()
	ctx := context.Background()

	_, err := r.Interpret(ctx, "Dance a little jig.", Snapshot{})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = r.Interpret(ctx, "Print the result.", Snapshot{})
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = r.Interpret(ctx, "Call it with 1 and 2.", Snapshot{})
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = r.Interpret(ctx, "Create a function that adds two numbers and returns the result.", addSnapshot())
	assert.ErrorIs(t, err, ErrAmbiguous, "add is already declared")

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Interpret(cctx, "Print 1", Snapshot{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeSentence(t *testing.T) {
	assert.Equal(t, `print "Hello World"`, normalizeSentence(`  PRINT   "Hello  World". `))
	assert.Equal(t, "call it with 5 and 3", normalizeSentence("Call it with 5 and 3!"))
	assert.Equal(t, `set été to "Ärger"`, normalizeSentence(`SET ÉTÉ TO "Ärger".`))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, splitList("1, 2 and 3"))
	assert.Equal(t, []string{"1", "2", "3"}, splitList("1, 2, and 3"))
	assert.Equal(t, []string{`"a, b"`, "f(1, 2)"}, splitList(`"a, b" and f(1, 2)`))
}
