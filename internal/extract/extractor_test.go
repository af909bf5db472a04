package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlc/internal/ipm"
	"nlc/internal/oracle"
	"nlc/internal/sema"
)

// countingOracle hands out sessions that answer through fn and counts
// closes.
type countingOracle struct {
	fn      oracle.Func
	openErr error
	opened  int32
	closed  int32
}

func (o *countingOracle) Open(ctx context.Context) (oracle.Session, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	atomic.AddInt32(&o.opened, 1)
	return &countingSession{o: o}, nil
}

type countingSession struct{ o *countingOracle }

func (s *countingSession) Interpret(ctx context.Context, chunk string, snap oracle.Snapshot) ([]oracle.Candidate, error) {
	return s.o.fn(ctx, chunk, snap)
}

func (s *countingSession) Close() error {
	atomic.AddInt32(&s.o.closed, 1)
	return nil
}

func answer(f oracle.Fragment, conf float64) oracle.Func {
	return func(context.Context, string, oracle.Snapshot) ([]oracle.Candidate, error) {
		return []oracle.Candidate{{Fragment: f, Confidence: conf}}, nil
	}
}

func requireIntent(t *testing.T, err error, kind ErrorKind) *IntentError {
	t.Helper()
	require.Error(t, err)
	var ie *IntentError
	require.True(t, errors.As(err, &ie), "want IntentError, got %T: %v", err, err)
	require.Equal(t, kind, ie.Kind, "error: %v", err)
	assert.ErrorIs(t, err, kind)
	return ie
}

func TestExtractScenario(t *testing.T) {
	orc := &countingOracle{}
	rules := oracle.NewRules()
	orc.fn = rules.Interpret

	prog, err := New(orc).Extract(context.Background(),
		"Create a function that adds two numbers and returns the result. Call it with 5 and 3. Print the result.")
	require.NoError(t, err)

	want := &ipm.Program{Decls: []ipm.Decl{
		&ipm.Function{
			Name:   "add",
			Params: []ipm.Param{{Name: "a", Type: ipm.Integer}, {Name: "b", Type: ipm.Integer}},
			Return: ipm.Integer,
			Body:   []ipm.Stmt{&ipm.Return{Value: ipm.Bin(ipm.OpAdd, ipm.Ref("a"), ipm.Ref("b"))}},
		},
		&ipm.Function{
			Name:   "main",
			Return: ipm.Void,
			Body: []ipm.Stmt{
				&ipm.Assign{
					Name:  "result",
					Decl:  ipm.TypePtr(ipm.Integer),
					Value: &ipm.Call{Name: "add", Args: []ipm.Expr{ipm.Int(5), ipm.Int(3)}},
				},
				&ipm.Print{Value: ipm.Ref("result")},
			},
		},
	}}
	if diff := cmp.Diff(want, prog); diff != "" {
		t.Fatalf("program mismatch (-want +got):\n%s\ngot:\n%s", diff, ipm.Format(prog))
	}

	_, err = sema.Validate(prog)
	require.NoError(t, err)
	assert.EqualValues(t, 1, orc.opened)
	assert.EqualValues(t, 1, orc.closed)
}

func TestExtractSnapshotGrows(t *testing.T) {
	var snaps []oracle.Snapshot
	orc := &countingOracle{fn: func(ctx context.Context, chunk string, snap oracle.Snapshot) ([]oracle.Candidate, error) {
		snaps = append(snaps, snap)
		switch snap.Index {
		case 0:
			return []oracle.Candidate{{Fragment: oracle.DeclFragment(&ipm.Variable{Name: "g", Type: ipm.Float}), Confidence: 1}}, nil
		case 1:
			return []oracle.Candidate{{Fragment: oracle.StmtFragment(&ipm.Input{Name: "n", Decl: ipm.TypePtr(ipm.Integer)}), Confidence: 1}}, nil
		}
		return []oracle.Candidate{{Fragment: oracle.StmtFragment(&ipm.Print{Value: ipm.Ref("n")}), Confidence: 1}}, nil
	}}

	_, err := New(orc).Extract(context.Background(), "One. Two. Three.")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Empty(t, snaps[0].Decls)
	assert.Equal(t, []oracle.DeclInfo{{Name: "g", Type: ipm.Float}}, snaps[1].Decls)
	assert.Equal(t, "g", snaps[1].LastValue)
	assert.Equal(t, []oracle.Local{{Name: "n", Type: ipm.Integer}}, snaps[2].Locals)
	assert.Equal(t, "n", snaps[2].LastValue)
	assert.Len(t, snaps[2].Decls, 1, "entry function is not listed")
}

func TestExtractOracleTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var finished atomic.Int32
	orc := &countingOracle{fn: func(ctx context.Context, chunk string, snap oracle.Snapshot) ([]oracle.Candidate, error) {
		<-release // ignores ctx on purpose
		finished.Store(1)
		return nil, nil
	}}

	start := time.Now()
	_, err := New(orc, WithTimeout(20*time.Millisecond)).Extract(context.Background(), "Print 1.")
	ie := requireIntent(t, err, OracleUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, ie.Sentence)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.EqualValues(t, 1, orc.closed)
	assert.EqualValues(t, 0, finished.Load(), "the session is closed while the abandoned call is still running")
}

func TestExtractOracleErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"unsupported", oracle.ErrUnsupported, UnsupportedConstruct},
		{"ambiguous", oracle.ErrAmbiguous, Ambiguous},
		{"malformed", oracle.ErrMalformed, Ambiguous},
		{"unavailable", oracle.ErrUnavailable, OracleUnavailable},
		{"transport", errors.New("connection reset"), OracleUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orc := &countingOracle{fn: func(context.Context, string, oracle.Snapshot) ([]oracle.Candidate, error) {
				return nil, tt.err
			}}
			_, err := New(orc).Extract(context.Background(), "Do it.")
			requireIntent(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
			assert.EqualValues(t, 1, orc.closed)
		})
	}
}

func TestExtractOpenFailure(t *testing.T) {
	orc := &countingOracle{openErr: oracle.ErrUnavailable}
	_, err := New(orc).Extract(context.Background(), "Print 1.")
	requireIntent(t, err, OracleUnavailable)
}

func TestExtractCandidateSelection(t *testing.T) {
	p1 := oracle.StmtFragment(&ipm.Print{Value: ipm.Int(1)})
	p2 := oracle.StmtFragment(&ipm.Print{Value: ipm.Int(2)})

	run := func(cands ...oracle.Candidate) (*ipm.Program, error) {
		orc := &countingOracle{fn: func(context.Context, string, oracle.Snapshot) ([]oracle.Candidate, error) {
			return cands, nil
		}}
		return New(orc).Extract(context.Background(), "Print something.")
	}

	_, err := run()
	requireIntent(t, err, UnsupportedConstruct)

	_, err = run(oracle.Candidate{Fragment: p1, Confidence: 0.3})
	requireIntent(t, err, Ambiguous)

	_, err = run(oracle.Candidate{Fragment: p1, Confidence: 0.8}, oracle.Candidate{Fragment: p2, Confidence: 0.78})
	requireIntent(t, err, Ambiguous)

	_, err = run(oracle.Candidate{Fragment: p1, Confidence: 1.5})
	requireIntent(t, err, Ambiguous)

	// Identical interpretations agree.
	prog, err := run(
		oracle.Candidate{Fragment: p1, Confidence: 0.8},
		oracle.Candidate{Fragment: oracle.StmtFragment(&ipm.Print{Value: ipm.Int(1)}), Confidence: 0.79},
	)
	require.NoError(t, err)
	assert.Equal(t, p1.Stmt, prog.Decls[0].(*ipm.Function).Body[0])

	// A clear winner is taken regardless of order.
	prog, err = run(oracle.Candidate{Fragment: p2, Confidence: 0.6}, oracle.Candidate{Fragment: p1, Confidence: 0.9})
	require.NoError(t, err)
	assert.Equal(t, p1.Stmt, prog.Decls[0].(*ipm.Function).Body[0])
}

func TestExtractRejectsMalformedFragments(t *testing.T) {
	tests := map[string]oracle.Fragment{
		"empty":            {},
		"both":             {Decl: &ipm.Variable{Name: "x", Type: ipm.Integer}, Stmt: &ipm.Print{Value: ipm.Int(1)}},
		"missing name":     oracle.DeclFragment(&ipm.Variable{Type: ipm.Integer}),
		"unresolved type":  oracle.DeclFragment(&ipm.Variable{Name: "x"}),
		"void variable":    oracle.DeclFragment(&ipm.Variable{Name: "x", Type: ipm.Void}),
		"no return type":   oracle.DeclFragment(&ipm.Function{Name: "f"}),
		"print nothing":    oracle.StmtFragment(&ipm.Print{}),
		"void local":       oracle.StmtFragment(&ipm.Assign{Name: "x", Decl: ipm.TypePtr(ipm.Void), Value: ipm.Int(1)}),
	}
	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			orc := &countingOracle{fn: answer(f, 1)}
			_, err := New(orc).Extract(context.Background(), "Something.")
			requireIntent(t, err, Ambiguous)
			assert.EqualValues(t, 1, orc.closed)
		})
	}
}

func TestExtractDuplicateDeclaration(t *testing.T) {
	orc := &countingOracle{fn: answer(oracle.DeclFragment(&ipm.Variable{Name: "x", Type: ipm.Integer}), 1)}
	_, err := New(orc).Extract(context.Background(), "Make x. Make x again.")
	ie := requireIntent(t, err, Ambiguous)
	assert.Equal(t, 2, ie.Sentence)
	assert.Equal(t, "Make x again.", ie.Text)
}

func TestExtractStatementsAfterUserMain(t *testing.T) {
	calls := 0
	orc := &countingOracle{fn: func(context.Context, string, oracle.Snapshot) ([]oracle.Candidate, error) {
		calls++
		if calls == 1 {
			return []oracle.Candidate{{Fragment: oracle.DeclFragment(&ipm.Function{Name: "main", Return: ipm.Void}), Confidence: 1}}, nil
		}
		return []oracle.Candidate{{Fragment: oracle.StmtFragment(&ipm.Print{Value: ipm.Int(1)}), Confidence: 1}}, nil
	}}
	_, err := New(orc).Extract(context.Background(), "Define main. Print 1.")
	requireIntent(t, err, Ambiguous)
}

func TestExtractLimits(t *testing.T) {
	orc := &countingOracle{fn: answer(oracle.StmtFragment(&ipm.Print{Value: ipm.Int(1)}), 1)}

	_, err := New(orc, WithMaxStatements(2)).Extract(context.Background(), "One. Two. Three.")
	requireIntent(t, err, UnsupportedConstruct)
	assert.EqualValues(t, 0, orc.opened, "no oracle call before the cap is checked")

	_, err = New(orc).Extract(context.Background(), "  \n\n ")
	requireIntent(t, err, UnsupportedConstruct)

	_, err = New(orc).Extract(context.Background(), "Print \xff.")
	requireIntent(t, err, Ambiguous)
}
