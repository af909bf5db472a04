package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlc/internal/ipm"
)

const tableYAML = `
entries:
  - sentence: Create a function that adds two numbers and returns the result.
    candidates:
      - confidence: 0.9
        fragment:
          kind: function
          name: add
          returns: Integer
          params:
            - {name: a, type: Integer}
            - {name: b, type: Integer}
          body:
            - kind: return
              value: {op: "+", left: {var: a}, right: {var: b}}
  - sentence: Print a greeting
    candidates:
      - confidence: 0.8
        fragment:
          kind: print
          value: {string: "Hello"}
`

func TestTableInterpret(t *testing.T) {
	tab, err := ParseTable([]byte(tableYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, tab.Len())

	sess, err := tab.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	cands, err := sess.Interpret(context.Background(), "create a function that adds  two numbers and returns the result", Snapshot{})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.InDelta(t, 0.9, cands[0].Confidence, 1e-9)
	assert.Equal(t, &ipm.Function{
		Name:   "add",
		Params: []ipm.Param{{Name: "a", Type: ipm.Integer}, {Name: "b", Type: ipm.Integer}},
		Return: ipm.Integer,
		Body:   []ipm.Stmt{&ipm.Return{Value: ipm.Bin(ipm.OpAdd, ipm.Ref("a"), ipm.Ref("b"))}},
	}, cands[0].Fragment.Decl)

	// Every call decodes fresh nodes.
	again, err := sess.Interpret(context.Background(), "Print a greeting.", Snapshot{})
	require.NoError(t, err)
	other, err := sess.Interpret(context.Background(), "Print a greeting.", Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, again, other)
	assert.NotSame(t, again[0].Fragment.Stmt, other[0].Fragment.Stmt)

	_, err = sess.Interpret(context.Background(), "Something else", Snapshot{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTableRejectsBadEntries(t *testing.T) {
	_, err := ParseTable([]byte(`
entries:
  - sentence: x
    candidates:
      - confidence: 1
        fragment: {kind: dance}
`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewTable([]TableEntry{{Sentence: "Print 1."}, {Sentence: "print 1"}})
	assert.ErrorContains(t, err, "duplicate sentence")

	_, err = ParseTable([]byte("entries: [oops"))
	assert.Error(t, err)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tableYAML), 0o644))

	tab, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tab.Len())

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
