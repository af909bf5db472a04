package vm

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlc/internal/bytecode"
)

func run(t *testing.T, m *bytecode.Module, stdin string) (string, int, error) {
	t.Helper()
	var out bytes.Buffer
	code, err := New(m, WithStdout(&out), WithStdin(strings.NewReader(stdin))).Run(context.Background())
	return out.String(), code, err
}

// addModule computes add(5, 10), prints it and returns it.
func addModule() *bytecode.Module {
	return &bytecode.Module{
		Consts: []bytecode.Const{{Kind: bytecode.KindInt, Int: 5}, {Kind: bytecode.KindInt, Int: 10}},
		Funcs: []bytecode.Func{
			{
				Name:      "add",
				NumParams: 2,
				Locals:    []bytecode.Kind{bytecode.KindInt, bytecode.KindInt},
				Return:    bytecode.KindInt,
				Code: []bytecode.Instr{
					{Op: bytecode.OpLoad, A: 0},
					{Op: bytecode.OpLoad, A: 1},
					{Op: bytecode.OpAddI},
					{Op: bytecode.OpReturn},
				},
			},
			{
				Name:   "main",
				Locals: []bytecode.Kind{bytecode.KindInt},
				Return: bytecode.KindInt,
				Code: []bytecode.Instr{
					{Op: bytecode.OpConst, A: 0},
					{Op: bytecode.OpConst, A: 1},
					{Op: bytecode.OpCall, A: 0, B: 2},
					{Op: bytecode.OpStore, A: 0},
					{Op: bytecode.OpLoad, A: 0},
					{Op: bytecode.OpPrint, A: int32(bytecode.KindInt)},
					{Op: bytecode.OpLoad, A: 0},
					{Op: bytecode.OpReturn},
				},
			},
		},
		Init:  -1,
		Entry: 1,
	}
}

func TestRunCall(t *testing.T) {
	out, code, err := run(t, addModule(), "")
	require.NoError(t, err)
	assert.Equal(t, "15\n", out)
	assert.Equal(t, 15, code)
}

func TestRunExitCodeLowByte(t *testing.T) {
	m := addModule()
	m.Consts[1].Int = 295
	_, code, err := run(t, m, "")
	require.NoError(t, err)
	assert.Equal(t, 44, code)
}

func TestRunGlobalsAndLoop(t *testing.T) {
	// g = 3 in init; main counts g down to zero printing each value.
	m := &bytecode.Module{
		Consts: []bytecode.Const{
			{Kind: bytecode.KindInt, Int: 3},
			{Kind: bytecode.KindInt, Int: 0},
			{Kind: bytecode.KindInt, Int: 1},
		},
		Globals: []bytecode.Slot{{Name: "g", Kind: bytecode.KindInt}},
		Funcs: []bytecode.Func{
			{
				Name:   "init",
				Return: bytecode.KindVoid,
				Code: []bytecode.Instr{
					{Op: bytecode.OpConst, A: 0},
					{Op: bytecode.OpStoreGlobal, A: 0},
					{Op: bytecode.OpReturnVoid},
				},
			},
			{
				Name:   "main",
				Return: bytecode.KindVoid,
				Code: []bytecode.Instr{
					{Op: bytecode.OpLoadGlobal, A: 0}, // 0
					{Op: bytecode.OpConst, A: 1},
					{Op: bytecode.OpGtI},
					{Op: bytecode.OpJumpIfFalse, A: 11},
					{Op: bytecode.OpLoadGlobal, A: 0},
					{Op: bytecode.OpPrint, A: int32(bytecode.KindInt)},
					{Op: bytecode.OpLoadGlobal, A: 0},
					{Op: bytecode.OpConst, A: 2},
					{Op: bytecode.OpSubI},
					{Op: bytecode.OpStoreGlobal, A: 0},
					{Op: bytecode.OpJump, A: 0},
					{Op: bytecode.OpReturnVoid}, // 11
				},
			},
		},
		Init:  0,
		Entry: 1,
	}
	out, code, err := run(t, m, "")
	require.NoError(t, err)
	assert.Equal(t, "3\n2\n1\n", out)
	assert.Equal(t, 0, code)
}

func TestRunInput(t *testing.T) {
	m := &bytecode.Module{
		Consts: []bytecode.Const{
			{Kind: bytecode.KindString, Str: "y? "},
			{Kind: bytecode.KindInt, Int: 2},
		},
		Funcs: []bytecode.Func{{
			Name:   "main",
			Locals: []bytecode.Kind{bytecode.KindFloat},
			Return: bytecode.KindVoid,
			Code: []bytecode.Instr{
				{Op: bytecode.OpConst, A: 0},
				{Op: bytecode.OpWrite},
				{Op: bytecode.OpRead, A: int32(bytecode.KindFloat)},
				{Op: bytecode.OpStore, A: 0},
				{Op: bytecode.OpLoad, A: 0},
				{Op: bytecode.OpConst, A: 1},
				{Op: bytecode.OpI2F},
				{Op: bytecode.OpMulF},
				{Op: bytecode.OpPrint, A: int32(bytecode.KindFloat)},
			},
		}},
		Init:  -1,
		Entry: 0,
	}
	out, _, err := run(t, m, "1.25\n")
	require.NoError(t, err)
	assert.Equal(t, "y? 2.5\n", out)

	out, _, err = run(t, m, "abc")
	require.NoError(t, err)
	assert.Equal(t, "y? 0\n", out)
}

func TestRunDivisionByZero(t *testing.T) {
	m := addModule()
	m.Funcs[0].Code[2] = bytecode.Instr{Op: bytecode.OpDivI}
	m.Consts[1].Int = 0
	_, _, err := run(t, m, "")
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "add", rerr.Func)
	assert.Equal(t, 2, rerr.PC)
	assert.Contains(t, rerr.Error(), "division by zero")
}

func TestRunDepthLimit(t *testing.T) {
	m := &bytecode.Module{
		Funcs: []bytecode.Func{{
			Name:   "main",
			Return: bytecode.KindVoid,
			Code:   []bytecode.Instr{{Op: bytecode.OpCall, A: 0}, {Op: bytecode.OpReturnVoid}},
		}},
		Init:  -1,
		Entry: 0,
	}
	_, err := New(m, WithStdout(&bytes.Buffer{}), WithMaxDepth(16)).Run(context.Background())
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Msg, "call depth exceeds 16")
}

func TestRunStackUnderflow(t *testing.T) {
	m := &bytecode.Module{
		Funcs: []bytecode.Func{{
			Name:   "main",
			Return: bytecode.KindVoid,
			Code:   []bytecode.Instr{{Op: bytecode.OpAddI}},
		}},
		Init:  -1,
		Entry: 0,
	}
	_, _, err := run(t, m, "")
	assert.ErrorContains(t, err, "stack underflow in add.i")
}

func TestRunCanceled(t *testing.T) {
	m := &bytecode.Module{
		Funcs: []bytecode.Func{{
			Name:   "main",
			Return: bytecode.KindVoid,
			Code:   []bytecode.Instr{{Op: bytecode.OpJump, A: 0}},
		}},
		Init:  -1,
		Entry: 0,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(m, WithStdout(&bytes.Buffer{})).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsInvalidModule(t *testing.T) {
	m := addModule()
	m.Entry = 0
	_, _, err := run(t, m, "")
	assert.ErrorContains(t, err, "invalid module")
}

func TestFormat(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Value{Kind: bytecode.KindInt, I: -7}, "-7"},
		{Value{Kind: bytecode.KindFloat, F: 8}, "8"},
		{Value{Kind: bytecode.KindFloat, F: 0.1}, "0.1"},
		{Value{Kind: bytecode.KindFloat, F: 1.0 / 3}, "0.333333"},
		{Value{Kind: bytecode.KindFloat, F: 1e20}, "1e+20"},
		{Value{Kind: bytecode.KindFloat, F: math.Inf(-1)}, "-inf"},
		{Value{Kind: bytecode.KindBool, B: true}, "true"},
		{Value{Kind: bytecode.KindString, S: "hi"}, "hi"},
		{Value{Kind: bytecode.KindArray, A: []Value{{Kind: bytecode.KindInt, I: 1}, {Kind: bytecode.KindInt, I: 2}}}, "[1, 2]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.v))
	}
}

func TestParseInput(t *testing.T) {
	assert.Equal(t, int64(42), parseInput(" 42 ", bytecode.KindInt).I)
	assert.Equal(t, int64(0), parseInput("x", bytecode.KindInt).I)
	assert.True(t, parseInput("Yes", bytecode.KindBool).B)
	assert.False(t, parseInput("no", bytecode.KindBool).B)
	assert.Equal(t, " spaced ", parseInput(" spaced ", bytecode.KindString).S)
}
