package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModule() *Module {
	return &Module{
		Consts:  []Const{{Kind: KindInt, Int: 5}, {Kind: KindString, Str: "hi"}, {Kind: KindFloat, Float: 2.5}},
		Globals: []Slot{{Name: "g", Kind: KindInt}},
		Funcs: []Func{{
			Name:   "main",
			Return: KindInt,
			Code: []Instr{
				{Op: OpConst, A: 0},
				{Op: OpStoreGlobal, A: 0},
				{Op: OpConst, A: 1},
				{Op: OpPrint, A: int32(KindString)},
				{Op: OpLoadGlobal, A: 0},
				{Op: OpReturn},
			},
		}},
		Init:  -1,
		Entry: 0,
	}
}

func TestEncodeDecode(t *testing.T) {
	m := sampleModule()
	data, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, "NLBC", string(data[:4]))
	assert.Equal(t, Version, data[4])

	again, err := Encode(sampleModule())
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding is deterministic")

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte("NLB"))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Decode([]byte("ELF\x7f\x01"))
	assert.ErrorIs(t, err, ErrFormat)

	data, err := Encode(sampleModule())
	require.NoError(t, err)
	data[4] = Version + 1
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Decode(append([]byte(Magic), Version, 0xff))
	assert.Error(t, err)

	bad := sampleModule()
	bad.Funcs[0].Code = append(bad.Funcs[0].Code, Instr{Op: OpConst, A: 9})
	data, err = Encode(bad)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorContains(t, err, "constant 9 out of range")
}

func TestVerify(t *testing.T) {
	tests := map[string]func(m *Module){
		"entry out of range": func(m *Module) { m.Entry = 3 },
		"init out of range":  func(m *Module) { m.Init = -2 },
		"bad local":          func(m *Module) { m.Funcs[0].Code[0] = Instr{Op: OpLoad, A: 0} },
		"bad global":         func(m *Module) { m.Funcs[0].Code[1] = Instr{Op: OpStoreGlobal, A: 1} },
		"bad jump":           func(m *Module) { m.Funcs[0].Code[0] = Instr{Op: OpJump, A: 99} },
		"bad arity":          func(m *Module) { m.Funcs[0].Code[0] = Instr{Op: OpCall, A: 0, B: 1} },
		"bad opcode":         func(m *Module) { m.Funcs[0].Code[0] = Instr{Op: Opcode(200)} },
		"entry with params":  func(m *Module) { m.Funcs[0].NumParams = 1; m.Funcs[0].Locals = []Kind{KindInt} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			m := sampleModule()
			mutate(m)
			assert.Error(t, m.Verify())
		})
	}
	assert.NoError(t, sampleModule().Verify())
}

func TestDisassemble(t *testing.T) {
	want := `; nlc bytecode v1

consts:
    0 int    5
    1 string "hi"
    2 float  2.5

globals:
    0 int    g

func 0 main(params=0, locals=0) int [entry]
  0000 const      0 ; 5
  0001 store.g    0 ; g
  0002 const      1 ; "hi"
  0003 print      string
  0004 load.g     0 ; g
  0005 ret
`
	assert.Equal(t, want, Disassemble(sampleModule()))
}
