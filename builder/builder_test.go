package builder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suprax-systems/csp-proc/builder"
	"github.com/suprax-systems/csp-proc/proc"
)

func TestAppendAndSize(t *testing.T) {
	b := builder.New(4)
	require.NoError(t, b.Set(0, "p", "1"))
	require.NoError(t, b.Noop())
	require.Equal(t, 2, b.Size())

	instrs := b.List()
	require.Len(t, instrs, 2)
	require.Equal(t, proc.Set, instrs[0].Type)
	require.Equal(t, proc.Noop, instrs[1].Type)
}

func TestPopRemovesTail(t *testing.T) {
	b := builder.New(0)
	require.NoError(t, b.Set(0, "p", "1"))
	require.NoError(t, b.Noop())

	instr, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, proc.Noop, instr.Type)
	require.Equal(t, 1, b.Size())
}

func TestPopAtRemovesArbitraryIndex(t *testing.T) {
	b := builder.New(0)
	require.NoError(t, b.Set(0, "a", "1"))
	require.NoError(t, b.Set(0, "b", "2"))
	require.NoError(t, b.Set(0, "c", "3"))

	instr, err := b.PopAt(1)
	require.NoError(t, err)
	require.Equal(t, "b", instr.ParamA)

	instrs := b.List()
	require.Len(t, instrs, 2)
	require.Equal(t, "a", instrs[0].ParamA)
	require.Equal(t, "c", instrs[1].ParamA)
}

func TestPopAtOutOfRange(t *testing.T) {
	b := builder.New(0)
	_, err := b.PopAt(0)
	require.Error(t, err)
}

func TestNewResetsProcedure(t *testing.T) {
	b := builder.New(0)
	require.NoError(t, b.Noop())
	b.NewProc()
	require.Equal(t, 0, b.Size())
}

func TestReservedSlots(t *testing.T) {
	b := builder.New(4)
	require.True(t, b.IsReserved(0))
	require.True(t, b.IsReserved(3))
	require.False(t, b.IsReserved(4))
}

func TestLoadReplacesCurrent(t *testing.T) {
	b := builder.New(0)
	require.NoError(t, b.Noop())

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Call, Slot: 9},
	}}
	b.Load(p)
	require.Equal(t, 1, b.Size())
	require.Equal(t, proc.Call, b.List()[0].Type)

	// mutating the loaded source afterward must not affect the builder
	p.Instructions[0].Slot = 255
	require.Equal(t, uint8(9), b.List()[0].Slot)
}

func TestCurrentIsIndependentCopy(t *testing.T) {
	b := builder.New(0)
	require.NoError(t, b.Noop())

	got := b.Current()
	got.Instructions[0].Type = proc.Call
	require.Equal(t, proc.Noop, b.List()[0].Type)
}
