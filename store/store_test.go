package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suprax-systems/csp-proc/proc"
	"github.com/suprax-systems/csp-proc/store"
)

func oneInstr() *proc.Procedure {
	return &proc.Procedure{Instructions: []proc.Instruction{{Type: proc.Noop}}}
}

func TestSetGetDelete(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set(5, oneInstr(), false))

	got, err := s.Get(5)
	require.NoError(t, err)
	require.Equal(t, 1, got.Count())

	require.NoError(t, s.Delete(5))
	_, err = s.Get(5)
	require.ErrorIs(t, err, store.ErrSlotEmpty)
}

func TestSetWithoutOverwriteFails(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set(1, oneInstr(), false))
	err := s.Set(1, oneInstr(), false)
	require.ErrorIs(t, err, store.ErrSlotOccupied)

	require.NoError(t, s.Set(1, oneInstr(), true))
}

func TestSlotOutOfRange(t *testing.T) {
	s := store.New()
	require.ErrorIs(t, s.Set(256, oneInstr(), false), store.ErrSlotOutOfRange)
	require.ErrorIs(t, s.Set(-1, oneInstr(), false), store.ErrSlotOutOfRange)
}

func TestSlotsSnapshot(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set(3, oneInstr(), false))
	require.NoError(t, s.Set(1, oneInstr(), false))
	require.NoError(t, s.Set(9, oneInstr(), false))

	require.Equal(t, []int{1, 3, 9}, s.Slots())

	require.NoError(t, s.Delete(3))
	require.Equal(t, []int{1, 9}, s.Slots())
}

func TestSetEmptyProcedureClearsOccupancy(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set(4, oneInstr(), false))
	require.NoError(t, s.Set(4, &proc.Procedure{}, true))
	require.Equal(t, []int{}, s.Slots())
}
