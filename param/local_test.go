package param_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suprax-systems/csp-proc/param"
)

func TestScalarSetGet(t *testing.T) {
	s := param.NewLocalSpace(1)
	require.NoError(t, s.Define(param.Descriptor{Name: "p", Type: param.TypeUint64}))

	require.NoError(t, s.Set("p", param.NoIndex, param.Uint64(42)))
	v, err := s.Get("p", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v.U)
}

func TestArrayBroadcastWriteOnNoIndex(t *testing.T) {
	s := param.NewLocalSpace(1)
	require.NoError(t, s.Define(param.Descriptor{Name: "arr", Type: param.TypeInt64, ArraySize: 4}))

	require.NoError(t, s.Set("arr", param.NoIndex, param.Int64(7)))
	for i := 0; i < 4; i++ {
		v, err := s.Get("arr", i)
		require.NoError(t, err)
		require.Equal(t, int64(7), v.I)
	}

	require.NoError(t, s.Set("arr", 2, param.Int64(99)))
	v, err := s.Get("arr", 2)
	require.NoError(t, err)
	require.Equal(t, int64(99), v.I)
	v0, err := s.Get("arr", 0)
	require.NoError(t, err)
	require.Equal(t, int64(7), v0.I)
}

func TestReadOnlyRejectsSet(t *testing.T) {
	s := param.NewLocalSpace(1)
	require.NoError(t, s.Define(param.Descriptor{Name: "ro", Type: param.TypeUint64, ReadOnly: true}))
	err := s.Set("ro", param.NoIndex, param.Uint64(1))
	require.ErrorIs(t, err, param.ErrReadOnly)
}

func TestStringToValueCoercion(t *testing.T) {
	s := param.NewLocalSpace(1)
	require.NoError(t, s.Define(param.Descriptor{Name: "f", Type: param.TypeFloat64}))
	v, err := s.StringToValue("f", "3.5")
	require.NoError(t, err)
	require.InDelta(t, 3.5, v.F, 1e-9)

	_, err = s.StringToValue("f", "not-a-float")
	require.ErrorIs(t, err, param.ErrTypeMismatch)
}

func TestIndexOutOfRange(t *testing.T) {
	s := param.NewLocalSpace(1)
	require.NoError(t, s.Define(param.Descriptor{Name: "arr", Type: param.TypeUint64, ArraySize: 2}))
	_, err := s.Get("arr", 5)
	require.ErrorIs(t, err, param.ErrIndexOutOfRange)
}
