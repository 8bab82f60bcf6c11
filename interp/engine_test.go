package interp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suprax-systems/csp-proc/analysis"
	"github.com/suprax-systems/csp-proc/config"
	"github.com/suprax-systems/csp-proc/interp"
	"github.com/suprax-systems/csp-proc/param"
	"github.com/suprax-systems/csp-proc/platform"
	"github.com/suprax-systems/csp-proc/proc"
)

type memFetcher map[int]*proc.Procedure

func (m memFetcher) Fetch(slot int) (*proc.Procedure, bool) {
	p, ok := m[slot]
	return p, ok
}

func newEngine(t *testing.T, space param.Space) (*interp.Engine, *platform.FakeClock) {
	t.Helper()
	clock := platform.NewFakeClock(time.Unix(0, 0))
	cfg := config.Defaults()
	cfg.MaxBlockTimeout = 10 * time.Millisecond
	cfg.MinBlockPeriod = 1 * time.Millisecond
	return interp.New(space, clock, cfg), clock
}

func runProc(t *testing.T, space param.Space, fetch memFetcher, root *proc.Procedure, slot int) error {
	t.Helper()
	e, _ := newEngine(t, space)
	n := analysis.New(fetch).Analyze(root, slot)
	return e.Run(context.Background(), root, n)
}

func TestScenarioSetLocal(t *testing.T) {
	space := param.NewLocalSpace(1)
	require.NoError(t, space.Define(param.Descriptor{Name: "p_uint8_1", Type: param.TypeUint64}))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Node: 1, Type: proc.Set, ParamA: "p_uint8_1", Value: "7"},
	}}
	require.NoError(t, runProc(t, space, memFetcher{}, p, 1))

	v, err := space.Get("p_uint8_1", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(7), v.U)
}

func TestScenarioBinopDivide(t *testing.T) {
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "p_int32_1", Type: param.TypeInt64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "p_int32_2", Type: param.TypeInt64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "p_int32_3", Type: param.TypeInt64}))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Set, ParamA: "p_int32_1", Value: "10"},
		{Type: proc.Set, ParamA: "p_int32_2", Value: "3"},
		{Type: proc.Binop, ParamA: "p_int32_1", BinOp: proc.BinopDiv, ParamB: "p_int32_2", Result: "p_int32_3"},
	}}
	require.NoError(t, runProc(t, space, memFetcher{}, p, 1))

	v, err := space.Get("p_int32_3", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, int64(3), v.I)
}

func TestScenarioIfElseThenBranch(t *testing.T) {
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "p_uint8_1", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "p_uint8_2", Type: param.TypeUint64}))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Set, ParamA: "p_uint8_1", Value: "1"},
		{Type: proc.IfElse, ParamA: "p_uint8_1", CmpOp: proc.CmpEq, ParamB: "p_uint8_1"},
		{Type: proc.Set, ParamA: "p_uint8_2", Value: "42"},
		{Type: proc.Set, ParamA: "p_uint8_2", Value: "0"},
	}}
	require.NoError(t, runProc(t, space, memFetcher{}, p, 1))

	v, err := space.Get("p_uint8_2", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v.U)
}

func TestScenarioIfElseFalseBranch(t *testing.T) {
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "p_a", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "p_b", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "p_out", Type: param.TypeUint64}))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Set, ParamA: "p_a", Value: "1"},
		{Type: proc.Set, ParamA: "p_b", Value: "2"},
		{Type: proc.IfElse, ParamA: "p_a", CmpOp: proc.CmpEq, ParamB: "p_b"},
		{Type: proc.Set, ParamA: "p_out", Value: "42"},
		{Type: proc.Set, ParamA: "p_out", Value: "7"},
	}}
	require.NoError(t, runProc(t, space, memFetcher{}, p, 1))

	v, err := space.Get("p_out", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(7), v.U)
}

func TestScenarioBlockTimeout(t *testing.T) {
	// p_a never equals p_b, so the BLOCK must poll until MaxBlockTimeout
	// and fail; the FakeClock makes this instantaneous in test time.
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "p_a", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "p_b", Type: param.TypeUint64}, param.Uint64(999)))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Block, ParamA: "p_a", CmpOp: proc.CmpEq, ParamB: "p_b"},
	}}

	err := runProc(t, space, memFetcher{}, p, 1)
	require.ErrorIs(t, err, interp.ErrBlockTimeout)
}

func TestScenarioTailCallLoopDoesNotRecurse(t *testing.T) {
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "counter", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "limit", Type: param.TypeUint64}, param.Uint64(5000)))

	loop := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Unop, ParamA: "counter", UnOp: proc.UnopInc, Result: "counter"},
		{Type: proc.IfElse, ParamA: "counter", CmpOp: proc.CmpLt, ParamB: "limit"},
		{Type: proc.Call, Slot: 5},
		{Type: proc.Noop},
	}}
	fetch := memFetcher{5: loop}

	require.NoError(t, runProc(t, space, fetch, loop, 5))

	v, err := space.Get("counter", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), v.U)
}

func TestScenarioRecursionCapExceeded(t *testing.T) {
	space := param.NewLocalSpace(0)

	// The SET after each CALL keeps it off the tail position (a trailing
	// NOOP would not: only a non-NOOP successor defeats tail detection),
	// so every hop consumes a recursion frame until the cap trips. The
	// SETs themselves never execute -- the depth error aborts first.
	b := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Call, Slot: 2},
		{Type: proc.Set, ParamA: "x", Value: "1"},
	}}
	c := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Call, Slot: 1},
		{Type: proc.Set, ParamA: "x", Value: "1"},
	}}
	fetch := memFetcher{1: b, 2: c}

	err := runProc(t, space, fetch, b, 1)
	require.ErrorIs(t, err, interp.ErrRecursionDepthExceeded)
}

func TestDivideByZeroFails(t *testing.T) {
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "a", Type: param.TypeInt64}, param.Int64(10)))
	require.NoError(t, space.Define(param.Descriptor{Name: "z", Type: param.TypeInt64}, param.Int64(0)))
	require.NoError(t, space.Define(param.Descriptor{Name: "out", Type: param.TypeInt64}, param.Int64(-1)))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Binop, ParamA: "a", BinOp: proc.BinopDiv, ParamB: "z", Result: "out"},
	}}
	err := runProc(t, space, memFetcher{}, p, 1)
	require.ErrorIs(t, err, interp.ErrDivByZero)

	v, err := space.Get("out", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, int64(-1), v.I, "a failed BINOP must not write its result")
}

func TestUnopRmtSwapsLocality(t *testing.T) {
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "local_src", Type: param.TypeUint64}, param.Uint64(9)))
	require.NoError(t, space.Define(param.Descriptor{Name: "local_dst", Type: param.TypeUint64}))

	// With node=0 both the rmt fetch (always local) and the result
	// write (the instruction's node) resolve to this node, so the swap
	// collapses to a local copy. The genuinely-remote legs of both the
	// rmt and non-rmt locality rules are exercised in remote_test.go.
	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Node: 0, Type: proc.Unop, ParamA: "local_src", UnOp: proc.UnopRmt, Result: "local_dst"},
	}}
	require.NoError(t, runProc(t, space, memFetcher{}, p, 1))

	v, err := space.Get("local_dst", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(9), v.U)
}
