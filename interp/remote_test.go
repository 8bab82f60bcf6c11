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
	"github.com/suprax-systems/csp-proc/transport"
)

// newRemoteEngine wires an Engine to a RemoteBridge whose node 2 peer is
// a param.Server over an in-memory transport, so instructions targeting
// node 2 exercise the full list-download/pull/push path rather than a
// stub.
func newRemoteEngine(t *testing.T) (*interp.Engine, *param.LocalSpace, *param.LocalSpace) {
	t.Helper()
	pt := transport.NewPipeTransport()

	remote := param.NewLocalSpace(2)
	l, err := pt.Listen(param.DefaultRemotePort)
	require.NoError(t, err)
	go param.NewServer(remote).Serve(context.Background(), l)

	local := param.NewLocalSpace(1)
	bridge := param.NewRemoteBridge(local, pt, 0)

	cfg := config.Defaults()
	cfg.ParamRemoteTimeout = time.Second
	return interp.New(bridge, platform.NewFakeClock(time.Unix(0, 0)), cfg), local, remote
}

func TestRemoteSetWritesPeerParameter(t *testing.T) {
	e, _, remote := newRemoteEngine(t)
	require.NoError(t, remote.Define(param.Descriptor{Name: "r_u", Type: param.TypeUint64}))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Node: 2, Type: proc.Set, ParamA: "r_u", Value: "7"},
	}}
	n := analysis.New(memFetcher{}).Analyze(p, 1)
	require.NoError(t, e.Run(context.Background(), p, n))

	v, err := remote.Get("r_u", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(7), v.U)
}

func TestRemoteRmtUnopReadsLocalWritesPeer(t *testing.T) {
	e, local, remote := newRemoteEngine(t)
	require.NoError(t, local.Define(param.Descriptor{Name: "l_src", Type: param.TypeUint64}, param.Uint64(9)))
	require.NoError(t, remote.Define(param.Descriptor{Name: "r_dst", Type: param.TypeUint64}))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Node: 2, Type: proc.Unop, ParamA: "l_src", UnOp: proc.UnopRmt, Result: "r_dst"},
	}}
	n := analysis.New(memFetcher{}).Analyze(p, 1)
	require.NoError(t, e.Run(context.Background(), p, n))

	v, err := remote.Get("r_dst", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(9), v.U)
}

func TestRemoteUnopReadsPeerWritesLocal(t *testing.T) {
	e, local, remote := newRemoteEngine(t)
	require.NoError(t, remote.Define(param.Descriptor{Name: "r_src", Type: param.TypeUint64}, param.Uint64(41)))
	require.NoError(t, local.Define(param.Descriptor{Name: "l_dst", Type: param.TypeUint64}))

	// A non-rmt UNOP reads its operand from the instruction's node and
	// lands the result on the executing node.
	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Node: 2, Type: proc.Unop, ParamA: "r_src", UnOp: proc.UnopInc, Result: "l_dst"},
	}}
	n := analysis.New(memFetcher{}).Analyze(p, 1)
	require.NoError(t, e.Run(context.Background(), p, n))

	v, err := local.Get("l_dst", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v.U)
}

func TestRemoteBinopFetchesAndStoresOnPeer(t *testing.T) {
	e, _, remote := newRemoteEngine(t)
	require.NoError(t, remote.Define(param.Descriptor{Name: "r_a", Type: param.TypeInt64}, param.Int64(10)))
	require.NoError(t, remote.Define(param.Descriptor{Name: "r_b", Type: param.TypeInt64}, param.Int64(3)))
	require.NoError(t, remote.Define(param.Descriptor{Name: "r_out", Type: param.TypeInt64}))

	p := &proc.Procedure{Instructions: []proc.Instruction{
		{Node: 2, Type: proc.Binop, ParamA: "r_a", BinOp: proc.BinopDiv, ParamB: "r_b", Result: "r_out"},
	}}
	n := analysis.New(memFetcher{}).Analyze(p, 1)
	require.NoError(t, e.Run(context.Background(), p, n))

	v, err := remote.Get("r_out", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, int64(3), v.I)
}
