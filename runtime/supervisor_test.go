package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suprax-systems/csp-proc/config"
	"github.com/suprax-systems/csp-proc/param"
	"github.com/suprax-systems/csp-proc/platform"
	"github.com/suprax-systems/csp-proc/proc"
	"github.com/suprax-systems/csp-proc/runtime"
	"github.com/suprax-systems/csp-proc/store"
)

func testCfg() config.Config {
	cfg := config.Defaults()
	cfg.MaxBlockTimeout = 10 * time.Millisecond
	cfg.MinBlockPeriod = time.Millisecond
	return cfg
}

func TestRunExecutesStoredProcedure(t *testing.T) {
	st := store.New()
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "p", Type: param.TypeUint64}))

	require.NoError(t, st.Set(1, &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Set, ParamA: "p", Value: "9"},
	}}, false))

	sup := runtime.New(st, space, platform.RealClock{}, testCfg())
	require.NoError(t, sup.Run(context.Background(), 1))
	require.True(t, sup.WaitIdle(time.Second))

	v, err := space.Get("p", param.NoIndex)
	require.NoError(t, err)
	require.Equal(t, uint64(9), v.U)
}

func TestRunFailsWhenSlotEmpty(t *testing.T) {
	st := store.New()
	space := param.NewLocalSpace(0)
	sup := runtime.New(st, space, platform.RealClock{}, testCfg())
	require.ErrorIs(t, sup.Run(context.Background(), 7), runtime.ErrProcEmpty)
}

func TestConcurrencyCapRejectsExcessRuns(t *testing.T) {
	st := store.New()
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "never", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "gate", Type: param.TypeUint64}, param.Uint64(1)))

	cfg := testCfg()
	cfg.MaxConcurrent = 1
	cfg.MaxBlockTimeout = time.Hour // long enough to stay "running" for the test

	blocked := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Block, ParamA: "never", CmpOp: proc.CmpEq, ParamB: "gate"},
	}}
	require.NoError(t, st.Set(1, blocked, false))
	require.NoError(t, st.Set(2, blocked, false))

	sup := runtime.New(st, space, platform.RealClock{}, cfg)
	require.NoError(t, sup.Run(context.Background(), 1))

	// Run claims the semaphore slot and registers the worker before it
	// returns; confirm the first worker is live before the second Run
	require.Eventually(t, func() bool { return sup.Count() == 1 }, time.Second, time.Millisecond)

	require.ErrorIs(t, sup.Run(context.Background(), 2), runtime.ErrTooManyConcurrent)

	sup.StopAll()
	require.True(t, sup.WaitIdle(time.Second))
}

func TestStopCancelsRunningWorker(t *testing.T) {
	st := store.New()
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "never", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "gate", Type: param.TypeUint64}, param.Uint64(1)))

	cfg := testCfg()
	cfg.MaxBlockTimeout = time.Hour

	blocked := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Block, ParamA: "never", CmpOp: proc.CmpEq, ParamB: "gate"},
	}}
	require.NoError(t, st.Set(1, blocked, false))

	sup := runtime.New(st, space, platform.RealClock{}, cfg)
	require.NoError(t, sup.Run(context.Background(), 1))
	require.Eventually(t, func() bool { return sup.Count() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, sup.Stop(1))
	require.Equal(t, 0, sup.Count())
}

// TestConcurrentRunsOfSameSlotAreTrackedIndependently exercises two RUN
// requests against the same slot in flight at once: both must be
// reachable by Stop/StopAll/Count, not just the most recently started
// one.
func TestConcurrentRunsOfSameSlotAreTrackedIndependently(t *testing.T) {
	st := store.New()
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "never", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "gate", Type: param.TypeUint64}, param.Uint64(1)))

	cfg := testCfg()
	cfg.MaxBlockTimeout = time.Hour

	blocked := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Block, ParamA: "never", CmpOp: proc.CmpEq, ParamB: "gate"},
	}}
	require.NoError(t, st.Set(1, blocked, false))

	sup := runtime.New(st, space, platform.RealClock{}, cfg)
	require.NoError(t, sup.Run(context.Background(), 1))
	require.NoError(t, sup.Run(context.Background(), 1))
	require.Eventually(t, func() bool { return sup.Count() == 2 }, time.Second, time.Millisecond)

	require.Equal(t, []int{1, 1}, sup.Running())

	require.NoError(t, sup.Stop(1))
	require.Equal(t, 0, sup.Count())
	require.True(t, sup.WaitIdle(time.Second))
}

// TestDeleteConcurrentWithRunNeverRaces exercises the property that a
// worker's detached copy is unaffected by the store slot being deleted
// (or overwritten) while the worker is still executing.
func TestDeleteConcurrentWithRunNeverRaces(t *testing.T) {
	st := store.New()
	space := param.NewLocalSpace(0)
	require.NoError(t, space.Define(param.Descriptor{Name: "never", Type: param.TypeUint64}))
	require.NoError(t, space.Define(param.Descriptor{Name: "gate", Type: param.TypeUint64}, param.Uint64(1)))

	cfg := testCfg()
	cfg.MaxBlockTimeout = 20 * time.Millisecond
	cfg.MinBlockPeriod = time.Millisecond

	blocked := &proc.Procedure{Instructions: []proc.Instruction{
		{Type: proc.Block, ParamA: "never", CmpOp: proc.CmpEq, ParamB: "gate"},
	}}
	require.NoError(t, st.Set(1, blocked, false))

	sup := runtime.New(st, space, platform.RealClock{}, cfg)
	require.NoError(t, sup.Run(context.Background(), 1))

	// Delete the slot while the worker (on its own detached copy) is
	// still running its BLOCK poll loop.
	require.NoError(t, st.Delete(1))

	require.True(t, sup.WaitIdle(time.Second))
}
