// Package runtime implements the runtime supervisor: it turns a RUN
// request into one goroutine that deep-copies the stored procedure,
// builds a fresh per-run analysis, and drives the interpreter to
// completion, while enforcing the concurrent-worker cap and taking the
// worker-list mutex before spawn so teardown can never race insertion.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/suprax-systems/csp-proc/analysis"
	"github.com/suprax-systems/csp-proc/config"
	"github.com/suprax-systems/csp-proc/interp"
	"github.com/suprax-systems/csp-proc/param"
	"github.com/suprax-systems/csp-proc/platform"
	"github.com/suprax-systems/csp-proc/proc"
	"github.com/suprax-systems/csp-proc/store"
)

// worker is one live RUN invocation: a detached copy of the procedure it
// is executing, owned exclusively by this worker until it tears down.
type worker struct {
	id     uint64
	slot   int
	proc   *proc.Procedure
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the process-scoped worker registry. One Supervisor is
// shared by every RUN request against a given store.
//
// The registry is keyed by a per-run handle, not by slot, so that two
// concurrent RUN requests against the same slot are each tracked and
// joinable independently instead of one silently clobbering the
// other's registry entry.
type Supervisor struct {
	store  *store.Store
	params param.Space
	clock  platform.Clock
	cfg    config.Config
	log    *logrus.Entry

	mu      sync.Mutex
	nextID  uint64
	workers map[uint64]*worker
	sem     chan struct{}
}

// New returns a Supervisor bound to st, executing procedures against
// params, enforcing cfg.MaxConcurrent live workers at a time.
func New(st *store.Store, params param.Space, clock platform.Clock, cfg config.Config) *Supervisor {
	return &Supervisor{
		store:   st,
		params:  params,
		clock:   clock,
		cfg:     cfg,
		log:     logrus.WithField("component", "runtime"),
		workers: make(map[uint64]*worker),
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

// storeFetcher adapts *store.Store to analysis.Fetcher: an empty slot is
// "not found" for analysis purposes, matching the data model's promise
// that an analysis-time CALL to an unresolved slot is never an error.
type storeFetcher struct{ st *store.Store }

func (f storeFetcher) Fetch(slot int) (*proc.Procedure, bool) {
	p, err := f.st.Get(slot)
	if err != nil {
		return nil, false
	}
	return p, true
}

// Run starts executing the procedure stored at slot. It returns once the
// worker has been registered and spawned; the worker itself runs to
// completion asynchronously. Run fails fast (without spawning) if the
// concurrency cap is already saturated or the slot is empty.
func (s *Supervisor) Run(ctx context.Context, slot int) error {
	select {
	case s.sem <- struct{}{}:
	default:
		return ErrTooManyConcurrent
	}

	stored, err := s.store.Get(slot)
	if err != nil {
		<-s.sem
		return ErrProcEmpty
	}

	// Deep-copy before releasing any claim on the slot: a concurrent
	// DeleteProc on this slot must never race the worker's execution.
	detached := stored.DeepCopy()

	runCtx, cancel := context.WithCancel(ctx)

	// The worker-list mutex is taken before the goroutine is spawned, so
	// StopAll can never observe a worker that Run has committed to
	// start but that has not yet been recorded. The same lock hands out
	// this worker's id, so two concurrent Run calls for the same slot
	// always land distinct entries rather than one overwriting the
	// other.
	s.mu.Lock()
	s.nextID++
	w := &worker{id: s.nextID, slot: slot, proc: detached, cancel: cancel, done: make(chan struct{})}
	s.workers[w.id] = w
	s.mu.Unlock()

	go s.runWorker(runCtx, w)
	return nil
}

func (s *Supervisor) runWorker(ctx context.Context, w *worker) {
	log := s.log.WithFields(logrus.Fields{"slot": w.slot})
	defer func() {
		<-s.sem
		s.mu.Lock()
		delete(s.workers, w.id)
		s.mu.Unlock()
		close(w.done)
	}()

	az := analysis.New(storeFetcher{s.store})
	node := az.Analyze(w.proc, w.slot)

	engine := interp.New(s.params, s.clock, s.cfg)
	if err := engine.Run(ctx, w.proc, node); err != nil {
		log.WithError(err).Warn("procedure run failed")
		return
	}
	log.Debug("procedure run completed")
}

// Stop cancels and joins every worker currently running on slot. If two
// RUN requests against slot are in flight at once, both are stopped.
// ErrNotRunning is returned only if none are found.
func (s *Supervisor) Stop(slot int) error {
	s.mu.Lock()
	var matched []*worker
	for _, w := range s.workers {
		if w.slot == slot {
			matched = append(matched, w)
		}
	}
	s.mu.Unlock()
	if len(matched) == 0 {
		return ErrNotRunning
	}
	for _, w := range matched {
		w.cancel()
		<-w.done
	}
	return nil
}

// StopAll cancels and joins every live worker. The sweep is bounded by
// the concurrency cap rather than the slot count: unlike slots, worker
// ids are never reused within a sweep, and the cap is the true upper
// bound on how many entries s.workers can ever hold at once.
func (s *Supervisor) StopAll() {
	for i := 0; i < cap(s.sem)+1; i++ {
		s.mu.Lock()
		if len(s.workers) == 0 {
			s.mu.Unlock()
			return
		}
		var w *worker
		for _, v := range s.workers {
			w = v
			break
		}
		s.mu.Unlock()

		w.cancel()
		<-w.done
	}
}

// Running reports the slot of every live worker, for diagnostics. The
// same slot can appear more than once if it has more than one run in
// flight.
func (s *Supervisor) Running() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.slot)
	}
	return out
}

// Count reports the number of live workers.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// WaitIdle blocks until no worker is live or the deadline elapses,
// primarily useful in tests driving tail-call loops for a bounded
// interval before asserting stack-usage flatness.
func (s *Supervisor) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Count() == 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return s.Count() == 0
}
