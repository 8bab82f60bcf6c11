// Package store implements the 256-slot procedure store. A single mutex
// serializes every operation; the deep-copy-before-run pattern the
// runtime supervisor relies on makes finer-grained per-slot locking
// unnecessary (see runtime.Supervisor.Run).
package store

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/suprax-systems/csp-proc/proc"
)

// Store is a mutex-guarded array of proc.MaxProcSlot+1 procedure slots.
// occupied tracks non-empty slots in a bitset so Slots() is a popcount
// scan rather than a walk of the whole array.
type Store struct {
	mu       sync.Mutex
	slots    [proc.MaxProcSlot + 1]*proc.Procedure
	occupied *bitset.BitSet
}

// New returns an empty store.
func New() *Store {
	return &Store{occupied: bitset.New(proc.MaxProcSlot + 1)}
}

func validSlot(slot int) error {
	if slot < 0 || slot > proc.MaxProcSlot {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	return nil
}

// Set stores p at slot. If the slot is occupied and overwrite is false,
// Set fails with ErrSlotOccupied.
func (s *Store) Set(slot int, p *proc.Procedure, overwrite bool) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.occupied.Test(uint(slot)) && !overwrite {
		return fmt.Errorf("%w: slot %d", ErrSlotOccupied, slot)
	}
	s.slots[slot] = p
	if p.Empty() {
		s.occupied.Clear(uint(slot))
	} else {
		s.occupied.Set(uint(slot))
	}
	return nil
}

// Get returns the procedure stored at slot, or ErrSlotEmpty if the slot
// holds nothing. The returned pointer is shared with the store; callers
// that will run it concurrently with further store mutation must deep
// copy before releasing any lock they hold (see runtime.Supervisor).
func (s *Store) Get(slot int) (*proc.Procedure, error) {
	if err := validSlot(slot); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.occupied.Test(uint(slot)) {
		return nil, fmt.Errorf("%w: slot %d", ErrSlotEmpty, slot)
	}
	return s.slots[slot], nil
}

// Delete clears slot. Deleting an already-empty slot is not an error.
func (s *Store) Delete(slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[slot] = nil
	s.occupied.Clear(uint(slot))
	return nil
}

// Slots returns a sorted snapshot of occupied slot indices.
func (s *Store) Slots() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, 0, s.occupied.Count())
	for i, e := s.occupied.NextSet(0); e; i, e = s.occupied.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}
