package param

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

type cell struct {
	desc   Descriptor
	values []Value
}

// LocalSpace is an in-memory Space holding parameters owned by one node.
// It is what the interpreter's tests run against, and what cmd/procd
// wires up for a single-node deployment.
type LocalSpace struct {
	node uint16

	mu    sync.RWMutex
	cells map[string]*cell
}

// NewLocalSpace returns an empty space identifying itself as node.
func NewLocalSpace(node uint16) *LocalSpace {
	return &LocalSpace{node: node, cells: make(map[string]*cell)}
}

// Define registers a parameter. initial must have length 1 for a scalar
// or desc.ArraySize for an array; if omitted, cells are zero-valued of
// desc.Type.
func (s *LocalSpace) Define(desc Descriptor, initial ...Value) error {
	if desc.ArraySize <= 0 {
		desc.ArraySize = 1
	}
	desc.Node = s.node

	values := make([]Value, desc.ArraySize)
	zero := zeroValue(desc.Type)
	for i := range values {
		values[i] = zero
	}
	if len(initial) > 0 {
		if len(initial) != desc.ArraySize {
			return fmt.Errorf("param: Define(%s): expected %d initial values, got %d", desc.Name, desc.ArraySize, len(initial))
		}
		copy(values, initial)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[desc.Name] = &cell{desc: desc, values: values}
	return nil
}

func zeroValue(t ValueType) Value {
	switch t {
	case TypeUint64:
		return Uint64(0)
	case TypeInt64:
		return Int64(0)
	case TypeFloat64:
		return Float64(0)
	default:
		return String("")
	}
}

func (s *LocalSpace) LocalNode() uint16 { return s.node }

func (s *LocalSpace) List() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Descriptor, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c.desc)
	}
	return out
}

func (s *LocalSpace) Get(name string, index int) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cells[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	i := index
	if i == NoIndex {
		i = 0
	}
	if i < 0 || i >= len(c.values) {
		return Value{}, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, name, index)
	}
	return c.values[i], nil
}

func (s *LocalSpace) Set(name string, index int, v Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if c.desc.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}

	if index == NoIndex {
		// Scalar write with no index: write the single cell, or every
		// element when the target is array-typed.
		for i := range c.values {
			c.values[i] = v
		}
		return nil
	}
	if index < 0 || index >= len(c.values) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, name, index)
	}
	c.values[index] = v
	return nil
}

func (s *LocalSpace) DownloadRemoteList(node uint16, timeout time.Duration) error {
	return fmt.Errorf("%w: local space has no remote node %d", ErrRemoteUnsupported, node)
}

func (s *LocalSpace) PullRemote(name string, index int, node uint16, timeout time.Duration) (Value, error) {
	return Value{}, fmt.Errorf("%w: local space has no remote node %d", ErrRemoteUnsupported, node)
}

func (s *LocalSpace) PushRemote(name string, index int, v Value, node uint16, timeout time.Duration, ack bool) error {
	return fmt.Errorf("%w: local space has no remote node %d", ErrRemoteUnsupported, node)
}

// StringToValue coerces s into the type of the named parameter.
func (s *LocalSpace) StringToValue(name string, str string) (Value, error) {
	s.mu.RLock()
	c, ok := s.cells[name]
	s.mu.RUnlock()
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return parseValueString(c.desc.Type, str)
}

func parseValueString(t ValueType, str string) (Value, error) {
	switch t {
	case TypeUint64:
		v, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a uint64", ErrTypeMismatch, str)
		}
		return Uint64(v), nil
	case TypeInt64:
		v, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an int64", ErrTypeMismatch, str)
		}
		return Int64(v), nil
	case TypeFloat64:
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a float64", ErrTypeMismatch, str)
		}
		return Float64(v), nil
	default:
		return String(str), nil
	}
}
