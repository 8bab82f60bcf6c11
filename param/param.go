// Package param implements the parameter space: the distributed,
// node-owned, typed key-value store the interpreter reads and writes.
// LocalSpace holds the parameters this node owns; RemoteBridge reaches
// other nodes' parameters over the transport, so the local-vs-remote
// split the interpreter has to make is a real, testable code path
// rather than a stub.
package param

import (
	"errors"
	"fmt"
	"time"
)

// ValueType is the tagged-operand category every parameter read or write
// is funneled through, after width promotion: unsigned/signed widths
// promote to their 64-bit variant, float/double promote to double.
type ValueType uint8

const (
	TypeUint64 ValueType = iota
	TypeInt64
	TypeFloat64
	TypeString
)

func (t ValueType) String() string {
	switch t {
	case TypeUint64:
		return "uint64"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// Value is a promoted, tagged operand.
type Value struct {
	Type ValueType
	U    uint64
	I    int64
	F    float64
	S    string
}

func Uint64(v uint64) Value  { return Value{Type: TypeUint64, U: v} }
func Int64(v int64) Value    { return Value{Type: TypeInt64, I: v} }
func Float64(v float64) Value { return Value{Type: TypeFloat64, F: v} }
func String(v string) Value  { return Value{Type: TypeString, S: v} }

// Descriptor describes one named parameter: its owning node, its type,
// its array size (1 for a scalar), and whether writes are rejected.
type Descriptor struct {
	Name      string
	Node      uint16
	Type      ValueType
	ArraySize int
	ReadOnly  bool
}

// NoIndex is passed to Get/Set for a bare (non-indexed) reference.
const NoIndex = -1

// Space is the interface the interpreter consumes. Implementations must
// be safe for concurrent use by multiple workers.
type Space interface {
	// LocalNode is this space's own node identifier, against which an
	// instruction's Node field is compared to decide local vs remote.
	LocalNode() uint16

	// List enumerates locally known parameters (including any remote
	// descriptors cached by a prior DownloadRemoteList).
	List() []Descriptor

	// Get reads element index of a local parameter. index == NoIndex
	// reads the scalar cell (or element 0 of an array).
	Get(name string, index int) (Value, error)

	// Set writes element index of a local parameter. index == NoIndex
	// on a scalar writes the cell; on an array it writes every element.
	Set(name string, index int, v Value) error

	// DownloadRemoteList refreshes the cached descriptor list for node.
	DownloadRemoteList(node uint16, timeout time.Duration) error

	// PullRemote reads element index of name from node.
	PullRemote(name string, index int, node uint16, timeout time.Duration) (Value, error)

	// PushRemote writes element index of name on node, optionally
	// waiting for an acknowledgement.
	PushRemote(name string, index int, v Value, node uint16, timeout time.Duration, ack bool) error

	// StringToValue coerces a literal (as used by SET and the builder)
	// into the value the named parameter's type expects.
	StringToValue(name string, s string) (Value, error)
}

var (
	ErrNotFound         = errors.New("param: not found")
	ErrReadOnly         = errors.New("param: read-only")
	ErrTypeMismatch     = errors.New("param: type mismatch")
	ErrIndexOutOfRange  = errors.New("param: index out of range")
	ErrRemoteUnsupported = errors.New("param: remote operations unsupported by this space")
	ErrRemoteTimeout    = errors.New("param: remote operation timed out")
)
