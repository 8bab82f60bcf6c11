package param

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/suprax-systems/csp-proc/transport"
)

// Remote protocol message types, carried in the same low-nibble/flags
// framing as the procedure transport (see transport.Packet) but on a
// dedicated port, since the parameter space is a distinct service from
// the procedure store. The request/response-by-name shape mirrors an
// object-dictionary read/write, the same pattern CANopen SDO clients
// use to address a remote node's parameters.
type remoteMsgType uint8

const (
	remoteMsgListReq remoteMsgType = iota
	remoteMsgListResp
	remoteMsgGetReq
	remoteMsgGetResp
	remoteMsgSetReq
	remoteMsgSetResp
)

// DefaultRemotePort is the parameter service's fixed transport port.
const DefaultRemotePort = 15

// RemoteBridge implements Space by serving local reads/writes from an
// embedded LocalSpace and routing remote reads/writes over a
// transport.Transport connection to the owning node.
type RemoteBridge struct {
	local *LocalSpace
	t     transport.Transport
	port  int

	mu          sync.Mutex
	remoteDescs map[uint16][]Descriptor
}

// NewRemoteBridge wraps local, dialing out over t for any node other
// than local.LocalNode().
func NewRemoteBridge(local *LocalSpace, t transport.Transport, port int) *RemoteBridge {
	if port == 0 {
		port = DefaultRemotePort
	}
	return &RemoteBridge{local: local, t: t, port: port, remoteDescs: make(map[uint16][]Descriptor)}
}

func (b *RemoteBridge) LocalNode() uint16 { return b.local.LocalNode() }

func (b *RemoteBridge) List() []Descriptor {
	out := b.local.List()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, descs := range b.remoteDescs {
		out = append(out, descs...)
	}
	return out
}

func (b *RemoteBridge) Get(name string, index int) (Value, error) { return b.local.Get(name, index) }

func (b *RemoteBridge) Set(name string, index int, v Value) error { return b.local.Set(name, index, v) }

func (b *RemoteBridge) StringToValue(name, s string) (Value, error) {
	if v, err := b.local.StringToValue(name, s); err == nil {
		return v, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, descs := range b.remoteDescs {
		for _, d := range descs {
			if d.Name == name {
				return parseValueString(d.Type, s)
			}
		}
	}
	return Value{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (b *RemoteBridge) dial(ctx context.Context, node uint16) (transport.Conn, error) {
	return b.t.Dial(ctx, node, b.port)
}

func withTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

// DownloadRemoteList fetches and caches node's parameter descriptors.
func (b *RemoteBridge) DownloadRemoteList(node uint16, timeout time.Duration) error {
	ctx, cancel := withTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := b.dial(ctx, node)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := &transport.Packet{Header: byte(remoteMsgListReq) | transport.FlagEnd}
	if err := conn.Send(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
	}
	resp, err := conn.Receive(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
	}
	descs, err := decodeDescriptorList(resp.Payload, node)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.remoteDescs[node] = descs
	b.mu.Unlock()
	return nil
}

// PullRemote reads element index of name from node.
func (b *RemoteBridge) PullRemote(name string, index int, node uint16, timeout time.Duration) (Value, error) {
	ctx, cancel := withTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := b.dial(ctx, node)
	if err != nil {
		return Value{}, err
	}
	defer conn.Close()

	req := &transport.Packet{Header: byte(remoteMsgGetReq) | transport.FlagEnd, Payload: encodeGetRequest(name, index)}
	if err := conn.Send(ctx, req); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
	}
	resp, err := conn.Receive(ctx)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
	}
	if resp.Error() {
		return Value{}, fmt.Errorf("%w: node %d rejected get of %s", ErrNotFound, node, name)
	}
	return decodeValue(resp.Payload)
}

// PushRemote writes element index of name on node. ack requests a
// response before returning; without it, PushRemote returns once the
// write is sent.
func (b *RemoteBridge) PushRemote(name string, index int, v Value, node uint16, timeout time.Duration, ack bool) error {
	ctx, cancel := withTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := b.dial(ctx, node)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := &transport.Packet{Header: byte(remoteMsgSetReq) | transport.FlagEnd, Payload: encodeSetRequest(name, index, v)}
	if err := conn.Send(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
	}
	if !ack {
		return nil
	}
	resp, err := conn.Receive(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
	}
	if resp.Error() {
		return fmt.Errorf("%w: node %d rejected set of %s", ErrReadOnly, node, name)
	}
	return nil
}

func encodeGetRequest(name string, index int) []byte {
	buf := make([]byte, 0, len(name)+1+4)
	buf = append(buf, []byte(name)...)
	buf = append(buf, 0)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], uint32(int32(index)))
	return append(buf, idx[:]...)
}

func encodeSetRequest(name string, index int, v Value) []byte {
	buf := encodeGetRequest(name, index)
	return append(buf, encodeValue(v)...)
}

func encodeValue(v Value) []byte {
	switch v.Type {
	case TypeUint64:
		out := make([]byte, 9)
		out[0] = byte(TypeUint64)
		binary.LittleEndian.PutUint64(out[1:], v.U)
		return out
	case TypeInt64:
		out := make([]byte, 9)
		out[0] = byte(TypeInt64)
		binary.LittleEndian.PutUint64(out[1:], uint64(v.I))
		return out
	case TypeFloat64:
		out := make([]byte, 9)
		out[0] = byte(TypeFloat64)
		binary.LittleEndian.PutUint64(out[1:], math.Float64bits(v.F))
		return out
	default:
		out := make([]byte, 0, len(v.S)+2)
		out = append(out, byte(TypeString))
		out = append(out, []byte(v.S)...)
		out = append(out, 0)
		return out
	}
}

func decodeValue(buf []byte) (Value, error) {
	if len(buf) < 1 {
		return Value{}, fmt.Errorf("%w: empty value payload", ErrTypeMismatch)
	}
	t := ValueType(buf[0])
	switch t {
	case TypeUint64, TypeInt64, TypeFloat64:
		if len(buf) < 9 {
			return Value{}, fmt.Errorf("%w: truncated value payload", ErrTypeMismatch)
		}
		bits := binary.LittleEndian.Uint64(buf[1:9])
		switch t {
		case TypeUint64:
			return Uint64(bits), nil
		case TypeInt64:
			return Int64(int64(bits)), nil
		default:
			return Float64(math.Float64frombits(bits)), nil
		}
	case TypeString:
		end := len(buf)
		for i := 1; i < len(buf); i++ {
			if buf[i] == 0 {
				end = i
				break
			}
		}
		return String(string(buf[1:end])), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown wire type %d", ErrTypeMismatch, t)
	}
}

func decodeDescriptorList(buf []byte, node uint16) ([]Descriptor, error) {
	var out []Descriptor
	off := 0
	for off < len(buf) {
		nameEnd := -1
		for i := off; i < len(buf); i++ {
			if buf[i] == 0 {
				nameEnd = i
				break
			}
		}
		if nameEnd < 0 {
			return nil, fmt.Errorf("%w: unterminated name in descriptor list", ErrTypeMismatch)
		}
		name := string(buf[off:nameEnd])
		off = nameEnd + 1
		if off+4 > len(buf) {
			return nil, fmt.Errorf("%w: truncated descriptor for %s", ErrTypeMismatch, name)
		}
		t := ValueType(buf[off])
		arraySize := int(binary.LittleEndian.Uint16(buf[off+1 : off+3]))
		readOnly := buf[off+3] != 0
		off += 4
		out = append(out, Descriptor{Name: name, Node: node, Type: t, ArraySize: arraySize, ReadOnly: readOnly})
	}
	return out, nil
}

// EncodeDescriptorList is the server-side counterpart of
// decodeDescriptorList, used by a RemoteBridge-compatible param server.
func EncodeDescriptorList(descs []Descriptor) []byte {
	var buf []byte
	for _, d := range descs {
		buf = append(buf, []byte(d.Name)...)
		buf = append(buf, 0)
		buf = append(buf, byte(d.Type))
		var size [2]byte
		binary.LittleEndian.PutUint16(size[:], uint16(d.ArraySize))
		buf = append(buf, size[:]...)
		if d.ReadOnly {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// DecodeGetRequest is the server-side counterpart of encodeGetRequest.
func DecodeGetRequest(buf []byte) (name string, index int, err error) {
	nameEnd := -1
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			nameEnd = i
			break
		}
	}
	if nameEnd < 0 || nameEnd+5 > len(buf) {
		return "", 0, fmt.Errorf("%w: malformed get request", ErrTypeMismatch)
	}
	idx := int32(binary.LittleEndian.Uint32(buf[nameEnd+1 : nameEnd+5]))
	return string(buf[:nameEnd]), int(idx), nil
}

// DecodeSetRequest is the server-side counterpart of encodeSetRequest.
func DecodeSetRequest(buf []byte) (name string, index int, v Value, err error) {
	nameEnd := -1
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			nameEnd = i
			break
		}
	}
	if nameEnd < 0 || nameEnd+5 > len(buf) {
		return "", 0, Value{}, fmt.Errorf("%w: malformed set request", ErrTypeMismatch)
	}
	idx := int32(binary.LittleEndian.Uint32(buf[nameEnd+1 : nameEnd+5]))
	v, err = decodeValue(buf[nameEnd+5:])
	return string(buf[:nameEnd]), int(idx), v, err
}

// EncodeValue exposes encodeValue for the param server implementation.
func EncodeValue(v Value) []byte { return encodeValue(v) }
