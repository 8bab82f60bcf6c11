// Package transport implements the request/response framing over a
// small-packet network: connection-oriented send/receive of fixed-size
// packets with a priority field. Two Transport implementations are
// provided: an in-memory pipe for tests and the same-process shell, and
// a UDP-backed transport for real network use.
package transport

import "fmt"

// MsgType is the low nibble of a packet's first byte. Each operation has
// a distinct request and response value.
type MsgType uint8

const (
	MsgDelReq MsgType = iota
	MsgDelResp
	MsgPullReq
	MsgPullResp
	MsgPushReq
	MsgPushResp
	MsgSlotsReq
	MsgSlotsResp
	MsgRunReq
	MsgRunResp
)

func (t MsgType) String() string {
	switch t {
	case MsgDelReq:
		return "DEL-req"
	case MsgDelResp:
		return "DEL-resp"
	case MsgPullReq:
		return "PULL-req"
	case MsgPullResp:
		return "PULL-resp"
	case MsgPushReq:
		return "PUSH-req"
	case MsgPushResp:
		return "PUSH-resp"
	case MsgSlotsReq:
		return "SLOTS-req"
	case MsgSlotsResp:
		return "SLOTS-resp"
	case MsgRunReq:
		return "RUN-req"
	case MsgRunResp:
		return "RUN-resp"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

// High-nibble flag bits of a packet's first byte.
const (
	FlagEnd   byte = 0x80
	FlagError byte = 0x40
)

// DefaultPort is the fixed transport port of the procedure service.
const DefaultPort = 14

// Packet is one datagram: a header byte plus whatever body bytes the
// message type defines (a slot byte, a packed procedure, a list of slot
// bytes, ...). The body's shape is known from the message type alone, so
// Packet does not try to parse it -- callers that expect a slot-keyed
// message read Payload[0] themselves (see SlotAndRest). Priority mirrors
// the external interface's "priority field" on the underlying
// small-packet transport.
type Packet struct {
	Header   byte
	Payload  []byte
	Priority int
}

// Type returns the message type carried in Header's low nibble.
func (p *Packet) Type() MsgType { return MsgType(p.Header & 0x0F) }

// End reports the end-of-transmission flag.
func (p *Packet) End() bool { return p.Header&FlagEnd != 0 }

// Error reports the error flag.
func (p *Packet) Error() bool { return p.Header&FlagError != 0 }

// SlotAndRest splits a slot-keyed payload into its slot byte and the
// remaining body, failing if the payload is empty.
func (p *Packet) SlotAndRest() (byte, []byte, error) {
	if len(p.Payload) < 1 {
		return 0, nil, fmt.Errorf("%w: missing slot byte", ErrMalformed)
	}
	return p.Payload[0], p.Payload[1:], nil
}

// NewPacket builds a single, final (end-flagged) packet of type t.
func NewPacket(t MsgType, errFlag bool, payload []byte) *Packet {
	h := byte(t) | FlagEnd
	if errFlag {
		h |= FlagError
	}
	return &Packet{Header: h, Payload: payload}
}

// SlotPayload prepends a slot byte to body, the common shape for
// slot-keyed requests and responses.
func SlotPayload(slot byte, body []byte) []byte {
	out := make([]byte, 1+len(body))
	out[0] = slot
	copy(out[1:], body)
	return out
}

// Marshal serializes p to its wire bytes: header followed by payload.
func (p *Packet) Marshal() []byte {
	buf := make([]byte, 1+len(p.Payload))
	buf[0] = p.Header
	copy(buf[1:], p.Payload)
	return buf
}

// UnmarshalPacket parses raw wire bytes into a Packet.
func UnmarshalPacket(raw []byte) (*Packet, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("%w: empty packet", ErrMalformed)
	}
	return &Packet{Header: raw[0], Payload: append([]byte(nil), raw[1:]...)}, nil
}
