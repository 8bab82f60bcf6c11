package transport

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/suprax-systems/csp-proc/proc"
	"github.com/suprax-systems/csp-proc/wire"
)

// Client drives proc transactions against a remote (or local, via
// PipeTransport) node: open a connection, send one request, read
// responses until an end-flagged packet, invoking a per-packet callback
// on each non-error response.
type Client struct {
	Transport Transport
	Port      int
	Log       *logrus.Entry
}

// NewClient returns a Client using the default transport port.
func NewClient(t Transport) *Client {
	return &Client{Transport: t, Port: DefaultPort, Log: logrus.WithField("component", "proc-client")}
}

// transact opens one connection, sends req, and reads packets until the
// end flag. onPacket is invoked for every non-error packet, in order.
// The end/error flags are read off each packet the instant it is
// received and never consulted again afterward, so a packet buffer
// handed back to a pool can never be the source of the flag.
func (c *Client) transact(ctx context.Context, node uint16, req *Packet, onPacket func(*Packet) error) error {
	conn, err := c.Transport.Dial(ctx, node, c.Port)
	if err != nil {
		return fmt.Errorf("transport: dial node %d: %w", node, err)
	}
	defer conn.Close()

	if err := conn.Send(ctx, req); err != nil {
		return fmt.Errorf("transport: send %s to node %d: %w", req.Type(), node, err)
	}

	for {
		pkt, err := conn.Receive(ctx)
		if err != nil {
			return fmt.Errorf("transport: receive from node %d: %w", node, err)
		}
		end := pkt.End()
		isErr := pkt.Error()

		if !isErr && onPacket != nil {
			if err := onPacket(pkt); err != nil {
				return err
			}
		}
		if end {
			if isErr {
				return fmt.Errorf("%w: %s from node %d", ErrRemoteError, req.Type(), node)
			}
			return nil
		}
	}
}

// Del sends a DEL request for slot on node.
func (c *Client) Del(ctx context.Context, node uint16, slot uint8) error {
	req := NewPacket(MsgDelReq, false, []byte{slot})
	return c.transact(ctx, node, req, nil)
}

// Pull fetches the procedure stored at slot on node.
func (c *Client) Pull(ctx context.Context, node uint16, slot uint8) (*proc.Procedure, error) {
	req := NewPacket(MsgPullReq, false, []byte{slot})
	var result *proc.Procedure
	err := c.transact(ctx, node, req, func(pkt *Packet) error {
		_, body, err := pkt.SlotAndRest()
		if err != nil {
			return err
		}
		p, err := wire.Unpack(append(make([]byte, wire.HeaderSize), body...))
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Push uploads p to slot on node.
func (c *Client) Push(ctx context.Context, node uint16, slot uint8, p *proc.Procedure) error {
	size, err := wire.CalcProcSize(p)
	if err != nil {
		return err
	}
	buf := make([]byte, wire.HeaderSize+size)
	if _, err := wire.Pack(p, buf); err != nil {
		return err
	}
	req := NewPacket(MsgPushReq, false, SlotPayload(slot, buf[wire.HeaderSize:]))
	return c.transact(ctx, node, req, nil)
}

// Slots lists occupied slots on node.
func (c *Client) Slots(ctx context.Context, node uint16) ([]int, error) {
	req := NewPacket(MsgSlotsReq, false, nil)
	var out []int
	err := c.transact(ctx, node, req, func(pkt *Packet) error {
		for _, b := range pkt.Payload {
			out = append(out, int(b))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Run starts execution of slot on node.
func (c *Client) Run(ctx context.Context, node uint16, slot uint8) error {
	req := NewPacket(MsgRunReq, false, []byte{slot})
	return c.transact(ctx, node, req, nil)
}
