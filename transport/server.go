package transport

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/suprax-systems/csp-proc/proc"
	"github.com/suprax-systems/csp-proc/wire"
)

// Store is the slot-store surface the procedure server needs. It is
// satisfied by *store.Store; declared here so package transport does
// not import package store.
type Store interface {
	Set(slot int, p *proc.Procedure, overwrite bool) error
	Get(slot int) (*proc.Procedure, error)
	Delete(slot int) error
	Slots() []int
}

// Runner is the runtime supervisor surface the procedure server needs.
type Runner interface {
	Run(ctx context.Context, slot int) error
}

// Server answers DEL/PULL/PUSH/SLOTS/RUN requests against a Store and a
// Runner -- the peer side of Client.
type Server struct {
	Store  Store
	Runner Runner
	Log    *logrus.Entry
}

// NewServer returns a Server bound to st and runner.
func NewServer(st Store, runner Runner) *Server {
	return &Server{Store: st, Runner: runner, Log: logrus.WithField("component", "proc-server")}
}

// Serve accepts connections from l until ctx is cancelled, handling each
// with HandleConn in its own goroutine.
func (s *Server) Serve(ctx context.Context, l Listener) error {
	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			if err := s.HandleConn(ctx, conn); err != nil {
				s.Log.WithError(err).Warn("proc connection handling failed")
			}
		}()
	}
}

// HandleConn answers exactly one request on conn and closes it. Replies
// are always a single, end-flagged packet; the wire protocol leaves
// room for multi-packet responses but nothing served here needs them.
func (s *Server) HandleConn(ctx context.Context, conn Conn) error {
	defer conn.Close()

	req, err := conn.Receive(ctx)
	if err != nil {
		return err
	}

	switch req.Type() {
	case MsgDelReq:
		slot, _, err := req.SlotAndRest()
		if err != nil {
			return conn.Send(ctx, errorResponse(MsgDelResp))
		}
		if err := s.Store.Delete(int(slot)); err != nil {
			s.Log.WithError(err).WithField("slot", slot).Warn("del failed")
			return conn.Send(ctx, errorResponse(MsgDelResp))
		}
		return conn.Send(ctx, NewPacket(MsgDelResp, false, nil))

	case MsgPullReq:
		slot, _, err := req.SlotAndRest()
		if err != nil {
			return conn.Send(ctx, errorResponse(MsgPullResp))
		}
		p, err := s.Store.Get(int(slot))
		if err != nil {
			return conn.Send(ctx, errorResponse(MsgPullResp))
		}
		size, err := wire.CalcProcSize(p)
		if err != nil {
			return conn.Send(ctx, errorResponse(MsgPullResp))
		}
		buf := make([]byte, wire.HeaderSize+size)
		if _, err := wire.Pack(p, buf); err != nil {
			return conn.Send(ctx, errorResponse(MsgPullResp))
		}
		return conn.Send(ctx, NewPacket(MsgPullResp, false, SlotPayload(slot, buf[wire.HeaderSize:])))

	case MsgPushReq:
		slot, body, err := req.SlotAndRest()
		if err != nil {
			return conn.Send(ctx, errorResponse(MsgPushResp))
		}
		p, err := wire.Unpack(append(make([]byte, wire.HeaderSize), body...))
		if err != nil {
			s.Log.WithError(err).Warn("push: malformed procedure")
			return conn.Send(ctx, errorResponse(MsgPushResp))
		}
		// Overwrite is hardcoded false: PUSH carries no overwrite flag
		// of its own, so refusing to clobber an occupied slot is
		// server policy, not a client choice. Re-pushing to an
		// occupied slot requires an explicit DEL first.
		if err := s.Store.Set(int(slot), p, false); err != nil {
			s.Log.WithError(err).WithField("slot", slot).Warn("push failed")
			return conn.Send(ctx, errorResponse(MsgPushResp))
		}
		return conn.Send(ctx, NewPacket(MsgPushResp, false, nil))

	case MsgSlotsReq:
		slots := s.Store.Slots()
		payload := make([]byte, len(slots))
		for i, slot := range slots {
			payload[i] = byte(slot)
		}
		return conn.Send(ctx, NewPacket(MsgSlotsResp, false, payload))

	case MsgRunReq:
		slot, _, err := req.SlotAndRest()
		if err != nil {
			return conn.Send(ctx, errorResponse(MsgRunResp))
		}
		if err := s.Runner.Run(ctx, int(slot)); err != nil {
			s.Log.WithError(err).WithField("slot", slot).Warn("run failed")
			return conn.Send(ctx, errorResponse(MsgRunResp))
		}
		return conn.Send(ctx, NewPacket(MsgRunResp, false, nil))

	default:
		return fmt.Errorf("transport: unknown request type %d", req.Type())
	}
}

func errorResponse(t MsgType) *Packet {
	return NewPacket(t, true, nil)
}
