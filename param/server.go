package param

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/suprax-systems/csp-proc/transport"
)

// Server answers remote parameter requests against a LocalSpace, the
// peer side of RemoteBridge.
type Server struct {
	Local *LocalSpace
	Log   *logrus.Entry
}

// NewServer returns a Server bound to local.
func NewServer(local *LocalSpace) *Server {
	return &Server{Local: local, Log: logrus.WithField("component", "param-server")}
}

// Serve accepts connections from l until ctx is cancelled, handling each
// with HandleConn.
func (s *Server) Serve(ctx context.Context, l transport.Listener) error {
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
				s.Log.WithError(err).Warn("param connection handling failed")
			}
		}()
	}
}

// HandleConn answers exactly one request on conn and closes it.
func (s *Server) HandleConn(ctx context.Context, conn transport.Conn) error {
	defer conn.Close()

	req, err := conn.Receive(ctx)
	if err != nil {
		return err
	}

	switch remoteMsgType(req.Type()) {
	case remoteMsgListReq:
		payload := EncodeDescriptorList(s.Local.List())
		return conn.Send(ctx, &transport.Packet{Header: byte(remoteMsgListResp) | transport.FlagEnd, Payload: payload})

	case remoteMsgGetReq:
		name, index, err := DecodeGetRequest(req.Payload)
		if err != nil {
			return conn.Send(ctx, errorResponse(remoteMsgGetResp))
		}
		v, err := s.Local.Get(name, index)
		if err != nil {
			return conn.Send(ctx, errorResponse(remoteMsgGetResp))
		}
		return conn.Send(ctx, &transport.Packet{Header: byte(remoteMsgGetResp) | transport.FlagEnd, Payload: EncodeValue(v)})

	case remoteMsgSetReq:
		name, index, v, err := DecodeSetRequest(req.Payload)
		if err != nil {
			return conn.Send(ctx, errorResponse(remoteMsgSetResp))
		}
		if err := s.Local.Set(name, index, v); err != nil {
			return conn.Send(ctx, errorResponse(remoteMsgSetResp))
		}
		return conn.Send(ctx, &transport.Packet{Header: byte(remoteMsgSetResp) | transport.FlagEnd})

	default:
		return fmt.Errorf("param: unknown request type %d", req.Type())
	}
}

func errorResponse(t remoteMsgType) *transport.Packet {
	return &transport.Packet{Header: byte(t) | transport.FlagEnd | transport.FlagError}
}
