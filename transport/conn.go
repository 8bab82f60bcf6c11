package transport

import "context"

// Conn is one open connection to a peer node: a sequence of packet sends
// and receives. It is the "connection-oriented send/receive of
// fixed-size packets with a priority field" the external interfaces
// section names.
type Conn interface {
	Send(ctx context.Context, p *Packet) error
	Receive(ctx context.Context) (*Packet, error)
	Close() error
}

// Transport opens connections to nodes and accepts incoming ones.
type Transport interface {
	Dial(ctx context.Context, node uint16, port int) (Conn, error)
	Listen(port int) (Listener, error)
}

// Listener accepts incoming connections on a bound port.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
}
