package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// PipeTransport is an in-memory Transport for tests and for a shell
// running in the same process as the server: Dial(node) connects to
// the one Listener bound to the requested port, whatever the node.
// Packets are framed with a 4-byte length prefix since the underlying
// net.Pipe is a byte stream, not a datagram channel.
type PipeTransport struct {
	mu        sync.Mutex
	listeners map[int]*pipeListener
}

// NewPipeTransport returns an empty in-memory transport.
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{listeners: make(map[int]*pipeListener)}
}

func (t *PipeTransport) Listen(port int) (Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.listeners[port]; exists {
		return nil, fmt.Errorf("transport: port %d already listening", port)
	}
	l := &pipeListener{port: port, incoming: make(chan net.Conn, 16), done: make(chan struct{})}
	t.listeners[port] = l
	return l, nil
}

// Dial ignores node (there is only one peer in this in-memory transport
// per port) and connects to the Listener bound to port.
func (t *PipeTransport) Dial(ctx context.Context, node uint16, port int) (Conn, error) {
	t.mu.Lock()
	l, ok := t.listeners[port]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no listener on port %d", ErrNoConnection, port)
	}

	client, server := net.Pipe()
	select {
	case l.incoming <- server:
	case <-l.done:
		client.Close()
		server.Close()
		return nil, fmt.Errorf("%w: listener closed", ErrNoConnection)
	case <-ctx.Done():
		client.Close()
		server.Close()
		return nil, ctx.Err()
	}
	return &framedConn{c: client}, nil
}

type pipeListener struct {
	port     int
	incoming chan net.Conn
	done     chan struct{}
	closeOne sync.Once
}

func (l *pipeListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.incoming:
		return &framedConn{c: c}, nil
	case <-l.done:
		return nil, fmt.Errorf("%w: listener closed", ErrNoConnection)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *pipeListener) Close() error {
	l.closeOne.Do(func() { close(l.done) })
	return nil
}

// framedConn adapts a byte-stream net.Conn (net.Pipe or any other
// stream) into the packet-oriented Conn interface with a 4-byte
// little-endian length prefix per packet.
type framedConn struct {
	c net.Conn
}

func (f *framedConn) Send(ctx context.Context, p *Packet) error {
	raw := p.Marshal()
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(raw)))
	if dl, ok := ctx.Deadline(); ok {
		f.c.SetWriteDeadline(dl)
	}
	if _, err := f.c.Write(hdr[:]); err != nil {
		return err
	}
	_, err := f.c.Write(raw)
	return err
}

func (f *framedConn) Receive(ctx context.Context) (*Packet, error) {
	if dl, ok := ctx.Deadline(); ok {
		f.c.SetReadDeadline(dl)
	}
	var hdr [4]byte
	if _, err := io.ReadFull(f.c, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	raw := make([]byte, n)
	if _, err := io.ReadFull(f.c, raw); err != nil {
		return nil, err
	}
	return UnmarshalPacket(raw)
}

func (f *framedConn) Close() error { return f.c.Close() }
