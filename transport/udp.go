package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// MaxDatagramSize bounds a single UDP packet; udpConn.Send rejects a
// packet larger than this rather than splitting it across datagrams.
const MaxDatagramSize = 4096

// UDPTransport dials and listens on real UDP sockets. It is the
// Transport cmd/procd and cmd/procctl use against another host: one
// datagram per packet, no stream framing needed.
type UDPTransport struct {
	// Resolve maps a logical node identifier to a network address,
	// playing the role a routing table would; it is supplied by the
	// caller (typically from configuration).
	Resolve func(node uint16) (string, error)
}

func (t *UDPTransport) Dial(ctx context.Context, node uint16, port int) (Conn, error) {
	addr, err := t.Resolve(node)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve node %d: %w", node, err)
	}
	raddr := fmt.Sprintf("%s:%d", addr, port)
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", raddr)
	if err != nil {
		return nil, err
	}
	return &udpConn{c: c}, nil
}

func (t *UDPTransport) Listen(port int) (Listener, error) {
	pc, err := net.ListenPacket("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return &udpListener{
		pc:    pc,
		conns: make(chan Conn, 16),
		done:  make(chan struct{}),
		live:  make(map[string]*udpServerConn),
	}, nil
}

// udpConn wraps a connected UDP socket; each Write/Read is exactly one
// datagram, so no length framing is needed.
type udpConn struct {
	c net.Conn
}

func (u *udpConn) Send(ctx context.Context, p *Packet) error {
	raw := p.Marshal()
	if len(raw) > MaxDatagramSize {
		return fmt.Errorf("transport: packet of %d bytes exceeds max datagram size %d", len(raw), MaxDatagramSize)
	}
	if dl, ok := ctx.Deadline(); ok {
		u.c.SetWriteDeadline(dl)
	}
	_, err := u.c.Write(raw)
	return err
}

func (u *udpConn) Receive(ctx context.Context) (*Packet, error) {
	if dl, ok := ctx.Deadline(); ok {
		u.c.SetReadDeadline(dl)
	}
	buf := make([]byte, MaxDatagramSize)
	n, err := u.c.Read(buf)
	if err != nil {
		return nil, err
	}
	return UnmarshalPacket(buf[:n])
}

func (u *udpConn) Close() error { return u.c.Close() }

// udpListener demultiplexes a single bound PacketConn into per-peer
// Conn values, since an "accept a connection per peer" model doesn't
// exist natively for UDP. live holds one entry per peer with an open
// connection; the entry is dropped when the connection closes, so the
// map is bounded by the number of in-flight exchanges rather than
// growing with every transaction ever served.
type udpListener struct {
	pc      net.PacketConn
	conns   chan Conn
	done    chan struct{}
	started bool

	mu   sync.Mutex
	live map[string]*udpServerConn
}

func (l *udpListener) Accept(ctx context.Context) (Conn, error) {
	if !l.started {
		l.started = true
		go l.pump()
	}
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, fmt.Errorf("%w: listener closed", ErrNoConnection)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *udpListener) pump() {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := l.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		key := addr.String()
		l.mu.Lock()
		if _, open := l.live[key]; open {
			l.mu.Unlock()
			continue
		}
		c := &udpServerConn{
			pc:      l.pc,
			peer:    addr,
			first:   append([]byte(nil), buf[:n]...),
			release: func() { l.forget(key) },
		}
		l.live[key] = c
		l.mu.Unlock()
		l.conns <- c
	}
}

func (l *udpListener) forget(key string) {
	l.mu.Lock()
	delete(l.live, key)
	l.mu.Unlock()
}

func (l *udpListener) Close() error {
	close(l.done)
	return l.pc.Close()
}

// udpServerConn is the server side of one logical peer connection over a
// shared PacketConn. The servers here handle one short request/response
// exchange per connection, which this satisfies by replaying the packet
// that triggered Accept.
type udpServerConn struct {
	pc      net.PacketConn
	peer    net.Addr
	first   []byte
	release func()
	once    sync.Once
}

func (u *udpServerConn) Send(ctx context.Context, p *Packet) error {
	_, err := u.pc.WriteTo(p.Marshal(), u.peer)
	return err
}

func (u *udpServerConn) Receive(ctx context.Context) (*Packet, error) {
	if u.first != nil {
		raw := u.first
		u.first = nil
		return UnmarshalPacket(raw)
	}
	return nil, fmt.Errorf("%w: single-exchange udp connection exhausted", ErrNoConnection)
}

func (u *udpServerConn) Close() error {
	if u.release != nil {
		u.once.Do(u.release)
	}
	return nil
}
