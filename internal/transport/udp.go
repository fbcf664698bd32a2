package transport

import (
	"fmt"
	"net"
)

// UDPMTU bounds how large a single read from the socket can be; a datagram
// larger than this is never produced by this module (internal/bitio.MTUBytes
// leaves headroom below it) but the buffer is sized generously in case a
// future caller writes one by hand.
const UDPMTU = 2048

// UDPTransport sends and receives over a bound *net.UDPConn, dispatching
// each incoming datagram onto a buffered channel from its own read loop
// goroutine. Grounded on source/server/server.go's listen().
type UDPTransport struct {
	conn    *net.UDPConn
	packets chan Packet
	closed  chan struct{}
}

// ListenUDP binds addr (host:port, or ":0" for an ephemeral port) and
// starts the background read loop.
func ListenUDP(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: binding %q: %w", addr, err)
	}

	t := &UDPTransport{
		conn:    conn,
		packets: make(chan Packet, 256),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *UDPTransport) readLoop() {
	defer close(t.packets)
	buf := make([]byte, UDPMTU)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
				continue
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case t.packets <- Packet{Addr: addr, Data: data}:
		case <-t.closed:
			return
		}
	}
}

// Send writes data to addr, which must be a *net.UDPAddr.
func (t *UDPTransport) Send(addr net.Addr, data []byte) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("transport: address %v is not a UDP address", addr)
	}
	_, err := t.conn.WriteToUDP(data, udpAddr)
	return err
}

// Packets returns the channel incoming datagrams are delivered on.
func (t *UDPTransport) Packets() <-chan Packet { return t.packets }

// LocalAddr returns the socket's bound local address.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Close shuts down the socket and its read loop.
func (t *UDPTransport) Close() error {
	close(t.closed)
	return t.conn.Close()
}
