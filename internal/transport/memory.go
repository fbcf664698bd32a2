package transport

import (
	"errors"
	"net"
	"sync"
)

// MemAddr is an in-process address used by MemoryTransport, so tests can
// exercise client/server orchestration without binding real sockets.
type MemAddr string

func (a MemAddr) Network() string { return "mem" }
func (a MemAddr) String() string  { return string(a) }

// MemoryTransport delivers datagrams directly into a peer MemoryTransport's
// channel, for deterministic tests of everything above internal/transport.
type MemoryTransport struct {
	addr    MemAddr
	packets chan Packet

	mu    sync.Mutex
	peers map[MemAddr]*MemoryTransport

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemoryTransport returns a transport bound to addr, registered in the
// shared peers map so other MemoryTransport instances constructed with the
// same map can address it.
func NewMemoryTransport(addr MemAddr, peers map[MemAddr]*MemoryTransport) *MemoryTransport {
	t := &MemoryTransport{
		addr:    addr,
		packets: make(chan Packet, 256),
		peers:   peers,
		closed:  make(chan struct{}),
	}
	peers[addr] = t
	return t
}

func (t *MemoryTransport) Send(addr net.Addr, data []byte) error {
	memAddr, ok := addr.(MemAddr)
	if !ok {
		return errors.New("transport: address is not a MemAddr")
	}
	t.mu.Lock()
	peer, ok := t.peers[memAddr]
	t.mu.Unlock()
	if !ok {
		return errors.New("transport: no such peer")
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case peer.packets <- Packet{Addr: t.addr, Data: cp}:
		return nil
	case <-peer.closed:
		return errors.New("transport: peer closed")
	}
}

func (t *MemoryTransport) Packets() <-chan Packet { return t.packets }
func (t *MemoryTransport) LocalAddr() net.Addr    { return t.addr }

func (t *MemoryTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		close(t.packets)
	})
	return nil
}
