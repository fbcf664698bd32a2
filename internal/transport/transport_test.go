package transport

import (
	"testing"
	"time"
)

func TestUDPTransportSendReceiveRoundTrip(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := a.Send(b.LocalAddr(), []byte("hello")); err != nil {
		t.Fatal(err)
	}

	select {
	case pkt := <-b.Packets():
		if string(pkt.Data) != "hello" {
			t.Errorf("got %q, want %q", pkt.Data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
}

func TestMemoryTransportRoundTrip(t *testing.T) {
	peers := make(map[MemAddr]*MemoryTransport)
	a := NewMemoryTransport("a", peers)
	b := NewMemoryTransport("b", peers)
	defer a.Close()
	defer b.Close()

	if err := a.Send(MemAddr("b"), []byte("ping")); err != nil {
		t.Fatal(err)
	}
	pkt := <-b.Packets()
	if string(pkt.Data) != "ping" {
		t.Errorf("got %q", pkt.Data)
	}
	if pkt.Addr.(MemAddr) != "a" {
		t.Errorf("source addr = %v, want a", pkt.Addr)
	}
}

func TestMemoryTransportSendToUnknownPeerFails(t *testing.T) {
	peers := make(map[MemAddr]*MemoryTransport)
	a := NewMemoryTransport("a", peers)
	defer a.Close()
	if err := a.Send(MemAddr("ghost"), []byte("x")); err == nil {
		t.Error("expected error sending to unregistered peer")
	}
}
