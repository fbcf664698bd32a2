package conn

import (
	"testing"
	"time"

	"github.com/duskwire/netcode/internal/msgmanager"
	"github.com/duskwire/netcode/internal/schema"
)

func testSchema() *schema.Schema {
	b := schema.NewBuilder()
	b.AddChannel(1, schema.ChannelSettings{
		Kind:      schema.OrderedReliable,
		Direction: schema.Bidirectional,
		Reliable:  schema.DefaultReliableSettings(),
	})
	return b.Build()
}

func TestDataPacketRoundTripDeliversMessage(t *testing.T) {
	s := testSchema()
	sig := []byte("shared-session-signature")
	now := time.Unix(0, 0)

	client := New(s, msgmanager.ClientSide, sig, now)
	server := New(s, msgmanager.ServerSide, sig, now)

	if err := client.Send(1, []byte("hello server")); err != nil {
		t.Fatal(err)
	}

	pkt, ok := client.BuildOutgoingPacket(now)
	if !ok {
		t.Fatal("expected a packet to be due")
	}
	if err := server.ProcessIncomingPacket(now, pkt); err != nil {
		t.Fatalf("ProcessIncomingPacket: %v", err)
	}

	got := server.Drain(1)
	if len(got) != 1 || string(got[0]) != "hello server" {
		t.Fatalf("got = %v", got)
	}
}

func TestHeartbeatSentWhenIdle(t *testing.T) {
	s := testSchema()
	client := New(s, msgmanager.ClientSide, nil, time.Unix(0, 0))

	now := time.Unix(0, 0)
	if _, ok := client.BuildOutgoingPacket(now); !ok {
		t.Fatal("first packet (heartbeat) should be due immediately")
	}
	if _, ok := client.BuildOutgoingPacket(now.Add(time.Second)); ok {
		t.Error("should not send another heartbeat before the interval elapses")
	}
	if _, ok := client.BuildOutgoingPacket(now.Add(3 * time.Second)); !ok {
		t.Error("should send heartbeat once the interval elapses")
	}
}

func TestPingPongRoundTripMeasuresRTT(t *testing.T) {
	s := testSchema()
	sig := []byte("sig")
	now := time.Unix(0, 0)
	client := New(s, msgmanager.ClientSide, sig, now)
	server := New(s, msgmanager.ServerSide, sig, now)

	pingPkt, ok := client.MaybeBuildPingPacket(now)
	if !ok {
		t.Fatal("expected a ping to be due")
	}

	recvAt := now.Add(25 * time.Millisecond)
	if err := server.ProcessIncomingPacket(recvAt, pingPkt); err != nil {
		t.Fatal(err)
	}
	pong, ok := server.TakePendingPong()
	if !ok {
		t.Fatal("expected a pending pong after processing a ping")
	}
	pongPkt := server.BuildPongPacket(pong)

	backAt := now.Add(50 * time.Millisecond)
	if err := client.ProcessIncomingPacket(backAt, pongPkt); err != nil {
		t.Fatal(err)
	}
	if client.RTT() != 50*time.Millisecond {
		t.Errorf("RTT() = %v, want 50ms", client.RTT())
	}
}

func TestDisconnectRoundTripVerifies(t *testing.T) {
	s := testSchema()
	sig := []byte("shared-session-signature")
	now := time.Unix(0, 0)
	client := New(s, msgmanager.ClientSide, sig, now)
	server := New(s, msgmanager.ServerSide, sig, now)

	pkt, err := client.BuildDisconnect(now)
	if err != nil {
		t.Fatal(err)
	}
	if !client.Disconnected() {
		t.Error("client should mark itself disconnected after building Disconnect")
	}
	if err := server.ProcessIncomingPacket(now, pkt); err != nil {
		t.Fatalf("server rejected valid disconnect: %v", err)
	}
	if !server.Disconnected() {
		t.Error("server should learn about the disconnect")
	}
}

func TestDisconnectWithWrongSignatureRejected(t *testing.T) {
	s := testSchema()
	now := time.Unix(0, 0)
	client := New(s, msgmanager.ClientSide, []byte("client-sig"), now)
	server := New(s, msgmanager.ServerSide, []byte("different-server-sig"), now)

	pkt, err := client.BuildDisconnect(now)
	if err != nil {
		t.Fatal(err)
	}
	if err := server.ProcessIncomingPacket(now, pkt); err != ErrBadDisconnectSignature {
		t.Fatalf("err = %v, want ErrBadDisconnectSignature", err)
	}
}

func TestTimeoutDetection(t *testing.T) {
	s := testSchema()
	now := time.Unix(0, 0)
	c := New(s, msgmanager.ClientSide, nil, now)
	if c.IsTimedOut(now.Add(Timeout - time.Second)) {
		t.Error("should not be timed out yet")
	}
	if !c.IsTimedOut(now.Add(Timeout + time.Second)) {
		t.Error("should be timed out")
	}
}
