package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/duskwire/netcode/events"
	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/conn"
	"github.com/duskwire/netcode/internal/handshake"
	"github.com/duskwire/netcode/internal/idpool"
	"github.com/duskwire/netcode/internal/msgmanager"
	"github.com/duskwire/netcode/internal/schema"
	"github.com/duskwire/netcode/internal/transport"
	"github.com/duskwire/netcode/internal/wire"
)

const testChannel schema.ChannelID = 1

func testSchema() *schema.Schema {
	return schema.NewBuilder().
		AddChannel(testChannel, schema.ChannelSettings{
			Kind:      schema.OrderedReliable,
			Direction: schema.Bidirectional,
			Reliable:  schema.DefaultReliableSettings(),
		}).
		Build()
}

// testClient drives the wire-level handshake and, once established, wraps
// a conn.Connection the way a real client.Client would, so tests can
// exercise the server without depending on the client package.
type testClient struct {
	t   *testing.T
	tr  *transport.MemoryTransport
	hc  *handshake.Client
	c   *conn.Connection
}

func newTestClient(t *testing.T, peers map[transport.MemAddr]*transport.MemoryTransport, addr transport.MemAddr, authPayload []byte) *testClient {
	return &testClient{
		t:  t,
		tr: transport.NewMemoryTransport(addr, peers),
		hc: handshake.NewClient(authPayload),
	}
}

func (tc *testClient) send(srvAddr transport.MemAddr, packetType wire.PacketType, body interface{ Ser(bitio.FullWriter) }) {
	w := bitio.NewWriter()
	wire.OfType(packetType).Ser(w)
	body.Ser(w)
	if err := tc.tr.Send(srvAddr, w.ToBytes()); err != nil {
		tc.t.Fatalf("send: %v", err)
	}
}

func (tc *testClient) recv() (wire.StandardHeader, *bitio.BitReader) {
	tc.t.Helper()
	select {
	case pkt := <-tc.tr.Packets():
		r := bitio.NewReader(pkt.Data)
		h, err := wire.ReadStandardHeader(r)
		if err != nil {
			tc.t.Fatalf("reading header: %v", err)
		}
		return h, r
	case <-time.After(2 * time.Second):
		tc.t.Fatal("timed out waiting for packet")
		return wire.StandardHeader{}, nil
	}
}

// handshakeUpTo drives the challenge/connect exchange and returns once
// the ClientConnectRequest has been sent. The caller decides how to
// consume the eventual response (immediate connect response, or an
// Accept/Reject driven by the server's Auth event).
func (tc *testClient) handshakeUpTo(srvAddr transport.MemAddr) {
	req := tc.hc.Start()
	tc.send(srvAddr, wire.PacketClientChallengeRequest, req)

	_, r := tc.recv()
	resp, err := wire.ReadServerChallengeResponse(r)
	if err != nil {
		tc.t.Fatalf("reading challenge response: %v", err)
	}

	connectReq, err := tc.hc.HandleChallengeResponse(resp)
	if err != nil {
		tc.t.Fatalf("HandleChallengeResponse: %v", err)
	}
	tc.send(srvAddr, wire.PacketClientConnectRequest, connectReq)
}

func (tc *testClient) expectEstablished(now time.Time) {
	header, r := tc.recv()
	if header.PacketType != wire.PacketServerConnectResponse {
		tc.t.Fatalf("expected ServerConnectResponse, got %v", header.PacketType)
	}
	resp, err := wire.ReadServerConnectResponse(r)
	if err != nil {
		tc.t.Fatalf("reading connect response: %v", err)
	}
	if err := tc.hc.HandleConnectResponse(resp); err != nil {
		tc.t.Fatalf("HandleConnectResponse: %v", err)
	}
	tc.c = conn.New(testSchema(), msgmanager.ClientSide, tc.hc.SessionSignature(), now)
}

func (tc *testClient) expectRejected() wire.HandshakeReject {
	header, r := tc.recv()
	if header.PacketType != wire.PacketServerRejectResponse {
		tc.t.Fatalf("expected ServerRejectResponse, got %v", header.PacketType)
	}
	reject, err := wire.ReadHandshakeReject(r)
	if err != nil {
		tc.t.Fatalf("reading reject: %v", err)
	}
	return reject
}

func newMemoryPair(t *testing.T) (map[transport.MemAddr]*transport.MemoryTransport, *Server) {
	peers := make(map[transport.MemAddr]*transport.MemoryTransport)
	srvTransport := transport.NewMemoryTransport("server", peers)

	secret, err := handshake.NewSecret()
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(testSchema(), secret, 8, nil)
	if err := srv.Serve(srvTransport); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	return peers, srv
}

func waitForEvent(t *testing.T, srv *Server, typ events.Type) events.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range srv.Receive() {
			if ev.Type == typ {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for event type %v", typ)
	return events.Event{}
}

func TestHandshakeWithoutAuthEstablishesImmediately(t *testing.T) {
	peers, srv := newMemoryPair(t)
	client := newTestClient(t, peers, "client", nil)

	client.handshakeUpTo("server")
	client.expectEstablished(time.Now())

	ev := waitForEvent(t, srv, events.TypeConnect)
	if ev.Peer == "" {
		t.Errorf("expected non-empty peer on Connect event")
	}
}

func TestMessageRoundTripAfterEstablish(t *testing.T) {
	peers, srv := newMemoryPair(t)
	client := newTestClient(t, peers, "client", nil)

	client.handshakeUpTo("server")
	now := time.Now()
	client.expectEstablished(now)
	connectEv := waitForEvent(t, srv, events.TypeConnect)

	if err := client.c.Send(testChannel, []byte("hello server")); err != nil {
		t.Fatal(err)
	}
	pkt, ok := client.c.BuildOutgoingPacket(now)
	if !ok {
		t.Fatal("expected an outgoing data packet")
	}
	if err := client.tr.Send("server", pkt); err != nil {
		t.Fatal(err)
	}

	msgEv := waitForEvent(t, srv, events.TypeMessage)
	if string(msgEv.Message) != "hello server" {
		t.Errorf("got message %q, want %q", msgEv.Message, "hello server")
	}
	if msgEv.Peer != connectEv.Peer {
		t.Errorf("message peer %q != connect peer %q", msgEv.Peer, connectEv.Peer)
	}
}

func TestAuthPayloadDefersToAcceptDecision(t *testing.T) {
	peers, srv := newMemoryPair(t)
	client := newTestClient(t, peers, "client", []byte("token"))

	client.handshakeUpTo("server")
	authEv := waitForEvent(t, srv, events.TypeAuth)
	if string(authEv.AuthPayload) != "token" {
		t.Errorf("AuthPayload = %q, want %q", authEv.AuthPayload, "token")
	}

	var userKey uint32
	if _, err := fmt.Sscan(authEv.Peer, &userKey); err != nil {
		t.Fatal(err)
	}

	if err := srv.Accept(idpool.Key(userKey)); err != nil {
		t.Fatal(err)
	}
	client.expectEstablished(time.Now())
	waitForEvent(t, srv, events.TypeConnect)
}

func TestAuthPayloadRejected(t *testing.T) {
	peers, srv := newMemoryPair(t)
	client := newTestClient(t, peers, "client", []byte("token"))

	client.handshakeUpTo("server")
	authEv := waitForEvent(t, srv, events.TypeAuth)

	var userKey uint32
	if _, err := fmt.Sscan(authEv.Peer, &userKey); err != nil {
		t.Fatal(err)
	}

	if err := srv.Reject(idpool.Key(userKey), "banned"); err != nil {
		t.Fatal(err)
	}
	reject := client.expectRejected()
	if reject.Reason != "banned" {
		t.Errorf("reject reason = %q, want %q", reject.Reason, "banned")
	}
}

func TestCapacityExhaustionDropsSilently(t *testing.T) {
	peers := make(map[transport.MemAddr]*transport.MemoryTransport)
	srvTransport := transport.NewMemoryTransport("server", peers)
	secret, err := handshake.NewSecret()
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(testSchema(), secret, 0, nil)
	if err := srv.Serve(srvTransport); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	client := newTestClient(t, peers, "client", nil)
	client.handshakeUpTo("server")

	select {
	case <-client.tr.Packets():
		t.Fatal("expected no response when the user-key pool is exhausted")
	case <-time.After(200 * time.Millisecond):
	}
	if got := srv.Receive(); len(got) != 0 {
		t.Errorf("expected no events, got %+v", got)
	}
}
