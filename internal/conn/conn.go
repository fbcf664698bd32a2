// Package conn implements BaseConnection, the per-peer state every
// established connection owns regardless of which side (client or server)
// it runs on: ack tracking, the channel message multiplexer, RTT/jitter
// sampling, and heartbeat/timeout bookkeeping. Grounded on
// shared/src/connection/base_connection.rs.
package conn

import (
	"errors"
	"fmt"
	"time"

	"github.com/duskwire/netcode/internal/ack"
	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/handshake"
	"github.com/duskwire/netcode/internal/msgmanager"
	"github.com/duskwire/netcode/internal/ping"
	"github.com/duskwire/netcode/internal/schema"
	"github.com/duskwire/netcode/internal/seqnum"
	"github.com/duskwire/netcode/internal/wire"
)

// ErrBadDisconnectSignature is returned when an incoming Disconnect
// packet's signature doesn't verify against this connection's session key,
// so it can't be trusted to actually come from the peer.
var ErrBadDisconnectSignature = errors.New("conn: disconnect signature verification failed")

// HeartbeatInterval is how long a connection with nothing else to send
// waits before sending an empty Heartbeat packet, to keep the peer's
// timeout timer from firing and to keep NAT/firewall mappings alive.
const HeartbeatInterval = 2 * time.Second

// Timeout is how long a connection tolerates receiving nothing from its
// peer before considering the connection dead.
const Timeout = 15 * time.Second

// Connection is one peer's live connection state, shared by client and
// server: the ack engine, the message manager, ping/RTT sampling, and the
// session signature used to authenticate this connection's Disconnect.
type Connection struct {
	ack              *ack.Manager
	msgs             *msgmanager.Manager
	ping             *ping.Manager
	sessionSignature []byte

	lastRecvAt   time.Time
	lastSentAt   time.Time
	disconnected bool

	// pendingPong, if non-nil, is a Ping this connection owes its peer a
	// Pong reply to; TakePendingPong drains it.
	pendingPong *wire.Ping
}

// New returns a freshly established connection for the given schema and
// side, authenticated by the handshake's session signature (see
// internal/handshake.DeriveSessionKey/SignDisconnect).
func New(s *schema.Schema, side msgmanager.Side, sessionSignature []byte, now time.Time) *Connection {
	return &Connection{
		ack:              ack.NewManager(),
		msgs:             msgmanager.New(s, side),
		ping:             ping.NewManager(ping.DefaultInterval),
		sessionSignature: sessionSignature,
		lastRecvAt:       now,
	}
}

// Send queues payload for delivery on the given channel.
func (c *Connection) Send(id schema.ChannelID, payload []byte) error {
	return c.msgs.Send(id, payload)
}

// Drain returns every message ready for delivery to the application on
// channel id since the last call.
func (c *Connection) Drain(id schema.ChannelID) [][]byte { return c.msgs.Drain(id) }

// SetTick advances this connection's current logical tick for any
// tick-buffered channel its schema registers. The embedding application
// calls this once per its own logical tick, independent of the network
// orchestrator's send/receive cadence.
func (c *Connection) SetTick(tick seqnum.Num) { c.msgs.SetTick(tick) }

// RTT returns the connection's current mean round-trip time.
func (c *Connection) RTT() time.Duration { return c.ping.RTT() }

// Jitter returns the connection's current RTT jitter.
func (c *Connection) Jitter() time.Duration { return c.ping.Jitter() }

// IsTimedOut reports whether this connection has gone quiet longer than
// Timeout.
func (c *Connection) IsTimedOut(now time.Time) bool {
	return now.Sub(c.lastRecvAt) > Timeout
}

// BuildOutgoingPacket writes whatever channel messages this connection has
// due to send, or (if none) a bare heartbeat once HeartbeatInterval has
// elapsed since the last packet, prefixed with its standard header. It
// returns (nil, false) if neither is due yet.
func (c *Connection) BuildOutgoingPacket(now time.Time) ([]byte, bool) {
	rtt := c.RTT()
	hasMessages := c.msgs.HasMessages(now, rtt)

	if !hasMessages && now.Sub(c.lastSentAt) < HeartbeatInterval {
		return nil, false
	}

	packetType := wire.PacketHeartbeat
	if hasMessages {
		packetType = wire.PacketData
	}
	header := c.ack.NextOutgoingPacketHeader(packetType)

	w := bitio.NewWriter()
	header.Ser(w)
	if hasMessages {
		c.msgs.WriteMessages(w, header.SenderPacketIdx, now, rtt)
	}

	c.lastSentAt = now
	return w.ToBytes(), true
}

// MaybeBuildPingPacket returns a standalone Ping packet if the ping rate
// limiter allows sending one at time now, for measuring RTT independently
// of whatever channel traffic is flowing.
func (c *Connection) MaybeBuildPingPacket(now time.Time) ([]byte, bool) {
	pingMsg, ok := c.ping.MaybeSendPing(now)
	if !ok {
		return nil, false
	}
	header := c.ack.NextOutgoingPacketHeader(wire.PacketPing)
	w := bitio.NewWriter()
	header.Ser(w)
	pingMsg.Ser(w)
	return w.ToBytes(), true
}

// ProcessIncomingPacket decodes a packet's standard header and, depending
// on its type, folds it into ack tracking, channel message delivery, or
// ping RTT sampling. now is used for timeout and RTT bookkeeping.
func (c *Connection) ProcessIncomingPacket(now time.Time, data []byte) error {
	r := bitio.NewReader(data)
	header, err := wire.ReadStandardHeader(r)
	if err != nil {
		return fmt.Errorf("conn: reading header: %w", err)
	}

	c.ack.ProcessIncomingHeader(header, c.msgs)
	c.lastRecvAt = now

	switch header.PacketType {
	case wire.PacketData:
		if err := c.msgs.ReadMessages(r); err != nil {
			return fmt.Errorf("conn: reading messages: %w", err)
		}
	case wire.PacketPing:
		p, err := wire.ReadPing(r)
		if err != nil {
			return fmt.Errorf("conn: reading ping: %w", err)
		}
		c.pendingPong = &p
	case wire.PacketPong:
		p, err := wire.ReadPong(r)
		if err != nil {
			return fmt.Errorf("conn: reading pong: %w", err)
		}
		c.ping.HandlePong(now, p)
	case wire.PacketDisconnect:
		d, err := wire.ReadDisconnect(r)
		if err != nil {
			return fmt.Errorf("conn: reading disconnect: %w", err)
		}
		if !c.VerifyDisconnect(d) {
			return ErrBadDisconnectSignature
		}
		c.disconnected = true
	case wire.PacketHeartbeat:
		// no payload beyond the standard header
	}

	return nil
}

// TakePendingPong returns and clears the Pong this connection owes its
// peer after processing an incoming Ping, or false if none is owed.
func (c *Connection) TakePendingPong() (wire.Pong, bool) {
	if c.pendingPong == nil {
		return wire.Pong{}, false
	}
	p := c.ping.HandlePing(*c.pendingPong)
	c.pendingPong = nil
	return p, true
}

// BuildPongPacket encodes a Pong reply (see TakePendingPong) as a
// standalone packet.
func (c *Connection) BuildPongPacket(pong wire.Pong) []byte {
	header := c.ack.NextOutgoingPacketHeader(wire.PacketPong)
	w := bitio.NewWriter()
	header.Ser(w)
	pong.Ser(w)
	return w.ToBytes()
}

// BuildDisconnect returns a signed Disconnect packet authenticating this
// connection's teardown to its peer.
func (c *Connection) BuildDisconnect(now time.Time) ([]byte, error) {
	ts := wire.TimestampNs(now.UnixNano())
	sig, err := handshake.SignDisconnect(c.sessionSignature, ts)
	if err != nil {
		return nil, err
	}
	c.disconnected = true

	header := c.ack.NextOutgoingPacketHeader(wire.PacketDisconnect)
	w := bitio.NewWriter()
	header.Ser(w)
	wire.Disconnect{TimestampNs: ts, Signature: sig}.Ser(w)
	return w.ToBytes(), nil
}

// VerifyDisconnect checks an incoming Disconnect packet's signature
// against this connection's session key before tearing the connection
// down.
func (c *Connection) VerifyDisconnect(d wire.Disconnect) bool {
	return handshake.VerifyDisconnect(c.sessionSignature, d)
}

// Disconnected reports whether this connection has sent its own
// Disconnect or received a verified one from its peer.
func (c *Connection) Disconnected() bool { return c.disconnected }
