// Package client implements the client-side Endpoint: it drives one
// outgoing handshake, owns the resulting Connection, and raises
// Connect/Reject/Message/Disconnect/Error events for the embedding
// application to drain. Structured the same way server.Server is —
// a background receive loop plus a tick loop — generalized down to a
// single peer instead of a connection map.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/duskwire/netcode/events"
	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/conn"
	"github.com/duskwire/netcode/internal/handshake"
	"github.com/duskwire/netcode/internal/metrics"
	"github.com/duskwire/netcode/internal/msgmanager"
	"github.com/duskwire/netcode/internal/netlog"
	"github.com/duskwire/netcode/internal/schema"
	"github.com/duskwire/netcode/internal/seqnum"
	"github.com/duskwire/netcode/internal/transport"
	"github.com/duskwire/netcode/internal/wire"
)

// tickInterval matches server.Server's cadence so RTT/heartbeat timing
// behaves the same on both ends of a connection.
const tickInterval = 50 * time.Millisecond

// handshakeResendInterval bounds how long the client waits for a
// challenge/connect response before resending the same handshake
// datagram, since handshake packets aren't covered by
// internal/channel's resend machinery.
const handshakeResendInterval = 500 * time.Millisecond

// State is the client's connection lifecycle stage.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateEstablished
)

// Client is the client-side Endpoint.
type Client struct {
	schema     *schema.Schema
	metricsReg *metrics.Registry
	events     *events.Manager

	mu                  sync.Mutex
	transport           transport.Transport
	serverAddr          net.Addr
	hc                  *handshake.Client
	conn                *conn.Connection
	metrics             *metrics.Connection
	state               State
	resendLimiter       *rate.Limiter
	lastHandshakePacket []byte

	closed chan struct{}
}

// NewClient returns an unconnected client for schema s. Passing a nil reg
// gives it a private Prometheus registry instead of the process-wide
// default one.
func NewClient(s *schema.Schema, reg prometheus.Registerer) *Client {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Client{
		schema:     s,
		metricsReg: metrics.NewRegistry(reg),
		events:     events.NewManager(),
		closed:     make(chan struct{}),
	}
}

// Connect resolves serverAddr and starts a handshake over a freshly
// bound UDP socket, attaching authPayload (nil if the server requires
// none) to the eventual ClientConnectRequest.
func (c *Client) Connect(serverAddr string, authPayload []byte) error {
	t, err := transport.ListenUDP("0.0.0.0:0")
	if err != nil {
		return err
	}
	resolved, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return err
	}
	return c.Dial(t, resolved, authPayload)
}

// Dial starts a handshake to serverAddr over an already-bound transport
// (a UDPTransport from Connect, or a MemoryTransport in tests).
func (c *Client) Dial(t transport.Transport, serverAddr net.Addr, authPayload []byte) error {
	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return errors.New("client: already connecting or connected")
	}
	c.transport = t
	c.serverAddr = serverAddr
	c.hc = handshake.NewClient(authPayload)
	c.state = StateConnecting
	c.resendLimiter = rate.NewLimiter(rate.Every(handshakeResendInterval), 1)
	c.mu.Unlock()

	go c.recvLoop()
	go c.tickLoop()

	w := bitio.NewWriter()
	req := c.hc.Start()
	wire.OfType(wire.PacketClientChallengeRequest).Ser(w)
	req.Ser(w)
	return c.sendHandshakePacket(w.ToBytes())
}

func (c *Client) sendHandshakePacket(data []byte) error {
	c.mu.Lock()
	c.lastHandshakePacket = data
	addr := c.serverAddr
	t := c.transport
	c.mu.Unlock()
	return t.Send(addr, data)
}

// Receive drains every event raised since the last call, implementing
// the Endpoint API's receive() -> [event].
func (c *Client) Receive() []events.Event { return c.events.Drain() }

func (c *Client) recvLoop() {
	for {
		select {
		case <-c.closed:
			return
		case pkt, ok := <-c.transport.Packets():
			if !ok {
				return
			}
			c.handlePacket(pkt)
		}
	}
}

func (c *Client) handlePacket(pkt transport.Packet) {
	now := time.Now()
	r := bitio.NewReader(pkt.Data)
	header, err := wire.ReadStandardHeader(r)
	if err != nil {
		c.raiseError(fmt.Errorf("client: bad header: %w", err))
		return
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == StateEstablished {
		c.handleConnectionPacket(pkt.Data, now)
		return
	}

	switch header.PacketType {
	case wire.PacketServerChallengeResponse:
		c.handleChallengeResponse(r)
	case wire.PacketServerConnectResponse:
		c.handleConnectResponse(r, now)
	case wire.PacketServerRejectResponse:
		c.handleReject(r)
	}
}

func (c *Client) handleChallengeResponse(r *bitio.BitReader) {
	resp, err := wire.ReadServerChallengeResponse(r)
	if err != nil {
		c.raiseError(fmt.Errorf("client: bad challenge response: %w", err))
		return
	}

	c.mu.Lock()
	connectReq, err := c.hc.HandleChallengeResponse(resp)
	c.mu.Unlock()
	if err != nil {
		c.raiseError(fmt.Errorf("client: handling challenge response: %w", err))
		return
	}

	w := bitio.NewWriter()
	wire.OfType(wire.PacketClientConnectRequest).Ser(w)
	connectReq.Ser(w)
	if err := c.sendHandshakePacket(w.ToBytes()); err != nil {
		netlog.Warn("client: send connect request: %v", err)
	}
}

func (c *Client) handleConnectResponse(r *bitio.BitReader, now time.Time) {
	resp, err := wire.ReadServerConnectResponse(r)
	if err != nil {
		c.raiseError(fmt.Errorf("client: bad connect response: %w", err))
		return
	}

	c.mu.Lock()
	if err := c.hc.HandleConnectResponse(resp); err != nil {
		c.mu.Unlock()
		c.raiseError(fmt.Errorf("client: handling connect response: %w", err))
		return
	}
	cn := conn.New(c.schema, msgmanager.ClientSide, c.hc.SessionSignature(), now)
	c.conn = cn
	c.metrics = c.metricsReg.ForConnection(c.serverAddr.String())
	c.state = StateEstablished
	addr := c.serverAddr
	c.mu.Unlock()

	c.events.Raise(events.Event{Type: events.TypeConnect, At: now, Peer: addr.String()})
	netlog.Success("client: connected to %s", addr)
}

func (c *Client) handleReject(r *bitio.BitReader) {
	reject, err := wire.ReadHandshakeReject(r)
	if err != nil {
		c.raiseError(fmt.Errorf("client: bad reject: %w", err))
		return
	}

	c.mu.Lock()
	_ = c.hc.HandleReject(reject)
	c.state = StateDisconnected
	addr := c.serverAddr
	c.mu.Unlock()

	c.events.Raise(events.Event{Type: events.TypeReject, At: time.Now(), Peer: addr.String(), Reason: reject.Reason})
	netlog.Warn("client: rejected by %s: %s", addr, reject.Reason)
}

func (c *Client) handleConnectionPacket(data []byte, now time.Time) {
	c.mu.Lock()
	cn := c.conn
	m := c.metrics
	c.mu.Unlock()
	if cn == nil {
		return
	}

	if err := cn.ProcessIncomingPacket(now, data); err != nil {
		c.raiseError(fmt.Errorf("client: processing packet: %w", err))
		return
	}
	m.BytesReceived.Add(float64(len(data)))
	m.PacketsReceived.Inc()

	if pong, ok := cn.TakePendingPong(); ok {
		c.mu.Lock()
		addr, t := c.serverAddr, c.transport
		c.mu.Unlock()
		if err := t.Send(addr, cn.BuildPongPacket(pong)); err != nil {
			netlog.Warn("client: send pong: %v", err)
		}
	}

	if cn.Disconnected() {
		c.teardown("server disconnected", now)
		return
	}

	for _, id := range c.schema.Channels() {
		for _, msg := range cn.Drain(id) {
			m.MessagesReceived.Inc()
			c.events.Raise(events.Event{Type: events.TypeMessage, At: now, Channel: id, Message: msg})
		}
	}
}

func (c *Client) teardown(reason string, now time.Time) {
	c.mu.Lock()
	addr := c.serverAddr
	c.state = StateDisconnected
	c.mu.Unlock()

	peer := ""
	if addr != nil {
		peer = addr.String()
	}
	c.events.Raise(events.Event{Type: events.TypeDisconnect, At: now, Peer: peer, Reason: reason})
	netlog.Info("client: disconnected from %s (%s)", peer, reason)
}

func (c *Client) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Client) tick() {
	now := time.Now()

	c.mu.Lock()
	state := c.state
	cn := c.conn
	m := c.metrics
	addr := c.serverAddr
	t := c.transport
	pkt := c.lastHandshakePacket
	limiter := c.resendLimiter
	c.mu.Unlock()

	switch state {
	case StateConnecting:
		if pkt != nil && limiter.Allow() {
			if err := t.Send(addr, pkt); err != nil {
				netlog.Warn("client: resend handshake: %v", err)
			}
		}
	case StateEstablished:
		if cn.IsTimedOut(now) {
			c.teardown("timeout", now)
			return
		}
		if out, ok := cn.BuildOutgoingPacket(now); ok {
			if err := t.Send(addr, out); err != nil {
				netlog.Warn("client: send: %v", err)
			} else {
				m.BytesSent.Add(float64(len(out)))
				m.PacketsSent.Inc()
			}
		}
		if ping, ok := cn.MaybeBuildPingPacket(now); ok {
			if err := t.Send(addr, ping); err != nil {
				netlog.Warn("client: send ping: %v", err)
			}
		}
		m.RTTMillis.Set(float64(cn.RTT().Milliseconds()))
		m.JitterMillis.Set(float64(cn.Jitter().Milliseconds()))
	}
}

func (c *Client) raiseError(err error) {
	netlog.Error("%v", err)
	c.events.Raise(events.Event{Type: events.TypeError, At: time.Now(), Err: err})
}

// Send queues payload for delivery to the server on channel.
func (c *Client) Send(channel schema.ChannelID, payload []byte) error {
	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()
	if cn == nil {
		return errors.New("client: not connected")
	}
	return cn.Send(channel, payload)
}

// SetTick advances the client's current logical tick, tagging whatever it
// queues on a tick-buffered channel from this point on. The client only
// ever plays the sender side of that channel kind (spec §3: tick-buffered
// delivery is server-only), so there is nothing for it to deliver locally.
func (c *Client) SetTick(tick uint16) {
	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()
	if cn == nil {
		return
	}
	cn.SetTick(seqnum.Num(tick))
}

// RTT returns the connection's current mean round-trip time, or 0 before
// the handshake completes.
func (c *Client) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0
	}
	return c.conn.RTT()
}

// Jitter returns the connection's current RTT jitter, or 0 before the
// handshake completes.
func (c *Client) Jitter() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0
	}
	return c.conn.Jitter()
}

// State reports the client's current lifecycle stage.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Disconnect sends a signed Disconnect to the server and tears the
// connection down locally.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cn := c.conn
	addr := c.serverAddr
	t := c.transport
	c.mu.Unlock()
	if cn == nil {
		return errors.New("client: not connected")
	}
	pkt, err := cn.BuildDisconnect(time.Now())
	if err != nil {
		return err
	}
	if err := t.Send(addr, pkt); err != nil {
		return err
	}
	c.teardown("disconnected by client", time.Now())
	return nil
}

// Close stops the client's background loops and its transport.
func (c *Client) Close() error {
	close(c.closed)
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t != nil {
		return t.Close()
	}
	return nil
}
