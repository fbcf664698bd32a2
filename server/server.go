// Package server implements the server-side Endpoint: it answers
// handshakes, owns one Connection per established peer keyed by a
// recyclable user-key, and raises Connect/Auth/Message/Disconnect/Error
// events for the embedding application to drain. Grounded on
// source/server/server.go's listen/updateLoop/sessionCleanupLoop split,
// generalized from a SA-MP player table to an arbitrary channel schema.
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/duskwire/netcode/events"
	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/conn"
	"github.com/duskwire/netcode/internal/handshake"
	"github.com/duskwire/netcode/internal/idpool"
	"github.com/duskwire/netcode/internal/metrics"
	"github.com/duskwire/netcode/internal/msgmanager"
	"github.com/duskwire/netcode/internal/netlog"
	"github.com/duskwire/netcode/internal/schema"
	"github.com/duskwire/netcode/internal/seqnum"
	"github.com/duskwire/netcode/internal/transport"
	"github.com/duskwire/netcode/internal/wire"
)

// tickInterval mirrors source/server/server.go's updateLoop cadence.
const tickInterval = 50 * time.Millisecond

// peer is one established connection's server-side bookkeeping.
type peer struct {
	key     idpool.Key
	addr    net.Addr
	conn    *conn.Connection
	metrics *metrics.Connection
}

// pendingAuth is a connect request awaiting an application Accept/Reject
// decision (TypeAuth event), keeping just enough state to finish the
// handshake without re-deriving it.
type pendingAuth struct {
	addr       net.Addr
	sessionSig []byte
	resp       wire.ServerConnectResponse
}

// Server is the server-side Endpoint.
type Server struct {
	schema   *schema.Schema
	hs       *handshake.Server
	ids      *idpool.Pool
	maxUsers int

	metrics *metrics.Registry
	events  *events.Manager

	mu          sync.Mutex
	transport   transport.Transport
	peers       map[idpool.Key]*peer
	addrToKey   map[string]idpool.Key
	pendingAuth map[idpool.Key]pendingAuth

	closed chan struct{}
}

// NewServer returns an unstarted server for s, signing handshakes with
// secret and accepting at most maxUsers simultaneous connections. Passing
// a nil reg gives the server its own private Prometheus registry instead
// of registering into the process-wide default one.
func NewServer(s *schema.Schema, secret handshake.Secret, maxUsers int, reg prometheus.Registerer) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		schema:      s,
		hs:          handshake.NewServer(secret, nil),
		ids:         idpool.New(),
		maxUsers:    maxUsers,
		metrics:     metrics.NewRegistry(reg),
		events:      events.NewManager(),
		peers:       make(map[idpool.Key]*peer),
		addrToKey:   make(map[string]idpool.Key),
		pendingAuth: make(map[idpool.Key]pendingAuth),
		closed:      make(chan struct{}),
	}
}

// Listen binds a UDP socket at addr and starts serving.
func (s *Server) Listen(addr string) error {
	t, err := transport.ListenUDP(addr)
	if err != nil {
		return err
	}
	return s.Serve(t)
}

// Serve starts the receive and tick loops over an already-bound
// transport — a UDPTransport from Listen, or a MemoryTransport in tests.
func (s *Server) Serve(t transport.Transport) error {
	s.mu.Lock()
	if s.transport != nil {
		s.mu.Unlock()
		return errors.New("server: already serving")
	}
	s.transport = t
	s.mu.Unlock()

	netlog.InfoCyan("server listening on %s", t.LocalAddr())
	go s.recvLoop()
	go s.tickLoop()
	return nil
}

// Close stops the server and its transport.
func (s *Server) Close() error {
	close(s.closed)
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t != nil {
		return t.Close()
	}
	return nil
}

// Receive drains every event raised since the last call, implementing
// the Endpoint API's receive() -> [event].
func (s *Server) Receive() []events.Event { return s.events.Drain() }

func (s *Server) recvLoop() {
	for {
		select {
		case <-s.closed:
			return
		case pkt, ok := <-s.transport.Packets():
			if !ok {
				return
			}
			s.handlePacket(pkt)
		}
	}
}

func (s *Server) handlePacket(pkt transport.Packet) {
	now := time.Now()
	r := bitio.NewReader(pkt.Data)
	header, err := wire.ReadStandardHeader(r)
	if err != nil {
		s.raiseError(fmt.Errorf("server: bad header from %s: %w", pkt.Addr, err))
		return
	}

	switch header.PacketType {
	case wire.PacketClientChallengeRequest:
		s.handleChallengeRequest(pkt.Addr, r)
	case wire.PacketClientConnectRequest:
		s.handleConnectRequest(pkt.Addr, r, now)
	default:
		s.handleConnectionPacket(pkt.Addr, pkt.Data, now)
	}
}

func (s *Server) handleChallengeRequest(addr net.Addr, r *bitio.BitReader) {
	req, err := wire.ReadClientChallengeRequest(r)
	if err != nil {
		s.raiseError(fmt.Errorf("server: bad challenge request from %s: %w", addr, err))
		return
	}
	resp := s.hs.HandleChallengeRequest(req)

	w := bitio.NewWriter()
	wire.OfType(wire.PacketServerChallengeResponse).Ser(w)
	resp.Ser(w)
	if err := s.transport.Send(addr, w.ToBytes()); err != nil {
		netlog.Warn("server: send challenge response to %s: %v", addr, err)
	}
}

func (s *Server) handleConnectRequest(addr net.Addr, r *bitio.BitReader, now time.Time) {
	req, err := wire.ReadClientConnectRequest(r)
	if err != nil {
		s.raiseError(fmt.Errorf("server: bad connect request from %s: %w", addr, err))
		return
	}

	s.mu.Lock()
	if key, ok := s.addrToKey[addr.String()]; ok {
		p, established := s.peers[key]
		s.mu.Unlock()
		if established {
			// Retransmitted connect request after we already answered;
			// resend rather than redo the handshake.
			s.sendConnectResponse(p.addr, wire.ServerConnectResponse{ClientTimestampNs: req.ClientTimestampNs})
		}
		return
	}
	s.mu.Unlock()

	resp, reason, err := s.hs.HandleConnectRequest(req)
	if err != nil {
		s.raiseError(fmt.Errorf("server: connect request from %s: %w", addr, err))
		return
	}
	if reason != "" {
		s.sendReject(addr, reason)
		return
	}

	if s.ids.InUse() >= s.maxUsers {
		netlog.Warn("server: user-key pool exhausted (%d/%d), dropping connect request from %s", s.ids.InUse(), s.maxUsers, addr)
		return
	}

	key := s.ids.Acquire()
	sessionSig := s.hs.SessionSignature(req)

	if len(req.AuthPayload) == 0 {
		s.establish(key, addr, sessionSig, resp, now)
		return
	}

	s.mu.Lock()
	s.addrToKey[addr.String()] = key
	s.pendingAuth[key] = pendingAuth{addr: addr, sessionSig: sessionSig, resp: resp}
	s.mu.Unlock()

	s.events.Raise(events.Event{
		Type:         events.TypeAuth,
		At:           now,
		Peer:         fmt.Sprint(key),
		AcceptTicket: uint64(key),
		AuthPayload:  req.AuthPayload,
	})
}

func (s *Server) establish(key idpool.Key, addr net.Addr, sessionSig []byte, resp wire.ServerConnectResponse, now time.Time) {
	c := conn.New(s.schema, msgmanager.ServerSide, sessionSig, now)
	m := s.metrics.ForConnection(fmt.Sprint(key))

	s.mu.Lock()
	s.peers[key] = &peer{key: key, addr: addr, conn: c, metrics: m}
	s.addrToKey[addr.String()] = key
	delete(s.pendingAuth, key)
	s.mu.Unlock()

	s.sendConnectResponse(addr, resp)
	s.events.Raise(events.Event{Type: events.TypeConnect, At: now, Peer: fmt.Sprint(key)})
	netlog.Success("server: %s connected as user %d", addr, key)
}

func (s *Server) sendConnectResponse(addr net.Addr, resp wire.ServerConnectResponse) {
	w := bitio.NewWriter()
	wire.OfType(wire.PacketServerConnectResponse).Ser(w)
	resp.Ser(w)
	if err := s.transport.Send(addr, w.ToBytes()); err != nil {
		netlog.Warn("server: send connect response to %s: %v", addr, err)
	}
}

func (s *Server) sendReject(addr net.Addr, reason string) {
	w := bitio.NewWriter()
	wire.OfType(wire.PacketServerRejectResponse).Ser(w)
	wire.HandshakeReject{Reason: reason}.Ser(w)
	if err := s.transport.Send(addr, w.ToBytes()); err != nil {
		netlog.Warn("server: send reject to %s: %v", addr, err)
	}
}

// Accept completes a deferred handshake raised as a TypeAuth event,
// establishing the connection for the given user-key.
func (s *Server) Accept(key idpool.Key) error {
	s.mu.Lock()
	pa, ok := s.pendingAuth[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("server: no pending auth for user %d", key)
	}
	s.establish(key, pa.addr, pa.sessionSig, pa.resp, time.Now())
	return nil
}

// Reject declines a deferred handshake, releasing its user-key and
// sending the client a HandshakeReject carrying reason.
func (s *Server) Reject(key idpool.Key, reason string) error {
	s.mu.Lock()
	pa, ok := s.pendingAuth[key]
	if ok {
		delete(s.pendingAuth, key)
		delete(s.addrToKey, pa.addr.String())
		s.ids.Release(key)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("server: no pending auth for user %d", key)
	}
	s.sendReject(pa.addr, reason)
	return nil
}

func (s *Server) handleConnectionPacket(addr net.Addr, data []byte, now time.Time) {
	s.mu.Lock()
	key, ok := s.addrToKey[addr.String()]
	var p *peer
	if ok {
		p, ok = s.peers[key]
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := p.conn.ProcessIncomingPacket(now, data); err != nil {
		s.raiseError(fmt.Errorf("server: processing packet from user %d: %w", key, err))
		return
	}
	p.metrics.BytesReceived.Add(float64(len(data)))
	p.metrics.PacketsReceived.Inc()

	if pong, ok := p.conn.TakePendingPong(); ok {
		if err := s.transport.Send(addr, p.conn.BuildPongPacket(pong)); err != nil {
			netlog.Warn("server: send pong to user %d: %v", key, err)
		}
	}

	if p.conn.Disconnected() {
		s.teardown(key, "peer disconnected", now)
		return
	}

	for _, id := range s.schema.Channels() {
		for _, msg := range p.conn.Drain(id) {
			p.metrics.MessagesReceived.Inc()
			s.events.Raise(events.Event{Type: events.TypeMessage, At: now, Peer: fmt.Sprint(key), Channel: id, Message: msg})
		}
	}
}

func (s *Server) teardown(key idpool.Key, reason string, now time.Time) {
	s.mu.Lock()
	p, ok := s.peers[key]
	if ok {
		delete(s.peers, key)
		delete(s.addrToKey, p.addr.String())
		s.ids.Release(key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.events.Raise(events.Event{Type: events.TypeDisconnect, At: now, Peer: fmt.Sprint(key), Reason: reason})
	netlog.Info("server: user %d disconnected (%s)", key, reason)
}

func (s *Server) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) tick() {
	now := time.Now()

	s.mu.Lock()
	snapshot := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		snapshot = append(snapshot, p)
	}
	s.mu.Unlock()

	for _, p := range snapshot {
		if p.conn.IsTimedOut(now) {
			s.teardown(p.key, "timeout", now)
			continue
		}

		if pkt, ok := p.conn.BuildOutgoingPacket(now); ok {
			if err := s.transport.Send(p.addr, pkt); err != nil {
				netlog.Warn("server: send to user %d: %v", p.key, err)
			} else {
				p.metrics.BytesSent.Add(float64(len(pkt)))
				p.metrics.PacketsSent.Inc()
			}
		}
		if pkt, ok := p.conn.MaybeBuildPingPacket(now); ok {
			if err := s.transport.Send(p.addr, pkt); err != nil {
				netlog.Warn("server: send ping to user %d: %v", p.key, err)
			}
		}

		p.metrics.RTTMillis.Set(float64(p.conn.RTT().Milliseconds()))
		p.metrics.JitterMillis.Set(float64(p.conn.Jitter().Milliseconds()))
	}
}

func (s *Server) raiseError(err error) {
	netlog.Error("%v", err)
	s.events.Raise(events.Event{Type: events.TypeError, At: time.Now(), Err: err})
}

// Send queues payload for delivery to user key on channel.
func (s *Server) Send(key idpool.Key, channel schema.ChannelID, payload []byte) error {
	s.mu.Lock()
	p, ok := s.peers[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("server: no such user %d", key)
	}
	return p.conn.Send(channel, payload)
}

// Broadcast queues payload for delivery to every established peer on
// channel.
func (s *Server) Broadcast(channel schema.ChannelID, payload []byte) {
	s.mu.Lock()
	snapshot := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		snapshot = append(snapshot, p)
	}
	s.mu.Unlock()
	for _, p := range snapshot {
		if err := p.conn.Send(channel, payload); err != nil {
			netlog.Warn("server: broadcast to user %d: %v", p.key, err)
		}
	}
}

// SetTick advances the host's current logical tick, the timestamp the
// tick-buffered channel kind delivers and prunes against (spec §3's
// "delivers all messages for the host's current tick and prunes strictly
// older ticks"). It applies uniformly to every established connection,
// since the current tick belongs to the server as a whole, not to any one
// peer.
func (s *Server) SetTick(tick uint16) {
	s.mu.Lock()
	snapshot := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		snapshot = append(snapshot, p)
	}
	s.mu.Unlock()
	for _, p := range snapshot {
		p.conn.SetTick(seqnum.Num(tick))
	}
}

// RTT returns user key's current mean round-trip time.
func (s *Server) RTT(key idpool.Key) (time.Duration, error) {
	s.mu.Lock()
	p, ok := s.peers[key]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("server: no such user %d", key)
	}
	return p.conn.RTT(), nil
}

// Jitter returns user key's current RTT jitter.
func (s *Server) Jitter(key idpool.Key) (time.Duration, error) {
	s.mu.Lock()
	p, ok := s.peers[key]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("server: no such user %d", key)
	}
	return p.conn.Jitter(), nil
}

// Disconnect tears an established connection down from the server side,
// sending a signed Disconnect the peer can verify.
func (s *Server) Disconnect(key idpool.Key) error {
	s.mu.Lock()
	p, ok := s.peers[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("server: no such user %d", key)
	}
	pkt, err := p.conn.BuildDisconnect(time.Now())
	if err != nil {
		return err
	}
	if err := s.transport.Send(p.addr, pkt); err != nil {
		return err
	}
	s.teardown(key, "disconnected by server", time.Now())
	return nil
}
