package ping

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/duskwire/netcode/internal/wire"
)

// DefaultInterval is how often a connection sends a ping when it has
// nothing else to measure RTT with.
const DefaultInterval = time.Second

// maxPending bounds how many outstanding pings a Manager tracks before it
// starts discarding the oldest, so a peer that stops answering pings can't
// grow this map without bound.
const maxPending = 32

// Manager rate-limits outgoing pings and turns matched pong replies into
// RTT samples fed to a RollingWindow.
type Manager struct {
	limiter *rate.Limiter
	window  *RollingWindow
	pending map[wire.TimestampNs]time.Time
	order   []wire.TimestampNs
}

// NewManager returns a ping manager sending at most one ping per interval,
// with a rolling RTT/jitter window of DefaultWindow.
func NewManager(interval time.Duration) *Manager {
	return &Manager{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		window:  NewRollingWindow(DefaultWindow),
		pending: make(map[wire.TimestampNs]time.Time),
	}
}

// MaybeSendPing returns a Ping to send and true if the rate limiter allows
// one at time now; otherwise it returns false and sends nothing.
func (m *Manager) MaybeSendPing(now time.Time) (wire.Ping, bool) {
	if !m.limiter.AllowN(now, 1) {
		return wire.Ping{}, false
	}
	ts := wire.TimestampNs(now.UnixNano())
	m.pending[ts] = now
	m.order = append(m.order, ts)
	if len(m.order) > maxPending {
		stale := m.order[0]
		m.order = m.order[1:]
		delete(m.pending, stale)
	}
	return wire.Ping{TimestampNs: ts}, true
}

// HandlePing answers an incoming Ping with a Pong echoing its timestamp.
func (m *Manager) HandlePing(p wire.Ping) wire.Pong {
	return wire.Pong{TimestampNs: p.TimestampNs}
}

// HandlePong matches an incoming Pong against a pending ping and folds the
// resulting RTT sample into the rolling window. Returns false if the pong
// doesn't match any ping this manager is still tracking (already matched,
// evicted as stale, or forged).
func (m *Manager) HandlePong(now time.Time, p wire.Pong) (time.Duration, bool) {
	sentAt, ok := m.pending[p.TimestampNs]
	if !ok {
		return 0, false
	}
	delete(m.pending, p.TimestampNs)
	rtt := now.Sub(sentAt)
	m.window.Add(now, rtt)
	return rtt, true
}

// RTT returns the current mean RTT over the rolling window.
func (m *Manager) RTT() time.Duration { return m.window.Mean() }

// Jitter returns the current jitter over the rolling window.
func (m *Manager) Jitter() time.Duration { return m.window.Jitter() }
