package ping

import (
	"testing"
	"time"

	"github.com/duskwire/netcode/internal/wire"
)

func TestRollingWindowStatsAndEviction(t *testing.T) {
	w := NewRollingWindow(time.Second)
	base := time.Unix(0, 0)

	w.Add(base, 10*time.Millisecond)
	w.Add(base.Add(100*time.Millisecond), 20*time.Millisecond)
	w.Add(base.Add(200*time.Millisecond), 30*time.Millisecond)

	if w.Mean() != 20*time.Millisecond {
		t.Errorf("Mean() = %v, want 20ms", w.Mean())
	}
	if w.Min() != 10*time.Millisecond || w.Max() != 30*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", w.Min(), w.Max())
	}
	if w.Jitter() != 10*time.Millisecond {
		t.Errorf("Jitter() = %v, want 10ms", w.Jitter())
	}

	// Advance well past the window; all three samples should evict.
	w.Add(base.Add(2*time.Second), 5*time.Millisecond)
	if w.Mean() != 5*time.Millisecond {
		t.Errorf("Mean() after eviction = %v, want 5ms", w.Mean())
	}
}

func TestManagerRateLimitsOutgoingPings(t *testing.T) {
	m := NewManager(time.Second)
	now := time.Unix(0, 0)

	if _, ok := m.MaybeSendPing(now); !ok {
		t.Fatal("first ping should be allowed")
	}
	if _, ok := m.MaybeSendPing(now.Add(10 * time.Millisecond)); ok {
		t.Error("second ping within the interval should be rate-limited")
	}
	if _, ok := m.MaybeSendPing(now.Add(2 * time.Second)); !ok {
		t.Error("ping after the interval should be allowed again")
	}
}

func TestManagerMatchesPongToRTT(t *testing.T) {
	m := NewManager(time.Second)
	now := time.Unix(0, 0)

	p, ok := m.MaybeSendPing(now)
	if !ok {
		t.Fatal("expected ping")
	}
	pong := m.HandlePing(p) // simulate the peer echoing it straight back
	rtt, ok := m.HandlePong(now.Add(50*time.Millisecond), pong)
	if !ok {
		t.Fatal("expected matched pong")
	}
	if rtt != 50*time.Millisecond {
		t.Errorf("rtt = %v, want 50ms", rtt)
	}
	if m.RTT() != 50*time.Millisecond {
		t.Errorf("RTT() = %v, want 50ms", m.RTT())
	}
}

func TestUnmatchedPongIgnored(t *testing.T) {
	m := NewManager(time.Second)
	_, ok := m.HandlePong(time.Unix(0, 0), wire.Pong{TimestampNs: 12345})
	if ok {
		t.Error("unmatched pong should not report an RTT")
	}
}
