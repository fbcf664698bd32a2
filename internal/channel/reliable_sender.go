package channel

import (
	"time"

	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/fragment"
	"github.com/duskwire/netcode/internal/schema"
)

type outboxEntry struct {
	payload []byte
	sent    bool
	sentAt  time.Time
}

// ReliableSender is shared by all three reliable channel kinds: it
// fragments every queued message (internal/fragment), tracks each resulting
// fragment as its own indexed outbox entry, and resends any entry that
// hasn't been acked within rtt * RTTResendFactor of its last transmission.
// Grounded on senders/reliable_sender.rs.
type ReliableSender struct {
	settings   schema.ReliableSettings
	fragmenter fragment.Fragmenter
	nextIndex  Index
	outbox     map[Index]*outboxEntry
	order      []Index
}

// NewReliableSender returns a sender resending at the given RTT factor.
func NewReliableSender(settings schema.ReliableSettings) *ReliableSender {
	return &ReliableSender{
		settings: settings,
		outbox:   make(map[Index]*outboxEntry),
	}
}

func (s *ReliableSender) Send(payload []byte) {
	for _, frag := range s.fragmenter.Fragment(payload) {
		w := bitio.NewWriterCapacity(fragment.LimitBits + 256)
		frag.Ser(w)
		idx := s.nextIndex
		s.nextIndex = s.nextIndex.Incr()
		s.outbox[idx] = &outboxEntry{payload: w.ToBytes()}
		s.order = append(s.order, idx)
	}
}

func (s *ReliableSender) resendDue(e *outboxEntry, now time.Time, rtt time.Duration) bool {
	if !e.sent {
		return true
	}
	threshold := time.Duration(float64(rtt) * float64(s.settings.RTTResendFactor))
	return now.Sub(e.sentAt) >= threshold
}

func (s *ReliableSender) HasMessages(now time.Time, rtt time.Duration) bool {
	for _, idx := range s.order {
		if e, ok := s.outbox[idx]; ok && s.resendDue(e, now, rtt) {
			return true
		}
	}
	return false
}

func (s *ReliableSender) WriteMessages(w bitio.FullWriter, now time.Time, rtt time.Duration) []Index {
	var msgs []queuedMessage
	var indices []Index
	for _, idx := range s.order {
		e, ok := s.outbox[idx]
		if !ok || !s.resendDue(e, now, rtt) {
			continue
		}
		e.sent = true
		e.sentAt = now
		msgs = append(msgs, queuedMessage{index: idx, payload: e.payload})
		indices = append(indices, idx)
	}
	writeFramedMessages(w, msgs)
	s.compact()
	return indices
}

func (s *ReliableSender) Ack(idx Index) {
	delete(s.outbox, idx)
}

// compact drops the leading run of already-acked entries from order so it
// doesn't grow without bound as the connection runs.
func (s *ReliableSender) compact() {
	i := 0
	for i < len(s.order) {
		if _, ok := s.outbox[s.order[i]]; ok {
			break
		}
		i++
	}
	if i > 0 {
		s.order = s.order[i:]
	}
}

// Pending reports how many fragments are still awaiting ack, for
// in-flight-window accounting.
func (s *ReliableSender) Pending() int { return len(s.outbox) }
