package channel

import (
	"sort"
	"time"

	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/tickbuffer"
)

// tickBufferedWindow bounds how many distinct recent ticks a
// TickBufferedReceiver still recognizes; anything older is indistinguishable
// from noise once the host has moved its current tick past it. Sized the
// same order of magnitude as dedupeWindow since both exist to bound memory
// against a peer that never stops sending.
const tickBufferedWindow = 256

type tickedMessage struct {
	tick    Index
	payload []byte
}

// TickBufferedSender queues payloads tagged with the sender's current tick
// (set via SetTick) and writes them grouped by tick: a uvarint group count,
// then per group either a full u16 tick (the first ever written, or any
// tick newer than the last one written) or a uvarint diff from the last
// tick written, followed by a uvarint message count and that many
// length-prefixed payloads. There is no resend and no per-message ack —
// a dropped tick-buffered message is simply gone.
type TickBufferedSender struct {
	currentTick Index
	pending     []tickedMessage
	lastWritten Index
	hasWritten  bool
}

// NewTickBufferedSender returns a sender with no tick set yet; SetTick must
// be called at least once before Send for messages to carry a meaningful
// tick.
func NewTickBufferedSender() *TickBufferedSender {
	return &TickBufferedSender{}
}

// SetTick records the logical tick that subsequent Send calls attach to
// their queued payload.
func (s *TickBufferedSender) SetTick(tick Index) {
	s.currentTick = tick
}

func (s *TickBufferedSender) Send(payload []byte) {
	s.pending = append(s.pending, tickedMessage{tick: s.currentTick, payload: payload})
}

func (s *TickBufferedSender) HasMessages(time.Time, time.Duration) bool {
	return len(s.pending) > 0
}

func (s *TickBufferedSender) WriteMessages(w bitio.FullWriter, _ time.Time, _ time.Duration) []Index {
	msgs := s.pending
	s.pending = nil

	order, groups := groupMessagesByTick(msgs)
	// Newest tick first so that, barring a tick reset, every later group's
	// diff from the previously written tick is non-negative.
	sort.Slice(order, func(i, j int) bool { return order[i].GreaterThan(order[j]) })

	w.WriteUvarint(uint64(len(order)))
	for _, t := range order {
		if !s.hasWritten || t.GreaterThan(s.lastWritten) {
			w.WriteBool(true)
			w.WriteU16(uint16(t))
		} else {
			w.WriteBool(false)
			w.WriteUvarint(uint64(s.lastWritten.Diff(t)))
		}
		s.lastWritten = t
		s.hasWritten = true

		payloads := groups[t]
		w.WriteUvarint(uint64(len(payloads)))
		for _, p := range payloads {
			w.WriteBytes(p)
		}
	}
	return nil
}

// Ack is a no-op: tick-buffered messages are never resent, so there is
// nothing to release.
func (s *TickBufferedSender) Ack(Index) {}

func groupMessagesByTick(msgs []tickedMessage) ([]Index, map[Index][][]byte) {
	var order []Index
	groups := make(map[Index][][]byte)
	for _, m := range msgs {
		if _, ok := groups[m.tick]; !ok {
			order = append(order, m.tick)
		}
		groups[m.tick] = append(groups[m.tick], m.payload)
	}
	return order, groups
}

// TickBufferedReceiver buffers incoming messages by the tick they target,
// delivering a tick's messages only once the host's own current tick (set
// via SetTick) reaches it, and relying on internal/tickbuffer.Buffer
// to prune ticks that fall strictly behind that window.
type TickBufferedReceiver struct {
	buf         *tickbuffer.Buffer[[][]byte]
	currentTick Index
	hasCurrent  bool
	lastRead    Index
	ready       [][]byte
}

// NewTickBufferedReceiver returns a receiver with an empty tick window.
func NewTickBufferedReceiver() *TickBufferedReceiver {
	return &TickBufferedReceiver{buf: tickbuffer.New[[][]byte](tickBufferedWindow)}
}

// SetTick advances the host's own notion of "now" for this channel.
// Any buffered messages targeting exactly this tick become ready for
// delivery; calling it again with the same tick is a no-op, so it is safe
// to call once per application tick even if no new tick-buffered traffic
// arrived.
func (r *TickBufferedReceiver) SetTick(tick Index) {
	if r.hasCurrent && tick == r.currentTick {
		return
	}
	r.currentTick = tick
	r.hasCurrent = true

	payloads, _ := r.buf.Get(tick)
	// Re-set even when nothing arrived for this tick, so the buffer's
	// eviction window tracks the host's own tick, not just whichever tick a
	// peer last wrote to the wire.
	r.buf.Set(tick, payloads)
	if len(payloads) > 0 {
		r.ready = append(r.ready, payloads...)
	}
}

func (r *TickBufferedReceiver) ReadMessages(br *bitio.BitReader) error {
	groupCount, err := br.ReadUvarint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < groupCount; i++ {
		full, err := br.ReadBool()
		if err != nil {
			return err
		}
		var tick Index
		if full {
			v, err := br.ReadU16()
			if err != nil {
				return err
			}
			tick = Index(v)
		} else {
			diff, err := br.ReadUvarint()
			if err != nil {
				return err
			}
			tick = r.lastRead.Sub(uint16(diff))
		}
		r.lastRead = tick

		count, err := br.ReadUvarint()
		if err != nil {
			return err
		}
		payloads := make([][]byte, 0, minUvarintHint(count))
		for j := uint64(0); j < count; j++ {
			p, err := br.ReadBytes()
			if err != nil {
				return err
			}
			payloads = append(payloads, p)
		}

		existing, _ := r.buf.Get(tick)
		if !r.buf.Set(tick, append(existing, payloads...)) {
			continue // tick fell out of the window before the host ever saw it
		}
		if r.hasCurrent && tick == r.currentTick {
			r.ready = append(r.ready, payloads...)
		}
	}
	return nil
}

func (r *TickBufferedReceiver) Drain() [][]byte {
	out := r.ready
	r.ready = nil
	return out
}

// minUvarintHint caps a wire-supplied count used only as a slice capacity
// hint, so a corrupt or hostile length field can't force a large upfront
// allocation; reads past the actual buffer contents still fail normally.
func minUvarintHint(n uint64) uint64 {
	const maxHint = 4096
	if n > maxHint {
		return maxHint
	}
	return n
}
