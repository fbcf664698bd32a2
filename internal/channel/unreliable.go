package channel

import (
	"time"

	"github.com/duskwire/netcode/internal/bitio"
)

// UnorderedUnreliableSender fires every queued message exactly once, in the
// next packet built after it's queued, with no resend and no ordering
// guarantee. Grounded on
// messages/channels/senders/unordered_unreliable_sender.rs.
type UnorderedUnreliableSender struct {
	nextIndex Index
	pending   []queuedMessage
}

func (s *UnorderedUnreliableSender) Send(payload []byte) {
	s.pending = append(s.pending, queuedMessage{index: s.nextIndex, payload: payload})
	s.nextIndex = s.nextIndex.Incr()
}

func (s *UnorderedUnreliableSender) HasMessages(time.Time, time.Duration) bool {
	return len(s.pending) > 0
}

func (s *UnorderedUnreliableSender) WriteMessages(w bitio.FullWriter, _ time.Time, _ time.Duration) []Index {
	msgs := s.pending
	s.pending = nil
	writeFramedMessages(w, msgs)
	indices := make([]Index, len(msgs))
	for i, m := range msgs {
		indices[i] = m.index
	}
	return indices
}

func (s *UnorderedUnreliableSender) Ack(Index) {}

// UnorderedUnreliableReceiver delivers every message it parses immediately,
// in arrival order, with no dedup and no reordering.
type UnorderedUnreliableReceiver struct {
	ready [][]byte
}

func (r *UnorderedUnreliableReceiver) ReadMessages(br *bitio.BitReader) error {
	return readFramedMessages(br, func(_ Index, payload []byte) error {
		r.ready = append(r.ready, payload)
		return nil
	})
}

func (r *UnorderedUnreliableReceiver) Drain() [][]byte {
	out := r.ready
	r.ready = nil
	return out
}

// SequencedUnreliableSender behaves like UnorderedUnreliableSender but its
// indices let the receiver discard stale, out-of-order arrivals. Grounded on
// senders/sequenced_unreliable_sender.rs.
type SequencedUnreliableSender struct {
	UnorderedUnreliableSender
}

// SequencedUnreliableReceiver drops any message whose index is not newer
// than the newest one already delivered, so a stale retransmit or reordered
// datagram never supersedes a fresher one. Grounded on
// receivers/sequenced_unreliable_receiver.rs.
type SequencedUnreliableReceiver struct {
	hasNewest bool
	newest    Index
	ready     [][]byte
}

func (r *SequencedUnreliableReceiver) ReadMessages(br *bitio.BitReader) error {
	return readFramedMessages(br, func(idx Index, payload []byte) error {
		if r.hasNewest && !idx.GreaterThan(r.newest) {
			return nil
		}
		r.hasNewest = true
		r.newest = idx
		r.ready = append(r.ready, payload)
		return nil
	})
}

func (r *SequencedUnreliableReceiver) Drain() [][]byte {
	out := r.ready
	r.ready = nil
	return out
}
