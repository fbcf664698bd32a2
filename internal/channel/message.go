// Package channel implements the six message-delivery policies a schema
// channel can be configured with: unordered/sequenced unreliable,
// unordered/sequenced/ordered reliable, and tick-buffered. Each policy
// pairs a Sender that frames outgoing messages into a packet with a
// Receiver that parses them back out and applies that policy's
// dedup/ordering rules. The first five share writeFramedMessages /
// readFramedMessages' index-tagged framing below; TickBuffered uses its own
// tick-tagged framing (tickbuffered.go) since it has no per-message index.
package channel

import (
	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/seqnum"
)

// Index identifies a message within a single channel's send order. It wraps
// the same way a packet index does, so the half-range comparisons in
// internal/seqnum apply directly.
type Index = seqnum.Num

// writeFramedMessages writes a continuation-bit-terminated list of
// (index, payload) pairs: each entry starts with a `true` bit, its index,
// and its length-prefixed payload; the list ends with a single `false` bit.
func writeFramedMessages(w bitio.FullWriter, msgs []queuedMessage) {
	for _, m := range msgs {
		w.WriteBool(true)
		m.index.Ser(w)
		w.WriteBytes(m.payload)
	}
	w.WriteBool(false)
}

// readFramedMessages parses the inverse of writeFramedMessages, invoking fn
// for every (index, payload) pair it decodes.
func readFramedMessages(r *bitio.BitReader, fn func(Index, []byte) error) error {
	for {
		more, err := r.ReadBool()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		idx, err := seqnum.De(r)
		if err != nil {
			return err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return err
		}
		if err := fn(idx, payload); err != nil {
			return err
		}
	}
}

type queuedMessage struct {
	index   Index
	payload []byte
}
