// Package fragment splits an oversize reliable-channel message into a
// sequence of fixed-capacity fragments at send time, and reassembles them
// back into the original payload on receipt, regardless of the order
// fragments arrive in. Every message sent over a reliable channel passes
// through the fragmenter, even when it fits in a single fragment — this
// keeps the channel sender's framing uniform (SPEC_FULL.md §4.5).
package fragment

import (
	"fmt"

	"github.com/duskwire/netcode/internal/bitio"
)

// LimitBits bounds how much payload a single fragment may carry, leaving
// headroom in a datagram for the standard header, other channels'
// messages, and this fragment's own index/id/total fields.
const LimitBits = 8 * 1024

// ID identifies the fragments that together make up one original message.
// It increments once per fragmented message, independent of the message
// index the channel sender assigns each individual fragment.
type ID uint32

// Fragment is one piece of a larger message: Index counts up from zero
// within a fragment ID, and Total (the fragment count) is only known once
// the final fragment has been produced, so it's patched into every
// fragment's header after the fact.
type Fragment struct {
	ID      ID
	Index   uint32
	Total   uint32
	Payload []byte
}

func (f Fragment) Ser(w bitio.FullWriter) {
	w.WriteU32(uint32(f.ID))
	w.WriteU32(f.Index)
	w.WriteU32(f.Total)
	w.WriteBytes(f.Payload)
}

func ReadFragment(r *bitio.BitReader) (Fragment, error) {
	var f Fragment
	var err error
	var id, idx, total uint32
	if id, err = r.ReadU32(); err != nil {
		return f, err
	}
	if idx, err = r.ReadU32(); err != nil {
		return f, err
	}
	if total, err = r.ReadU32(); err != nil {
		return f, err
	}
	payload, err := r.ReadBytes()
	if err != nil {
		return f, err
	}
	f.ID, f.Index, f.Total, f.Payload = ID(id), idx, total, payload
	return f, nil
}

// Fragmenter assigns a fresh ID to every message it fragments.
type Fragmenter struct {
	nextID ID
}

// Fragment splits payload into one or more fragments, each carrying at
// most LimitBits of payload. A payload that fits within a single fragment
// still produces exactly one fragment, with Total == 1.
func (fr *Fragmenter) Fragment(payload []byte) []Fragment {
	id := fr.nextID
	fr.nextID++

	const limitBytes = LimitBits / 8
	var frags []Fragment
	for offset := 0; offset < len(payload) || len(frags) == 0; offset += limitBytes {
		end := offset + limitBytes
		if end > len(payload) {
			end = len(payload)
		}
		frags = append(frags, Fragment{
			ID:      id,
			Index:   uint32(len(frags)),
			Payload: payload[offset:end],
		})
		if end == len(payload) {
			break
		}
	}

	total := uint32(len(frags))
	for i := range frags {
		frags[i].Total = total
	}
	return frags
}

// Reassembler accumulates fragments by ID until every piece of a message has
// arrived, regardless of arrival order.
type Reassembler struct {
	pending map[ID]*partial
}

type partial struct {
	total    uint32
	received uint32
	slots    [][]byte
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[ID]*partial)}
}

// Receive folds one fragment into the reassembler. It returns the
// reconstructed payload and true once every fragment of that ID has
// arrived; otherwise it returns (nil, false) and keeps buffering.
func (ra *Reassembler) Receive(f Fragment) ([]byte, bool, error) {
	if f.Total == 0 {
		return nil, false, fmt.Errorf("fragment: zero total for id %d", f.ID)
	}
	if f.Index >= f.Total {
		return nil, false, fmt.Errorf("fragment: index %d out of range for total %d", f.Index, f.Total)
	}

	p, ok := ra.pending[f.ID]
	if !ok {
		p = &partial{total: f.Total, slots: make([][]byte, f.Total)}
		ra.pending[f.ID] = p
	}

	if p.slots[f.Index] == nil {
		p.slots[f.Index] = f.Payload
		p.received++
	}

	if p.received < p.total {
		return nil, false, nil
	}

	delete(ra.pending, f.ID)

	size := 0
	for _, s := range p.slots {
		size += len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range p.slots {
		out = append(out, s...)
	}
	return out, true, nil
}

// Pending reports how many fragment IDs are currently incomplete.
func (ra *Reassembler) Pending() int { return len(ra.pending) }
