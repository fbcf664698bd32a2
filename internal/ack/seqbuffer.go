package ack

import "github.com/duskwire/netcode/internal/seqnum"

// SequenceBuffer is a fixed-capacity ring indexed by sequence number modulo
// its size, used to remember which of the last N packet indices have been
// seen. Entries older than the capacity are evicted automatically as the
// buffer advances.
type SequenceBuffer struct {
	highest seqnum.Num
	entries []entry
}

type entry struct {
	num seqnum.Num
	set bool
}

// NewSequenceBuffer returns a buffer covering `size` distinct sequence
// numbers.
func NewSequenceBuffer(size uint16) *SequenceBuffer {
	return &SequenceBuffer{entries: make([]entry, size)}
}

// Highest returns one past the largest sequence number ever Set (0 before
// the first Set).
func (b *SequenceBuffer) Highest() seqnum.Num { return b.highest }

// Set records num as seen. Returns false without recording it if num is too
// far behind the buffer's current window to fit.
func (b *SequenceBuffer) Set(num seqnum.Num) bool {
	if num.Diff(b.highest) < -int16(len(b.entries)) {
		return false
	}
	b.advance(num)
	b.entries[b.index(num)] = entry{num: num, set: true}
	return true
}

// IsSet reports whether num was previously recorded and hasn't since been
// evicted by the window advancing past it.
func (b *SequenceBuffer) IsSet(num seqnum.Num) bool {
	e := b.entries[b.index(num)]
	return e.set && e.num == num
}

func (b *SequenceBuffer) unset(num seqnum.Num) {
	if b.IsSet(num) {
		b.entries[b.index(num)] = entry{}
	}
}

func (b *SequenceBuffer) advance(num seqnum.Num) {
	if !num.GreaterOrEqual(b.highest) {
		return
	}
	b.removeStale(num)
	b.highest = num.Incr()
}

func (b *SequenceBuffer) removeStale(num seqnum.Num) {
	span := int32(num.Diff(b.highest))
	if span < 0 {
		span += 1 << 16
	}
	if int(span) < len(b.entries) {
		for i := int32(0); i <= span; i++ {
			b.unset(b.highest.Add(int16(i)))
		}
		return
	}
	for i := range b.entries {
		b.entries[i] = entry{}
	}
}

func (b *SequenceBuffer) index(num seqnum.Num) int {
	return int(uint16(num)) % len(b.entries)
}
