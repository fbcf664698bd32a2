// Package tickbuffer provides a fixed-capacity, tick-indexed ring used by
// a server to remember recent per-tick state (e.g. the last acked input or
// snapshot a client confirmed) without growing without bound. It reuses
// the same advance/evict ring shape as internal/ack's SequenceBuffer,
// generalized from a presence bitmap to an arbitrary stored value.
package tickbuffer

import "github.com/duskwire/netcode/internal/seqnum"

// Tick is a wrapping tick counter, sharing internal/seqnum's half-range
// comparisons with packet and message indices.
type Tick = seqnum.Num

// Buffer stores the most recent value set for each of the last `size`
// distinct ticks; older entries are evicted automatically as new ticks
// arrive.
type Buffer[T any] struct {
	highest Tick
	hasHigh bool
	entries []slot[T]
}

type slot[T any] struct {
	tick  Tick
	set   bool
	value T
}

// New returns an empty buffer covering `size` distinct ticks.
func New[T any](size uint16) *Buffer[T] {
	return &Buffer[T]{entries: make([]slot[T], size)}
}

// Set records value for tick, evicting whatever ticks have fallen out of
// the window as a result. Returns false without recording it if tick is
// too far behind the current window to fit.
func (b *Buffer[T]) Set(tick Tick, value T) bool {
	if b.hasHigh && tick.Diff(b.highest) < -int16(len(b.entries)) {
		return false
	}
	b.advance(tick)
	b.entries[b.index(tick)] = slot[T]{tick: tick, set: true, value: value}
	return true
}

// Get returns the value stored for tick, if any is still within the
// window.
func (b *Buffer[T]) Get(tick Tick) (T, bool) {
	e := b.entries[b.index(tick)]
	if e.set && e.tick == tick {
		return e.value, true
	}
	var zero T
	return zero, false
}

// Highest returns the largest tick ever Set.
func (b *Buffer[T]) Highest() (Tick, bool) {
	if !b.hasHigh {
		return 0, false
	}
	return b.highest.Sub(1), true
}

func (b *Buffer[T]) advance(tick Tick) {
	if b.hasHigh && !tick.GreaterOrEqual(b.highest) {
		return
	}
	if b.hasHigh {
		b.removeStale(tick)
	}
	b.highest = tick.Incr()
	b.hasHigh = true
}

func (b *Buffer[T]) removeStale(tick Tick) {
	span := int32(tick.Diff(b.highest))
	if span < 0 {
		span += 1 << 16
	}
	if int(span) < len(b.entries) {
		for i := int32(0); i <= span; i++ {
			t := b.highest.Add(int16(i))
			if e := b.entries[b.index(t)]; e.set && e.tick == t {
				b.entries[b.index(t)] = slot[T]{}
			}
		}
		return
	}
	for i := range b.entries {
		b.entries[i] = slot[T]{}
	}
}

func (b *Buffer[T]) index(tick Tick) int {
	return int(uint16(tick)) % len(b.entries)
}
