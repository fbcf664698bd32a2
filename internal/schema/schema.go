// Package schema holds the channel registry an Endpoint is configured with
// before it starts: which channels exist, their delivery mode and
// direction. A Schema is built once and locked, then shared read-only by
// every connection the endpoint owns (see SPEC_FULL.md §9's design note on
// schema as locked, read-only configuration).
package schema

import (
	"fmt"
	"sort"
)

// ChannelID identifies one registered channel. Applications define their
// own small integer IDs (an enum-like constant block is the usual idiom).
type ChannelID uint16

// ChannelDirection constrains which peer may originate traffic on a
// channel; the other direction is rejected at the message-manager layer.
type ChannelDirection uint8

const (
	ClientToServer ChannelDirection = iota
	ServerToClient
	Bidirectional
)

func (d ChannelDirection) CanSendToServer() bool {
	return d == ClientToServer || d == Bidirectional
}

func (d ChannelDirection) CanSendToClient() bool {
	return d == ServerToClient || d == Bidirectional
}

// ChannelKind selects one of the six delivery modes a channel can run in.
type ChannelKind uint8

const (
	// UnorderedUnreliable: messages can be dropped, duplicated, or arrive
	// out of order. No resend, no dedupe, no ordering.
	UnorderedUnreliable ChannelKind = iota
	// SequencedUnreliable: like SequencedReliable but messages may not
	// arrive at all; stale arrivals are dropped. No resend, dedupe by
	// recency, ordered.
	SequencedUnreliable
	// UnorderedReliable: messages arrive without duplicates, in any order.
	// Resend, dedupe, no ordering.
	UnorderedReliable
	// SequencedReliable: messages arrive without duplicates and in order,
	// but only the most recent of a burst is delivered — an older message
	// that arrives after a newer one has already been delivered is
	// dropped rather than queued. Resend, dedupe, ordered-by-recency.
	SequencedReliable
	// OrderedReliable: messages arrive in order and without duplicates;
	// nothing is ever dropped, out-of-order arrivals are buffered until
	// their predecessors show up. Resend, dedupe, strictly ordered.
	OrderedReliable
	// TickBuffered: server-side-only receive buffer keyed by the logical
	// tick a message targets, not by send order. Delivery of a tick's
	// messages waits until the host advances its own current tick to that
	// value; ticks strictly older than the host's current one are pruned
	// rather than delivered. No resend, no per-message ack.
	TickBuffered
)

func (k ChannelKind) Reliable() bool {
	return k == UnorderedReliable || k == SequencedReliable || k == OrderedReliable
}

func (k ChannelKind) String() string {
	switch k {
	case UnorderedUnreliable:
		return "UnorderedUnreliable"
	case SequencedUnreliable:
		return "SequencedUnreliable"
	case UnorderedReliable:
		return "UnorderedReliable"
	case SequencedReliable:
		return "SequencedReliable"
	case OrderedReliable:
		return "OrderedReliable"
	case TickBuffered:
		return "TickBuffered"
	default:
		return fmt.Sprintf("ChannelKind(%d)", uint8(k))
	}
}

// ReliableSettings tunes the resend behavior of a reliable channel.
type ReliableSettings struct {
	// RTTResendFactor: a message is considered lost and resent once this
	// factor times the connection's measured RTT has elapsed without an
	// ack.
	RTTResendFactor float32
}

// DefaultReliableSettings matches the original implementation's default.
func DefaultReliableSettings() ReliableSettings {
	return ReliableSettings{RTTResendFactor: 1.5}
}

// ChannelSettings is the immutable configuration of one registered channel.
type ChannelSettings struct {
	Kind      ChannelKind
	Direction ChannelDirection
	Reliable  ReliableSettings // only meaningful when Kind.Reliable()
}

// Schema is the locked set of channels an Endpoint was configured with. Use
// Builder to construct one, then Build to lock it.
type Schema struct {
	channels map[ChannelID]ChannelSettings
	locked   bool
}

// Builder accumulates channel registrations before producing a locked
// Schema.
type Builder struct {
	schema Schema
}

// NewBuilder returns an empty schema builder.
func NewBuilder() *Builder {
	return &Builder{schema: Schema{channels: make(map[ChannelID]ChannelSettings)}}
}

// AddChannel registers id with the given settings. Panics if id is already
// registered or Build has already been called — this is a programmer error
// caught at startup, not a runtime condition.
func (b *Builder) AddChannel(id ChannelID, settings ChannelSettings) *Builder {
	if b.schema.locked {
		panic(fmt.Sprintf("schema: channel %d added after Build", id))
	}
	if _, exists := b.schema.channels[id]; exists {
		panic(fmt.Sprintf("schema: channel %d registered twice", id))
	}
	b.schema.channels[id] = settings
	return b
}

// Build locks the schema. The returned Schema is safe for concurrent
// read-only use by every connection an endpoint owns.
func (b *Builder) Build() *Schema {
	b.schema.locked = true
	return &b.schema
}

// ErrUnknownChannel is returned when a message references a channel ID the
// schema never registered.
var ErrUnknownChannel = fmt.Errorf("schema: unknown channel")

// Lookup returns the settings registered for id.
func (s *Schema) Lookup(id ChannelID) (ChannelSettings, error) {
	settings, ok := s.channels[id]
	if !ok {
		return ChannelSettings{}, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return settings, nil
}

// Channels returns every registered channel ID in ascending order. The
// order is part of the wire contract: internal/msgmanager writes and reads
// a per-channel marker bit in this exact sequence, so it must be stable
// across independently-built Schema instances that register the same IDs.
func (s *Schema) Channels() []ChannelID {
	ids := make([]ChannelID, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
