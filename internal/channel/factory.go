package channel

import "github.com/duskwire/netcode/internal/schema"

// NewSender returns the Sender implementation appropriate to kind. Reliable
// kinds resend unacked fragments at settings.RTTResendFactor times the
// connection's measured RTT.
func NewSender(kind schema.ChannelKind, settings schema.ReliableSettings) Sender {
	switch kind {
	case schema.UnorderedUnreliable:
		return &UnorderedUnreliableSender{}
	case schema.SequencedUnreliable:
		return &SequencedUnreliableSender{}
	case schema.UnorderedReliable, schema.SequencedReliable, schema.OrderedReliable:
		return NewReliableSender(settings)
	case schema.TickBuffered:
		return NewTickBufferedSender()
	default:
		panic("channel: unknown channel kind")
	}
}

// NewReceiver returns the Receiver implementation appropriate to kind.
func NewReceiver(kind schema.ChannelKind) Receiver {
	switch kind {
	case schema.UnorderedUnreliable:
		return &UnorderedUnreliableReceiver{}
	case schema.SequencedUnreliable:
		return &SequencedUnreliableReceiver{}
	case schema.UnorderedReliable:
		return NewUnorderedReliableReceiver()
	case schema.SequencedReliable:
		return NewSequencedReliableReceiver()
	case schema.OrderedReliable:
		return NewOrderedReliableReceiver()
	case schema.TickBuffered:
		return NewTickBufferedReceiver()
	default:
		panic("channel: unknown channel kind")
	}
}
