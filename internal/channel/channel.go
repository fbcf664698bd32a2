package channel

import (
	"time"

	"github.com/duskwire/netcode/internal/bitio"
)

// Sender queues outgoing application messages and frames whichever of them
// are due to go out in the next packet.
type Sender interface {
	// Send queues payload for delivery. It never blocks.
	Send(payload []byte)
	// HasMessages reports whether any message is currently due to be written.
	HasMessages(now time.Time, rtt time.Duration) bool
	// WriteMessages frames every message currently due into w and returns
	// their indices, so the caller can remember which packet carried them.
	WriteMessages(w bitio.FullWriter, now time.Time, rtt time.Duration) []Index
	// Ack marks a previously written message index as delivered, releasing
	// it from resend tracking. Unreliable senders ignore this.
	Ack(idx Index)
}

// Receiver parses incoming framed messages and applies this channel's
// dedup/ordering policy to decide which ones are ready for delivery to the
// application.
type Receiver interface {
	// ReadMessages parses a framed message list out of r, folding every
	// entry into this receiver's policy.
	ReadMessages(r *bitio.BitReader) error
	// Drain returns, and clears, every message that has become ready for
	// delivery to the application since the last call.
	Drain() [][]byte
}
