package wire

import (
	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/seqnum"
)

// RedundantAcksSize is how many packets back the ack bitfield covers, in
// addition to the single most-recently-acked index carried alongside it.
const RedundantAcksSize = 32

// StandardHeader is prefixed to every outgoing datagram. It carries the
// sender's own packet index plus piggy-backed acknowledgement of the last
// 33 packets received from the peer (see internal/ack).
type StandardHeader struct {
	PacketType       PacketType
	SenderPacketIdx  seqnum.Num
	SenderAckIdx     seqnum.Num
	SenderAckBitfield uint32
}

// OfType returns a zero-valued header carrying only a packet type, used for
// handshake packets that don't participate in the ack engine.
func OfType(t PacketType) StandardHeader {
	return StandardHeader{PacketType: t}
}

func (h StandardHeader) Ser(w bitio.Writer) {
	h.PacketType.Ser(w)
	h.SenderPacketIdx.Ser(w)
	h.SenderAckIdx.Ser(w)
	w.WriteByte(byte(h.SenderAckBitfield))
	w.WriteByte(byte(h.SenderAckBitfield >> 8))
	w.WriteByte(byte(h.SenderAckBitfield >> 16))
	w.WriteByte(byte(h.SenderAckBitfield >> 24))
}

func ReadStandardHeader(r *bitio.BitReader) (StandardHeader, error) {
	var h StandardHeader
	t, err := ReadPacketType(r)
	if err != nil {
		return h, err
	}
	pktIdx, err := seqnum.De(r)
	if err != nil {
		return h, err
	}
	ackIdx, err := seqnum.De(r)
	if err != nil {
		return h, err
	}
	bitfield, err := r.ReadU32()
	if err != nil {
		return h, err
	}
	h.PacketType = t
	h.SenderPacketIdx = pktIdx
	h.SenderAckIdx = ackIdx
	h.SenderAckBitfield = bitfield
	return h, nil
}

// BitLength is the fixed size of a serialized StandardHeader, used by
// channel senders to size their per-packet byte budget.
const BitLength = 8 + 16 + 16 + 32
