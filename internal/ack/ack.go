// Package ack implements the per-connection packet acknowledgement engine:
// it assigns each outgoing packet an index, tracks which of its own
// packets have been acknowledged by the peer, and piggy-backs
// acknowledgement of the peer's packets (a single "last received" index
// plus a 32-bit bitfield of the 32 before it) onto every outgoing header.
package ack

import (
	"github.com/duskwire/netcode/internal/seqnum"
	"github.com/duskwire/netcode/internal/wire"
)

// RedundantAcksSize mirrors wire.RedundantAcksSize: the ack bitfield covers
// this many packets behind the single most-recent acked index.
const RedundantAcksSize = wire.RedundantAcksSize

const defaultSentPacketsCapacity = 256

// Notifier receives delivery notifications as the remote peer's acks
// confirm receipt of our packets. internal/msgmanager implements this to
// learn when a reliable message it sent has actually arrived.
type Notifier interface {
	NotifyPacketDelivered(packetIdx seqnum.Num)
}

type sentPacket struct {
	packetType wire.PacketType
}

// Manager is one connection's ack bookkeeping: the next index to assign to
// an outgoing packet, the highest index we've heard acked from the peer,
// every packet we've sent that hasn't yet been acked or evicted, and a
// ring of the packet indices we've received from the peer.
type Manager struct {
	nextPacketIdx    seqnum.Num
	lastRecvPacketIdx seqnum.Num
	sentPackets      map[seqnum.Num]sentPacket
	receivedPackets  *SequenceBuffer
}

// NewManager returns a fresh ack engine for a new connection.
func NewManager() *Manager {
	return &Manager{
		lastRecvPacketIdx: seqnum.Max,
		sentPackets:       make(map[seqnum.Num]sentPacket, defaultSentPacketsCapacity),
		receivedPackets:   NewSequenceBuffer(RedundantAcksSize + 1),
	}
}

// NextSenderPacketIndex returns the index that will be assigned to the next
// outgoing packet.
func (m *Manager) NextSenderPacketIndex() seqnum.Num { return m.nextPacketIdx }

// ProcessIncomingHeader folds an incoming packet's header into this
// connection's ack state: records that we've seen the sender's packet
// index, and walks the sender's ack-of-our-packets information to notify
// `notify` about which of our outgoing packets have now been confirmed
// delivered.
func (m *Manager) ProcessIncomingHeader(h wire.StandardHeader, notify Notifier) {
	m.receivedPackets.Set(h.SenderPacketIdx)

	if h.SenderAckIdx.GreaterThan(m.lastRecvPacketIdx) {
		m.lastRecvPacketIdx = h.SenderAckIdx
	}

	if sent, ok := m.sentPackets[h.SenderAckIdx]; ok {
		if sent.packetType == wire.PacketData {
			notify.NotifyPacketDelivered(h.SenderAckIdx)
		}
		delete(m.sentPackets, h.SenderAckIdx)
	}

	bitfield := h.SenderAckBitfield
	for i := uint16(1); i <= RedundantAcksSize; i++ {
		idx := h.SenderAckIdx.Sub(i)
		if sent, ok := m.sentPackets[idx]; ok {
			if bitfield&1 == 1 && sent.packetType == wire.PacketData {
				notify.NotifyPacketDelivered(idx)
			}
			delete(m.sentPackets, idx)
		}
		bitfield >>= 1
	}
}

// NextOutgoingPacketHeader assigns the next packet index to an outgoing
// packet of the given type, records it as sent (pending ack), and returns
// the header to prefix onto the packet.
func (m *Manager) NextOutgoingPacketHeader(packetType wire.PacketType) wire.StandardHeader {
	idx := m.nextPacketIdx

	h := wire.StandardHeader{
		PacketType:        packetType,
		SenderPacketIdx:   idx,
		SenderAckIdx:      m.lastReceivedPacketIndex(),
		SenderAckBitfield: m.ackBitfield(),
	}

	m.sentPackets[idx] = sentPacket{packetType: packetType}
	m.nextPacketIdx = m.nextPacketIdx.Incr()

	return h
}

func (m *Manager) lastReceivedPacketIndex() seqnum.Num {
	return m.receivedPackets.Highest().Sub(1)
}

func (m *Manager) ackBitfield() uint32 {
	last := m.lastReceivedPacketIndex()
	var bitfield uint32
	var mask uint32 = 1
	for i := uint16(1); i <= RedundantAcksSize; i++ {
		if m.receivedPackets.IsSet(last.Sub(i)) {
			bitfield |= mask
		}
		mask <<= 1
	}
	return bitfield
}

// SentPacketCount reports how many outgoing packets are still pending ack.
func (m *Manager) SentPacketCount() int { return len(m.sentPackets) }
