package ack

import (
	"testing"

	"github.com/duskwire/netcode/internal/seqnum"
	"github.com/duskwire/netcode/internal/wire"
)

type recordingNotifier struct {
	delivered []seqnum.Num
}

func (r *recordingNotifier) NotifyPacketDelivered(idx seqnum.Num) {
	r.delivered = append(r.delivered, idx)
}

func TestAckFanOutOnExactMatch(t *testing.T) {
	sender := NewManager()
	receiver := NewManager()
	notify := &recordingNotifier{}

	// Sender transmits one data packet.
	h := sender.NextOutgoingPacketHeader(wire.PacketData)
	if h.SenderPacketIdx != 0 {
		t.Fatalf("first packet index = %d, want 0", h.SenderPacketIdx)
	}

	// Receiver processes it, then sends its own packet acking it.
	receiver.ProcessIncomingHeader(h, notify)
	ackHeader := receiver.NextOutgoingPacketHeader(wire.PacketData)
	if ackHeader.SenderAckIdx != 0 {
		t.Fatalf("ack index = %d, want 0", ackHeader.SenderAckIdx)
	}

	// Sender processes the ack and should learn its packet 0 was delivered.
	sender.ProcessIncomingHeader(ackHeader, notify)
	if len(notify.delivered) != 1 || notify.delivered[0] != 0 {
		t.Errorf("delivered = %v, want [0]", notify.delivered)
	}
	if sender.SentPacketCount() != 0 {
		t.Errorf("SentPacketCount() = %d, want 0 after ack", sender.SentPacketCount())
	}
}

func TestAckFanOutViaBitfield(t *testing.T) {
	sender := NewManager()
	receiver := NewManager()
	notify := &recordingNotifier{}

	var headers []wire.StandardHeader
	for i := 0; i < 5; i++ {
		headers = append(headers, sender.NextOutgoingPacketHeader(wire.PacketData))
	}

	// Receiver sees packets 0,1,2,3,4 but reply only once, after seeing all.
	for _, h := range headers {
		receiver.ProcessIncomingHeader(h, notify)
	}
	ackHeader := receiver.NextOutgoingPacketHeader(wire.PacketData)
	if ackHeader.SenderAckIdx != 4 {
		t.Fatalf("ack index = %d, want 4", ackHeader.SenderAckIdx)
	}

	sender.ProcessIncomingHeader(ackHeader, notify)
	if len(notify.delivered) != 5 {
		t.Fatalf("delivered count = %d, want 5 (got %v)", len(notify.delivered), notify.delivered)
	}
	if sender.SentPacketCount() != 0 {
		t.Errorf("SentPacketCount() = %d, want 0", sender.SentPacketCount())
	}
}

func TestAckDropsUnacked(t *testing.T) {
	sender := NewManager()
	notify := &recordingNotifier{}

	sender.NextOutgoingPacketHeader(wire.PacketData) // packet 0, will go unacked
	sender.NextOutgoingPacketHeader(wire.PacketData) // packet 1

	// Fabricate a header as if the peer acked packet 1 but not packet 0
	// (bit 0 of the bitfield, representing ackIdx-1, left clear).
	h := wire.StandardHeader{
		PacketType:        wire.PacketData,
		SenderPacketIdx:   0,
		SenderAckIdx:      1,
		SenderAckBitfield: 0,
	}
	sender.ProcessIncomingHeader(h, notify)

	if len(notify.delivered) != 1 || notify.delivered[0] != 1 {
		t.Errorf("delivered = %v, want [1]", notify.delivered)
	}
	if sender.SentPacketCount() != 0 {
		t.Errorf("SentPacketCount() = %d, want 0 (packet 0 dropped, not pending)", sender.SentPacketCount())
	}
}

func TestSequenceBufferEvictsOldEntries(t *testing.T) {
	b := NewSequenceBuffer(4)
	for i := seqnum.Num(0); i < 10; i++ {
		b.Set(i)
	}
	if b.IsSet(9) == false {
		t.Errorf("expected most recent entry to be set")
	}
	if b.IsSet(5) {
		t.Errorf("expected entry older than window to be evicted")
	}
}
