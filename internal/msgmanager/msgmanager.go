// Package msgmanager multiplexes a connection's registered channels onto
// a single packet stream: it fans outgoing messages out across whichever
// channels have something to send, tags each with the channel it belongs
// to, and fans delivery notifications from internal/ack back into the
// right channel's resend tracking. Grounded on
// shared/src/connection/base_connection.rs's channel-multiplexing role,
// generalized from its single hardcoded channel set to an arbitrary
// registered schema.Schema.
package msgmanager

import (
	"fmt"
	"time"

	"github.com/duskwire/netcode/internal/bitio"
	"github.com/duskwire/netcode/internal/channel"
	"github.com/duskwire/netcode/internal/schema"
	"github.com/duskwire/netcode/internal/seqnum"
)

// Side identifies which end of a channel's direction this manager plays,
// so it knows whether to build a sender, a receiver, or both for each
// registered channel.
type Side uint8

const (
	ClientSide Side = iota
	ServerSide
)

func (s Side) sends(d schema.ChannelDirection) bool {
	if s == ClientSide {
		return d.CanSendToServer()
	}
	return d.CanSendToClient()
}

func (s Side) receives(d schema.ChannelDirection) bool {
	if s == ClientSide {
		return d.CanSendToClient()
	}
	return d.CanSendToServer()
}

type sentEntry struct {
	channelID schema.ChannelID
	index     channel.Index
}

// Manager is one connection's message multiplexer.
type Manager struct {
	schema       *schema.Schema
	senders      map[schema.ChannelID]channel.Sender
	receivers    map[schema.ChannelID]channel.Receiver
	sentByPacket map[seqnum.Num][]sentEntry
}

// New builds a manager for every channel in s that this side is allowed to
// send and/or receive on.
func New(s *schema.Schema, side Side) *Manager {
	m := &Manager{
		schema:       s,
		senders:      make(map[schema.ChannelID]channel.Sender),
		receivers:    make(map[schema.ChannelID]channel.Receiver),
		sentByPacket: make(map[seqnum.Num][]sentEntry),
	}
	for _, id := range s.Channels() {
		cs, _ := s.Lookup(id)
		if side.sends(cs.Direction) {
			m.senders[id] = channel.NewSender(cs.Kind, cs.Reliable)
		}
		if side.receives(cs.Direction) {
			m.receivers[id] = channel.NewReceiver(cs.Kind)
		}
	}
	return m
}

// Send queues payload for delivery on the given channel. Returns
// ErrUnknownChannel-wrapping error if the channel isn't registered, or an
// error if this side isn't permitted to send on it.
func (m *Manager) Send(id schema.ChannelID, payload []byte) error {
	if _, err := m.schema.Lookup(id); err != nil {
		return fmt.Errorf("msgmanager: %w", err)
	}
	s, ok := m.senders[id]
	if !ok {
		return fmt.Errorf("msgmanager: cannot send on channel %d", id)
	}
	s.Send(payload)
	return nil
}

// HasMessages reports whether any channel currently has something due to
// be written into the next packet.
func (m *Manager) HasMessages(now time.Time, rtt time.Duration) bool {
	for _, s := range m.senders {
		if s.HasMessages(now, rtt) {
			return true
		}
	}
	return false
}

// WriteMessages frames every channel with something due to send into w,
// remembering which (channel, message index) pairs went out under
// packetIdx so Ack can later notify the right channels of delivery.
func (m *Manager) WriteMessages(w bitio.FullWriter, packetIdx seqnum.Num, now time.Time, rtt time.Duration) {
	for _, id := range m.schema.Channels() {
		s, ok := m.senders[id]
		if !ok || !s.HasMessages(now, rtt) {
			w.WriteBool(false)
			continue
		}
		w.WriteBool(true)
		indices := s.WriteMessages(w, now, rtt)
		for _, idx := range indices {
			m.sentByPacket[packetIdx] = append(m.sentByPacket[packetIdx], sentEntry{channelID: id, index: idx})
		}
	}
}

// ReadMessages parses an incoming packet's per-channel message frames,
// written in the same channel order WriteMessages iterates.
func (m *Manager) ReadMessages(r *bitio.BitReader) error {
	for _, id := range m.schema.Channels() {
		present, err := r.ReadBool()
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		recv, ok := m.receivers[id]
		if !ok {
			return fmt.Errorf("msgmanager: received data for channel %d this side cannot receive", id)
		}
		if err := recv.ReadMessages(r); err != nil {
			return fmt.Errorf("msgmanager: channel %d: %w", id, err)
		}
	}
	return nil
}

// Drain returns every message that has become ready for delivery to the
// application on channel id since the last call.
func (m *Manager) Drain(id schema.ChannelID) [][]byte {
	recv, ok := m.receivers[id]
	if !ok {
		return nil
	}
	return recv.Drain()
}

// tickSettable is implemented by channel.TickBufferedSender and
// channel.TickBufferedReceiver; other channel kinds don't have a notion of
// "current tick" and are left alone by SetTick.
type tickSettable interface {
	SetTick(tick seqnum.Num)
}

// SetTick advances the host's current logical tick for every tick-buffered
// channel this manager owns, both sender (so newly queued messages carry
// the new tick) and receiver (so buffered messages targeting it become
// deliverable and strictly older ticks fall out of the window).
func (m *Manager) SetTick(tick seqnum.Num) {
	for _, s := range m.senders {
		if ts, ok := s.(tickSettable); ok {
			ts.SetTick(tick)
		}
	}
	for _, r := range m.receivers {
		if tr, ok := r.(tickSettable); ok {
			tr.SetTick(tick)
		}
	}
}

// NotifyPacketDelivered implements internal/ack.Notifier: it fans the
// packet-level delivery confirmation out to every channel message that
// packet carried.
func (m *Manager) NotifyPacketDelivered(packetIdx seqnum.Num) {
	entries, ok := m.sentByPacket[packetIdx]
	if !ok {
		return
	}
	delete(m.sentByPacket, packetIdx)
	for _, e := range entries {
		if s, ok := m.senders[e.channelID]; ok {
			s.Ack(e.index)
		}
	}
}
