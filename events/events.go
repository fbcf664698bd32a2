// Package events is the application-facing event surface for both the
// client and server endpoints: Connect, Auth, Reject, Message,
// Disconnect, and Error. Adapted from core/events' typed-event dispatcher,
// generalized from SA-MP's player/vehicle event set to the handshake and
// channel-delivery events a netcode endpoint raises.
package events

import (
	"time"

	"github.com/duskwire/netcode/internal/schema"
)

// Type identifies the kind of event carried by an Event.
type Type int

const (
	// TypeConnect fires once a peer's handshake completes: server-side
	// when the connect response is sent and a user record created,
	// client-side when the server's connect response is accepted.
	TypeConnect Type = iota
	// TypeAuth fires server-side when a connect request carries an
	// application auth payload; the embedding application must call
	// Accept or Reject with the event's AcceptTicket to resume the
	// handshake.
	TypeAuth
	// TypeReject fires client-side when the server sends a handshake
	// rejection.
	TypeReject
	// TypeMessage fires when a channel delivers a payload to the
	// application.
	TypeMessage
	// TypeDisconnect fires once, on a verified Disconnect packet or on
	// connection timeout.
	TypeDisconnect
	// TypeError fires on a recoverable anomaly (a single send/receive
	// failure, a malformed packet) that does not by itself tear down
	// the connection.
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeConnect:
		return "Connect"
	case TypeAuth:
		return "Auth"
	case TypeReject:
		return "Reject"
	case TypeMessage:
		return "Message"
	case TypeDisconnect:
		return "Disconnect"
	case TypeError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Event is a single occurrence raised by a client or server endpoint.
// Not every field is populated for every Type; see the Type constants
// above for which fields apply.
type Event struct {
	Type Type
	At   time.Time

	// Peer identifies who the event is about: the server's assigned
	// user-key (formatted as a string) server-side, or the remote
	// address client-side.
	Peer string

	// Channel and Message are set on TypeMessage.
	Channel schema.ChannelID
	Message []byte

	// AcceptTicket is set on TypeAuth; pass it back to
	// Server.Accept/Server.Reject to resume the handshake this event
	// was raised for.
	AcceptTicket uint64
	// AuthPayload is the application auth bytes the client included in
	// its connect request, set on TypeAuth.
	AuthPayload []byte

	// Reason is set on TypeReject and sometimes TypeDisconnect, when
	// the peer end supplied a human-readable cause.
	Reason string
	// Err is set on TypeError.
	Err error
}

// Handler is a function invoked synchronously as an event is raised,
// for side effects (logging, metrics) that shouldn't wait for the next
// Drain call.
type Handler func(Event)

// Manager buffers raised events for a poll-style Receive/Drain caller
// and additionally fans each event out to any handlers registered for
// its Type, mirroring core/events.EventManager's Register/Trigger split.
type Manager struct {
	handlers map[Type][]Handler
	queue    []Event
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{handlers: make(map[Type][]Handler)}
}

// Register adds a handler invoked synchronously whenever Raise is
// called with a matching Type.
func (m *Manager) Register(t Type, h Handler) {
	m.handlers[t] = append(m.handlers[t], h)
}

// Raise appends ev to the drainable queue and invokes any handlers
// registered for ev.Type, in registration order.
func (m *Manager) Raise(ev Event) {
	m.queue = append(m.queue, ev)
	for _, h := range m.handlers[ev.Type] {
		h(ev)
	}
}

// Drain returns and clears every event queued since the last Drain,
// implementing the Endpoint API's receive() -> [event].
func (m *Manager) Drain() []Event {
	if len(m.queue) == 0 {
		return nil
	}
	out := m.queue
	m.queue = nil
	return out
}

// Pending reports how many events are queued but not yet drained.
func (m *Manager) Pending() int {
	return len(m.queue)
}
