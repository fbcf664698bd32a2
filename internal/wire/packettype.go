// Package wire implements the standard packet header, the packet-type tag,
// and the handshake datagram bodies — the datagram framing layer spec.md
// calls the wire codec, sitting directly on top of internal/bitio and
// internal/seqnum.
package wire

import (
	"fmt"

	"github.com/duskwire/netcode/internal/bitio"
)

// PacketType tags every datagram this module sends. It is written as a
// single byte on the wire.
type PacketType uint8

const (
	PacketData PacketType = iota
	PacketHeartbeat
	PacketClientChallengeRequest
	PacketServerChallengeResponse
	PacketClientConnectRequest
	PacketServerConnectResponse
	PacketServerRejectResponse
	PacketPing
	PacketPong
	PacketDisconnect
)

func (t PacketType) String() string {
	switch t {
	case PacketData:
		return "Data"
	case PacketHeartbeat:
		return "Heartbeat"
	case PacketClientChallengeRequest:
		return "ClientChallengeRequest"
	case PacketServerChallengeResponse:
		return "ServerChallengeResponse"
	case PacketClientConnectRequest:
		return "ClientConnectRequest"
	case PacketServerConnectResponse:
		return "ServerConnectResponse"
	case PacketServerRejectResponse:
		return "ServerRejectResponse"
	case PacketPing:
		return "Ping"
	case PacketPong:
		return "Pong"
	case PacketDisconnect:
		return "Disconnect"
	default:
		return fmt.Sprintf("PacketType(%d)", uint8(t))
	}
}

func (t PacketType) Ser(w bitio.Writer) {
	w.WriteByte(byte(t))
}

func ReadPacketType(r *bitio.BitReader) (PacketType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b > byte(PacketDisconnect) {
		return 0, fmt.Errorf("wire: unknown packet type %d", b)
	}
	return PacketType(b), nil
}
