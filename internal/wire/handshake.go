package wire

import "github.com/duskwire/netcode/internal/bitio"

// TimestampNs is a monotonic nanosecond timestamp, relative to an arbitrary
// per-process epoch. A uint64 covers roughly 584 years before wrapping.
type TimestampNs = uint64

// ChallengePaddingBytes pads ClientChallengeRequest out to discourage using
// this module as a UDP amplification vector (the request is small, the
// response carries a signature): the padding is unauthenticated filler,
// never validated by the server.
const ChallengePaddingBytes = 256

// ClientChallengeRequest is the first handshake packet, sent by the client
// to obtain a signed timestamp it can echo back to prove it owns the
// address it claims.
type ClientChallengeRequest struct {
	TimestampNs       TimestampNs
	ClientTimestampNs TimestampNs
}

func (m ClientChallengeRequest) Ser(w bitio.FullWriter) {
	w.WriteU64(m.TimestampNs)
	w.WriteU64(m.ClientTimestampNs)
	var pad [ChallengePaddingBytes]byte
	for _, b := range pad {
		w.WriteByte(b)
	}
}

func ReadClientChallengeRequest(r *bitio.BitReader) (ClientChallengeRequest, error) {
	var m ClientChallengeRequest
	var err error
	if m.TimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.ClientTimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	for i := 0; i < ChallengePaddingBytes; i++ {
		if _, err = r.ReadByte(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// ServerChallengeResponse answers a ClientChallengeRequest with an
// HMAC-signed (server_timestamp_ns, client_timestamp_ns) pair the client
// must echo back verbatim in ClientConnectRequest.
type ServerChallengeResponse struct {
	TimestampNs       TimestampNs
	Signature         []byte
	ClientTimestampNs TimestampNs
	ServerTimestampNs TimestampNs
}

func (m ServerChallengeResponse) Ser(w bitio.FullWriter) {
	w.WriteU64(m.TimestampNs)
	w.WriteBytes(m.Signature)
	w.WriteU64(m.ClientTimestampNs)
	w.WriteU64(m.ServerTimestampNs)
}

func ReadServerChallengeResponse(r *bitio.BitReader) (ServerChallengeResponse, error) {
	var m ServerChallengeResponse
	var err error
	if m.TimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.Signature, err = r.ReadBytes(); err != nil {
		return m, err
	}
	if m.ClientTimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.ServerTimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	return m, nil
}

// ClientConnectRequest echoes the server's signature back, plus an optional
// application-defined auth payload the embedding server can inspect before
// accepting the connection.
type ClientConnectRequest struct {
	TimestampNs       TimestampNs
	Signature         []byte
	ClientTimestampNs TimestampNs
	ServerTimestampNs TimestampNs
	AuthPayload       []byte
}

func (m ClientConnectRequest) Ser(w bitio.FullWriter) {
	w.WriteU64(m.TimestampNs)
	w.WriteBytes(m.Signature)
	w.WriteU64(m.ClientTimestampNs)
	w.WriteU64(m.ServerTimestampNs)
	w.WriteBytes(m.AuthPayload)
}

func ReadClientConnectRequest(r *bitio.BitReader) (ClientConnectRequest, error) {
	var m ClientConnectRequest
	var err error
	if m.TimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.Signature, err = r.ReadBytes(); err != nil {
		return m, err
	}
	if m.ClientTimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.ServerTimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.AuthPayload, err = r.ReadBytes(); err != nil {
		return m, err
	}
	return m, nil
}

// ServerConnectResponse completes the handshake; the client's own
// ClientTimestampNs is echoed back purely so the client can match the
// response to its request without keeping extra state.
type ServerConnectResponse struct {
	ClientTimestampNs TimestampNs
}

func (m ServerConnectResponse) Ser(w bitio.FullWriter) {
	w.WriteU64(m.ClientTimestampNs)
}

func ReadServerConnectResponse(r *bitio.BitReader) (ServerConnectResponse, error) {
	var m ServerConnectResponse
	v, err := r.ReadU64()
	m.ClientTimestampNs = v
	return m, err
}

// HandshakeReject is sent instead of ServerConnectResponse when a
// ClientConnectRequest is rejected, by the handshake Verifier or by the
// embedding application's Reject. A server with no free user-key sends
// nothing.
type HandshakeReject struct {
	Reason string
}

func (m HandshakeReject) Ser(w bitio.FullWriter) {
	w.WriteString(m.Reason)
}

func ReadHandshakeReject(r *bitio.BitReader) (HandshakeReject, error) {
	var m HandshakeReject
	v, err := r.ReadString()
	m.Reason = v
	return m, err
}

// Ping and Pong carry a single timestamp used for RTT measurement.
type Ping struct{ TimestampNs TimestampNs }
type Pong struct{ TimestampNs TimestampNs }

func (m Ping) Ser(w bitio.FullWriter) { w.WriteU64(m.TimestampNs) }
func (m Pong) Ser(w bitio.FullWriter) { w.WriteU64(m.TimestampNs) }

func ReadPing(r *bitio.BitReader) (Ping, error) {
	v, err := r.ReadU64()
	return Ping{TimestampNs: v}, err
}

func ReadPong(r *bitio.BitReader) (Pong, error) {
	v, err := r.ReadU64()
	return Pong{TimestampNs: v}, err
}

// Disconnect carries the same (timestamp, signature) pair recorded at
// connect time, so the receiving end can verify the sender is the party it
// completed the handshake with before tearing the connection down.
type Disconnect struct {
	TimestampNs TimestampNs
	Signature   []byte
}

func (m Disconnect) Ser(w bitio.FullWriter) {
	w.WriteU64(m.TimestampNs)
	w.WriteBytes(m.Signature)
}

func ReadDisconnect(r *bitio.BitReader) (Disconnect, error) {
	var m Disconnect
	var err error
	if m.TimestampNs, err = r.ReadU64(); err != nil {
		return m, err
	}
	if m.Signature, err = r.ReadBytes(); err != nil {
		return m, err
	}
	return m, nil
}
