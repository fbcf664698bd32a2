package handshake

import (
	"github.com/duskwire/netcode/internal/wire"
)

// Verifier is called with a ClientConnectRequest's auth payload once its
// signature has checked out, so the application can accept or reject the
// connection on its own terms (credentials, server capacity, ban lists).
// Returning accept=false rejects the connection with reason, or with a
// default reason when reason is empty; reason is ignored when accept is true.
type Verifier func(authPayload []byte) (reason string, accept bool)

// Server answers challenge and connect requests. It is stateless between
// the two steps: everything needed to verify a ClientConnectRequest is
// recoverable from the request itself plus Secret, so an attacker flooding
// ClientChallengeRequests never grows any per-client memory on the server.
type Server struct {
	secret Secret
	verify Verifier
}

// NewServer returns a handshake responder signing with secret. If verify is
// nil, every ClientConnectRequest whose signature checks out is accepted.
func NewServer(secret Secret, verify Verifier) *Server {
	if verify == nil {
		verify = func([]byte) (string, bool) { return "", true }
	}
	return &Server{secret: secret, verify: verify}
}

// HandleChallengeRequest signs the client's timestamp together with the
// server's own, so the signature in the eventual ClientConnectRequest can
// be verified without having stored anything about this client.
func (s *Server) HandleChallengeRequest(req wire.ClientChallengeRequest) wire.ServerChallengeResponse {
	serverTs := nowNs()
	return wire.ServerChallengeResponse{
		TimestampNs:       nowNs(),
		Signature:         sign(s.secret, req.ClientTimestampNs, serverTs),
		ClientTimestampNs: req.ClientTimestampNs,
		ServerTimestampNs: serverTs,
	}
}

// HandleConnectRequest verifies the echoed signature and, if it checks
// out, runs the application Verifier. On success it returns the
// ServerConnectResponse to send; on failure it returns the reason to put
// in a HandshakeReject.
func (s *Server) HandleConnectRequest(req wire.ClientConnectRequest) (wire.ServerConnectResponse, string, error) {
	if !verifySignature(s.secret, req.ClientTimestampNs, req.ServerTimestampNs, req.Signature) {
		return wire.ServerConnectResponse{}, "", ErrBadSignature
	}

	reason, accept := s.verify(req.AuthPayload)
	if !accept {
		if reason == "" {
			reason = "connection rejected"
		}
		return wire.ServerConnectResponse{}, reason, nil
	}

	return wire.ServerConnectResponse{ClientTimestampNs: req.ClientTimestampNs}, "", nil
}

// SessionSignature recomputes the challenge signature for an already
// signature-verified ClientConnectRequest, for deriving a post-handshake
// session key (DeriveSessionKey). Recomputing rather than storing it keeps
// the server stateless between the challenge and connect steps.
func (s *Server) SessionSignature(req wire.ClientConnectRequest) []byte {
	return sign(s.secret, req.ClientTimestampNs, req.ServerTimestampNs)
}
