package handshake

import (
	"fmt"

	"github.com/duskwire/netcode/internal/wire"
)

// ClientState is the client side of the handshake state machine.
type ClientState uint8

const (
	ClientAwaitingChallengeResponse ClientState = iota
	ClientAwaitingConnectResponse
	ClientEstablished
	ClientRejected
)

// Client drives one outgoing handshake attempt.
type Client struct {
	state ClientState

	clientTimestamp wire.TimestampNs
	serverTimestamp wire.TimestampNs
	signature       []byte

	// AuthPayload is attached to the ClientConnectRequest, carrying
	// whatever application-defined credentials the server's connect
	// callback expects (SPEC_FULL.md §3's auth hook).
	AuthPayload []byte
}

// NewClient starts a fresh handshake attempt.
func NewClient(authPayload []byte) *Client {
	return &Client{AuthPayload: authPayload}
}

// State reports the handshake's current stage.
func (c *Client) State() ClientState { return c.state }

// Start returns the first datagram to send: a ClientChallengeRequest
// stamped with the client's current time, used later to estimate
// handshake RTT.
func (c *Client) Start() wire.ClientChallengeRequest {
	c.clientTimestamp = nowNs()
	c.state = ClientAwaitingChallengeResponse
	return wire.ClientChallengeRequest{
		TimestampNs:       nowNs(),
		ClientTimestampNs: c.clientTimestamp,
	}
}

// HandleChallengeResponse processes the server's signed challenge and
// returns the ClientConnectRequest echoing that signature back.
func (c *Client) HandleChallengeResponse(resp wire.ServerChallengeResponse) (wire.ClientConnectRequest, error) {
	if c.state != ClientAwaitingChallengeResponse {
		return wire.ClientConnectRequest{}, ErrUnexpectedMessage
	}
	if resp.ClientTimestampNs != c.clientTimestamp {
		return wire.ClientConnectRequest{}, ErrUnexpectedMessage
	}

	c.serverTimestamp = resp.ServerTimestampNs
	c.signature = resp.Signature
	c.state = ClientAwaitingConnectResponse

	return wire.ClientConnectRequest{
		TimestampNs:       nowNs(),
		Signature:         c.signature,
		ClientTimestampNs: c.clientTimestamp,
		ServerTimestampNs: c.serverTimestamp,
		AuthPayload:       c.AuthPayload,
	}, nil
}

// HandleConnectResponse completes the handshake.
func (c *Client) HandleConnectResponse(resp wire.ServerConnectResponse) error {
	if c.state != ClientAwaitingConnectResponse {
		return ErrUnexpectedMessage
	}
	if resp.ClientTimestampNs != c.clientTimestamp {
		return ErrUnexpectedMessage
	}
	c.state = ClientEstablished
	return nil
}

// SessionSignature returns the challenge signature this handshake
// established, for deriving a post-handshake session key
// (DeriveSessionKey). Only meaningful once the handshake has reached
// ClientAwaitingConnectResponse or later.
func (c *Client) SessionSignature() []byte { return c.signature }

// HandleReject marks the attempt as rejected and returns ErrRejected,
// wrapping the server's stated reason.
func (c *Client) HandleReject(reject wire.HandshakeReject) error {
	c.state = ClientRejected
	if reject.Reason != "" {
		return fmt.Errorf("%w: %s", ErrRejected, reject.Reason)
	}
	return ErrRejected
}
