package schema

import "testing"

const (
	chanReliable ChannelID = iota
	chanUnreliable
)

func TestBuilderLocksSchema(t *testing.T) {
	s := NewBuilder().
		AddChannel(chanReliable, ChannelSettings{Kind: OrderedReliable, Direction: Bidirectional, Reliable: DefaultReliableSettings()}).
		AddChannel(chanUnreliable, ChannelSettings{Kind: UnorderedUnreliable, Direction: ClientToServer}).
		Build()

	got, err := s.Lookup(chanReliable)
	if err != nil {
		t.Fatalf("Lookup: unexpected error: %v", err)
	}
	if got.Kind != OrderedReliable || !got.Kind.Reliable() {
		t.Errorf("channel settings = %+v, want OrderedReliable/reliable", got)
	}

	if len(s.Channels()) != 2 {
		t.Errorf("Channels() len = %d, want 2", len(s.Channels()))
	}

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on AddChannel after Build")
		}
	}()
	b := NewBuilder()
	b.Build()
	b.AddChannel(chanReliable, ChannelSettings{Kind: UnorderedUnreliable})
}

func TestLookupUnknownChannel(t *testing.T) {
	s := NewBuilder().Build()
	if _, err := s.Lookup(99); err == nil {
		t.Errorf("expected ErrUnknownChannel")
	}
}

func TestAddChannelTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on duplicate channel registration")
		}
	}()
	NewBuilder().
		AddChannel(chanReliable, ChannelSettings{Kind: UnorderedUnreliable}).
		AddChannel(chanReliable, ChannelSettings{Kind: UnorderedUnreliable})
}

func TestChannelDirection(t *testing.T) {
	cases := []struct {
		dir              ChannelDirection
		toServer, toClient bool
	}{
		{ClientToServer, true, false},
		{ServerToClient, false, true},
		{Bidirectional, true, true},
	}
	for _, c := range cases {
		if got := c.dir.CanSendToServer(); got != c.toServer {
			t.Errorf("%v.CanSendToServer() = %v, want %v", c.dir, got, c.toServer)
		}
		if got := c.dir.CanSendToClient(); got != c.toClient {
			t.Errorf("%v.CanSendToClient() = %v, want %v", c.dir, got, c.toClient)
		}
	}
}
