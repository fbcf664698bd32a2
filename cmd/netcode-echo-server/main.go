package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duskwire/netcode/events"
	"github.com/duskwire/netcode/internal/handshake"
	"github.com/duskwire/netcode/internal/idpool"
	"github.com/duskwire/netcode/internal/netlog"
	"github.com/duskwire/netcode/internal/schema"
	"github.com/duskwire/netcode/server"
)

const version = "1.0.0"

const echoChannel schema.ChannelID = 1

func echoSchema() *schema.Schema {
	return schema.NewBuilder().
		AddChannel(echoChannel, schema.ChannelSettings{
			Kind:      schema.OrderedReliable,
			Direction: schema.Bidirectional,
			Reliable:  schema.DefaultReliableSettings(),
		}).
		Build()
}

func main() {
	netlog.Banner("Netcode Echo Server", version)

	addr := flag.String("addr", "0.0.0.0:7777", "UDP address to listen on")
	maxUsers := flag.Int("max-users", 100, "maximum number of concurrent connections")
	requireAuth := flag.Bool("require-auth", false, "defer every connection to an Auth event instead of accepting immediately")
	flag.Parse()

	secret, err := handshake.NewSecret()
	if err != nil {
		netlog.Fatal("generating handshake secret: %v", err)
	}

	srv := server.NewServer(echoSchema(), secret, *maxUsers, nil)
	if err := srv.Listen(*addr); err != nil {
		netlog.Fatal("listening on %s: %v", *addr, err)
	}

	netlog.Info("Max connections: %d", *maxUsers)
	netlog.Info("Auth required: %v", *requireAuth)
	netlog.Success("Listening on %s", *addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	stop := make(chan struct{})
	go pollEvents(srv, *requireAuth, stop)

	sig := <-sigChan
	netlog.Warn("Received signal: %v", sig)
	netlog.Info("Shutting down gracefully...")
	close(stop)
	if err := srv.Close(); err != nil {
		netlog.Warn("closing server: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	netlog.Success("Server stopped")
}

func pollEvents(srv *server.Server, requireAuth bool, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, ev := range srv.Receive() {
				handleEvent(srv, ev, requireAuth)
			}
		}
	}
}

func handleEvent(srv *server.Server, ev events.Event, requireAuth bool) {
	switch ev.Type {
	case events.TypeConnect:
		netlog.InfoCyan("peer %s connected", ev.Peer)
	case events.TypeAuth:
		if !requireAuth {
			return
		}
		var key uint32
		fmt.Sscan(ev.Peer, &key)
		netlog.Info("peer %s presented auth payload %q, accepting", ev.Peer, ev.AuthPayload)
		if err := srv.Accept(idpool.Key(key)); err != nil {
			netlog.Warn("accepting %s: %v", ev.Peer, err)
		}
	case events.TypeMessage:
		var key uint32
		fmt.Sscan(ev.Peer, &key)
		if err := srv.Send(idpool.Key(key), ev.Channel, ev.Message); err != nil {
			netlog.Warn("echoing to %s: %v", ev.Peer, err)
		}
	case events.TypeDisconnect:
		netlog.Info("peer %s disconnected: %s", ev.Peer, ev.Reason)
	case events.TypeError:
		netlog.Error("%v", ev.Err)
	}
}
