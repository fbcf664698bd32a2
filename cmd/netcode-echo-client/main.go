package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duskwire/netcode/client"
	"github.com/duskwire/netcode/events"
	"github.com/duskwire/netcode/internal/netlog"
	"github.com/duskwire/netcode/internal/schema"
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
	netlog.Banner("Netcode Echo Client", version)

	addr := flag.String("addr", "127.0.0.1:7777", "server address to connect to")
	auth := flag.String("auth", "", "optional auth payload to present during the handshake")
	flag.Parse()

	c := client.NewClient(echoSchema(), nil)

	var authPayload []byte
	if *auth != "" {
		authPayload = []byte(*auth)
	}
	if err := c.Connect(*addr, authPayload); err != nil {
		netlog.Fatal("connecting to %s: %v", *addr, err)
	}
	netlog.Info("Connecting to %s...", *addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	stop := make(chan struct{})
	go pollEvents(c, stop)
	go readStdin(c, stop)

	sig := <-sigChan
	netlog.Warn("Received signal: %v", sig)
	close(stop)
	if c.State() == client.StateEstablished {
		_ = c.Disconnect()
	}
	_ = c.Close()
	time.Sleep(100 * time.Millisecond)
	netlog.Success("Client stopped")
}

func pollEvents(c *client.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, ev := range c.Receive() {
				handleEvent(ev)
			}
		}
	}
}

func handleEvent(ev events.Event) {
	switch ev.Type {
	case events.TypeConnect:
		netlog.Success("connected to %s", ev.Peer)
	case events.TypeReject:
		netlog.Warn("rejected: %s", ev.Reason)
	case events.TypeMessage:
		netlog.InfoCyan("echo: %s", ev.Message)
	case events.TypeDisconnect:
		netlog.Info("disconnected: %s", ev.Reason)
	case events.TypeError:
		netlog.Error("%v", ev.Err)
	}
}

func readStdin(c *client.Client, stop <-chan struct{}) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-stop:
			return
		default:
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := c.Send(echoChannel, []byte(line)); err != nil {
			netlog.Warn("send: %v", err)
		}
	}
	fmt.Fprintln(os.Stderr)
}
