// Package discovery finds other cambriamerge peers on the local network
// over mDNS, grounded on the teacher's agent/main.go startDiscovery.
// Where the teacher registers once and browses for a single fixed
// window at startup, a server process needs peers that come and go for
// as long as it runs, so Start keeps re-browsing on an interval instead
// of exiting after one pass.
package discovery

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_cambriamerge._tcp"

// Peer is one other instance discovered on the network.
type Peer struct {
	Instance string
	Host     string
	Addr     string
	Port     int
}

// Start registers this instance under serviceType on port and invokes
// onPeer for every peer it discovers, until ctx is cancelled. It runs
// until ctx.Done() fires, so callers should run it in its own
// goroutine the way the teacher runs startDiscovery.
func Start(ctx context.Context, port int, onPeer func(Peer)) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	instance := fmt.Sprintf("cambriamerge-%s", host)

	server, err := zeroconf.Register(
		instance,
		serviceType,
		"local.",
		port,
		[]string{"txtv=0"},
		nil,
	)
	if err != nil {
		return fmt.Errorf("discovery: registering mDNS service: %w", err)
	}
	defer server.Shutdown()
	log.Printf("discovery: registered %s on port %d", instance, port)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: initializing mDNS resolver: %w", err)
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	if err := browseOnce(ctx, resolver, instance, onPeer); err != nil {
		log.Printf("discovery: browse failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := browseOnce(ctx, resolver, instance, onPeer); err != nil {
				log.Printf("discovery: browse failed: %v", err)
			}
		}
	}
}

func browseOnce(ctx context.Context, resolver *zeroconf.Resolver, self string, onPeer func(Peer)) error {
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if entry.Instance == self {
				continue
			}
			peer := Peer{Instance: entry.Instance, Host: entry.HostName, Port: entry.Port}
			if len(entry.AddrIPv4) > 0 {
				peer.Addr = entry.AddrIPv4[0].String()
			}
			log.Printf("discovery: found peer %s at %s:%d", peer.Instance, peer.Addr, peer.Port)
			onPeer(peer)
		}
	}()

	browseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := resolver.Browse(browseCtx, serviceType, "local.", entries); err != nil {
		return err
	}
	<-browseCtx.Done()
	return nil
}
