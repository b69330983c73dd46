// Command cambria-agent is one peer: it owns a single engine.Engine at
// a configured schema, serves it to local clients over a WebSocket
// hub, and finds and dials other agents on the local network over
// mDNS, mirroring the teacher's agent/main.go but driving the merge
// engine instead of relaying raw character ops.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/orionz/cambriamerge/engine"
	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/block"
	"github.com/orionz/cambriamerge/internal/discovery"
	"github.com/orionz/cambriamerge/internal/gossip"
	"github.com/orionz/cambriamerge/internal/lensgraph"
)

// loadLenses reads a JSON array of block.Registration describing the
// lens chain from mu to this agent's own schema. A fresh agent has
// nothing else to learn that chain from, since the graph starts out
// holding only mu.
func loadLenses(path string) ([]block.Registration, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cambria-agent: opening lens file: %w", err)
	}
	defer f.Close()
	var regs []block.Registration
	if err := json.NewDecoder(f).Decode(&regs); err != nil {
		return nil, fmt.Errorf("cambria-agent: decoding lens file: %w", err)
	}
	return regs, nil
}

func main() {
	ctx := context.Background()

	schema := os.Getenv("CAMBRIA_SCHEMA")
	if schema == "" {
		schema = lensgraph.Mu
	}

	regs, err := loadLenses(os.Getenv("CAMBRIA_LENSES_FILE"))
	if err != nil {
		log.Fatalf("cambria-agent: %v", err)
	}

	graph := lensgraph.New()
	for _, r := range regs {
		if graph.Has(r.To) {
			continue
		}
		if err := graph.Register(r.From, r.To, r.Lens); err != nil {
			log.Fatalf("cambria-agent: registering lens %s->%s: %v", r.From, r.To, err)
		}
	}

	eng, err := engine.New(graph, schema, regs)
	if err != nil {
		log.Fatalf("cambria-agent: schema %q has no lens path from mu: %v", schema, err)
	}

	hub := gossip.NewHub()
	go hub.Run()

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("cambria-agent: invalid PORT %q: %v", portStr, err)
	}

	docID := os.Getenv("CAMBRIA_DOC_ID")
	if docID == "" {
		docID = "default"
	}

	// The engine itself is not safe for concurrent use, so the actor's
	// own goroutine is the only thing that ever touches eng; an agent
	// has no Postgres store or Redis relay of its own, gossip happens
	// purely peer-to-peer over dialed hub connections.
	actor := gossip.NewDocumentActor(docID, eng, nil, hub, nil)
	go actor.Run(ctx)

	go func() {
		err := discovery.Start(ctx, port, func(peer discovery.Peer) {
			url := fmt.Sprintf("ws://%s:%d/docs/%s/ws", peer.Addr, peer.Port, docID)
			if err := hub.Dial(url); err != nil {
				log.Printf("cambria-agent: dialing peer %s: %v", peer.Instance, err)
			}
		})
		if err != nil {
			log.Printf("cambria-agent: discovery stopped: %v", err)
		}
	}()

	http.HandleFunc("/docs/"+docID+"/ws", hub.Serve)
	http.HandleFunc("/patch", func(w http.ResponseWriter, r *http.Request) {
		patch, err := actor.GetPatch()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(patch)
	})
	http.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		var req backend.LocalChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		patch, err := actor.SubmitLocalChange(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(patch)
	})

	log.Printf("cambria-agent running on :%d for document %q at schema %q", port, docID, schema)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil); err != nil {
		log.Fatalf("cambria-agent: %v", err)
	}
}
