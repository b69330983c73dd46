package gossip

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/orionz/cambriamerge/engine"
	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/block"
	"github.com/orionz/cambriamerge/internal/store"
)

// DocumentActor owns exactly one engine.Engine and serializes every
// access to it behind its own goroutine (spec.md §5's "document actor"
// pattern): the hub, the Redis subscription, and local REST submissions
// all hand work to the actor over channels rather than touching the
// engine directly.
type DocumentActor struct {
	docID string
	eng   *engine.Engine
	store *store.Store
	hub   *Hub
	rdb   *redis.Client

	blocks     chan block.Block
	localEdits chan localEditRequest
	patchReads chan patchReadRequest
}

type localEditRequest struct {
	req  backend.LocalChangeRequest
	resp chan localEditResult
}

type localEditResult struct {
	patch backend.Patch
	err   error
}

type patchReadRequest struct {
	resp chan patchReadResult
}

type patchReadResult struct {
	patch backend.Patch
	err   error
}

// NewDocumentActor wires an engine around a document id, its Postgres
// history store, its local WebSocket hub, and the Redis client used to
// relay blocks to other server processes subscribed to the same
// document (teacher's server/main.go rdb.Subscribe(ctx, docID)
// pattern).
func NewDocumentActor(docID string, eng *engine.Engine, st *store.Store, hub *Hub, rdb *redis.Client) *DocumentActor {
	return &DocumentActor{
		docID:      docID,
		eng:        eng,
		store:      st,
		hub:        hub,
		rdb:        rdb,
		blocks:     make(chan block.Block, 64),
		localEdits: make(chan localEditRequest),
		patchReads: make(chan patchReadRequest),
	}
}

// Run is the actor's event loop. It owns the engine for as long as the
// process runs; callers reach it only through SubmitLocalChange,
// ReceiveBlock, and GetPatch. rdb and store are both optional: an agent
// running purely peer-to-peer over the hub passes neither, and Run
// simply never selects on a Redis subscription or persists anything.
func (a *DocumentActor) Run(ctx context.Context) {
	var redisChan <-chan *redis.Message
	if a.rdb != nil {
		pubsub := a.rdb.Subscribe(ctx, a.docID)
		defer pubsub.Close()
		redisChan = pubsub.Channel()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case b := <-a.blocks:
			a.applyAndBroadcast(ctx, b, true)

		case msg := <-redisChan:
			var b block.Block
			if err := json.Unmarshal([]byte(msg.Payload), &b); err != nil {
				log.Printf("gossip: decoding relayed block for %s: %v", a.docID, err)
				continue
			}
			a.applyAndBroadcast(ctx, b, false)

		case in := <-a.hub.Incoming:
			var b block.Block
			if err := json.Unmarshal(in.Payload, &b); err != nil {
				log.Printf("gossip: decoding client block for %s: %v", a.docID, err)
				continue
			}
			a.applyAndBroadcast(ctx, b, true)

		case r := <-a.localEdits:
			patch, blk, err := a.eng.ApplyLocalChange(r.req)
			if err == nil {
				a.persistAndPublish(ctx, blk)
				a.broadcastPatch(patch)
			}
			r.resp <- localEditResult{patch: patch, err: err}

		case r := <-a.patchReads:
			patch, err := a.eng.GetPatch()
			r.resp <- patchReadResult{patch: patch, err: err}
		}
	}
}

func (a *DocumentActor) applyAndBroadcast(ctx context.Context, b block.Block, relay bool) {
	patch, err := a.eng.ApplyBlocks([]block.Block{b})
	if err != nil {
		log.Printf("gossip: applying block (%s, %d) to %s: %v", b.Change.Actor, b.Change.Seq, a.docID, err)
		return
	}
	if a.store != nil {
		if err := a.store.Append(ctx, a.docID, b); err != nil {
			log.Printf("gossip: persisting block (%s, %d) for %s: %v", b.Change.Actor, b.Change.Seq, a.docID, err)
		}
	}
	if relay {
		a.publish(ctx, b)
	}
	a.broadcastPatch(patch)
}

func (a *DocumentActor) persistAndPublish(ctx context.Context, b block.Block) {
	if a.store != nil {
		if err := a.store.Append(ctx, a.docID, b); err != nil {
			log.Printf("gossip: persisting local block (%s, %d) for %s: %v", b.Change.Actor, b.Change.Seq, a.docID, err)
		}
	}
	a.publish(ctx, b)
}

func (a *DocumentActor) publish(ctx context.Context, b block.Block) {
	payload, err := json.Marshal(b)
	if err != nil {
		log.Printf("gossip: encoding block for relay: %v", err)
		return
	}
	if a.rdb != nil {
		if err := a.rdb.Publish(ctx, a.docID, payload).Err(); err != nil {
			log.Printf("gossip: publishing block for %s: %v", a.docID, err)
		}
	}
	a.hub.Broadcast <- payload
}

func (a *DocumentActor) broadcastPatch(patch backend.Patch) {
	payload, err := json.Marshal(patch)
	if err != nil {
		log.Printf("gossip: encoding patch for %s: %v", a.docID, err)
		return
	}
	a.hub.Broadcast <- payload
}

// SubmitLocalChange hands a caller's own edit to the actor and blocks
// until it has been applied, persisted, and relayed.
func (a *DocumentActor) SubmitLocalChange(req backend.LocalChangeRequest) (backend.Patch, error) {
	resp := make(chan localEditResult, 1)
	a.localEdits <- localEditRequest{req: req, resp: resp}
	r := <-resp
	return r.patch, r.err
}

// ReceiveBlock enqueues a block for the actor to fold in, e.g. one
// POSTed to the server's /docs/{id}/blocks endpoint.
func (a *DocumentActor) ReceiveBlock(b block.Block) {
	a.blocks <- b
}

// Hub returns the document's WebSocket hub, for registering the
// upgrade handler.
func (a *DocumentActor) Hub() *Hub {
	return a.hub
}

// GetPatch returns the document's current full-snapshot patch.
func (a *DocumentActor) GetPatch() (backend.Patch, error) {
	resp := make(chan patchReadResult, 1)
	a.patchReads <- patchReadRequest{resp: resp}
	r := <-resp
	return r.patch, r.err
}
