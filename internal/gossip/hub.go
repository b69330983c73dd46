// Package gossip is the transport that moves blocks between peers,
// grounded on the teacher's agent/main.go Hub/Client broadcast pattern
// and server/main.go's one-Redis-channel-per-document relay.
//
// A Hub fans incoming bytes out to every WebSocket client connected to
// one document, the same shape as the teacher's Hub. What rides over
// it differs: the teacher relays raw per-character ops; here it's
// JSON-encoded block.Block values, and a DocumentActor -- not the
// WebSocket handler -- is the only thing allowed to touch the
// underlying engine.Engine (spec.md §5: "not safe for concurrent use
// by multiple goroutines").
package gossip

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Upgrader is shared across documents, mirroring the teacher's package-level
// var of the same name in both agent/main.go and server/main.go.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one connected peer's WebSocket, identical in shape to the
// teacher's agent/main.go Client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub maintains the set of clients subscribed to one document and
// broadcasts bytes to all of them (teacher's agent/main.go Hub).
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	// Incoming carries a message read from any client, tagged with its
	// sender. DocumentActor does not read From: the block it relays is
	// broadcast to every client, the sender included.
	Incoming chan IncomingMessage
}

// IncomingMessage is one payload read off a client's WebSocket.
type IncomingMessage struct {
	From    *Client
	Payload []byte
}

// NewHub returns an unstarted hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Incoming:   make(chan IncomingMessage, 64),
	}
}

// Run is the hub's event loop (teacher's agent/main.go Hub.run), owning
// the clients map so register/unregister/broadcast never race.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("gossip: client registered, %d total", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("gossip: client unregistered, %d total", len(h.clients))
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Serve upgrades an HTTP request to a WebSocket and registers the
// resulting client with the hub (teacher's agent/main.go serveWs).
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("gossip: upgrade failed:", err)
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 256), hub: h}
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// Dial connects outward to another peer's /docs/{id}/ws endpoint and
// registers the resulting connection as an ordinary client, so a block
// this hub broadcasts reaches dialed peers the same way it reaches
// browser-side WebSocket clients. This is how two cambria-agent
// processes that found each other via mDNS end up gossiping blocks
// without going through the server at all.
func (h *Hub) Dial(url string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}
	client := &Client{conn: conn, send: make(chan []byte, 256), hub: h}
	h.register <- client
	go client.writePump()
	go client.readPump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.hub.Incoming <- IncomingMessage{From: c, Payload: message}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
