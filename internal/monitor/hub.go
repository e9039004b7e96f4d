package monitor

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// MessageTypeFrame carries a *Frame.
const MessageTypeFrame = "frame"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 16
)

// Message is the websocket envelope.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub fans frames out to connected websocket clients. Slow clients whose
// send queue fills are dropped.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	nextID     atomic.Uint64
	done       chan struct{}

	// welcome, if set, is sent to each client as soon as it registers.
	welcome func() *Message
}

// NewHub returns a Hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// OnConnect sets a function whose message, if non-nil, is sent to each
// client as soon as it registers. Call before Run.
func (h *Hub) OnConnect(fn func() *Message) {
	h.welcome = fn
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client. A Hub runs at most once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAll()
			diagf("websocket hub stopped, %d clients closed", n)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			if h.welcome != nil {
				if msg := h.welcome(); msg != nil {
					select {
					case c.send <- *msg:
					default:
					}
				}
			}
			diagf("websocket client %d connected (%d total)", c.id, n)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			diagf("websocket client %d disconnected (%d total)", c.id, n)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Broadcast queues msg for every client. It never blocks; if the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		opsf("websocket broadcast queue full, dropping %s message", msg.Type)
	}
}

// PublishFrame broadcasts f. It matches Monitor.Subscribe.
func (h *Hub) PublishFrame(f *Frame) {
	h.Broadcast(Message{Type: MessageTypeFrame, Data: f})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver sends msg to clients in connection order.
func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sortedLocked() {
		select {
		case c.send <- msg:
		default:
			opsf("websocket client %d too slow, disconnecting", c.id)
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sortedLocked() {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) sortedLocked() []*client {
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ServeWS upgrades the request and attaches a client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		diagf("websocket upgrade failed: %v", err)
		return
	}
	c := &client{
		id:   h.nextID.Add(1),
		hub:  h,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	go c.writePump()
	go c.readPump()

	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

type client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; anything they send is read and discarded so
	// control frames keep being processed.
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				opsf("websocket client %d: %v", c.id, err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
