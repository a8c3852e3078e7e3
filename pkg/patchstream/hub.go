package patchstream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Observer receives subscriber and frame events.
type Observer interface {
	SubscriberAdded()
	SubscriberRemoved()
	FrameSent()
	StreamError(kind string)
}

type nopObserver struct{}

func (nopObserver) SubscriberAdded()   {}
func (nopObserver) SubscriberRemoved() {}
func (nopObserver) FrameSent()         {}
func (nopObserver) StreamError(string) {}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithObserver sets the hub observer.
func WithObserver(o Observer) HubOption {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithHubLogger sets the logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin sets the origin check of the websocket upgrade. The
// default allows every origin.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithWriteTimeout bounds how long a single frame write may block.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithSendQueue sets how many frames may wait for one subscriber. A
// subscriber whose queue is full is dropped.
func WithSendQueue(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// DefaultSendQueue is the per-subscriber frame queue length.
const DefaultSendQueue = 256

// Hub fans frames out to websocket subscribers. Publish never waits for
// the network: each subscriber has its own queue drained by a writer
// goroutine. Subscribers only listen; anything they send is discarded.
type Hub struct {
	clients      map[*client]struct{}
	mu           sync.RWMutex
	upgrader     websocket.Upgrader
	observer     Observer
	logger       *slog.Logger
	writeTimeout time.Duration
	queueSize    int

	// seqMu orders sequence numbers, registrations and enqueues.
	seqMu sync.Mutex
	seq   uint64
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewHub creates a hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		observer:     nopObserver{},
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
		queueSize:    DefaultSendQueue,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and keeps the subscriber until it
// disconnects. The first frame a subscriber receives is a hello frame
// carrying the current sequence number and the subscriber's ID; every
// later frame has a higher sequence number.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.observer.StreamError("upgrade")
		return
	}
	c := &client{
		id:   uuid.Must(uuid.NewV7()).String(),
		conn: conn,
		send: make(chan []byte, h.queueSize),
		done: make(chan struct{}),
	}

	h.seqMu.Lock()
	c.send <- mustMarshal(Frame{Seq: h.seq, Op: OpHello, Client: c.id})
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.seqMu.Unlock()

	h.observer.SubscriberAdded()
	h.logger.Debug("patchstream: subscriber connected", "client", c.id, "remote", r.RemoteAddr)

	go h.writeLoop(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.logger.Warn("patchstream: read error", "client", c.id, "error", err)
			}
			break
		}
	}
	h.drop(c)
}

// writeLoop writes queued frames until the subscriber is dropped.
func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				select {
				case <-c.done:
				default:
					h.observer.StreamError("write")
				}
				h.drop(c)
				return
			}
			h.observer.FrameSent()

		case <-c.done:
			return
		}
	}
}

// Publish assigns the next sequence number to f and queues it for every
// subscriber. It does not block on the network; a subscriber that cannot
// keep up is dropped.
func (h *Hub) Publish(f Frame) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()

	h.seq++
	f.Seq = h.seq
	data, err := json.Marshal(f)
	if err != nil {
		h.observer.StreamError("encode")
		h.logger.Error("patchstream: encode frame", "op", f.Op, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			h.observer.StreamError("overflow")
			h.logger.Warn("patchstream: subscriber too slow", "client", c.id, "queued", len(c.send))
			h.drop(c)
		}
	}
}

// Seq returns the sequence number of the last published frame.
func (h *Hub) Seq() uint64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	return h.seq
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	if ok {
		h.observer.SubscriberRemoved()
		h.logger.Debug("patchstream: subscriber dropped", "client", c.id)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
		h.drop(c)
	}
}

func mustMarshal(f Frame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return data
}
