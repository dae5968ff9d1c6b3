// Live updates for players and the admin console.
//
// Every browser holds one websocket (or, for the admin console, optionally an
// SSE stream). Handlers never write to clients directly: they publish a
// change to the feed, and the hub turns changes into messages:
// - game_state changes push the phase to every client
// - any change pushes fresh counters to admin clients

package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/photobingo/internal/bingo"
	"github.com/Seednode/photobingo/internal/feed"
	"github.com/Seednode/photobingo/internal/store"
)

type role int

const (
	rolePlayer role = iota
	roleAdmin
)

// PhaseMessage tells clients the global game phase.
type PhaseMessage struct {
	Type  string      `json:"type"` // "phase"
	Phase bingo.Phase `json:"phase"`
}

// StatsMessage is sent only to admin clients.
type StatsMessage struct {
	Type    string      `json:"type"` // "stats"
	Phase   bingo.Phase `json:"phase"`
	Users   int         `json:"users"`
	Photos  int         `json:"photos"`
	Bingos  int         `json:"bingos"`
	Online  int         `json:"online"`
	Message string      `json:"message,omitempty"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
	role role
}

func newClient(conn *websocket.Conn, r role) *Client {
	return &Client{
		conn: conn,
		send: make(chan any, 8),
		role: r,
	}
}

type Hub struct {
	cfg   *Config
	store *store.Store

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	done     chan struct{}

	mu     sync.RWMutex
	online int
}

func newHub(cfg *Config, st *store.Store) *Hub {
	return &Hub{
		cfg:      cfg,
		store:    st,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		done:     make(chan struct{}),
	}
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

// Online returns the number of connected clients.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online
}

func (h *Hub) run(ctx context.Context, sub *feed.Subscription) {
	defer close(h.done)
	defer h.closeAll()

	events := sub.Events()
	errs := sub.Errors()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setOnline()

			phase, err := h.store.Phase(ctx)
			if err != nil {
				log.Error().Err(err).Msg("HUB: read phase")
			} else {
				h.deliver(c, PhaseMessage{Type: "phase", Phase: phase})
			}

			if c.role == roleAdmin {
				h.deliver(c, h.snapshot(ctx))
			} else {
				h.broadcastStats(ctx)
			}

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setOnline()
				h.broadcastStats(ctx)
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.handleEvent(ctx, ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn().Err(err).Msg("HUB: change feed")
		}
	}
}

func (h *Hub) handleEvent(ctx context.Context, ev feed.Event) {
	logf(h.cfg, "HUB: %s on %s", ev.Op, ev.Table)

	if ev.Table == feed.GameState {
		phase, err := h.store.Phase(ctx)
		if err != nil {
			log.Error().Err(err).Msg("HUB: read phase")
			return
		}

		msg := PhaseMessage{Type: "phase", Phase: phase}
		for c := range h.clients {
			h.deliver(c, msg)
		}
	}

	h.broadcastStats(ctx)
}

// snapshot reads the phase and counters. It is safe to call from handlers.
func (h *Hub) snapshot(ctx context.Context) StatsMessage {
	msg := StatsMessage{
		Type:   "stats",
		Online: h.Online(),
	}

	phase, err := h.store.Phase(ctx)
	if err != nil {
		msg.Message = "unable to read game state"
		log.Error().Err(err).Msg("HUB: read phase")
		return msg
	}
	msg.Phase = phase

	counts, err := h.store.Counts(ctx)
	if err != nil {
		msg.Message = "unable to read counts"
		log.Error().Err(err).Msg("HUB: read counts")
		return msg
	}
	msg.Users = counts.Users
	msg.Photos = counts.Photos
	msg.Bingos = counts.Bingos

	return msg
}

// broadcastStats sends fresh counters to every admin client.
func (h *Hub) broadcastStats(ctx context.Context) {
	admins := false
	for c := range h.clients {
		if c.role == roleAdmin {
			admins = true
			break
		}
	}
	if !admins {
		return
	}

	msg := h.snapshot(ctx)
	for c := range h.clients {
		if c.role == roleAdmin {
			h.deliver(c, msg)
		}
	}
}

// deliver drops clients whose buffers are full.
func (h *Hub) deliver(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
		h.setOnline()
	}
}

func (h *Hub) setOnline() {
	h.mu.Lock()
	h.online = len(h.clients)
	h.mu.Unlock()
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
	h.setOnline()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func serveWS(cfg *Config, h *Hub, r role) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.Warn().Err(err).Msg("HUB: upgrade")
			return
		}

		// Server timeouts still apply to the hijacked connection.
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})

		c := newClient(conn, r)
		if !h.Register(c) {
			_ = conn.Close()
			return
		}

		logf(cfg, "HUB: Client connected from %s", realIP(req))

		go c.writePump()
		c.readPump(h)
	}
}

// readPump discards client messages and unregisters on disconnect.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
