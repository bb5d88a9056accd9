// Package ws streams draw events to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/drawevent"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64

	// historySize is how many recent events a new client is sent.
	historySize = 20
)

// History returns recent draw events, oldest first.
type History interface {
	Recent(ctx context.Context, count int) ([]domain.DrawEvent, error)
}

// client is one websocket connection. An empty subs set means every
// competition.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	subs map[string]bool
}

// subscribeMsg narrows or widens the competitions a client follows.
type subscribeMsg struct {
	Action       string   `json:"action"` // "subscribe" or "unsubscribe"
	Competitions []string `json:"competitions"`
}

// outbound is the frame written to clients.
type outbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type broadcastMsg struct {
	competitionID string
	data          []byte
}

// Hub bridges the draw event channel to connected websocket clients.
type Hub struct {
	bus      domain.EventBus
	history  History
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a Hub. history may be nil. Upgrades are accepted from the
// given origins, or from any origin when the list is empty.
func NewHub(bus domain.EventBus, history History, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		bus:        bus,
		history:    history,
		logger:     logger.With(slog.String("component", "ws_hub")),
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return originAllowed(allowedOrigins, r.Header.Get("Origin")) },
	}
	return h
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Run subscribes to the draw event channel and serves clients until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	events, err := h.bus.Subscribe(ctx, domain.DrawEventsChannel)
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "ws: subscribed", slog.String("channel", domain.DrawEventsChannel))

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case payload, ok := <-events:
			if !ok {
				h.logger.WarnContext(ctx, "ws: event subscription closed")
				events = nil
				continue
			}
			msg, err := frame(payload)
			if err != nil {
				h.logger.WarnContext(ctx, "ws: dropping undecodable event", slog.String("error", err.Error()))
				continue
			}
			h.fanOut(msg)

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))
		}
	}
}

func (h *Hub) fanOut(msg broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.follows(msg.competitionID) {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			h.logger.Warn("ws: dropping message for slow client")
		}
	}
}

// frame turns a bus payload into a JSON text frame.
func frame(payload []byte) (broadcastMsg, error) {
	ev, err := drawevent.Decode(payload)
	if err != nil {
		return broadcastMsg{}, err
	}
	js, err := drawevent.JSON(payload)
	if err != nil {
		return broadcastMsg{}, err
	}
	data, err := json.Marshal(outbound{Type: ev.Type, Payload: js})
	if err != nil {
		return broadcastMsg{}, err
	}
	return broadcastMsg{competitionID: ev.CompetitionID, data: data}, nil
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}
	for _, id := range r.URL.Query()["competition"] {
		if id = strings.TrimSpace(id); id != "" {
			c.subs[id] = true
		}
	}

	// History goes out before registration so nothing else can close send.
	h.sendHistory(r.Context(), c)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// sendHistory replays recent events the client follows.
func (h *Hub) sendHistory(ctx context.Context, c *client) {
	if h.history == nil {
		return
	}
	events, err := h.history.Recent(ctx, historySize)
	if err != nil {
		h.logger.WarnContext(ctx, "ws: load history failed", slog.String("error", err.Error()))
		return
	}
	for _, ev := range events {
		if !c.follows(ev.CompetitionID) {
			continue
		}
		payload, err := drawevent.Encode(ev)
		if err != nil {
			continue
		}
		msg, err := frame(payload)
		if err != nil {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			return
		}
	}
}

func (c *client) follows(competitionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0 || c.subs[competitionID]
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		for _, id := range msg.Competitions {
			c.subs[id] = true
		}
	case "unsubscribe":
		for _, id := range msg.Competitions {
			delete(c.subs, id)
		}
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if json.Unmarshal(message, &sub) == nil && sub.Action != "" {
			c.apply(sub)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
