package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes a client can use to tell why its socket went away without
// parsing a text frame (spec §4.6).
const (
	closeBadRequest   = 4400
	closeForbidden    = 4403
	closeRoomNotFound = 4404
	closeRoomExpired  = 4410
	closeRateLimited  = 4429
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 54 * time.Second
	pongWait       = 60 * time.Second
	sendBufferSize = 64
)

// Hub is the process-wide websocket registry: one Connection per
// player-room pair, fed by a per-room Bus subscription instead of the
// teacher's polling roomEventLoop — a connection's writePump reads
// directly off its Subscription.Events channel, so a state change reaches
// a socket the moment Publish fans it out rather than on the next tick.
type Hub struct {
	store  *RoomStore
	bus    *Bus
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]map[string]*Connection // roomID -> playerID -> Connection
}

// Connection is one live player socket.
type Connection struct {
	hub       *Hub
	room      *Room
	playerID  string
	conn      *websocket.Conn
	send      chan []byte
	sub       *Subscription
	closeOnce sync.Once
}

// NewHub creates a Hub backed by store and bus.
func NewHub(store *RoomStore, bus *Bus, logger *slog.Logger) *Hub {
	return &Hub{
		store:  store,
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]map[string]*Connection),
	}
}

// ServeWS upgrades the request and attaches the caller to room_code,
// authenticated by the player_token query parameter (spec §4.6).
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	token := r.URL.Query().Get("player_token")
	if code == "" || token == "" {
		http.Error(w, "room code and player_token are required", http.StatusBadRequest)
		return
	}

	room, err := h.store.GetByCode(code)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	room.Lock()
	player := room.playerByToken(token)
	room.Unlock()
	if player == nil {
		http.Error(w, "invalid player token", http.StatusForbidden)
		return
	}

	conn, upgradeErr := h.upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		h.logger.Error("websocket upgrade failed", "error", upgradeErr)
		return
	}

	c := &Connection{
		hub:      h,
		room:     room,
		playerID: player.ID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		sub:      h.bus.Subscribe(room.ID),
	}

	h.register(c)

	if _, _, err := room.SetConnected(player.ID, true); err != nil {
		h.logger.Warn("mark connected failed", "room_id", room.ID, "player_id", player.ID, "error", err)
	}
	c.enqueueSnapshot(room.Snapshot())

	go c.forwardEvents()
	go c.writePump()
	go c.readPump()

	h.logger.Info("websocket connected", "room_id", room.ID, "player_id", player.ID)
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[c.room.ID] == nil {
		h.conns[c.room.ID] = make(map[string]*Connection)
	}
	if old, exists := h.conns[c.room.ID][c.playerID]; exists {
		old.close()
	}
	h.conns[c.room.ID][c.playerID] = c
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomConns, ok := h.conns[c.room.ID]; ok {
		if current, ok := roomConns[c.playerID]; ok && current == c {
			delete(roomConns, c.playerID)
			if len(roomConns) == 0 {
				delete(h.conns, c.room.ID)
			}
		}
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.sub.Close()
		close(c.send)
	})
}

// forwardEvents drains the room's bus subscription onto the connection's
// send buffer until the subscription is closed (on disconnect) or the room
// expires, in which case the socket is closed with a close code instead of
// a normal text frame.
func (c *Connection) forwardEvents() {
	for event := range c.sub.Events {
		switch event.Type {
		case EventRoomExpired:
			c.closeWithCode(closeRoomExpired, "room expired")
			return
		case EventRoomSnapshot:
			c.enqueueSnapshot(event.Payload)
		}
	}
}

func (c *Connection) enqueueSnapshot(snapshot any) {
	payload, err := json.Marshal(RoomEvent{Type: EventRoomSnapshot, Payload: snapshot})
	if err != nil {
		c.hub.logger.Error("marshal snapshot failed", "error", err)
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Warn("send buffer full, dropping snapshot", "room_id", c.room.ID, "player_id", c.playerID)
	}
}

func (c *Connection) closeWithCode(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.hub.unregister(c)
	c.close()
	_ = c.conn.Close()
}

// readPump only exists to detect the socket going away and to answer the
// browser's automatic pong frames; StoryFill has no client-to-server
// websocket commands (every mutation goes through the HTTP surface), so
// any text frame received is simply discarded (spec §4.6).
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		_ = c.conn.Close()
		if _, _, err := c.room.SetConnected(c.playerID, false); err == nil {
			c.armDisconnectGrace()
		}
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// armDisconnectGrace schedules the room's disconnect-reassignment logic to
// run once DisconnectGrace has elapsed, guarded by the generation counter
// SetConnected just bumped so a stale timer from an earlier disconnect
// can't fire after the player reconnected (spec §4.3).
func (c *Connection) armDisconnectGrace() {
	c.room.mu.Lock()
	gen := c.room.disconnectGen[c.playerID]
	grace := c.room.DisconnectGrace()
	c.room.mu.Unlock()

	time.AfterFunc(grace, func() {
		if _, err := c.room.ExpireDisconnect(c.playerID, gen); err != nil {
			c.hub.logger.Warn("expire disconnect failed", "room_id", c.room.ID, "player_id", c.playerID, "error", err)
		}
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
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

// Stop closes every live connection, for graceful shutdown.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, roomConns := range h.conns {
		for _, c := range roomConns {
			c.close()
			_ = c.conn.Close()
		}
	}
	h.conns = make(map[string]map[string]*Connection)
}
