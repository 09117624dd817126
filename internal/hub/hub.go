// Package hub tracks which live WebSocket connections are watching which
// match and fans match updates out to them.
package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
)

// Knower answers whether a match id exists. The store satisfies it; tests
// stub it.
type Knower interface {
	Has(id string) bool
}

// Sender is the hub's view of a viewer connection.
type Sender interface {
	// Send delivers one outbound frame.
	Send(payload []byte) error
	// Close tears the connection down with a close code and reason.
	Close(code int, reason string) error
}

// Conn is one registered viewer connection. Writes are serialized by a
// mutex because gorilla/websocket allows only one concurrent writer.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// Send writes one text frame, bounded by the write timeout.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Ping writes a ping control frame, bounded by the write timeout.
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close closes the underlying socket after attempting a close frame with the
// given code and reason.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.writeTimeout))
	c.mu.Unlock()
	return c.ws.Close()
}

// Hub keeps a per-match set of live connections. Broadcast cost is
// proportional to the viewers of one match, not to total server load.
type Hub struct {
	matches Knower

	mu    sync.RWMutex
	conns map[string]map[Sender]struct{}
}

func New(matches Knower) *Hub {
	return &Hub{
		matches: matches,
		conns:   make(map[string]map[Sender]struct{}),
	}
}

// Register adds conn to the match's viewer set. It returns false, without
// registering, when the match id is unknown.
func (h *Hub) Register(matchID string, conn Sender) bool {
	if !h.matches.Has(matchID) {
		return false
	}

	h.mu.Lock()
	set, ok := h.conns[matchID]
	if !ok {
		set = make(map[Sender]struct{})
		h.conns[matchID] = set
	}
	set[conn] = struct{}{}
	count := len(set)
	h.mu.Unlock()

	log.Debug("Connection registered",
		zap.String("match_id", matchID),
		zap.Int("viewers", count),
	)
	return true
}

// Unregister removes conn from the match's viewer set. Calling it again for
// the same pair is a no-op.
func (h *Hub) Unregister(matchID string, conn Sender) {
	h.mu.Lock()
	if set, ok := h.conns[matchID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, matchID)
		}
	}
	h.mu.Unlock()
}

// Viewers returns the number of live connections for a match.
func (h *Hub) Viewers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[matchID])
}

// Broadcast delivers payload to every connection registered for the match.
// A failed send drops that connection only; the remaining deliveries
// proceed and the caller never sees the failure.
func (h *Hub) Broadcast(matchID string, payload []byte) {
	h.mu.RLock()
	snapshot := make([]Sender, 0, len(h.conns[matchID]))
	for conn := range h.conns[matchID] {
		snapshot = append(snapshot, conn)
	}
	h.mu.RUnlock()

	for _, conn := range snapshot {
		if err := conn.Send(payload); err != nil {
			log.Warn("Dropping viewer after failed delivery",
				zap.String("match_id", matchID),
				zap.Error(err),
			)
			h.Unregister(matchID, conn)
			conn.Close(websocket.CloseGoingAway, "delivery failed")
		}
	}
}
