package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/hub"
	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
	"github.com/sawdustofmind/cricket-live-scoring/internal/models"
	"github.com/sawdustofmind/cricket-live-scoring/internal/store"
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if s.cfg.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == s.cfg.AllowedOrigin
		},
	}
}

// websocketHandler owns one viewer connection: handshake, snapshot, read
// loop, keepalive and teardown.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	up := s.upgrader()
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", zap.String("match_id", matchID), zap.Error(err))
		return
	}

	conn := hub.NewConn(ws, s.cfg.WriteTimeout)

	if !s.hub.Register(matchID, conn) {
		s.sendError(conn, models.ErrCodeMatchNotFound, "no match with id "+matchID)
		conn.Close(websocket.ClosePolicyViolation, "cannot accept: unknown match")
		return
	}
	// Teardown must run however the loop ends.
	defer func() {
		s.hub.Unregister(matchID, conn)
		conn.Close(websocket.CloseNormalClosure, "")
		log.Debug("Connection closed", zap.String("match_id", matchID))
	}()

	m, ok := s.store.Get(matchID)
	if !ok {
		// Registered but gone between the two lookups; treat as rejected.
		s.sendError(conn, models.ErrCodeMatchNotFound, "no match with id "+matchID)
		return
	}
	if err := s.send(conn, models.SnapshotMessage(m)); err != nil {
		log.Warn("Failed to send initial snapshot", zap.String("match_id", matchID), zap.Error(err))
		return
	}

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, matchID, done)

	ws.SetReadLimit(s.cfg.MaxFrameSize)
	ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Read failed", zap.String("match_id", matchID), zap.Error(err))
			}
			return
		}
		s.dispatch(matchID, conn, data)
	}
}

// pingLoop probes the viewer on a fixed interval. A viewer that stops
// answering trips the read deadline and the read loop tears the
// connection down.
func (s *Server) pingLoop(conn *hub.Conn, matchID string, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				log.Debug("Ping failed", zap.String("match_id", matchID), zap.Error(err))
				return
			}
		}
	}
}

// dispatch decodes one inbound frame and applies it. A bad frame answers
// with an error and keeps the connection open; a store failure is reported
// to the sender only; a successful mutation is broadcast to every viewer.
func (s *Server) dispatch(matchID string, conn *hub.Conn, data []byte) {
	cmd, err := models.DecodeCommand(data)
	if err != nil {
		log.Warn("Invalid command frame", zap.String("match_id", matchID), zap.Error(err))
		s.sendError(conn, models.ErrCodeInvalidMessage, err.Error())
		return
	}

	var m *models.Match
	switch cmd.Type {
	case models.CmdHeartbeat:
		return
	case models.CmdRequestSnapshot:
		cur, ok := s.store.Get(matchID)
		if !ok {
			s.sendError(conn, models.ErrCodeMatchNotFound, "no match with id "+matchID)
			return
		}
		if err := s.send(conn, models.SnapshotMessage(cur)); err != nil {
			log.Warn("Failed to send snapshot", zap.String("match_id", matchID), zap.Error(err))
		}
		return
	case models.CmdScoreUpdate:
		m, err = s.store.ApplyScoreUpdate(matchID, *cmd.Score)
	case models.CmdUpdateInnings:
		m, err = s.store.UpsertInnings(matchID, *cmd.Innings)
	case models.CmdUpdateBowler:
		m, err = s.store.SetCurrentBowler(matchID, *cmd.Bowler)
	case models.CmdUpdateBatsman:
		m, err = s.store.SetCurrentBatsman(matchID, *cmd.Batsman)
	}

	if err != nil {
		s.sendError(conn, storeErrorCode(err), err.Error())
		return
	}
	s.broadcastUpdate(m)
}

func storeErrorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.ErrCodeMatchNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return models.ErrCodeInvalidTransition
	case errors.Is(err, store.ErrMatchCompleted):
		return models.ErrCodeMatchCompleted
	default:
		return models.ErrCodeInvalidState
	}
}

func (s *Server) send(conn *hub.Conn, msg models.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Send(payload)
}

func (s *Server) sendError(conn *hub.Conn, code, message string) {
	if err := s.send(conn, models.ErrorMessage(code, message)); err != nil {
		log.Debug("Failed to send error frame", zap.String("code", code), zap.Error(err))
	}
}
