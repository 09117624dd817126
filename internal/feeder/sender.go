package feeder

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
	"github.com/sawdustofmind/cricket-live-scoring/internal/models"
)

// Sender replays recorded command frames into one match's WebSocket.
type Sender struct {
	serverURL       string
	matchID         string
	snapshotTimeout time.Duration
	conn            *websocket.Conn
}

func NewSender(serverURL, matchID string) *Sender {
	return &Sender{
		serverURL:       serverURL,
		matchID:         matchID,
		snapshotTimeout: 10 * time.Second,
	}
}

// Connect dials the match's WebSocket and waits for the initial snapshot.
func (s *Sender) Connect(ctx context.Context) error {
	url := fmt.Sprintf("%s/ws/%s", s.serverURL, s.matchID)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	s.conn = conn

	// A server that upgrades but never sends the snapshot must not hang us.
	conn.SetReadDeadline(time.Now().Add(s.snapshotTimeout))

	var first models.ServerMessage
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return fmt.Errorf("failed to read initial frame: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if first.Type == models.MsgError {
		conn.Close()
		return fmt.Errorf("server rejected connection: %s: %s", first.Code, first.Message)
	}
	if first.Type != models.MsgSnapshot {
		conn.Close()
		return fmt.Errorf("expected snapshot, got %q", first.Type)
	}

	log.Info("Connected to match",
		zap.String("match_id", s.matchID),
		zap.String("status", string(first.Match.Status)),
	)

	// Drain server frames so broadcasts do not back up the connection.
	go s.readLoop()
	return nil
}

func (s *Sender) readLoop() {
	for {
		var msg models.ServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case models.MsgUpdate:
			log.Debug("Received update", zap.String("match_id", s.matchID))
		case models.MsgError:
			log.Warn("Server reported error",
				zap.String("code", msg.Code),
				zap.String("message", msg.Message),
			)
		}
	}
}

// ReplayCommands sends each command in order, pacing them by speed.
func (s *Sender) ReplayCommands(ctx context.Context, commands []ParsedCommand, speed time.Duration) error {
	lastSent := time.Time{}

	for _, cmd := range commands {
		now := time.Now()
		if !lastSent.IsZero() && now.Sub(lastSent) <= speed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(speed - now.Sub(lastSent)):
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := s.conn.WriteMessage(websocket.TextMessage, cmd.Raw); err != nil {
			return fmt.Errorf("failed to send command at line %d: %w", cmd.LineNumber, err)
		}

		log.Info("Sent command",
			zap.Int("line_number", cmd.LineNumber),
			zap.String("command_type", cmd.Command.Type),
		)
		lastSent = time.Now()
	}

	return nil
}

func (s *Sender) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
