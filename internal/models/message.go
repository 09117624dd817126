package models

import (
	"encoding/json"
	"fmt"
)

// Client -> server command types.
const (
	CmdHeartbeat       = "heartbeat"
	CmdRequestSnapshot = "request_snapshot"
	CmdScoreUpdate     = "score_update"
	CmdUpdateInnings   = "update_innings"
	CmdUpdateBowler    = "update_bowler"
	CmdUpdateBatsman   = "update_batsman"
)

// Server -> client message types.
const (
	MsgSnapshot = "snapshot"
	MsgUpdate   = "update"
	MsgError    = "error"
)

// Error codes carried by MsgError frames.
const (
	ErrCodeInvalidMessage    = "invalid_message"
	ErrCodeMatchNotFound     = "match_not_found"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeInvalidState      = "invalid_state"
	ErrCodeMatchCompleted    = "match_completed"
)

// Command is an inbound frame. Exactly one payload pointer is set, selected
// by Type; heartbeat and request_snapshot carry none.
type Command struct {
	Type    string       `json:"type"`
	Score   *ScoreUpdate `json:"score,omitempty"`
	Innings *Innings     `json:"innings,omitempty"`
	Bowler  *Bowler      `json:"bowler,omitempty"`
	Batsman *Batsman     `json:"batsman,omitempty"`
}

// ScoreUpdate carries the cumulative figures for the innings in progress,
// plus optionally the batsman now on strike and the delivery just bowled.
type ScoreUpdate struct {
	Runs     int      `json:"runs"`
	Wickets  int      `json:"wickets"`
	Overs    float64  `json:"overs"`
	Striker  *Batsman `json:"striker,omitempty"`
	LastBall *Ball    `json:"last_ball,omitempty"`
}

// DecodeCommand parses an inbound frame and checks that the payload matching
// its type is present.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to parse command: %w", err)
	}

	switch cmd.Type {
	case CmdHeartbeat, CmdRequestSnapshot:
		return cmd, nil
	case CmdScoreUpdate:
		if cmd.Score == nil {
			return Command{}, fmt.Errorf("%s command missing score payload", cmd.Type)
		}
	case CmdUpdateInnings:
		if cmd.Innings == nil {
			return Command{}, fmt.Errorf("%s command missing innings payload", cmd.Type)
		}
	case CmdUpdateBowler:
		if cmd.Bowler == nil {
			return Command{}, fmt.Errorf("%s command missing bowler payload", cmd.Type)
		}
	case CmdUpdateBatsman:
		if cmd.Batsman == nil {
			return Command{}, fmt.Errorf("%s command missing batsman payload", cmd.Type)
		}
	default:
		return Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return cmd, nil
}

// ServerMessage is an outbound frame.
type ServerMessage struct {
	Type    string `json:"type"`
	Match   *Match `json:"match,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func SnapshotMessage(m *Match) ServerMessage {
	return ServerMessage{Type: MsgSnapshot, Match: m}
}

func UpdateMessage(m *Match) ServerMessage {
	return ServerMessage{Type: MsgUpdate, Match: m}
}

func ErrorMessage(code, message string) ServerMessage {
	return ServerMessage{Type: MsgError, Code: code, Message: message}
}
