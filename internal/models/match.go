package models

import "time"

// MaxWickets is the most wickets a side can lose in an innings.
const MaxWickets = 10

type MatchStatus string

const (
	StatusScheduled  MatchStatus = "scheduled"
	StatusInProgress MatchStatus = "in_progress"
	StatusCompleted  MatchStatus = "completed"
	StatusCancelled  MatchStatus = "cancelled"
	StatusAbandoned  MatchStatus = "abandoned"
)

// ValidStatus reports whether s is one of the known match statuses.
func ValidStatus(s MatchStatus) bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusAbandoned:
		return true
	}
	return false
}

// Match is one live scoring session. Mutations replace the whole value
// (copy-on-write), so a *Match handed out by the store is never written again.
type Match struct {
	ID         string      `json:"id"`
	TeamA      string      `json:"team_a"`
	TeamB      string      `json:"team_b"`
	Format     string      `json:"format"`
	OversLimit int         `json:"overs_limit"`
	Status     MatchStatus `json:"status"`
	AdminID    string      `json:"admin_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`

	Innings        []Innings `json:"innings"`
	CurrentInnings int       `json:"current_innings"`
	CurrentOver    int       `json:"current_over"`
	CurrentBall    int       `json:"current_ball"`

	Target          int     `json:"target,omitempty"`
	RequiredRunRate float64 `json:"required_run_rate,omitempty"`
	CurrentRunRate  float64 `json:"current_run_rate"`

	CurrentBatsman string `json:"current_batsman,omitempty"`
	CurrentBowler  string `json:"current_bowler,omitempty"`
}

// Innings is one team's batting phase. Only the last innings of a match is
// ever open for mutation.
type Innings struct {
	Number      int       `json:"number"`
	BattingTeam string    `json:"batting_team"`
	BowlingTeam string    `json:"bowling_team"`
	Runs        int       `json:"runs"`
	Wickets     int       `json:"wickets"`
	Overs       float64   `json:"overs"`
	RunRate     float64   `json:"run_rate"`
	Batsmen     []Batsman `json:"batsmen"`
	Bowlers     []Bowler  `json:"bowlers"`
	OverHistory []Over    `json:"over_history"`
	Extras      Extras    `json:"extras"`
	Completed   bool      `json:"completed"`
}

type Batsman struct {
	Name       string  `json:"name"`
	Runs       int     `json:"runs"`
	Balls      int     `json:"balls"`
	Fours      int     `json:"fours"`
	Sixes      int     `json:"sixes"`
	StrikeRate float64 `json:"strike_rate"`
	Out        bool    `json:"out"`
	OnStrike   bool    `json:"on_strike"`
}

type Bowler struct {
	Name         string  `json:"name"`
	Overs        float64 `json:"overs"`
	Maidens      int     `json:"maidens"`
	RunsConceded int     `json:"runs_conceded"`
	Wickets      int     `json:"wickets"`
	Economy      float64 `json:"economy"`
	Bowling      bool    `json:"bowling"`
}

type Over struct {
	Number  int    `json:"number"`
	Bowler  string `json:"bowler"`
	Balls   []Ball `json:"balls"`
	Runs    int    `json:"runs"`
	Wickets int    `json:"wickets"`
	Extras  int    `json:"extras"`
}

type Ball struct {
	Number           int    `json:"number"`
	Runs             int    `json:"runs"`
	Wide             bool   `json:"wide,omitempty"`
	NoBall           bool   `json:"no_ball,omitempty"`
	Bye              bool   `json:"bye,omitempty"`
	LegBye           bool   `json:"leg_bye,omitempty"`
	Wicket           bool   `json:"wicket,omitempty"`
	WicketType       string `json:"wicket_type,omitempty"`
	DismissedBatsman string `json:"dismissed_batsman,omitempty"`
}

type Extras struct {
	Wides   int `json:"wides"`
	NoBalls int `json:"no_balls"`
	Byes    int `json:"byes"`
	LegByes int `json:"leg_byes"`
	Total   int `json:"total"`
}

// Sum returns the per-category total, which Extras.Total must always equal.
func (e Extras) Sum() int {
	return e.Wides + e.NoBalls + e.Byes + e.LegByes
}

// StrikeRate returns runs per hundred balls, 0 when no ball has been faced.
func StrikeRate(runs, balls int) float64 {
	if balls == 0 {
		return 0
	}
	return float64(runs) * 100 / float64(balls)
}

// RunRate returns runs per over, 0 when no over has been bowled.
func RunRate(runs int, overs float64) float64 {
	if overs == 0 {
		return 0
	}
	return float64(runs) / overs
}
