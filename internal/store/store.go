package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
	"github.com/sawdustofmind/cricket-live-scoring/internal/models"
)

var (
	ErrNotFound          = errors.New("match not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("invalid match state")
	ErrMatchCompleted    = errors.New("match is closed to scoring")
)

// allowedTransitions is the status transition table. Setting the current
// status again is treated as a no-op success.
var allowedTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.StatusScheduled:  {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled, models.StatusAbandoned},
}

// terminal reports whether a status closes the match to scoring mutations.
func terminal(s models.MatchStatus) bool {
	switch s {
	case models.StatusCompleted, models.StatusCancelled, models.StatusAbandoned:
		return true
	}
	return false
}

// ensureOpen rejects scoring mutations once the match has reached a
// terminal status. Earlier innings are already immutable; this closes the
// last one too.
func ensureOpen(m *models.Match) error {
	if terminal(m.Status) {
		return fmt.Errorf("%w: status %s", ErrMatchCompleted, m.Status)
	}
	return nil
}

// Store is the sole authority over live match state. Mutations for the same
// match are serialized by a per-match mutex; matches never share a lock, so
// updates to different matches proceed in parallel. All mutations are
// copy-on-write: the stored *Match pointer is swapped, never written through.
type Store struct {
	mu      sync.RWMutex
	matches map[string]*models.Match
	locks   map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		matches: make(map[string]*models.Match),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Create allocates a new scheduled match and returns it.
func (s *Store) Create(teamA, teamB, format string, oversLimit int) *models.Match {
	now := time.Now().UTC()
	m := &models.Match{
		ID:         uuid.NewString(),
		TeamA:      teamA,
		TeamB:      teamB,
		Format:     format,
		OversLimit: oversLimit,
		Status:     models.StatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
		Innings:    []models.Innings{},
	}

	s.mu.Lock()
	s.matches[m.ID] = m
	s.locks[m.ID] = &sync.Mutex{}
	s.mu.Unlock()

	log.Info("Match created",
		zap.String("match_id", m.ID),
		zap.String("team_a", teamA),
		zap.String("team_b", teamB),
		zap.String("format", format),
	)
	return m
}

// Get returns the current state of one match.
func (s *Store) Get(id string) (*models.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	return m, ok
}

// Has reports whether a match id is known. Satisfies hub.Knower.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// List returns all matches, newest first.
func (s *Store) List() []*models.Match {
	s.mu.RLock()
	out := make([]*models.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// mutate runs fn against a clone of the match under its lock and, if fn
// succeeds, swaps the stored pointer to the clone. fn must not block on I/O.
func (s *Store) mutate(id string, fn func(*models.Match) error) (*models.Match, error) {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	cur := s.matches[id]
	s.mu.RUnlock()

	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.matches[id] = next
	s.mu.Unlock()

	return next, nil
}

// SetStatus moves the match to a new lifecycle status, enforcing the
// transition table.
func (s *Store) SetStatus(id string, status models.MatchStatus) (*models.Match, error) {
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	return s.mutate(id, func(m *models.Match) error {
		if m.Status == status {
			return nil
		}
		for _, next := range allowedTransitions[m.Status] {
			if next == status {
				m.Status = status
				return nil
			}
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, status)
	})
}

// SetAdmin assigns the owning admin.
func (s *Store) SetAdmin(id, adminID string) (*models.Match, error) {
	return s.mutate(id, func(m *models.Match) error {
		m.AdminID = adminID
		return nil
	})
}

// ApplyScoreUpdate replaces the cumulative figures of the innings in
// progress and the match's derived position from upd.
func (s *Store) ApplyScoreUpdate(id string, upd models.ScoreUpdate) (*models.Match, error) {
	return s.mutate(id, func(m *models.Match) error {
		if err := ensureOpen(m); err != nil {
			return err
		}
		if len(m.Innings) == 0 {
			return nil
		}
		inn := &m.Innings[len(m.Innings)-1]

		inn.Runs = upd.Runs
		inn.Wickets = upd.Wickets
		inn.Overs = upd.Overs
		inn.RunRate = models.RunRate(inn.Runs, inn.Overs)

		if upd.Striker != nil {
			setStriker(inn, *upd.Striker)
			m.CurrentBatsman = upd.Striker.Name
		}
		if upd.LastBall != nil {
			recordBall(inn, *upd.LastBall)
		}

		m.CurrentRunRate = inn.RunRate
		m.CurrentOver = int(inn.Overs)
		m.CurrentBall = int(math.Round(inn.Overs*10)) % 10
		refreshChase(m)

		return validateInnings(m, *inn)
	})
}

// UpsertInnings replaces the innings with the same number, or appends a new
// one. Appending a second innings sets the chase target from the first.
func (s *Store) UpsertInnings(id string, innings models.Innings) (*models.Match, error) {
	return s.mutate(id, func(m *models.Match) error {
		if err := ensureOpen(m); err != nil {
			return err
		}
		recomputeInnings(&innings)
		if err := validateInnings(m, innings); err != nil {
			return err
		}

		for i := range m.Innings {
			if m.Innings[i].Number == innings.Number {
				m.Innings[i] = innings
				// Rewriting the first innings moves the chase target.
				if len(m.Innings) >= 2 {
					m.Target = m.Innings[0].Runs + 1
					refreshChase(m)
				}
				return nil
			}
		}

		m.Innings = append(m.Innings, innings)
		m.CurrentInnings = len(m.Innings) - 1
		if len(m.Innings) == 2 {
			m.Target = m.Innings[0].Runs + 1
			refreshChase(m)
		}
		return nil
	})
}

// SetCurrentBowler records who is bowling and makes the flag exclusive
// across the active innings' bowlers.
func (s *Store) SetCurrentBowler(id string, b models.Bowler) (*models.Match, error) {
	return s.mutate(id, func(m *models.Match) error {
		if err := ensureOpen(m); err != nil {
			return err
		}
		m.CurrentBowler = b.Name
		if len(m.Innings) == 0 {
			return nil
		}
		inn := &m.Innings[len(m.Innings)-1]

		b.Bowling = true
		b.Economy = models.RunRate(b.RunsConceded, b.Overs)
		found := false
		for i := range inn.Bowlers {
			if inn.Bowlers[i].Name == b.Name {
				inn.Bowlers[i] = b
				found = true
			} else {
				inn.Bowlers[i].Bowling = false
			}
		}
		if !found {
			inn.Bowlers = append(inn.Bowlers, b)
		}
		return nil
	})
}

// SetCurrentBatsman records who is on strike and makes the flag exclusive
// across the active innings' batsmen.
func (s *Store) SetCurrentBatsman(id string, b models.Batsman) (*models.Match, error) {
	return s.mutate(id, func(m *models.Match) error {
		if err := ensureOpen(m); err != nil {
			return err
		}
		m.CurrentBatsman = b.Name
		if len(m.Innings) == 0 {
			return nil
		}
		setStriker(&m.Innings[len(m.Innings)-1], b)
		return nil
	})
}

func setStriker(inn *models.Innings, b models.Batsman) {
	b.OnStrike = true
	b.StrikeRate = models.StrikeRate(b.Runs, b.Balls)
	found := false
	for i := range inn.Batsmen {
		if inn.Batsmen[i].Name == b.Name {
			inn.Batsmen[i] = b
			found = true
		} else {
			inn.Batsmen[i].OnStrike = false
		}
	}
	if !found {
		inn.Batsmen = append(inn.Batsmen, b)
	}
}

// recordBall appends a delivery to the over in progress, starting a new over
// when the delivery restarts the ball count. A delivery without a ball
// number continues the current over.
func recordBall(inn *models.Innings, ball models.Ball) {
	extras := 0
	if ball.Wide || ball.NoBall || ball.Bye || ball.LegBye {
		extras = 1
	}

	if len(inn.OverHistory) == 0 || ball.Number == 1 {
		bowler := ""
		for _, b := range inn.Bowlers {
			if b.Bowling {
				bowler = b.Name
			}
		}
		inn.OverHistory = append(inn.OverHistory, models.Over{
			Number: len(inn.OverHistory) + 1,
			Bowler: bowler,
		})
	}

	over := &inn.OverHistory[len(inn.OverHistory)-1]
	over.Balls = append(over.Balls, ball)
	over.Runs += ball.Runs
	over.Extras += extras
	if ball.Wicket {
		over.Wickets++
	}

	switch {
	case ball.Wide:
		inn.Extras.Wides++
	case ball.NoBall:
		inn.Extras.NoBalls++
	case ball.Bye:
		inn.Extras.Byes++
	case ball.LegBye:
		inn.Extras.LegByes++
	}
	inn.Extras.Total = inn.Extras.Sum()
}

// refreshChase recomputes target pressure figures for a second innings.
func refreshChase(m *models.Match) {
	if m.Target == 0 || len(m.Innings) < 2 {
		return
	}
	inn := m.Innings[len(m.Innings)-1]
	remaining := float64(m.OversLimit) - inn.Overs
	if remaining <= 0 {
		m.RequiredRunRate = 0
		return
	}
	need := m.Target - inn.Runs
	if need <= 0 {
		m.RequiredRunRate = 0
		return
	}
	m.RequiredRunRate = float64(need) / remaining
}

func recomputeInnings(inn *models.Innings) {
	inn.RunRate = models.RunRate(inn.Runs, inn.Overs)
	for i := range inn.Batsmen {
		inn.Batsmen[i].StrikeRate = models.StrikeRate(inn.Batsmen[i].Runs, inn.Batsmen[i].Balls)
	}
	for i := range inn.Bowlers {
		inn.Bowlers[i].Economy = models.RunRate(inn.Bowlers[i].RunsConceded, inn.Bowlers[i].Overs)
	}
}

func validateInnings(m *models.Match, inn models.Innings) error {
	if inn.Wickets < 0 || inn.Wickets > models.MaxWickets {
		return fmt.Errorf("%w: wickets %d out of range", ErrInvalidState, inn.Wickets)
	}
	if inn.Overs < 0 || inn.Overs > float64(m.OversLimit) {
		return fmt.Errorf("%w: overs %.1f exceeds limit %d", ErrInvalidState, inn.Overs, m.OversLimit)
	}
	if inn.Runs < 0 {
		return fmt.Errorf("%w: negative runs", ErrInvalidState)
	}
	if inn.Extras.Total != inn.Extras.Sum() {
		return fmt.Errorf("%w: extras total %d != sum %d", ErrInvalidState, inn.Extras.Total, inn.Extras.Sum())
	}
	return nil
}
