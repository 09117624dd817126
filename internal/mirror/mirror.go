// Package mirror keeps the latest state of every match in Redis so
// dashboards and other read-side consumers can poll current scores without
// holding a WebSocket. The in-memory store stays authoritative; mirror
// writes are best-effort and never block a mutation.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
	"github.com/sawdustofmind/cricket-live-scoring/internal/models"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

type Mirror struct {
	redisClient *redis.Client
	queue       chan *models.Match
	done        chan struct{}
}

// New connects to Redis and starts the publish loop. A nil *Mirror is a
// valid no-op mirror, so callers need no enabled/disabled branching.
func New(redisAddr string) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Successfully connected to Redis", zap.String("address", redisAddr))
	m := &Mirror{
		redisClient: client,
		queue:       make(chan *models.Match, queueSize),
		done:        make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// Publish enqueues the latest match state. It never blocks: when the queue
// is full the update is dropped, because only the newest state matters.
func (m *Mirror) Publish(match *models.Match) {
	if m == nil {
		return
	}
	select {
	case m.queue <- match:
	default:
		log.Warn("Mirror queue full, dropping update", zap.String("match_id", match.ID))
	}
}

func (m *Mirror) run() {
	for {
		select {
		case <-m.done:
			return
		case match := <-m.queue:
			if err := m.store(match); err != nil {
				log.Error("Failed to mirror match state",
					zap.String("match_id", match.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (m *Mirror) store(match *models.Match) error {
	runs, wickets := 0, 0
	overs := 0.0
	if len(match.Innings) > 0 {
		inn := match.Innings[len(match.Innings)-1]
		runs, wickets, overs = inn.Runs, inn.Wickets, inn.Overs
	}

	key := fmt.Sprintf("match:%s", match.ID)
	scoreData := map[string]interface{}{
		"team_a":       match.TeamA,
		"team_b":       match.TeamB,
		"match_status": string(match.Status),
		"runs":         runs,
		"wickets":      wickets,
		"overs":        overs,
		"timestamp":    match.UpdatedAt.Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := m.redisClient.HSet(ctx, key, scoreData).Err(); err != nil {
		return fmt.Errorf("failed to store latest score: %w", err)
	}

	log.Debug("Mirrored match state", zap.String("match_id", match.ID))
	return nil
}

func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	close(m.done)
	return m.redisClient.Close()
}
