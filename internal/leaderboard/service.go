// Package leaderboard keeps per-mode, windowed score rankings in Redis
// sorted sets and exposes them over HTTP.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/game"
)

// Supported leaderboard windows.
const (
	WindowDaily   = "daily"
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
	WindowAllTime = "all_time"
)

var defaultWindows = []string{WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime}

// Entry is one leaderboard row.
type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Games    int    `json:"games"`
	Best     int    `json:"best"`
}

// ServiceOptions configures leaderboard behavior. Zero values pick defaults.
type ServiceOptions struct {
	TopN     int
	EntryTTL time.Duration
	Prefix   string
	Windows  []string
}

// Service records final scores and serves rankings. It implements the
// engine's ScoreRecorder.
type Service struct {
	redis    *redis.Client
	logger   zerolog.Logger
	topN     int
	entryTTL time.Duration
	prefix   string
	windows  []string
}

var _ game.ScoreRecorder = (*Service)(nil)

func NewService(redisClient *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "lb"
	}
	windows := opts.Windows
	if len(windows) == 0 {
		windows = defaultWindows
	}
	return &Service{
		redis:    redisClient,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
		topN:     topN,
		entryTTL: opts.EntryTTL,
		prefix:   prefix,
		windows:  windows,
	}
}

// RecordScore folds one finished session score into every window of the
// mode's leaderboard: cumulative score, games played, and personal best.
func (s *Service) RecordScore(ctx context.Context, mode string, entry game.ScoreEntry) error {
	for _, window := range s.windows {
		zKey := s.rankKey(mode, window)
		metaKey := s.metaKey(mode, window, entry.PlayerID)

		pipe := s.redis.TxPipeline()
		pipe.ZIncrBy(ctx, zKey, float64(entry.Score), entry.PlayerID)
		pipe.HSet(ctx, metaKey, "name", entry.Name)
		pipe.HIncrBy(ctx, metaKey, "games", 1)
		if s.entryTTL > 0 && window != WindowAllTime {
			pipe.Expire(ctx, zKey, windowTTL(window, s.entryTTL))
			pipe.Expire(ctx, metaKey, windowTTL(window, s.entryTTL))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("update %s %s leaderboard: %w", mode, window, err)
		}

		// Personal best is tracked separately; HSet cannot express max.
		best, err := s.redis.HGet(ctx, metaKey, "best").Int()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("read personal best: %w", err)
		}
		if entry.Score > best {
			if err := s.redis.HSet(ctx, metaKey, "best", entry.Score).Err(); err != nil {
				return fmt.Errorf("write personal best: %w", err)
			}
		}
	}
	return nil
}

// Top returns the highest-ranked entries for a mode and window.
func (s *Service) Top(ctx context.Context, mode, window string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.rankKey(mode, window)
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s leaderboard: %w", mode, window, err)
	}

	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		playerID, _ := z.Member.(string)
		entry := Entry{
			Rank:     i + 1,
			PlayerID: playerID,
			Score:    int(z.Score),
		}
		meta, err := s.redis.HGetAll(ctx, s.metaKey(mode, window, playerID)).Result()
		if err != nil {
			s.logger.Warn().Err(err).Str("player_id", playerID).Msg("failed to read leaderboard metadata")
		} else {
			entry.Name = meta["name"]
			entry.Games = parseInt(meta["games"])
			entry.Best = parseInt(meta["best"])
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) rankKey(mode, window string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, mode, window)
}

func (s *Service) metaKey(mode, window, playerID string) string {
	return fmt.Sprintf("%s:%s:%s:meta:%s", s.prefix, mode, window, playerID)
}

// windowTTL shortens the configured TTL for the tighter windows so a daily
// board does not outlive its day by a month.
func windowTTL(window string, entryTTL time.Duration) time.Duration {
	switch window {
	case WindowDaily:
		if entryTTL > 48*time.Hour {
			return 48 * time.Hour
		}
	case WindowWeekly:
		if entryTTL > 14*24*time.Hour {
			return 14 * 24 * time.Hour
		}
	}
	return entryTTL
}

// IsValidWindow reports whether the window name is served.
func IsValidWindow(window string) bool {
	switch window {
	case WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime:
		return true
	default:
		return false
	}
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
