// Package perks resolves player gameplay modifiers from the perk catalog and
// credits XP, deriving levels and perk unlocks.
package perks

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/game"
	"github.com/quizarena/backend/internal/game/scoring"
)

const (
	modifierCacheTTL    = 5 * time.Minute
	modifierCachePrefix = "perks:mods:"
)

// Repository is the Postgres surface the service needs.
type Repository interface {
	EquippedModifiers(ctx context.Context, playerID string) (*scoring.Modifiers, error)
	AddXP(ctx context.Context, playerID string, xp int) (oldXP, newXP int, err error)
	SetLevel(ctx context.Context, playerID string, level int) error
	UnlockedBetween(ctx context.Context, oldLevel, newLevel int) ([]string, error)
}

// Service implements the engine's ModifierOracle.
type Service struct {
	repo   Repository
	redis  *redis.Client // nil disables the modifier cache
	logger zerolog.Logger
}

var _ game.ModifierOracle = (*Service)(nil)

func NewService(repo Repository, redisClient *redis.Client, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		redis:  redisClient,
		logger: logger.With().Str("component", "perks").Logger(),
	}
}

// LevelForXP maps total XP onto a level. The curve is quadratic: level n+1
// needs n^2 * 100 total XP, so early levels come fast and later ones slow.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return 1 + int(math.Sqrt(float64(xp)/100))
}

// PlayerModifiers resolves the summed equipped-perk modifiers for a player,
// via a short-lived Redis cache. nil means the player has no perks.
func (s *Service) PlayerModifiers(ctx context.Context, playerID string) (*scoring.Modifiers, error) {
	if mods, ok := s.cachedModifiers(ctx, playerID); ok {
		return mods, nil
	}

	mods, err := s.repo.EquippedModifiers(ctx, playerID)
	if err != nil {
		return nil, err
	}
	s.cacheModifiers(ctx, playerID, mods)
	return mods, nil
}

// AwardXP credits XP, derives the new level and reports any unlocked perks.
func (s *Service) AwardXP(ctx context.Context, playerID string, xp int) (game.XPAward, error) {
	oldXP, newXP, err := s.repo.AddXP(ctx, playerID, xp)
	if err != nil {
		return game.XPAward{}, err
	}

	award := game.XPAward{
		OldLevel: LevelForXP(oldXP),
		NewLevel: LevelForXP(newXP),
	}
	if award.NewLevel <= award.OldLevel {
		return award, nil
	}
	award.LevelUp = true

	if err := s.repo.SetLevel(ctx, playerID, award.NewLevel); err != nil {
		s.logger.Warn().Err(err).Str("player_id", playerID).Msg("failed to persist level")
	}
	unlocked, err := s.repo.UnlockedBetween(ctx, award.OldLevel, award.NewLevel)
	if err != nil {
		s.logger.Warn().Err(err).Str("player_id", playerID).Msg("failed to resolve unlocked perks")
	} else {
		award.NewlyUnlockedPerks = unlocked
	}

	s.logger.Info().
		Str("player_id", playerID).
		Int("xp", xp).
		Int("new_level", award.NewLevel).
		Msg("player leveled up")
	return award, nil
}

// InvalidateModifiers drops the cached modifiers, e.g. after an equip change.
func (s *Service) InvalidateModifiers(ctx context.Context, playerID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, modifierCachePrefix+playerID).Err(); err != nil {
		s.logger.Warn().Err(err).Str("player_id", playerID).Msg("modifier cache invalidation failed")
	}
}

func (s *Service) cachedModifiers(ctx context.Context, playerID string) (*scoring.Modifiers, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, modifierCachePrefix+playerID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("player_id", playerID).Msg("modifier cache read failed")
		}
		return nil, false
	}
	// "null" is a valid cached value: the player has no perks.
	var mods *scoring.Modifiers
	if err := json.Unmarshal(data, &mods); err != nil {
		return nil, false
	}
	return mods, true
}

func (s *Service) cacheModifiers(ctx context.Context, playerID string, mods *scoring.Modifiers) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(mods)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, modifierCachePrefix+playerID, data, modifierCacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("player_id", playerID).Msg("modifier cache write failed")
	}
}
