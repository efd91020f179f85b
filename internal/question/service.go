// Package question supplies question pools to the session engine, combining
// the Postgres catalog with a Redis pool cache.
package question

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/game"
)

// Repository loads question pools from the catalog.
type Repository interface {
	BySet(ctx context.Context, setID int64) ([]*game.Question, error)
}

// PoolCache caches per-set pools. A nil cache result means miss.
type PoolCache interface {
	GetSet(ctx context.Context, setID int64) ([]*game.Question, error)
	StoreSet(ctx context.Context, setID int64, pool []*game.Question) error
}

// Service implements the engine's QuestionSource.
type Service struct {
	repo   Repository
	cache  PoolCache // nil disables caching
	logger zerolog.Logger
}

var _ game.QuestionSource = (*Service)(nil)

func NewService(repo Repository, cache PoolCache, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "question").Logger(),
	}
}

// RandomQuestions merges the pools of the requested sets and samples count
// questions. Cache failures fall through to Postgres.
func (s *Service) RandomQuestions(ctx context.Context, setIDs []int64, count int) ([]*game.Question, error) {
	var pool []*game.Question
	for _, setID := range setIDs {
		qs, err := s.loadSet(ctx, setID)
		if err != nil {
			return nil, err
		}
		pool = append(pool, qs...)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("no questions available for sets %v", setIDs)
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if count > 0 && len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}

func (s *Service) loadSet(ctx context.Context, setID int64) ([]*game.Question, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSet(ctx, setID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("set_id", setID).Msg("question cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	pool, err := s.repo.BySet(ctx, setID)
	if err != nil {
		return nil, fmt.Errorf("load question set %d: %w", setID, err)
	}

	if s.cache != nil && len(pool) > 0 {
		if err := s.cache.StoreSet(ctx, setID, pool); err != nil {
			s.logger.Warn().Err(err).Int64("set_id", setID).Msg("question cache write failed")
		}
	}
	return pool, nil
}
