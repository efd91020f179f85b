// Package app wires configuration, storage, the game engine and the HTTP
// server into one runnable application.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/auth"
	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/db/repository"
	"github.com/quizarena/backend/internal/game"
	"github.com/quizarena/backend/internal/leaderboard"
	"github.com/quizarena/backend/internal/lobby"
	"github.com/quizarena/backend/internal/logging"
	"github.com/quizarena/backend/internal/perks"
	"github.com/quizarena/backend/internal/question"
	"github.com/quizarena/backend/internal/server"
	"github.com/quizarena/backend/pkg/ws"
)

const lobbySweepInterval = 30 * time.Minute

// Application aggregates shared infrastructure (DB, cache, game service,
// HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	lobbies *lobby.Manager
	games   *game.Service

	bgCancels []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis and the full service graph.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	perkRepo := repository.NewPerkRepository(pool)
	playerRepo := repository.NewPlayerRepository(pool)

	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Name,
	})

	hub := ws.NewHub(logger)
	sink := game.NewHubSink(hub, logger)
	lobbies := lobby.NewManager(redisClient, sink, logger)

	questionSvc := question.NewService(questionRepo, question.NewCache(redisClient, cfg.Game.QuestionCacheTTL), logger)
	perksSvc := perks.NewService(perkRepo, redisClient, logger)
	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN:     cfg.Leaderboard.TopN,
		EntryTTL: cfg.Leaderboard.EntryTTL,
	})

	gameSvc := game.NewService(
		game.NewRegistry(),
		lobbies,
		questionSvc,
		perksSvc,
		sessionRepo,
		leaderboardSvc,
		sink,
		cfg.Game,
		game.ServiceOptions{},
		logger,
	)
	gameHandler := game.NewHandler(gameSvc, lobbies, hub, tokens, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.Handlers{
		Auth:         auth.NewHTTPHandlers(tokens, playerRepo, logger),
		Lobby:        lobby.NewHTTPHandlers(lobbies, tokens, logger),
		Perks:        perks.NewHTTPHandlers(perksSvc, perkRepo, tokens, logger),
		GameWS:       gameHandler.HandleWebSocket,
		Leaderboards: leaderboard.NewHTTPHandler(leaderboardSvc, logger).HandleGet,
		QuestionSets: question.NewHTTPHandler(questionRepo, logger).HandleListSets,
	})

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		redis:     redisClient,
		http:      apiServer,
		lobbies:   lobbies,
		games:     gameSvc,
		bgCancels: make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and blocks until a termination signal.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	// Tear down running sessions before the stores go away.
	a.games.Shutdown()

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go a.lobbies.RunSweeper(bgCtx, lobbySweepInterval)
}
