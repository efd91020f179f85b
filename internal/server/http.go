// Package server assembles the HTTP surface: health, metrics, identity,
// lobby management, the game WebSocket and leaderboard queries.
package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/auth"
	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/lobby"
	"github.com/quizarena/backend/internal/perks"
)

// Handlers collects the route handlers the server mounts. Nil members are
// skipped so partial deployments (e.g. no database in tests) still serve.
type Handlers struct {
	Auth         *auth.HTTPHandlers
	Lobby        *lobby.HTTPHandlers
	Perks        *perks.HTTPHandlers
	GameWS       http.HandlerFunc
	Leaderboards http.HandlerFunc
	QuestionSets http.HandlerFunc
}

// NewHTTPServer wires all routes and returns the configured server.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if h.Auth != nil {
		mux.HandleFunc("POST /v1/auth/guest", h.Auth.HandleGuest)
		mux.HandleFunc("GET /v1/users/me", h.Auth.HandleMe)
	}

	if h.Lobby != nil {
		mux.HandleFunc("POST /v1/lobbies", h.Lobby.HandleCreate)
		mux.HandleFunc("PUT /v1/lobbies/{code}/settings", h.Lobby.HandleUpdateSettings)
	}

	if h.Perks != nil {
		mux.HandleFunc("GET /v1/perks", h.Perks.HandleCatalog)
		mux.HandleFunc("PUT /v1/perks/{id}/equip", h.Perks.HandleEquip)
	}

	if h.GameWS != nil {
		mux.HandleFunc("/ws/lobbies", h.GameWS)
	}

	if h.Leaderboards != nil {
		mux.HandleFunc("/v1/leaderboards/", h.Leaderboards)
	}

	if h.QuestionSets != nil {
		mux.HandleFunc("GET /v1/question-sets", h.QuestionSets)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	return redisClient.Ping(ctx).Err()
}
