package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-arena"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Game        Game
	Leaderboard Leaderboard
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache + leaderboard configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
}

// Game groups session-engine defaults.
type Game struct {
	RoundSeconds         int           `env:"GAME_ROUND_SECONDS" envDefault:"60"`
	DuelRoundSeconds     int           `env:"GAME_DUEL_ROUND_SECONDS" envDefault:"30"`
	SyncCountdownSeconds int           `env:"GAME_SYNC_COUNTDOWN_SECONDS" envDefault:"5"`
	NextQuestionDelay    time.Duration `env:"GAME_NEXT_QUESTION_DELAY" envDefault:"5s"`
	DisconnectGrace      time.Duration `env:"GAME_DISCONNECT_GRACE" envDefault:"30s"`
	WagerPhaseSeconds    int           `env:"GAME_WAGER_PHASE_SECONDS" envDefault:"15"`
	MaxMultiplier        float64       `env:"GAME_MAX_MULTIPLIER" envDefault:"5"`
	SurvivalLives        int           `env:"GAME_SURVIVAL_LIVES" envDefault:"3"`
	DefaultQuestionCount int           `env:"GAME_DEFAULT_QUESTION_COUNT" envDefault:"10"`
	FallbackSetID        int64         `env:"GAME_FALLBACK_SET_ID" envDefault:"1"`
	QuestionCacheTTL     time.Duration `env:"GAME_QUESTION_CACHE_TTL" envDefault:"5m"`
}

// Leaderboard governs result recording and query behavior.
type Leaderboard struct {
	TopN     int           `env:"LEADERBOARD_TOP" envDefault:"50"`
	EntryTTL time.Duration `env:"LEADERBOARD_ENTRY_TTL" envDefault:"720h"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
