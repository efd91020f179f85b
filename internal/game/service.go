package game

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/game/scoring"
)

// Service is the entry point for session operations. It resolves lobbies and
// questions, owns engine creation through the registry, and dispatches every
// in-game operation to the lobby's engine.
type Service struct {
	registry  *Registry
	lobbies   LobbyControl
	questions QuestionSource
	oracle    ModifierOracle
	store     SessionStore
	scores    ScoreRecorder
	sink      EventSink
	cfg       config.Game
	scoring   scoring.Config
	logger    zerolog.Logger

	now          func() time.Time
	rng          *rand.Rand
	tickInterval time.Duration
}

// ServiceOptions carries optional overrides; zero values select production
// behaviour.
type ServiceOptions struct {
	Scoring      scoring.Config
	Now          func() time.Time
	RNG          *rand.Rand
	TickInterval time.Duration
}

// NewService creates the game service.
func NewService(
	registry *Registry,
	lobbies LobbyControl,
	questions QuestionSource,
	oracle ModifierOracle,
	store SessionStore,
	scores ScoreRecorder,
	sink EventSink,
	cfg config.Game,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	scoringCfg := opts.Scoring
	if scoringCfg.BasePoints == 0 {
		scoringCfg = scoring.DefaultConfig()
		if cfg.MaxMultiplier > 0 {
			scoringCfg.MaxMultiplier = cfg.MaxMultiplier
		}
	}

	return &Service{
		registry:     registry,
		lobbies:      lobbies,
		questions:    questions,
		oracle:       oracle,
		store:        store,
		scores:       scores,
		sink:         sink,
		cfg:          cfg,
		scoring:      scoringCfg,
		logger:       logger,
		now:          opts.Now,
		rng:          opts.RNG,
		tickInterval: opts.TickInterval,
	}
}

// StartSession starts a game for a lobby. Only the host may start; a lobby
// can run at most one session at a time.
func (s *Service) StartSession(ctx context.Context, lobbyCode, requesterID string) error {
	lobby, err := s.lobbies.Descriptor(lobbyCode)
	if err != nil {
		return ErrNotActive
	}
	if lobby.HostID != requesterID {
		return ErrNotHost
	}
	if _, exists := s.registry.Get(lobbyCode); exists {
		return ErrAlreadyActive
	}

	mode := ParseMode(lobby.Settings.GameMode)

	setIDs := lobby.Settings.QuestionSetIDs
	if len(setIDs) == 0 {
		setIDs = []int64{s.cfg.FallbackSetID}
	}
	count := lobby.Settings.SelectedQuestionCount
	if count <= 0 {
		count = s.cfg.DefaultQuestionCount
	}

	questions, err := s.questions.RandomQuestions(ctx, setIDs, count)
	if err != nil {
		s.logger.Warn().Err(err).Str("lobby_code", lobbyCode).Msg("question fetch failed")
	}
	if len(questions) == 0 {
		s.logger.Warn().Str("lobby_code", lobbyCode).Msg("no usable questions, substituting fallback set")
		questions = FallbackQuestions(count)
	}

	engine := NewEngine(lobby, mode, questions, Deps{
		Sink:         s.sink,
		Oracle:       s.oracle,
		Store:        s.store,
		Scores:       s.scores,
		Lobbies:      s.lobbies,
		Registry:     s.registry,
		Config:       s.cfg,
		Scoring:      s.scoring,
		Logger:       s.logger,
		Now:          s.now,
		RNG:          s.rng,
		TickInterval: s.tickInterval,
	})

	if err := s.registry.Create(lobbyCode, engine); err != nil {
		return err
	}
	engine.Start()
	return nil
}

// SubmitAnswer forwards an answer to the lobby's engine.
func (s *Service) SubmitAnswer(lobbyCode, playerID, answer string, wagerPercent *int) error {
	engine, err := s.engine(lobbyCode)
	if err != nil {
		return err
	}
	return engine.SubmitAnswer(playerID, answer, wagerPercent)
}

// SubmitWager forwards a wager to the lobby's engine.
func (s *Service) SubmitWager(lobbyCode, playerID string, wagerPercent int) error {
	engine, err := s.engine(lobbyCode)
	if err != nil {
		return err
	}
	return engine.SubmitWager(playerID, wagerPercent)
}

// PracticeContinue forwards a practice acknowledgment to the lobby's engine.
func (s *Service) PracticeContinue(lobbyCode, playerID string) error {
	engine, err := s.engine(lobbyCode)
	if err != nil {
		return err
	}
	return engine.PracticeContinue(playerID)
}

// Disconnect notifies the lobby's engine that a player's transport dropped.
// A no-op when no session is active.
func (s *Service) Disconnect(lobbyCode, playerID string) {
	if engine, ok := s.registry.Get(lobbyCode); ok {
		engine.Disconnect(playerID)
	}
}

// Reconnect notifies the lobby's engine that a player returned.
func (s *Service) Reconnect(lobbyCode, playerID string) {
	if engine, ok := s.registry.Get(lobbyCode); ok {
		engine.Reconnect(playerID)
	}
}

// Abort terminates a lobby's session, if one is running.
func (s *Service) Abort(lobbyCode string) {
	if engine, ok := s.registry.Get(lobbyCode); ok {
		engine.Abort()
	}
}

// Shutdown tears down every active session.
func (s *Service) Shutdown() {
	s.registry.CleanupAll()
}

func (s *Service) engine(lobbyCode string) (*Engine, error) {
	engine, ok := s.registry.Get(lobbyCode)
	if !ok {
		return nil, ErrNotActive
	}
	return engine, nil
}
