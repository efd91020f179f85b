// Package game implements the real-time session engine: the per-lobby state
// machine that paces question rounds, scores answers, arbitrates the six game
// modes, and broadcasts state transitions.
package game

import (
	"context"
	"time"

	"github.com/quizarena/backend/internal/game/answer"
	"github.com/quizarena/backend/internal/game/scoring"
	"github.com/quizarena/backend/pkg/ws"
)

// Mode is one of the six supported game modes.
type Mode string

const (
	ModeArcade        Mode = "arcade"
	ModePractice      Mode = "practice"
	ModeFastestFinger Mode = "fastest_finger"
	ModeSurvival      Mode = "survival"
	ModeWager         Mode = "wager"
	ModeDuel          Mode = "duel"
)

// ParseMode maps a settings string onto a Mode, defaulting to arcade.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModePractice, ModeFastestFinger, ModeSurvival, ModeWager, ModeDuel:
		return Mode(s)
	default:
		return ModeArcade
	}
}

// WagerStartingScore is every player's opening balance in wager mode.
const WagerStartingScore = 100

// Question is immutable after session start.
type Question struct {
	ID            int64
	SetID         int64
	Prompt        string
	Options       []string
	CorrectAnswer string
	Kind          answer.Kind
	Hint          string
	Category      string
	Difficulty    string

	Estimation   *answer.Estimation
	CorrectOrder []int
	Pairs        []answer.Pair
}

// grading projects the question onto the checker's view of it.
func (q *Question) grading() answer.Question {
	return answer.Question{
		Kind:          q.Kind,
		CorrectAnswer: q.CorrectAnswer,
		Estimation:    q.Estimation,
		CorrectOrder:  q.CorrectOrder,
		Pairs:         q.Pairs,
	}
}

// Player is the engine's per-participant state. Owned by the engine; only
// mutated under the engine lock.
type Player struct {
	ID        string
	Name      string
	Character string
	Level     int
	IsHost    bool
	Connected bool

	Score        int
	Streak       int
	WrongStreak  int
	Multiplier   float64
	CorrectCount int
	WrongCount   int

	HasAnswered          bool
	Submitted            bool
	CurrentAnswer        string
	CurrentAnswerCorrect bool
	CurrentPartial       float64
	RoundDelta           int
	AnswerElapsedSec     int
	FreeWrongUsed        int
	AwaitingContinue     bool

	Modifiers *scoring.Modifiers
	Title     string

	// Mode-specific.
	Lives      int
	Eliminated bool
	Wager      *int
	IsDueling  bool
	Spectating bool
}

// State is the per-lobby game state, exclusively owned by its Engine.
type State struct {
	LobbyCode string
	SessionID string
	Mode      Mode

	Questions      []*Question
	TotalQuestions int
	CurrentIndex   int // -1 before the first round
	Current        *Question

	QuestionStartedAt time.Time
	TimeRemaining     int
	Active            bool

	Players map[string]*Player
	Roster  []string // stable iteration order

	// Mode-specific.
	WagerPhaseActive     bool
	DuelQueue            []string
	CurrentDuelPair      []string
	DuelWins             map[string]int
	FirstCorrectPlayerID string
}

func (s *State) player(id string) *Player {
	return s.Players[id]
}

// EventSink delivers outbound events to a lobby broadcast group. It must be
// safe for concurrent use and must preserve emission order per lobby.
type EventSink interface {
	Emit(lobbyCode string, msg ws.Message)
}

// XPAward is the outcome of crediting experience to a player.
type XPAward struct {
	LevelUp            bool
	OldLevel           int
	NewLevel           int
	NewlyUnlockedPerks []string
}

// ModifierOracle resolves per-player gameplay modifiers and XP awards.
// Implementations back onto the perk catalog; failures are non-fatal to the
// engine.
type ModifierOracle interface {
	PlayerModifiers(ctx context.Context, playerID string) (*scoring.Modifiers, error)
	AwardXP(ctx context.Context, playerID string, xp int) (XPAward, error)
}

// SessionRecord describes a session for persistence.
type SessionRecord struct {
	ID            string
	LobbyCode     string
	Mode          Mode
	QuestionCount int
	StartedAt     time.Time
}

// ResultRecord is one player's final line in a session.
type ResultRecord struct {
	SessionID    string
	PlayerID     string
	Score        int
	CorrectCount int
	WrongCount   int
	FinalStreak  int
	XPAwarded    int
	Disconnected bool
}

// SessionStore persists session and result records. All calls are best-effort
// from the engine's perspective.
type SessionStore interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	CloseSession(ctx context.Context, sessionID string, scores map[string]int) error
	RecordResult(ctx context.Context, rec ResultRecord) error
}

// ScoreEntry is a finished player's score for leaderboard recording.
type ScoreEntry struct {
	PlayerID string
	Name     string
	Score    int
}

// ScoreRecorder records final scores into the leaderboards.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, mode string, entry ScoreEntry) error
}

// QuestionSource yields a random question list for the given sets.
type QuestionSource interface {
	RandomQuestions(ctx context.Context, setIDs []int64, count int) ([]*Question, error)
}

// Lobby status values the engine drives.
const (
	LobbyStatusWaiting  = "waiting"
	LobbyStatusStarting = "starting"
	LobbyStatusPlaying  = "playing"
)

// LobbySettings are the host-configured options the engine consumes.
type LobbySettings struct {
	GameMode              string
	QuestionSetIDs        []int64
	SelectedQuestionCount int
	WagerPhase            bool
}

// LobbyPlayerInfo is one roster entry in a lobby descriptor.
type LobbyPlayerInfo struct {
	ID        string
	Name      string
	Character string
	Level     int
	IsHost    bool
	IsReady   bool
	Connected bool
}

// LobbyDescriptor is the engine's read view of a lobby.
type LobbyDescriptor struct {
	Code       string
	Name       string
	HostID     string
	Players    []LobbyPlayerInfo
	MaxPlayers int
	Status     string
	Settings   LobbySettings
}

// LobbyControl is the slice of the lobby manager the engine drives: status
// transitions and final deletion.
type LobbyControl interface {
	Descriptor(lobbyCode string) (*LobbyDescriptor, error)
	SetStatus(lobbyCode, status string)
	Delete(lobbyCode string)
}
