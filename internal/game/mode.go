package game

import (
	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/game/answer"
	"github.com/quizarena/backend/internal/game/scoring"
)

// decision carries a scored submission through the mode hooks before the
// engine applies it. Modes adjust delta and attach mode-specific payload
// fields; the engine applies the final delta exactly once.
type decision struct {
	check answer.Result
	score scoring.Result
	delta int

	wagerPercent int

	isFirstCorrect  *bool
	livesRemaining  *int
	wagerAmount     *int
	waitForContinue bool
	correctAnswer   string
	hint            string
}

// Ruleset customizes the engine for one game mode. Hooks run under the
// engine lock.
type Ruleset interface {
	Mode() Mode

	// DeadlineSeconds is the round clock deadline; 0 disables the clock.
	DeadlineSeconds(cfg config.Game) int

	// Init mutates the fresh state before the sync countdown.
	Init(e *Engine)

	// OnRoundStart runs after the round index advanced and per-round flags
	// were reset. Returning false means the hook ended the session.
	OnRoundStart(e *Engine) bool

	// OnAnswer runs post-scoring, pre-apply.
	OnAnswer(e *Engine, p *Player, d *decision)

	// OnRoundEnd resolves the round before results are emitted.
	OnRoundEnd(e *Engine)

	// OnSessionEnd emits mode-specific final events.
	OnSessionEnd(e *Engine)
}

func rulesetFor(mode Mode) Ruleset {
	switch mode {
	case ModePractice:
		return practiceRules{}
	case ModeFastestFinger:
		return fastestFingerRules{}
	case ModeSurvival:
		return survivalRules{}
	case ModeWager:
		return wagerRules{}
	case ModeDuel:
		return duelRules{}
	default:
		return arcadeRules{}
	}
}

// baseRules provides the no-op hooks shared by most modes.
type baseRules struct{}

func (baseRules) DeadlineSeconds(cfg config.Game) int { return cfg.RoundSeconds }
func (baseRules) Init(e *Engine)                      {}
func (baseRules) OnRoundStart(e *Engine) bool         { return true }
func (baseRules) OnAnswer(e *Engine, p *Player, d *decision) {}
func (baseRules) OnRoundEnd(e *Engine)                {}
func (baseRules) OnSessionEnd(e *Engine)              {}
