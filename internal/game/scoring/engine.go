// Package scoring converts answer outcomes into points, streaks, and
// multipliers. The engine is a pure calculator: it never mutates player
// state, it only reports what the new values should be.
package scoring

import "math"

// Config holds configurable scoring constants.
type Config struct {
	BasePoints     int     // default: 1000, awarded for an instant correct answer
	MultiplierStep float64 // default: 0.5, multiplier gain per consecutive correct
	MaxMultiplier  float64 // default: 5.0
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BasePoints:     1000,
		MultiplierStep: 0.5,
		MaxMultiplier:  5.0,
	}
}

// Modifiers is the opaque bag of gameplay transforms resolved per player at
// session start. A nil *Modifiers means "no perks".
type Modifiers struct {
	ExtraPoints      int     // flat bonus per correct answer
	ScoreBoostPct    float64 // percentage bonus on earned points
	MultiplierGain   float64 // added on top of the standard multiplier step
	FreeWrongAnswers int     // wrong answers that do not break the streak
	LateRoundBonus   int     // extra points in the final third of the session
	ComebackBonus    int     // extra points on the first correct after a wrong streak
	AccuracyBonusPct float64 // end-game: pct of total, scaled by accuracy
	EndGameBonusPct  float64 // end-game: flat pct of total
	XPBoostPct       float64 // pct bonus on awarded XP
}

// Context carries the modifier-relevant session position of a submission.
type Context struct {
	QuestionIndex  int
	TotalQuestions int
	WrongStreak    int
	FreeWrongUsed  int
}

// Input for a single score calculation.
type Input struct {
	ElapsedSeconds  int
	DeadlineSeconds int
	Multiplier      float64
	Streak          int
	Modifiers       *Modifiers
	Context         Context
}

// Result of a single score calculation.
type Result struct {
	Points        int
	NewStreak     int
	NewMultiplier float64
	FreeWrongUsed bool
}

// Stats summarizes a player's session for end-of-game transforms.
type Stats struct {
	CorrectCount int
	WrongCount   int
	FinalStreak  int
}

// Accuracy returns the fraction of answered questions that were correct.
func (s Stats) Accuracy() float64 {
	total := s.CorrectCount + s.WrongCount
	if total == 0 {
		return 0
	}
	return float64(s.CorrectCount) / float64(total)
}

// Engine computes scores with configurable constants.
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config Config) *Engine {
	if config.BasePoints == 0 {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

// CalculateScore computes points for a full-credit submission.
//
// Base points decay linearly from BasePoints to 0 across the deadline; the
// award is base times the current multiplier plus modifier bonuses. A wrong
// answer resets streak and multiplier unless a free-wrong modifier absorbs it.
func (e *Engine) CalculateScore(correct bool, in Input) Result {
	if !correct {
		return e.wrongResult(in)
	}
	return e.award(1.0, in)
}

// CalculatePartialScore computes points for a partially correct submission
// (estimation, ordering, matching). Streak and multiplier advance as for a
// correct answer.
func (e *Engine) CalculatePartialScore(partial float64, in Input) Result {
	if partial <= 0 {
		return e.wrongResult(in)
	}
	if partial > 1 {
		partial = 1
	}
	return e.award(partial, in)
}

func (e *Engine) wrongResult(in Input) Result {
	if in.Modifiers != nil && in.Context.FreeWrongUsed < in.Modifiers.FreeWrongAnswers {
		// Perk absorbs the miss: streak and multiplier survive.
		return Result{
			Points:        0,
			NewStreak:     in.Streak,
			NewMultiplier: clampMultiplier(in.Multiplier, e.config.MaxMultiplier),
			FreeWrongUsed: true,
		}
	}
	return Result{Points: 0, NewStreak: 0, NewMultiplier: 1}
}

func (e *Engine) award(partial float64, in Input) Result {
	base := e.basePoints(in.ElapsedSeconds, in.DeadlineSeconds)

	multiplier := in.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	points := int(math.Round(float64(base) * partial * multiplier))

	if mods := in.Modifiers; mods != nil {
		points += mods.ExtraPoints
		if mods.ScoreBoostPct > 0 {
			points += int(math.Round(float64(points) * mods.ScoreBoostPct / 100))
		}
		if mods.LateRoundBonus > 0 && in.Context.TotalQuestions > 0 &&
			in.Context.QuestionIndex*3 >= in.Context.TotalQuestions*2 {
			points += mods.LateRoundBonus
		}
		if mods.ComebackBonus > 0 && in.Context.WrongStreak >= 2 {
			points += mods.ComebackBonus
		}
	}

	gain := e.config.MultiplierStep
	if in.Modifiers != nil {
		gain += in.Modifiers.MultiplierGain
	}

	return Result{
		Points:        points,
		NewStreak:     in.Streak + 1,
		NewMultiplier: clampMultiplier(multiplier+gain, e.config.MaxMultiplier),
	}
}

// basePoints is monotonically non-increasing in elapsed time and reaches
// zero exactly when the deadline expires. Without a deadline (practice has
// no clock) the full base applies.
func (e *Engine) basePoints(elapsed, deadline int) int {
	if deadline <= 0 {
		return e.config.BasePoints
	}
	remaining := deadline - elapsed
	if remaining <= 0 {
		return 0
	}
	if remaining > deadline {
		remaining = deadline
	}
	return int(math.Round(float64(e.config.BasePoints) * float64(remaining) / float64(deadline)))
}

// ApplyEndGameBonuses transforms a final session score through end-game
// modifiers.
func (e *Engine) ApplyEndGameBonuses(totalScore int, mods *Modifiers, stats Stats) int {
	if mods == nil {
		return totalScore
	}
	total := totalScore
	if mods.EndGameBonusPct > 0 {
		total += int(math.Floor(float64(totalScore) * mods.EndGameBonusPct / 100))
	}
	if mods.AccuracyBonusPct > 0 {
		total += int(math.Floor(float64(totalScore) * mods.AccuracyBonusPct / 100 * stats.Accuracy()))
	}
	return total
}

// CalculateModifiedXP transforms base XP through XP modifiers.
func (e *Engine) CalculateModifiedXP(baseXP int, mods *Modifiers, stats Stats) int {
	if baseXP < 0 {
		baseXP = 0
	}
	if mods == nil || mods.XPBoostPct <= 0 {
		return baseXP
	}
	return baseXP + int(math.Floor(float64(baseXP)*mods.XPBoostPct/100))
}

func clampMultiplier(m, max float64) float64 {
	if m < 1 {
		return 1
	}
	if max > 0 && m > max {
		return max
	}
	return m
}
