package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateScoreDecaysWithTime(t *testing.T) {
	e := NewEngine(DefaultConfig())

	instant := e.CalculateScore(true, Input{ElapsedSeconds: 0, DeadlineSeconds: 60, Multiplier: 1})
	half := e.CalculateScore(true, Input{ElapsedSeconds: 30, DeadlineSeconds: 60, Multiplier: 1})
	expired := e.CalculateScore(true, Input{ElapsedSeconds: 60, DeadlineSeconds: 60, Multiplier: 1})

	assert.Equal(t, 1000, instant.Points)
	assert.Equal(t, 500, half.Points)
	assert.Equal(t, 0, expired.Points)
}

func TestCalculateScoreAppliesMultiplier(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.CalculateScore(true, Input{ElapsedSeconds: 0, DeadlineSeconds: 60, Multiplier: 2, Streak: 2})
	assert.Equal(t, 2000, res.Points)
	assert.Equal(t, 3, res.NewStreak)
	assert.Equal(t, 2.5, res.NewMultiplier)
}

func TestMultiplierIsCapped(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.CalculateScore(true, Input{ElapsedSeconds: 0, DeadlineSeconds: 60, Multiplier: 5, Streak: 9})
	assert.Equal(t, 5.0, res.NewMultiplier)
}

func TestWrongAnswerResetsStreakAndMultiplier(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.CalculateScore(false, Input{ElapsedSeconds: 5, DeadlineSeconds: 60, Multiplier: 3, Streak: 4})
	assert.Equal(t, 0, res.Points)
	assert.Equal(t, 0, res.NewStreak)
	assert.Equal(t, 1.0, res.NewMultiplier)
}

func TestFreeWrongAnswerPreservesStreak(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mods := &Modifiers{FreeWrongAnswers: 1}

	res := e.CalculateScore(false, Input{
		Multiplier: 2.5, Streak: 3, Modifiers: mods,
		Context: Context{FreeWrongUsed: 0},
	})
	assert.True(t, res.FreeWrongUsed)
	assert.Equal(t, 3, res.NewStreak)
	assert.Equal(t, 2.5, res.NewMultiplier)

	// budget exhausted
	res = e.CalculateScore(false, Input{
		Multiplier: 2.5, Streak: 3, Modifiers: mods,
		Context: Context{FreeWrongUsed: 1},
	})
	assert.False(t, res.FreeWrongUsed)
	assert.Equal(t, 0, res.NewStreak)
	assert.Equal(t, 1.0, res.NewMultiplier)
}

func TestCalculatePartialScore(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// elapsed 30/60 -> base 500; partial 0.5 -> 250; x2 multiplier -> 500
	res := e.CalculatePartialScore(0.5, Input{ElapsedSeconds: 30, DeadlineSeconds: 60, Multiplier: 2, Streak: 1})
	assert.Equal(t, 500, res.Points)
	assert.Equal(t, 2, res.NewStreak, "partial credit advances the streak")
	assert.Equal(t, 2.5, res.NewMultiplier)
}

func TestCalculatePartialScoreZeroBehavesLikeWrong(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.CalculatePartialScore(0, Input{Multiplier: 3, Streak: 2})
	assert.Equal(t, 0, res.Points)
	assert.Equal(t, 0, res.NewStreak)
	assert.Equal(t, 1.0, res.NewMultiplier)
}

func TestNoDeadlineAwardsFullBase(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.CalculateScore(true, Input{ElapsedSeconds: 42, DeadlineSeconds: 0, Multiplier: 1})
	assert.Equal(t, 1000, res.Points)
}

func TestModifierBonuses(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mods := &Modifiers{ExtraPoints: 50, ScoreBoostPct: 10}

	res := e.CalculateScore(true, Input{ElapsedSeconds: 0, DeadlineSeconds: 60, Multiplier: 1, Modifiers: mods})
	// 1000 + 50 = 1050, +10% = 1155
	assert.Equal(t, 1155, res.Points)
}

func TestLateRoundBonus(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mods := &Modifiers{LateRoundBonus: 100}

	early := e.CalculateScore(true, Input{
		ElapsedSeconds: 0, DeadlineSeconds: 60, Multiplier: 1, Modifiers: mods,
		Context: Context{QuestionIndex: 1, TotalQuestions: 10},
	})
	late := e.CalculateScore(true, Input{
		ElapsedSeconds: 0, DeadlineSeconds: 60, Multiplier: 1, Modifiers: mods,
		Context: Context{QuestionIndex: 8, TotalQuestions: 10},
	})
	assert.Equal(t, 1000, early.Points)
	assert.Equal(t, 1100, late.Points)
}

func TestComebackBonus(t *testing.T) {
	e := NewEngine(DefaultConfig())
	mods := &Modifiers{ComebackBonus: 200}

	res := e.CalculateScore(true, Input{
		ElapsedSeconds: 0, DeadlineSeconds: 60, Multiplier: 1, Modifiers: mods,
		Context: Context{WrongStreak: 3},
	})
	assert.Equal(t, 1200, res.Points)
}

func TestApplyEndGameBonuses(t *testing.T) {
	e := NewEngine(DefaultConfig())

	assert.Equal(t, 1000, e.ApplyEndGameBonuses(1000, nil, Stats{}))

	mods := &Modifiers{EndGameBonusPct: 10}
	assert.Equal(t, 1100, e.ApplyEndGameBonuses(1000, mods, Stats{}))

	mods = &Modifiers{AccuracyBonusPct: 20}
	stats := Stats{CorrectCount: 9, WrongCount: 1} // accuracy 0.9
	assert.Equal(t, 1180, e.ApplyEndGameBonuses(1000, mods, stats))
}

func TestCalculateModifiedXP(t *testing.T) {
	e := NewEngine(DefaultConfig())

	assert.Equal(t, 100, e.CalculateModifiedXP(100, nil, Stats{}))
	assert.Equal(t, 125, e.CalculateModifiedXP(100, &Modifiers{XPBoostPct: 25}, Stats{}))
	assert.Equal(t, 0, e.CalculateModifiedXP(-5, nil, Stats{}))
}
