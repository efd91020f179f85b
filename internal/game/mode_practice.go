package game

import "github.com/quizarena/backend/internal/config"

// practiceRules runs without a clock and without scoring. A wrong answer
// holds the round open until the player confirms with practice-continue.
type practiceRules struct{ baseRules }

func (practiceRules) Mode() Mode { return ModePractice }

func (practiceRules) DeadlineSeconds(config.Game) int { return 0 }

func (practiceRules) OnAnswer(e *Engine, p *Player, d *decision) {
	d.delta = 0
	if d.check.Correct {
		return
	}

	q := e.state.Current
	d.waitForContinue = true
	d.correctAnswer = q.CorrectAnswer
	d.hint = q.Hint
	p.HasAnswered = false
	p.AwaitingContinue = true
}
