package game

import (
	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/pkg/ws"
)

// duelRules runs head-to-head rounds: the first two players in a shuffled
// queue duel, the winner stays and the loser rejoins the back of the queue.
type duelRules struct{ baseRules }

func (duelRules) Mode() Mode { return ModeDuel }

func (duelRules) DeadlineSeconds(cfg config.Game) int { return cfg.DuelRoundSeconds }

func (duelRules) Init(e *Engine) {
	queue := make([]string, len(e.state.Roster))
	copy(queue, e.state.Roster)
	e.rng.Shuffle(len(queue), func(i, j int) {
		queue[i], queue[j] = queue[j], queue[i]
	})
	e.state.DuelQueue = queue
	e.state.DuelWins = make(map[string]int, len(queue))
}

func (duelRules) OnRoundStart(e *Engine) bool {
	if len(e.state.DuelQueue) < 2 {
		e.endSessionLocked()
		return false
	}

	pair := []string{e.state.DuelQueue[0], e.state.DuelQueue[1]}
	e.state.CurrentDuelPair = pair

	for _, id := range e.state.Roster {
		p := e.state.Players[id]
		if id == pair[0] || id == pair[1] {
			p.IsDueling = true
			p.Spectating = false
		} else {
			p.Spectating = true
			p.HasAnswered = true
		}
	}
	return true
}

func (duelRules) OnRoundEnd(e *Engine) {
	pair := e.state.CurrentDuelPair
	if len(pair) != 2 {
		return
	}
	a := e.state.Players[pair[0]]
	b := e.state.Players[pair[1]]

	winner, loser := resolveDuel(a, b)

	payload := ws.DuelResultPayload{
		LobbyCode: e.state.LobbyCode,
		Draw:      winner == nil,
	}
	if winner != nil {
		e.state.DuelWins[winner.ID]++
		payload.WinnerID = winner.ID
		payload.LoserID = loser.ID

		// Winner defends; loser goes to the back of the queue.
		rest := e.state.DuelQueue[2:]
		queue := make([]string, 0, len(e.state.DuelQueue))
		queue = append(queue, winner.ID)
		queue = append(queue, rest...)
		queue = append(queue, loser.ID)
		e.state.DuelQueue = queue
	}

	wins := make(map[string]int, len(e.state.DuelWins))
	for id, w := range e.state.DuelWins {
		wins[id] = w
	}
	payload.Wins = wins
	e.emit(ws.TypeDuelResult, payload)

	e.state.CurrentDuelPair = nil
	a.IsDueling = false
	b.IsDueling = false
}

func (duelRules) OnSessionEnd(e *Engine) {
	var winner *Player
	best := -1
	for _, id := range e.state.Roster {
		if w := e.state.DuelWins[id]; w > best {
			best = w
			winner = e.state.Players[id]
		}
	}
	if winner == nil || best <= 0 {
		return
	}
	e.emit(ws.TypeDuelEnded, ws.DuelEndedPayload{
		LobbyCode: e.state.LobbyCode,
		WinnerID:  winner.ID,
		Name:      winner.Name,
		Wins:      best,
	})
}

// resolveDuel decides a round between two duelists. Correct beats wrong, two
// correct answers are decided by speed, and two wrong answers or an exact
// tie is a draw.
func resolveDuel(a, b *Player) (winner, loser *Player) {
	aCorrect := a.HasAnswered && a.CurrentAnswerCorrect
	bCorrect := b.HasAnswered && b.CurrentAnswerCorrect

	switch {
	case aCorrect && !bCorrect:
		return a, b
	case bCorrect && !aCorrect:
		return b, a
	case aCorrect && bCorrect:
		if a.AnswerElapsedSec < b.AnswerElapsedSec {
			return a, b
		}
		if b.AnswerElapsedSec < a.AnswerElapsedSec {
			return b, a
		}
		return nil, nil
	default:
		return nil, nil
	}
}
