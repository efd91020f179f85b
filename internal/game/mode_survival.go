package game

import "github.com/quizarena/backend/pkg/ws"

// survivalRules gives each player a fixed number of lives; a wrong answer
// costs one, and the last player standing wins.
type survivalRules struct{ baseRules }

func (survivalRules) Mode() Mode { return ModeSurvival }

func (survivalRules) Init(e *Engine) {
	for _, id := range e.state.Roster {
		e.state.Players[id].Lives = e.cfg.SurvivalLives
	}
}

func (r survivalRules) OnRoundStart(e *Engine) bool {
	// Eliminated players must not block round completion.
	for _, id := range e.state.Roster {
		if p := e.state.Players[id]; p.Eliminated {
			p.HasAnswered = true
		}
	}
	return !r.resolveIfDecided(e)
}

func (survivalRules) OnAnswer(e *Engine, p *Player, d *decision) {
	if !d.check.Correct {
		p.Lives--
		if p.Lives < 0 {
			p.Lives = 0
		}
		e.emit(ws.TypeLivesUpdated, ws.LivesUpdatedPayload{
			LobbyCode: e.state.LobbyCode,
			PlayerID:  p.ID,
			Lives:     p.Lives,
		})
		if p.Lives == 0 && !p.Eliminated {
			p.Eliminated = true
			e.emit(ws.TypePlayerEliminated, ws.PlayerEliminatedPayload{
				LobbyCode: e.state.LobbyCode,
				PlayerID:  p.ID,
			})
		}
	}
	d.livesRemaining = &p.Lives
}

// resolveIfDecided ends the session when at most one player is alive,
// announcing the winner if there is one. Reports whether it ended the
// session.
func (survivalRules) resolveIfDecided(e *Engine) bool {
	var alive []*Player
	for _, id := range e.state.Roster {
		if p := e.state.Players[id]; !p.Eliminated {
			alive = append(alive, p)
		}
	}
	if len(alive) > 1 {
		return false
	}

	if len(alive) == 1 {
		e.emit(ws.TypeSurvivalWinner, ws.SurvivalWinnerPayload{
			LobbyCode: e.state.LobbyCode,
			PlayerID:  alive[0].ID,
			Name:      alive[0].Name,
		})
	}
	e.endSessionLocked()
	return true
}
