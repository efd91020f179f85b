package game

// wagerRules replaces the standard award with a stake on the player's own
// score: every player starts at 100, a correct answer gains the staked
// fraction, a wrong one loses it (floored at zero).
type wagerRules struct{ baseRules }

func (wagerRules) Mode() Mode { return ModeWager }

func (wagerRules) Init(e *Engine) {
	for _, id := range e.state.Roster {
		e.state.Players[id].Score = WagerStartingScore
	}
}

func (wagerRules) OnAnswer(e *Engine, p *Player, d *decision) {
	pct := d.wagerPercent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	stake := p.Score * pct / 100
	if d.check.Correct {
		d.delta = stake
	} else {
		d.delta = -stake
	}
	d.wagerAmount = &stake
}
