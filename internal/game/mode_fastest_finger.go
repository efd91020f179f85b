package game

// fastestFingerRules awards points only to the first correct answer of each
// round; later correct answers score zero.
type fastestFingerRules struct{ baseRules }

func (fastestFingerRules) Mode() Mode { return ModeFastestFinger }

func (fastestFingerRules) OnRoundStart(e *Engine) bool {
	e.state.FirstCorrectPlayerID = ""
	return true
}

func (fastestFingerRules) OnAnswer(e *Engine, p *Player, d *decision) {
	if !d.check.Correct {
		return
	}

	first := e.state.FirstCorrectPlayerID == ""
	if first {
		e.state.FirstCorrectPlayerID = p.ID
	} else {
		d.delta = 0
	}
	d.isFirstCorrect = &first
}
