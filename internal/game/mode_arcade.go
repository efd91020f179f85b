package game

// arcadeRules is the default mode: standard scoring, 60 second rounds, no
// overrides.
type arcadeRules struct{ baseRules }

func (arcadeRules) Mode() Mode { return ModeArcade }
