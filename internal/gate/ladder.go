package gate

// skipStage is a step of the optional-link skip confirmation
type skipStage int

const (
	askOne skipStage = iota
	askTwo
	askThree
	skipped
)

func (s skipStage) String() string {
	switch s {
	case askOne:
		return "ASK_ONE"
	case askTwo:
		return "ASK_TWO"
	case askThree:
		return "ASK_THREE"
	case skipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// ladder requires the skip command three times in a row. Redisplaying prompts resets it.
type ladder struct {
	stage skipStage
}

func (l *ladder) reset() {
	l.stage = askOne
}

// advance moves one step up and returns the new stage
func (l *ladder) advance() skipStage {
	if l.stage < skipped {
		l.stage++
	}
	return l.stage
}
