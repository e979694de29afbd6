package blackjack

import "fmt"

// CountBin discretizes a running Hi-Lo count.
type CountBin int

const (
	Neutral CountBin = iota
	Low
	High
)

func (b CountBin) String() string {
	switch b {
	case Low:
		return "low"
	case Neutral:
		return "neutral"
	case High:
		return "high"
	}
	return fmt.Sprintf("bin(%d)", int(b))
}

// Observation is what the environment shows the learner after each step.
type Observation struct {
	Player    int      `json:"player"`
	Dealer    int      `json:"dealer"`
	UsableAce bool     `json:"usable_ace"`
	Count     CountBin `json:"count"`
}

func (o Observation) String() string {
	soft := "hard"
	if o.UsableAce {
		soft = "soft"
	}
	return fmt.Sprintf("%s %d vs %d (%s)", soft, o.Player, o.Dealer, o.Count)
}
