package env

import "blackjack-mdp/internal/blackjack"

const (
	DefaultLowCount  = -5
	DefaultHighCount = 5
)

// BinCount maps a running Hi-Lo count onto a bin. Counts at or below low
// are Low and counts at or above high are High.
func BinCount(count, low, high int) blackjack.CountBin {
	if count <= low {
		return blackjack.Low
	}
	if count >= high {
		return blackjack.High
	}
	return blackjack.Neutral
}
