// Package blackjack holds the rules shared by the exact solver, the
// simulated shoe and the learning agent: card ranks and their infinite-deck
// probabilities, the hand-total draw rule, the Hi-Lo count and the
// observation the agent is keyed on.
package blackjack

import "fmt"

// Action is a player decision. Only Stand and Hit are legal.
type Action int

const (
	Stand Action = 0
	Hit   Action = 1
)

// NumActions is the length of every action-value row.
const NumActions = 2

func (a Action) String() string {
	switch a {
	case Stand:
		return "stand"
	case Hit:
		return "hit"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether a is a legal action index.
func (a Action) Valid() bool {
	return a == Stand || a == Hit
}

// MustAction panics if a is not a legal action.
func MustAction(a Action) Action {
	if !a.Valid() {
		panic(fmt.Sprintf("blackjack: invalid action %d", int(a)))
	}
	return a
}

const (
	// Ace is rank 1; rank 10 stands for ten, jack, queen and king.
	Ace     = 1
	Ten     = 10
	MaxHand = 21
	// DealerStands is the total at or above which the dealer stops drawing.
	DealerStands = 17
)

// rankProbs is indexed by rank; index 0 is unused.
var rankProbs = [Ten + 1]float64{
	0,
	1.0 / 13, 1.0 / 13, 1.0 / 13, 1.0 / 13, 1.0 / 13,
	1.0 / 13, 1.0 / 13, 1.0 / 13, 1.0 / 13,
	4.0 / 13,
}

// Ranks lists the distinct card ranks in ascending order.
func Ranks() []int {
	ranks := make([]int, 0, Ten)
	for r := Ace; r <= Ten; r++ {
		ranks = append(ranks, r)
	}
	return ranks
}

// RankProbability is the infinite-deck chance of drawing rank.
func RankProbability(rank int) float64 {
	if rank < Ace || rank > Ten {
		panic(fmt.Sprintf("blackjack: invalid rank %d", rank))
	}
	return rankProbs[rank]
}

// AddCard returns the hand total after drawing rank. An ace counts as 11
// when that keeps the hand at or below 21; a usable ace is demoted to 1
// when the new card would otherwise bust the hand.
func AddCard(total int, usable bool, rank int) (int, bool) {
	if rank < Ace || rank > Ten {
		panic(fmt.Sprintf("blackjack: invalid rank %d", rank))
	}
	if rank == Ace {
		if total+11 <= MaxHand {
			total += 11
			usable = true
		} else {
			total++
		}
	} else {
		total += rank
	}
	if total > MaxHand && usable {
		total -= 10
		usable = false
	}
	return total, usable
}

// Busted reports whether total is over 21.
func Busted(total int) bool {
	return total > MaxHand
}

// Outcome scores a finished hand from the player's side: +1 when the dealer
// busts or finishes lower, 0 on a push, -1 when the dealer finishes higher.
// The player total must not be a bust.
func Outcome(player, dealer int) float64 {
	switch {
	case Busted(dealer) || dealer < player:
		return 1
	case dealer == player:
		return 0
	default:
		return -1
	}
}

// HiLo is the running-count weight of rank: +1 for 2-6, 0 for 7-9 and -1
// for tens and aces.
func HiLo(rank int) int {
	switch {
	case rank >= 2 && rank <= 6:
		return 1
	case rank >= 7 && rank <= 9:
		return 0
	default:
		return -1
	}
}
