// Package mdp solves single-player Blackjack exactly under an infinite-deck
// card model. A Model memoizes the dealer's final-total distributions and
// the player's hit dynamics; ValueIteration and PolicyIteration sweep the
// 200 decision states to a fixed point.
package mdp

import (
	"fmt"
	"sort"

	"blackjack-mdp/internal/blackjack"
)

const (
	MinPlayer = 12
	MaxPlayer = blackjack.MaxHand
	MinDealer = blackjack.Ace
	MaxDealer = blackjack.Ten
)

// State is a decision point of the exact solver. The zero value is Bust.
type State struct {
	Player    int  `json:"player"`
	Dealer    int  `json:"dealer"`
	UsableAce bool `json:"usable_ace"`
}

// Bust is the absorbing state reached when a hit takes the player past 21.
var Bust = State{}

const bustValue = -1.0

func (s State) IsBust() bool {
	return s == Bust
}

// Valid reports whether s lies in the solver's state space.
func (s State) Valid() bool {
	return s.Player >= MinPlayer && s.Player <= MaxPlayer &&
		s.Dealer >= MinDealer && s.Dealer <= MaxDealer
}

func (s State) String() string {
	if s.IsBust() {
		return "bust"
	}
	soft := "hard"
	if s.UsableAce {
		soft = "soft"
	}
	return fmt.Sprintf("%s %d vs %d", soft, s.Player, s.Dealer)
}

func mustState(s State) {
	if !s.Valid() {
		panic(fmt.Sprintf("mdp: state %+v outside the solver's state space", s))
	}
}

// States enumerates the state space in a fixed order: player total, then
// dealer upcard, then hard before soft.
func States() []State {
	states := make([]State, 0, numStates)
	for p := MinPlayer; p <= MaxPlayer; p++ {
		for d := MinDealer; d <= MaxDealer; d++ {
			states = append(states, State{Player: p, Dealer: d})
			states = append(states, State{Player: p, Dealer: d, UsableAce: true})
		}
	}
	return states
}

// Distribution maps a dealer final total to its probability. Totals above
// 21 are busts.
type Distribution map[int]float64

// Totals returns the keys in ascending order.
func (d Distribution) Totals() []int {
	totals := make([]int, 0, len(d))
	for t := range d {
		totals = append(totals, t)
	}
	sort.Ints(totals)
	return totals
}

// Transition is one outcome of a hit.
type Transition struct {
	Next        State
	Probability float64
}

type hand struct {
	total  int
	usable bool
}

type standKey struct {
	player int
	dealer int
}

// Model memoizes the infinite-deck dynamics. Cached values are shared, so
// callers must treat returned distributions and transitions as read-only.
// A Model is not safe for concurrent use.
type Model struct {
	dealer map[hand]Distribution
	stand  map[standKey]float64
	hits   map[State][]Transition

	hardAceUpcard bool
}

// ModelOption adjusts a Model's card rules.
type ModelOption func(*Model)

// WithHardAceUpcard counts a dealer ace upcard as a hard 1 when the hole
// card is added. Only a hole ace can then make the dealer soft, which
// understates the dealer against an ace.
func WithHardAceUpcard() ModelOption {
	return func(m *Model) { m.hardAceUpcard = true }
}

func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		dealer: make(map[hand]Distribution),
		stand:  make(map[standKey]float64),
		hits:   make(map[State][]Transition),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DealerFinalDistribution is the distribution of the dealer's final total
// from (total, usable) when the dealer draws until reaching 17.
func (m *Model) DealerFinalDistribution(total int, usable bool) Distribution {
	key := hand{total: total, usable: usable}
	if dist, ok := m.dealer[key]; ok {
		return dist
	}
	var dist Distribution
	if total >= blackjack.DealerStands {
		dist = Distribution{total: 1}
	} else {
		dist = make(Distribution)
		for _, rank := range blackjack.Ranks() {
			p := blackjack.RankProbability(rank)
			nextTotal, nextUsable := blackjack.AddCard(total, usable, rank)
			sub := m.DealerFinalDistribution(nextTotal, nextUsable)
			for _, final := range sub.Totals() {
				dist[final] += p * sub[final]
			}
		}
	}
	m.dealer[key] = dist
	return dist
}

// StandValue is the expected payoff of standing on player against upcard,
// averaged over the hidden hole card. Standing settles the hand at once, so
// gamma does not discount it.
//
// The upcard is dealt into an empty hand, so an ace upcard is a soft 11 as
// at the table and as the shoe environment plays it. WithHardAceUpcard
// counts it as 1 instead, which flips hard 15, hard 16 and soft 18 against
// an ace to stand.
func (m *Model) StandValue(player, upcard int, gamma float64) float64 {
	mustState(State{Player: player, Dealer: upcard})
	key := standKey{player: player, dealer: upcard}
	if v, ok := m.stand[key]; ok {
		return v
	}
	upTotal, upUsable := blackjack.AddCard(0, false, upcard)
	if m.hardAceUpcard && upcard == blackjack.Ace {
		upTotal, upUsable = blackjack.Ace, false
	}
	value := 0.0
	for _, hole := range blackjack.Ranks() {
		pHole := blackjack.RankProbability(hole)
		total, usable := blackjack.AddCard(upTotal, upUsable, hole)
		final := m.DealerFinalDistribution(total, usable)
		for _, dealerTotal := range final.Totals() {
			value += pHole * final[dealerTotal] * blackjack.Outcome(player, dealerTotal)
		}
	}
	m.stand[key] = value
	return value
}

// HitTransitions lists the states reachable by one hit from s, bust first,
// then in States order.
func (m *Model) HitTransitions(s State) []Transition {
	mustState(s)
	if ts, ok := m.hits[s]; ok {
		return ts
	}
	acc := make(map[State]float64)
	for _, rank := range blackjack.Ranks() {
		total, usable := blackjack.AddCard(s.Player, s.UsableAce, rank)
		next := Bust
		if !blackjack.Busted(total) {
			next = State{Player: total, Dealer: s.Dealer, UsableAce: usable}
		}
		acc[next] += blackjack.RankProbability(rank)
	}
	ts := make([]Transition, 0, len(acc))
	for next, p := range acc {
		ts = append(ts, Transition{Next: next, Probability: p})
	}
	sort.Slice(ts, func(i, j int) bool {
		return stateIndex(ts[i].Next) < stateIndex(ts[j].Next)
	})
	m.hits[s] = ts
	return ts
}

// hitValue is the one-step lookahead of hitting from s under values.
func (m *Model) hitValue(s State, values *ValueTable, gamma float64) float64 {
	q := 0.0
	for _, t := range m.HitTransitions(s) {
		if t.Next.IsBust() {
			q += t.Probability * bustValue
			continue
		}
		q += t.Probability * gamma * values.Get(t.Next)
	}
	return q
}

// actionValues returns q_stand and q_hit for s.
func (m *Model) actionValues(s State, values *ValueTable, gamma float64) (float64, float64) {
	return m.StandValue(s.Player, s.Dealer, gamma), m.hitValue(s, values, gamma)
}

// greedy picks Stand on ties.
func greedy(qStand, qHit float64) (blackjack.Action, float64) {
	if qStand >= qHit {
		return blackjack.Stand, qStand
	}
	return blackjack.Hit, qHit
}
