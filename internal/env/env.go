// Package env simulates single-player Blackjack hands dealt from a shuffled
// shoe. The dealer stands on all 17s; there is no splitting, doubling or
// insurance. The environment tracks a running Hi-Lo count of revealed cards
// and reports it in each observation as a count bin.
package env

import (
	"fmt"
	"math/rand"

	"blackjack-mdp/internal/blackjack"
)

const (
	cardsPerDeck       = 52
	DefaultReshuffleAt = 10
)

type Config struct {
	// Decks is the shoe size. Zero deals from an infinite deck using the
	// fixed rank probabilities; the count then stays neutral.
	Decks int `json:"decks"`
	// ReshuffleAt triggers a fresh shoe once this many cards or fewer remain.
	ReshuffleAt int `json:"reshuffle_at"`
	// NaturalBonus pays 1.5 instead of 1 for a player natural.
	NaturalBonus bool  `json:"natural_bonus"`
	LowCount     int   `json:"low_count"`
	HighCount    int   `json:"high_count"`
	Seed         int64 `json:"seed"`
}

// Info carries per-step diagnostics alongside the observation.
type Info struct {
	// Natural is set when the step only settled a two-card 21 on either side.
	Natural        bool `json:"natural"`
	RunningCount   int  `json:"running_count"`
	CardsRemaining int  `json:"cards_remaining"`
	DealerTotal    int  `json:"dealer_total"`
}

type hand struct {
	total  int
	usable bool
	cards  int
}

func (h *hand) add(rank int) {
	h.total, h.usable = blackjack.AddCard(h.total, h.usable, rank)
	h.cards++
}

func (h hand) natural() bool {
	return h.cards == 2 && h.total == blackjack.MaxHand
}

type Env struct {
	cfg    Config
	rng    *rand.Rand
	shoe   []int
	count  int
	player hand
	dealer hand
	upcard int
	hole   int
	// holeShown records whether the hole card has entered the count.
	holeShown bool
	done      bool
}

func New(cfg Config) *Env {
	if cfg.Decks < 0 {
		cfg.Decks = 0
	}
	if cfg.ReshuffleAt <= 0 {
		cfg.ReshuffleAt = DefaultReshuffleAt
	}
	if cfg.Decks > 0 && cfg.ReshuffleAt >= cfg.Decks*cardsPerDeck/2 {
		cfg.ReshuffleAt = cfg.Decks * cardsPerDeck / 4
	}
	if cfg.LowCount >= cfg.HighCount {
		cfg.LowCount = DefaultLowCount
		cfg.HighCount = DefaultHighCount
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	e := &Env{cfg: cfg, rng: rand.New(rand.NewSource(seed)), done: true}
	e.newShoe()
	return e
}

func (e *Env) Config() Config { return e.cfg }

func (e *Env) infinite() bool {
	return e.cfg.Decks == 0
}

func (e *Env) newShoe() {
	e.count = 0
	// a hole card dealt from the previous shoe never enters the new count
	e.holeShown = true
	if e.infinite() {
		e.shoe = nil
		return
	}
	shoe := make([]int, 0, e.cfg.Decks*cardsPerDeck)
	for d := 0; d < e.cfg.Decks; d++ {
		for suit := 0; suit < 4; suit++ {
			// ace through nine, then ten, jack, queen and king
			for rank := blackjack.Ace; rank <= 9; rank++ {
				shoe = append(shoe, rank)
			}
			for face := 0; face < 4; face++ {
				shoe = append(shoe, blackjack.Ten)
			}
		}
	}
	e.rng.Shuffle(len(shoe), func(i, j int) { shoe[i], shoe[j] = shoe[j], shoe[i] })
	e.shoe = shoe
}

func (e *Env) drawRank() int {
	if e.infinite() {
		u := e.rng.Float64()
		cumulative := 0.0
		for _, rank := range blackjack.Ranks() {
			cumulative += blackjack.RankProbability(rank)
			if u < cumulative {
				return rank
			}
		}
		return blackjack.Ten
	}
	if len(e.shoe) <= e.cfg.ReshuffleAt {
		e.newShoe()
	}
	rank := e.shoe[len(e.shoe)-1]
	e.shoe = e.shoe[:len(e.shoe)-1]
	return rank
}

// draw deals one card; visible cards enter the running count at once.
func (e *Env) draw(visible bool) int {
	rank := e.drawRank()
	if visible {
		e.see(rank)
	}
	return rank
}

func (e *Env) see(rank int) {
	if !e.infinite() {
		e.count += blackjack.HiLo(rank)
	}
}

func (e *Env) revealHole() {
	if !e.holeShown {
		e.see(e.hole)
		e.holeShown = true
	}
}

// Reset deals a new hand from the current shoe.
func (e *Env) Reset() blackjack.Observation {
	e.player = hand{}
	e.dealer = hand{}
	e.player.add(e.draw(true))
	e.player.add(e.draw(true))
	e.upcard = e.draw(true)
	e.dealer.add(e.upcard)
	e.hole = e.draw(false)
	e.dealer.add(e.hole)
	e.holeShown = false
	e.done = false
	return e.observe()
}

// Step plays action and returns the next observation, the reward, whether
// the hand is over, and diagnostics. A natural on either side settles on the
// first step whatever the action. Stepping a finished hand panics.
func (e *Env) Step(action blackjack.Action) (blackjack.Observation, float64, bool, Info) {
	if e.done {
		panic("env: step on a finished hand; call Reset")
	}
	blackjack.MustAction(action)

	if e.player.natural() || e.dealer.natural() {
		reward := e.naturalReward()
		e.finish()
		info := e.info()
		info.Natural = true
		return e.observe(), reward, true, info
	}

	if action == blackjack.Hit {
		e.player.add(e.draw(true))
		if blackjack.Busted(e.player.total) {
			e.finish()
			return e.observe(), -1, true, e.info()
		}
		return e.observe(), 0, false, e.info()
	}

	e.revealHole()
	for e.dealer.total < blackjack.DealerStands {
		e.dealer.add(e.draw(true))
	}
	reward := blackjack.Outcome(e.player.total, e.dealer.total)
	e.finish()
	return e.observe(), reward, true, e.info()
}

func (e *Env) naturalReward() float64 {
	switch {
	case e.player.natural() && e.dealer.natural():
		return 0
	case e.player.natural():
		if e.cfg.NaturalBonus {
			return 1.5
		}
		return 1
	default:
		return -1
	}
}

func (e *Env) finish() {
	e.revealHole()
	e.done = true
}

func (e *Env) observe() blackjack.Observation {
	return blackjack.Observation{
		Player:    e.player.total,
		Dealer:    e.upcard,
		UsableAce: e.player.usable,
		Count:     BinCount(e.count, e.cfg.LowCount, e.cfg.HighCount),
	}
}

func (e *Env) info() Info {
	return Info{
		RunningCount:   e.count,
		CardsRemaining: len(e.shoe),
		DealerTotal:    e.dealer.total,
	}
}

// RunningCount is the Hi-Lo count of cards revealed since the last shuffle.
func (e *Env) RunningCount() int { return e.count }

// CardsRemaining is the number of undealt cards; zero for an infinite deck.
func (e *Env) CardsRemaining() int { return len(e.shoe) }

func (e *Env) String() string {
	if e.done {
		return fmt.Sprintf("player %d dealer %d (count %d)", e.player.total, e.dealer.total, e.count)
	}
	return fmt.Sprintf("player %d dealer shows %d (count %d)", e.player.total, e.upcard, e.count)
}
