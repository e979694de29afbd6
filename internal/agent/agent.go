// Package agent implements a tabular Q-learning player keyed on the
// environment's observation. Action selection is epsilon-greedy with random
// tie-breaking; policy extraction breaks ties toward the lowest action.
package agent

import (
	"fmt"
	"math"
	"math/rand"

	"blackjack-mdp/internal/blackjack"
)

// Config holds the learner's hyperparameters. Missing actions, gamma,
// initial rates and decay kinds fall back to DefaultConfig.
type Config struct {
	Actions int      `json:"actions"`
	Gamma   float64  `json:"gamma"`
	Alpha   Schedule `json:"alpha"`
	Epsilon Schedule `json:"epsilon"`
	Seed    int64    `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Actions: blackjack.NumActions,
		Gamma:   1.0,
		Alpha:   Schedule{Initial: 0.1, Final: 1e-3, Rate: 1e-5, Kind: Linear},
		Epsilon: Schedule{Initial: 1.0, Final: 0.01, Rate: 1e-5, Kind: Linear},
		Seed:    1,
	}
}

func sanitizeSchedule(s, def Schedule) Schedule {
	if s.Initial <= 0 {
		s.Initial = def.Initial
	}
	if s.Final < 0 {
		s.Final = 0
	}
	if s.Final > s.Initial {
		s.Final = s.Initial
	}
	if s.Kind == "" {
		s.Kind = def.Kind
	}
	switch s.Kind {
	case Exponential:
		// a factor outside (0, 1] would jump to the floor or grow away from it
		if s.Rate <= 0 || s.Rate > 1 {
			s.Rate = 1
		}
	default:
		if s.Rate < 0 {
			s.Rate = def.Rate
		}
	}
	return s
}

// QLearner is a tabular off-policy TD controller. It is not safe for
// concurrent use.
type QLearner struct {
	cfg     Config
	rng     *rand.Rand
	q       *qTable
	alpha   float64
	epsilon float64
}

func New(cfg Config) *QLearner {
	def := DefaultConfig()
	if cfg.Actions <= 0 {
		cfg.Actions = def.Actions
	}
	if cfg.Gamma <= 0 || cfg.Gamma > 1 {
		cfg.Gamma = def.Gamma
	}
	if cfg.Epsilon.Initial > 1 {
		cfg.Epsilon.Initial = 1
	}
	cfg.Alpha = sanitizeSchedule(cfg.Alpha, def.Alpha)
	cfg.Epsilon = sanitizeSchedule(cfg.Epsilon, def.Epsilon)
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &QLearner{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		q:       newQTable(cfg.Actions),
		alpha:   cfg.Alpha.Initial,
		epsilon: cfg.Epsilon.Initial,
	}
}

func (a *QLearner) Config() Config { return a.cfg }
func (a *QLearner) Alpha() float64 { return a.alpha }
func (a *QLearner) Epsilon() float64 { return a.epsilon }
func (a *QLearner) StatesSeen() int { return a.q.len() }

func (a *QLearner) mustAction(action blackjack.Action) int {
	if action < 0 || int(action) >= a.cfg.Actions {
		panic(fmt.Sprintf("agent: invalid action %d", int(action)))
	}
	return int(action)
}

// SelectAction picks an action for s. Unless greedy is set, it explores
// uniformly with probability epsilon; otherwise it takes the best stored
// action, choosing uniformly among ties.
func (a *QLearner) SelectAction(s blackjack.Observation, greedy bool) blackjack.Action {
	if !greedy && a.rng.Float64() < a.epsilon {
		return blackjack.Action(a.rng.Intn(a.cfg.Actions))
	}
	bestAction := 0
	bestScore := math.Inf(-1)
	countBest := 0
	for action := 0; action < a.cfg.Actions; action++ {
		score := a.q.get(s, action)
		if score > bestScore {
			bestScore = score
			bestAction = action
			countBest = 1
		} else if score == bestScore {
			countBest++
			if a.rng.Intn(countBest) == 0 {
				bestAction = action
			}
		}
	}
	return blackjack.Action(bestAction)
}

// Update applies Q(s,a) += alpha * (target - Q(s,a)). The target is reward
// when done, and reward + gamma * max Q(next) otherwise; next is not read
// on terminal steps.
func (a *QLearner) Update(s blackjack.Observation, action blackjack.Action, reward float64, next blackjack.Observation, done bool) {
	idx := a.mustAction(action)
	current := a.q.get(s, idx)
	target := reward
	if !done {
		target += a.cfg.Gamma * a.q.maxValue(next)
	}
	a.q.set(s, idx, current+a.alpha*(target-current))
}

func (a *QLearner) DecayEpsilon() {
	a.epsilon = a.cfg.Epsilon.Next(a.epsilon)
}

func (a *QLearner) DecayAlpha() {
	a.alpha = a.cfg.Alpha.Next(a.alpha)
}

// Reset restores alpha and epsilon to their initial values. The table is kept.
func (a *QLearner) Reset() {
	a.alpha = a.cfg.Alpha.Initial
	a.epsilon = a.cfg.Epsilon.Initial
}

// Policy maps every seen state to the first action with the highest value.
func (a *QLearner) Policy() map[blackjack.Observation]blackjack.Action {
	out := make(map[blackjack.Observation]blackjack.Action, a.q.len())
	for s := range a.q.data {
		out[s] = blackjack.Action(a.q.argmax(s))
	}
	return out
}

// QValues returns a copy of the table.
func (a *QLearner) QValues() map[blackjack.Observation][]float64 {
	return a.q.clone()
}
