package mdp

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"blackjack-mdp/internal/blackjack"
)

const (
	DefaultGamma     = 1.0
	DefaultTheta     = 1e-6
	DefaultMaxSweeps = 1000
	DefaultMaxRounds = 100
)

var (
	// ErrNotConverged is returned, wrapped, with the partial result when a
	// solver exhausts its sweep or round budget.
	ErrNotConverged = errors.New("mdp: did not converge")
	// ErrInvalidOptions reports a gamma or theta the solvers cannot use.
	ErrInvalidOptions = errors.New("mdp: invalid options")
)

// Options configures both solvers. Zero fields take the defaults.
type Options struct {
	Gamma     float64
	Theta     float64
	MaxSweeps int
	MaxRounds int
	Logger    logrus.FieldLogger
}

func (o Options) withDefaults() (Options, error) {
	if o.Gamma == 0 {
		o.Gamma = DefaultGamma
	}
	if o.Gamma < 0 || o.Gamma > 1 || math.IsNaN(o.Gamma) {
		return o, fmt.Errorf("%w: gamma %v not in (0, 1]", ErrInvalidOptions, o.Gamma)
	}
	if o.Theta == 0 {
		o.Theta = DefaultTheta
	}
	if o.Theta < 0 || math.IsNaN(o.Theta) {
		return o, fmt.Errorf("%w: theta %v must be positive", ErrInvalidOptions, o.Theta)
	}
	if o.MaxSweeps <= 0 {
		o.MaxSweeps = DefaultMaxSweeps
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o, nil
}

// Stats records solver progress. Deltas and MeanValues get one entry per
// sweep; for policy iteration these are evaluation sweeps across all rounds.
type Stats struct {
	Deltas       []float64 `json:"deltas,omitempty"`
	MeanValues   []float64 `json:"mean_values,omitempty"`
	Sweeps       int       `json:"sweeps"`
	PolicyRounds int       `json:"policy_rounds,omitempty"`
}

// Result is a solved (or partially solved) MDP.
type Result struct {
	Values *ValueTable
	Policy map[State]blackjack.Action
	// Stand and Hit hold the action values behind Policy.
	Stand map[State]float64
	Hit   map[State]float64
	Stats Stats
}

func newResult() *Result {
	policy := make(map[State]blackjack.Action, numStates)
	for _, s := range States() {
		policy[s] = blackjack.Stand
	}
	return &Result{
		Values: newValueTable(),
		Policy: policy,
		Stand:  make(map[State]float64, numStates),
		Hit:    make(map[State]float64, numStates),
	}
}

// ActionValue returns the action value of a in s.
func (r *Result) ActionValue(s State, a blackjack.Action) float64 {
	mustState(s)
	switch blackjack.MustAction(a) {
	case blackjack.Hit:
		return r.Hit[s]
	default:
		return r.Stand[s]
	}
}

// ValueIteration solves with a fresh Model.
func ValueIteration(opts Options) (*Result, error) {
	return NewModel().ValueIteration(opts)
}

// PolicyIteration solves with a fresh Model.
func PolicyIteration(opts Options) (*Result, error) {
	return NewModel().PolicyIteration(opts)
}

// ValueIteration sweeps Bellman optimality backups until the largest change
// in a sweep drops below Theta. Values are updated in place.
func (m *Model) ValueIteration(opts Options) (*Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	log := opts.Logger.WithField("solver", "value-iteration")
	res := newResult()
	states := States()
	for sweep := 1; sweep <= opts.MaxSweeps; sweep++ {
		delta := 0.0
		for _, s := range states {
			qStand, qHit := m.actionValues(s, res.Values, opts.Gamma)
			action, best := greedy(qStand, qHit)
			delta = math.Max(delta, math.Abs(best-res.Values.Get(s)))
			res.Values.set(s, best)
			res.Policy[s] = action
			res.Stand[s] = qStand
			res.Hit[s] = qHit
		}
		res.Stats.Sweeps = sweep
		res.Stats.Deltas = append(res.Stats.Deltas, delta)
		res.Stats.MeanValues = append(res.Stats.MeanValues, res.Values.Mean())
		log.WithFields(logrus.Fields{"sweep": sweep, "delta": delta}).Debug("sweep complete")
		if delta < opts.Theta {
			log.WithField("sweeps", sweep).Info("converged")
			return res, nil
		}
	}
	return res, fmt.Errorf("%w: value iteration after %d sweeps", ErrNotConverged, opts.MaxSweeps)
}

// PolicyIteration alternates full policy evaluation with greedy improvement
// until no action changes.
func (m *Model) PolicyIteration(opts Options) (*Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	log := opts.Logger.WithField("solver", "policy-iteration")
	res := newResult()
	states := States()
	for round := 1; round <= opts.MaxRounds; round++ {
		res.Stats.PolicyRounds = round
		sweeps, err := m.evaluate(res, states, opts)
		res.Stats.Sweeps += sweeps
		if err != nil {
			return res, err
		}
		stable := true
		for _, s := range states {
			qStand, qHit := m.actionValues(s, res.Values, opts.Gamma)
			action, _ := greedy(qStand, qHit)
			res.Stand[s] = qStand
			res.Hit[s] = qHit
			if action != res.Policy[s] {
				stable = false
			}
			res.Policy[s] = action
		}
		log.WithFields(logrus.Fields{"round": round, "sweeps": sweeps, "stable": stable}).Debug("policy improved")
		if stable {
			log.WithField("rounds", round).Info("converged")
			return res, nil
		}
	}
	return res, fmt.Errorf("%w: policy iteration after %d rounds", ErrNotConverged, opts.MaxRounds)
}

// evaluate sweeps the current policy's Bellman backup in place until the
// per-sweep delta drops below Theta and returns the sweep count.
func (m *Model) evaluate(res *Result, states []State, opts Options) (int, error) {
	for sweep := 1; sweep <= opts.MaxSweeps; sweep++ {
		delta := 0.0
		for _, s := range states {
			var v float64
			if res.Policy[s] == blackjack.Stand {
				v = m.StandValue(s.Player, s.Dealer, opts.Gamma)
			} else {
				v = m.hitValue(s, res.Values, opts.Gamma)
			}
			delta = math.Max(delta, math.Abs(v-res.Values.Get(s)))
			res.Values.set(s, v)
		}
		res.Stats.Deltas = append(res.Stats.Deltas, delta)
		res.Stats.MeanValues = append(res.Stats.MeanValues, res.Values.Mean())
		if delta < opts.Theta {
			return sweep, nil
		}
	}
	return opts.MaxSweeps, fmt.Errorf("%w: policy evaluation after %d sweeps", ErrNotConverged, opts.MaxSweeps)
}
