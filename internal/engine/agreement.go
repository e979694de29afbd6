package engine

import (
	"math"
	"sort"

	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/mdp"
)

// AgreementOptions filters which learned states are compared.
type AgreementOptions struct {
	// MinVisits skips states the learner acted in fewer times than this.
	MinVisits int
	// MinGap skips states whose exact stand and hit values are closer than
	// this, since either action is near-optimal there.
	MinGap float64
}

// AgreementReport summarizes how often the learned greedy policy matches
// the exact one.
type AgreementReport struct {
	Compared      int                     `json:"compared"`
	Disagreements int                     `json:"disagreements"`
	Rate          float64                 `json:"rate"`
	Mismatches    []blackjack.Observation `json:"mismatches,omitempty"`
}

// Agreement compares learned against solved on every learned state that
// maps onto the solver's state space and passes opts. Each count bin is
// compared separately against the count-free exact action.
func Agreement(learned map[blackjack.Observation]blackjack.Action, visits map[blackjack.Observation]int, solved *mdp.Result, opts AgreementOptions) AgreementReport {
	var report AgreementReport
	for obs, action := range learned {
		s := mdp.State{Player: obs.Player, Dealer: obs.Dealer, UsableAce: obs.UsableAce}
		if !s.Valid() {
			continue
		}
		if visits[obs] < opts.MinVisits {
			continue
		}
		if math.Abs(solved.Stand[s]-solved.Hit[s]) < opts.MinGap {
			continue
		}
		report.Compared++
		if action != solved.Policy[s] {
			report.Disagreements++
			report.Mismatches = append(report.Mismatches, obs)
		}
	}
	if report.Compared > 0 {
		report.Rate = float64(report.Disagreements) / float64(report.Compared)
	}
	sort.Slice(report.Mismatches, func(i, j int) bool {
		a, b := report.Mismatches[i], report.Mismatches[j]
		if a.Player != b.Player {
			return a.Player < b.Player
		}
		if a.Dealer != b.Dealer {
			return a.Dealer < b.Dealer
		}
		if a.UsableAce != b.UsableAce {
			return !a.UsableAce
		}
		return a.Count < b.Count
	})
	return report
}

// ProjectPolicy keeps the learned actions for one count bin, keyed by the
// matching solver state. Observations outside the solver's states are dropped.
func ProjectPolicy(learned map[blackjack.Observation]blackjack.Action, bin blackjack.CountBin) map[mdp.State]blackjack.Action {
	out := make(map[mdp.State]blackjack.Action)
	for obs, action := range learned {
		if obs.Count != bin {
			continue
		}
		s := mdp.State{Player: obs.Player, Dealer: obs.Dealer, UsableAce: obs.UsableAce}
		if s.Valid() {
			out[s] = action
		}
	}
	return out
}
