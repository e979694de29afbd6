package agent

import "blackjack-mdp/internal/blackjack"

// qTable grows one zeroed row per observation on first touch.
type qTable struct {
	actions int
	data    map[blackjack.Observation][]float64
}

func newQTable(actions int) *qTable {
	return &qTable{actions: actions, data: make(map[blackjack.Observation][]float64)}
}

// row returns the stored row for s, inserting zeroes when s is unseen.
func (q *qTable) row(s blackjack.Observation) []float64 {
	r, ok := q.data[s]
	if !ok {
		r = make([]float64, q.actions)
		q.data[s] = r
	}
	return r
}

func (q *qTable) get(s blackjack.Observation, action int) float64 {
	return q.row(s)[action]
}

func (q *qTable) set(s blackjack.Observation, action int, value float64) {
	q.row(s)[action] = value
}

func (q *qTable) maxValue(s blackjack.Observation) float64 {
	r := q.row(s)
	max := r[0]
	for a := 1; a < q.actions; a++ {
		if r[a] > max {
			max = r[a]
		}
	}
	return max
}

// argmax returns the first index holding the row maximum.
func (q *qTable) argmax(s blackjack.Observation) int {
	return int(Greedy(q.row(s)))
}

// Greedy returns the first action holding the maximum of an action-value
// row, so ties go to Stand.
func Greedy(row []float64) blackjack.Action {
	best := 0
	for a := 1; a < len(row); a++ {
		if row[a] > row[best] {
			best = a
		}
	}
	return blackjack.Action(best)
}

func (q *qTable) len() int {
	return len(q.data)
}

func (q *qTable) clone() map[blackjack.Observation][]float64 {
	out := make(map[blackjack.Observation][]float64, len(q.data))
	for s, r := range q.data {
		cp := make([]float64, len(r))
		copy(cp, r)
		out[s] = cp
	}
	return out
}
