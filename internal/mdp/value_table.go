package mdp

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
)

const (
	numPlayers = MaxPlayer - MinPlayer + 1
	numDealers = MaxDealer - MinDealer + 1
	numStates  = numPlayers * numDealers * 2
)

// ValueTable is a dense state-value function over States.
type ValueTable struct {
	data [numStates]float64
}

func newValueTable() *ValueTable {
	return &ValueTable{}
}

// stateIndex orders states the way States enumerates them; Bust sorts first.
func stateIndex(s State) int {
	if s.IsBust() {
		return -1
	}
	idx := ((s.Player-MinPlayer)*numDealers + (s.Dealer - MinDealer)) * 2
	if s.UsableAce {
		idx++
	}
	return idx
}

func (v *ValueTable) Get(s State) float64 {
	mustState(s)
	return v.data[stateIndex(s)]
}

func (v *ValueTable) set(s State, value float64) {
	v.data[stateIndex(s)] = value
}

// Mean is the average value over all states.
func (v *ValueTable) Mean() float64 {
	return stat.Mean(v.data[:], nil)
}

// Map copies the table into a plain mapping.
func (v *ValueTable) Map() map[State]float64 {
	out := make(map[State]float64, numStates)
	for _, s := range States() {
		out[s] = v.data[stateIndex(s)]
	}
	return out
}

// Print writes one grid per usable-ace flag, player totals down and dealer
// upcards across.
func (v *ValueTable) Print(w io.Writer) {
	for _, usable := range []bool{false, true} {
		label := "hard"
		if usable {
			label = "soft"
		}
		fmt.Fprintf(w, "value table (%s):\n", label)
		fmt.Fprintf(w, "    ")
		for d := MinDealer; d <= MaxDealer; d++ {
			fmt.Fprintf(w, "%6d ", d)
		}
		fmt.Fprintln(w)
		for p := MaxPlayer; p >= MinPlayer; p-- {
			fmt.Fprintf(w, "%3d ", p)
			for d := MinDealer; d <= MaxDealer; d++ {
				fmt.Fprintf(w, "%6.2f ", v.Get(State{Player: p, Dealer: d, UsableAce: usable}))
			}
			fmt.Fprintln(w)
		}
	}
}
