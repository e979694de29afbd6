package agent

import "fmt"

// DecayKind selects how a Schedule moves toward its floor.
type DecayKind string

const (
	Linear      DecayKind = "linear"
	Exponential DecayKind = "exponential"
)

// ParseDecayKind accepts "linear" or "exponential".
func ParseDecayKind(s string) (DecayKind, error) {
	switch DecayKind(s) {
	case Linear, Exponential:
		return DecayKind(s), nil
	}
	return "", fmt.Errorf("unknown decay kind %q", s)
}

// Schedule describes a parameter that starts at Initial and decays toward
// Final. Linear schedules subtract Rate per step; exponential schedules
// multiply by it.
type Schedule struct {
	Initial float64   `json:"initial"`
	Final   float64   `json:"final"`
	Rate    float64   `json:"rate"`
	Kind    DecayKind `json:"kind"`
}

// Next returns one decay step from current, never going below Final.
func (s Schedule) Next(current float64) float64 {
	var next float64
	if s.Kind == Exponential {
		next = current * s.Rate
	} else {
		next = current - s.Rate
	}
	return maxFloat(s.Final, next)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
