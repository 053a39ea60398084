package network

import (
	"fmt"
	"strings"

	"regulon/internal/formula"
)

type Reaction struct {
	Name    string
	Left    []string
	Right   []string
	Formula formula.Formula
}

func (r *Reaction) Rate(state formula.State) (float64, error) {
	rate, err := r.Formula.Compute(state)
	if err != nil {
		return 0, fmt.Errorf("reaction %s: %w", r.Name, err)
	}
	return rate, nil
}

// Coefficient is -1 for a consumed species, +1 for a produced one and 0 when
// the species is on neither side or on both. Multiplicity is ignored.
func (r *Reaction) Coefficient(species string) float64 {
	var c float64
	if contains(r.Left, species) {
		c--
	}
	if contains(r.Right, species) {
		c++
	}
	return c
}

// ChangeVector returns the contribution of this reaction to d[x]/dt for every
// species in state.
func (r *Reaction) ChangeVector(state formula.State) (map[string]float64, error) {
	rate, err := r.Rate(state)
	if err != nil {
		return nil, err
	}
	change := make(map[string]float64, len(state))
	for species := range state {
		change[species] = 0
		if c := r.Coefficient(species); c != 0 {
			change[species] = c * rate
		}
	}
	return change, nil
}

func (r *Reaction) String() string {
	return fmt.Sprintf("%s: %s -> %s | %s", r.Name, side(r.Left), side(r.Right), r.Formula)
}

func side(species []string) string {
	if len(species) == 0 {
		return "∅"
	}
	return strings.Join(species, " + ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
