package network

import (
	"fmt"
	"math"

	"regulon/internal/formula"
)

// Species is an insertion-ordered table of concentrations.
type Species struct {
	names  []string
	index  map[string]int
	values []float64
}

func NewSpecies() *Species {
	return &Species{index: make(map[string]int)}
}

func validConcentration(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// Add appends a species. Names are unique; concentrations are finite and non-negative.
func (s *Species) Add(name string, value float64) error {
	if name == "" {
		return fmt.Errorf("%w: species name is required", ErrInvalidNetwork)
	}
	if _, ok := s.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSpecies, name)
	}
	if !validConcentration(value) {
		return fmt.Errorf("%w: %s=%g", ErrInvalidConcentration, name, value)
	}
	s.index[name] = len(s.names)
	s.names = append(s.names, name)
	s.values = append(s.values, value)
	return nil
}

func (s *Species) Len() int { return len(s.names) }

// Names returns the species in insertion order.
func (s *Species) Names() []string {
	return append([]string(nil), s.names...)
}

// Values returns concentrations in insertion order.
func (s *Species) Values() []float64 {
	return append([]float64(nil), s.values...)
}

func (s *Species) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *Species) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s *Species) Value(name string) (float64, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSpecies, name)
	}
	return s.values[i], nil
}

func (s *Species) Set(name string, value float64) error {
	i, ok := s.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSpecies, name)
	}
	if !validConcentration(value) {
		return fmt.Errorf("%w: %s=%g", ErrInvalidConcentration, name, value)
	}
	s.values[i] = value
	return nil
}

// State snapshots the table as a rate-law view.
func (s *Species) State() formula.State {
	out := make(formula.State, len(s.names))
	for i, name := range s.names {
		out[name] = s.values[i]
	}
	return out
}
