// Package constraint scores simulation output against time-windowed
// behavioural requirements.
package constraint

import (
	"errors"
	"fmt"
	"math"

	"regulon/internal/ratelaw"
)

var ErrInvalidConstraint = errors.New("invalid constraint")

// Predicate returns how far a value is from satisfying a requirement;
// anything <= 0 is satisfied.
type Predicate func(v float64) float64

// Constraint requires Predicate to hold for Species over [From, To].
type Constraint struct {
	Species     string
	Predicate   Predicate
	From        float64
	To          float64
	Description string
}

func (c Constraint) String() string {
	desc := c.Description
	if desc == "" {
		desc = "custom predicate"
	}
	return fmt.Sprintf("%s: %s over [%g, %g]", c.Species, desc, c.From, c.To)
}

func (c Constraint) Validate() error {
	if c.Species == "" {
		return fmt.Errorf("%w: species is required", ErrInvalidConstraint)
	}
	if c.Predicate == nil {
		return fmt.Errorf("%w: %s: predicate is required", ErrInvalidConstraint, c.Species)
	}
	if math.IsNaN(c.From) || math.IsNaN(c.To) {
		return fmt.Errorf("%w: %s: window bounds must be numbers", ErrInvalidConstraint, c.Species)
	}
	return nil
}

// Below is satisfied while v <= limit.
func Below(limit float64) Predicate {
	return func(v float64) float64 { return v - limit }
}

// Above is satisfied while v >= limit.
func Above(limit float64) Predicate {
	return func(v float64) float64 { return limit - v }
}

// Within is satisfied while lo <= v <= hi.
func Within(lo, hi float64) Predicate {
	return func(v float64) float64 { return math.Max(lo-v, v-hi) }
}

// Expression compiles an infix predicate over the sampled value, which may be
// referred to as "v" or by the species name, e.g. "200 - y".
func Expression(species, src string) (Predicate, error) {
	expr, err := ratelaw.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConstraint, err)
	}
	for _, id := range expr.Identifiers() {
		if id != "v" && id != species {
			return nil, fmt.Errorf("%w: predicate %q may only reference v or %s, found %s", ErrInvalidConstraint, src, species, id)
		}
	}
	return func(v float64) float64 {
		out, err := expr.Eval(ratelaw.ResolverFunc(func(name string) (float64, bool) {
			return v, name == "v" || name == species
		}))
		if err != nil {
			// Unreachable: identifiers were checked at compile time.
			panic(err)
		}
		return out
	}, nil
}
