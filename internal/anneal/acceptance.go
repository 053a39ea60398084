package anneal

import (
	"fmt"
	"math"
	"math/rand"
)

const discretePrecision = 100

// Acceptance decides a Bernoulli trial with success probability p.
type Acceptance interface {
	Name() string
	Accept(p float64, rng *rand.Rand) bool
}

// AcceptExact compares a uniform real draw against p.
type AcceptExact struct{}

func (AcceptExact) Name() string { return "exact" }

func (AcceptExact) Accept(p float64, rng *rand.Rand) bool {
	return RandBool(rng, p)
}

// AcceptDiscretized reproduces the legacy integer coin: a draw from
// [0, ceil(1/p)*100) succeeds below 100, so the effective probability is
// 1/ceil(1/p) rather than p.
type AcceptDiscretized struct{}

func (AcceptDiscretized) Name() string { return "discretized" }

func (AcceptDiscretized) Accept(p float64, rng *rand.Rand) bool {
	return RandBoolDiscretized(rng, p)
}

// RandBool reports whether a uniform draw in [0, 1) falls below p.
func RandBool(rng *rand.Rand, p float64) bool {
	switch {
	case p >= 1:
		return true
	case p <= 0 || math.IsNaN(p):
		return false
	}
	return rng.Float64() < p
}

// RandBoolDiscretized succeeds with probability 1/ceil(1/p).
func RandBoolDiscretized(rng *rand.Rand, p float64) bool {
	switch {
	case p >= 1:
		return true
	case p <= 0 || math.IsNaN(p):
		return false
	}
	denom := math.Ceil(1/p) * discretePrecision
	if denom > math.MaxInt32 {
		return false
	}
	return rng.Intn(int(denom)) < discretePrecision
}

// AcceptanceByName resolves "exact" (default) or "discretized".
func AcceptanceByName(name string) (Acceptance, error) {
	switch name {
	case "", AcceptExact{}.Name():
		return AcceptExact{}, nil
	case AcceptDiscretized{}.Name():
		return AcceptDiscretized{}, nil
	default:
		return nil, fmt.Errorf("unsupported acceptance %q", name)
	}
}
