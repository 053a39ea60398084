package formula

import (
	"fmt"
	"math"

	"regulon/internal/ratelaw"
)

// Custom evaluates a free-form kinetic law. Names resolve against the local
// parameters first, then the shared symbol table, then species state.
type Custom struct {
	expr    *ratelaw.Expr
	Local   map[string]float64
	Symbols Symbols
	// TimeMultiplier rescales the law from the document's time unit to seconds.
	TimeMultiplier float64
}

// NewCustom parses expression once. A zero timeMultiplier means 1.
func NewCustom(expression string, local map[string]float64, symbols Symbols, timeMultiplier float64) (*Custom, error) {
	expr, err := ratelaw.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse rate law %q: %w", expression, err)
	}
	if timeMultiplier == 0 {
		timeMultiplier = 1
	}
	if timeMultiplier < 0 || math.IsNaN(timeMultiplier) || math.IsInf(timeMultiplier, 0) {
		return nil, fmt.Errorf("%w: time multiplier must be > 0, got %g", ErrInvalidParam, timeMultiplier)
	}
	params := make(map[string]float64, len(local))
	for k, v := range local {
		params[k] = v
	}
	return &Custom{expr: expr, Local: params, Symbols: symbols, TimeMultiplier: timeMultiplier}, nil
}

func (c *Custom) Kind() Kind { return KindCustom }

func (c *Custom) Compute(state State) (float64, error) {
	v, err := c.expr.Eval(ratelaw.Chain(
		ratelaw.MapResolver(c.Local),
		ratelaw.MapResolver(c.Symbols),
		ratelaw.MapResolver(state),
	))
	if err != nil {
		return 0, err
	}
	return v / c.TimeMultiplier, nil
}

func (c *Custom) Mutate(updates map[string]float64) {
	if c.Local == nil {
		c.Local = make(map[string]float64, len(updates))
	}
	for k, v := range updates {
		c.Local[k] = v
	}
}

// Setter accepts local parameters and any name the law references; setting
// the latter introduces a local parameter shadowing the symbol or species.
func (c *Custom) Setter(param string) (func(float64), error) {
	if _, ok := c.Local[param]; !ok && !c.references(param) {
		return nil, fmt.Errorf("%w: rate law %q has no %q", ErrUnknownParam, c.expr.Source(), param)
	}
	return func(v float64) { c.Mutate(map[string]float64{param: v}) }, nil
}

func (c *Custom) references(name string) bool {
	for _, id := range c.expr.Identifiers() {
		if id == name {
			return true
		}
	}
	return false
}

func (c *Custom) Params() map[string]float64 {
	out := make(map[string]float64, len(c.Local))
	for k, v := range c.Local {
		out[k] = v
	}
	return out
}

// Expression folds the time multiplier into the law.
func (c *Custom) Expression() string {
	if c.TimeMultiplier == 1 {
		return c.expr.String()
	}
	return "(" + c.expr.String() + ") / " + formatFloat(c.TimeMultiplier)
}

// Law returns the canonical rate law without the time multiplier.
func (c *Custom) Law() string { return c.expr.String() }

// Identifiers lists the free names the law references.
func (c *Custom) Identifiers() []string { return c.expr.Identifiers() }

func (c *Custom) String() string {
	if len(c.Local) == 0 {
		return "custom " + c.expr.String()
	}
	return fmt.Sprintf("custom %s [%s]", c.expr.String(), formatParams(c.Local))
}
