// Package network holds a gene-regulatory network: ordered species, named
// reactions and the shared symbol table their rate laws read.
package network

import (
	"errors"
	"fmt"
	"strings"

	"regulon/internal/formula"
	"regulon/internal/ratelaw"
)

var (
	ErrInvalidNetwork       = errors.New("invalid network")
	ErrUnknownSpecies       = errors.New("unknown species")
	ErrDuplicateSpecies     = errors.New("duplicate species")
	ErrInvalidConcentration = errors.New("concentration must be finite and >= 0")
	ErrUnknownReaction      = errors.New("unknown reaction")
	ErrDuplicateReaction    = errors.New("duplicate reaction")
	ErrInvalidParamHandle   = errors.New("invalid parameter handle")
	ErrSymbolEvaluation     = errors.New("symbol evaluation failed")
)

// Network topology is fixed once built; parameter values and initial
// amounts mutate in place.
type Network struct {
	Species   *Species
	Reactions []*Reaction
	Symbols   formula.Symbols
	byName    map[string]*Reaction
}

func New() *Network {
	return &Network{
		Species: NewSpecies(),
		Symbols: make(formula.Symbols),
		byName:  make(map[string]*Reaction),
	}
}

func (n *Network) AddSpecies(name string, amount float64) error {
	return n.Species.Add(name, amount)
}

// AddReaction appends r. Its name must be unique and every species on
// either side must already be declared.
func (n *Network) AddReaction(r *Reaction) error {
	if r == nil || r.Formula == nil {
		return fmt.Errorf("%w: reaction formula is required", ErrInvalidNetwork)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: reaction name is required", ErrInvalidNetwork)
	}
	if _, ok := n.byName[r.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateReaction, r.Name)
	}
	for _, s := range append(append([]string(nil), r.Left...), r.Right...) {
		if !n.Species.Has(s) {
			return fmt.Errorf("reaction %s: %w: %s", r.Name, ErrUnknownSpecies, s)
		}
	}
	n.byName[r.Name] = r
	n.Reactions = append(n.Reactions, r)
	return nil
}

func (n *Network) Reaction(name string) (*Reaction, error) {
	r, ok := n.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReaction, name)
	}
	return r, nil
}

// DefineSymbol evaluates expression against the symbols defined so far and
// stores the result under name.
func (n *Network) DefineSymbol(name, expression string) (float64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: symbol name is required", ErrInvalidNetwork)
	}
	expr, err := ratelaw.Parse(expression)
	if err != nil {
		return 0, fmt.Errorf("symbol %s: %w", name, err)
	}
	v, err := expr.Eval(ratelaw.MapResolver(n.Symbols))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrSymbolEvaluation, name, err)
	}
	n.Symbols[name] = v
	return v, nil
}

// State snapshots the current species amounts.
func (n *Network) State() formula.State {
	return n.Species.State()
}

// Check verifies that every rate law can be evaluated against the initial
// state, surfacing undefined symbols and unknown species before simulation.
func (n *Network) Check() error {
	if len(n.Reactions) == 0 {
		return fmt.Errorf("%w: no reactions", ErrInvalidNetwork)
	}
	state := n.State()
	for _, r := range n.Reactions {
		if _, err := r.Rate(state); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) String() string {
	var b strings.Builder
	b.WriteString("species:\n")
	for _, name := range n.Species.Names() {
		v, _ := n.Species.Value(name)
		fmt.Fprintf(&b, "  %s = %g\n", name, v)
	}
	if len(n.Symbols) > 0 {
		fmt.Fprintf(&b, "symbols: %d\n", len(n.Symbols))
	}
	b.WriteString("reactions:\n")
	for _, r := range n.Reactions {
		fmt.Fprintf(&b, "  %s\n", r)
	}
	return b.String()
}
