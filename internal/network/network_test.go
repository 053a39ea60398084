package network

import (
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"regulon/internal/formula"
)

func repressorNetwork(t *testing.T) *Network {
	t.Helper()
	n := New()
	if err := n.AddSpecies("x", 100); err != nil {
		t.Fatalf("add x: %v", err)
	}
	if err := n.AddSpecies("y", 0); err != nil {
		t.Fatalf("add y: %v", err)
	}
	reactions := []*Reaction{
		{Name: "y_trans", Right: []string{"y"}, Formula: &formula.Transcription{
			Rate: 5, Hill: 2, Kd: 40, Target: "y",
			Regulators: []formula.Regulation{{From: "x", To: "y", Type: formula.Repression}},
		}},
		{Name: "y_deg", Left: []string{"y"}, Formula: &formula.Degradation{Rate: 0.3, Decaying: "y"}},
	}
	for _, r := range reactions {
		if err := n.AddReaction(r); err != nil {
			t.Fatalf("add %s: %v", r.Name, err)
		}
	}
	return n
}

func TestSpeciesPreserveInsertionOrder(t *testing.T) {
	s := NewSpecies()
	for i, name := range []string{"z", "a", "m"} {
		if err := s.Add(name, float64(i)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	names := s.Names()
	if names[0] != "z" || names[1] != "a" || names[2] != "m" {
		t.Fatalf("unexpected order: %v", names)
	}
	if i, ok := s.Index("m"); !ok || i != 2 {
		t.Fatalf("unexpected index: %d %v", i, ok)
	}
}

func TestSpeciesValidation(t *testing.T) {
	s := NewSpecies()
	if err := s.Add("x", -1); !errors.Is(err, ErrInvalidConcentration) {
		t.Fatalf("expected negative concentration error, got %v", err)
	}
	if err := s.Add("x", math.NaN()); !errors.Is(err, ErrInvalidConcentration) {
		t.Fatalf("expected NaN concentration error, got %v", err)
	}
	if err := s.Add("x", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("x", 2); !errors.Is(err, ErrDuplicateSpecies) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := s.Set("missing", 1); !errors.Is(err, ErrUnknownSpecies) {
		t.Fatalf("expected unknown species, got %v", err)
	}
}

func TestAddReactionValidation(t *testing.T) {
	n := repressorNetwork(t)
	deg := &formula.Degradation{Rate: 1, Decaying: "x"}
	if err := n.AddReaction(&Reaction{Name: "y_deg", Left: []string{"x"}, Formula: deg}); !errors.Is(err, ErrDuplicateReaction) {
		t.Fatalf("expected duplicate reaction, got %v", err)
	}
	if err := n.AddReaction(&Reaction{Name: " ", Formula: deg}); !errors.Is(err, ErrInvalidNetwork) {
		t.Fatalf("expected missing name error, got %v", err)
	}
	if err := n.AddReaction(&Reaction{Name: "q", Left: []string{"q"}, Formula: deg}); !errors.Is(err, ErrUnknownSpecies) {
		t.Fatalf("expected unknown species, got %v", err)
	}
	if err := n.AddReaction(&Reaction{Name: "nil"}); !errors.Is(err, ErrInvalidNetwork) {
		t.Fatalf("expected missing formula error, got %v", err)
	}
}

func TestChangeVector(t *testing.T) {
	n := repressorNetwork(t)
	trans, err := n.Reaction("y_trans")
	if err != nil {
		t.Fatalf("reaction: %v", err)
	}
	change, err := trans.ChangeVector(formula.State{"x": 40, "y": 1})
	if err != nil {
		t.Fatalf("change vector: %v", err)
	}
	if change["y"] != 2.5 || change["x"] != 0 || len(change) != 2 {
		t.Fatalf("unexpected change vector: %v", change)
	}

	deg, _ := n.Reaction("y_deg")
	change, err = deg.ChangeVector(formula.State{"x": 40, "y": 10})
	if err != nil {
		t.Fatalf("change vector: %v", err)
	}
	if math.Abs(change["y"]+3) > 1e-12 {
		t.Fatalf("expected degradation to consume y: %v", change)
	}
}

func TestChangeVectorUsesMembership(t *testing.T) {
	r := &Reaction{Name: "dimer", Left: []string{"a", "a"}, Right: []string{"d"}, Formula: &formula.Degradation{Rate: 1, Decaying: "a"}}
	change, err := r.ChangeVector(formula.State{"a": 2, "d": 0})
	if err != nil {
		t.Fatalf("change vector: %v", err)
	}
	if change["a"] != -2 || change["d"] != 2 {
		t.Fatalf("expected unit coefficients: %v", change)
	}
}

func TestSelfCancellingSpecies(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("species on both sides nets to zero", prop.ForAll(
		func(rate, amount float64) bool {
			r := &Reaction{
				Name:    "catalysed",
				Left:    []string{"e", "s"},
				Right:   []string{"e", "p"},
				Formula: &formula.Degradation{Rate: rate, Decaying: "s"},
			}
			change, err := r.ChangeVector(formula.State{"e": amount, "s": amount, "p": 0})
			if err != nil {
				return false
			}
			want := rate * amount
			return change["e"] == 0 && change["s"] == -want && change["p"] == want
		},
		gen.Float64Range(-50, 50),
		gen.Float64Range(0, 1000),
	))
	properties.TestingRun(t)
}

func TestParamHandles(t *testing.T) {
	n := repressorNetwork(t)

	set, err := n.Resolve(ReactionParam("y_trans", "rate"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := set(7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := n.Value(ReactionParam("y_trans", "rate")); err != nil || v != 7 {
		t.Fatalf("value: %f %v", v, err)
	}
	if v, err := n.Value(ReactionParam("y_trans", "hill_coeff")); err != nil || v != 2 {
		t.Fatalf("alias value: %f %v", v, err)
	}

	set, err = n.Resolve(InitialAmount("x"))
	if err != nil {
		t.Fatalf("resolve species: %v", err)
	}
	if err := set(12); err != nil {
		t.Fatalf("set species: %v", err)
	}
	if v, _ := n.Species.Value("x"); v != 12 {
		t.Fatalf("initial amount not applied: %f", v)
	}
	if err := set(-1); !errors.Is(err, ErrInvalidConcentration) {
		t.Fatalf("expected invalid concentration, got %v", err)
	}

	if _, err := n.Resolve(ReactionParam("nope", "rate")); !errors.Is(err, ErrUnknownReaction) {
		t.Fatalf("expected unknown reaction, got %v", err)
	}
	if _, err := n.Resolve(ReactionParam("y_deg", "kd")); !errors.Is(err, formula.ErrUnknownParam) {
		t.Fatalf("expected unknown param, got %v", err)
	}
	if _, err := n.Resolve(InitialAmount("q")); !errors.Is(err, ErrUnknownSpecies) {
		t.Fatalf("expected unknown species, got %v", err)
	}
	if _, err := n.Resolve(ParamHandle{Reaction: "y_deg"}); !errors.Is(err, ErrInvalidParamHandle) {
		t.Fatalf("expected invalid handle, got %v", err)
	}
}

func TestKdHandleReachesRegulationKd(t *testing.T) {
	n := New()
	for name, amount := range map[string]float64{"x": 0, "y": 40} {
		if err := n.AddSpecies(name, amount); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	kd := 40.0
	if err := n.AddReaction(&Reaction{Name: "x_trans", Right: []string{"x"}, Formula: &formula.Transcription{
		Rate: 5, Hill: 2, Kd: 1, Target: "x",
		Regulators: []formula.Regulation{{From: "y", To: "x", Type: formula.Repression, Kd: &kd}},
	}}); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	r, _ := n.Reaction("x_trans")
	before, err := r.Rate(n.State())
	if err != nil {
		t.Fatalf("rate: %v", err)
	}

	handle := ReactionParam("x_trans", "kd")
	set, err := n.Resolve(handle)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := set(1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	after, err := r.Rate(n.State())
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if after <= before {
		t.Fatalf("raising kd of a repression must raise the rate: before=%f after=%f", before, after)
	}
	if v, err := n.Value(handle); err != nil || v != 1000 {
		t.Fatalf("value must report the simulated kd: %f %v", v, err)
	}
}

func TestParseParamHandle(t *testing.T) {
	cases := map[string]ParamHandle{
		"y_trans.rate":   ReactionParam("y_trans", "rate"),
		"ns.reaction.kd": ReactionParam("ns.reaction", "kd"),
		"species:x":      InitialAmount("x"),
	}
	for in, want := range cases {
		got, err := ParseParamHandle(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want || got.String() != in {
			t.Fatalf("parse %q: got=%+v", in, got)
		}
	}
	for _, bad := range []string{"", "rate", ".rate", "r.", "species:"} {
		if _, err := ParseParamHandle(bad); !errors.Is(err, ErrInvalidParamHandle) {
			t.Fatalf("parse %q: expected invalid handle, got %v", bad, err)
		}
	}
}

func TestDefineSymbolUsesEarlierSymbols(t *testing.T) {
	n := New()
	if _, err := n.DefineSymbol("k", "2"); err != nil {
		t.Fatalf("define k: %v", err)
	}
	v, err := n.DefineSymbol("k2", "k * 3 + pow(k, 2)")
	if err != nil {
		t.Fatalf("define k2: %v", err)
	}
	if v != 10 || n.Symbols["k2"] != 10 {
		t.Fatalf("unexpected k2: %f", v)
	}
	if _, err := n.DefineSymbol("bad", "later * 2"); !errors.Is(err, ErrSymbolEvaluation) {
		t.Fatalf("expected symbol evaluation error, got %v", err)
	}
}

func TestCheckSurfacesUndefinedSymbols(t *testing.T) {
	n := repressorNetwork(t)
	if err := n.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	custom, err := formula.NewCustom("k * y", nil, n.Symbols, 0)
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if err := n.AddReaction(&Reaction{Name: "leak", Left: []string{"y"}, Formula: custom}); err != nil {
		t.Fatalf("add: %v", err)
	}
	var undef *formula.UndefinedSymbolError
	if err := n.Check(); !errors.As(err, &undef) {
		t.Fatalf("expected undefined symbol, got %v", err)
	}
	n.Symbols["k"] = 0.1
	if err := n.Check(); err != nil {
		t.Fatalf("check after defining k: %v", err)
	}
}
