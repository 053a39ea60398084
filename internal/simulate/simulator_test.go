package simulate

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"regulon/internal/formula"
	"regulon/internal/network"
)

func repressorNetwork(t *testing.T, x0, y0 float64) *network.Network {
	t.Helper()
	n := network.New()
	if err := n.AddSpecies("x", x0); err != nil {
		t.Fatalf("add x: %v", err)
	}
	if err := n.AddSpecies("y", y0); err != nil {
		t.Fatalf("add y: %v", err)
	}
	for _, r := range []*network.Reaction{
		{Name: "y_trans", Right: []string{"y"}, Formula: &formula.Transcription{
			Rate: 5, Hill: 2, Kd: 40, Target: "y",
			Regulators: []formula.Regulation{{From: "x", To: "y", Type: formula.Repression}},
		}},
		{Name: "y_deg", Left: []string{"y"}, Formula: &formula.Degradation{Rate: 0.3, Decaying: "y"}},
	} {
		if err := n.AddReaction(r); err != nil {
			t.Fatalf("add %s: %v", r.Name, err)
		}
	}
	return n
}

func TestGrid(t *testing.T) {
	grid, err := TimeSpec{Start: 0, End: 10, Samples: 11}.Grid()
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(grid) != 11 || grid[0] != 0 || grid[10] != 10 || math.Abs(grid[3]-3) > 1e-12 {
		t.Fatalf("unexpected grid: %v", grid)
	}
	grid, err = TimeSpec{Start: 0, End: 5}.Grid()
	if err != nil || len(grid) != DefaultSamples {
		t.Fatalf("expected default samples: %d %v", len(grid), err)
	}
	grid, err = TimeSpec{Start: 2, End: 2, Samples: 1}.Grid()
	if err != nil || len(grid) != 1 || grid[0] != 2 {
		t.Fatalf("single sample grid: %v %v", grid, err)
	}
	for _, bad := range []TimeSpec{
		{Start: 0, End: 10, Samples: -1},
		{Start: 10, End: 0, Samples: 5},
		{Start: 0, End: math.Inf(1), Samples: 5},
		{Start: math.NaN(), End: 1, Samples: 5},
	} {
		if _, err := New(bad); !errors.Is(err, ErrInvalidTimeSpec) {
			t.Fatalf("spec %+v: expected ErrInvalidTimeSpec, got %v", bad, err)
		}
	}
}

func TestRepressorMatchesAnalyticSolution(t *testing.T) {
	net := repressorNetwork(t, 100, 0)
	sim, err := New(TimeSpec{Start: 0, End: 20, Samples: 41})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := sim.Run(context.Background(), net)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rows, cols := out.Dims()
	if rows != 41 || cols != 2 {
		t.Fatalf("unexpected dims: %dx%d", rows, cols)
	}

	production := 5 / (1 + math.Pow(100.0/40, 2))
	steady := production / 0.3
	for i, tm := range sim.Times() {
		if out.At(i, 0) != 100 {
			t.Fatalf("x has no reactions and must stay constant, got %f at t=%f", out.At(i, 0), tm)
		}
		want := steady * (1 - math.Exp(-0.3*tm))
		if got := out.At(i, 1); math.Abs(got-want) > 1e-5 {
			t.Fatalf("y(%f): got=%f want=%f", tm, got, want)
		}
	}
}

func TestDegradationHalfLife(t *testing.T) {
	net := network.New()
	if err := net.AddSpecies("y", 10); err != nil {
		t.Fatalf("add y: %v", err)
	}
	if err := net.AddReaction(&network.Reaction{Name: "y_deg", Left: []string{"y"}, Formula: &formula.Degradation{Rate: 0.3, Decaying: "y"}}); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	sim, err := New(TimeSpec{Start: 0, End: 10, Samples: 1001})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := sim.Run(context.Background(), net)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	times := sim.Times()
	halfLife := -1.0
	for i := range times {
		if out.At(i, 0) <= 5 {
			halfLife = times[i]
			break
		}
	}
	if math.Abs(halfLife-math.Ln2/0.3) > 0.02 {
		t.Fatalf("unexpected half-life: %f", halfLife)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	sim, err := New(TimeSpec{Start: 0, End: 15, Samples: 30})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, err := sim.Run(context.Background(), repressorNetwork(t, 60, 3))
	if err != nil {
		t.Fatalf("run a: %v", err)
	}
	b, err := sim.Run(context.Background(), repressorNetwork(t, 60, 3))
	if err != nil {
		t.Fatalf("run b: %v", err)
	}
	if !mat.Equal(a, b) {
		t.Fatal("expected identical trajectories")
	}
}

func TestRunDoesNotMutateNetwork(t *testing.T) {
	net := repressorNetwork(t, 100, 0)
	sim, err := New(TimeSpec{Start: 0, End: 5, Samples: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := sim.Run(context.Background(), net); err != nil {
		t.Fatalf("run: %v", err)
	}
	if v, _ := net.Species.Value("y"); v != 0 {
		t.Fatalf("initial amount changed: %f", v)
	}
}

func TestUndefinedSymbolSurfacesAsSimulationError(t *testing.T) {
	net := network.New()
	if err := net.AddSpecies("a", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	law, err := formula.NewCustom("k * a", nil, net.Symbols, 0)
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if err := net.AddReaction(&network.Reaction{Name: "decay", Left: []string{"a"}, Formula: law}); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	sim, err := New(TimeSpec{Start: 0, End: 1, Samples: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := sim.Run(context.Background(), net)
	if out != nil {
		t.Fatal("expected no partial trajectory")
	}
	var simErr *SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %v", err)
	}
	var undef *formula.UndefinedSymbolError
	if !errors.As(err, &undef) || undef.Name != "k" {
		t.Fatalf("expected undefined k, got %v", err)
	}
}

func TestSelfCancellingReactionStillEvaluatesRate(t *testing.T) {
	net := network.New()
	if err := net.AddSpecies("e", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	law, err := formula.NewCustom("k * e * missing", map[string]float64{"k": 2}, net.Symbols, 0)
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	// e is both consumed and produced, so the reaction has no net effect.
	if err := net.AddReaction(&network.Reaction{Name: "catalysis", Left: []string{"e"}, Right: []string{"e"}, Formula: law}); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	sim, err := New(TimeSpec{Start: 0, End: 10, Samples: 11})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = sim.Run(context.Background(), net)
	var simErr *SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %v", err)
	}
	var undef *formula.UndefinedSymbolError
	if !errors.As(err, &undef) || undef.Name != "missing" {
		t.Fatalf("expected undefined missing, got %v", err)
	}
}

func TestNonFiniteDerivative(t *testing.T) {
	net := network.New()
	if err := net.AddSpecies("a", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	law, err := formula.NewCustom("1 / a", nil, net.Symbols, 0)
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if err := net.AddReaction(&network.Reaction{Name: "blowup", Right: []string{"a"}, Formula: law}); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	sim, err := New(TimeSpec{Start: 0, End: 1, Samples: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := sim.Run(context.Background(), net); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestStepBudget(t *testing.T) {
	net := network.New()
	if err := net.AddSpecies("a", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := net.AddReaction(&network.Reaction{Name: "fast", Left: []string{"a"}, Formula: &formula.Degradation{Rate: 1e4, Decaying: "a"}}); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	sim, err := New(TimeSpec{Start: 0, End: 100, Samples: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sim.MaxSteps = 10
	if _, err := sim.Run(context.Background(), net); !errors.Is(err, ErrStepBudget) {
		t.Fatalf("expected ErrStepBudget, got %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim, err := New(TimeSpec{Start: 0, End: 5, Samples: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := sim.Run(ctx, repressorNetwork(t, 100, 0)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIntegrateReportsStats(t *testing.T) {
	sim, err := New(TimeSpec{Start: 0, End: 10, Samples: 11})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, stats, err := sim.Integrate(context.Background(), repressorNetwork(t, 100, 0))
	if err != nil {
		t.Fatalf("integrate: %v", err)
	}
	if stats.Accepted < 10 || stats.Evaluations < 6*stats.Accepted {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRepressedProducerWithDecayingRepressor(t *testing.T) {
	net := network.New()
	if err := net.AddSpecies("x", 0); err != nil {
		t.Fatalf("add x: %v", err)
	}
	if err := net.AddSpecies("y", 20); err != nil {
		t.Fatalf("add y: %v", err)
	}
	for _, r := range []*network.Reaction{
		{Name: "x_trans", Right: []string{"x"}, Formula: &formula.Transcription{
			Rate: 5, Hill: 2, Kd: 40, Target: "x",
			Regulators: []formula.Regulation{{From: "y", To: "x", Type: formula.Repression}},
		}},
		{Name: "y_deg", Left: []string{"y"}, Formula: &formula.Degradation{Rate: 0.3, Decaying: "y"}},
	} {
		if err := net.AddReaction(r); err != nil {
			t.Fatalf("add %s: %v", r.Name, err)
		}
	}
	sim, err := New(TimeSpec{Start: 0, End: 100, Samples: 100})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := sim.Run(context.Background(), net)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	times := sim.Times()
	if out.At(0, 0) != 0 {
		t.Fatalf("x must start at 0, got %f", out.At(0, 0))
	}
	for i := 1; i < len(times); i++ {
		if out.At(i, 0) <= out.At(i-1, 0) {
			t.Fatalf("x must keep rising: x(%f)=%f x(%f)=%f", times[i-1], out.At(i-1, 0), times[i], out.At(i, 0))
		}
	}
	// y(t) = 20 exp(-0.3 t); recover the half-life from an early sample.
	rate := -math.Log(out.At(2, 1)/20) / times[2]
	if halfLife := math.Ln2 / rate; math.Abs(halfLife-2.31) > 0.01 {
		t.Fatalf("unexpected y half-life: %f", halfLife)
	}
}
