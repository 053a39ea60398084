// Package simulate integrates the deterministic rate equations of a network
// over a time grid.
package simulate

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"regulon/internal/formula"
	"regulon/internal/network"
)

const (
	tracerName = "regulon/internal/simulate"

	DefaultSamples  = 100
	DefaultRelTol   = 1.49012e-8
	DefaultAbsTol   = 1.49012e-8
	DefaultMaxSteps = 500
)

// TimeSpec describes Samples evenly spaced points from Start to End inclusive.
type TimeSpec struct {
	Start   float64 `json:"start" yaml:"start"`
	End     float64 `json:"end" yaml:"end"`
	Samples int     `json:"samples" yaml:"samples"`
}

// Grid returns the sample times. Samples == 0 means DefaultSamples.
func (s TimeSpec) Grid() ([]float64, error) {
	samples := s.Samples
	if samples == 0 {
		samples = DefaultSamples
	}
	if samples < 0 {
		return nil, fmt.Errorf("%w: samples must be > 0, got %d", ErrInvalidTimeSpec, s.Samples)
	}
	if !finite(s.Start) || !finite(s.End) {
		return nil, fmt.Errorf("%w: bounds must be finite", ErrInvalidTimeSpec)
	}
	if samples == 1 {
		return []float64{s.Start}, nil
	}
	if s.End <= s.Start {
		return nil, fmt.Errorf("%w: end %g must be after start %g", ErrInvalidTimeSpec, s.End, s.Start)
	}
	return floats.Span(make([]float64, samples), s.Start, s.End), nil
}

// Stats counts integrator work for one run.
type Stats struct {
	Accepted    int
	Rejected    int
	Evaluations int
}

// Simulator integrates with an adaptive Dormand-Prince 5(4) scheme, landing
// exactly on every grid point.
type Simulator struct {
	RelTol float64
	AbsTol float64
	// MaxSteps bounds accepted plus rejected steps between two grid points.
	MaxSteps int

	spec TimeSpec
	grid []float64
}

// New validates spec and returns a simulator with default tolerances.
func New(spec TimeSpec) (*Simulator, error) {
	grid, err := spec.Grid()
	if err != nil {
		return nil, err
	}
	if spec.Samples == 0 {
		spec.Samples = DefaultSamples
	}
	return &Simulator{
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MaxSteps: DefaultMaxSteps,
		spec:     spec,
		grid:     grid,
	}, nil
}

// Spec returns the time specification with defaults applied.
func (s *Simulator) Spec() TimeSpec { return s.spec }

// Times returns a copy of the sample grid.
func (s *Simulator) Times() []float64 {
	return append([]float64(nil), s.grid...)
}

// Run integrates net from its current species amounts. Rows of the result
// are samples, columns are species in network order.
func (s *Simulator) Run(ctx context.Context, net *network.Network) (*mat.Dense, error) {
	out, _, err := s.Integrate(ctx, net)
	return out, err
}

// Integrate is Run that also reports integrator work.
func (s *Simulator) Integrate(ctx context.Context, net *network.Network) (*mat.Dense, Stats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulate.Run", trace.WithAttributes(
		attribute.Int("species", net.Species.Len()),
		attribute.Int("reactions", len(net.Reactions)),
		attribute.Int("samples", len(s.grid)),
	))
	defer span.End()

	out, stats, err := s.integrate(ctx, net)
	span.SetAttributes(
		attribute.Int("steps.accepted", stats.Accepted),
		attribute.Int("steps.rejected", stats.Rejected),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, stats, err
	}
	return out, stats, nil
}

func (s *Simulator) integrate(ctx context.Context, net *network.Network) (*mat.Dense, Stats, error) {
	var stats Stats
	rhs := compile(net)
	n := len(rhs.order)
	out := mat.NewDense(len(s.grid), max(n, 1), nil)
	if n == 0 {
		return out, stats, nil
	}

	y := net.Species.Values()
	out.SetRow(0, y)
	t := s.grid[0]

	fail := func(cause error) (*mat.Dense, Stats, error) {
		return nil, stats, &SimulationError{Time: t, State: append([]float64(nil), y...), Cause: cause}
	}

	k := newStages(n)
	if err := rhs.eval(y, k[0]); err != nil {
		return fail(err)
	}
	stats.Evaluations++
	h, err := s.initialStep(rhs, t, y, k[0], &stats)
	if err != nil {
		return fail(err)
	}

	ynew := make([]float64, n)
	errv := make([]float64, n)
	for i := 1; i < len(s.grid); i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		target := s.grid[i]
		for steps := 0; t < target; steps++ {
			if steps >= s.MaxSteps {
				return fail(fmt.Errorf("%w: %d steps before t=%g", ErrStepBudget, s.MaxSteps, target))
			}
			step := h
			last := false
			if t+step >= target || target-(t+step) <= 1e-12*math.Max(1, math.Abs(target)) {
				step = target - t
				last = true
			}
			if step <= 1e-14*math.Max(1, math.Abs(t)) {
				return fail(fmt.Errorf("%w: step size underflow (h=%g)", ErrStepBudget, step))
			}

			if err := dormandPrince(rhs, y, step, k, ynew, errv); err != nil {
				return fail(err)
			}
			stats.Evaluations += 6
			errNorm := s.errorNorm(y, ynew, errv)

			factor := 10.0
			if errNorm > 0 {
				factor = math.Min(10, math.Max(0.2, 0.9*math.Pow(errNorm, -0.2)))
			}
			if errNorm > 1 || math.IsNaN(errNorm) {
				stats.Rejected++
				h = step * math.Min(factor, 1)
				if math.IsNaN(errNorm) {
					h = step * 0.2
				}
				continue
			}

			stats.Accepted++
			if last {
				t = target
				h = math.Max(h, step*factor)
			} else {
				t += step
				h = step * factor
			}
			copy(y, ynew)
			// First same as last: the final stage is f(t+h, y+h).
			k[0], k[6] = k[6], k[0]
		}
		out.SetRow(i, y)
	}
	return out, stats, nil
}

func (s *Simulator) errorNorm(y, ynew, errv []float64) float64 {
	var sum float64
	for i := range errv {
		scale := s.AbsTol + s.RelTol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
		r := errv[i] / scale
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(errv)))
}

// initialStep follows the usual two-evaluation estimate from the local
// Lipschitz behaviour of the right-hand side.
func (s *Simulator) initialStep(rhs *system, t float64, y, f0 []float64, stats *Stats) (float64, error) {
	n := len(y)
	scale := make([]float64, n)
	for i := range y {
		scale[i] = s.AbsTol + s.RelTol*math.Abs(y[i])
	}
	d0 := rms(y, scale)
	d1 := rms(f0, scale)
	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	span := s.grid[len(s.grid)-1] - t
	if span > 0 {
		h0 = math.Min(h0, span)
	}

	y1 := make([]float64, n)
	for i := range y {
		y1[i] = y[i] + h0*f0[i]
	}
	f1 := make([]float64, n)
	if err := rhs.eval(y1, f1); err != nil {
		return 0, err
	}
	stats.Evaluations++
	diff := make([]float64, n)
	for i := range f1 {
		diff[i] = f1[i] - f0[i]
	}
	d2 := rms(diff, scale) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 0.2)
	}
	h := math.Min(100*h0, h1)
	if span > 0 {
		h = math.Min(h, span)
	}
	return h, nil
}

func rms(v, scale []float64) float64 {
	var sum float64
	for i := range v {
		r := v[i] / scale[i]
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(v)))
}

// system is the right-hand side dy/dt = f(y) compiled against a fixed
// species order.
type system struct {
	order     []string
	state     formula.State
	reactions []*network.Reaction
	coeffs    [][]term
}

type term struct {
	index int
	coeff float64
}

func compile(net *network.Network) *system {
	order := net.Species.Names()
	sys := &system{
		order:     order,
		state:     make(formula.State, len(order)),
		reactions: net.Reactions,
		coeffs:    make([][]term, len(net.Reactions)),
	}
	for r, reaction := range net.Reactions {
		for i, name := range order {
			if c := reaction.Coefficient(name); c != 0 {
				sys.coeffs[r] = append(sys.coeffs[r], term{index: i, coeff: c})
			}
		}
	}
	return sys
}

func (s *system) eval(y, dy []float64) error {
	for i, name := range s.order {
		s.state[name] = y[i]
	}
	for i := range dy {
		dy[i] = 0
	}
	// Every rate is evaluated, even for reactions with no net effect, so a
	// broken rate law always surfaces.
	for r, reaction := range s.reactions {
		rate, err := reaction.Rate(s.state)
		if err != nil {
			return err
		}
		for _, tm := range s.coeffs[r] {
			dy[tm.index] += tm.coeff * rate
		}
	}
	for i, v := range dy {
		if !finite(v) {
			return fmt.Errorf("%w: d%s/dt = %g", ErrNonFinite, s.order[i], v)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
