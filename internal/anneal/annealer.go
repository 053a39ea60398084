// Package anneal reverse-engineers network parameters by simulated annealing:
// mutate, simulate, score against constraints, accept or reject.
package anneal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"regulon/internal/constraint"
	"regulon/internal/logging"
	"regulon/internal/network"
	"regulon/internal/results"
	"regulon/internal/simulate"
)

const tracerName = "regulon/internal/anneal"

// ErrNoSolutionFound is Result.Err for a search that exhausted its schedule.
var ErrNoSolutionFound = errors.New("no solution found")

// Session bundles everything one search needs.
type Session struct {
	Network     *network.Network
	Simulator   *simulate.Simulator
	Mutables    []Mutable
	Constraints []constraint.Constraint
	Schedule    Schedule
}

// Step records one schedule iteration. Moved is the index of the mutable
// incremented to form the neighbour, or -1 when none could step.
type Step struct {
	Index            int       `json:"index"`
	Temperature      float64   `json:"temperature"`
	Current          []float64 `json:"current"`
	Penalty          float64   `json:"penalty"`
	Moved            int       `json:"moved"`
	NeighbourPenalty float64   `json:"neighbour_penalty"`
	Probability      float64   `json:"probability"`
	Accepted         bool      `json:"accepted"`
	Solved           bool      `json:"solved,omitempty"`
}

// Result is the outcome of a search. Values holds the final value of every
// mutable in session order.
type Result struct {
	Solved  bool
	Values  []float64
	Penalty float64
	Steps   int
	History []Step
}

// Err returns ErrNoSolutionFound for an unsolved result.
func (r Result) Err() error {
	if r.Solved {
		return nil
	}
	return ErrNoSolutionFound
}

// Observer receives search progress, e.g. for metrics.
type Observer interface {
	ObserveStep(Step)
	ObserveResult(Result)
}

// Annealer runs searches. Rand is shared between searches and guarded by a
// mutex; a Network must not be searched concurrently.
//
// By default a move's worsening is evalNeighbour - evalCurrent, so better
// neighbours are always taken and worse ones pass the coin. LegacySign
// scores it as evalCurrent - evalNeighbour instead, reproducing the legacy
// search that always takes worse neighbours and gates improvements on the
// coin.
type Annealer struct {
	Rand       *rand.Rand
	Acceptance Acceptance
	LegacySign bool
	Log        logging.Logger
	Observer   Observer
	mu         sync.Mutex
}

// Name identifies the search strategy in logs and artifacts.
func (a *Annealer) Name() string {
	return "simulated_annealing"
}

// Reseed resets the random source.
func (a *Annealer) Reseed(seed int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Rand = rand.New(rand.NewSource(seed))
}

// Search anneals the session's mutables. An exhausted schedule is reported
// as Result.Solved == false with a nil error. On return the network holds
// the final current values.
func (a *Annealer) Search(ctx context.Context, sess Session) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if a == nil || a.Rand == nil {
		return Result{}, errors.New("random source is required")
	}
	if sess.Network == nil {
		return Result{}, errors.New("network is required")
	}
	if sess.Simulator == nil {
		return Result{}, errors.New("simulator is required")
	}
	if err := sess.Schedule.Validate(); err != nil {
		return Result{}, err
	}
	setters := make([]func(float64) error, len(sess.Mutables))
	for i, m := range sess.Mutables {
		if err := m.Validate(); err != nil {
			return Result{}, err
		}
		set, err := sess.Network.Resolve(m.Handle)
		if err != nil {
			return Result{}, fmt.Errorf("mutable %s: %w", m.Handle, err)
		}
		setters[i] = set
	}
	log := a.Log
	if log == nil {
		log = logging.Noop()
	}
	acceptance := a.Acceptance
	if acceptance == nil {
		acceptance = AcceptExact{}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "anneal.Search", trace.WithAttributes(
		attribute.Int("mutables", len(sess.Mutables)),
		attribute.Int("constraints", len(sess.Constraints)),
		attribute.Int("schedule.steps", sess.Schedule.Steps()),
		attribute.String("acceptance", acceptance.Name()),
		attribute.Bool("legacy_sign", a.LegacySign),
	))
	defer span.End()

	log.Info(ctx, "search started",
		logging.Int("mutables", len(sess.Mutables)),
		logging.Int("constraints", len(sess.Constraints)),
		logging.Int("steps", sess.Schedule.Steps()),
		logging.String("acceptance", acceptance.Name()),
		logging.Bool("legacy_sign", a.LegacySign),
	)

	res, err := a.search(ctx, sess, setters, acceptance, log, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "search failed", logging.Err(err), logging.Int("steps", res.Steps))
		return res, err
	}
	span.SetAttributes(attribute.Bool("solved", res.Solved), attribute.Float64("penalty", res.Penalty))
	if a.Observer != nil {
		a.Observer.ObserveResult(res)
	}
	log.Info(ctx, "search finished",
		logging.Bool("solved", res.Solved),
		logging.Float("penalty", res.Penalty),
		logging.Int("steps", res.Steps),
	)
	return res, nil
}

func (a *Annealer) search(ctx context.Context, sess Session, setters []func(float64) error, acceptance Acceptance, log logging.Logger, span trace.Span) (res Result, err error) {
	current := make([]float64, len(sess.Mutables))
	for i, m := range sess.Mutables {
		current[i] = m.Lower
	}
	// Whatever happens, leave the network holding current.
	defer func() {
		if restoreErr := apply(setters, current); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()

	for t := 1; t <= len(sess.Schedule)-2; t++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		temp := sess.Schedule[t]
		res.Steps++

		if err := apply(setters, current); err != nil {
			return res, err
		}
		evalCurrent, err := evaluate(ctx, sess)
		if err != nil {
			return res, fmt.Errorf("step %d: evaluate current: %w", t, err)
		}
		step := Step{Index: t, Temperature: temp, Current: clone(current), Penalty: evalCurrent, Moved: -1}

		if temp == 0 || evalCurrent <= 0 {
			step.Solved = true
			a.record(ctx, &res, step, log, span)
			res.Solved = true
			res.Values = clone(current)
			res.Penalty = evalCurrent
			return res, nil
		}

		neighbour, moved := a.neighbour(current, sess.Mutables)
		step.Moved = moved
		if err := apply(setters, neighbour); err != nil {
			return res, err
		}
		evalNeighbour, err := evaluate(ctx, sess)
		if err != nil {
			return res, fmt.Errorf("step %d: evaluate neighbour: %w", t, err)
		}
		step.NeighbourPenalty = evalNeighbour

		worsening := a.worsening(evalCurrent, evalNeighbour)
		step.Probability = 1
		if worsening <= 0 {
			step.Accepted = true
		} else {
			step.Probability = math.Exp(-worsening / temp)
			step.Accepted = a.accept(acceptance, step.Probability)
		}
		if step.Accepted {
			current = neighbour
			res.Penalty = evalNeighbour
		} else {
			res.Penalty = evalCurrent
		}
		a.record(ctx, &res, step, log, span)
	}

	res.Values = clone(current)
	return res, nil
}

func (a *Annealer) worsening(evalCurrent, evalNeighbour float64) float64 {
	if a.LegacySign {
		return evalCurrent - evalNeighbour
	}
	return evalNeighbour - evalCurrent
}

func (a *Annealer) record(ctx context.Context, res *Result, step Step, log logging.Logger, span trace.Span) {
	res.History = append(res.History, step)
	span.AddEvent("step", trace.WithAttributes(
		attribute.Int("index", step.Index),
		attribute.Float64("temperature", step.Temperature),
		attribute.Float64("penalty", step.Penalty),
		attribute.Bool("accepted", step.Accepted),
	))
	log.Debug(ctx, "search step",
		logging.Int("index", step.Index),
		logging.Float("temperature", step.Temperature),
		logging.Float("penalty", step.Penalty),
		logging.Float("neighbour_penalty", step.NeighbourPenalty),
		logging.Int("moved", step.Moved),
		logging.Bool("accepted", step.Accepted),
	)
	if a.Observer != nil {
		a.Observer.ObserveStep(step)
	}
}

// neighbour increments one mutable, chosen uniformly among those that can
// still step without passing their upper bound.
func (a *Annealer) neighbour(current []float64, mutables []Mutable) ([]float64, int) {
	out := clone(current)
	available := make([]int, 0, len(mutables))
	for i, m := range mutables {
		if m.CanStep(current[i]) {
			available = append(available, i)
		}
	}
	if len(available) == 0 {
		return out, -1
	}
	pick := available[a.randIntn(len(available))]
	out[pick] += mutables[pick].Increment
	return out, pick
}

func (a *Annealer) randIntn(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Rand.Intn(n)
}

func (a *Annealer) accept(acceptance Acceptance, p float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return acceptance.Accept(p, a.Rand)
}

func apply(setters []func(float64) error, values []float64) error {
	for i, set := range setters {
		if err := set(values[i]); err != nil {
			return err
		}
	}
	return nil
}

// evaluate simulates the network as currently parameterised and scores it.
func evaluate(ctx context.Context, sess Session) (float64, error) {
	raw, err := sess.Simulator.Run(ctx, sess.Network)
	if err != nil {
		return 0, err
	}
	res, err := results.New(raw, sess.Network.Species.Names(), sess.Simulator.Times())
	if err != nil {
		return 0, err
	}
	return constraint.Evaluate(res, sess.Constraints)
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
