package netdoc

import (
	"fmt"

	"regulon/internal/anneal"
	"regulon/internal/constraint"
	"regulon/internal/formula"
	"regulon/internal/network"
	"regulon/internal/simulate"
	"regulon/internal/stats"
)

// DefaultLinearSchedule is the search length used when a document names no
// schedule.
const DefaultLinearSchedule = 100

// DefaultSimulation applies when a document has no simulation block.
var DefaultSimulation = simulate.TimeSpec{Start: 0, End: 100, Samples: simulate.DefaultSamples}

// Experiment is a built document, ready to simulate or search.
type Experiment struct {
	Name        string
	Network     *network.Network
	Time        simulate.TimeSpec
	Seed        int64
	Acceptance  anneal.Acceptance
	LegacySign  bool
	Mutables    []anneal.Mutable
	Constraints []constraint.Constraint
	Schedule    anneal.Schedule
	Plot        []stats.PlotSeries
}

// Searchable reports whether the document carried a search block.
func (e *Experiment) Searchable() bool {
	return len(e.Mutables) > 0
}

// Session assembles an annealing session around sim.
func (e *Experiment) Session(sim *simulate.Simulator) anneal.Session {
	return anneal.Session{
		Network:     e.Network,
		Simulator:   sim,
		Mutables:    e.Mutables,
		Constraints: e.Constraints,
		Schedule:    e.Schedule,
	}
}

// Build validates doc and constructs its network and search setup.
func Build(doc *Document) (*Experiment, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	net, err := buildNetwork(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	exp := &Experiment{
		Name:       doc.Name,
		Network:    net,
		Time:       DefaultSimulation,
		Acceptance: anneal.AcceptExact{},
		Plot:       append([]stats.PlotSeries(nil), doc.Plot...),
	}
	if doc.Simulation != nil {
		exp.Time = simulate.TimeSpec{Start: doc.Simulation.Start, End: doc.Simulation.End, Samples: doc.Simulation.Samples}
	}
	if _, err := exp.Time.Grid(); err != nil {
		return nil, fmt.Errorf("%w: simulation: %w", ErrInvalidDocument, err)
	}
	for i, p := range exp.Plot {
		if !net.Species.Has(p.Species) {
			return nil, fmt.Errorf("%w: plot %d: %w: %s", ErrInvalidDocument, i, network.ErrUnknownSpecies, p.Species)
		}
	}
	if doc.Search != nil {
		if err := buildSearch(exp, doc.Search); err != nil {
			return nil, fmt.Errorf("%w: search: %w", ErrInvalidDocument, err)
		}
	}
	return exp, nil
}

// Network builds only the network part of doc.
func Network(doc *Document) (*network.Network, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	net, err := buildNetwork(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return net, nil
}

func buildNetwork(doc *Document) (*network.Network, error) {
	net := network.New()
	for _, s := range doc.Species {
		if err := net.AddSpecies(s.Name, s.Initial); err != nil {
			return nil, err
		}
	}
	for _, s := range doc.Symbols {
		if _, err := net.DefineSymbol(s.Name, s.Value); err != nil {
			return nil, err
		}
	}
	for i, r := range doc.Reactions {
		name := reactionName(i, r)
		f, err := buildFormula(r.Formula, net)
		if err != nil {
			return nil, fmt.Errorf("reaction %s: %w", name, err)
		}
		reaction := &network.Reaction{
			Name:    name,
			Left:    append([]string(nil), r.Left...),
			Right:   append([]string(nil), r.Right...),
			Formula: f,
		}
		if err := net.AddReaction(reaction); err != nil {
			return nil, err
		}
	}
	if err := net.Check(); err != nil {
		return nil, err
	}
	return net, nil
}

func buildFormula(f FormulaDoc, net *network.Network) (formula.Formula, error) {
	requireSpecies := func(name string) error {
		if !net.Species.Has(name) {
			return fmt.Errorf("%w: %s", network.ErrUnknownSpecies, name)
		}
		return nil
	}
	kind, err := formula.ParseKind(f.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case formula.KindTranscription:
		if err := requireSpecies(f.Target); err != nil {
			return nil, err
		}
		t := &formula.Transcription{Rate: f.Rate, Hill: f.Hill, Kd: f.Kd, Target: f.Target}
		for _, reg := range f.Regulators {
			if err := requireSpecies(reg.From); err != nil {
				return nil, err
			}
			typ, err := formula.ParseRegType(reg.Type)
			if err != nil {
				return nil, err
			}
			regulation := formula.Regulation{From: reg.From, To: f.Target, Type: typ}
			if reg.Kd != nil {
				kd := *reg.Kd
				regulation.Kd = &kd
			}
			t.Regulators = append(t.Regulators, regulation)
		}
		return t, nil
	case formula.KindTranslation:
		if err := requireSpecies(f.Species); err != nil {
			return nil, err
		}
		return &formula.Translation{Rate: f.Rate, MRNA: f.Species}, nil
	case formula.KindDegradation:
		if err := requireSpecies(f.Species); err != nil {
			return nil, err
		}
		return &formula.Degradation{Rate: f.Rate, Decaying: f.Species}, nil
	default:
		return formula.NewCustom(f.Law, f.Params, net.Symbols, f.TimeMultiplier)
	}
}

func buildSearch(exp *Experiment, s *SearchDoc) error {
	acceptance, err := anneal.AcceptanceByName(s.Acceptance)
	if err != nil {
		return err
	}
	exp.Acceptance = acceptance
	exp.LegacySign = s.LegacySign
	exp.Seed = s.Seed

	switch {
	case len(s.Schedule) > 0:
		exp.Schedule = append(anneal.Schedule(nil), s.Schedule...)
	case s.LinearSchedule > 0:
		exp.Schedule = anneal.LinearSchedule(s.LinearSchedule)
	default:
		exp.Schedule = anneal.LinearSchedule(DefaultLinearSchedule)
	}
	if err := exp.Schedule.Validate(); err != nil {
		return err
	}

	for _, m := range s.Mutables {
		handle, err := network.ParseParamHandle(m.Handle)
		if err != nil {
			return err
		}
		if _, err := exp.Network.Resolve(handle); err != nil {
			return fmt.Errorf("mutable %s: %w", m.Handle, err)
		}
		mutable := anneal.Mutable{Handle: handle, Lower: m.Lower, Upper: m.Upper, Increment: m.Increment}
		if err := mutable.Validate(); err != nil {
			return err
		}
		exp.Mutables = append(exp.Mutables, mutable)
	}

	for i, c := range s.Constraints {
		if !exp.Network.Species.Has(c.Species) {
			return fmt.Errorf("constraint %d: %w: %s", i, network.ErrUnknownSpecies, c.Species)
		}
		built, err := buildConstraint(c)
		if err != nil {
			return fmt.Errorf("constraint %d: %w", i, err)
		}
		exp.Constraints = append(exp.Constraints, built)
	}
	return nil
}

func buildConstraint(c ConstraintDoc) (constraint.Constraint, error) {
	out := constraint.Constraint{Species: c.Species, From: c.From, To: c.To, Description: c.Description}
	var desc string
	switch {
	case c.Below != nil:
		out.Predicate = constraint.Below(*c.Below)
		desc = fmt.Sprintf("below %g", *c.Below)
	case c.Above != nil:
		out.Predicate = constraint.Above(*c.Above)
		desc = fmt.Sprintf("above %g", *c.Above)
	case len(c.Within) == 2:
		out.Predicate = constraint.Within(c.Within[0], c.Within[1])
		desc = fmt.Sprintf("within [%g, %g]", c.Within[0], c.Within[1])
	default:
		p, err := constraint.Expression(c.Species, c.Expression)
		if err != nil {
			return constraint.Constraint{}, err
		}
		out.Predicate = p
		desc = c.Expression
	}
	if out.Description == "" {
		out.Description = desc
	}
	return out, out.Validate()
}
