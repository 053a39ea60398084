// Package netdoc reads and writes YAML network and experiment documents and
// builds runnable networks and search sessions from them.
package netdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"regulon/internal/stats"
)

var ErrInvalidDocument = errors.New("invalid document")

// Document is a network, optionally with the simulation window, search
// setup and plot selection of an experiment.
type Document struct {
	Name        string             `yaml:"name" validate:"required"`
	Description string             `yaml:"description,omitempty"`
	Species     []SpeciesDoc       `yaml:"species" validate:"required,min=1,dive"`
	Symbols     []SymbolDoc        `yaml:"symbols,omitempty" validate:"dive"`
	Reactions   []ReactionDoc      `yaml:"reactions" validate:"required,min=1,dive"`
	Simulation  *SimulationDoc     `yaml:"simulation,omitempty"`
	Search      *SearchDoc         `yaml:"search,omitempty"`
	Plot        []stats.PlotSeries `yaml:"plot,omitempty"`
}

type SpeciesDoc struct {
	Name    string  `yaml:"name" validate:"required"`
	Initial float64 `yaml:"initial" validate:"gte=0"`
}

// SymbolDoc defines a constant; Value is an expression over earlier symbols.
type SymbolDoc struct {
	Name  string `yaml:"name" validate:"required"`
	Value string `yaml:"value" validate:"required"`
}

// ReactionDoc is one reaction; an empty Name becomes reaction_<index>.
type ReactionDoc struct {
	Name    string     `yaml:"name,omitempty"`
	Left    []string   `yaml:"left,omitempty" validate:"dive,required"`
	Right   []string   `yaml:"right,omitempty" validate:"dive,required"`
	Formula FormulaDoc `yaml:"formula"`
}

// FormulaDoc carries the fields of every formula kind. Species is the mRNA
// of a translation or the decaying species of a degradation. Expression is
// written on export and ignored on import.
type FormulaDoc struct {
	Kind           string             `yaml:"kind" validate:"required,oneof=transcription translation degradation custom"`
	Rate           float64            `yaml:"rate,omitempty" validate:"gte=0"`
	Hill           float64            `yaml:"hill,omitempty" validate:"gte=0"`
	Kd             float64            `yaml:"kd,omitempty" validate:"gte=0"`
	Target         string             `yaml:"target,omitempty"`
	Regulators     []RegulatorDoc     `yaml:"regulators,omitempty" validate:"dive"`
	Species        string             `yaml:"species,omitempty"`
	Law            string             `yaml:"law,omitempty"`
	Params         map[string]float64 `yaml:"params,omitempty"`
	TimeMultiplier float64            `yaml:"time_multiplier,omitempty" validate:"gte=0"`
	Expression     string             `yaml:"expression,omitempty"`
}

type RegulatorDoc struct {
	From string   `yaml:"from" validate:"required"`
	Type string   `yaml:"type" validate:"required,oneof=activation repression"`
	Kd   *float64 `yaml:"kd,omitempty" validate:"omitempty,gt=0"`
}

type SimulationDoc struct {
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
	Samples int     `yaml:"samples,omitempty" validate:"gte=0"`
}

// SearchDoc configures annealing. Schedule and LinearSchedule are exclusive;
// with neither set the schedule is LinearSchedule(DefaultLinearSchedule).
type SearchDoc struct {
	Seed           int64           `yaml:"seed"`
	Acceptance     string          `yaml:"acceptance,omitempty" validate:"omitempty,oneof=exact discretized"`
	LegacySign     bool            `yaml:"legacy_sign,omitempty"`
	Schedule       []float64       `yaml:"schedule,omitempty"`
	LinearSchedule int             `yaml:"linear_schedule,omitempty" validate:"gte=0"`
	Mutables       []MutableDoc    `yaml:"mutables" validate:"required,min=1,dive"`
	Constraints    []ConstraintDoc `yaml:"constraints" validate:"required,min=1,dive"`
}

// MutableDoc names a parameter as "reaction.param" or "species:name".
type MutableDoc struct {
	Handle    string  `yaml:"handle" validate:"required"`
	Lower     float64 `yaml:"lower"`
	Upper     float64 `yaml:"upper"`
	Increment float64 `yaml:"increment" validate:"gt=0"`
}

// ConstraintDoc sets exactly one of Below, Above, Within or Expression.
type ConstraintDoc struct {
	Species     string    `yaml:"species" validate:"required"`
	From        float64   `yaml:"from"`
	To          float64   `yaml:"to"`
	Below       *float64  `yaml:"below,omitempty"`
	Above       *float64  `yaml:"above,omitempty"`
	Within      []float64 `yaml:"within,omitempty" validate:"omitempty,len=2"`
	Expression  string    `yaml:"expression,omitempty"`
	Description string    `yaml:"description,omitempty"`
}

// Decode reads one YAML document, rejecting unknown fields, and validates it.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func Encode(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Marshal is Encode into a string.
func Marshal(doc *Document) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func Save(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
