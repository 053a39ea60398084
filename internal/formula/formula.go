// Package formula implements the rate laws attached to reactions: Hill-type
// transcription, first-order translation and degradation, and free-form
// custom kinetic laws.
package formula

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"regulon/internal/ratelaw"
)

var (
	ErrUnknownSpecies = errors.New("unknown species")
	ErrUnknownParam   = errors.New("unknown parameter")
	ErrInvalidParam   = errors.New("invalid parameter")
)

// UndefinedSymbolError is returned when a custom law references a name no
// namespace defines.
type UndefinedSymbolError = ratelaw.UndefinedSymbolError

type Kind int

const (
	KindTranscription Kind = iota + 1
	KindTranslation
	KindDegradation
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindTranscription:
		return "transcription"
	case KindTranslation:
		return "translation"
	case KindDegradation:
		return "degradation"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseKind maps a document kind name back to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "transcription":
		return KindTranscription, nil
	case "translation":
		return KindTranslation, nil
	case "degradation":
		return KindDegradation, nil
	case "custom":
		return KindCustom, nil
	default:
		return 0, fmt.Errorf("unsupported formula kind %q", name)
	}
}

// State is the read-only species concentration view handed to rate laws.
type State map[string]float64

// Symbols is a network-wide table of named constants.
type Symbols map[string]float64

// Formula computes the rate of a single reaction.
type Formula interface {
	Kind() Kind
	// Compute is pure: it never mutates the formula or the state.
	Compute(state State) (float64, error)
	// Mutate applies parameter updates. Fixed variants ignore unknown keys.
	Mutate(updates map[string]float64)
	// Setter returns a function assigning param, or ErrUnknownParam.
	Setter(param string) (func(float64), error)
	Params() map[string]float64
	// Expression renders an equivalent infix rate law.
	Expression() string
	String() string
}

func lookup(state State, species string) (float64, error) {
	v, ok := state[species]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSpecies, species)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatFloat(params[k]))
	}
	return strings.Join(parts, ", ")
}
