package formula

import (
	"fmt"
	"math"
	"strings"
)

type RegType int

const (
	Activation RegType = iota + 1
	Repression
)

func (r RegType) String() string {
	switch r {
	case Activation:
		return "activation"
	case Repression:
		return "repression"
	default:
		return "unknown"
	}
}

func ParseRegType(name string) (RegType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "activation", "activator", "+":
		return Activation, nil
	case "repression", "repressor", "-":
		return Repression, nil
	default:
		return 0, fmt.Errorf("unsupported regulation type %q", name)
	}
}

// Regulation describes a transcription factor acting on a gene. A non-nil Kd
// overrides the dissociation constant of the formula it is attached to.
type Regulation struct {
	From string
	To   string
	Type RegType
	Kd   *float64
}

// Transcription produces mRNA at Rate, modulated by a Hill function of the
// first regulator's concentration. Further regulators are kept but unused.
type Transcription struct {
	Rate       float64
	Hill       float64
	Kd         float64
	Target     string
	Regulators []Regulation
}

func (t *Transcription) Kind() Kind { return KindTranscription }

func (t *Transcription) effectiveKd() float64 {
	if len(t.Regulators) > 0 && t.Regulators[0].Kd != nil {
		return *t.Regulators[0].Kd
	}
	return t.Kd
}

func (t *Transcription) Compute(state State) (float64, error) {
	if len(t.Regulators) == 0 {
		return t.Rate, nil
	}
	reg := t.Regulators[0]
	c, err := lookup(state, reg.From)
	if err != nil {
		return 0, err
	}
	kd := t.effectiveKd()
	if reg.Type == Activation {
		cn := math.Pow(c, t.Hill)
		return t.Rate * cn / (kd + cn), nil
	}
	return t.Rate / (1 + math.Pow(c/kd, t.Hill)), nil
}

func (t *Transcription) Mutate(updates map[string]float64) {
	for k, v := range updates {
		if set, err := t.Setter(k); err == nil {
			set(v)
		}
	}
}

func (t *Transcription) Setter(param string) (func(float64), error) {
	switch param {
	case "rate":
		return func(v float64) { t.Rate = v }, nil
	case "hill", "hill_coeff":
		return func(v float64) { t.Hill = v }, nil
	case "kd":
		return t.setKd, nil
	default:
		return nil, fmt.Errorf("%w: transcription has no %q", ErrUnknownParam, param)
	}
}

// setKd writes the dissociation constant Compute uses: the first
// regulator's own Kd when it carries one, otherwise the formula's.
func (t *Transcription) setKd(v float64) {
	if len(t.Regulators) > 0 && t.Regulators[0].Kd != nil {
		t.Regulators[0].Kd = &v
		return
	}
	t.Kd = v
}

func (t *Transcription) Params() map[string]float64 {
	return map[string]float64{"rate": t.Rate, "hill": t.Hill, "kd": t.effectiveKd()}
}

func (t *Transcription) Expression() string {
	if len(t.Regulators) == 0 {
		return formatFloat(t.Rate)
	}
	reg := t.Regulators[0]
	kd, n := formatFloat(t.effectiveKd()), formatFloat(t.Hill)
	if reg.Type == Activation {
		return fmt.Sprintf("%s * %s^%s / (%s + %s^%s)", formatFloat(t.Rate), reg.From, n, kd, reg.From, n)
	}
	return fmt.Sprintf("%s / (1 + (%s / %s)^%s)", formatFloat(t.Rate), reg.From, kd, n)
}

func (t *Transcription) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transcription rate=%s kd=%s n=%s", formatFloat(t.Rate), formatFloat(t.effectiveKd()), formatFloat(t.Hill))
	if len(t.Regulators) > 0 {
		reg := t.Regulators[0]
		fmt.Fprintf(&b, " (%s by %s)", reg.Type, reg.From)
	}
	return b.String()
}
