package formula

import "fmt"

// Translation produces protein at Rate times the mRNA concentration.
type Translation struct {
	Rate float64
	MRNA string
}

func (t *Translation) Kind() Kind { return KindTranslation }

func (t *Translation) Compute(state State) (float64, error) {
	c, err := lookup(state, t.MRNA)
	if err != nil {
		return 0, err
	}
	return t.Rate * c, nil
}

func (t *Translation) Mutate(updates map[string]float64) {
	if v, ok := updates["rate"]; ok {
		t.Rate = v
	}
}

func (t *Translation) Setter(param string) (func(float64), error) {
	if param != "rate" {
		return nil, fmt.Errorf("%w: translation has no %q", ErrUnknownParam, param)
	}
	return func(v float64) { t.Rate = v }, nil
}

func (t *Translation) Params() map[string]float64 { return map[string]float64{"rate": t.Rate} }

func (t *Translation) Expression() string {
	return formatFloat(t.Rate) + " * " + t.MRNA
}

func (t *Translation) String() string {
	return fmt.Sprintf("translation rate=%s of %s", formatFloat(t.Rate), t.MRNA)
}

// Degradation removes a species at Rate times its concentration.
type Degradation struct {
	Rate     float64
	Decaying string
}

func (d *Degradation) Kind() Kind { return KindDegradation }

func (d *Degradation) Compute(state State) (float64, error) {
	c, err := lookup(state, d.Decaying)
	if err != nil {
		return 0, err
	}
	return d.Rate * c, nil
}

func (d *Degradation) Mutate(updates map[string]float64) {
	if v, ok := updates["rate"]; ok {
		d.Rate = v
	}
}

func (d *Degradation) Setter(param string) (func(float64), error) {
	if param != "rate" {
		return nil, fmt.Errorf("%w: degradation has no %q", ErrUnknownParam, param)
	}
	return func(v float64) { d.Rate = v }, nil
}

func (d *Degradation) Params() map[string]float64 { return map[string]float64{"rate": d.Rate} }

func (d *Degradation) Expression() string {
	return formatFloat(d.Rate) + " * " + d.Decaying
}

func (d *Degradation) String() string {
	return fmt.Sprintf("degradation rate=%s of %s", formatFloat(d.Rate), d.Decaying)
}
