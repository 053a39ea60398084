package constraint

import "fmt"

// Windowed exposes the samples of a species within an inclusive time window.
type Windowed interface {
	Between(species string, t0, t1 float64) ([]float64, error)
}

// ConstraintEvaluationError reports a predicate that panicked.
type ConstraintEvaluationError struct {
	Index   int
	Species string
	Value   float64
	Cause   any
}

func (e *ConstraintEvaluationError) Error() string {
	return fmt.Sprintf("constraint %d (%s) failed on value %g: %v", e.Index, e.Species, e.Value, e.Cause)
}

func (e *ConstraintEvaluationError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// Evaluate returns the total penalty: the sum over constraints of the mean of
// the positive predicate values in each window. Zero means satisfied.
func Evaluate(res Windowed, constraints []Constraint) (float64, error) {
	penalties, err := Breakdown(res, constraints)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range penalties {
		total += p
	}
	return total, nil
}

// Breakdown returns the penalty of each constraint in order.
func Breakdown(res Windowed, constraints []Constraint) ([]float64, error) {
	out := make([]float64, len(constraints))
	for i, c := range constraints {
		p, err := penalty(res, i, c)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func penalty(res Windowed, index int, c Constraint) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	values, err := res.Between(c.Species, c.From, c.To)
	if err != nil {
		return 0, fmt.Errorf("constraint %d: %w", index, err)
	}
	var sum float64
	var violations int
	for _, v := range values {
		margin, err := apply(index, c, v)
		if err != nil {
			return 0, err
		}
		if margin > 0 {
			sum += margin
			violations++
		}
	}
	if violations == 0 {
		return 0, nil
	}
	return sum / float64(violations), nil
}

func apply(index int, c Constraint, v float64) (margin float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ConstraintEvaluationError{Index: index, Species: c.Species, Value: v, Cause: r}
		}
	}()
	return c.Predicate(v), nil
}
