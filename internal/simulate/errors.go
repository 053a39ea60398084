package simulate

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeSpec = errors.New("invalid time spec")
	ErrNonFinite       = errors.New("non-finite derivative")
	ErrStepBudget      = errors.New("integration step budget exhausted")
)

// SimulationError reports where integration stopped. No partial trajectory
// accompanies it.
type SimulationError struct {
	Time  float64
	State []float64
	Cause error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed at t=%g: %v", e.Time, e.Cause)
}

func (e *SimulationError) Unwrap() error {
	return e.Cause
}
