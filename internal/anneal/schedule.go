package anneal

import (
	"fmt"
	"math"
)

// Schedule is the temperature sequence. Search visits indices 1 through
// len-2; the first and last entries only bound the sequence.
type Schedule []float64

// InvalidScheduleError reports why a schedule cannot drive a search.
type InvalidScheduleError struct {
	Index  int
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	if e.Index < 0 {
		return "invalid schedule: " + e.Reason
	}
	return fmt.Sprintf("invalid schedule at %d: %s", e.Index, e.Reason)
}

// LinearSchedule returns n+1 temperatures n, n-1, ..., 0.
func LinearSchedule(n int) Schedule {
	if n < 0 {
		n = 0
	}
	out := make(Schedule, n+1)
	for z := range out {
		out[z] = float64(n - z)
	}
	return out
}

// Steps is the number of search iterations the schedule allows.
func (s Schedule) Steps() int {
	if len(s) < 3 {
		return 0
	}
	return len(s) - 2
}

// Validate requires at least three finite, non-negative, non-increasing temperatures.
func (s Schedule) Validate() error {
	if len(s) < 3 {
		return &InvalidScheduleError{Index: -1, Reason: fmt.Sprintf("need at least 3 temperatures, got %d", len(s))}
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidScheduleError{Index: i, Reason: "temperature must be finite"}
		}
		if v < 0 {
			return &InvalidScheduleError{Index: i, Reason: fmt.Sprintf("temperature %g is negative", v)}
		}
		if i > 0 && v > s[i-1] {
			return &InvalidScheduleError{Index: i, Reason: fmt.Sprintf("temperature rises from %g to %g", s[i-1], v)}
		}
	}
	return nil
}
