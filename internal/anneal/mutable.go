package anneal

import (
	"fmt"
	"math"

	"regulon/internal/network"
)

// Mutable is a parameter the search may raise from Lower towards Upper in
// steps of Increment.
type Mutable struct {
	Handle    network.ParamHandle
	Lower     float64
	Upper     float64
	Increment float64
}

func (m Mutable) Validate() error {
	for _, v := range []float64{m.Lower, m.Upper, m.Increment} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("mutable %s: bounds must be finite", m.Handle)
		}
	}
	if m.Lower > m.Upper {
		return fmt.Errorf("mutable %s: lower %g exceeds upper %g", m.Handle, m.Lower, m.Upper)
	}
	if m.Increment <= 0 {
		return fmt.Errorf("mutable %s: increment must be > 0", m.Handle)
	}
	return nil
}

// CanStep reports whether value+Increment stays within Upper.
func (m Mutable) CanStep(value float64) bool {
	return value+m.Increment <= m.Upper
}
