package simulate

// Dormand-Prince 5(4) coefficients.
var (
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// Difference between the fifth and fourth order weights.
	dpE = [7]float64{
		71.0 / 57600,
		0,
		-71.0 / 16695,
		71.0 / 1920,
		-17253.0 / 339200,
		22.0 / 525,
		-1.0 / 40,
	}
)

func newStages(n int) [][]float64 {
	k := make([][]float64, 7)
	for i := range k {
		k[i] = make([]float64, n)
	}
	return k
}

// dormandPrince advances y by h. k[0] must hold f(y) on entry; on return
// k[6] holds f(ynew), ynew the fifth-order solution and errv the local error
// estimate.
func dormandPrince(rhs *system, y []float64, h float64, k [][]float64, ynew, errv []float64) error {
	tmp := ynew
	for stage := 1; stage < 7; stage++ {
		for i := range y {
			acc := 0.0
			for j := 0; j < stage; j++ {
				acc += dpA[stage][j] * k[j][i]
			}
			tmp[i] = y[i] + h*acc
		}
		if err := rhs.eval(tmp, k[stage]); err != nil {
			return err
		}
	}
	// The last stage was evaluated at the fifth-order solution, which is
	// still in tmp (== ynew).
	for i := range y {
		acc := 0.0
		for j := 0; j < 7; j++ {
			acc += dpE[j] * k[j][i]
		}
		errv[i] = h * acc
	}
	return nil
}
