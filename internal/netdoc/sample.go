package netdoc

import "regulon/internal/stats"

// Sample returns a runnable experiment: x is repressed by y while the search
// tunes y's production so that y stays within [40, 60] late in the run.
func Sample() *Document {
	below := 60.0
	return &Document{
		Name:        "repressor",
		Description: "x repressed by y; tune y production into a band",
		Species: []SpeciesDoc{
			{Name: "x", Initial: 0},
			{Name: "y", Initial: 20},
		},
		Symbols: []SymbolDoc{
			{Name: "decay", Value: "0.3"},
		},
		Reactions: []ReactionDoc{
			{
				Name:  "x_trans",
				Right: []string{"x"},
				Formula: FormulaDoc{
					Kind: "transcription", Rate: 5, Hill: 2, Kd: 40, Target: "x",
					Regulators: []RegulatorDoc{{From: "y", Type: "repression"}},
				},
			},
			{
				Name:    "y_trans",
				Right:   []string{"y"},
				Formula: FormulaDoc{Kind: "transcription", Rate: 1, Hill: 1, Kd: 1, Target: "y"},
			},
			{
				Name:    "y_deg",
				Left:    []string{"y"},
				Formula: FormulaDoc{Kind: "custom", Law: "decay * y"},
			},
		},
		Simulation: &SimulationDoc{Start: 0, End: 60, Samples: 61},
		Search: &SearchDoc{
			Seed:           1,
			Acceptance:     "exact",
			LinearSchedule: 99,
			Mutables: []MutableDoc{
				{Handle: "y_trans.rate", Lower: 0.5, Upper: 50, Increment: 0.5},
			},
			Constraints: []ConstraintDoc{
				{Species: "y", From: 40, To: 60, Within: []float64{40, 60}},
				{Species: "y", From: 0, To: 60, Below: &below, Description: "never above 60"},
			},
		},
		Plot: []stats.PlotSeries{{Species: "x", Label: "target"}, {Species: "y", Label: "repressor"}},
	}
}
