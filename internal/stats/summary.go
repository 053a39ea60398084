package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RunSummary aggregates a set of indexed runs.
type RunSummary struct {
	TotalRuns   int     `json:"total_runs"`
	SolvedRuns  int     `json:"solved_runs"`
	SolveRate   float64 `json:"solve_rate"`
	MeanSteps   float64 `json:"mean_steps"`
	StdSteps    float64 `json:"std_steps"`
	MeanPenalty float64 `json:"mean_penalty"`
	MinPenalty  float64 `json:"min_penalty"`
	MaxPenalty  float64 `json:"max_penalty"`
}

func Summarize(entries []RunIndexEntry) RunSummary {
	out := RunSummary{TotalRuns: len(entries)}
	if len(entries) == 0 {
		return out
	}
	steps := make([]float64, len(entries))
	penalties := make([]float64, len(entries))
	out.MinPenalty = math.Inf(1)
	out.MaxPenalty = math.Inf(-1)
	for i, e := range entries {
		if e.Solved {
			out.SolvedRuns++
		}
		steps[i] = float64(e.Steps)
		penalties[i] = e.Penalty
		out.MinPenalty = math.Min(out.MinPenalty, e.Penalty)
		out.MaxPenalty = math.Max(out.MaxPenalty, e.Penalty)
	}
	out.SolveRate = float64(out.SolvedRuns) / float64(len(entries))
	out.MeanSteps, out.StdSteps = stat.MeanStdDev(steps, nil)
	if len(entries) == 1 {
		out.StdSteps = 0
	}
	out.MeanPenalty = stat.Mean(penalties, nil)
	return out
}
