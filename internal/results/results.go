// Package results labels a raw simulation trajectory with species names and
// sample times.
package results

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownSpecies = errors.New("unknown species")
	ErrShapeMismatch  = errors.New("trajectory shape mismatch")
)

// Structured is a read-only view over a trajectory: rows are samples,
// columns are species.
type Structured struct {
	raw     *mat.Dense
	species []string
	index   map[string]int
	times   []float64
}

func New(raw *mat.Dense, species []string, times []float64) (*Structured, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil trajectory", ErrShapeMismatch)
	}
	rows, cols := raw.Dims()
	if rows != len(times) {
		return nil, fmt.Errorf("%w: %d rows for %d times", ErrShapeMismatch, rows, len(times))
	}
	if len(species) > 0 && cols != len(species) {
		return nil, fmt.Errorf("%w: %d columns for %d species", ErrShapeMismatch, cols, len(species))
	}
	index := make(map[string]int, len(species))
	for i, s := range species {
		if _, ok := index[s]; ok {
			return nil, fmt.Errorf("%w: duplicate species %s", ErrShapeMismatch, s)
		}
		index[s] = i
	}
	return &Structured{
		raw:     raw,
		species: append([]string(nil), species...),
		index:   index,
		times:   append([]float64(nil), times...),
	}, nil
}

func (r *Structured) Raw() mat.Matrix { return r.raw }

func (r *Structured) Species() []string { return append([]string(nil), r.species...) }

func (r *Structured) Times() []float64 { return append([]float64(nil), r.times...) }

// Series returns the full concentration series of one species.
func (r *Structured) Series(species string) ([]float64, error) {
	col, ok := r.index[species]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpecies, species)
	}
	return mat.Col(nil, col, r.raw), nil
}

// Between returns the samples of species whose time lies in [t0, t1]. The
// result is empty when t0 > t1 or the window misses the grid.
func (r *Structured) Between(species string, t0, t1 float64) ([]float64, error) {
	col, ok := r.index[species]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpecies, species)
	}
	if t0 > t1 {
		return []float64{}, nil
	}
	lo := sort.SearchFloat64s(r.times, t0)
	hi := sort.Search(len(r.times), func(i int) bool { return r.times[i] > t1 })
	out := make([]float64, 0, max(hi-lo, 0))
	for i := lo; i < hi; i++ {
		out = append(out, r.raw.At(i, col))
	}
	return out, nil
}

// Labelled maps every species to its series.
func (r *Structured) Labelled() map[string][]float64 {
	out := make(map[string][]float64, len(r.species))
	for i, s := range r.species {
		out[s] = mat.Col(nil, i, r.raw)
	}
	return out
}

// Final returns the last sample of every species.
func (r *Structured) Final() map[string]float64 {
	out := make(map[string]float64, len(r.species))
	rows, _ := r.raw.Dims()
	if rows == 0 {
		return out
	}
	for i, s := range r.species {
		out[s] = r.raw.At(rows-1, i)
	}
	return out
}
