package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"regulon/internal/results"
)

// PlotSeries selects a species for export under a display label. An empty
// Label uses the species name.
type PlotSeries struct {
	Species string `json:"species" yaml:"species"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
}

// WriteSeriesCSV writes dir/series.csv with a time column followed by one
// column per plotted series. No plots means every species.
func WriteSeriesCSV(dir string, res *results.Structured, plots []PlotSeries) (string, error) {
	if res == nil {
		return "", fmt.Errorf("results are required")
	}
	if len(plots) == 0 {
		for _, name := range res.Species() {
			plots = append(plots, PlotSeries{Species: name})
		}
	}
	header := make([]string, 0, len(plots)+1)
	header = append(header, "time")
	columns := make([][]float64, len(plots))
	for i, p := range plots {
		series, err := res.Series(p.Species)
		if err != nil {
			return "", fmt.Errorf("plot %d: %w", i, err)
		}
		columns[i] = series
		label := p.Label
		if label == "" {
			label = p.Species
		}
		header = append(header, label)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, seriesFile)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return "", err
	}
	row := make([]string, len(header))
	for i, t := range res.Times() {
		row[0] = strconv.FormatFloat(t, 'g', -1, 64)
		for j, col := range columns {
			row[j+1] = strconv.FormatFloat(col[i], 'g', -1, 64)
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, nil
}

// ReadSeriesCSV reads a file written by WriteSeriesCSV.
func ReadSeriesCSV(path string) ([]string, [][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("series file is empty")
		}
		return nil, nil, err
	}
	if len(header) < 2 || header[0] != "time" {
		return nil, nil, fmt.Errorf("series header must start with time and name at least one series")
	}

	rows := make([][]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make([]float64, len(record))
		for i, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("series row %d: %w", len(rows)+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
