package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"regulon/internal/model"
	"regulon/internal/results"
)

const (
	runIndexFile = "run_index.json"
	configFile   = "config.json"
	historyFile  = "history.json"
	solutionFile = "solution.json"
	seriesFile   = "series.csv"
)

type MutableConfig struct {
	Handle    string  `json:"handle"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Increment float64 `json:"increment"`
}

// RunConfig is the resolved configuration a search ran with.
type RunConfig struct {
	RunID       string          `json:"run_id"`
	Experiment  string          `json:"experiment,omitempty"`
	Seed        int64           `json:"seed"`
	Acceptance  string          `json:"acceptance"`
	LegacySign  bool            `json:"legacy_sign,omitempty"`
	TimeStart   float64         `json:"time_start"`
	TimeEnd     float64         `json:"time_end"`
	Samples     int             `json:"samples"`
	Schedule    []float64       `json:"schedule"`
	Mutables    []MutableConfig `json:"mutables"`
	Constraints []string        `json:"constraints"`
}

type Solution struct {
	Solved  bool                 `json:"solved"`
	Penalty float64              `json:"penalty"`
	Steps   int                  `json:"steps"`
	Values  []model.MutableValue `json:"values"`
	Final   map[string]float64   `json:"final,omitempty"`
}

// RunArtifacts is everything written for one search run. Series may be nil
// when no final simulation was kept.
type RunArtifacts struct {
	Config   RunConfig
	History  []model.StepRecord
	Solution Solution
	Series   *results.Structured
	Plot     []PlotSeries
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Experiment   string  `json:"experiment,omitempty"`
	Seed         int64   `json:"seed"`
	Acceptance   string  `json:"acceptance"`
	Solved       bool    `json:"solved"`
	Penalty      float64 `json:"penalty"`
	Steps        int     `json:"steps"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.Config.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	history := artifacts.History
	if history == nil {
		history = []model.StepRecord{}
	}
	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, historyFile), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, solutionFile), artifacts.Solution); err != nil {
		return "", err
	}
	if artifacts.Series != nil {
		if _, err := WriteSeriesCSV(runDir, artifacts.Series, artifacts.Plot); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// AppendRunIndex adds or replaces the entry for entry.RunID.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first; equal timestamps keep the
// later-appended entry first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory to outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, historyFile, solutionFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	seriesPath := filepath.Join(src, seriesFile)
	if _, err := os.Stat(seriesPath); err == nil {
		if err := copyFile(seriesPath, filepath.Join(dst, seriesFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadHistory(baseDir, runID string) ([]model.StepRecord, bool, error) {
	var history []model.StepRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, historyFile), &history)
	return history, ok, err
}

func ReadSolution(baseDir, runID string) (Solution, bool, error) {
	var solution Solution
	ok, err := readJSON(filepath.Join(baseDir, runID, solutionFile), &solution)
	return solution, ok, err
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
