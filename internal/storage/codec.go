package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/golang/snappy"

	"regulon/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	ErrVersionMismatch = errors.New("record version mismatch")
	ErrShapeMismatch   = errors.New("trajectory shape mismatch")
)

// Versioned returns the record header for the current schema and codec.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeNetwork(r model.NetworkRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeNetwork(data []byte) (model.NetworkRecord, error) {
	var record model.NetworkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.NetworkRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.NetworkRecord{}, err
	}
	return record, nil
}

func EncodeRun(r model.SearchRun) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.SearchRun, error) {
	var run model.SearchRun
	if err := json.Unmarshal(data, &run); err != nil {
		return model.SearchRun{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.SearchRun{}, err
	}
	return run, nil
}

// EncodeTrajectory stores trajectories as snappy-compressed JSON.
func EncodeTrajectory(r model.TrajectoryRecord) ([]byte, error) {
	if err := checkShape(r); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func DecodeTrajectory(data []byte) (model.TrajectoryRecord, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return model.TrajectoryRecord{}, fmt.Errorf("decompress trajectory: %w", err)
	}
	var record model.TrajectoryRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return model.TrajectoryRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.TrajectoryRecord{}, err
	}
	if err := checkShape(record); err != nil {
		return model.TrajectoryRecord{}, err
	}
	return record, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func checkShape(r model.TrajectoryRecord) error {
	if len(r.Values) != len(r.Times) {
		return fmt.Errorf("%w: %d rows for %d time points", ErrShapeMismatch, len(r.Values), len(r.Times))
	}
	for i, row := range r.Values {
		if len(row) != len(r.Species) {
			return fmt.Errorf("%w: row %d has %d values for %d species", ErrShapeMismatch, i, len(row), len(r.Species))
		}
	}
	return nil
}

// sortRuns orders runs newest first, breaking ties by run id.
func sortRuns(runs []model.SearchRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].RunID < runs[j].RunID
	})
}

func cloneRun(run model.SearchRun) model.SearchRun {
	run.Values = append([]model.MutableValue(nil), run.Values...)
	history := make([]model.StepRecord, len(run.History))
	for i, step := range run.History {
		step.Current = append([]float64(nil), step.Current...)
		history[i] = step
	}
	run.History = history
	return run
}

func cloneTrajectory(r model.TrajectoryRecord) model.TrajectoryRecord {
	r.Species = append([]string(nil), r.Species...)
	r.Times = append([]float64(nil), r.Times...)
	values := make([][]float64, len(r.Values))
	for i, row := range r.Values {
		values[i] = append([]float64(nil), row...)
	}
	r.Values = values
	return r
}
