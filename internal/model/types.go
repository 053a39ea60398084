package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NetworkRecord stores a network document as YAML text.
type NetworkRecord struct {
	VersionedRecord
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Document string    `json:"document"`
	SavedAt  time.Time `json:"saved_at"`
}

type MutableValue struct {
	Handle string  `json:"handle"`
	Value  float64 `json:"value"`
}

type StepRecord struct {
	Index            int       `json:"index"`
	Temperature      float64   `json:"temperature"`
	Current          []float64 `json:"current"`
	Penalty          float64   `json:"penalty"`
	Moved            int       `json:"moved"`
	NeighbourPenalty float64   `json:"neighbour_penalty"`
	Probability      float64   `json:"probability"`
	Accepted         bool      `json:"accepted"`
	Solved           bool      `json:"solved,omitempty"`
}

// SearchRun is one annealing search and its step history.
type SearchRun struct {
	VersionedRecord
	RunID      string         `json:"run_id"`
	NetworkID  string         `json:"network_id,omitempty"`
	Seed       int64          `json:"seed"`
	Acceptance string         `json:"acceptance"`
	Solved     bool           `json:"solved"`
	Penalty    float64        `json:"penalty"`
	Steps      int            `json:"steps"`
	Values     []MutableValue `json:"values"`
	History    []StepRecord   `json:"history"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// TrajectoryRecord is a sampled simulation; Values is row-per-time-point in
// Species column order.
type TrajectoryRecord struct {
	VersionedRecord
	RunID   string      `json:"run_id"`
	Species []string    `json:"species"`
	Times   []float64   `json:"times"`
	Values  [][]float64 `json:"values"`
}
