package storage

import (
	"context"
	"errors"
	"sync"

	"regulon/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	networks     map[string]model.NetworkRecord
	runs         map[string]model.SearchRun
	trajectories map[string]model.TrajectoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.networks = make(map[string]model.NetworkRecord)
	s.runs = make(map[string]model.SearchRun)
	s.trajectories = make(map[string]model.TrajectoryRecord)
	return nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, record model.NetworkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.networks[record.ID] = record
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, id string) (model.NetworkRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.networks[id]
	return record, ok, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.SearchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.RunID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.SearchRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return model.SearchRun{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.SearchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SearchRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, trajectory model.TrajectoryRecord) error {
	if err := checkShape(trajectory); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.trajectories[trajectory.RunID] = cloneTrajectory(trajectory)
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string) (model.TrajectoryRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trajectory, ok := s.trajectories[runID]
	if !ok {
		return model.TrajectoryRecord{}, false, nil
	}
	return cloneTrajectory(trajectory), true, nil
}
