package storage

import (
	"context"

	"regulon/internal/model"
)

// Store defines persistence for network documents, search runs and trajectories.
type Store interface {
	Init(ctx context.Context) error
	SaveNetwork(ctx context.Context, record model.NetworkRecord) error
	GetNetwork(ctx context.Context, id string) (model.NetworkRecord, bool, error)
	SaveRun(ctx context.Context, run model.SearchRun) error
	GetRun(ctx context.Context, runID string) (model.SearchRun, bool, error)
	ListRuns(ctx context.Context) ([]model.SearchRun, error)
	SaveTrajectory(ctx context.Context, trajectory model.TrajectoryRecord) error
	GetTrajectory(ctx context.Context, runID string) (model.TrajectoryRecord, bool, error)
}
