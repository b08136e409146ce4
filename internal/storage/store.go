package storage

import (
	"context"

	"memevo/internal/model"
)

// Store defines persistence for runs, their tallies and ledger snapshots.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveTally(ctx context.Context, runID string, tally model.Tally) error
	GetTally(ctx context.Context, runID, name string) (model.Tally, bool, error)
	SaveSnapshot(ctx context.Context, snapshot model.Snapshot) error
	GetSnapshot(ctx context.Context, runID string, generation int) (model.Snapshot, bool, error)
	ListSnapshotGenerations(ctx context.Context, runID string) ([]int, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
}

// SnapshotRecorder forwards ledger snapshots produced during a run to a
// store.
type SnapshotRecorder struct {
	Store Store
}

func (r SnapshotRecorder) WriteSnapshot(ctx context.Context, snapshot model.Snapshot) error {
	snapshot.VersionedRecord = CurrentVersion()
	return r.Store.SaveSnapshot(ctx, snapshot)
}
