package storage

import (
	"context"
	"sort"
	"sync"

	"memevo/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	tallies     map[string]map[string]model.Tally
	snapshots   map[string]map[int]model.Snapshot
	diagnostics map[string][]model.GenerationDiagnostics
	lineage     map[string][]model.LineageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.tallies = make(map[string]map[string]model.Tally)
	s.snapshots = make(map[string]map[int]model.Snapshot)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.lineage = make(map[string][]model.LineageRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveTally(_ context.Context, runID string, tally model.Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.tallies[runID]
	if !ok {
		byName = make(map[string]model.Tally)
		s.tallies[runID] = byName
	}
	byName[tally.Name] = copyTally(tally)
	return nil
}

func (s *MemoryStore) GetTally(_ context.Context, runID, name string) (model.Tally, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tally, ok := s.tallies[runID][name]
	if !ok {
		return model.Tally{}, false, nil
	}
	return copyTally(tally), true, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byGeneration, ok := s.snapshots[snapshot.RunID]
	if !ok {
		byGeneration = make(map[int]model.Snapshot)
		s.snapshots[snapshot.RunID] = byGeneration
	}
	byGeneration[snapshot.Generation] = copySnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, runID string, generation int) (model.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[runID][generation]
	if !ok {
		return model.Snapshot{}, false, nil
	}
	return copySnapshot(snapshot), true, nil
}

func (s *MemoryStore) ListSnapshotGenerations(_ context.Context, runID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generations := make([]int, 0, len(s.snapshots[runID]))
	for generation := range s.snapshots[runID] {
		generations = append(generations, generation)
	}
	sort.Ints(generations)
	return generations, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics[runID] = append([]model.GenerationDiagnostics(nil), diagnostics...)
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationDiagnostics(nil), diagnostics...), true, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lineage[runID] = append([]model.LineageRecord(nil), lineage...)
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.LineageRecord(nil), lineage...), true, nil
}

func copyTally(t model.Tally) model.Tally {
	out := t
	out.Header = append([]string(nil), t.Header...)
	out.Rows = make([][]int, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]int(nil), row...)
	}
	return out
}

func copySnapshot(s model.Snapshot) model.Snapshot {
	out := s
	out.Strategies = make([]model.StrategyRecord, len(s.Strategies))
	for i, strategy := range s.Strategies {
		strategy.IDs = append([]int64(nil), strategy.IDs...)
		strategy.ParentIDs = append([]int64(nil), strategy.ParentIDs...)
		out.Strategies[i] = strategy
	}
	return out
}

// sortRuns orders runs newest first, breaking ties by run id.
func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAtUTC == runs[j].StartedAtUTC {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].StartedAtUTC > runs[j].StartedAtUTC
	})
}
