package storage

import (
	"context"
	"reflect"
	"testing"

	"memevo/internal/model"
)

// exerciseStore checks the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	older := model.RunRecord{VersionedRecord: CurrentVersion(), RunID: "run-a", Seed: 1, StartedAtUTC: "2026-01-01T00:00:00Z"}
	newer := model.RunRecord{VersionedRecord: CurrentVersion(), RunID: "run-b", Seed: 2, StartedAtUTC: "2026-02-01T00:00:00Z"}
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-b" {
		t.Fatalf("expected newest run first: %+v", runs)
	}
	got, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok || got.Seed != 1 {
		t.Fatalf("get run: ok=%v err=%v run=%+v", ok, err, got)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run: ok=%v err=%v", ok, err)
	}

	tally := model.Tally{VersionedRecord: CurrentVersion(), Name: "bits_of_memory", Header: []string{"a", "b"}, Rows: [][]int{{1, 2}}}
	if err := store.SaveTally(ctx, "run-a", tally); err != nil {
		t.Fatalf("save tally: %v", err)
	}
	loadedTally, ok, err := store.GetTally(ctx, "run-a", "bits_of_memory")
	if err != nil || !ok || !reflect.DeepEqual(loadedTally, tally) {
		t.Fatalf("get tally: ok=%v err=%v tally=%+v", ok, err, loadedTally)
	}
	if _, ok, _ := store.GetTally(ctx, "run-a", "bits_of_summary"); ok {
		t.Fatal("unexpected summary tally")
	}

	recorder := SnapshotRecorder{Store: store}
	for _, generation := range []int{10, 0, 5} {
		snapshot := model.Snapshot{
			RunID:      "run-a",
			Generation: generation,
			Variant:    "simple",
			Strategies: []model.StrategyRecord{{MemoryBits: 1, Decisions: "01", InitialMemory: "1", Alive: generation, IDs: []int64{0}, ParentIDs: []int64{-1}}},
		}
		if err := recorder.WriteSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("write snapshot: %v", err)
		}
	}
	generations, err := store.ListSnapshotGenerations(ctx, "run-a")
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if !reflect.DeepEqual(generations, []int{0, 5, 10}) {
		t.Fatalf("unexpected generations: %v", generations)
	}
	snapshot, ok, err := store.GetSnapshot(ctx, "run-a", 5)
	if err != nil || !ok || snapshot.Strategies[0].Alive != 5 {
		t.Fatalf("get snapshot: ok=%v err=%v snapshot=%+v", ok, err, snapshot)
	}

	diagnostics := []model.GenerationDiagnostics{{Generation: 1, MeanPayout: 2}, {Generation: 2, MeanPayout: 2.5}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-a", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-a")
	if err != nil || !ok || !reflect.DeepEqual(loadedDiagnostics, diagnostics) {
		t.Fatalf("get diagnostics: ok=%v err=%v diagnostics=%+v", ok, err, loadedDiagnostics)
	}

	lineage := []model.LineageRecord{{VersionedRecord: CurrentVersion(), OrganismID: 7, ParentID: 3, Generation: 2, Operation: "decision"}}
	if err := store.SaveLineage(ctx, "run-a", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	loadedLineage, ok, err := store.GetLineage(ctx, "run-a")
	if err != nil || !ok || !reflect.DeepEqual(loadedLineage, lineage) {
		t.Fatalf("get lineage: ok=%v err=%v lineage=%+v", ok, err, loadedLineage)
	}
}
