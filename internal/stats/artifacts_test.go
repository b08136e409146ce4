package stats

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"memevo/internal/config"
	"memevo/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := model.Tally{
		Name:   "bits_of_summary",
		Header: []string{"Organisms With 0 Bits of Summary", "Organisms With 1 Bits of Summary"},
		Rows:   [][]int{{3, 1}, {2, 2}},
	}
	decisions := model.Tally{
		Name:   "decision_length",
		Header: []string{"Total Decision Length"},
		Rows:   [][]int{{12}, {16}},
	}
	return RunArtifacts{
		Config: RunConfig{
			RunID:        runID,
			Mode:         config.ModeCoevolutionary,
			CreatedAtUTC: start.Format(time.RFC3339Nano),
			Experiment:   config.Default(),
		},
		MemoryTally: model.Tally{
			Name:   "bits_of_memory",
			Header: []string{"Organisms With 0 Bits of Memory", "Organisms With 1 Bits of Memory"},
			Rows:   [][]int{{4, 0}, {3, 1}},
		},
		SummaryTally:  &summary,
		DecisionTally: &decisions,
		Diagnostics: []model.GenerationDiagnostics{
			{Generation: 1, BestPayout: 3, MeanPayout: 2, MinPayout: 1, DistinctStrategies: 2},
		},
		Lineage:    []model.LineageRecord{{OrganismID: 4, ParentID: 1, Generation: 1, Operation: "decision"}},
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")
	runID := "hybrid-1-abc"

	runDir, err := CreateRunDir(baseDir, runID)
	if err != nil {
		t.Fatalf("create run dir: %v", err)
	}
	artifacts := sampleArtifacts(runID)
	if err := WriteRunArtifacts(runDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{
		"config.json",
		"generation_diagnostics.json",
		"lineage.json",
		"time.dat",
		"bits_of_memory_overtime.csv",
		"bits_of_summary_overtime.csv",
		"decision_length_overtime.csv",
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(cfg, artifacts.Config) {
		t.Fatalf("config mismatch: got=%+v want=%+v", cfg, artifacts.Config)
	}

	diagnostics, ok, err := ReadGenerationDiagnostics(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read diagnostics: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(diagnostics, artifacts.Diagnostics) {
		t.Fatalf("diagnostics mismatch: got=%+v want=%+v", diagnostics, artifacts.Diagnostics)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestCreateRunDirRefusesExistingFolder(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := CreateRunDir(baseDir, "run-1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateRunDir(baseDir, "run-1")
	if !errors.Is(err, ErrRunDirExists) {
		t.Fatalf("expected ErrRunDirExists, got %v", err)
	}
	if _, err := CreateRunDir(baseDir, " "); err == nil {
		t.Fatal("expected error for blank run id")
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	artifacts := sampleArtifacts("")
	if err := WriteRunArtifacts(t.TempDir(), artifacts); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestExportMissingRun(t *testing.T) {
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected error exporting unknown run")
	}
}

func TestRunIndexAppendAndList(t *testing.T) {
	baseDir := t.TempDir()

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list empty index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(entries))
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2024-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2024-01-02T00:00:00Z"}); err != nil {
		t.Fatalf("append b: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "c", CreatedAtUTC: "2024-01-02T00:00:00Z"}); err != nil {
		t.Fatalf("append c: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2024-01-01T00:00:00Z", Generations: 7}); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.RunID)
	}
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: got=%v want=%v", got, want)
	}
	if entries[2].Generations != 7 {
		t.Fatalf("expected replaced entry, got %+v", entries[2])
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestRunIndexKeepsAppendOrderForTies(t *testing.T) {
	baseDir := t.TempDir()
	for _, entry := range []RunIndexEntry{
		{RunID: "x", CreatedAtUTC: "2024-03-01T00:00:00Z"},
		{RunID: "y", CreatedAtUTC: "2024-03-01T00:00:00Z"},
		{RunID: "z", CreatedAtUTC: "2024-02-01T00:00:00Z"},
	} {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.RunID)
	}
	if want := []string{"y", "x", "z"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: got=%v want=%v", got, want)
	}

	raw, err := readRunIndex(baseDir)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if raw[0].RunID != "x" || raw[1].RunID != "y" || raw[2].RunID != "z" {
		t.Fatalf("index file must stay in append order: %+v", raw)
	}
}

func TestTallyRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	runDir, err := CreateRunDir(baseDir, "run")
	if err != nil {
		t.Fatalf("create run dir: %v", err)
	}
	tally := model.Tally{
		Name:   "bits_of_memory",
		Header: []string{"Organisms With 0 Bits of Memory", "Organisms With 1 Bits of Memory", "Organisms With 2 Bits of Memory"},
		Rows:   [][]int{{10, 0, 0}, {8, 2, 0}, {5, 4, 1}},
	}
	if err := WriteTally(runDir, tally); err != nil {
		t.Fatalf("write tally: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "bits_of_memory_overtime.csv"))
	if err != nil {
		t.Fatalf("read tally file: %v", err)
	}
	want := "Organisms With 0 Bits of Memory,Organisms With 1 Bits of Memory,Organisms With 2 Bits of Memory\r\n10,0,0\r\n8,2,0\r\n5,4,1\r\n"
	if string(data) != want {
		t.Fatalf("unexpected tally file:\n got=%q\nwant=%q", string(data), want)
	}

	read, ok, err := ReadTally(baseDir, "run", "bits_of_memory")
	if err != nil || !ok {
		t.Fatalf("read tally: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(read, tally) {
		t.Fatalf("tally mismatch: got=%+v want=%+v", read, tally)
	}

	if _, ok, err := ReadTally(baseDir, "run", "bits_of_summary"); err != nil || ok {
		t.Fatalf("expected missing tally, got ok=%t err=%v", ok, err)
	}
}
