package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"memevo/internal/stats"
)

func TestRunCommandCreatesArtifacts(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	outputDir := filepath.Join(base, "runs")
	dbPath := filepath.Join(base, "memevo.db")
	common := []string{"--store", "sqlite", "--db-path", dbPath, "--output-dir", outputDir}

	args := append([]string{
		"run",
		"--run-id", "cli-run",
		"--organisms", "6",
		"--generations", "3",
		"--tournament-size", "3",
		"--rounds", "8",
		"--mutation-rate", "1",
		"--output-frequency", "1",
		"--seed", "11",
		"--workers", "2",
	}, common...)
	if err := run(ctx, args); err != nil {
		t.Fatalf("run command: %v", err)
	}

	runDir := filepath.Join(outputDir, "cli-run")
	for _, file := range []string{"config.json", "time.dat", "bits_of_memory_overtime.csv", "detail-0.csv", "detail-3.csv", "lineage.json"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	entries, err := stats.ListRunIndex(outputDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "cli-run" {
		t.Fatalf("unexpected run index: %+v", entries)
	}

	for _, cmd := range [][]string{
		{"runs"},
		{"tally", "--latest"},
		{"strategies", "--run-id", "cli-run", "--generation", "2"},
		{"lineage", "--latest", "--limit", "5"},
		{"diagnostics", "--run-id", "cli-run"},
		{"export", "--latest", "--out", filepath.Join(base, "exports")},
	} {
		if err := run(ctx, append(cmd, common...)); err != nil {
			t.Fatalf("%s command: %v", cmd[0], err)
		}
	}
	if _, err := os.Stat(filepath.Join(base, "exports", "cli-run", "detail-3.csv")); err != nil {
		t.Fatalf("expected exported detail file: %v", err)
	}

	if err := run(ctx, append([]string{"run", "--run-id", "cli-run", "--generations", "1"}, common...)); err == nil {
		t.Fatal("expected error when the run folder already exists")
	}
}

func TestInitWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.json")
	if err := run(context.Background(), []string{"init", "--config-out", path}); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
}

func TestRunCommandRejectsInvalidFlags(t *testing.T) {
	err := run(context.Background(), []string{"run", "--rounds", "0", "--output-dir", t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "rounds") {
		t.Fatalf("expected rounds validation error, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"plot"}); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected usage error for missing command")
	}
}

func TestTallyName(t *testing.T) {
	for kind, want := range map[string]string{
		"memory":    "bits_of_memory",
		"summary":   "bits_of_summary",
		"decisions": "decision_length",
	} {
		got, err := tallyName(kind)
		if err != nil || got != want {
			t.Fatalf("tallyName(%q): got=%q err=%v want=%q", kind, got, err, want)
		}
	}
	if _, err := tallyName("fitness"); err == nil {
		t.Fatal("expected error for unknown tally kind")
	}
}
