package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"memevo/internal/config"
	"memevo/internal/model"
)

const runIndexFile = "run_index.json"

const (
	configFile      = "config.json"
	diagnosticsFile = "generation_diagnostics.json"
	lineageFile     = "lineage.json"
	timingFile      = "time.dat"
)

var ErrRunDirExists = errors.New("run directory already exists")

type RunConfig struct {
	RunID        string        `json:"run_id"`
	Mode         string        `json:"mode"`
	CreatedAtUTC string        `json:"created_at_utc"`
	Experiment   config.Config `json:"experiment"`
}

type RunArtifacts struct {
	Config        RunConfig
	MemoryTally   model.Tally
	SummaryTally  *model.Tally
	DecisionTally *model.Tally
	Diagnostics   []model.GenerationDiagnostics
	Lineage       []model.LineageRecord
	StartedAt     time.Time
	FinishedAt    time.Time
}

type RunIndexEntry struct {
	RunID           string  `json:"run_id"`
	Variant         string  `json:"variant"`
	Mode            string  `json:"mode"`
	Organisms       int     `json:"organisms"`
	Generations     int     `json:"generations"`
	Seed            int64   `json:"seed"`
	CostPerBit      float64 `json:"cost_per_bit"`
	FinalMeanBits   float64 `json:"final_mean_memory_bits"`
	FinalStrategies int     `json:"final_distinct_strategies"`
	CreatedAtUTC    string  `json:"created_at_utc"`
}

// CreateRunDir creates the output folder of a new run. An existing folder is
// never reused.
func CreateRunDir(baseDir, runID string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", err
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.Mkdir(runDir, 0o755); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrRunDirExists, runDir)
		}
		return "", err
	}
	return runDir, nil
}

// WriteRunArtifacts writes the end-of-run files into an existing run
// directory created by CreateRunDir.
func WriteRunArtifacts(runDir string, artifacts RunArtifacts) error {
	if artifacts.Config.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if _, err := os.Stat(runDir); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return err
	}
	if err := WriteTally(runDir, artifacts.MemoryTally); err != nil {
		return err
	}
	for _, tally := range []*model.Tally{artifacts.SummaryTally, artifacts.DecisionTally} {
		if tally == nil {
			continue
		}
		if err := WriteTally(runDir, *tally); err != nil {
			return err
		}
	}
	diagnostics := artifacts.Diagnostics
	if diagnostics == nil {
		diagnostics = []model.GenerationDiagnostics{}
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), diagnostics); err != nil {
		return err
	}
	lineage := artifacts.Lineage
	if lineage == nil {
		lineage = []model.LineageRecord{}
	}
	if err := writeJSON(filepath.Join(runDir, lineageFile), lineage); err != nil {
		return err
	}
	return WriteTiming(runDir, artifacts.StartedAt, artifacts.FinishedAt)
}

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

// ListRunIndex returns the index newest first.
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
			// Later appends win ties.
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

// readRunIndex returns the index in append order.
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

// ExportRunArtifacts copies every regular file of a run directory into
// outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	path := filepath.Join(baseDir, runID, diagnosticsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, false, err
	}
	return diagnostics, true, nil
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
