package memevo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"memevo/internal/config"
	"memevo/internal/evo"
	"memevo/internal/game"
	"memevo/internal/genotype"
	"memevo/internal/model"
	"memevo/internal/organism"
	"memevo/internal/stats"
	"memevo/internal/storage"
)

const (
	defaultOutputDir  = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "memevo.db"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunExists   = errors.New("run already recorded in store")
)

type Options struct {
	StoreKind  string
	DBPath     string
	OutputDir  string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store storage.Store
	log   *slog.Logger

	initMu      sync.Mutex
	initialized bool

	outputDir  string
	exportsDir string
}

type RunRequest struct {
	// RunID names the output folder; empty derives one from the variant,
	// seed and a random suffix.
	RunID  string
	Config config.Config
	// Progress is forwarded to the generational loop.
	Progress func(generation, total int)
}

type RunSummary struct {
	RunID               string
	ArtifactsDir        string
	Generations         int
	FinalMemoryRow      []int
	DistinctStrategies  int
	StrategiesSeen      int
	MeanMemoryBits      float64
	SnapshotGenerations []int
	Duration            time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	Variant         string
	Mode            string
	Seed            int64
	Organisms       int
	Generations     int
	CostPerBit      float64
	FinalMeanBits   float64
	FinalStrategies int
}

type TallyRequest struct {
	RunID  string
	Latest bool
	Name   string
}

type StrategiesRequest struct {
	RunID  string
	Latest bool
	// Generation selects a snapshot; a negative value picks the last one.
	Generation int
}

type LineageRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = defaultOutputDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		log:        logger,
		outputDir:  outputDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Run executes one experiment end to end: it evolves the population, writes
// the run folder and persists the run in the store.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	variant, err := cfg.VariantValue()
	if err != nil {
		return RunSummary{}, err
	}
	policy, err := cfg.MutationPolicy()
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = fmt.Sprintf("%s-%d-%s", variant, cfg.Seed, uuid.NewString()[:8])
	}
	runDir, err := stats.CreateRunDir(c.outputDir, runID)
	if err != nil {
		return RunSummary{}, err
	}
	summary, err := c.runInDir(ctx, req, cfg, variant, policy, runID, runDir)
	if err != nil {
		if rmErr := os.RemoveAll(runDir); rmErr != nil {
			c.log.Warn("remove incomplete run folder", "run_dir", runDir, "error", rmErr)
		}
		return RunSummary{}, err
	}
	return summary, nil
}

func (c *Client) runInDir(ctx context.Context, req RunRequest, cfg config.Config, variant genotype.Variant, policy genotype.MutationPolicy, runID, runDir string) (RunSummary, error) {
	if _, ok, err := c.store.GetRun(ctx, runID); err != nil {
		return RunSummary{}, err
	} else if ok {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}
	startedAt := time.Now()

	rng := rand.New(rand.NewSource(cfg.Seed))
	engine, err := game.NewEngine(cfg.GameConfig(), rng, cfg.Seed)
	if err != nil {
		return RunSummary{}, err
	}
	mutator, err := genotype.NewMutator(cfg.Limits(), policy)
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := selectorFor(cfg, engine, rng)
	if err != nil {
		return RunSummary{}, err
	}

	ids := organism.NewIDAllocator(0)
	initial, err := evo.InitialPopulation(rng, variant, cfg.Limits(), cfg.Organisms, ids)
	if err != nil {
		return RunSummary{}, err
	}
	monitor, err := evo.NewMonitor(evo.MonitorConfig{
		RunID:           runID,
		Variant:         variant,
		Selector:        selector,
		Mutator:         mutator,
		MutationRate:    cfg.MutationRate,
		Generations:     cfg.Generations,
		OutputFrequency: cfg.OutputFrequency,
		Sinks: []evo.SnapshotSink{
			stats.DetailWriter{Dir: runDir},
			storage.SnapshotRecorder{Store: c.store},
		},
		Logger:   c.log,
		Progress: req.Progress,
	}, rng, ids)
	if err != nil {
		return RunSummary{}, err
	}

	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	finishedAt := time.Now()

	distinct, meanBits := populationSummary(result.FinalPopulation)
	runCfg := stats.RunConfig{
		RunID:        runID,
		Mode:         cfg.Mode(),
		CreatedAtUTC: startedAt.UTC().Format(time.RFC3339Nano),
		Experiment:   cfg,
	}
	if err := stats.WriteRunArtifacts(runDir, stats.RunArtifacts{
		Config:        runCfg,
		MemoryTally:   result.MemoryTally,
		SummaryTally:  result.SummaryTally,
		DecisionTally: result.DecisionTally,
		Diagnostics:   result.Diagnostics,
		Lineage:       result.Lineage,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}); err != nil {
		return RunSummary{}, err
	}

	if err := c.persist(ctx, model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Variant:         variant.String(),
		Mode:            cfg.Mode(),
		Seed:            cfg.Seed,
		Organisms:       cfg.Organisms,
		Generations:     cfg.Generations,
		CostPerBit:      cfg.CostPerBit,
		MaxMemoryBits:   cfg.MaxMemoryBits,
		MaxSummaryBits:  cfg.MaxSummaryBits,
		Distinct:        distinct,
		MeanBits:        meanBits,
		StartedAtUTC:    runCfg.CreatedAtUTC,
		FinishedAtUTC:   finishedAt.UTC().Format(time.RFC3339Nano),
	}, result); err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.outputDir, stats.RunIndexEntry{
		RunID:           runID,
		Variant:         variant.String(),
		Mode:            cfg.Mode(),
		Organisms:       cfg.Organisms,
		Generations:     cfg.Generations,
		Seed:            cfg.Seed,
		CostPerBit:      cfg.CostPerBit,
		FinalMeanBits:   meanBits,
		FinalStrategies: distinct,
		CreatedAtUTC:    runCfg.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:               runID,
		ArtifactsDir:        filepath.Clean(runDir),
		Generations:         cfg.Generations,
		DistinctStrategies:  distinct,
		StrategiesSeen:      result.Ledger.Len(),
		MeanMemoryBits:      meanBits,
		SnapshotGenerations: append([]int(nil), result.SnapshotGenerations...),
		Duration:            finishedAt.Sub(startedAt),
	}
	if rows := result.MemoryTally.Rows; len(rows) > 0 {
		summary.FinalMemoryRow = append([]int(nil), rows[len(rows)-1]...)
	}
	c.log.Info("run persisted", "run_id", runID, "artifacts_dir", summary.ArtifactsDir)
	return summary, nil
}

func (c *Client) persist(ctx context.Context, run model.RunRecord, result evo.RunResult) error {
	if err := c.store.SaveRun(ctx, run); err != nil {
		return err
	}
	for _, tally := range []*model.Tally{&result.MemoryTally, result.SummaryTally, result.DecisionTally} {
		if tally == nil {
			continue
		}
		stamped := *tally
		stamped.VersionedRecord = storage.CurrentVersion()
		if err := c.store.SaveTally(ctx, run.RunID, stamped); err != nil {
			return err
		}
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, run.RunID, result.Diagnostics); err != nil {
		return err
	}
	lineage := make([]model.LineageRecord, len(result.Lineage))
	for i, record := range result.Lineage {
		record.VersionedRecord = storage.CurrentVersion()
		lineage[i] = record
	}
	return c.store.SaveLineage(ctx, run.RunID, lineage)
}

// Runs lists runs newest first from the store, falling back to the run
// index of the output folder when the store holds none.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if len(records) > req.Limit {
			records = records[:req.Limit]
		}
		out := make([]RunItem, 0, len(records))
		for _, r := range records {
			out = append(out, RunItem{
				RunID:           r.RunID,
				CreatedAtUTC:    r.StartedAtUTC,
				Variant:         r.Variant,
				Mode:            r.Mode,
				Seed:            r.Seed,
				Organisms:       r.Organisms,
				Generations:     r.Generations,
				CostPerBit:      r.CostPerBit,
				FinalMeanBits:   r.MeanBits,
				FinalStrategies: r.Distinct,
			})
		}
		return out, nil
	}

	entries, err := stats.ListRunIndex(c.outputDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:           e.RunID,
			CreatedAtUTC:    e.CreatedAtUTC,
			Variant:         e.Variant,
			Mode:            e.Mode,
			Seed:            e.Seed,
			Organisms:       e.Organisms,
			Generations:     e.Generations,
			CostPerBit:      e.CostPerBit,
			FinalMeanBits:   e.FinalMeanBits,
			FinalStrategies: e.FinalStrategies,
		})
	}
	return out, nil
}

// Tally returns a named tally from the store, falling back to the run
// folder when the store does not hold the run.
func (c *Client) Tally(ctx context.Context, req TallyRequest) (model.Tally, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "tally")
	if err != nil {
		return model.Tally{}, err
	}
	name := req.Name
	if name == "" {
		name = evo.MemoryTallyName
	}

	if err := c.ensureStore(ctx); err != nil {
		return model.Tally{}, err
	}
	tally, ok, err := c.store.GetTally(ctx, runID, name)
	if err != nil {
		return model.Tally{}, err
	}
	if ok {
		return tally, nil
	}
	tally, ok, err = stats.ReadTally(c.outputDir, runID, name)
	if err != nil {
		return model.Tally{}, err
	}
	if !ok {
		return model.Tally{}, fmt.Errorf("%w: tally %s for run id %s", ErrRunNotFound, name, runID)
	}
	return tally, nil
}

// Strategies returns one ledger snapshot of a run.
func (c *Client) Strategies(ctx context.Context, req StrategiesRequest) (model.Snapshot, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "strategies")
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return model.Snapshot{}, err
	}

	generation := req.Generation
	if generation < 0 {
		generations, err := c.store.ListSnapshotGenerations(ctx, runID)
		if err != nil {
			return model.Snapshot{}, err
		}
		if len(generations) == 0 {
			generations, err = detailGenerations(filepath.Join(c.outputDir, runID))
			if err != nil {
				return model.Snapshot{}, err
			}
		}
		if len(generations) == 0 {
			return model.Snapshot{}, fmt.Errorf("%w: no snapshots for run id %s", ErrRunNotFound, runID)
		}
		generation = generations[len(generations)-1]
	}

	snapshot, ok, err := c.store.GetSnapshot(ctx, runID, generation)
	if err != nil {
		return model.Snapshot{}, err
	}
	if ok {
		return snapshot, nil
	}

	cfg, ok, err := stats.ReadRunConfig(c.outputDir, runID)
	if err != nil {
		return model.Snapshot{}, err
	}
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	strategies, err := stats.ReadDetail(filepath.Join(c.outputDir, runID, stats.DetailFileName(generation)))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Snapshot{}, fmt.Errorf("%w: snapshot %d for run id %s", ErrRunNotFound, generation, runID)
		}
		return model.Snapshot{}, err
	}
	return model.Snapshot{
		RunID:      runID,
		Generation: generation,
		Variant:    cfg.Experiment.Variant,
		Strategies: strategies,
	}, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]model.LineageRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "lineage")
	if err != nil {
		return nil, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: lineage for run id %s", ErrRunNotFound, runID)
	}
	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}
	return append([]model.LineageRecord(nil), lineage...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.outputDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: diagnostics for run id %s", ErrRunNotFound, runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.outputDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) resolveRunID(runID string, latest bool, op string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", fmt.Errorf("%s requires run id or latest", op)
	}
	entries, err := stats.ListRunIndex(c.outputDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no runs available", ErrRunNotFound)
	}
	return entries[0].RunID, nil
}

func selectorFor(cfg config.Config, engine *game.Engine, rng *rand.Rand) (evo.Selector, error) {
	if !cfg.Static {
		return evo.CoevolutionarySelector{Engine: engine, TournamentSize: cfg.TournamentSize}, nil
	}
	competitors, err := organism.Roster(cfg.Roster, rng)
	if err != nil {
		return nil, err
	}
	return evo.StaticSelector{Engine: engine, Competitors: competitors}, nil
}

func populationSummary(population []*organism.Organism) (int, float64) {
	if len(population) == 0 {
		return 0, 0
	}
	seen := make(map[genotype.Genotype]struct{}, len(population))
	bits := 0
	for _, org := range population {
		seen[org.Genotype()] = struct{}{}
		bits += org.Genotype().TotalBits()
	}
	return len(seen), float64(bits) / float64(len(population))
}

func detailGenerations(runDir string) ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(runDir, "detail-*.csv"))
	if err != nil {
		return nil, err
	}
	generations := make([]int, 0, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), "detail-"), ".csv")
		generation, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		generations = append(generations, generation)
	}
	sort.Ints(generations)
	return generations, nil
}
