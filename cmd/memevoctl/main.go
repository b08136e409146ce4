package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"memevo/internal/config"
	"memevo/internal/evo"
	"memevo/internal/organism"
	"memevo/internal/storage"
	"memevo/pkg/memevo"
)

const (
	defaultOutputDir  = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "memevo.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "tally":
		return runTally(ctx, args[1:])
	case "strategies":
		return runStrategies(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every command that opens a client.
type clientFlags struct {
	storeKind *string
	dbPath    *string
	outputDir *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDBPath, "sqlite database path"),
		outputDir: fs.String("output-dir", defaultOutputDir, "directory holding run folders and the run index"),
	}
}

func (f clientFlags) open(logger *slog.Logger) (*memevo.Client, error) {
	return memevo.New(memevo.Options{
		StoreKind:  *f.storeKind,
		DBPath:     *f.dbPath,
		OutputDir:  *f.outputDir,
		ExportsDir: defaultExportsDir,
		Logger:     logger,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	configOut := fs.String("config-out", "", "write the default experiment config to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	if *configOut != "" {
		if err := config.Write(*configOut, config.Default()); err != nil {
			return err
		}
		fmt.Printf("wrote config=%s\n", filepath.Clean(*configOut))
	}

	fmt.Printf("initialized store=%s\n", *cf.storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	rf := registerRunFlags(fs, time.Now().Unix())
	runID := fs.String("run-id", "", "explicit run id, used as the run folder name (optional)")
	verbose := fs.Bool("verbose", false, "log every generation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := rf.experimentConfig(setFlags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, *verbose)
	client, err := cf.open(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, memevo.RunRequest{
		RunID:    *runID,
		Config:   cfg,
		Progress: progressReporter(os.Stderr),
	})
	if err != nil {
		return err
	}
	fmt.Printf("run completed run_id=%s variant=%s mode=%s organisms=%d gens=%d seed=%d\n",
		summary.RunID, cfg.Variant, cfg.Mode(), cfg.Organisms, cfg.Generations, cfg.Seed)
	fmt.Printf("final_memory_row=%s\n", formatRow(summary.FinalMemoryRow))
	fmt.Printf("distinct_strategies=%d strategies_seen=%s mean_memory_bits=%.4f\n",
		summary.DistinctStrategies, humanize.Comma(int64(summary.StrategiesSeen)), summary.MeanMemoryBits)
	fmt.Printf("duration=%s snapshots=%d\n", summary.Duration.Round(time.Millisecond), len(summary.SnapshotGenerations))
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, memevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s variant=%s mode=%s seed=%d organisms=%d gens=%d cost_per_bit=%g mean_memory_bits=%.4f strategies=%d\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Variant,
			item.Mode,
			item.Seed,
			item.Organisms,
			item.Generations,
			item.CostPerBit,
			item.FinalMeanBits,
			item.FinalStrategies,
		)
	}
	return nil
}

func runTally(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tally", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	kind := fs.String("kind", "memory", "tally to show: memory|summary|decisions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name, err := tallyName(*kind)
	if err != nil {
		return err
	}

	client, err := cf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	tally, err := client.Tally(ctx, memevo.TallyRequest{RunID: *runID, Latest: *latest, Name: name})
	if err != nil {
		return err
	}
	fmt.Printf("tally=%s columns=%s\n", tally.Name, strings.Join(tally.Header, "|"))
	for i, row := range tally.Rows {
		fmt.Printf("generation=%d counts=%s\n", i+1, formatRow(row))
	}
	return nil
}

func runStrategies(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("strategies", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	generation := fs.Int("generation", -1, "snapshot generation (<0 for the last snapshot)")
	aliveOnly := fs.Bool("alive", false, "only show strategies alive in the snapshot generation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.Strategies(ctx, memevo.StrategiesRequest{RunID: *runID, Latest: *latest, Generation: *generation})
	if err != nil {
		return err
	}
	fmt.Printf("run_id=%s generation=%d variant=%s strategies=%d\n", snapshot.RunID, snapshot.Generation, snapshot.Variant, len(snapshot.Strategies))
	for _, s := range snapshot.Strategies {
		if *aliveOnly && s.Alive == 0 {
			continue
		}
		fmt.Printf("bits=%d summary_bits=%d decisions=%s memory=%s summary=%s alive=%d organisms=%d\n",
			s.MemoryBits, s.SummaryBits, s.Decisions, s.InitialMemory, s.InitialSummary, s.Alive, len(s.IDs))
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show lineage for the most recent run from run index")
	limit := fs.Int("limit", 50, "max lineage rows to print (<=0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := cf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	records, err := client.Lineage(ctx, memevo.LineageRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	for _, r := range records {
		parent := "none"
		if r.ParentID != organism.NoParent {
			parent = fmt.Sprint(r.ParentID)
		}
		fmt.Printf("generation=%d organism=%d parent=%s operation=%s fingerprint=%s\n",
			r.Generation, r.OrganismID, parent, r.Operation, r.Fingerprint)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to print (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, memevo.DiagnosticsRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.4f mean=%.4f min=%.4f distinct=%d mean_memory_bits=%.4f mutations=%d\n",
			d.Generation, d.BestPayout, d.MeanPayout, d.MinPayout, d.DistinctStrategies, d.MeanMemoryBits, d.Mutations)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, memevo.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// progressReporter redraws a single status line on terminals and stays
// silent otherwise.
func progressReporter(f *os.File) func(generation, total int) {
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return func(generation, total int) {
		fmt.Fprintf(f, "\rgeneration %s/%s", humanize.Comma(int64(generation)), humanize.Comma(int64(total)))
		if generation == total {
			fmt.Fprintln(f)
		}
	}
}

func tallyName(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory", evo.MemoryTallyName:
		return evo.MemoryTallyName, nil
	case "summary", evo.SummaryTallyName:
		return evo.SummaryTallyName, nil
	case "decisions", "decision", evo.DecisionTallyName:
		return evo.DecisionTallyName, nil
	default:
		return "", fmt.Errorf("unknown tally kind: %s", kind)
	}
}

func formatRow(row []int) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: memevoctl <init|run|runs|tally|strategies|lineage|diagnostics|export> [flags]", msg)
}
