package evo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"memevo/internal/genotype"
	"memevo/internal/model"
	"memevo/internal/organism"
)

// SnapshotSink receives ledger snapshots as the run produces them.
type SnapshotSink interface {
	WriteSnapshot(ctx context.Context, snapshot model.Snapshot) error
}

type RunResult struct {
	MemoryTally         model.Tally
	SummaryTally        *model.Tally
	DecisionTally       *model.Tally
	Diagnostics         []model.GenerationDiagnostics
	Lineage             []model.LineageRecord
	SnapshotGenerations []int
	FinalPopulation     []*organism.Organism
	Ledger              *Ledger
}

type MonitorConfig struct {
	RunID           string
	Variant         genotype.Variant
	Selector        Selector
	Mutator         *genotype.Mutator
	MutationRate    float64
	Generations     int
	OutputFrequency int
	Sinks           []SnapshotSink
	Logger          *slog.Logger
	// Progress, when set, is called after every completed generation.
	Progress func(generation, total int)
}

// Monitor drives the generational loop.
type Monitor struct {
	cfg MonitorConfig
	rng *rand.Rand
	ids *organism.IDAllocator
	log *slog.Logger
}

func NewMonitor(cfg MonitorConfig, rng *rand.Rand, ids *organism.IDAllocator) (*Monitor, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id allocator is required")
	}
	if cfg.Selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	if cfg.Mutator == nil {
		return nil, fmt.Errorf("mutator is required")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0")
	}
	if cfg.OutputFrequency <= 0 {
		return nil, fmt.Errorf("output frequency must be > 0")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Monitor{
		cfg: cfg,
		rng: rng,
		ids: ids,
		log: logger.With("run_id", cfg.RunID),
	}, nil
}

// InitialPopulation draws n random evolving organisms.
func InitialPopulation(rng *rand.Rand, variant genotype.Variant, limits genotype.Limits, n int, ids *organism.IDAllocator) ([]*organism.Organism, error) {
	genotypes, err := genotype.RandomPopulation(rng, variant, limits, n)
	if err != nil {
		return nil, err
	}
	population := make([]*organism.Organism, 0, n)
	for _, g := range genotypes {
		population = append(population, organism.New(g, ids))
	}
	return population, nil
}

func (m *Monitor) Run(ctx context.Context, initial []*organism.Organism) (RunResult, error) {
	if len(initial) == 0 {
		return RunResult{}, fmt.Errorf("initial population is empty")
	}
	limits := m.cfg.Mutator.Limits()
	population := append([]*organism.Organism(nil), initial...)

	result := RunResult{
		MemoryTally: newTally(MemoryTallyName, MemoryHeader(limits.MaxMemoryBits)),
		Diagnostics: make([]model.GenerationDiagnostics, 0, m.cfg.Generations),
		Ledger:      NewLedger(),
	}
	if m.cfg.Variant == genotype.Hybrid {
		summary := newTally(SummaryTallyName, SummaryHeader(limits.MaxSummaryBits))
		decisions := newTally(DecisionTallyName, []string{"Total Decision Length"})
		result.SummaryTally = &summary
		result.DecisionTally = &decisions
	}

	result.Ledger.Register(population)
	if err := m.emitSnapshot(ctx, &result, 0, population); err != nil {
		return RunResult{}, err
	}
	m.log.Info("run started",
		"selector", m.cfg.Selector.Name(),
		"variant", m.cfg.Variant.String(),
		"organisms", len(population),
		"generations", m.cfg.Generations,
	)

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		selected, err := m.cfg.Selector.NextGeneration(ctx, m.rng, population)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}
		diag := summarizeGeneration(selected, gen+1)

		population, err = m.mutate(selected, gen+1, &result.Lineage, &diag)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}

		if err := m.tally(&result, population); err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}
		result.Ledger.Register(population)
		diag.DistinctStrategies = countDistinct(population)
		result.Diagnostics = append(result.Diagnostics, diag)

		if (gen+1)%m.cfg.OutputFrequency == 0 {
			if err := m.emitSnapshot(ctx, &result, gen+1, population); err != nil {
				return RunResult{}, err
			}
		}

		m.log.Debug("generation complete",
			"generation", gen+1,
			"mean_payout", diag.MeanPayout,
			"best_payout", diag.BestPayout,
			"distinct_strategies", diag.DistinctStrategies,
			"mutations", diag.Mutations,
		)
		if m.cfg.Progress != nil {
			m.cfg.Progress(gen+1, m.cfg.Generations)
		}
	}

	result.FinalPopulation = population
	m.log.Info("run finished", "strategies_seen", result.Ledger.Len())
	return result, nil
}

func (m *Monitor) mutate(selected []*organism.Organism, generation int, lineage *[]model.LineageRecord, diag *model.GenerationDiagnostics) ([]*organism.Organism, error) {
	next := make([]*organism.Organism, len(selected))
	for i, org := range selected {
		if m.rng.Float64() >= m.cfg.MutationRate {
			next[i] = org
			continue
		}
		child, kind, err := org.Mutate(m.rng, m.cfg.Mutator, m.ids)
		if err != nil {
			return nil, err
		}
		next[i] = child
		diag.Mutations++
		*lineage = append(*lineage, model.LineageRecord{
			OrganismID:  child.ID(),
			ParentID:    org.ID(),
			Generation:  generation,
			Operation:   string(kind),
			Fingerprint: genotype.ComputeSignature(child.Genotype()).Fingerprint,
		})
	}
	return next, nil
}

func (m *Monitor) tally(result *RunResult, population []*organism.Organism) error {
	limits := m.cfg.Mutator.Limits()
	row, err := TallyMemoryBits(population, limits.MaxMemoryBits)
	if err != nil {
		return err
	}
	result.MemoryTally.Rows = append(result.MemoryTally.Rows, row)

	if result.SummaryTally != nil {
		summaryRow, err := TallySummaryBits(population, limits.MaxSummaryBits)
		if err != nil {
			return err
		}
		result.SummaryTally.Rows = append(result.SummaryTally.Rows, summaryRow)
		result.DecisionTally.Rows = append(result.DecisionTally.Rows, []int{TotalDecisionLength(population)})
	}
	return nil
}

func (m *Monitor) emitSnapshot(ctx context.Context, result *RunResult, generation int, population []*organism.Organism) error {
	snapshot := result.Ledger.Snapshot(m.cfg.RunID, generation, m.cfg.Variant, population)
	for _, sink := range m.cfg.Sinks {
		if err := sink.WriteSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("write snapshot %d: %w", generation, err)
		}
	}
	result.SnapshotGenerations = append(result.SnapshotGenerations, generation)
	m.log.Info("snapshot written", "generation", generation, "strategies", len(snapshot.Strategies))
	return nil
}

func summarizeGeneration(scored []*organism.Organism, generation int) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{Generation: generation}
	if len(scored) == 0 {
		return diag
	}
	total, bits := 0.0, 0
	first := true
	for _, org := range scored {
		bits += org.MemoryBits()
		payout, ok := org.AveragePayout()
		if !ok {
			continue
		}
		total += payout
		if first || payout > diag.BestPayout {
			diag.BestPayout = payout
		}
		if first || payout < diag.MinPayout {
			diag.MinPayout = payout
		}
		first = false
	}
	diag.MeanPayout = total / float64(len(scored))
	diag.MeanMemoryBits = float64(bits) / float64(len(scored))
	return diag
}

func countDistinct(population []*organism.Organism) int {
	seen := make(map[genotype.Genotype]struct{}, len(population))
	for _, org := range population {
		seen[org.Genotype()] = struct{}{}
	}
	return len(seen)
}
