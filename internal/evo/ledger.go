package evo

import (
	"memevo/internal/genotype"
	"memevo/internal/model"
	"memevo/internal/organism"
)

// LedgerEntry groups every organism ever registered with one genotype.
type LedgerEntry struct {
	Genotype  genotype.Genotype
	Organisms []*organism.Organism
	seen      map[int64]struct{}
}

// Ledger maps each distinct genotype to the organisms that carried it.
// Entries keep first-seen order and are never removed.
type Ledger struct {
	entries map[genotype.Genotype]*LedgerEntry
	order   []genotype.Genotype
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[genotype.Genotype]*LedgerEntry)}
}

// Register records every organism of population under its genotype. An
// organism already on the ledger is not added twice.
func (l *Ledger) Register(population []*organism.Organism) {
	for _, org := range population {
		g := org.Genotype()
		entry, ok := l.entries[g]
		if !ok {
			entry = &LedgerEntry{Genotype: g, seen: make(map[int64]struct{})}
			l.entries[g] = entry
			l.order = append(l.order, g)
		}
		if _, dup := entry.seen[org.ID()]; dup {
			continue
		}
		entry.seen[org.ID()] = struct{}{}
		entry.Organisms = append(entry.Organisms, org)
	}
}

func (l *Ledger) Len() int {
	return len(l.order)
}

func (l *Ledger) Entries() []*LedgerEntry {
	out := make([]*LedgerEntry, 0, len(l.order))
	for _, g := range l.order {
		out = append(out, l.entries[g])
	}
	return out
}

func (l *Ledger) Lookup(g genotype.Genotype) (*LedgerEntry, bool) {
	entry, ok := l.entries[g]
	return entry, ok
}

// Snapshot renders the ledger with alive counts taken from population.
func (l *Ledger) Snapshot(runID string, generation int, variant genotype.Variant, population []*organism.Organism) model.Snapshot {
	alive := make(map[genotype.Genotype]int, len(l.order))
	for _, org := range population {
		alive[org.Genotype()]++
	}

	strategies := make([]model.StrategyRecord, 0, len(l.order))
	for _, g := range l.order {
		entry := l.entries[g]
		ids := make([]int64, 0, len(entry.Organisms))
		parents := make([]int64, 0, len(entry.Organisms))
		for _, org := range entry.Organisms {
			ids = append(ids, org.ID())
			parents = append(parents, org.ParentID())
		}
		strategies = append(strategies, model.StrategyRecord{
			Fingerprint:    genotype.ComputeSignature(g).Fingerprint,
			MemoryBits:     g.MemoryBits(),
			SummaryBits:    g.SummaryBits(),
			Decisions:      g.Decisions().String(),
			InitialMemory:  g.InitialMemory().String(),
			InitialSummary: g.InitialSummary().String(),
			Alive:          alive[g],
			IDs:            ids,
			ParentIDs:      parents,
		})
	}
	return model.Snapshot{
		RunID:      runID,
		Generation: generation,
		Variant:    variant.String(),
		Strategies: strategies,
	}
}
