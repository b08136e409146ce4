package genotype

import (
	"math/rand"
	"strings"
	"testing"
)

func mustMutator(t *testing.T, limits Limits, policy MutationPolicy) *Mutator {
	t.Helper()
	m, err := NewMutator(limits, policy)
	if err != nil {
		t.Fatalf("new mutator: %v", err)
	}
	return m
}

func TestMutateSizePreservesInvariants(t *testing.T) {
	for _, coupling := range []SummaryCoupling{SummaryIndependent, SummaryCoupled} {
		for _, growth := range []GrowthPolicy{GrowRandomFill, GrowDuplicate} {
			m := mustMutator(t, testLimits, MutationPolicy{Growth: growth, Coupling: coupling})
			for seed := int64(1); seed <= 200; seed++ {
				rng := rand.New(rand.NewSource(seed))
				for _, variant := range []Variant{Simple, Hybrid} {
					parent, err := Random(rng, variant, testLimits)
					if err != nil {
						t.Fatalf("random: %v", err)
					}
					child, kind, err := m.MutateSize(rng, parent)
					if err != nil {
						t.Fatalf("mutate size %s: %v", kind, err)
					}
					if err := child.Validate(testLimits); err != nil {
						t.Fatalf("child violates invariants after %s: %v", kind, err)
					}
					checkSizeRelation(t, parent, child, kind)
				}
			}
		}
	}
}

func checkSizeRelation(t *testing.T, parent, child Genotype, kind MutationKind) {
	t.Helper()
	dk := child.MemoryBits() - parent.MemoryBits()
	dj := child.SummaryBits() - parent.SummaryBits()
	switch kind {
	case MutationSizeNoop:
		if child != parent {
			t.Fatalf("noop changed genotype: %s -> %s", parent, child)
		}
		return
	case MutationGrowMemory:
		if dk != 1 || dj != 0 {
			t.Fatalf("grow memory changed widths by %d/%d", dk, dj)
		}
	case MutationShrinkMemory:
		if dk != -1 || dj != 0 {
			t.Fatalf("shrink memory changed widths by %d/%d", dk, dj)
		}
	case MutationGrowSummary:
		if dk != 0 || dj != 1 {
			t.Fatalf("grow summary changed widths by %d/%d", dk, dj)
		}
	case MutationShrinkSummary:
		if dk != 0 || dj != -1 {
			t.Fatalf("shrink summary changed widths by %d/%d", dk, dj)
		}
	case MutationGrowBoth:
		if dk != 1 || dj != 1 {
			t.Fatalf("grow both changed widths by %d/%d", dk, dj)
		}
	case MutationShrinkBoth:
		if dk != -1 || dj != -1 {
			t.Fatalf("shrink both changed widths by %d/%d", dk, dj)
		}
	default:
		t.Fatalf("unexpected size mutation kind: %s", kind)
	}

	pd, cd := string(parent.Decisions()), string(child.Decisions())
	if len(cd) > len(pd) {
		if !strings.HasPrefix(cd, pd) {
			t.Fatalf("growth must keep parent table as prefix: %s -> %s", pd, cd)
		}
	} else if cd != pd[:len(cd)] {
		t.Fatalf("shrink must truncate table tail: %s -> %s", pd, cd)
	}

	pm, cm := string(parent.InitialMemory()), string(child.InitialMemory())
	if dk > 0 && !strings.HasPrefix(cm, pm) {
		t.Fatalf("growth must keep initial memory prefix: %s -> %s", pm, cm)
	}
	if dk < 0 && cm != pm[:len(cm)] {
		t.Fatalf("shrink must drop last initial memory bit: %s -> %s", pm, cm)
	}
}

func TestMutateSizeAtBoundsIsNoop(t *testing.T) {
	limits := Limits{MaxMemoryBits: 0}
	m := mustMutator(t, limits, MutationPolicy{})
	g, err := NewSimple(limits, 0, "1", "")
	if err != nil {
		t.Fatalf("new simple: %v", err)
	}
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		child, kind, err := m.MutateSize(rng, g)
		if err != nil {
			t.Fatalf("mutate size: %v", err)
		}
		if kind != MutationSizeNoop || child != g {
			t.Fatalf("expected noop at bounds, got %s -> %s", kind, child)
		}
	}
}

func TestGrowDuplicateTilesParentTable(t *testing.T) {
	m := mustMutator(t, testLimits, MutationPolicy{Growth: GrowDuplicate})
	g, err := NewSimple(testLimits, 1, "01", "1")
	if err != nil {
		t.Fatalf("new simple: %v", err)
	}
	for seed := int64(1); seed < 100; seed++ {
		child, kind, err := m.MutateSize(rand.New(rand.NewSource(seed)), g)
		if err != nil {
			t.Fatalf("mutate size: %v", err)
		}
		if kind != MutationGrowMemory {
			continue
		}
		if child.Decisions() != "0101" {
			t.Fatalf("unexpected duplicated table: %s", child.Decisions())
		}
		return
	}
	t.Fatal("expected at least one growth within 100 seeds")
}

func TestHybridGrowSummaryKeepsReachableEntries(t *testing.T) {
	m := mustMutator(t, testLimits, MutationPolicy{})
	g, err := NewHybrid(testLimits, 1, 1, "0110", "1", "0")
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	for seed := int64(1); seed < 200; seed++ {
		child, kind, err := m.MutateSize(rand.New(rand.NewSource(seed)), g)
		if err != nil {
			t.Fatalf("mutate size: %v", err)
		}
		if kind != MutationGrowSummary {
			continue
		}
		// index b + s*2 keeps its meaning for every s <= 1
		if child.DecisionCount() != 6 || child.Decisions()[:4] != "0110" {
			t.Fatalf("unexpected grown table: %s", child.Decisions())
		}
		if child.InitialSummary().Len() != 2 || child.InitialSummary()[:1] != "0" {
			t.Fatalf("unexpected initial summary: %s", child.InitialSummary())
		}
		return
	}
	t.Fatal("expected a summary growth within 200 seeds")
}

func TestMutateInitialFlipsOneBit(t *testing.T) {
	m := mustMutator(t, testLimits, MutationPolicy{})
	g, err := NewSimple(testLimits, 3, "00000000", "101")
	if err != nil {
		t.Fatalf("new simple: %v", err)
	}
	child, kind, err := m.MutateInitial(rand.New(rand.NewSource(9)), g)
	if err != nil {
		t.Fatalf("mutate initial: %v", err)
	}
	if kind != MutationInitialState || hamming(g.InitialMemory(), child.InitialMemory()) != 1 {
		t.Fatalf("expected exactly one flipped bit: %s -> %s", g.InitialMemory(), child.InitialMemory())
	}
	if child.Decisions() != g.Decisions() {
		t.Fatal("initial-state mutation must not touch the decision table")
	}
}

func TestMutateInitialHybridFlipsEachVectorOnce(t *testing.T) {
	m := mustMutator(t, testLimits, MutationPolicy{})
	g, err := NewHybrid(testLimits, 2, 2, "000000000000", "00", "11")
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	child, _, err := m.MutateInitial(rand.New(rand.NewSource(4)), g)
	if err != nil {
		t.Fatalf("mutate initial: %v", err)
	}
	if hamming(g.InitialMemory(), child.InitialMemory()) != 1 || hamming(g.InitialSummary(), child.InitialSummary()) != 1 {
		t.Fatalf("unexpected initial vectors: %s/%s", child.InitialMemory(), child.InitialSummary())
	}
}

func TestMutateInitialWithoutMemoryIsNoop(t *testing.T) {
	m := mustMutator(t, testLimits, MutationPolicy{})
	g, _ := NewSimple(testLimits, 0, "0", "")
	child, kind, err := m.MutateInitial(rand.New(rand.NewSource(1)), g)
	if err != nil {
		t.Fatalf("mutate initial: %v", err)
	}
	if kind != MutationInitialNoop || child != g {
		t.Fatalf("expected noop, got %s", kind)
	}
}

func TestMutateDecisionFlipsOneEntry(t *testing.T) {
	m := mustMutator(t, testLimits, MutationPolicy{})
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		g, err := Random(rng, Hybrid, testLimits)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		child, _, err := m.MutateDecision(rng, g)
		if err != nil {
			t.Fatalf("mutate decision: %v", err)
		}
		if hamming(g.Decisions(), child.Decisions()) != 1 {
			t.Fatalf("expected one flipped decision: %s -> %s", g.Decisions(), child.Decisions())
		}
		if child.InitialMemory() != g.InitialMemory() || child.MemoryBits() != g.MemoryBits() {
			t.Fatal("decision mutation must only touch the table")
		}
	}
}

func TestMutateDispatchFollowsProbabilities(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	g, _ := NewSimple(testLimits, 2, "0110", "10")

	decisionOnly := mustMutator(t, testLimits, MutationPolicy{})
	sizeOnly := mustMutator(t, testLimits, MutationPolicy{SizeProbability: 1})
	initialOnly := mustMutator(t, testLimits, MutationPolicy{InitialProbability: 1})
	for i := 0; i < 100; i++ {
		if _, kind, err := decisionOnly.Mutate(rng, g); err != nil || kind != MutationDecision {
			t.Fatalf("expected decision mutation, got %s err=%v", kind, err)
		}
		_, kind, err := sizeOnly.Mutate(rng, g)
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
		if kind != MutationGrowMemory && kind != MutationShrinkMemory {
			t.Fatalf("expected size mutation, got %s", kind)
		}
		if _, kind, err := initialOnly.Mutate(rng, g); err != nil || kind != MutationInitialState {
			t.Fatalf("expected initial-state mutation, got %s err=%v", kind, err)
		}
	}
}

func TestMutationPolicyValidation(t *testing.T) {
	if _, err := NewMutator(testLimits, MutationPolicy{SizeProbability: 1.5}); err == nil {
		t.Fatal("expected probability error")
	}
	if _, err := NewMutator(testLimits, MutationPolicy{Growth: "mirror"}); err == nil {
		t.Fatal("expected growth policy error")
	}
	if _, err := NewMutator(Limits{MaxMemoryBits: -1}, MutationPolicy{}); err == nil {
		t.Fatal("expected limits error")
	}
}

func hamming(a, b Bits) int {
	if a.Len() != b.Len() {
		return -1
	}
	diff := 0
	for i := 0; i < a.Len(); i++ {
		if a[i] != b[i] {
			diff++
		}
	}
	return diff
}

func TestHybridGrowMemoryShiftsSummaryStride(t *testing.T) {
	m := mustMutator(t, testLimits, MutationPolicy{})
	g, err := NewHybrid(testLimits, 1, 1, "0001", "0", "1")
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	for seed := int64(1); seed < 200; seed++ {
		child, kind, err := m.MutateSize(rand.New(rand.NewSource(seed)), g)
		if err != nil {
			t.Fatalf("mutate size: %v", err)
		}
		if kind != MutationGrowMemory {
			continue
		}
		if child.DecisionCount() != 8 || child.Decisions()[:4] != "0001" {
			t.Fatalf("unexpected grown table: %s", child.Decisions())
		}
		// b=1 s=1 was index 3 and is now index 1+1*4 = 5
		if g.Index([]bool{true, true}) != 3 || child.Index([]bool{false, true, true}) != 5 {
			t.Fatalf("unexpected indices: parent=%d child=%d", g.Index([]bool{true, true}), child.Index([]bool{false, true, true}))
		}
		// index 3 now answers b=3 s=0
		if child.Index([]bool{true, true, false}) != 3 {
			t.Fatalf("unexpected index for b=3 s=0: %d", child.Index([]bool{true, true, false}))
		}
		return
	}
	t.Fatal("expected a memory growth within 200 seeds")
}
