package genotype

import (
	"fmt"
	"math/rand"
	"strings"
)

type MutationKind string

const (
	MutationGrowMemory    MutationKind = "grow_memory"
	MutationShrinkMemory  MutationKind = "shrink_memory"
	MutationGrowSummary   MutationKind = "grow_summary"
	MutationShrinkSummary MutationKind = "shrink_summary"
	MutationGrowBoth      MutationKind = "grow_both"
	MutationShrinkBoth    MutationKind = "shrink_both"
	MutationSizeNoop      MutationKind = "size_noop"
	MutationInitialState  MutationKind = "initial_state"
	MutationInitialNoop   MutationKind = "initial_noop"
	MutationDecision      MutationKind = "decision"
)

// GrowthPolicy decides how the entries added by a growing decision table
// are filled. The parent table is always kept as the prefix.
type GrowthPolicy string

const (
	GrowRandomFill GrowthPolicy = "random_fill"
	GrowDuplicate  GrowthPolicy = "duplicate"
)

// SummaryCoupling decides whether hybrid memory and summary dimensions
// mutate on a shared draw or independently.
type SummaryCoupling string

const (
	SummaryIndependent SummaryCoupling = "independent"
	SummaryCoupled     SummaryCoupling = "coupled"
)

func ParseGrowthPolicy(name string) (GrowthPolicy, error) {
	switch GrowthPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", GrowRandomFill:
		return GrowRandomFill, nil
	case GrowDuplicate:
		return GrowDuplicate, nil
	default:
		return "", fmt.Errorf("unsupported growth policy: %s", name)
	}
}

func ParseSummaryCoupling(name string) (SummaryCoupling, error) {
	switch SummaryCoupling(strings.ToLower(strings.TrimSpace(name))) {
	case "", SummaryIndependent:
		return SummaryIndependent, nil
	case SummaryCoupled:
		return SummaryCoupled, nil
	default:
		return "", fmt.Errorf("unsupported summary coupling: %s", name)
	}
}

type MutationPolicy struct {
	SizeProbability    float64
	InitialProbability float64
	Growth             GrowthPolicy
	Coupling           SummaryCoupling
}

func (p MutationPolicy) Validate() error {
	if p.SizeProbability < 0 || p.SizeProbability > 1 {
		return fmt.Errorf("size mutation probability must be in [0, 1]")
	}
	if p.InitialProbability < 0 || p.InitialProbability > 1 {
		return fmt.Errorf("initial-state mutation probability must be in [0, 1]")
	}
	if _, err := ParseGrowthPolicy(string(p.Growth)); err != nil {
		return err
	}
	if _, err := ParseSummaryCoupling(string(p.Coupling)); err != nil {
		return err
	}
	return nil
}

// Mutator produces single-step mutants. It holds only immutable
// configuration and is safe for concurrent use with distinct generators.
type Mutator struct {
	limits Limits
	policy MutationPolicy
}

func NewMutator(limits Limits, policy MutationPolicy) (*Mutator, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	policy.Growth, _ = ParseGrowthPolicy(string(policy.Growth))
	policy.Coupling, _ = ParseSummaryCoupling(string(policy.Coupling))
	return &Mutator{limits: limits, policy: policy}, nil
}

func (m *Mutator) Limits() Limits {
	return m.limits
}

// Mutate applies exactly one mutation operator. A single uniform draw r
// picks size mutation when r < SizeProbability, initial-state mutation when
// r < SizeProbability+InitialProbability, and a decision flip otherwise.
func (m *Mutator) Mutate(rng *rand.Rand, g Genotype) (Genotype, MutationKind, error) {
	if rng == nil {
		return Genotype{}, "", fmt.Errorf("random source is required")
	}
	r := rng.Float64()
	switch {
	case r < m.policy.SizeProbability:
		return m.MutateSize(rng, g)
	case r < m.policy.SizeProbability+m.policy.InitialProbability:
		return m.MutateInitial(rng, g)
	default:
		return m.MutateDecision(rng, g)
	}
}

// MutateSize grows or shrinks a memory dimension by one bit on a fair coin.
// Growth at a ceiling and shrinkage at zero return the genotype unchanged.
func (m *Mutator) MutateSize(rng *rand.Rand, g Genotype) (Genotype, MutationKind, error) {
	grow := rng.Intn(2) == 1
	k, j := g.memoryBits, g.summaryBits

	if g.variant == Simple {
		if grow {
			if !m.canGrow(g, 1, 0) {
				return g, MutationSizeNoop, nil
			}
			return m.resize(rng, g, k+1, j, MutationGrowMemory)
		}
		if k == 0 {
			return g, MutationSizeNoop, nil
		}
		return m.resize(rng, g, k-1, j, MutationShrinkMemory)
	}

	if m.policy.Coupling == SummaryCoupled {
		if grow {
			if !m.canGrow(g, 1, 1) {
				return g, MutationSizeNoop, nil
			}
			return m.resize(rng, g, k+1, j+1, MutationGrowBoth)
		}
		if k == 0 || j == 0 {
			return g, MutationSizeNoop, nil
		}
		return m.resize(rng, g, k-1, j-1, MutationShrinkBoth)
	}

	summary := rng.Intn(2) == 1
	switch {
	case grow && summary:
		if !m.canGrow(g, 0, 1) {
			return g, MutationSizeNoop, nil
		}
		return m.resize(rng, g, k, j+1, MutationGrowSummary)
	case grow:
		if !m.canGrow(g, 1, 0) {
			return g, MutationSizeNoop, nil
		}
		return m.resize(rng, g, k+1, j, MutationGrowMemory)
	case summary:
		if j == 0 {
			return g, MutationSizeNoop, nil
		}
		return m.resize(rng, g, k, j-1, MutationShrinkSummary)
	default:
		if k == 0 {
			return g, MutationSizeNoop, nil
		}
		return m.resize(rng, g, k-1, j, MutationShrinkMemory)
	}
}

func (m *Mutator) canGrow(g Genotype, dk, dj int) bool {
	k, j := g.memoryBits+dk, g.summaryBits+dj
	if k > m.limits.MaxMemoryBits {
		return false
	}
	if g.variant == Hybrid {
		if j > m.limits.MaxSummaryBits || k+j > m.limits.TotalCeiling() {
			return false
		}
	}
	return true
}

func (m *Mutator) resize(rng *rand.Rand, g Genotype, k, j int, kind MutationKind) (Genotype, MutationKind, error) {
	oldLen := g.decisions.Len()
	newLen := DecisionLength(g.variant, k, j)

	// Entries keep their numeric index. Changing a hybrid's memory width
	// changes the 2^k stride, so entries with s > 0 answer different states.
	decisions := g.decisions
	if newLen > oldLen {
		switch m.policy.Growth {
		case GrowDuplicate:
			buf := make([]byte, newLen)
			for i := range buf {
				buf[i] = g.decisions[i%oldLen]
			}
			decisions = Bits(buf)
		default:
			decisions = g.decisions + RandomBits(rng, newLen-oldLen)
		}
	} else {
		decisions = decisions.Truncate(newLen)
	}

	out := Genotype{
		variant:        g.variant,
		memoryBits:     k,
		summaryBits:    j,
		decisions:      decisions,
		initialMemory:  resizeInitial(rng, g.initialMemory, k),
		initialSummary: resizeInitial(rng, g.initialSummary, j),
	}
	if err := out.check(string(kind), m.limits); err != nil {
		return Genotype{}, kind, err
	}
	return out, kind, nil
}

func resizeInitial(rng *rand.Rand, initial Bits, n int) Bits {
	for initial.Len() < n {
		initial = initial.Append(rng.Intn(2) == 1)
	}
	return initial.Truncate(n)
}

// MutateInitial flips one uniformly chosen bit of the initial memory and,
// for hybrid genotypes, one of the initial summary. A genotype without any
// memory bits is returned unchanged.
func (m *Mutator) MutateInitial(rng *rand.Rand, g Genotype) (Genotype, MutationKind, error) {
	k, j := g.memoryBits, g.summaryBits
	if k+j == 0 || (m.policy.Coupling == SummaryCoupled && k == 0) {
		return g, MutationInitialNoop, nil
	}

	out := g
	if k > 0 {
		out.initialMemory = g.initialMemory.Flip(rng.Intn(k))
	}
	if g.variant == Hybrid && j > 0 {
		out.initialSummary = g.initialSummary.Flip(rng.Intn(j))
	}
	if err := out.check(string(MutationInitialState), m.limits); err != nil {
		return Genotype{}, MutationInitialState, err
	}
	return out, MutationInitialState, nil
}

// MutateDecision flips one uniformly chosen decision-table entry.
func (m *Mutator) MutateDecision(rng *rand.Rand, g Genotype) (Genotype, MutationKind, error) {
	n := g.decisions.Len()
	if n == 0 {
		return Genotype{}, MutationDecision, &InvariantError{
			Op:      string(MutationDecision),
			Variant: g.variant, MemoryBits: g.memoryBits, SummaryBits: g.summaryBits,
			InitialMemoryLen: g.initialMemory.Len(), InitialSummaryLen: g.initialSummary.Len(),
			Reason: "empty decision table",
		}
	}
	out := g
	out.decisions = g.decisions.Flip(rng.Intn(n))
	return out, MutationDecision, nil
}
