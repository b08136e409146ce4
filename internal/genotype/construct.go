package genotype

import (
	"fmt"
	"math/rand"
)

// Random draws a genotype of the given variant with uniformly chosen bit
// widths up to the ceilings in limits, and uniformly random table and
// initial state.
func Random(rng *rand.Rand, variant Variant, limits Limits) (Genotype, error) {
	if rng == nil {
		return Genotype{}, fmt.Errorf("random source is required")
	}
	if err := limits.Validate(); err != nil {
		return Genotype{}, err
	}

	switch variant {
	case Simple:
		k := rng.Intn(limits.MaxMemoryBits + 1)
		return NewSimple(limits, k, RandomBits(rng, DecisionLength(Simple, k, 0)), RandomBits(rng, k))
	case Hybrid:
		maxK := min(limits.MaxMemoryBits, limits.TotalCeiling())
		k := rng.Intn(maxK + 1)
		maxJ := min(limits.MaxSummaryBits, limits.TotalCeiling()-k)
		j := rng.Intn(maxJ + 1)
		return NewHybrid(limits, k, j,
			RandomBits(rng, DecisionLength(Hybrid, k, j)),
			RandomBits(rng, k),
			RandomBits(rng, j),
		)
	default:
		return Genotype{}, fmt.Errorf("unsupported genotype variant: %s", variant)
	}
}

// RandomPopulation draws n independent genotypes.
func RandomPopulation(rng *rand.Rand, variant Variant, limits Limits, n int) ([]Genotype, error) {
	if n < 0 {
		return nil, fmt.Errorf("population size must be >= 0")
	}
	out := make([]Genotype, 0, n)
	for i := 0; i < n; i++ {
		g, err := Random(rng, variant, limits)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
