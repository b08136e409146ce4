package organism

import (
	"fmt"
	"math/rand"
	"strings"

	"memevo/internal/genotype"
)

// Reference competitor names.
const (
	AllDefect           = "all_defect"
	AllCooperate        = "all_cooperate"
	TitForTat           = "tit_for_tat"
	SuspiciousTitForTat = "suspicious_tit_for_tat"
	TitForTwoTats       = "tit_for_two_tats"
	Random              = "random"
)

// DefaultRoster is the fixed panel used for static fitness.
var DefaultRoster = []string{AllDefect, TitForTat, Random}

var rosterLimits = genotype.Limits{MaxMemoryBits: 2}

type fixedSpec struct {
	memoryBits int
	decisions  genotype.Bits
	initial    genotype.Bits
}

var fixedCompetitors = map[string]fixedSpec{
	AllDefect:           {memoryBits: 0, decisions: "0", initial: ""},
	AllCooperate:        {memoryBits: 0, decisions: "1", initial: ""},
	TitForTat:           {memoryBits: 1, decisions: "01", initial: "1"},
	SuspiciousTitForTat: {memoryBits: 1, decisions: "01", initial: "0"},
	TitForTwoTats:       {memoryBits: 2, decisions: "0111", initial: "11"},
}

// RosterNames lists every competitor NewCompetitor accepts.
func RosterNames() []string {
	return []string{AllDefect, AllCooperate, TitForTat, SuspiciousTitForTat, TitForTwoTats, Random}
}

// NewCompetitor builds one named reference competitor. The random
// competitor cooperates half the time, drawing from rng.
func NewCompetitor(name string, rng *rand.Rand) (*Organism, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == Random {
		if rng == nil {
			return nil, fmt.Errorf("random source is required for %s competitor", Random)
		}
		return NewCoinFlip(Random, rng, 0.5), nil
	}
	spec, ok := fixedCompetitors[name]
	if !ok {
		return nil, fmt.Errorf("unknown competitor: %s", name)
	}
	g, err := genotype.NewSimple(rosterLimits, spec.memoryBits, spec.decisions, spec.initial)
	if err != nil {
		return nil, err
	}
	return NewFixed(name, g), nil
}

// Roster builds the named competitors in order.
func Roster(names []string, rng *rand.Rand) ([]*Organism, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("competitor roster is empty")
	}
	out := make([]*Organism, 0, len(names))
	for _, name := range names {
		competitor, err := NewCompetitor(name, rng)
		if err != nil {
			return nil, err
		}
		out = append(out, competitor)
	}
	return out, nil
}
