package evo

import (
	"cmp"
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/exp/slices"

	"memevo/internal/game"
	"memevo/internal/organism"
)

// Selector produces the next generation from the current population.
type Selector interface {
	Name() string
	NextGeneration(ctx context.Context, rng *rand.Rand, population []*organism.Organism) ([]*organism.Organism, error)
}

// NumberOfTournaments is the number of groups one partition of n organisms
// into groups of size produces. The last group may be short.
func NumberOfTournaments(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// ContenderGenerator yields consecutive groups of a shuffled population and
// reshuffles every time a partition is exhausted, so it never runs dry.
type ContenderGenerator struct {
	rng        *rand.Rand
	population []*organism.Organism
	size       int
	shuffled   []*organism.Organism
	next       int
}

func NewContenderGenerator(rng *rand.Rand, population []*organism.Organism, size int) (*ContenderGenerator, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("tournament size must be > 0")
	}
	if len(population) == 0 {
		return nil, fmt.Errorf("population is empty")
	}
	return &ContenderGenerator{rng: rng, population: population, size: size}, nil
}

// Next returns the next group. Groups are never modified after they are
// returned.
func (g *ContenderGenerator) Next() []*organism.Organism {
	if g.shuffled == nil || g.next >= len(g.shuffled) {
		g.shuffled = append([]*organism.Organism(nil), g.population...)
		g.rng.Shuffle(len(g.shuffled), func(i, j int) {
			g.shuffled[i], g.shuffled[j] = g.shuffled[j], g.shuffled[i]
		})
		g.next = 0
	}
	end := min(g.next+g.size, len(g.shuffled))
	group := g.shuffled[g.next:end:end]
	g.next = end
	return group
}

// TopHalf returns the floor(len/2) highest scoring members, ranked by
// average payout descending. Ties keep their group order.
func TopHalf(group []*organism.Organism) []*organism.Organism {
	ranked := append([]*organism.Organism(nil), group...)
	slices.SortStableFunc(ranked, func(a, b *organism.Organism) int {
		pa, _ := a.AveragePayout()
		pb, _ := b.AveragePayout()
		return cmp.Compare(pb, pa)
	})
	return ranked[:len(ranked)/2]
}

// CoevolutionarySelector runs all-pairs tournaments inside shuffled groups
// and keeps the top half of every group until the next generation is full.
type CoevolutionarySelector struct {
	Engine         *game.Engine
	TournamentSize int
}

func (CoevolutionarySelector) Name() string {
	return "coevolutionary"
}

func (s CoevolutionarySelector) NextGeneration(ctx context.Context, rng *rand.Rand, population []*organism.Organism) ([]*organism.Organism, error) {
	if s.Engine == nil {
		return nil, fmt.Errorf("game engine is required")
	}
	if s.TournamentSize < 2 {
		return nil, fmt.Errorf("tournament size must be >= 2")
	}
	if len(population) < 2 {
		return nil, fmt.Errorf("coevolutionary selection needs at least 2 organisms, got %d", len(population))
	}

	contenders, err := NewContenderGenerator(rng, population, s.TournamentSize)
	if err != nil {
		return nil, err
	}
	next := make([]*organism.Organism, 0, len(population)+s.TournamentSize/2)
	for len(next) < len(population) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		group := contenders.Next()
		if err := s.Engine.ScoreGroup(ctx, group); err != nil {
			return nil, err
		}
		next = append(next, TopHalf(group)...)
	}
	return next[:len(population)], nil
}

// StaticSelector scores every organism against a fixed roster and keeps the
// population as it is.
type StaticSelector struct {
	Engine      *game.Engine
	Competitors []*organism.Organism
}

func (StaticSelector) Name() string {
	return "static"
}

func (s StaticSelector) NextGeneration(ctx context.Context, _ *rand.Rand, population []*organism.Organism) ([]*organism.Organism, error) {
	if s.Engine == nil {
		return nil, fmt.Errorf("game engine is required")
	}
	if err := s.Engine.ScoreAgainst(ctx, population, s.Competitors); err != nil {
		return nil, err
	}
	return append([]*organism.Organism(nil), population...), nil
}
