package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"memevo/internal/organism"
)

type pairing struct {
	idx    int
	a, b   int
	rounds int
	seed   int64
}

// ScoreGroup plays every unordered pair of group exactly once and sets each
// member's average payout to its total adjusted payout divided by the number
// of games it played (len(group)-1). Members of a group smaller than two
// score zero.
func (e *Engine) ScoreGroup(ctx context.Context, group []*organism.Organism) error {
	if len(group) < 2 {
		for _, org := range group {
			org.SetAveragePayout(0)
		}
		return nil
	}

	pairs := make([]pairing, 0, len(group)*(len(group)-1)/2)
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			rounds, err := e.NextRounds()
			if err != nil {
				return err
			}
			p := pairing{idx: len(pairs), a: i, b: j, rounds: rounds}
			if e.cfg.Workers > 1 {
				p.seed = e.rng.Int63()
			}
			pairs = append(pairs, p)
		}
	}

	var results []Result
	var err error
	if e.cfg.Workers > 1 {
		results, err = e.playParallel(ctx, pairs, func(p pairing, rng *rand.Rand) (Result, error) {
			return e.play(rng, group[p.a].Fork(rng), group[p.b].Fork(rng), p.rounds)
		})
	} else {
		results, err = e.playSequential(ctx, pairs, func(p pairing) (Result, error) {
			return e.play(e.rng, group[p.a], group[p.b], p.rounds)
		})
	}
	if err != nil {
		return err
	}

	totals := make([]float64, len(group))
	for _, p := range pairs {
		totals[p.a] += results[p.idx].AdjustedA
		totals[p.b] += results[p.idx].AdjustedB
	}
	games := float64(len(group) - 1)
	for i, org := range group {
		org.SetAveragePayout(totals[i] / games)
	}
	return nil
}

// ScoreAgainst sets each organism's average payout to its mean adjusted
// payout over one game against every competitor. Competitors are not scored.
func (e *Engine) ScoreAgainst(ctx context.Context, population, competitors []*organism.Organism) error {
	if len(competitors) == 0 {
		return fmt.Errorf("competitor roster is empty")
	}

	pairs := make([]pairing, 0, len(population)*len(competitors))
	for i := range population {
		for j := range competitors {
			rounds, err := e.NextRounds()
			if err != nil {
				return err
			}
			p := pairing{idx: len(pairs), a: i, b: j, rounds: rounds}
			if e.cfg.Workers > 1 {
				p.seed = e.rng.Int63()
			}
			pairs = append(pairs, p)
		}
	}

	var results []Result
	var err error
	if e.cfg.Workers > 1 {
		results, err = e.playParallel(ctx, pairs, func(p pairing, rng *rand.Rand) (Result, error) {
			return e.play(rng, population[p.a].Fork(rng), competitors[p.b].Fork(rng), p.rounds)
		})
	} else {
		results, err = e.playSequential(ctx, pairs, func(p pairing) (Result, error) {
			return e.play(e.rng, population[p.a], competitors[p.b], p.rounds)
		})
	}
	if err != nil {
		return err
	}

	totals := make([]float64, len(population))
	for _, p := range pairs {
		totals[p.a] += results[p.idx].AdjustedA
	}
	for i, org := range population {
		org.SetAveragePayout(totals[i] / float64(len(competitors)))
	}
	return nil
}

func (e *Engine) playSequential(ctx context.Context, pairs []pairing, play func(pairing) (Result, error)) ([]Result, error) {
	results := make([]Result, len(pairs))
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := play(p)
		if err != nil {
			return nil, err
		}
		results[p.idx] = res
	}
	return results, nil
}

func (e *Engine) playParallel(ctx context.Context, pairs []pairing, play func(pairing, *rand.Rand) (Result, error)) ([]Result, error) {
	type result struct {
		idx int
		res Result
		err error
	}

	jobs := make(chan pairing)
	out := make(chan result, len(pairs))

	workerCount := e.cfg.Workers
	if workerCount > len(pairs) {
		workerCount = len(pairs)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for p := range jobs {
				if err := ctx.Err(); err != nil {
					out <- result{idx: p.idx, err: err}
					continue
				}
				res, err := play(p, rand.New(rand.NewSource(p.seed)))
				out <- result{idx: p.idx, res: res, err: err}
			}
		}()
	}

	for _, p := range pairs {
		jobs <- p
	}
	close(jobs)

	wg.Wait()
	close(out)

	results := make([]Result, len(pairs))
	for r := range out {
		if r.err != nil {
			return nil, r.err
		}
		results[r.idx] = r.res
	}
	return results, nil
}
