package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"memevo/internal/organism"
)

// ErrNonPositiveRounds is returned when a randomized round count is not
// positive. It is a configuration error and aborts the run.
var ErrNonPositiveRounds = errors.New("round count must be positive")

// DefaultRoundScale is the standard deviation of randomized round counts.
const DefaultRoundScale = 3.0

type Config struct {
	Payoff           Payoff
	Rounds           int
	RandomizedRounds bool
	RoundScale       float64
	Noise            float64
	SelfMemory       bool
	CostPerBit       float64
	Workers          int
}

func (c Config) Validate() error {
	if err := c.Payoff.Validate(); err != nil {
		return err
	}
	if c.Rounds <= 0 {
		return fmt.Errorf("%w: rounds=%d", ErrNonPositiveRounds, c.Rounds)
	}
	if c.RoundScale < 0 {
		return fmt.Errorf("round scale must be >= 0")
	}
	if c.Noise < 0 || c.Noise > 1 {
		return fmt.Errorf("noise must be in [0, 1]")
	}
	if c.CostPerBit < 0 {
		return fmt.Errorf("cost per bit must be >= 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	return nil
}

// Result is the outcome of one game.
type Result struct {
	Rounds    int
	RawA      float64
	RawB      float64
	AdjustedA float64
	AdjustedB float64
}

// Engine plays games. rng drives noise and per-pair seeds; the round
// generator is dedicated to randomized round counts so toggling noise or
// mutation never shifts the sequence of game lengths.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	rounds *rand.Rand
}

func NewEngine(cfg Config, rng *rand.Rand, roundsSeed int64) (*Engine, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if cfg.RoundScale == 0 && cfg.RandomizedRounds {
		cfg.RoundScale = DefaultRoundScale
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		rng:    rng,
		rounds: rand.New(rand.NewSource(roundsSeed)),
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// NextRounds returns the length of the next game.
func (e *Engine) NextRounds() (int, error) {
	if !e.cfg.RandomizedRounds {
		return e.cfg.Rounds, nil
	}
	draw := e.rounds.NormFloat64()*e.cfg.RoundScale + float64(e.cfg.Rounds)
	n := int(math.Trunc(draw))
	if n <= 0 {
		return 0, fmt.Errorf("%w: drew %d (mean=%d scale=%g)", ErrNonPositiveRounds, n, e.cfg.Rounds, e.cfg.RoundScale)
	}
	return n, nil
}

// Adjusted applies the memory cost to a raw payout.
func (e *Engine) Adjusted(raw float64, memoryBits int) float64 {
	return raw * (1 - e.cfg.CostPerBit*float64(memoryBits))
}

// Play runs one game on the engine's random stream.
func (e *Engine) Play(a, b *organism.Organism) (Result, error) {
	rounds, err := e.NextRounds()
	if err != nil {
		return Result{}, err
	}
	return e.play(e.rng, a, b, rounds)
}

func (e *Engine) play(rng *rand.Rand, a, b *organism.Organism, rounds int) (Result, error) {
	if a == b {
		b = b.Fork(nil)
	}
	match, err := NewMatch(e.cfg, rng, a, b, rounds)
	if err != nil {
		return Result{}, err
	}
	rawA, rawB, err := match.Run()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Rounds:    rounds,
		RawA:      rawA,
		RawB:      rawB,
		AdjustedA: e.Adjusted(rawA, a.MemoryBits()),
		AdjustedB: e.Adjusted(rawB, b.MemoryBits()),
	}, nil
}
