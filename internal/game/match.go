package game

import (
	"errors"
	"fmt"
	"math/rand"

	"memevo/internal/organism"
)

var ErrMatchFinished = errors.New("match already finished")

type State uint8

const (
	NotStarted State = iota
	InProgress
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Round is one resolved round after noise.
type Round struct {
	ACooperates bool
	BCooperates bool
	PayoutA     float64
	PayoutB     float64
}

// Match is a single iterated game between two organisms. Both organisms'
// memories are reset when the match starts and again when it finishes.
type Match struct {
	a, b   *organism.Organism
	rounds int
	played int
	state  State

	payoff     Payoff
	noise      float64
	selfMemory bool
	rng        *rand.Rand

	totalA, totalB float64
}

func NewMatch(cfg Config, rng *rand.Rand, a, b *organism.Organism, rounds int) (*Match, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("both organisms are required")
	}
	if rounds <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrNonPositiveRounds, rounds)
	}
	if rng == nil && cfg.Noise > 0 {
		return nil, fmt.Errorf("random source is required")
	}
	return &Match{
		a:          a,
		b:          b,
		rounds:     rounds,
		payoff:     cfg.Payoff,
		noise:      cfg.Noise,
		selfMemory: cfg.SelfMemory,
		rng:        rng,
	}, nil
}

func (m *Match) State() State { return m.state }
func (m *Match) Played() int  { return m.played }

// Step plays one round.
func (m *Match) Step() (Round, error) {
	switch m.state {
	case Finished:
		return Round{}, ErrMatchFinished
	case NotStarted:
		m.a.InitializeMemory()
		m.b.InitializeMemory()
		m.state = InProgress
	}

	aCoop := m.a.WillCooperate()
	bCoop := m.b.WillCooperate()
	if m.noise > 0 && m.rng.Float64() < m.noise {
		if m.rng.Intn(2) == 0 {
			aCoop = !aCoop
		} else {
			bCoop = !bCoop
		}
	}

	payA, payB := m.payoff.Resolve(aCoop, bCoop)
	m.totalA += payA
	m.totalB += payB

	if m.selfMemory {
		m.a.StoreBitOfMemory(aCoop)
		m.a.StoreBitOfMemory(bCoop)
		m.b.StoreBitOfMemory(bCoop)
		m.b.StoreBitOfMemory(aCoop)
	} else {
		m.a.StoreBitOfMemory(bCoop)
		m.b.StoreBitOfMemory(aCoop)
	}

	m.played++
	if m.played == m.rounds {
		m.a.InitializeMemory()
		m.b.InitializeMemory()
		m.state = Finished
	}
	return Round{ACooperates: aCoop, BCooperates: bCoop, PayoutA: payA, PayoutB: payB}, nil
}

// Run plays every remaining round and returns the raw totals.
func (m *Match) Run() (float64, float64, error) {
	for m.state != Finished {
		if _, err := m.Step(); err != nil {
			return 0, 0, err
		}
	}
	return m.totalA, m.totalB, nil
}

func (m *Match) Totals() (float64, float64) {
	return m.totalA, m.totalB
}
