package organism

import (
	"fmt"
	"math/rand"

	"memevo/internal/genotype"
)

// Kind tags the closed set of organism behaviours.
type Kind uint8

const (
	// Evolving organisms decide from their genotype and produce mutants.
	Evolving Kind = iota
	// Fixed organisms decide from their genotype but never mutate.
	Fixed
	// CoinFlip organisms cooperate with a fixed probability and keep no memory.
	CoinFlip
)

func (k Kind) String() string {
	switch k {
	case Evolving:
		return "evolving"
	case Fixed:
		return "fixed"
	case CoinFlip:
		return "coin_flip"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Organism is one individual: a genotype plus identity, mutable memory
// window and the most recent score. Memory is only valid during a game.
type Organism struct {
	kind     Kind
	name     string
	genotype genotype.Genotype
	id       int64
	parentID int64

	window *Window

	rng         *rand.Rand
	cooperateP  float64
	payout      float64
	payoutValid bool
}

// New creates an evolving organism of the initial population.
func New(g genotype.Genotype, ids *IDAllocator) *Organism {
	return newEvolving(g, ids.Next(), NoParent)
}

func newEvolving(g genotype.Genotype, id, parentID int64) *Organism {
	return &Organism{
		kind:     Evolving,
		genotype: g,
		id:       id,
		parentID: parentID,
		window:   NewWindow(g.InitialWindow()),
	}
}

// NewFixed creates a non-mutating competitor with a hand-written genotype.
func NewFixed(name string, g genotype.Genotype) *Organism {
	return &Organism{
		kind:     Fixed,
		name:     name,
		genotype: g,
		id:       NoParent,
		parentID: NoParent,
		window:   NewWindow(g.InitialWindow()),
	}
}

// NewCoinFlip creates a competitor that cooperates with probability p,
// drawing from rng.
func NewCoinFlip(name string, rng *rand.Rand, p float64) *Organism {
	return &Organism{
		kind:       CoinFlip,
		name:       name,
		id:         NoParent,
		parentID:   NoParent,
		window:     NewWindow(nil),
		rng:        rng,
		cooperateP: p,
	}
}

func (o *Organism) Kind() Kind                     { return o.kind }
func (o *Organism) Name() string                   { return o.name }
func (o *Organism) ID() int64                      { return o.id }
func (o *Organism) ParentID() int64                { return o.parentID }
func (o *Organism) HasParent() bool                { return o.parentID != NoParent }
func (o *Organism) Genotype() genotype.Genotype    { return o.genotype }
func (o *Organism) Memory() []bool                 { return o.window.Snapshot() }
func (o *Organism) AveragePayout() (float64, bool) { return o.payout, o.payoutValid }

// MemoryBits is the number of bits the organism pays for.
func (o *Organism) MemoryBits() int {
	if o.kind == CoinFlip {
		return 0
	}
	return o.genotype.TotalBits()
}

func (o *Organism) SetAveragePayout(v float64) {
	o.payout = v
	o.payoutValid = true
}

// InitializeMemory restores the window to the genotype's initial state.
func (o *Organism) InitializeMemory() {
	if o.kind == CoinFlip {
		return
	}
	o.window.Reset(o.genotype.InitialWindow())
}

// WillCooperate reports the organism's next move.
func (o *Organism) WillCooperate() bool {
	switch o.kind {
	case CoinFlip:
		return o.rng.Float64() < o.cooperateP
	default:
		return o.genotype.Decision(o.genotype.Index(o.window.Bits()))
	}
}

// StoreBitOfMemory records one observed move.
func (o *Organism) StoreBitOfMemory(cooperated bool) {
	if o.kind == CoinFlip {
		return
	}
	o.window.Push(cooperated)
}

// Mutate returns a new evolving organism carrying a mutant of this
// organism's genotype with a fresh id and this organism as parent. Fixed
// and coin-flip organisms return themselves.
func (o *Organism) Mutate(rng *rand.Rand, mutator *genotype.Mutator, ids *IDAllocator) (*Organism, genotype.MutationKind, error) {
	if o.kind != Evolving {
		return o, "", nil
	}
	child, kind, err := mutator.Mutate(rng, o.genotype)
	if err != nil {
		return nil, kind, fmt.Errorf("mutate organism %d: %w", o.id, err)
	}
	return newEvolving(child, ids.Next(), o.id), kind, nil
}

// Fork returns a copy that shares identity and genotype but owns a fresh
// memory window. Coin-flip forks draw from rng when it is non-nil.
func (o *Organism) Fork(rng *rand.Rand) *Organism {
	cp := *o
	cp.window = NewWindow(o.window.Bits())
	if rng != nil {
		cp.rng = rng
	}
	return &cp
}

func (o *Organism) String() string {
	switch o.kind {
	case Evolving:
		return fmt.Sprintf("organism(id=%d parent=%d %s)", o.id, o.parentID, o.genotype)
	case CoinFlip:
		return fmt.Sprintf("%s(p=%.2f)", o.name, o.cooperateP)
	default:
		return fmt.Sprintf("%s(%s)", o.name, o.genotype)
	}
}
