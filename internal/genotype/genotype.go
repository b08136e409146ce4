package genotype

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvariant marks a genotype whose shape is inconsistent. It is never
// recovered from: a run that produces one is aborted.
var ErrInvariant = errors.New("genotype invariant violated")

// HardBitCeiling bounds any configured ceiling so decision tables stay
// addressable.
const HardBitCeiling = 24

type Variant uint8

const (
	Simple Variant = iota
	Hybrid
)

func (v Variant) String() string {
	switch v {
	case Simple:
		return "simple"
	case Hybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "simple":
		return Simple, nil
	case "hybrid":
		return Hybrid, nil
	default:
		return 0, fmt.Errorf("unsupported genotype variant: %s", name)
	}
}

// Limits are the bit-width ceilings a genotype must respect.
type Limits struct {
	MaxMemoryBits  int
	MaxSummaryBits int
	// MaxTotalBits caps memory+summary; zero means MaxMemoryBits+MaxSummaryBits.
	MaxTotalBits int
}

func (l Limits) Validate() error {
	if l.MaxMemoryBits < 0 || l.MaxMemoryBits > HardBitCeiling {
		return fmt.Errorf("max memory bits must be in [0, %d]", HardBitCeiling)
	}
	if l.MaxSummaryBits < 0 || l.MaxSummaryBits > HardBitCeiling {
		return fmt.Errorf("max summary bits must be in [0, %d]", HardBitCeiling)
	}
	if l.MaxTotalBits < 0 {
		return fmt.Errorf("max total bits must be >= 0")
	}
	return nil
}

// TotalCeiling resolves the combined ceiling.
func (l Limits) TotalCeiling() int {
	if l.MaxTotalBits > 0 {
		return l.MaxTotalBits
	}
	return l.MaxMemoryBits + l.MaxSummaryBits
}

// Genotype is the immutable heritable description of a memory strategy.
// Two genotypes are the same strategy exactly when they compare equal with ==.
type Genotype struct {
	variant        Variant
	memoryBits     int
	summaryBits    int
	decisions      Bits
	initialMemory  Bits
	initialSummary Bits
}

// InvariantError reports which operation produced a malformed genotype.
type InvariantError struct {
	Op                string
	Variant           Variant
	MemoryBits        int
	SummaryBits       int
	DecisionLen       int
	InitialMemoryLen  int
	InitialSummaryLen int
	Reason            string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s genotype k=%d j=%d decisions=%d initial_memory=%d initial_summary=%d: %s",
		e.Op, e.Variant, e.MemoryBits, e.SummaryBits, e.DecisionLen, e.InitialMemoryLen, e.InitialSummaryLen, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

// DecisionLength is the decision-table length required by a shape.
func DecisionLength(variant Variant, memoryBits, summaryBits int) int {
	if variant == Hybrid {
		return (1 << memoryBits) * (summaryBits + 1)
	}
	return 1 << memoryBits
}

// NewSimple builds a simple genotype whose window is memoryBits long.
func NewSimple(limits Limits, memoryBits int, decisions, initialMemory Bits) (Genotype, error) {
	g := Genotype{
		variant:       Simple,
		memoryBits:    memoryBits,
		decisions:     decisions,
		initialMemory: initialMemory,
	}
	if err := g.check("construct", limits); err != nil {
		return Genotype{}, err
	}
	return g, nil
}

// NewHybrid builds a hybrid genotype with memoryBits specific bits and
// summaryBits summarised bits.
func NewHybrid(limits Limits, memoryBits, summaryBits int, decisions, initialMemory, initialSummary Bits) (Genotype, error) {
	g := Genotype{
		variant:        Hybrid,
		memoryBits:     memoryBits,
		summaryBits:    summaryBits,
		decisions:      decisions,
		initialMemory:  initialMemory,
		initialSummary: initialSummary,
	}
	if err := g.check("construct", limits); err != nil {
		return Genotype{}, err
	}
	return g, nil
}

// Validate re-checks every shape invariant against limits.
func (g Genotype) Validate(limits Limits) error {
	return g.check("validate", limits)
}

func (g Genotype) check(op string, limits Limits) error {
	fail := func(format string, args ...any) error {
		return &InvariantError{
			Op:                op,
			Variant:           g.variant,
			MemoryBits:        g.memoryBits,
			SummaryBits:       g.summaryBits,
			DecisionLen:       g.decisions.Len(),
			InitialMemoryLen:  g.initialMemory.Len(),
			InitialSummaryLen: g.initialSummary.Len(),
			Reason:            fmt.Sprintf(format, args...),
		}
	}
	if g.variant != Simple && g.variant != Hybrid {
		return fail("unknown variant")
	}
	if g.memoryBits < 0 || g.summaryBits < 0 {
		return fail("bit widths must be non-negative")
	}
	if g.variant == Simple && g.summaryBits != 0 {
		return fail("simple genotype cannot carry summary bits")
	}
	if g.memoryBits > limits.MaxMemoryBits {
		return fail("memory bits exceed ceiling %d", limits.MaxMemoryBits)
	}
	if g.variant == Hybrid {
		if g.summaryBits > limits.MaxSummaryBits {
			return fail("summary bits exceed ceiling %d", limits.MaxSummaryBits)
		}
		if g.memoryBits+g.summaryBits > limits.TotalCeiling() {
			return fail("total bits exceed ceiling %d", limits.TotalCeiling())
		}
	}
	if want := DecisionLength(g.variant, g.memoryBits, g.summaryBits); g.decisions.Len() != want {
		return fail("decision table length must be %d", want)
	}
	if g.initialMemory.Len() != g.memoryBits {
		return fail("initial memory length must be %d", g.memoryBits)
	}
	if g.initialSummary.Len() != g.summaryBits {
		return fail("initial summary length must be %d", g.summaryBits)
	}
	return nil
}

func (g Genotype) Variant() Variant      { return g.variant }
func (g Genotype) MemoryBits() int       { return g.memoryBits }
func (g Genotype) SummaryBits() int      { return g.summaryBits }
func (g Genotype) TotalBits() int        { return g.memoryBits + g.summaryBits }
func (g Genotype) Decisions() Bits       { return g.decisions }
func (g Genotype) InitialMemory() Bits   { return g.initialMemory }
func (g Genotype) InitialSummary() Bits  { return g.initialSummary }
func (g Genotype) Decision(i int) bool   { return g.decisions.At(i) }
func (g Genotype) DecisionCount() int    { return g.decisions.Len() }
func (g Genotype) Equal(o Genotype) bool { return g == o }

// InitialWindow is the starting memory window: initial memory followed by
// initial summary.
func (g Genotype) InitialWindow() []bool {
	return append(g.initialMemory.Bools(), g.initialSummary.Bools()...)
}

// Index maps a memory window to a decision-table index. The first
// MemoryBits entries are read as a most-significant-first binary number b.
// For hybrid genotypes the remaining entries contribute s, the number of
// true values, and the index is b + s*2^MemoryBits. An empty window is 0.
func (g Genotype) Index(window []bool) int {
	if g.variant == Simple {
		return binaryValue(window)
	}
	specific := window
	var summary []bool
	if len(window) > g.memoryBits {
		specific = window[:g.memoryBits]
		summary = window[g.memoryBits:]
	}
	s := 0
	for _, v := range summary {
		if v {
			s++
		}
	}
	return binaryValue(specific) + s*(1<<g.memoryBits)
}

func binaryValue(bits []bool) int {
	value := 0
	for _, v := range bits {
		value <<= 1
		if v {
			value |= 1
		}
	}
	return value
}

func (g Genotype) String() string {
	if g.variant == Hybrid {
		return fmt.Sprintf("hybrid(k=%d j=%d decisions=%s memory=%s summary=%s)",
			g.memoryBits, g.summaryBits, g.decisions, g.initialMemory, g.initialSummary)
	}
	return fmt.Sprintf("simple(k=%d decisions=%s memory=%s)", g.memoryBits, g.decisions, g.initialMemory)
}
