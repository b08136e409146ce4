package evo

import (
	"fmt"

	"memevo/internal/model"
	"memevo/internal/organism"
)

const (
	MemoryTallyName   = "bits_of_memory"
	SummaryTallyName  = "bits_of_summary"
	DecisionTallyName = "decision_length"
)

// MemoryHeader labels the columns of a memory-bits histogram.
func MemoryHeader(maxBits int) []string {
	return histogramHeader(maxBits, "Organisms With %d Bits of Memory")
}

// SummaryHeader labels the columns of a summary-bits histogram.
func SummaryHeader(maxBits int) []string {
	return histogramHeader(maxBits, "Organisms With %d Bits of Summary")
}

func histogramHeader(maxBits int, format string) []string {
	header := make([]string, 0, maxBits+1)
	for i := 0; i <= maxBits; i++ {
		header = append(header, fmt.Sprintf(format, i))
	}
	return header
}

// TallyMemoryBits counts organisms per memory width in [0, maxBits].
func TallyMemoryBits(population []*organism.Organism, maxBits int) ([]int, error) {
	return tally(population, maxBits, "memory", func(o *organism.Organism) int {
		return o.Genotype().MemoryBits()
	})
}

// TallySummaryBits counts organisms per summary width in [0, maxBits].
func TallySummaryBits(population []*organism.Organism, maxBits int) ([]int, error) {
	return tally(population, maxBits, "summary", func(o *organism.Organism) int {
		return o.Genotype().SummaryBits()
	})
}

func tally(population []*organism.Organism, maxBits int, label string, width func(*organism.Organism) int) ([]int, error) {
	counts := make([]int, maxBits+1)
	for _, org := range population {
		w := width(org)
		if w < 0 || w > maxBits {
			return nil, fmt.Errorf("organism %d has %d %s bits, outside [0, %d]", org.ID(), w, label, maxBits)
		}
		counts[w]++
	}
	return counts, nil
}

// TotalDecisionLength sums decision-table lengths over the population.
func TotalDecisionLength(population []*organism.Organism) int {
	total := 0
	for _, org := range population {
		total += org.Genotype().DecisionCount()
	}
	return total
}

func newTally(name string, header []string) model.Tally {
	return model.Tally{Name: name, Header: header, Rows: [][]int{}}
}
