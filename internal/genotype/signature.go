package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

type ShapeSummary struct {
	Variant        string `json:"variant"`
	MemoryBits     int    `json:"memory_bits"`
	SummaryBits    int    `json:"summary_bits"`
	DecisionLength int    `json:"decision_length"`
	Cooperations   int    `json:"cooperations"`
}

type Signature struct {
	Fingerprint string       `json:"fingerprint"`
	Summary     ShapeSummary `json:"summary"`
}

// ComputeSignature returns a short content hash of the genotype together
// with a shape summary. Equal genotypes always share a fingerprint.
func ComputeSignature(g Genotype) Signature {
	summary := ShapeSummary{
		Variant:        g.variant.String(),
		MemoryBits:     g.memoryBits,
		SummaryBits:    g.summaryBits,
		DecisionLength: g.decisions.Len(),
		Cooperations:   g.decisions.Count(),
	}

	parts := []string{
		fmt.Sprintf("v=%s", summary.Variant),
		fmt.Sprintf("k=%d", g.memoryBits),
		fmt.Sprintf("j=%d", g.summaryBits),
		fmt.Sprintf("d=%s", g.decisions),
		fmt.Sprintf("m=%s", g.initialMemory),
		fmt.Sprintf("s=%s", g.initialSummary),
	}
	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return Signature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary:     summary,
	}
}
