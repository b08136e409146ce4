package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one completed or interrupted evolution run.
type RunRecord struct {
	VersionedRecord
	RunID          string  `json:"run_id"`
	Variant        string  `json:"variant"`
	Mode           string  `json:"mode"`
	Seed           int64   `json:"seed"`
	Organisms      int     `json:"organisms"`
	Generations    int     `json:"generations"`
	CostPerBit     float64 `json:"cost_per_bit"`
	MaxMemoryBits  int     `json:"max_memory_bits"`
	MaxSummaryBits int     `json:"max_summary_bits"`
	Distinct       int     `json:"distinct_strategies"`
	MeanBits       float64 `json:"mean_memory_bits"`
	StartedAtUTC   string  `json:"started_at_utc"`
	FinishedAtUTC  string  `json:"finished_at_utc"`
}

// Tally is a header plus one row of counts per generation.
type Tally struct {
	VersionedRecord
	Name   string   `json:"name"`
	Header []string `json:"header"`
	Rows   [][]int  `json:"rows"`
}

// StrategyRecord is one distinct genotype of a detail snapshot.
type StrategyRecord struct {
	Fingerprint    string  `json:"fingerprint"`
	MemoryBits     int     `json:"memory_bits"`
	SummaryBits    int     `json:"summary_bits,omitempty"`
	Decisions      string  `json:"decisions"`
	InitialMemory  string  `json:"initial_memory"`
	InitialSummary string  `json:"initial_summary,omitempty"`
	Alive          int     `json:"alive"`
	IDs            []int64 `json:"ids"`
	ParentIDs      []int64 `json:"parent_ids"`
}

// Snapshot is the strategy ledger as of one generation.
type Snapshot struct {
	VersionedRecord
	RunID      string           `json:"run_id"`
	Generation int              `json:"generation"`
	Variant    string           `json:"variant"`
	Strategies []StrategyRecord `json:"strategies"`
}

type GenerationDiagnostics struct {
	Generation         int     `json:"generation"`
	BestPayout         float64 `json:"best_payout"`
	MeanPayout         float64 `json:"mean_payout"`
	MinPayout          float64 `json:"min_payout"`
	DistinctStrategies int     `json:"distinct_strategies"`
	MeanMemoryBits     float64 `json:"mean_memory_bits"`
	Mutations          int     `json:"mutations"`
}

// LineageRecord records the birth of one organism by mutation.
type LineageRecord struct {
	VersionedRecord
	OrganismID  int64  `json:"organism_id"`
	ParentID    int64  `json:"parent_id"`
	Generation  int    `json:"generation"`
	Operation   string `json:"operation"`
	Fingerprint string `json:"fingerprint"`
}
