package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"memevo/internal/game"
	"memevo/internal/genotype"
	"memevo/internal/organism"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	ModeCoevolutionary = "coevolutionary"
	ModeStatic         = "static"
)

// Config is one experiment. It is passed by value into every component.
type Config struct {
	Variant            string      `json:"variant" toml:"variant" yaml:"variant"`
	Organisms          int         `json:"organisms" toml:"organisms" yaml:"organisms"`
	Generations        int         `json:"generations" toml:"generations" yaml:"generations"`
	TournamentSize     int         `json:"tournament_size" toml:"tournament_size" yaml:"tournament_size"`
	Rounds             int         `json:"rounds" toml:"rounds" yaml:"rounds"`
	Payoff             game.Payoff `json:"payoff" toml:"payoff" yaml:"payoff"`
	CostPerBit         float64     `json:"cost_per_bit" toml:"cost_per_bit" yaml:"cost_per_bit"`
	MaxMemoryBits      int         `json:"max_memory_bits" toml:"max_memory_bits" yaml:"max_memory_bits"`
	MaxSummaryBits     int         `json:"max_summary_bits" toml:"max_summary_bits" yaml:"max_summary_bits"`
	MaxTotalBits       int         `json:"max_total_bits" toml:"max_total_bits" yaml:"max_total_bits"`
	SizeProbability    float64     `json:"size_mutation_probability" toml:"size_mutation_probability" yaml:"size_mutation_probability"`
	InitialProbability float64     `json:"initial_mutation_probability" toml:"initial_mutation_probability" yaml:"initial_mutation_probability"`
	MutationRate       float64     `json:"mutation_rate" toml:"mutation_rate" yaml:"mutation_rate"`
	OutputFrequency    int         `json:"output_frequency" toml:"output_frequency" yaml:"output_frequency"`
	Noise              float64     `json:"noise" toml:"noise" yaml:"noise"`
	RandomizedRounds   bool        `json:"randomized_rounds" toml:"randomized_rounds" yaml:"randomized_rounds"`
	RoundScale         float64     `json:"round_scale" toml:"round_scale" yaml:"round_scale"`
	SelfMemory         bool        `json:"self_memory" toml:"self_memory" yaml:"self_memory"`
	Static             bool        `json:"static" toml:"static" yaml:"static"`
	Roster             []string    `json:"roster" toml:"roster" yaml:"roster"`
	GrowthPolicy       string      `json:"growth_policy" toml:"growth_policy" yaml:"growth_policy"`
	SummaryCoupling    string      `json:"summary_coupling" toml:"summary_coupling" yaml:"summary_coupling"`
	Workers            int         `json:"workers" toml:"workers" yaml:"workers"`
	Seed               int64       `json:"seed" toml:"seed" yaml:"seed"`
}

// Default mirrors the defaults of the original command line.
func Default() Config {
	return Config{
		Variant:            genotype.Simple.String(),
		Organisms:          10,
		Generations:        500,
		TournamentSize:     8,
		Rounds:             64,
		Payoff:             game.DefaultPayoff(),
		CostPerBit:         0,
		MaxMemoryBits:      4,
		MaxSummaryBits:     4,
		MaxTotalBits:       0,
		SizeProbability:    1.0,
		InitialProbability: 1.0,
		MutationRate:       0,
		OutputFrequency:    10,
		Noise:              0,
		RandomizedRounds:   false,
		RoundScale:         game.DefaultRoundScale,
		SelfMemory:         false,
		Static:             false,
		Roster:             append([]string(nil), organism.DefaultRoster...),
		GrowthPolicy:       string(genotype.GrowRandomFill),
		SummaryCoupling:    string(genotype.SummaryIndependent),
		Workers:            1,
		Seed:               1,
	}
}

// Mode names the selection mode.
func (c Config) Mode() string {
	if c.Static {
		return ModeStatic
	}
	return ModeCoevolutionary
}

func (c Config) Validate() error {
	if _, err := genotype.ParseVariant(c.Variant); err != nil {
		return invalid("%v", err)
	}
	if c.Organisms < 1 {
		return invalid("organisms must be > 0")
	}
	if !c.Static && c.Organisms < 2 {
		return invalid("coevolutionary selection needs at least 2 organisms")
	}
	if c.Generations < 0 {
		return invalid("generations must be >= 0")
	}
	if !c.Static && c.TournamentSize < 2 {
		return invalid("tournament size must be >= 2")
	}
	if c.Rounds <= 0 {
		return invalid("rounds must be > 0")
	}
	if err := c.Payoff.Validate(); err != nil {
		return invalid("%v", err)
	}
	if c.CostPerBit < 0 {
		return invalid("cost per bit must be >= 0")
	}
	if err := c.Limits().Validate(); err != nil {
		return invalid("%v", err)
	}
	for name, p := range map[string]float64{
		"size mutation probability":    c.SizeProbability,
		"initial mutation probability": c.InitialProbability,
		"mutation rate":                c.MutationRate,
		"noise":                        c.Noise,
	} {
		if p < 0 || p > 1 {
			return invalid("%s must be in [0, 1]: got %g", name, p)
		}
	}
	if c.OutputFrequency <= 0 {
		return invalid("output frequency must be > 0")
	}
	if c.RoundScale < 0 {
		return invalid("round scale must be >= 0")
	}
	if c.Static {
		if len(c.Roster) == 0 {
			return invalid("static mode needs a non-empty roster")
		}
		known := make(map[string]struct{})
		for _, name := range organism.RosterNames() {
			known[name] = struct{}{}
		}
		for _, name := range c.Roster {
			if _, ok := known[strings.ToLower(strings.TrimSpace(name))]; !ok {
				return invalid("unknown roster competitor: %s", name)
			}
		}
	}
	if _, err := genotype.ParseGrowthPolicy(c.GrowthPolicy); err != nil {
		return invalid("%v", err)
	}
	if _, err := genotype.ParseSummaryCoupling(c.SummaryCoupling); err != nil {
		return invalid("%v", err)
	}
	if c.Workers < 1 {
		return invalid("workers must be >= 1")
	}
	return nil
}

func (c Config) VariantValue() (genotype.Variant, error) {
	return genotype.ParseVariant(c.Variant)
}

func (c Config) Limits() genotype.Limits {
	return genotype.Limits{
		MaxMemoryBits:  c.MaxMemoryBits,
		MaxSummaryBits: c.MaxSummaryBits,
		MaxTotalBits:   c.MaxTotalBits,
	}
}

func (c Config) MutationPolicy() (genotype.MutationPolicy, error) {
	growth, err := genotype.ParseGrowthPolicy(c.GrowthPolicy)
	if err != nil {
		return genotype.MutationPolicy{}, err
	}
	coupling, err := genotype.ParseSummaryCoupling(c.SummaryCoupling)
	if err != nil {
		return genotype.MutationPolicy{}, err
	}
	return genotype.MutationPolicy{
		SizeProbability:    c.SizeProbability,
		InitialProbability: c.InitialProbability,
		Growth:             growth,
		Coupling:           coupling,
	}, nil
}

func (c Config) GameConfig() game.Config {
	return game.Config{
		Payoff:           c.Payoff,
		Rounds:           c.Rounds,
		RandomizedRounds: c.RandomizedRounds,
		RoundScale:       c.RoundScale,
		Noise:            c.Noise,
		SelfMemory:       c.SelfMemory,
		CostPerBit:       c.CostPerBit,
		Workers:          c.Workers,
	}
}

// Load reads a config file on top of Default. The decoder is chosen by
// extension; unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("decode %s: unknown key %s", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format: %q", ext)
	}
	return cfg, nil
}

// Write stores cfg as indented JSON.
func Write(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
