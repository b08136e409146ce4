package main

import (
	"flag"
	"fmt"
	"strings"

	"memevo/internal/config"
)

// runFlags holds the experiment flags of the run command.
type runFlags struct {
	configPath         *string
	variant            *string
	organisms          *int
	generations        *int
	tournamentSize     *int
	rounds             *int
	temptation         *float64
	reward             *float64
	punishment         *float64
	sucker             *float64
	costPerBit         *float64
	maxMemoryBits      *int
	maxSummaryBits     *int
	maxTotalBits       *int
	sizeProbability    *float64
	initialProbability *float64
	mutationRate       *float64
	outputFrequency    *int
	noise              *float64
	randomizedRounds   *bool
	roundScale         *float64
	selfMemory         *bool
	static             *bool
	roster             *string
	growthPolicy       *string
	summaryCoupling    *string
	workers            *int
	seed               *int64
}

func registerRunFlags(fs *flag.FlagSet, defaultSeed int64) *runFlags {
	d := config.Default()
	return &runFlags{
		configPath:         fs.String("config", "", "optional experiment config (.json, .toml, .yaml)"),
		variant:            fs.String("variant", d.Variant, "genotype variant: simple|hybrid"),
		organisms:          fs.Int("organisms", d.Organisms, "population size"),
		generations:        fs.Int("generations", d.Generations, "generation count"),
		tournamentSize:     fs.Int("tournament-size", d.TournamentSize, "organisms per selection tournament"),
		rounds:             fs.Int("rounds", d.Rounds, "rounds per game (mean when randomized)"),
		temptation:         fs.Float64("temptation", d.Payoff.Temptation, "payout for defecting against a cooperator"),
		reward:             fs.Float64("reward", d.Payoff.Reward, "payout for mutual cooperation"),
		punishment:         fs.Float64("punishment", d.Payoff.Punishment, "payout for mutual defection"),
		sucker:             fs.Float64("sucker", d.Payoff.Sucker, "payout for cooperating against a defector"),
		costPerBit:         fs.Float64("cost-per-bit", d.CostPerBit, "proportional payout cost per bit of memory"),
		maxMemoryBits:      fs.Int("max-memory-bits", d.MaxMemoryBits, "ceiling on bits of specific memory"),
		maxSummaryBits:     fs.Int("max-summary-bits", d.MaxSummaryBits, "ceiling on bits of summary memory (hybrid)"),
		maxTotalBits:       fs.Int("max-total-bits", d.MaxTotalBits, "ceiling on memory+summary bits (0 uses the sum of both ceilings)"),
		sizeProbability:    fs.Float64("p-size", d.SizeProbability, "probability a mutation changes memory size"),
		initialProbability: fs.Float64("p-initial", d.InitialProbability, "probability a mutation flips an initial memory bit"),
		mutationRate:       fs.Float64("mutation-rate", d.MutationRate, "per-organism mutation probability each generation"),
		outputFrequency:    fs.Int("output-frequency", d.OutputFrequency, "generations between detail files"),
		noise:              fs.Float64("noise", d.Noise, "probability one side's move is flipped each round"),
		randomizedRounds:   fs.Bool("randomized-rounds", d.RandomizedRounds, "draw each game's length from a normal distribution"),
		roundScale:         fs.Float64("round-scale", d.RoundScale, "standard deviation of randomized round counts"),
		selfMemory:         fs.Bool("self-memory", d.SelfMemory, "organisms also remember their own moves"),
		static:             fs.Bool("static", d.Static, "score against a fixed roster instead of each other"),
		roster:             fs.String("roster", strings.Join(d.Roster, ","), "comma separated static competitors"),
		growthPolicy:       fs.String("growth-policy", d.GrowthPolicy, "decision table growth: random_fill|duplicate"),
		summaryCoupling:    fs.String("summary-coupling", d.SummaryCoupling, "hybrid size mutation: independent|coupled"),
		workers:            fs.Int("workers", d.Workers, "game worker count"),
		seed:               fs.Int64("seed", defaultSeed, "rng seed"),
	}
}

func (f *runFlags) values() map[string]any {
	return map[string]any{
		"variant":           *f.variant,
		"organisms":         *f.organisms,
		"generations":       *f.generations,
		"tournament-size":   *f.tournamentSize,
		"rounds":            *f.rounds,
		"temptation":        *f.temptation,
		"reward":            *f.reward,
		"punishment":        *f.punishment,
		"sucker":            *f.sucker,
		"cost-per-bit":      *f.costPerBit,
		"max-memory-bits":   *f.maxMemoryBits,
		"max-summary-bits":  *f.maxSummaryBits,
		"max-total-bits":    *f.maxTotalBits,
		"p-size":            *f.sizeProbability,
		"p-initial":         *f.initialProbability,
		"mutation-rate":     *f.mutationRate,
		"output-frequency":  *f.outputFrequency,
		"noise":             *f.noise,
		"randomized-rounds": *f.randomizedRounds,
		"round-scale":       *f.roundScale,
		"self-memory":       *f.selfMemory,
		"static":            *f.static,
		"roster":            *f.roster,
		"growth-policy":     *f.growthPolicy,
		"summary-coupling":  *f.summaryCoupling,
		"workers":           *f.workers,
		"seed":              *f.seed,
	}
}

// experimentConfig resolves the run configuration: the config file when one
// is given, otherwise the defaults, with flags applied on top. Without a
// config file every flag applies; with one only explicitly set flags do.
func (f *runFlags) experimentConfig(set map[string]bool) (config.Config, error) {
	cfg := config.Default()
	values := f.values()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		set = make(map[string]bool, len(values))
		for name := range values {
			set[name] = true
		}
	}
	if err := overrideFromFlags(&cfg, set, values); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func overrideFromFlags(cfg *config.Config, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "variant":
			cfg.Variant = v.(string)
		case "organisms":
			cfg.Organisms = v.(int)
		case "generations":
			cfg.Generations = v.(int)
		case "tournament-size":
			cfg.TournamentSize = v.(int)
		case "rounds":
			cfg.Rounds = v.(int)
		case "temptation":
			cfg.Payoff.Temptation = v.(float64)
		case "reward":
			cfg.Payoff.Reward = v.(float64)
		case "punishment":
			cfg.Payoff.Punishment = v.(float64)
		case "sucker":
			cfg.Payoff.Sucker = v.(float64)
		case "cost-per-bit":
			cfg.CostPerBit = v.(float64)
		case "max-memory-bits":
			cfg.MaxMemoryBits = v.(int)
		case "max-summary-bits":
			cfg.MaxSummaryBits = v.(int)
		case "max-total-bits":
			cfg.MaxTotalBits = v.(int)
		case "p-size":
			cfg.SizeProbability = v.(float64)
		case "p-initial":
			cfg.InitialProbability = v.(float64)
		case "mutation-rate":
			cfg.MutationRate = v.(float64)
		case "output-frequency":
			cfg.OutputFrequency = v.(int)
		case "noise":
			cfg.Noise = v.(float64)
		case "randomized-rounds":
			cfg.RandomizedRounds = v.(bool)
		case "round-scale":
			cfg.RoundScale = v.(float64)
		case "self-memory":
			cfg.SelfMemory = v.(bool)
		case "static":
			cfg.Static = v.(bool)
		case "roster":
			roster, err := parseRoster(v.(string))
			if err != nil {
				return err
			}
			cfg.Roster = roster
		case "growth-policy":
			cfg.GrowthPolicy = v.(string)
		case "summary-coupling":
			cfg.SummaryCoupling = v.(string)
		case "workers":
			cfg.Workers = v.(int)
		case "seed":
			cfg.Seed = v.(int64)
		}
	}
	return nil
}

func parseRoster(raw string) ([]string, error) {
	names := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("roster must name at least one competitor")
	}
	return names, nil
}
