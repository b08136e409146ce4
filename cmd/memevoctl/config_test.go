package main

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"memevo/internal/config"
)

func parseRunFlags(t *testing.T, args []string) (*runFlags, map[string]bool) {
	t.Helper()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	rf := registerRunFlags(fs, 99)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return rf, set
}

func TestExperimentConfigWithoutFileUsesAllFlags(t *testing.T) {
	rf, set := parseRunFlags(t, []string{"--organisms", "12", "--variant", "hybrid", "--static", "--roster", "all_cooperate, tit_for_two_tats"})
	cfg, err := rf.experimentConfig(set)
	if err != nil {
		t.Fatalf("experiment config: %v", err)
	}

	want := config.Default()
	want.Organisms = 12
	want.Variant = "hybrid"
	want.Static = true
	want.Roster = []string{"all_cooperate", "tit_for_two_tats"}
	want.Seed = 99
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("unexpected config:\n got=%+v\nwant=%+v", cfg, want)
	}
}

func TestExperimentConfigFileWithExplicitOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	body := "organisms: 30\ngenerations: 40\ncost_per_bit: 0.02\nseed: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	rf, set := parseRunFlags(t, []string{"--config", path, "--generations", "7", "--noise", "0.1"})
	cfg, err := rf.experimentConfig(set)
	if err != nil {
		t.Fatalf("experiment config: %v", err)
	}
	if cfg.Organisms != 30 || cfg.CostPerBit != 0.02 || cfg.Seed != 5 {
		t.Fatalf("config file values lost: %+v", cfg)
	}
	if cfg.Generations != 7 || cfg.Noise != 0.1 {
		t.Fatalf("explicit flags not applied: %+v", cfg)
	}
	if cfg.Rounds != config.Default().Rounds {
		t.Fatalf("unset flag overrode config default: rounds=%d", cfg.Rounds)
	}
}

func TestExperimentConfigReportsLoadErrors(t *testing.T) {
	rf, set := parseRunFlags(t, []string{"--config", filepath.Join(t.TempDir(), "missing.json")})
	if _, err := rf.experimentConfig(set); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestOverrideFromFlagsPayoff(t *testing.T) {
	cfg := config.Default()
	err := overrideFromFlags(&cfg, map[string]bool{"temptation": true, "sucker": true, "unknown": true}, map[string]any{
		"temptation": 7.0,
		"sucker":     -1.0,
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if cfg.Payoff.Temptation != 7 || cfg.Payoff.Sucker != -1 || cfg.Payoff.Reward != 3 {
		t.Fatalf("unexpected payoff: %+v", cfg.Payoff)
	}
}

func TestParseRoster(t *testing.T) {
	names, err := parseRoster(" all_defect ,, random ")
	if err != nil {
		t.Fatalf("parse roster: %v", err)
	}
	if want := []string{"all_defect", "random"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected roster: got=%v want=%v", names, want)
	}
	if _, err := parseRoster(" , "); err == nil {
		t.Fatal("expected error for empty roster")
	}
}
