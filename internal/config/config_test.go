package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.PopulationSize != 100 || cfg.ChromosomeLength != 100 || cfg.CrossoverRate != 0.5 || cfg.MutationRate != 0.01 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Selection != "tournament" || cfg.TournamentSize != 5 {
		t.Fatalf("unexpected selection defaults %+v", cfg)
	}
	if cfg.ResolvedTarget() != 100 {
		t.Fatalf("expected target to resolve to length, got %d", cfg.ResolvedTarget())
	}
}

func TestLoadFormats(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name: "run.toml",
			content: `population_size = 20
chromosome_length = 10
mutation_rate = 0.0
selection = "proportional"
seed = 42
`,
		},
		{
			name: "run.yaml",
			content: `population_size: 20
chromosome_length: 10
mutation_rate: 0.0
selection: proportional
seed: 42
`,
		},
		{
			name:    "run.json",
			content: `{"population_size": 20, "chromosome_length": 10, "mutation_rate": 0.0, "selection": "proportional", "seed": 42}`,
		},
	}
	for _, tc := range cases {
		cfg, err := Load(writeFile(t, tc.name, tc.content))
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		if cfg.PopulationSize != 20 || cfg.ChromosomeLength != 10 || cfg.MutationRate != 0 || cfg.Selection != "proportional" || cfg.Seed != 42 {
			t.Fatalf("%s: unexpected config %+v", tc.name, cfg)
		}
		if cfg.CrossoverRate != DefaultCrossoverRate || cfg.LogEvery != 1 {
			t.Fatalf("%s: defaults not preserved %+v", tc.name, cfg)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s: validate: %v", tc.name, err)
		}
	}
}

func TestLoadRejectsUnknownKeysAndFormats(t *testing.T) {
	for name, content := range map[string]string{
		"bad.toml": "populaton_size = 20\n",
		"bad.yaml": "populaton_size: 20\n",
		"bad.json": `{"populaton_size": 20}`,
	} {
		if _, err := Load(writeFile(t, name, content)); err == nil {
			t.Fatalf("%s: expected unknown key error", name)
		}
	}
	if _, err := Load(writeFile(t, "run.ini", "x=1")); err == nil {
		t.Fatal("expected unsupported format error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestValidateReportsField(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*RunConfig)
	}{
		{"population_size", func(c *RunConfig) { c.PopulationSize = 0 }},
		{"chromosome_length", func(c *RunConfig) { c.ChromosomeLength = -1 }},
		{"crossover_rate", func(c *RunConfig) { c.CrossoverRate = 1.01 }},
		{"mutation_rate", func(c *RunConfig) { c.MutationRate = -0.5 }},
		{"selection", func(c *RunConfig) { c.Selection = "elitist" }},
		{"tournament_size", func(c *RunConfig) { c.TournamentSize = -2 }},
		{"target_fitness", func(c *RunConfig) { c.TargetFitness = c.ChromosomeLength + 1 }},
		{"max_generations", func(c *RunConfig) { c.MaxGenerations = -1 }},
		{"log_every", func(c *RunConfig) { c.LogEvery = 0 }},
		{"print_every", func(c *RunConfig) { c.PrintEvery = 0 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		err := cfg.Validate()
		var cfgErr *Error
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected *Error, got %v", tc.field, err)
		}
		if cfgErr.Field != tc.field {
			t.Fatalf("expected field %s, got %s", tc.field, cfgErr.Field)
		}
	}
}

func TestSelectorFromConfig(t *testing.T) {
	cfg := Default()
	cfg.Selection = "roulette"
	selector, err := cfg.Selector()
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	if selector.Name() != "proportional" {
		t.Fatalf("expected proportional, got %s", selector.Name())
	}

	cfg.TargetFitness = 30
	if cfg.ResolvedTarget() != 30 {
		t.Fatalf("expected explicit target, got %d", cfg.ResolvedTarget())
	}
}
