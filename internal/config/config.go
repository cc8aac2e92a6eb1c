package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"bitevo/internal/evo"
)

const (
	DefaultPopulationSize   = 100
	DefaultChromosomeLength = 100
	DefaultCrossoverRate    = 0.5
	DefaultMutationRate     = 0.01
	DefaultSelection        = "tournament"
	DefaultOutputDir        = "benchmarks"
)

// RunConfig holds every knob of one run. It is immutable once the run starts.
type RunConfig struct {
	PopulationSize   int     `json:"population_size" toml:"population_size" yaml:"population_size"`
	ChromosomeLength int     `json:"chromosome_length" toml:"chromosome_length" yaml:"chromosome_length"`
	CrossoverRate    float64 `json:"crossover_rate" toml:"crossover_rate" yaml:"crossover_rate"`
	MutationRate     float64 `json:"mutation_rate" toml:"mutation_rate" yaml:"mutation_rate"`
	Selection        string  `json:"selection" toml:"selection" yaml:"selection"`
	TournamentSize   int     `json:"tournament_size" toml:"tournament_size" yaml:"tournament_size"`
	// TargetFitness of 0 means the chromosome length.
	TargetFitness  int   `json:"target_fitness" toml:"target_fitness" yaml:"target_fitness"`
	MaxGenerations int   `json:"max_generations" toml:"max_generations" yaml:"max_generations"`
	Seed           int64 `json:"seed" toml:"seed" yaml:"seed"`

	LogEvery   int    `json:"log_every" toml:"log_every" yaml:"log_every"`
	PrintEvery int    `json:"print_every" toml:"print_every" yaml:"print_every"`
	CSVDir     string `json:"csv_dir" toml:"csv_dir" yaml:"csv_dir"`
	DisableCSV bool   `json:"disable_csv" toml:"disable_csv" yaml:"disable_csv"`
	OutputDir  string `json:"output_dir" toml:"output_dir" yaml:"output_dir"`

	Store  string `json:"store" toml:"store" yaml:"store"`
	DBPath string `json:"db_path" toml:"db_path" yaml:"db_path"`
}

// Error reports one invalid configuration field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func Default() RunConfig {
	return RunConfig{
		PopulationSize:   DefaultPopulationSize,
		ChromosomeLength: DefaultChromosomeLength,
		CrossoverRate:    DefaultCrossoverRate,
		MutationRate:     DefaultMutationRate,
		Selection:        DefaultSelection,
		TournamentSize:   evo.DefaultTournamentSize,
		LogEvery:         1,
		PrintEvery:       1,
		CSVDir:           ".",
		OutputDir:        DefaultOutputDir,
		DBPath:           "bitevo.db",
	}
}

// Load reads a TOML, YAML or JSON file over the defaults. Unknown keys are
// rejected so a typo cannot silently fall back to a default.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return RunConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return RunConfig{}, fmt.Errorf("parse config %s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return RunConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return RunConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return RunConfig{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// Validate checks every field and returns a *Error for the first bad one.
func (c RunConfig) Validate() error {
	if c.PopulationSize <= 0 {
		return &Error{Field: "population_size", Reason: "must be > 0"}
	}
	if c.ChromosomeLength < 0 {
		return &Error{Field: "chromosome_length", Reason: "must be >= 0"}
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		return &Error{Field: "crossover_rate", Reason: "must be in [0, 1]"}
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return &Error{Field: "mutation_rate", Reason: "must be in [0, 1]"}
	}
	if _, err := evo.SelectorFromName(c.Selection, c.TournamentSize); err != nil {
		return &Error{Field: "selection", Reason: fmt.Sprintf("unknown strategy %q", c.Selection)}
	}
	if c.TournamentSize < 0 {
		return &Error{Field: "tournament_size", Reason: "must be >= 0"}
	}
	if c.TargetFitness < 0 || c.TargetFitness > c.ChromosomeLength {
		return &Error{Field: "target_fitness", Reason: fmt.Sprintf("must be in [0, %d]", c.ChromosomeLength)}
	}
	if c.MaxGenerations < 0 {
		return &Error{Field: "max_generations", Reason: "must be >= 0"}
	}
	if c.LogEvery <= 0 {
		return &Error{Field: "log_every", Reason: "must be > 0"}
	}
	if c.PrintEvery <= 0 {
		return &Error{Field: "print_every", Reason: "must be > 0"}
	}
	return nil
}

// ResolvedTarget is the fitness a run must reach to converge.
func (c RunConfig) ResolvedTarget() int {
	if c.TargetFitness <= 0 {
		return c.ChromosomeLength
	}
	return c.TargetFitness
}

// Selector builds the configured selection strategy.
func (c RunConfig) Selector() (evo.Selector, error) {
	selector, err := evo.SelectorFromName(c.Selection, c.TournamentSize)
	if err != nil {
		return nil, &Error{Field: "selection", Reason: err.Error()}
	}
	return selector, nil
}
