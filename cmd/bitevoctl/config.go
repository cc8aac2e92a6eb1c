package main

import (
	"flag"

	"bitevo/internal/config"
	"bitevo/internal/storage"
)

type runFlags struct {
	configPath     *string
	population     *int
	length         *int
	crossover      *float64
	mutation       *float64
	selection      *string
	tournamentSize *int
	target         *int
	maxGenerations *int
	seed           *int64
	logEvery       *int
	printEvery     *int
	csvDir         *string
	noCSV          *bool
	outputDir      *string
	store          *string
	dbPath         *string
}

func registerRunFlags(fs *flag.FlagSet) runFlags {
	defaults := config.Default()
	return runFlags{
		configPath:     fs.String("config", "", "run config file (.toml, .yaml, .yml, .json)"),
		population:     fs.Int("pop", defaults.PopulationSize, "population size"),
		length:         fs.Int("len", defaults.ChromosomeLength, "chromosome length"),
		crossover:      fs.Float64("crossover", defaults.CrossoverRate, "crossover rate in [0,1]"),
		mutation:       fs.Float64("mutation", defaults.MutationRate, "mutation rate in [0,1]"),
		selection:      fs.String("selection", defaults.Selection, "selection strategy: tournament|proportional|roulette"),
		tournamentSize: fs.Int("tournament-size", defaults.TournamentSize, "tournament size"),
		target:         fs.Int("target", defaults.TargetFitness, "target fitness (0 = chromosome length)"),
		maxGenerations: fs.Int("max-gens", defaults.MaxGenerations, "generation cap (0 = unbounded)"),
		seed:           fs.Int64("seed", defaults.Seed, "random seed (0 = time based)"),
		logEvery:       fs.Int("log-every", defaults.LogEvery, "write CSV statistics every N generations"),
		printEvery:     fs.Int("print-every", defaults.PrintEvery, "print progress every N generations"),
		csvDir:         fs.String("csv-dir", defaults.CSVDir, "directory for stats_<timestamp>.csv"),
		noCSV:          fs.Bool("no-csv", defaults.DisableCSV, "disable CSV statistics"),
		outputDir:      fs.String("out-dir", defaults.OutputDir, "run artifacts directory"),
		store:          fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:         fs.String("db-path", defaults.DBPath, "sqlite database path"),
	}
}

// resolveRunConfig starts from the defaults or the --config file and applies
// only the flags set explicitly on the command line.
func resolveRunConfig(fs *flag.FlagSet, flags runFlags) (config.RunConfig, error) {
	cfg := config.Default()
	cfg.Store = storage.DefaultStoreKind()
	if *flags.configPath != "" {
		loaded, err := config.Load(*flags.configPath)
		if err != nil {
			return config.RunConfig{}, err
		}
		if loaded.Store == "" {
			loaded.Store = cfg.Store
		}
		cfg = loaded
	}

	overrides := map[string]func(){
		"pop":             func() { cfg.PopulationSize = *flags.population },
		"len":             func() { cfg.ChromosomeLength = *flags.length },
		"crossover":       func() { cfg.CrossoverRate = *flags.crossover },
		"mutation":        func() { cfg.MutationRate = *flags.mutation },
		"selection":       func() { cfg.Selection = *flags.selection },
		"tournament-size": func() { cfg.TournamentSize = *flags.tournamentSize },
		"target":          func() { cfg.TargetFitness = *flags.target },
		"max-gens":        func() { cfg.MaxGenerations = *flags.maxGenerations },
		"seed":            func() { cfg.Seed = *flags.seed },
		"log-every":       func() { cfg.LogEvery = *flags.logEvery },
		"print-every":     func() { cfg.PrintEvery = *flags.printEvery },
		"csv-dir":         func() { cfg.CSVDir = *flags.csvDir },
		"no-csv":          func() { cfg.DisableCSV = *flags.noCSV },
		"out-dir":         func() { cfg.OutputDir = *flags.outputDir },
		"store":           func() { cfg.Store = *flags.store },
		"db-path":         func() { cfg.DBPath = *flags.dbPath },
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return cfg, nil
}
