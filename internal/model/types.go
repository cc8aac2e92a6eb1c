package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persisted summary of one finished (or stopped) run.
type RunRecord struct {
	VersionedRecord
	ID               string    `json:"id"`
	CreatedAtUTC     time.Time `json:"created_at_utc"`
	Seed             int64     `json:"seed"`
	PopulationSize   int       `json:"population_size"`
	ChromosomeLength int       `json:"chromosome_length"`
	CrossoverRate    float64   `json:"crossover_rate"`
	MutationRate     float64   `json:"mutation_rate"`
	Selection        string    `json:"selection"`
	TournamentSize   int       `json:"tournament_size,omitempty"`
	TargetFitness    int       `json:"target_fitness"`
	MaxGenerations   int       `json:"max_generations,omitempty"`

	State                string           `json:"state"`
	Converged            bool             `json:"converged"`
	Generations          int              `json:"generations"`
	ElapsedMillis        int64            `json:"elapsed_ms"`
	DegenerateSelections int              `json:"degenerate_selections,omitempty"`
	Best                 ChromosomeRecord `json:"best"`
}

// ChromosomeRecord stores genes as a "0"/"1" string.
type ChromosomeRecord struct {
	Genes   string `json:"genes"`
	Fitness int    `json:"fitness"`
}

type GenerationStats struct {
	VersionedRecord
	Generation int     `json:"generation"`
	AvgFitness float64 `json:"avg_fitness"`
	MinFitness int     `json:"min_fitness"`
	MaxFitness int     `json:"max_fitness"`
	BestIndex  int     `json:"best_index"`
}
