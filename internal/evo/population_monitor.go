package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"bitevo/internal/genotype"
	"bitevo/internal/random"
)

const DefaultMaxSelectionRetries = 16

type RunState string

const (
	StateInitializing RunState = "initializing"
	StateEvolving     RunState = "evolving"
	StateConverged    RunState = "converged"
	StateExhausted    RunState = "exhausted"
	StateCancelled    RunState = "cancelled"
)

type MonitorConfig struct {
	PopulationSize   int
	ChromosomeLength int
	CrossoverRate    float64
	MutationRate     float64
	// TargetFitness of zero or below means the chromosome length (all ones).
	TargetFitness int
	// MaxGenerations caps the evolving loop; 0 leaves it unbounded.
	MaxGenerations int
	// MaxSelectionRetries bounds consecutive degenerate parent draws before
	// the driver falls back to a uniform draw.
	MaxSelectionRetries int

	Selector  Selector
	Crossover Recombiner
	Mutation  Mutator
	Evaluator FitnessEvaluator
	Sink      GenerationSink

	Rand   random.Source
	Seed   int64
	Logger *slog.Logger
}

type RunResult struct {
	State                RunState
	Converged            bool
	Generations          int
	TargetFitness        int
	Elapsed              time.Duration
	PerGeneration        time.Duration
	Best                 genotype.Chromosome
	History              []GenerationStats
	FinalPopulation      []genotype.Chromosome
	DegenerateSelections int
	SinkErrors           int
}

// PopulationMonitor drives one generational run. It is not safe for
// concurrent use; run independent monitors for parallel experiments.
type PopulationMonitor struct {
	cfg MonitorConfig
	rng random.Source

	degenerate int
	sinkErrors int
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.ChromosomeLength < 0 {
		return nil, fmt.Errorf("chromosome length must be >= 0")
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return nil, fmt.Errorf("crossover rate must be in [0, 1]")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if cfg.TargetFitness <= 0 {
		cfg.TargetFitness = cfg.ChromosomeLength
	}
	if cfg.TargetFitness > cfg.ChromosomeLength {
		return nil, fmt.Errorf("target fitness %d exceeds chromosome length %d", cfg.TargetFitness, cfg.ChromosomeLength)
	}
	if cfg.MaxGenerations < 0 {
		return nil, fmt.Errorf("max generations must be >= 0")
	}
	if cfg.MaxSelectionRetries <= 0 {
		cfg.MaxSelectionRetries = DefaultMaxSelectionRetries
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{TournamentSize: DefaultTournamentSize}
	}
	if cfg.Crossover == nil {
		cfg.Crossover = SinglePointCrossover{}
	}
	if cfg.Mutation == nil {
		cfg.Mutation = BitFlipMutation{}
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = OneMax{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rng := cfg.Rand
	if rng == nil {
		rng = random.New(cfg.Seed)
	}
	return &PopulationMonitor{cfg: cfg, rng: rng}, nil
}

func (m *PopulationMonitor) Config() MonitorConfig {
	return m.cfg
}

// Run initializes a population and evolves it until the best member reaches
// the target fitness, the generation cap is hit, or ctx is done. On
// cancellation the partial result is returned together with ctx.Err().
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	m.degenerate = 0
	m.sinkErrors = 0
	logger := m.cfg.Logger

	population, err := genotype.InitializePopulation(m.rng, m.cfg.PopulationSize, m.cfg.ChromosomeLength)
	if err != nil {
		return RunResult{State: StateInitializing}, err
	}
	EvaluatePopulation(m.cfg.Evaluator, population)

	generation := 0
	current := SummarizeGeneration(generation, population)
	history := []GenerationStats{current}
	m.emit(current)
	logger.Debug("population initialized",
		"population", m.cfg.PopulationSize,
		"length", m.cfg.ChromosomeLength,
		"best", current.MaxFitness,
		"target", m.cfg.TargetFitness,
	)

	state := StateEvolving
	for current.MaxFitness < m.cfg.TargetFitness {
		if err := ctx.Err(); err != nil {
			return m.result(StateCancelled, start, generation, population, current, history), err
		}
		if m.cfg.MaxGenerations > 0 && generation >= m.cfg.MaxGenerations {
			state = StateExhausted
			break
		}

		next, err := m.nextGeneration(ctx, population)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return m.result(StateCancelled, start, generation, population, current, history), err
			}
			return m.result(StateEvolving, start, generation, population, current, history), err
		}
		population = next
		EvaluatePopulation(m.cfg.Evaluator, population)

		generation++
		current = SummarizeGeneration(generation, population)
		history = append(history, current)
		m.emit(current)
		logger.Debug("generation complete",
			"generation", generation,
			"best", current.MaxFitness,
			"avg", current.AvgFitness,
			"min", current.MinFitness,
		)
	}
	if current.MaxFitness >= m.cfg.TargetFitness {
		state = StateConverged
	}

	result := m.result(state, start, generation, population, current, history)
	logger.Info("run finished",
		"state", string(result.State),
		"generations", result.Generations,
		"best", result.Best.Fitness,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (m *PopulationMonitor) nextGeneration(ctx context.Context, population []genotype.Chromosome) ([]genotype.Chromosome, error) {
	size := m.cfg.PopulationSize
	next := make([]genotype.Chromosome, 0, size+1)
	for len(next) < size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a, b, err := m.selectPair(population)
		if err != nil {
			return nil, err
		}
		if m.rng.Float64() < m.cfg.CrossoverRate {
			if _, err := m.cfg.Crossover.Recombine(m.rng, &a, &b); err != nil {
				return nil, fmt.Errorf("%s crossover: %w", m.cfg.Crossover.Name(), err)
			}
		}
		if m.rng.Float64() < m.cfg.MutationRate {
			if _, err := m.cfg.Mutation.Mutate(m.rng, &a); err != nil {
				return nil, fmt.Errorf("%s mutation: %w", m.cfg.Mutation.Name(), err)
			}
		}
		if m.rng.Float64() < m.cfg.MutationRate {
			if _, err := m.cfg.Mutation.Mutate(m.rng, &b); err != nil {
				return nil, fmt.Errorf("%s mutation: %w", m.cfg.Mutation.Name(), err)
			}
		}
		next = append(next, a, b)
	}
	// Children arrive in pairs; an odd size drops the last second child.
	return next[:size], nil
}

// selectPair draws two parents. A degenerate draw discards the pair and
// retries; once retries run out every member has zero fitness, so a uniform
// draw is used instead.
func (m *PopulationMonitor) selectPair(population []genotype.Chromosome) (genotype.Chromosome, genotype.Chromosome, error) {
	for attempt := 0; attempt < m.cfg.MaxSelectionRetries; attempt++ {
		a, err := m.pickParent(population)
		if err == nil {
			var b genotype.Chromosome
			b, err = m.pickParent(population)
			if err == nil {
				return a, b, nil
			}
		}
		if !errors.Is(err, ErrDegenerateSelection) {
			return genotype.Chromosome{}, genotype.Chromosome{}, fmt.Errorf("%s selection: %w", m.cfg.Selector.Name(), err)
		}
		m.degenerate++
	}

	m.cfg.Logger.Warn("parent selection degenerate, using uniform draw",
		"selector", m.cfg.Selector.Name(),
		"retries", m.cfg.MaxSelectionRetries,
	)
	a, err := uniformPick(m.rng, population)
	if err != nil {
		return genotype.Chromosome{}, genotype.Chromosome{}, err
	}
	b, err := uniformPick(m.rng, population)
	if err != nil {
		return genotype.Chromosome{}, genotype.Chromosome{}, err
	}
	return a, b, nil
}

func (m *PopulationMonitor) pickParent(population []genotype.Chromosome) (genotype.Chromosome, error) {
	parent, err := m.cfg.Selector.PickParent(m.rng, population)
	if err != nil {
		return genotype.Chromosome{}, err
	}
	if parent.Len() != m.cfg.ChromosomeLength {
		return genotype.Chromosome{}, ErrDegenerateSelection
	}
	return parent, nil
}

func (m *PopulationMonitor) emit(stats GenerationStats) {
	if m.cfg.Sink == nil {
		return
	}
	if err := m.cfg.Sink.Record(stats); err != nil {
		m.sinkErrors++
		m.cfg.Logger.Warn("statistics sink write failed", "generation", stats.Generation, "error", err)
	}
}

func (m *PopulationMonitor) result(state RunState, start time.Time, generation int, population []genotype.Chromosome, current GenerationStats, history []GenerationStats) RunResult {
	elapsed := time.Since(start)
	var perGeneration time.Duration
	if generation > 0 {
		perGeneration = elapsed / time.Duration(generation)
	}
	best := genotype.NewChromosome()
	if current.BestIndex >= 0 && current.BestIndex < len(population) {
		best = population[current.BestIndex].Clone()
	}
	return RunResult{
		State:                state,
		Converged:            state == StateConverged,
		Generations:          generation,
		TargetFitness:        m.cfg.TargetFitness,
		Elapsed:              elapsed,
		PerGeneration:        perGeneration,
		Best:                 best,
		History:              history,
		FinalPopulation:      genotype.ClonePopulation(population),
		DegenerateSelections: m.degenerate,
		SinkErrors:           m.sinkErrors,
	}
}
