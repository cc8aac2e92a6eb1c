package evo

import (
	"context"
	"errors"
	"testing"

	"bitevo/internal/genotype"
	"bitevo/internal/random"
)

func TestNewPopulationMonitorValidation(t *testing.T) {
	cases := []MonitorConfig{
		{PopulationSize: 0, ChromosomeLength: 4},
		{PopulationSize: 2, ChromosomeLength: -1},
		{PopulationSize: 2, ChromosomeLength: 4, CrossoverRate: 1.5},
		{PopulationSize: 2, ChromosomeLength: 4, MutationRate: -0.1},
		{PopulationSize: 2, ChromosomeLength: 4, TargetFitness: 5},
		{PopulationSize: 2, ChromosomeLength: 4, TargetFitness: -1, MaxGenerations: -1},
	}
	for i, cfg := range cases {
		if _, err := NewPopulationMonitor(cfg); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}

func TestNewPopulationMonitorDefaults(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{PopulationSize: 4, ChromosomeLength: 8, TargetFitness: -1})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	cfg := monitor.Config()
	if cfg.TargetFitness != 8 {
		t.Fatalf("expected target to default to length, got %d", cfg.TargetFitness)
	}
	if cfg.MaxSelectionRetries != DefaultMaxSelectionRetries {
		t.Fatalf("unexpected retries %d", cfg.MaxSelectionRetries)
	}
	if cfg.Selector.Name() != "tournament" || cfg.Crossover.Name() != "single_point" || cfg.Mutation.Name() != "bit_flip" || cfg.Evaluator.Name() != "onemax" {
		t.Fatalf("unexpected default operators %+v", cfg)
	}
}

func TestNewPopulationMonitorZeroTargetMeansLength(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{PopulationSize: 4, ChromosomeLength: 32, Seed: 1, MaxGenerations: 1})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if got := monitor.Config().TargetFitness; got != 32 {
		t.Fatalf("expected target 32, got %d", got)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TargetFitness != 32 {
		t.Fatalf("expected result target 32, got %d", result.TargetFitness)
	}
	if result.Converged && result.Best.Fitness != 32 {
		t.Fatalf("converged with best %d below length", result.Best.Fitness)
	}
}

func TestPopulationMonitorScriptedGeneration(t *testing.T) {
	rng := &random.Sequence{
		Ints: []int{
			1, 0, 0, 0, // member 0 = 1000
			0, 0, 1, 0, // member 1 = 0010
			0, 1, // tournament: tie, first sampled wins
			1, 0, // tournament: tie, first sampled wins
			2,    // crossover cut
			1, 3, // mutation indices
		},
		Floats: []float64{0.1, 0.2, 0.3},
	}
	var recorded []GenerationStats
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   2,
		ChromosomeLength: 4,
		CrossoverRate:    1,
		MutationRate:     1,
		TargetFitness:    -1,
		MaxGenerations:   1,
		Selector:         TournamentSelector{TournamentSize: 2},
		Rand:             rng,
		Sink: SinkFunc(func(stats GenerationStats) error {
			recorded = append(recorded, stats)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}

	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != StateExhausted || result.Converged {
		t.Fatalf("expected exhausted run, got %s", result.State)
	}
	if result.Generations != 1 || len(result.History) != 2 || len(recorded) != 2 {
		t.Fatalf("unexpected generation bookkeeping: gens=%d history=%d recorded=%d", result.Generations, len(result.History), len(recorded))
	}
	if got := result.FinalPopulation[0].String() + " " + result.FinalPopulation[1].String(); got != "1110 0001" {
		t.Fatalf("unexpected final population %s", got)
	}
	last := result.History[1]
	if last.AvgFitness != 2 || last.MinFitness != 1 || last.MaxFitness != 3 || last.BestIndex != 0 {
		t.Fatalf("unexpected generation stats %+v", last)
	}
	if result.Best.String() != "1110" || result.Best.Fitness != 3 {
		t.Fatalf("unexpected best %s (%d)", result.Best.String(), result.Best.Fitness)
	}
	if ints, floats := rng.Remaining(); ints != 0 || floats != 0 {
		t.Fatalf("expected every scripted draw consumed, left ints=%d floats=%d", ints, floats)
	}
}

func TestPopulationMonitorDegenerateSelectionFallsBackToUniform(t *testing.T) {
	rng := &random.Sequence{
		Ints:   []int{0, 0, 0, 0, 0, 1, 0, 1},
		Floats: []float64{0.5, 0.0, 0.0},
	}
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:      2,
		ChromosomeLength:    2,
		CrossoverRate:       0,
		MutationRate:        1,
		TargetFitness:       -1,
		MaxGenerations:      1,
		MaxSelectionRetries: 2,
		Selector:            ProportionalSelector{},
		Rand:                rng,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}

	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.DegenerateSelections != 2 {
		t.Fatalf("expected 2 degenerate selections, got %d", result.DegenerateSelections)
	}
	if got := result.FinalPopulation[0].String() + " " + result.FinalPopulation[1].String(); got != "10 01" {
		t.Fatalf("unexpected final population %s", got)
	}
	if result.State != StateExhausted {
		t.Fatalf("expected exhausted, got %s", result.State)
	}
}

func TestPopulationMonitorZeroLengthConvergesImmediately(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   5,
		ChromosomeLength: 0,
		TargetFitness:    -1,
		Rand:             &random.Sequence{},
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Converged || result.Generations != 0 || len(result.History) != 1 {
		t.Fatalf("expected convergence at generation 0, got %+v", result)
	}
	if len(result.FinalPopulation) != 5 {
		t.Fatalf("expected 5 members, got %d", len(result.FinalPopulation))
	}
}

func TestPopulationMonitorTournamentNoMutation(t *testing.T) {
	converged := 0
	for seed := int64(1); seed <= 20; seed++ {
		monitor, err := NewPopulationMonitor(MonitorConfig{
			PopulationSize:   20,
			ChromosomeLength: 10,
			CrossoverRate:    1,
			MutationRate:     0,
			TargetFitness:    -1,
			MaxGenerations:   200,
			Selector:         TournamentSelector{TournamentSize: 5},
			Seed:             seed,
		})
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		result, err := monitor.Run(context.Background())
		if err != nil {
			t.Fatalf("seed %d: run: %v", seed, err)
		}
		switch result.State {
		case StateConverged:
			converged++
			if result.Best.String() != "1111111111" {
				t.Fatalf("seed %d: converged best is %s", seed, result.Best.String())
			}
		case StateExhausted:
			if result.Generations != 200 {
				t.Fatalf("seed %d: exhausted after %d generations", seed, result.Generations)
			}
		default:
			t.Fatalf("seed %d: unexpected state %s", seed, result.State)
		}
	}
	if converged == 0 {
		t.Fatal("expected at least one seed to converge")
	}
}

func TestPopulationMonitorStatisticsInvariants(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   30,
		ChromosomeLength: 16,
		CrossoverRate:    0.7,
		MutationRate:     0.2,
		TargetFitness:    -1,
		MaxGenerations:   1000,
		Seed:             42,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Converged {
		t.Fatalf("expected convergence, got %s after %d generations", result.State, result.Generations)
	}
	for i, stats := range result.History {
		if stats.Generation != i {
			t.Fatalf("history out of order at %d: %d", i, stats.Generation)
		}
		if float64(stats.MinFitness) > stats.AvgFitness || stats.AvgFitness > float64(stats.MaxFitness) {
			t.Fatalf("generation %d violates min <= avg <= max: %+v", i, stats)
		}
		if stats.MaxFitness > 16 || stats.MinFitness < 0 {
			t.Fatalf("generation %d fitness out of range: %+v", i, stats)
		}
	}
	last := result.History[len(result.History)-1]
	if last.MaxFitness != 16 || result.Best.Fitness != 16 {
		t.Fatalf("expected final best of 16, got %+v", last)
	}
	for _, c := range result.FinalPopulation {
		if c.Len() != 16 {
			t.Fatalf("unexpected chromosome length %d", c.Len())
		}
	}
}

func TestPopulationMonitorProportionalConverges(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   20,
		ChromosomeLength: 12,
		CrossoverRate:    0.7,
		MutationRate:     0.3,
		TargetFitness:    -1,
		MaxGenerations:   5000,
		Selector:         ProportionalSelector{},
		Seed:             7,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Converged || result.Best.String() != "111111111111" {
		t.Fatalf("expected convergence, got %s best=%s", result.State, result.Best.String())
	}
}

func TestPopulationMonitorOddPopulationKeepsSize(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   7,
		ChromosomeLength: 12,
		CrossoverRate:    0.5,
		MutationRate:     0.5,
		TargetFitness:    -1,
		MaxGenerations:   5,
		Seed:             3,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.FinalPopulation) != 7 {
		t.Fatalf("expected population of 7, got %d", len(result.FinalPopulation))
	}
}

func TestPopulationMonitorSinkFailureDoesNotAbort(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   10,
		ChromosomeLength: 8,
		CrossoverRate:    0.7,
		MutationRate:     0.3,
		TargetFitness:    -1,
		MaxGenerations:   2000,
		Seed:             11,
		Sink: SinkFunc(func(GenerationStats) error {
			return errors.New("disk full")
		}),
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.SinkErrors != len(result.History) {
		t.Fatalf("expected one sink error per generation, got %d for %d", result.SinkErrors, len(result.History))
	}
}

func TestPopulationMonitorCancelledContext(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   4,
		ChromosomeLength: 64,
		TargetFitness:    -1,
		Seed:             1,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := monitor.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.State != StateCancelled || result.Generations != 0 || len(result.History) != 1 {
		t.Fatalf("unexpected cancelled result %+v", result.State)
	}
}

// hammingCheck wraps a mutator and records the distance between each child
// before and after mutation.
type hammingCheck struct {
	inner     Mutator
	distances []int
}

func (h *hammingCheck) Name() string {
	return h.inner.Name()
}

func (h *hammingCheck) Mutate(rng random.Source, c *genotype.Chromosome) (int, error) {
	before := c.Clone()
	idx, err := h.inner.Mutate(rng, c)
	if err != nil {
		return idx, err
	}
	diff := 0
	for i := range c.Genes {
		if c.Genes[i] != before.Genes[i] {
			diff++
		}
	}
	h.distances = append(h.distances, diff)
	return idx, nil
}

func TestPopulationMonitorMutationOnlyScripted(t *testing.T) {
	rng := &random.Sequence{
		Ints: []int{
			1, 0, 0, 0, // member 0 = 1000
			0, 0, 1, 0, // member 1 = 0010
			1, 1, 1, 1, 1, // tournament of 5 picks member 1
			0, 0, 0, 0, 0, // tournament of 5 picks member 0
			0, // flip gene 0 of 0010
			3, // flip gene 3 of 1000
		},
		Floats: []float64{0.5, 0.0, 0.0},
	}
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   2,
		ChromosomeLength: 4,
		CrossoverRate:    0,
		MutationRate:     1,
		MaxGenerations:   1,
		Rand:             rng,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := result.FinalPopulation[0].String() + " " + result.FinalPopulation[1].String(); got != "1010 1001" {
		t.Fatalf("unexpected final population %s", got)
	}
	last := result.History[1]
	if last.MinFitness != 2 || last.MaxFitness != 2 || last.AvgFitness != 2 {
		t.Fatalf("unexpected generation stats %+v", last)
	}
	if result.State != StateExhausted {
		t.Fatalf("expected exhausted, got %s", result.State)
	}
	if ints, floats := rng.Remaining(); ints != 0 || floats != 0 {
		t.Fatalf("expected every scripted draw consumed, left ints=%d floats=%d", ints, floats)
	}
}

func TestPopulationMonitorMutationOnlyTournament(t *testing.T) {
	check := &hammingCheck{inner: BitFlipMutation{}}
	monitor, err := NewPopulationMonitor(MonitorConfig{
		PopulationSize:   2,
		ChromosomeLength: 8,
		CrossoverRate:    0,
		MutationRate:     1,
		MaxGenerations:   5000,
		Mutation:         check,
		Seed:             5,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(check.distances) != 2*result.Generations {
		t.Fatalf("expected %d mutations, got %d", 2*result.Generations, len(check.distances))
	}
	for i, d := range check.distances {
		if d != 1 {
			t.Fatalf("mutation %d changed %d genes", i, d)
		}
	}
	for i, stats := range result.History {
		if float64(stats.MinFitness) > stats.AvgFitness || stats.AvgFitness > float64(stats.MaxFitness) {
			t.Fatalf("generation %d violates min <= avg <= max: %+v", i, stats)
		}
	}
	if result.State != StateConverged && result.State != StateExhausted {
		t.Fatalf("unexpected state %s", result.State)
	}
}
