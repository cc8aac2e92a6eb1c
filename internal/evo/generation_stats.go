package evo

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"bitevo/internal/genotype"
)

// GenerationStats summarizes one population snapshot.
type GenerationStats struct {
	Generation int     `json:"generation"`
	AvgFitness float64 `json:"avg_fitness"`
	MinFitness int     `json:"min_fitness"`
	MaxFitness int     `json:"max_fitness"`
	BestIndex  int     `json:"best_index"`
}

// SummarizeGeneration computes average, min and max fitness. The best index
// is the first member holding the maximum, in population order.
func SummarizeGeneration(generation int, population []genotype.Chromosome) GenerationStats {
	if len(population) == 0 {
		return GenerationStats{Generation: generation, BestIndex: -1}
	}

	fitness := make([]float64, len(population))
	minFitness := population[0].Fitness
	best := 0
	for i, c := range population {
		fitness[i] = float64(c.Fitness)
		if c.Fitness < minFitness {
			minFitness = c.Fitness
		}
		if c.Fitness > population[best].Fitness {
			best = i
		}
	}

	return GenerationStats{
		Generation: generation,
		AvgFitness: stat.Mean(fitness, nil),
		MinFitness: minFitness,
		MaxFitness: population[best].Fitness,
		BestIndex:  best,
	}
}

// GenerationSink receives statistics once per generation.
type GenerationSink interface {
	Record(stats GenerationStats) error
}

type SinkFunc func(stats GenerationStats) error

func (f SinkFunc) Record(stats GenerationStats) error {
	return f(stats)
}

// MultiSink forwards to every sink and joins their errors. One failing sink
// does not stop the others.
type MultiSink []GenerationSink

func (m MultiSink) Record(stats GenerationStats) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
