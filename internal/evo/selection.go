package evo

import (
	"errors"
	"fmt"

	"bitevo/internal/genotype"
	"bitevo/internal/random"
)

const DefaultTournamentSize = 5

var (
	ErrEmptyPopulation = errors.New("population is empty")
	// ErrDegenerateSelection reports a proportional draw over a population
	// whose total fitness is zero. The returned chromosome is empty.
	ErrDegenerateSelection = errors.New("degenerate selection: total fitness is zero")
)

// Selector chooses one parent from the current population. Implementations
// never modify the population and always return a clone.
type Selector interface {
	Name() string
	PickParent(rng random.Source, population []genotype.Chromosome) (genotype.Chromosome, error)
}

// TournamentSelector samples TournamentSize members with replacement and
// returns the fittest. Ties go to the member sampled first.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng random.Source, population []genotype.Chromosome) (genotype.Chromosome, error) {
	if rng == nil {
		return genotype.Chromosome{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return genotype.Chromosome{}, ErrEmptyPopulation
	}
	size := s.TournamentSize
	if size <= 0 {
		size = DefaultTournamentSize
	}

	best := rng.Intn(len(population))
	for i := 1; i < size; i++ {
		candidate := rng.Intn(len(population))
		if population[candidate].Fitness > population[best].Fitness {
			best = candidate
		}
	}
	return population[best].Clone(), nil
}

// ProportionalSelector is roulette-wheel selection: each member is chosen
// with probability proportional to its share of the total fitness.
type ProportionalSelector struct{}

func (ProportionalSelector) Name() string {
	return "proportional"
}

func (ProportionalSelector) PickParent(rng random.Source, population []genotype.Chromosome) (genotype.Chromosome, error) {
	if rng == nil {
		return genotype.Chromosome{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return genotype.Chromosome{}, ErrEmptyPopulation
	}

	total := 0
	for _, c := range population {
		total += c.Fitness
	}
	if total <= 0 {
		return genotype.NewChromosome(), ErrDegenerateSelection
	}

	// Tickets run 1..total, so each member owns exactly Fitness of them.
	ticket := rng.Intn(total) + 1
	acc := 0
	for i := range population {
		acc += population[i].Fitness
		if acc >= ticket {
			return population[i].Clone(), nil
		}
	}
	return population[len(population)-1].Clone(), nil
}

// uniformPick is the limit of proportional selection when every member has
// the same fitness.
func uniformPick(rng random.Source, population []genotype.Chromosome) (genotype.Chromosome, error) {
	if len(population) == 0 {
		return genotype.Chromosome{}, ErrEmptyPopulation
	}
	return population[rng.Intn(len(population))].Clone(), nil
}
