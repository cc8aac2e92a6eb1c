package genotype

import (
	"fmt"

	"bitevo/internal/random"
)

// InitializePopulation draws popSize chromosomes of the given length, each
// gene an independent fair coin, and evaluates their fitness.
func InitializePopulation(rng random.Source, popSize, length int) ([]Chromosome, error) {
	if popSize < 0 {
		return nil, fmt.Errorf("population size must be >= 0, got %d", popSize)
	}
	if length < 0 {
		return nil, fmt.Errorf("chromosome length must be >= 0, got %d", length)
	}
	rng = random.Ensure(rng)

	population := make([]Chromosome, 0, popSize)
	for i := 0; i < popSize; i++ {
		genes := make([]uint8, length)
		for j := range genes {
			genes[j] = uint8(rng.Intn(2))
		}
		c := NewChromosome()
		c.SetGenes(genes)
		c.EvaluateFitness()
		population = append(population, c)
	}
	return population, nil
}

// ClonePopulation deep-copies every member.
func ClonePopulation(population []Chromosome) []Chromosome {
	out := make([]Chromosome, len(population))
	for i := range population {
		out[i] = population[i].Clone()
	}
	return out
}
