package evo

import "bitevo/internal/genotype"

// FitnessEvaluator recomputes a chromosome's cached fitness from its genes.
type FitnessEvaluator interface {
	Name() string
	Evaluate(c *genotype.Chromosome)
}

// OneMax scores a chromosome by its count of set bits.
type OneMax struct{}

func (OneMax) Name() string {
	return "onemax"
}

func (OneMax) Evaluate(c *genotype.Chromosome) {
	c.EvaluateFitness()
}

// EvaluatePopulation re-evaluates every member in place.
func EvaluatePopulation(evaluator FitnessEvaluator, population []genotype.Chromosome) {
	for i := range population {
		evaluator.Evaluate(&population[i])
	}
}
