package evo

import (
	"errors"
	"fmt"

	"bitevo/internal/genotype"
	"bitevo/internal/random"
)

var ErrLengthMismatch = errors.New("parent chromosome lengths differ")

// Recombiner rewrites two children in place. The returned int is the cut
// point, or -1 when nothing was exchanged.
type Recombiner interface {
	Name() string
	Recombine(rng random.Source, a, b *genotype.Chromosome) (int, error)
}

// Mutator rewrites one child in place and returns the touched index, or -1.
type Mutator interface {
	Name() string
	Mutate(rng random.Source, c *genotype.Chromosome) (int, error)
}

// SinglePointCrossover draws a cut r in [0, length). Genes before r stay,
// genes from r onward are swapped between the two children.
type SinglePointCrossover struct{}

func (SinglePointCrossover) Name() string {
	return "single_point"
}

func (SinglePointCrossover) Recombine(rng random.Source, a, b *genotype.Chromosome) (int, error) {
	if a == nil || b == nil {
		return -1, fmt.Errorf("crossover requires two chromosomes")
	}
	length := a.Len()
	if b.Len() != length {
		return -1, fmt.Errorf("crossover %d vs %d: %w", length, b.Len(), ErrLengthMismatch)
	}
	if length == 0 {
		return -1, nil
	}

	cut := rng.Intn(length)
	childA := make([]uint8, length)
	childB := make([]uint8, length)
	for i := 0; i < length; i++ {
		if i < cut {
			childA[i] = a.Genes[i]
			childB[i] = b.Genes[i]
		} else {
			childA[i] = b.Genes[i]
			childB[i] = a.Genes[i]
		}
	}
	a.SetGenes(childA)
	b.SetGenes(childB)
	return cut, nil
}

// BitFlipMutation flips exactly one uniformly chosen gene.
type BitFlipMutation struct{}

func (BitFlipMutation) Name() string {
	return "bit_flip"
}

func (BitFlipMutation) Mutate(rng random.Source, c *genotype.Chromosome) (int, error) {
	if c == nil {
		return -1, fmt.Errorf("mutation requires a chromosome")
	}
	if c.Len() == 0 {
		return -1, nil
	}

	idx := rng.Intn(c.Len())
	gene, err := c.Gene(idx)
	if err != nil {
		return -1, err
	}
	if err := c.SetGene(idx, 1-gene); err != nil {
		return -1, err
	}
	return idx, nil
}
