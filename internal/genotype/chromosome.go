package genotype

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGeneIndex = errors.New("gene index out of range")
	ErrGeneValue = errors.New("gene value must be 0 or 1")
)

// Chromosome is a fixed-length bit string with a cached fitness. Fitness is
// only refreshed by EvaluateFitness; every gene write leaves it stale.
type Chromosome struct {
	Genes   []uint8 `json:"genes"`
	Fitness int     `json:"fitness"`
}

func NewChromosome() Chromosome {
	return Chromosome{Genes: []uint8{}}
}

// ParseChromosome reads a string of '0' and '1' runes and evaluates fitness.
func ParseChromosome(s string) (Chromosome, error) {
	genes := make([]uint8, 0, len(s))
	for i, r := range s {
		switch r {
		case '0':
			genes = append(genes, 0)
		case '1':
			genes = append(genes, 1)
		default:
			return Chromosome{}, fmt.Errorf("parse chromosome at %d (%q): %w", i, r, ErrGeneValue)
		}
	}
	c := Chromosome{Genes: genes}
	c.EvaluateFitness()
	return c, nil
}

func (c *Chromosome) Len() int {
	return len(c.Genes)
}

// SetGenes replaces the gene sequence with a copy of genes.
func (c *Chromosome) SetGenes(genes []uint8) {
	c.Genes = append(make([]uint8, 0, len(genes)), genes...)
}

func (c *Chromosome) Gene(i int) (uint8, error) {
	if i < 0 || i >= len(c.Genes) {
		return 0, fmt.Errorf("get gene %d of %d: %w", i, len(c.Genes), ErrGeneIndex)
	}
	return c.Genes[i], nil
}

func (c *Chromosome) SetGene(i int, v uint8) error {
	if i < 0 || i >= len(c.Genes) {
		return fmt.Errorf("set gene %d of %d: %w", i, len(c.Genes), ErrGeneIndex)
	}
	if v > 1 {
		return fmt.Errorf("set gene %d to %d: %w", i, v, ErrGeneValue)
	}
	c.Genes[i] = v
	return nil
}

// EvaluateFitness stores the number of set genes.
func (c *Chromosome) EvaluateFitness() {
	sum := 0
	for _, g := range c.Genes {
		sum += int(g)
	}
	c.Fitness = sum
}

func (c Chromosome) Clone() Chromosome {
	out := c
	out.Genes = append(make([]uint8, 0, len(c.Genes)), c.Genes...)
	return out
}

func (c Chromosome) Equal(other Chromosome) bool {
	if len(c.Genes) != len(other.Genes) || c.Fitness != other.Fitness {
		return false
	}
	for i := range c.Genes {
		if c.Genes[i] != other.Genes[i] {
			return false
		}
	}
	return true
}

func (c Chromosome) String() string {
	var b strings.Builder
	b.Grow(len(c.Genes))
	for _, g := range c.Genes {
		b.WriteByte('0' + g)
	}
	return b.String()
}
