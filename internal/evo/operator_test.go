package evo

import (
	"errors"
	"testing"

	"bitevo/internal/genotype"
	"bitevo/internal/random"
)

func TestSinglePointCrossoverSwapsTails(t *testing.T) {
	population := mustPopulation(t, "110010", "001101")
	a, b := population[0], population[1]

	cut, err := SinglePointCrossover{}.Recombine(&random.Sequence{Ints: []int{3}}, &a, &b)
	if err != nil {
		t.Fatalf("recombine: %v", err)
	}
	if cut != 3 {
		t.Fatalf("expected cut 3, got %d", cut)
	}
	if a.String() != "110101" || b.String() != "001010" {
		t.Fatalf("unexpected children %s %s", a.String(), b.String())
	}
}

func TestSinglePointCrossoverCutZeroSwapsEverything(t *testing.T) {
	population := mustPopulation(t, "1111", "0000")
	a, b := population[0], population[1]

	if _, err := (SinglePointCrossover{}).Recombine(&random.Sequence{Ints: []int{0}}, &a, &b); err != nil {
		t.Fatalf("recombine: %v", err)
	}
	if a.String() != "0000" || b.String() != "1111" {
		t.Fatalf("expected full swap, got %s %s", a.String(), b.String())
	}
}

func TestSinglePointCrossoverConservesGenesPerPosition(t *testing.T) {
	rng := random.New(31)
	for trial := 0; trial < 50; trial++ {
		parents, err := genotype.InitializePopulation(rng, 2, 24)
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		a, b := parents[0].Clone(), parents[1].Clone()
		if _, err := (SinglePointCrossover{}).Recombine(rng, &a, &b); err != nil {
			t.Fatalf("recombine: %v", err)
		}
		for i := range a.Genes {
			if a.Genes[i]+b.Genes[i] != parents[0].Genes[i]+parents[1].Genes[i] {
				t.Fatalf("trial %d position %d: gene count not conserved", trial, i)
			}
			if a.Genes[i] != parents[0].Genes[i] && a.Genes[i] != parents[1].Genes[i] {
				t.Fatalf("trial %d position %d: gene from neither parent", trial, i)
			}
		}
	}
}

func TestSinglePointCrossoverEdgeCases(t *testing.T) {
	empty := []genotype.Chromosome{genotype.NewChromosome(), genotype.NewChromosome()}
	cut, err := SinglePointCrossover{}.Recombine(&random.Sequence{}, &empty[0], &empty[1])
	if err != nil || cut != -1 {
		t.Fatalf("expected no-op for empty chromosomes, got cut=%d err=%v", cut, err)
	}

	mismatched := mustPopulation(t, "101", "10")
	if _, err := (SinglePointCrossover{}).Recombine(&random.Sequence{}, &mismatched[0], &mismatched[1]); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
	if mismatched[0].String() != "101" || mismatched[1].String() != "10" {
		t.Fatal("failed crossover modified its inputs")
	}
}

func TestBitFlipMutationFlipsOneGene(t *testing.T) {
	population := mustPopulation(t, "10110")
	c := population[0]

	idx, err := BitFlipMutation{}.Mutate(&random.Sequence{Ints: []int{1}}, &c)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if idx != 1 || c.String() != "11110" {
		t.Fatalf("expected index 1 flipped to 11110, got idx=%d %s", idx, c.String())
	}
	if c.Fitness != 3 {
		t.Fatalf("mutation must not re-evaluate fitness, got %d", c.Fitness)
	}

	if _, err := (BitFlipMutation{}).Mutate(&random.Sequence{Ints: []int{1}}, &c); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if c.String() != "10110" {
		t.Fatalf("second flip should restore gene, got %s", c.String())
	}
}

func TestBitFlipMutationHammingDistanceOne(t *testing.T) {
	rng := random.New(5)
	population, err := genotype.InitializePopulation(rng, 20, 32)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, parent := range population {
		mutated := parent.Clone()
		if _, err := (BitFlipMutation{}).Mutate(rng, &mutated); err != nil {
			t.Fatalf("mutate: %v", err)
		}
		diff := 0
		for i := range mutated.Genes {
			if mutated.Genes[i] != parent.Genes[i] {
				diff++
			}
		}
		if diff != 1 {
			t.Fatalf("expected exactly one flipped gene, got %d", diff)
		}
	}
}

func TestBitFlipMutationEmptyChromosome(t *testing.T) {
	c := genotype.NewChromosome()
	idx, err := BitFlipMutation{}.Mutate(&random.Sequence{}, &c)
	if err != nil || idx != -1 {
		t.Fatalf("expected no-op for empty chromosome, got idx=%d err=%v", idx, err)
	}
}
