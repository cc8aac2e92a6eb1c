package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"bitevo/internal/evo"
)

// ConsoleReporter prints best-fitness progress every Every generations.
type ConsoleReporter struct {
	Out   io.Writer
	Every int
}

func (r ConsoleReporter) Record(stats evo.GenerationStats) error {
	every := r.Every
	if every <= 0 {
		every = 1
	}
	if stats.Generation%every != 0 {
		return nil
	}
	_, err := fmt.Fprintf(r.Out, "Generation: %d, Best Fitness: %d\n", stats.Generation, stats.MaxFitness)
	return err
}

type FinalReport struct {
	RunID         string
	State         string
	Generations   int
	Elapsed       time.Duration
	PerGeneration time.Duration
	BestGenes     string
	BestFitness   int
	TargetFitness int
	ArtifactsDir  string
	CSVPath       string
}

func WriteFinalReport(w io.Writer, r FinalReport) error {
	lines := []string{
		fmt.Sprintf("run_id=%s state=%s", r.RunID, r.State),
		fmt.Sprintf("generations=%s best_fitness=%s/%s",
			humanize.Comma(int64(r.Generations)),
			humanize.Comma(int64(r.BestFitness)),
			humanize.Comma(int64(r.TargetFitness)),
		),
		fmt.Sprintf("elapsed=%s per_generation=%s", r.Elapsed, r.PerGeneration),
		fmt.Sprintf("best=%s", r.BestGenes),
	}
	if r.ArtifactsDir != "" {
		lines = append(lines, fmt.Sprintf("artifacts=%s", r.ArtifactsDir))
	}
	if r.CSVPath != "" {
		lines = append(lines, fmt.Sprintf("csv=%s", r.CSVPath))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
