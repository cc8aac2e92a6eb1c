package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"bitevo/internal/config"
)

const (
	benchmarkExperimentsDir = "experiments"
	benchmarkReportFile     = "benchmark_report.json"
)

type BenchmarkRun struct {
	RunID       string `json:"run_id"`
	Seed        int64  `json:"seed"`
	State       string `json:"state"`
	Converged   bool   `json:"converged"`
	Generations int    `json:"generations"`
	FinalBest   int    `json:"final_best"`
	ElapsedMS   int64  `json:"elapsed_ms"`
}

// BenchmarkStats aggregates generation counts over converged runs only.
type BenchmarkStats struct {
	TotalRuns       int     `json:"total_runs"`
	ConvergedRuns   int     `json:"converged_runs"`
	ConvergenceRate float64 `json:"convergence_rate"`
	MeanGenerations float64 `json:"mean_generations"`
	StdGenerations  float64 `json:"std_generations"`
	MinGenerations  int     `json:"min_generations"`
	MaxGenerations  int     `json:"max_generations"`
	MeanElapsedMS   float64 `json:"mean_elapsed_ms"`
}

type BenchmarkReport struct {
	ExperimentID string           `json:"experiment_id"`
	GeneratedAt  string           `json:"generated_at_utc"`
	Workers      int              `json:"workers"`
	Config       config.RunConfig `json:"config"`
	Stats        BenchmarkStats   `json:"stats"`
	Runs         []BenchmarkRun   `json:"runs"`
}

func BuildBenchmarkStats(runs []BenchmarkRun) BenchmarkStats {
	result := BenchmarkStats{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return result
	}

	generations := make([]float64, 0, len(runs))
	elapsed := make([]float64, 0, len(runs))
	for _, run := range runs {
		elapsed = append(elapsed, float64(run.ElapsedMS))
		if !run.Converged {
			continue
		}
		result.ConvergedRuns++
		generations = append(generations, float64(run.Generations))
		if result.ConvergedRuns == 1 || run.Generations < result.MinGenerations {
			result.MinGenerations = run.Generations
		}
		if run.Generations > result.MaxGenerations {
			result.MaxGenerations = run.Generations
		}
	}
	result.ConvergenceRate = float64(result.ConvergedRuns) / float64(result.TotalRuns)
	result.MeanElapsedMS = stat.Mean(elapsed, nil)

	switch len(generations) {
	case 0:
	case 1:
		result.MeanGenerations = generations[0]
	default:
		result.MeanGenerations, result.StdGenerations = stat.MeanStdDev(generations, nil)
	}
	return result
}

func WriteBenchmarkReport(baseDir string, report BenchmarkReport) (string, error) {
	if err := ValidateID(report.ExperimentID); err != nil {
		return "", fmt.Errorf("experiment id: %w", err)
	}
	reportDir := filepath.Join(baseDir, benchmarkExperimentsDir, report.ExperimentID)
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", err
	}
	if report.GeneratedAt == "" {
		report.GeneratedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := writeJSON(filepath.Join(reportDir, benchmarkReportFile), report); err != nil {
		return "", err
	}
	return reportDir, nil
}

func ReadBenchmarkReport(baseDir, id string) (BenchmarkReport, bool, error) {
	if err := ValidateID(id); err != nil {
		return BenchmarkReport{}, false, fmt.Errorf("experiment id: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(baseDir, benchmarkExperimentsDir, id, benchmarkReportFile))
	if err != nil {
		if os.IsNotExist(err) {
			return BenchmarkReport{}, false, nil
		}
		return BenchmarkReport{}, false, err
	}
	var report BenchmarkReport
	if err := json.Unmarshal(data, &report); err != nil {
		return BenchmarkReport{}, false, err
	}
	return report, true, nil
}

// ListBenchmarkReports returns reports newest first.
func ListBenchmarkReports(baseDir string) ([]BenchmarkReport, error) {
	entries, err := os.ReadDir(filepath.Join(baseDir, benchmarkExperimentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []BenchmarkReport{}, nil
		}
		return nil, err
	}

	reports := make([]BenchmarkReport, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		report, ok, err := ReadBenchmarkReport(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			reports = append(reports, report)
		}
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].GeneratedAt > reports[j].GeneratedAt
	})
	return reports, nil
}
