package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"bitevo/internal/config"
	"bitevo/internal/evo"
)

const (
	runIndexFile         = "run_index.json"
	configFile           = "config.json"
	generationStatsFile  = "generation_stats.json"
	generationSeriesFile = "generation_series.csv"
	bestChromosomeFile   = "best_chromosome.json"
)

var runArtifactFiles = []string{configFile, generationStatsFile, generationSeriesFile, bestChromosomeFile}

var ErrInvalidID = errors.New("id must be a single path element")

// ValidateID rejects run and experiment ids that would resolve outside the
// artifacts directory.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return nil
}

// RunConfig is the config.json artifact: the run configuration plus its id.
type RunConfig struct {
	RunID        string `json:"run_id"`
	CreatedAtUTC string `json:"created_at_utc"`
	config.RunConfig
}

type BestChromosome struct {
	Genes      string `json:"genes"`
	Fitness    int    `json:"fitness"`
	Generation int    `json:"generation"`
}

type RunArtifacts struct {
	Config      RunConfig             `json:"config"`
	State       string                `json:"state"`
	Converged   bool                  `json:"converged"`
	ElapsedMS   int64                 `json:"elapsed_ms"`
	Generations []evo.GenerationStats `json:"generations"`
	Best        BestChromosome        `json:"best"`
}

type RunIndexEntry struct {
	RunID            string `json:"run_id"`
	Selection        string `json:"selection"`
	PopulationSize   int    `json:"population_size"`
	ChromosomeLength int    `json:"chromosome_length"`
	Seed             int64  `json:"seed"`
	State            string `json:"state"`
	Generations      int    `json:"generations"`
	FinalBestFitness int    `json:"final_best_fitness"`
	TargetFitness    int    `json:"target_fitness"`
	CreatedAtUTC     string `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if err := ValidateID(artifacts.Config.RunID); err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, generationStatsFile), map[string]any{
		"state":       artifacts.State,
		"converged":   artifacts.Converged,
		"elapsed_ms":  artifacts.ElapsedMS,
		"generations": artifacts.Generations,
	}); err != nil {
		return "", err
	}
	if err := WriteGenerationSeries(runDir, artifacts.Generations); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, bestChromosomeFile), artifacts.Best); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if err := ValidateID(entry.RunID); err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first. Entries sharing a timestamp keep
// the most recently appended one first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := entries[order[i]], entries[order[j]]
		if a.CreatedAtUTC == b.CreatedAtUTC {
			return order[i] > order[j]
		}
		return a.CreatedAtUTC > b.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(entries))
	for _, idx := range order {
		sorted = append(sorted, entries[idx])
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if err := ValidateID(runID); err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range runArtifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	if err := ValidateID(runID); err != nil {
		return RunConfig{}, false, fmt.Errorf("run id: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(baseDir, runID, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadBestChromosome(baseDir, runID string) (BestChromosome, bool, error) {
	if err := ValidateID(runID); err != nil {
		return BestChromosome{}, false, fmt.Errorf("run id: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(baseDir, runID, bestChromosomeFile))
	if err != nil {
		if os.IsNotExist(err) {
			return BestChromosome{}, false, nil
		}
		return BestChromosome{}, false, err
	}

	var best BestChromosome
	if err := json.Unmarshal(data, &best); err != nil {
		return BestChromosome{}, false, err
	}
	return best, true, nil
}

// WriteGenerationSeries writes every generation using the CSV logger's
// column layout.
func WriteGenerationSeries(runDir string, generations []evo.GenerationStats) error {
	file, err := os.Create(filepath.Join(runDir, generationSeriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, g := range generations {
		if err := writer.Write(csvRecord(g)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadGenerationSeries(baseDir, runID string) ([]evo.GenerationStats, bool, error) {
	if err := ValidateID(runID); err != nil {
		return nil, false, fmt.Errorf("run id: %w", err)
	}
	file, err := os.Open(filepath.Join(baseDir, runID, generationSeriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []evo.GenerationStats{}, true, nil
		}
		return nil, false, err
	}
	if strings.Join(header, ",") != strings.Join(csvHeader, ",") {
		return nil, false, fmt.Errorf("unexpected generation series header %v", header)
	}

	series := make([]evo.GenerationStats, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		g, err := parseCSVRecord(record)
		if err != nil {
			return nil, false, err
		}
		series = append(series, g)
	}
	return series, true, nil
}

func parseCSVRecord(record []string) (evo.GenerationStats, error) {
	if len(record) != len(csvHeader) {
		return evo.GenerationStats{}, fmt.Errorf("generation series row must have %d columns", len(csvHeader))
	}
	generation, err := strconv.Atoi(record[0])
	if err != nil {
		return evo.GenerationStats{}, err
	}
	avg, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return evo.GenerationStats{}, err
	}
	minFitness, err := strconv.Atoi(record[2])
	if err != nil {
		return evo.GenerationStats{}, err
	}
	maxFitness, err := strconv.Atoi(record[3])
	if err != nil {
		return evo.GenerationStats{}, err
	}
	return evo.GenerationStats{
		Generation: generation,
		AvgFitness: avg,
		MinFitness: minFitness,
		MaxFitness: maxFitness,
		BestIndex:  -1,
	}, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
