package bitevo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bitevo/internal/config"
	"bitevo/internal/evo"
	"bitevo/internal/model"
	"bitevo/internal/stats"
	"bitevo/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "bitevo.db"
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	benchmarksDir string
	exportsDir    string

	initMu      sync.Mutex
	initialized bool
	// persistMu serializes store writes and run index updates across
	// concurrent benchmark runs.
	persistMu sync.Mutex
}

type RunRequest struct {
	Config config.RunConfig
	// RunID is generated when empty.
	RunID string
	// Sinks receive every generation in addition to the CSV logger.
	Sinks []evo.GenerationSink
}

type RunSummary struct {
	RunID                string
	State                string
	Converged            bool
	Seed                 int64
	Generations          int
	Elapsed              time.Duration
	PerGeneration        time.Duration
	BestGenes            string
	BestFitness          int
	TargetFitness        int
	DegenerateSelections int
	SinkErrors           int
	ArtifactsDir         string
	CSVPath              string
}

type BenchmarkRequest struct {
	Config       config.RunConfig
	Runs         int
	Workers      int
	ExperimentID string
}

type BenchmarkSummary struct {
	ExperimentID string
	ReportDir    string
	Stats        stats.BenchmarkStats
	Runs         []RunSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Selection        string
	Seed             int64
	Population       int
	ChromosomeLength int
	State            string
	Generations      int
	FinalBestFitness int
	TargetFitness    int
}

type BenchmarksRequest struct {
	Limit int
}

type StatsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Run evolves one population to convergence, the generation cap, or
// cancellation, then persists the summary, statistics and artifacts. A
// cancelled run is still persisted and returned together with ctx.Err().
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	selector, err := cfg.Selector()
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	if cfg.Seed == 0 {
		cfg.Seed = now.UnixNano()
	}
	runID := req.RunID
	if runID == "" {
		runID = newRunID(cfg.Seed)
	}
	if err := stats.ValidateID(runID); err != nil {
		return RunSummary{}, fmt.Errorf("run id: %w", err)
	}
	logger := c.logger.With("run_id", runID)

	sinks := make(evo.MultiSink, 0, len(req.Sinks)+1)
	var csvLogger *stats.CSVLogger
	if !cfg.DisableCSV {
		csvLogger, err = stats.NewCSVLogger(cfg.CSVDir, cfg.LogEvery, now)
		if err != nil {
			return RunSummary{}, fmt.Errorf("open csv log: %w", err)
		}
		defer func() {
			if err := csvLogger.Close(); err != nil {
				logger.Warn("close csv log failed", "path", csvLogger.Path(), "error", err)
			}
		}()
		sinks = append(sinks, csvLogger)
	}
	sinks = append(sinks, req.Sinks...)

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		PopulationSize:   cfg.PopulationSize,
		ChromosomeLength: cfg.ChromosomeLength,
		CrossoverRate:    cfg.CrossoverRate,
		MutationRate:     cfg.MutationRate,
		TargetFitness:    cfg.ResolvedTarget(),
		MaxGenerations:   cfg.MaxGenerations,
		Selector:         selector,
		Sink:             sinks,
		Seed:             cfg.Seed,
		Logger:           logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, runErr := monitor.Run(ctx)
	if runErr != nil && result.State != evo.StateCancelled {
		return RunSummary{}, runErr
	}

	summary := RunSummary{
		RunID:                runID,
		State:                string(result.State),
		Converged:            result.Converged,
		Seed:                 cfg.Seed,
		Generations:          result.Generations,
		Elapsed:              result.Elapsed,
		PerGeneration:        result.PerGeneration,
		BestGenes:            result.Best.String(),
		BestFitness:          result.Best.Fitness,
		TargetFitness:        result.TargetFitness,
		DegenerateSelections: result.DegenerateSelections,
		SinkErrors:           result.SinkErrors,
	}
	if csvLogger != nil {
		summary.CSVPath = csvLogger.Path()
	}

	runDir, err := c.persist(context.WithoutCancel(ctx), now, cfg, summary, result.History)
	if err != nil {
		return RunSummary{}, err
	}
	summary.ArtifactsDir = filepath.Clean(runDir)
	return summary, runErr
}

// Benchmark runs independent seeds concurrently. Run i uses seed base+i and
// writes no CSV log; per-generation series still land in each run's artifacts.
func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkSummary, error) {
	if req.Runs <= 0 {
		return BenchmarkSummary{}, errors.New("benchmark runs must be > 0")
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return BenchmarkSummary{}, err
	}
	if req.ExperimentID != "" {
		if err := stats.ValidateID(req.ExperimentID); err != nil {
			return BenchmarkSummary{}, fmt.Errorf("experiment id: %w", err)
		}
	}
	if err := c.ensureStore(ctx); err != nil {
		return BenchmarkSummary{}, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	cfg.DisableCSV = true
	experimentID := req.ExperimentID
	if experimentID == "" {
		experimentID = fmt.Sprintf("benchmark-%d-%s", cfg.Seed, uuid.NewString()[:8])
	}

	runs := make([]RunSummary, req.Runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Workers)
	for i := 0; i < req.Runs; i++ {
		runCfg := cfg
		runCfg.Seed = cfg.Seed + int64(i)
		g.Go(func() error {
			summary, err := c.Run(gctx, RunRequest{Config: runCfg})
			if err != nil {
				return fmt.Errorf("benchmark run %d (seed %d): %w", i, runCfg.Seed, err)
			}
			runs[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BenchmarkSummary{}, err
	}

	records := make([]stats.BenchmarkRun, 0, len(runs))
	for _, run := range runs {
		records = append(records, stats.BenchmarkRun{
			RunID:       run.RunID,
			Seed:        run.Seed,
			State:       run.State,
			Converged:   run.Converged,
			Generations: run.Generations,
			FinalBest:   run.BestFitness,
			ElapsedMS:   run.Elapsed.Milliseconds(),
		})
	}
	aggregate := stats.BuildBenchmarkStats(records)
	reportDir, err := stats.WriteBenchmarkReport(c.benchmarksDir, stats.BenchmarkReport{
		ExperimentID: experimentID,
		Workers:      req.Workers,
		Config:       cfg,
		Stats:        aggregate,
		Runs:         records,
	})
	if err != nil {
		return BenchmarkSummary{}, err
	}
	c.logger.Info("benchmark finished",
		"experiment_id", experimentID,
		"runs", aggregate.TotalRuns,
		"converged", aggregate.ConvergedRuns,
		"mean_generations", aggregate.MeanGenerations,
	)

	return BenchmarkSummary{
		ExperimentID: experimentID,
		ReportDir:    filepath.Clean(reportDir),
		Stats:        aggregate,
		Runs:         runs,
	}, nil
}

// Runs lists runs newest first. Stored records are preferred; a store with
// no records (a fresh memory store) falls back to the run index.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if len(records) > req.Limit {
			records = records[:req.Limit]
		}
		out := make([]RunItem, 0, len(records))
		for _, r := range records {
			out = append(out, RunItem{
				RunID:            r.ID,
				CreatedAtUTC:     r.CreatedAtUTC.UTC().Format(time.RFC3339Nano),
				Selection:        r.Selection,
				Seed:             r.Seed,
				Population:       r.PopulationSize,
				ChromosomeLength: r.ChromosomeLength,
				State:            r.State,
				Generations:      r.Generations,
				FinalBestFitness: r.Best.Fitness,
				TargetFitness:    r.TargetFitness,
			})
		}
		return out, nil
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Selection:        e.Selection,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			ChromosomeLength: e.ChromosomeLength,
			State:            e.State,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
			TargetFitness:    e.TargetFitness,
		})
	}
	return out, nil
}

// Benchmarks lists stored benchmark reports newest first.
func (c *Client) Benchmarks(_ context.Context, req BenchmarksRequest) ([]stats.BenchmarkReport, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	reports, err := stats.ListBenchmarkReports(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(reports) > req.Limit {
		reports = reports[:req.Limit]
	}
	return reports, nil
}

// Stats returns the per-generation statistics of a run. The store is read
// first; runs recorded by another process fall back to the run's artifacts.
func (c *Client) Stats(ctx context.Context, req StatsRequest) ([]evo.GenerationStats, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	var out []evo.GenerationStats
	records, ok, err := c.store.GetGenerationStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		out = make([]evo.GenerationStats, 0, len(records))
		for _, r := range records {
			out = append(out, evo.GenerationStats{
				Generation: r.Generation,
				AvgFitness: r.AvgFitness,
				MinFitness: r.MinFitness,
				MaxFitness: r.MaxFitness,
				BestIndex:  r.BestIndex,
			})
		}
	} else {
		out, ok, err = stats.ReadGenerationSeries(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("generation stats not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// GetRun returns the stored record of a run. Runs recorded by another process
// are rebuilt from their config and best chromosome artifacts.
func (c *Client) GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error) {
	if err := stats.ValidateID(runID); err != nil {
		return model.RunRecord{}, false, fmt.Errorf("run id: %w", err)
	}
	if err := c.ensureStore(ctx); err != nil {
		return model.RunRecord{}, false, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil || ok {
		return run, ok, err
	}
	return c.runFromArtifacts(runID)
}

func (c *Client) runFromArtifacts(runID string) (model.RunRecord, bool, error) {
	cfg, ok, err := stats.ReadRunConfig(c.benchmarksDir, runID)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	best, ok, err := stats.ReadBestChromosome(c.benchmarksDir, runID)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}

	run := model.RunRecord{
		VersionedRecord:  storage.Versioned(),
		ID:               runID,
		Seed:             cfg.Seed,
		PopulationSize:   cfg.PopulationSize,
		ChromosomeLength: cfg.ChromosomeLength,
		CrossoverRate:    cfg.CrossoverRate,
		MutationRate:     cfg.MutationRate,
		Selection:        cfg.Selection,
		TournamentSize:   cfg.TournamentSize,
		TargetFitness:    cfg.ResolvedTarget(),
		MaxGenerations:   cfg.MaxGenerations,
		Generations:      best.Generation,
		Best:             model.ChromosomeRecord{Genes: best.Genes, Fitness: best.Fitness},
	}
	if createdAt, err := time.Parse(time.RFC3339Nano, cfg.CreatedAtUTC); err == nil {
		run.CreatedAtUTC = createdAt
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	for _, e := range entries {
		if e.RunID == runID {
			run.State = e.State
			break
		}
	}
	run.Converged = run.State == string(evo.StateConverged)
	return run, true, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, fmt.Errorf("export: %w", err)
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) persist(ctx context.Context, createdAt time.Time, cfg config.RunConfig, summary RunSummary, history []evo.GenerationStats) (string, error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	run := model.RunRecord{
		VersionedRecord:      storage.Versioned(),
		ID:                   summary.RunID,
		CreatedAtUTC:         createdAt,
		Seed:                 cfg.Seed,
		PopulationSize:       cfg.PopulationSize,
		ChromosomeLength:     cfg.ChromosomeLength,
		CrossoverRate:        cfg.CrossoverRate,
		MutationRate:         cfg.MutationRate,
		Selection:            cfg.Selection,
		TournamentSize:       cfg.TournamentSize,
		TargetFitness:        summary.TargetFitness,
		MaxGenerations:       cfg.MaxGenerations,
		State:                summary.State,
		Converged:            summary.Converged,
		Generations:          summary.Generations,
		ElapsedMillis:        summary.Elapsed.Milliseconds(),
		DegenerateSelections: summary.DegenerateSelections,
		Best:                 model.ChromosomeRecord{Genes: summary.BestGenes, Fitness: summary.BestFitness},
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("save run %s: %w", summary.RunID, err)
	}

	records := make([]model.GenerationStats, 0, len(history))
	for _, g := range history {
		records = append(records, model.GenerationStats{
			VersionedRecord: storage.Versioned(),
			Generation:      g.Generation,
			AvgFitness:      g.AvgFitness,
			MinFitness:      g.MinFitness,
			MaxFitness:      g.MaxFitness,
			BestIndex:       g.BestIndex,
		})
	}
	if err := c.store.SaveGenerationStats(ctx, summary.RunID, records); err != nil {
		return "", fmt.Errorf("save generation stats %s: %w", summary.RunID, err)
	}

	createdAtUTC := createdAt.Format(time.RFC3339Nano)
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config:      stats.RunConfig{RunID: summary.RunID, CreatedAtUTC: createdAtUTC, RunConfig: cfg},
		State:       summary.State,
		Converged:   summary.Converged,
		ElapsedMS:   summary.Elapsed.Milliseconds(),
		Generations: history,
		Best: stats.BestChromosome{
			Genes:      summary.BestGenes,
			Fitness:    summary.BestFitness,
			Generation: summary.Generations,
		},
	})
	if err != nil {
		return "", err
	}

	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:            summary.RunID,
		Selection:        cfg.Selection,
		PopulationSize:   cfg.PopulationSize,
		ChromosomeLength: cfg.ChromosomeLength,
		Seed:             cfg.Seed,
		State:            summary.State,
		Generations:      summary.Generations,
		FinalBestFitness: summary.BestFitness,
		TargetFitness:    summary.TargetFitness,
		CreatedAtUTC:     createdAtUTC,
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		if err := stats.ValidateID(runID); err != nil {
			return "", fmt.Errorf("run id: %w", err)
		}
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

func newRunID(seed int64) string {
	return fmt.Sprintf("onemax-%d-%s", seed, uuid.NewString()[:8])
}
