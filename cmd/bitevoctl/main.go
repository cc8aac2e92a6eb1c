package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"bitevo/internal/stats"
	"bitevo/internal/storage"
	bitevoapi "bitevo/pkg/bitevo"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("bitevoctl", flag.ContinueOnError)
	logLevel := global.String("log-level", "info", "log level: debug|info|warn|error")
	logFormat := global.String("log-format", defaultLogFormat(os.Stderr), "log format: text|json")
	if err := global.Parse(args); err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		return err
	}

	args = global.Args()
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:], logger)
	case "benchmark":
		return runBenchmark(ctx, args[1:], logger)
	case "benchmarks":
		return runBenchmarks(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "stats":
		return runStats(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "bitevo.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := bitevoapi.New(bitevoapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	flags := registerRunFlags(fs)
	jsonOut := fs.Bool("json", false, "emit final result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := resolveRunConfig(fs, flags)
	if err != nil {
		return err
	}

	client, err := bitevoapi.New(bitevoapi.Options{
		StoreKind:     cfg.Store,
		DBPath:        cfg.DBPath,
		BenchmarksDir: cfg.OutputDir,
		ExportsDir:    exportsDir,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := bitevoapi.RunRequest{Config: cfg}
	if !*jsonOut {
		req.Sinks = append(req.Sinks, stats.ConsoleReporter{Out: os.Stdout, Every: cfg.PrintEvery})
	}
	summary, runErr := client.Run(ctx, req)
	if runErr != nil && summary.RunID == "" {
		return runErr
	}

	if *jsonOut {
		if err := printJSON(runSummaryJSON(summary)); err != nil {
			return err
		}
		return runErr
	}
	if err := stats.WriteFinalReport(os.Stdout, stats.FinalReport{
		RunID:         summary.RunID,
		State:         summary.State,
		Generations:   summary.Generations,
		Elapsed:       summary.Elapsed,
		PerGeneration: summary.PerGeneration,
		BestGenes:     summary.BestGenes,
		BestFitness:   summary.BestFitness,
		TargetFitness: summary.TargetFitness,
		ArtifactsDir:  summary.ArtifactsDir,
		CSVPath:       summary.CSVPath,
	}); err != nil {
		return err
	}
	return runErr
}

func runBenchmark(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	flags := registerRunFlags(fs)
	runs := fs.Int("runs", 10, "number of independent runs")
	workers := fs.Int("workers", 4, "concurrent runs")
	experimentID := fs.String("experiment-id", "", "experiment id (generated when empty)")
	jsonOut := fs.Bool("json", false, "emit benchmark summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runs <= 0 {
		return errors.New("runs must be > 0")
	}
	if *workers <= 0 {
		return errors.New("workers must be > 0")
	}

	cfg, err := resolveRunConfig(fs, flags)
	if err != nil {
		return err
	}

	client, err := bitevoapi.New(bitevoapi.Options{
		StoreKind:     cfg.Store,
		DBPath:        cfg.DBPath,
		BenchmarksDir: cfg.OutputDir,
		ExportsDir:    exportsDir,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Benchmark(ctx, bitevoapi.BenchmarkRequest{
		Config:       cfg,
		Runs:         *runs,
		Workers:      *workers,
		ExperimentID: *experimentID,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		runsOut := make([]runSummaryItem, 0, len(summary.Runs))
		for _, run := range summary.Runs {
			runsOut = append(runsOut, runSummaryJSON(run))
		}
		return printJSON(struct {
			ExperimentID string               `json:"experiment_id"`
			ReportDir    string               `json:"report_dir"`
			Stats        stats.BenchmarkStats `json:"stats"`
			Runs         []runSummaryItem     `json:"runs"`
		}{
			ExperimentID: summary.ExperimentID,
			ReportDir:    summary.ReportDir,
			Stats:        summary.Stats,
			Runs:         runsOut,
		})
	}

	s := summary.Stats
	fmt.Printf("benchmark experiment_id=%s runs=%d converged=%d rate=%.2f\n",
		summary.ExperimentID, s.TotalRuns, s.ConvergedRuns, s.ConvergenceRate)
	fmt.Printf("generations mean=%.2f std=%.2f min=%d max=%d mean_elapsed=%s\n",
		s.MeanGenerations, s.StdGenerations, s.MinGenerations, s.MaxGenerations,
		time.Duration(s.MeanElapsedMS*float64(time.Millisecond)))
	fmt.Printf("report=%s\n", summary.ReportDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	artifactsDir := fs.String("out-dir", benchmarksDir, "run artifacts directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "bitevo.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := bitevoapi.New(bitevoapi.Options{StoreKind: *storeKind, DBPath: *dbPath, BenchmarksDir: *artifactsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	items, err := client.Runs(ctx, bitevoapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		type runsItem struct {
			RunID            string `json:"run_id"`
			CreatedAtUTC     string `json:"created_at_utc"`
			Selection        string `json:"selection"`
			Seed             int64  `json:"seed"`
			Population       int    `json:"population_size"`
			ChromosomeLength int    `json:"chromosome_length"`
			State            string `json:"state"`
			Generations      int    `json:"generations"`
			FinalBestFitness int    `json:"final_best_fitness"`
			TargetFitness    int    `json:"target_fitness"`
		}
		out := make([]runsItem, 0, len(items))
		for _, item := range items {
			out = append(out, runsItem(item))
		}
		return printJSON(out)
	}

	for _, item := range items {
		fmt.Printf("run_id=%s created=%s selection=%s seed=%d pop=%d len=%d state=%s generations=%s best=%d/%d\n",
			item.RunID,
			createdAgo(item.CreatedAtUTC),
			item.Selection,
			item.Seed,
			item.Population,
			item.ChromosomeLength,
			item.State,
			humanize.Comma(int64(item.Generations)),
			item.FinalBestFitness,
			item.TargetFitness,
		)
	}
	return nil
}

func runBenchmarks(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmarks", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max reports to list")
	artifactsDir := fs.String("out-dir", benchmarksDir, "run artifacts directory")
	jsonOut := fs.Bool("json", false, "emit reports as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := bitevoapi.New(bitevoapi.Options{StoreKind: "memory", BenchmarksDir: *artifactsDir})
	if err != nil {
		return err
	}
	reports, err := client.Benchmarks(ctx, bitevoapi.BenchmarksRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(reports)
	}
	if len(reports) == 0 {
		fmt.Println("no benchmarks found")
		return nil
	}
	for _, r := range reports {
		fmt.Printf("experiment_id=%s created=%s runs=%d converged=%d rate=%.2f mean_generations=%.2f\n",
			r.ExperimentID,
			createdAgo(r.GeneratedAt),
			r.Stats.TotalRuns,
			r.Stats.ConvergedRuns,
			r.Stats.ConvergenceRate,
			r.Stats.MeanGenerations,
		)
	}
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run")
	limit := fs.Int("limit", 0, "max generations to show (0 = all)")
	artifactsDir := fs.String("out-dir", benchmarksDir, "run artifacts directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "bitevo.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit generation statistics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := bitevoapi.New(bitevoapi.Options{StoreKind: *storeKind, DBPath: *dbPath, BenchmarksDir: *artifactsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.Stats(ctx, bitevoapi.StatsRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(history)
	}
	fmt.Println("generation,avg_fitness,min_fitness,max_fitness")
	for _, g := range history {
		fmt.Printf("%d,%g,%d,%d\n", g.Generation, g.AvgFitness, g.MinFitness, g.MaxFitness)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export latest run")
	outDir := fs.String("out", exportsDir, "output directory")
	artifactsDir := fs.String("out-dir", benchmarksDir, "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := bitevoapi.New(bitevoapi.Options{StoreKind: "memory", BenchmarksDir: *artifactsDir, ExportsDir: *outDir})
	if err != nil {
		return err
	}
	exported, err := client.Export(ctx, bitevoapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

type runSummaryItem struct {
	RunID                string `json:"run_id"`
	State                string `json:"state"`
	Converged            bool   `json:"converged"`
	Seed                 int64  `json:"seed"`
	Generations          int    `json:"generations"`
	ElapsedMS            int64  `json:"elapsed_ms"`
	PerGenerationUS      int64  `json:"per_generation_us"`
	BestGenes            string `json:"best_genes"`
	BestFitness          int    `json:"best_fitness"`
	TargetFitness        int    `json:"target_fitness"`
	DegenerateSelections int    `json:"degenerate_selections,omitempty"`
	ArtifactsDir         string `json:"artifacts_dir,omitempty"`
	CSVPath              string `json:"csv_path,omitempty"`
}

func runSummaryJSON(s bitevoapi.RunSummary) runSummaryItem {
	return runSummaryItem{
		RunID:                s.RunID,
		State:                s.State,
		Converged:            s.Converged,
		Seed:                 s.Seed,
		Generations:          s.Generations,
		ElapsedMS:            s.Elapsed.Milliseconds(),
		PerGenerationUS:      s.PerGeneration.Microseconds(),
		BestGenes:            s.BestGenes,
		BestFitness:          s.BestFitness,
		TargetFitness:        s.TargetFitness,
		DegenerateSelections: s.DegenerateSelections,
		ArtifactsDir:         s.ArtifactsDir,
		CSVPath:              s.CSVPath,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func createdAgo(createdAtUTC string) string {
	ts, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return strings.ReplaceAll(humanize.Time(ts), " ", "_")
}

func defaultLogFormat(f *os.File) string {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return "text"
	}
	return "json"
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level: %s", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: bitevoctl [--log-level L] [--log-format text|json] <init|run|benchmark|benchmarks|runs|stats|export> [flags]", msg)
}
