package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"filingcli/internal/batch"
	"filingcli/internal/config"
	"filingcli/internal/infrastructure"
)

var version = "dev"

func main() {
	inDir := flag.String("in", "data/extracted", "input directory of extracted .xlsx workbooks")
	outDir := flag.String("out", "data/consolidated", "output directory for consolidated workbooks")
	workers := flag.Int("workers", 0, "override worker count (0 uses configuration)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("consolidator %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}

	logger, closeLogger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
		closeLogger = func() error { return nil }
	}
	defer closeLogger()

	shutdownTracing, err := infrastructure.SetupTracing(cfg.Telemetry, version)
	if err != nil {
		logger.Warn("Failed to initialize tracing", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}
	ctx := context.Background()
	defer shutdownTracing(ctx)

	jobs, err := discoverJobs(*inDir, *outDir)
	if err != nil {
		logger.Error("Failed to read input directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(jobs) == 0 {
		logger.Warn("No workbooks found in input directory",
			slog.String("input_dir", *inDir),
			slog.String("pattern", "*.xlsx"))
		fmt.Println("Found 0 workbooks")
		return
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.Error("Failed to create output directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Starting workbook consolidation",
		slog.String("input_dir", *inDir),
		slog.String("output_dir", *outDir),
		slog.Int("workbooks", len(jobs)),
		slog.Int("workers", cfg.Batch.Workers))
	fmt.Printf("Found %d workbooks\n", len(jobs))

	results := batch.NewRunner(cfg, logger, nil).Run(ctx, jobs)

	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("FAILED  %s: %v\n", filepath.Base(res.Source), res.Err)
			continue
		}
		fmt.Printf("%-7s %s\n", strings.ToUpper(string(res.Report.Status())), filepath.Base(res.Source))
	}

	failed := batch.Failures(results)
	logger.Info("Consolidation complete",
		slog.Int("processed", len(results)-failed),
		slog.Int("failed", failed))
	fmt.Printf("Processing complete: %d of %d workbooks\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

// discoverJobs pairs every .xlsx under inDir with its destination path.
// Office lock files ("~$...") are skipped.
func discoverJobs(inDir, outDir string) ([]batch.Job, error) {
	files, err := os.ReadDir(inDir)
	if err != nil {
		return nil, err
	}
	var jobs []batch.Job
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".xlsx") || strings.HasPrefix(name, "~$") {
			continue
		}
		jobs = append(jobs, batch.Job{
			Source:      filepath.Join(inDir, name),
			Destination: filepath.Join(outDir, name),
		})
	}
	return jobs, nil
}
