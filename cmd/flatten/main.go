package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"filingcli/internal/config"
	"filingcli/internal/exporter"
	"filingcli/internal/infrastructure"
	"filingcli/internal/period"
)

var version = "dev"

func main() {
	in := flag.String("in", "data/consolidated", "consolidated .xlsx workbook or a directory of them")
	outDir := flag.String("out", "data/csv", "output directory for CSV files")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flatten %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, closeLogger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
		closeLogger = func() error { return nil }
	}
	defer closeLogger()

	books, err := discoverWorkbooks(*in)
	if err != nil {
		logger.Error("Failed to read input", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(books) == 0 {
		logger.Warn("No workbooks found", slog.String("input", *in))
		fmt.Println("Found 0 workbooks")
		return
	}

	fl := exporter.NewFlattener(
		period.Normalizer{AnnualContext: cfg.Merge.AnnualContext},
		cfg.Merge.MaxHeaderRows,
		logger,
	)

	failed := 0
	for _, book := range books {
		base := strings.TrimSuffix(filepath.Base(book), ".xlsx")
		dir := filepath.Join(*outDir, base)
		if err := fl.FlattenWorkbook(book, dir); err != nil {
			logger.Error("Failed to flatten workbook",
				slog.String("workbook", book),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		logger.Info("Workbook flattened",
			slog.String("workbook", book),
			slog.String("output_dir", dir))
	}

	fmt.Printf("Flattened %d of %d workbooks\n", len(books)-failed, len(books))
	if failed > 0 {
		os.Exit(1)
	}
}

// discoverWorkbooks accepts either a single .xlsx path or a directory and
// returns the workbook paths to flatten.
func discoverWorkbooks(in string) ([]string, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{in}, nil
	}
	files, err := os.ReadDir(in)
	if err != nil {
		return nil, err
	}
	var books []string
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".xlsx") || strings.HasPrefix(name, "~$") {
			continue
		}
		books = append(books, filepath.Join(in, name))
	}
	return books, nil
}
