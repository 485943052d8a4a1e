package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"filingcli/internal/detect"
	"filingcli/internal/period"
	"filingcli/internal/registry"
	"filingcli/internal/sheet"
)

// LongRecord is one flattened data point: a period, a row label, and the
// value at their intersection.
type LongRecord struct {
	Dates  string `csv:"Dates"`
	Header string `csv:"Header"`
	Value  string `csv:"Data Value"`
}

// IndexRecord mirrors one Index registry row for the combined CSV.
type IndexRecord struct {
	Source     string `csv:"Source"`
	PageNo     string `csv:"PageNo"`
	TableID    string `csv:"Table_ID"`
	LocationID string `csv:"Location_ID"`
	Section    string `csv:"Section"`
	Title      string `csv:"Table Title"`
	Link       string `csv:"Link"`
}

// Flattener turns a consolidated workbook into long-format CSV files, one
// per worksheet, for downstream tabular tooling.
type Flattener struct {
	periods  period.Normalizer
	detector *detect.Detector
	logger   *slog.Logger
}

// NewFlattener builds a flattener.
func NewFlattener(n period.Normalizer, maxHeaderRows int, logger *slog.Logger) *Flattener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flattener{
		periods:  n,
		detector: detect.NewDetector(n, maxHeaderRows, logger),
		logger:   logger,
	}
}

// FlattenWorkbook writes one CSV per non-Index worksheet of the workbook at
// srcPath into outDir, plus index.csv with the registry contents. Sheets
// with no detectable table are skipped with a warning.
func (fl *Flattener) FlattenWorkbook(srcPath, outDir string) error {
	f, err := excelize.OpenFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open workbook %s: %w", srcPath, err)
	}
	defer f.Close()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	for _, name := range f.GetSheetList() {
		if name == registry.SheetName {
			continue
		}
		g, err := sheet.Load(f, name)
		if err != nil {
			return err
		}
		records := fl.FlattenSheet(g)
		if len(records) == 0 {
			fl.logger.Warn("no data points found, skipping sheet",
				slog.String("workbook", srcPath),
				slog.String("sheet", name))
			continue
		}
		if err := writeCSV(filepath.Join(outDir, name+".csv"), records); err != nil {
			return err
		}
	}

	entries, err := registry.Read(f)
	if err != nil {
		fl.logger.Warn("workbook has no readable Index sheet, skipping index.csv",
			slog.String("workbook", srcPath),
			slog.String("error", err.Error()))
		return nil
	}
	index := make([]IndexRecord, 0, len(entries))
	for _, e := range entries {
		index = append(index, IndexRecord{
			Source:     e.Source,
			PageNo:     e.PageNo,
			TableID:    e.TableID,
			LocationID: e.LocationID,
			Section:    e.Section,
			Title:      e.Title,
			Link:       e.Link,
		})
	}
	return writeCSV(filepath.Join(outDir, "index.csv"), index)
}

// FlattenSheet explodes every detected block into long-format records, one
// per non-empty data cell, in row-major order.
func (fl *Flattener) FlattenSheet(g *sheet.Grid) []LongRecord {
	var records []LongRecord
	for _, b := range fl.detector.Detect(g) {
		dates := fl.columnDates(g, b)
		for _, r := range b.DataRows(g) {
			label := g.Cell(r, 1)
			row := g.Row(r)
			for c := 2; c <= len(row); c++ {
				v := strings.TrimSpace(row[c-1])
				if v == "" {
					continue
				}
				records = append(records, LongRecord{
					Dates:  dates[c],
					Header: label,
					Value:  sheet.NormalizeValue(v),
				})
			}
		}
	}
	return records
}

// columnDates maps each data column to its normalized period, read from the
// block's header rows. Multi-row headers concatenate top-down; split
// period phrases are rejoined before normalization.
func (fl *Flattener) columnDates(g *sheet.Grid, b *detect.TableBlock) map[int]string {
	dates := map[int]string{}
	consumed := map[[2]int]bool{}
	for hr := b.HeaderStart; hr > 0 && hr <= b.HeaderEnd; hr++ {
		row := g.Row(hr)
		for c := 2; c <= len(row); c++ {
			if consumed[[2]int{hr, c}] {
				continue
			}
			v := strings.TrimSpace(row[c-1])
			if v == "" {
				continue
			}
			if joined, ok := period.JoinContinuation(v, g.Cell(hr+1, c)); ok {
				v = joined
				consumed[[2]int{hr + 1, c}] = true
			}
			norm := fl.periods.Normalize(v)
			if dates[c] == "" {
				dates[c] = norm
			} else {
				dates[c] = dates[c] + " " + norm
			}
		}
	}
	return dates
}

func writeCSV[T any](path string, records []T) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := gocsv.Marshal(&records, out); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}
