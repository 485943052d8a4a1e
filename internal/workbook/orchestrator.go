package workbook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"filingcli/internal/config"
	"filingcli/internal/detect"
	"filingcli/internal/infrastructure"
	"filingcli/internal/merge"
	"filingcli/internal/period"
	"filingcli/internal/registry"
	"filingcli/internal/sheet"
	"filingcli/internal/split"
)

// Orchestrator runs the full single-workbook pipeline: per worksheet, detect
// blocks, merge what belongs together, split what does not, and keep the
// Index registry in step. Worksheets are processed strictly sequentially
// because splits mutate sheet ordering and the shared Index.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracer   trace.Tracer
	detector *detect.Detector
	engine   *merge.Engine
	splitter *split.Resequencer
}

// New builds an orchestrator. Construct one per batch run and discard it
// afterwards; it carries no cross-run state.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := period.Normalizer{AnnualContext: cfg.Merge.AnnualContext}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		tracer:   infrastructure.Tracer(),
		detector: detect.NewDetector(n, cfg.Merge.MaxHeaderRows, logger),
		engine:   merge.NewEngine(n, cfg.Merge.VerticalThreshold, logger),
		splitter: split.NewResequencer(n, logger),
	}
}

// Process loads srcPath, runs the pipeline over every non-Index worksheet,
// and saves the result to dstPath. The source file is never written.
func (o *Orchestrator) Process(ctx context.Context, srcPath, dstPath string) (*Report, error) {
	ctx, span := o.tracer.Start(ctx, "workbook.process",
		trace.WithAttributes(attribute.String("workbook.source", srcPath)))
	defer span.End()

	f, err := excelize.OpenFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", srcPath, err)
	}
	defer f.Close()

	entries, err := registry.Read(f)
	if err != nil {
		o.logger.WarnContext(ctx, "workbook has no readable Index sheet",
			slog.String("workbook", srcPath),
			slog.String("error", err.Error()))
		entries = nil
	}

	report := &Report{Source: srcPath, Destination: dstPath}

	// Snapshot the sheet list up front: splits append sheets that are
	// already canonical and must not be reprocessed in this pass.
	var names []string
	for _, name := range f.GetSheetList() {
		if name != registry.SheetName {
			names = append(names, name)
		}
	}

	for _, name := range names {
		rep, err := o.processSheet(ctx, f, name, &entries)
		if err != nil {
			return report, fmt.Errorf("failed to process sheet %q: %w", name, err)
		}
		report.Sheets = append(report.Sheets, rep)
	}

	entries = registry.AssignTableIDs(entries)
	if len(entries) > 0 {
		if err := registry.Write(f, entries); err != nil {
			return report, err
		}
	}

	if err := f.SaveAs(dstPath); err != nil {
		return report, fmt.Errorf("failed to save workbook to %s: %w", dstPath, err)
	}

	o.logger.InfoContext(ctx, "workbook processed",
		slog.String("source", srcPath),
		slog.String("destination", dstPath),
		slog.Int("sheets", len(report.Sheets)),
		slog.String("status", string(report.Status())))
	return report, nil
}

// processSheet runs detect/merge to a fixed point, then splits whatever is
// left, re-detecting from scratch after every structural mutation.
func (o *Orchestrator) processSheet(ctx context.Context, f *excelize.File, name string, entries *[]registry.Entry) (SheetReport, error) {
	ctx, span := o.tracer.Start(ctx, "sheet.process",
		trace.WithAttributes(attribute.String("sheet.name", name)))
	defer span.End()

	rep := SheetReport{Sheet: name}

	g, err := sheet.Load(f, name)
	if err != nil {
		return rep, err
	}
	blocks := o.detector.Detect(g)
	rep.Blocks = len(blocks)
	rep.PrePoints = countDataPoints(g, blocks)

	if want := registry.CountByLocation(*entries)[name]; want > 0 && want != len(blocks) {
		// Diagnostic only: detection is ground truth, the registry is
		// rewritten to match at the end.
		note := fmt.Sprintf("index lists %d tables, detection found %d", want, len(blocks))
		rep.Notes = append(rep.Notes, note)
		o.logger.WarnContext(ctx, "index count mismatch",
			slog.String("sheet", name),
			slog.Int("index_rows", want),
			slog.Int("detected_blocks", len(blocks)))
	}

	// Merge until no group qualifies. Blocks go stale on every apply, so
	// re-detect each round instead of patching row ranges.
	for {
		groups := o.engine.Plan(blocks)
		if len(groups) == 0 {
			break
		}
		stats, err := o.engine.Apply(g, groups[0])
		if err != nil {
			return rep, err
		}
		switch groups[0].Kind {
		case merge.Horizontal:
			rep.HorizontalMerges++
		case merge.Vertical:
			rep.VerticalMerges++
		}
		rep.DroppedCells += stats.DroppedCells

		g, err = sheet.Load(f, name)
		if err != nil {
			return rep, err
		}
		blocks = o.detector.Detect(g)
	}

	// Blocks that still look alike here were rejected by a merge gate
	// (title, labels, headers); flag them for an operator instead of
	// forcing anything.
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			sim := detect.Similarity(blocks[i].Fingerprint, blocks[j].Fingerprint)
			if sim < o.cfg.Merge.DiagnosticThreshold {
				continue
			}
			note := fmt.Sprintf("tables %q and %q look alike (similarity %.2f) but did not merge",
				blocks[i].Title, blocks[j].Title, sim)
			rep.Notes = append(rep.Notes, note)
			o.logger.WarnContext(ctx, "similar tables left unmerged",
				slog.String("sheet", name),
				slog.String("first", blocks[i].Title),
				slog.String("second", blocks[j].Title),
				slog.Float64("similarity", sim),
				slog.Float64("threshold", o.cfg.Merge.DiagnosticThreshold))
		}
	}

	finalSheets := []string{name}
	if len(blocks) > 1 {
		updated, res, err := o.splitter.Split(f, g, blocks, *entries)
		if err != nil {
			return rep, err
		}
		*entries = updated
		finalSheets = res.Sheets
		rep.SplitSheets = res.Created
	} else {
		o.collapseIndexRows(entries, name)
	}

	for _, fs := range finalSheets {
		fg, err := sheet.Load(f, fs)
		if err != nil {
			return rep, err
		}
		rep.PostPoints += countDataPoints(fg, o.detector.Detect(fg))
	}

	validate(&rep)
	if rep.Status != StatusValid {
		o.logger.WarnContext(ctx, "data point count changed during processing",
			slog.String("sheet", name),
			slog.Int("pre", rep.PrePoints),
			slog.Int("post", rep.PostPoints),
			slog.Int("dropped_duplicates", rep.DroppedCells),
			slog.String("status", string(rep.Status)))
	}
	return rep, nil
}

// collapseIndexRows reduces multiple registry rows pointing at a sheet that
// ended up holding a single table to one row. Merges shrink the registry;
// only splits grow it.
func (o *Orchestrator) collapseIndexRows(entries *[]registry.Entry, name string) {
	var out []registry.Entry
	seen := false
	for _, e := range *entries {
		if e.LocationID == name {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, e)
	}
	*entries = out
}

// countDataPoints counts non-empty cells in the non-label columns of every
// block's data rows. This is the quantity merges and splits must conserve,
// minus deliberately dropped duplicate columns.
func countDataPoints(g *sheet.Grid, blocks []*detect.TableBlock) int {
	n := 0
	for _, b := range blocks {
		for _, r := range b.DataRows(g) {
			row := g.Row(r)
			for c := 1; c < len(row); c++ {
				if row[c] != "" {
					n++
				}
			}
		}
	}
	return n
}
