package split

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"filingcli/internal/detect"
	"filingcli/internal/period"
	"filingcli/internal/registry"
	"filingcli/internal/sheet"
)

// Resequencer relocates blocks that could not merge onto worksheets of
// their own and rewrites the Index registry so every physical sheet maps to
// one stable identifier.
type Resequencer struct {
	periods period.Normalizer
	logger  *slog.Logger
}

// NewResequencer builds a resequencer.
func NewResequencer(n period.Normalizer, logger *slog.Logger) *Resequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resequencer{periods: n, logger: logger}
}

// Result reports what a split did.
type Result struct {
	// Sheets are the resulting worksheet names in order; the first is the
	// renamed original.
	Sheets []string
	// Created counts newly added worksheets.
	Created int
}

var sheetSuffix = regexp.MustCompile(`_(\d+)$`)

func baseSheetName(name string) string {
	return sheetSuffix.ReplaceAllString(name, "")
}

// Split relocates every block after the first to a dedicated worksheet
// named {base}_2, {base}_3, ... placed immediately after its predecessor,
// renames the original to {base}_1, and replaces the original sheet's
// registry rows with one row per resulting sheet. entries is the full
// registry; the updated full registry is returned with Table_IDs
// reassigned. With fewer than two blocks the sheet is left untouched.
func (r *Resequencer) Split(f *excelize.File, g *sheet.Grid, blocks []*detect.TableBlock, entries []registry.Entry) ([]registry.Entry, Result, error) {
	original := g.Name()
	if len(blocks) < 2 {
		return entries, Result{Sheets: []string{original}}, nil
	}

	base := baseSheetName(original)
	taken := func(name string) bool {
		idx, err := f.GetSheetIndex(name)
		return err == nil && idx >= 0
	}

	// Rename the original to {base}_1 via the two-pass scheme so a
	// leftover {base}_1 from an earlier run cannot collide mid-flight.
	finalNames, err := TwoPassRename(
		map[string]string{original: fmt.Sprintf("%s_1", base)},
		taken,
		func(oldName, newName string) error { return f.SetSheetName(oldName, newName) },
		r.logger,
	)
	if err != nil {
		return entries, Result{}, fmt.Errorf("failed to rename %q: %w", original, err)
	}
	firstName := finalNames[original]

	g, err = sheet.Load(f, firstName)
	if err != nil {
		return entries, Result{}, err
	}

	res := Result{Sheets: []string{firstName}}
	prev := firstName
	for i, b := range blocks[1:] {
		name := uniqueSheetName(taken, fmt.Sprintf("%s_%d", base, i+2), r.logger)
		if _, err := f.NewSheet(name); err != nil {
			return entries, res, fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
		if err := r.relocateBlock(f, g, b, blocks[0], name); err != nil {
			return entries, res, err
		}
		if err := placeSheetAfter(f, name, prev); err != nil {
			return entries, res, fmt.Errorf("failed to order sheet %q: %w", name, err)
		}
		if err := g.ClearRows(b.OwnStart(), b.End()); err != nil {
			return entries, res, err
		}
		res.Sheets = append(res.Sheets, name)
		res.Created++
		prev = name
	}

	r.logger.Info("split sheet into per-table worksheets",
		slog.String("sheet", original),
		slog.Int("blocks", len(blocks)),
		slog.Int("created", res.Created))

	entries = r.rewriteEntries(entries, original, blocks, res.Sheets)
	return entries, res, nil
}

// relocateBlock copies a block to its new sheet: the shared metadata
// preamble first, then the block's header and data rows. The preamble's
// Periods row is recomputed from the block's own header cells, since the
// shared summary may describe sibling blocks' periods too.
func (r *Resequencer) relocateBlock(f *excelize.File, g *sheet.Grid, b, parent *detect.TableBlock, name string) error {
	write := func(row int, cells []string) error {
		for c, v := range cells {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, v); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", name, cell, err)
			}
		}
		return nil
	}

	row := 1
	metaStart, metaEnd := b.MetaStart, b.MetaEnd
	if metaStart == 0 {
		metaStart, metaEnd = parent.MetaStart, parent.MetaEnd
	}
	for mr := metaStart; mr > 0 && mr <= metaEnd; mr++ {
		cells := g.Row(mr)
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(first(cells))), strings.ToLower(sheet.MarkerPeriods)) {
			cells = append([]string{sheet.MarkerPeriods}, r.blockPeriods(g, b)...)
		}
		if err := write(row, cells); err != nil {
			return err
		}
		row++
	}

	start := b.HeaderStart
	if start == 0 {
		start = b.DataStart
	}
	for sr := start; sr > 0 && sr <= b.DataEnd; sr++ {
		if err := write(row, g.Row(sr)); err != nil {
			return err
		}
		row++
	}
	return nil
}

// blockPeriods derives the recomputed period summary from a block's own
// header cells.
func (r *Resequencer) blockPeriods(g *sheet.Grid, b *detect.TableBlock) []string {
	seen := map[string]bool{}
	var out []string
	for hr := b.HeaderStart; hr > 0 && hr <= b.HeaderEnd; hr++ {
		row := g.Row(hr)
		for c := 1; c < len(row); c++ {
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			if joined, ok := period.JoinContinuation(v, g.Cell(hr+1, c+1)); ok {
				v = joined
			}
			if code, ok := r.periods.Parse(v); ok {
				s := code.String()
				if !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// rewriteEntries replaces the original sheet's registry rows with one row
// per resulting sheet and reassigns Table_IDs.
func (r *Resequencer) rewriteEntries(entries []registry.Entry, original string, blocks []*detect.TableBlock, sheets []string) []registry.Entry {
	var template registry.Entry
	var kept []registry.Entry
	found := false
	for _, e := range entries {
		if e.LocationID == original {
			if !found {
				template = e
				found = true
			}
			continue
		}
		kept = append(kept, e)
	}

	for i, name := range sheets {
		e := template
		e.LocationID = name
		e.Link = fmt.Sprintf("#%s!A1", name)
		if i < len(blocks) {
			if blocks[i].Section != "" {
				e.Section = blocks[i].Section
			}
			if blocks[i].Title != "" {
				e.Title = blocks[i].Title
			}
		}
		if e.Section != template.Section || e.Title != template.Title {
			// Different logical table: it must not inherit the
			// template's Table_ID.
			e.TableID = ""
		}
		kept = append(kept, e)
	}
	return registry.AssignTableIDs(kept)
}

func uniqueSheetName(taken func(string) bool, want string, logger *slog.Logger) string {
	name := want
	for n := 2; taken(name); n++ {
		name = fmt.Sprintf("%s_%d", want, n)
	}
	if name != want {
		logger.Warn("sheet name collision, using fallback name",
			slog.String("wanted", want),
			slog.String("using", name))
	}
	return name
}

// placeSheetAfter moves a sheet directly after another in the workbook's
// tab order.
func placeSheetAfter(f *excelize.File, name, after string) error {
	list := f.GetSheetList()
	for i, s := range list {
		if s != after {
			continue
		}
		if i+1 < len(list) && list[i+1] != name {
			return f.MoveSheet(name, list[i+1])
		}
		return nil
	}
	return nil
}

func first(cells []string) string {
	if len(cells) == 0 {
		return ""
	}
	return cells[0]
}
