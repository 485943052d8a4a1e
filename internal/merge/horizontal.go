package merge

import (
	"log/slog"
	"sort"
	"strings"

	"filingcli/internal/detect"
	"filingcli/internal/period"
	"filingcli/internal/sheet"
)

// applyHorizontal copies each later block's non-label columns into the
// earliest block, skipping columns whose content signature already exists in
// the destination, then clears the source blocks and rewrites the
// destination's period metadata to the union of all merged blocks.
func (e *Engine) applyHorizontal(g *sheet.Grid, blocks []*detect.TableBlock) (Stats, error) {
	dest := blocks[0]
	stats := Stats{MergedBlocks: len(blocks)}

	seen := map[string]bool{}
	nextCol := 1
	for c := 2; ; c++ {
		sig, empty := e.columnSignature(g, dest, c)
		if empty && c > blockWidth(g, dest) {
			nextCol = c
			break
		}
		if !empty {
			seen[sig] = true
		}
	}

	for _, src := range blocks[1:] {
		width := blockWidth(g, src)
		for c := 2; c <= width; c++ {
			sig, empty := e.columnSignature(g, src, c)
			if empty {
				continue
			}
			if seen[sig] {
				stats.DroppedColumns++
				stats.DroppedCells += columnCellCount(g, src, c)
				e.logger.Debug("dropping duplicate period column",
					slog.String("sheet", src.Sheet),
					slog.Int("column", c))
				continue
			}
			if err := e.copyColumn(g, src, dest, c, nextCol); err != nil {
				return stats, err
			}
			seen[sig] = true
			stats.CopiedColumns++
			nextCol++
		}
		if err := g.ClearRows(src.OwnStart(), src.End()); err != nil {
			return stats, err
		}
	}

	if err := e.rewriteMetadata(g, dest, blocks); err != nil {
		return stats, err
	}
	return stats, nil
}

// columnSignature is the tuple of all normalized header and data cell values
// of one block column. Joined-continuation headers ("At June 30" over
// "2024") hash the same as their single-cell form.
func (e *Engine) columnSignature(g *sheet.Grid, b *detect.TableBlock, col int) (string, bool) {
	var parts []string
	empty := true
	for _, v := range e.headerValues(g, b, col) {
		if v != "" {
			empty = false
		}
		parts = append(parts, sheet.NormalizeValue(v))
	}
	for _, r := range b.DataRows(g) {
		v := g.Cell(r, col)
		if v != "" {
			empty = false
		}
		parts = append(parts, sheet.NormalizeValue(v))
	}
	return strings.Join(parts, "\x1f"), empty
}

// headerValues returns one value per header row for a column, with period
// normalization applied and split continuations rejoined. A year cell
// consumed by a join yields an empty slot so it is not counted twice.
func (e *Engine) headerValues(g *sheet.Grid, b *detect.TableBlock, col int) []string {
	var out []string
	skip := false
	for r := b.HeaderStart; r > 0 && r <= b.HeaderEnd; r++ {
		if skip {
			out = append(out, "")
			skip = false
			continue
		}
		v := g.Cell(r, col)
		if r < b.HeaderEnd {
			if joined, ok := period.JoinContinuation(v, g.Cell(r+1, col)); ok {
				v = joined
				skip = true
			}
		}
		out = append(out, e.periods.Normalize(v))
	}
	return out
}

// copyColumn moves header and data cells of src column c into dest column
// destCol, aligning data rows by position (row-label sequences are equal by
// the horizontal merge precondition).
func (e *Engine) copyColumn(g *sheet.Grid, src, dest *detect.TableBlock, c, destCol int) error {
	srcHeaders := e.headerValues(g, src, c)
	for i, v := range srcHeaders {
		if v == "" {
			continue
		}
		row := dest.HeaderStart + i
		if row > dest.HeaderEnd {
			row = dest.HeaderEnd
		}
		if row == 0 {
			break
		}
		if err := g.SetCell(row, destCol, v); err != nil {
			return err
		}
	}

	srcRows := src.DataRows(g)
	destRows := dest.DataRows(g)
	for i, sr := range srcRows {
		if i >= len(destRows) {
			break
		}
		v := g.Cell(sr, c)
		if v == "" {
			continue
		}
		if err := g.SetCell(destRows[i], destCol, v); err != nil {
			return err
		}
	}
	return nil
}

// rewriteMetadata rebuilds the destination's Periods and Source(s) preamble
// rows from the union of every merged block's fingerprint: period types
// deduplicated, years sorted descending, sources deduplicated.
func (e *Engine) rewriteMetadata(g *sheet.Grid, dest *detect.TableBlock, blocks []*detect.TableBlock) error {
	if dest.MetaStart == 0 {
		return nil
	}

	types := map[string]bool{}
	years := map[string]bool{}
	sources := map[string]bool{}
	for _, b := range blocks {
		if b.Fingerprint == nil {
			continue
		}
		for k := range b.Fingerprint.PeriodTypes {
			types[k] = true
		}
		for y := range b.Fingerprint.Years {
			years[y] = true
		}
		for s := range b.Fingerprint.Sources {
			sources[s] = true
		}
	}

	yearList := sortedKeys(years)
	sort.Sort(sort.Reverse(sort.StringSlice(yearList)))

	for r := dest.MetaStart; r <= dest.MetaEnd; r++ {
		first := strings.ToLower(g.Cell(r, 1))
		switch {
		case strings.HasPrefix(first, strings.ToLower(sheet.MarkerPeriods)):
			if err := e.writeMetadataRow(g, r, append(sortedKeys(types), yearList...)); err != nil {
				return err
			}
		case strings.HasPrefix(first, strings.ToLower(sheet.MarkerSources)):
			if err := e.writeMetadataRow(g, r, sortedKeys(sources)); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMetadataRow replaces a metadata row's values (columns 2..n) with the
// given list.
func (e *Engine) writeMetadataRow(g *sheet.Grid, row int, values []string) error {
	width := len(g.Row(row))
	for c := 2; c <= width; c++ {
		if err := g.SetCell(row, c, ""); err != nil {
			return err
		}
	}
	for i, v := range values {
		if err := g.SetCell(row, i+2, v); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// blockWidth is the widest row inside the block's header+data range.
func blockWidth(g *sheet.Grid, b *detect.TableBlock) int {
	width := 0
	start := b.HeaderStart
	if start == 0 {
		start = b.DataStart
	}
	for r := start; r > 0 && r <= b.DataEnd; r++ {
		if n := len(g.Row(r)); n > width {
			width = n
		}
	}
	return width
}

func columnCellCount(g *sheet.Grid, b *detect.TableBlock, col int) int {
	n := 0
	for _, r := range b.DataRows(g) {
		if g.Cell(r, col) != "" {
			n++
		}
	}
	return n
}
