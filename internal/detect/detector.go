package detect

import (
	"log/slog"
	"strings"

	"filingcli/internal/period"
	"filingcli/internal/sheet"
)

// Detector segments a worksheet into TableBlocks. Detection is read-only and
// repeatable: the same grid always yields the same blocks.
type Detector struct {
	periods       period.Normalizer
	maxHeaderRows int
	logger        *slog.Logger
}

// NewDetector builds a detector. maxHeaderRows caps how many consecutive
// header rows a block may claim above its data (the extraction stage never
// emits more than 4 levels).
func NewDetector(n period.Normalizer, maxHeaderRows int, logger *slog.Logger) *Detector {
	if maxHeaderRows <= 0 {
		maxHeaderRows = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{periods: n, maxHeaderRows: maxHeaderRows, logger: logger}
}

// Detect returns the ordered blocks of a worksheet. Every non-blank row
// belongs to exactly one block's range or to the gap between blocks (blank
// separators only); block ranges never overlap.
func (d *Detector) Detect(g *sheet.Grid) []*TableBlock {
	last := g.LastNonBlankRow()
	if last == 0 {
		return nil
	}

	titleRows := d.titleRows(g, last)
	var blocks []*TableBlock
	switch {
	case len(titleRows) > 0:
		blocks = d.detectByTitles(g, titleRows, last)
	default:
		if unitRows := d.unitRows(g, last); len(unitRows) > 0 {
			blocks = d.detectByUnits(g, unitRows, last)
		} else {
			// DetectionAmbiguity: no markers at all. Treat the whole
			// non-empty region as one block and keep going.
			d.logger.Warn("no table markers found, treating sheet as one block",
				slog.String("sheet", g.Name()))
			blocks = []*TableBlock{d.buildBlock(g, 0, 0, firstNonBlank(g, 1, last), last)}
		}
	}

	var out []*TableBlock
	for _, b := range blocks {
		out = append(out, d.splitMidTableHeaders(g, b)...)
	}
	return out
}

// titleRows returns rows whose first cell carries the title marker.
func (d *Detector) titleRows(g *sheet.Grid, last int) []int {
	var rows []int
	for r := 1; r <= last; r++ {
		if strings.HasPrefix(strings.ToLower(g.Cell(r, 1)), strings.ToLower(sheet.MarkerTitle)) {
			rows = append(rows, r)
		}
	}
	return rows
}

// unitRows returns rows that look like unit-indicator block openers: a
// currency-unit cell in column 1 co-occurring with period-like values.
func (d *Detector) unitRows(g *sheet.Grid, last int) []int {
	var rows []int
	for r := 1; r <= last; r++ {
		if !sheet.IsUnitIndicator(g.Cell(r, 1)) {
			continue
		}
		if d.rowHasPeriod(g, r) || d.rowHasPeriod(g, r+1) {
			rows = append(rows, r)
		}
	}
	return rows
}

func (d *Detector) rowHasPeriod(g *sheet.Grid, r int) bool {
	row := g.Row(r)
	for c := 1; c < len(row); c++ {
		v := strings.TrimSpace(row[c])
		if v == "" {
			continue
		}
		if joined, ok := period.JoinContinuation(v, g.Cell(r+1, c+1)); ok {
			v = joined
		}
		if d.periods.Recognized(v) {
			return true
		}
	}
	return false
}

func (d *Detector) detectByTitles(g *sheet.Grid, titleRows []int, last int) []*TableBlock {
	var blocks []*TableBlock
	for i, t := range titleRows {
		metaEnd := d.findMetaEnd(g, t, titleRows, i, last)
		metaStart := d.findMetaStart(g, t)

		bodyStart := firstNonBlank(g, metaEnd+1, last)
		bodyEnd := last
		if i+1 < len(titleRows) {
			// The next block's metadata begins with its own backward
			// scan boundary; everything before that is ours.
			nextMetaStart := d.findMetaStart(g, titleRows[i+1])
			bodyEnd = lastNonBlank(g, metaEnd+1, nextMetaStart-1)
		}
		if bodyStart == 0 || bodyStart > bodyEnd {
			bodyStart, bodyEnd = 0, 0
		}
		blocks = append(blocks, d.buildBlock(g, metaStart, metaEnd, bodyStart, bodyEnd))
	}
	return blocks
}

func (d *Detector) detectByUnits(g *sheet.Grid, unitRows []int, last int) []*TableBlock {
	var blocks []*TableBlock
	for i, u := range unitRows {
		end := last
		if i+1 < len(unitRows) {
			end = lastNonBlank(g, u, unitRows[i+1]-1)
		}
		blocks = append(blocks, d.buildBlock(g, 0, 0, u, end))
	}
	return blocks
}

// findMetaEnd locates the Source(s) row that closes the preamble opened by
// the title row. Without one the title row itself closes the preamble.
func (d *Detector) findMetaEnd(g *sheet.Grid, titleRow int, titleRows []int, i, last int) int {
	limit := last
	if i+1 < len(titleRows) {
		limit = titleRows[i+1] - 1
	}
	for r := titleRow; r <= limit; r++ {
		if strings.HasPrefix(strings.ToLower(g.Cell(r, 1)), strings.ToLower(sheet.MarkerSources)) {
			return r
		}
	}
	return titleRow
}

// findMetaStart scans backward from the title row until a back-to-index
// marker (inclusive) or a non-metadata, non-blank row (exclusive).
func (d *Detector) findMetaStart(g *sheet.Grid, titleRow int) int {
	start := titleRow
	for r := titleRow - 1; r >= 1; r-- {
		first := g.Cell(r, 1)
		switch {
		case strings.EqualFold(first, sheet.MarkerBackToIndex):
			return r
		case g.RowBlank(r) || sheet.IsMetadataMarker(first):
			start = r
		default:
			return start
		}
	}
	return start
}

// buildBlock assembles a TableBlock from resolved boundaries, peeling header
// rows off the top of the body.
func (d *Detector) buildBlock(g *sheet.Grid, metaStart, metaEnd, bodyStart, bodyEnd int) *TableBlock {
	b := &TableBlock{
		Sheet:     g.Name(),
		MetaStart: metaStart,
		MetaEnd:   metaEnd,
		DataStart: bodyStart,
		DataEnd:   bodyEnd,
	}

	if bodyStart > 0 {
		r := bodyStart
		for r <= bodyEnd && r-bodyStart < d.maxHeaderRows {
			if sheet.Classify(g.Row(r), d.periods) != sheet.RowHeader {
				break
			}
			r++
		}
		if r > bodyStart {
			b.HeaderStart = bodyStart
			b.HeaderEnd = r - 1
			b.DataStart = r
		}
	}

	for hr := b.HeaderStart; hr > 0 && hr <= b.HeaderEnd; hr++ {
		b.HeaderRows = append(b.HeaderRows, g.Row(hr))
	}
	for _, r := range b.DataRows(g) {
		b.RowLabels = append(b.RowLabels, sheet.NormalizeLabel(g.Cell(r, 1)))
	}

	if metaStart > 0 {
		b.Fingerprint = ExtractFingerprint(g, metaStart, metaEnd, d.periods)
		b.Title = metadataValue(g, metaStart, metaEnd, sheet.MarkerTitle)
		b.Section = metadataValue(g, metaStart, metaEnd, sheet.MarkerCategory)
	} else {
		b.Fingerprint = FingerprintFromBlock(g, b, d.periods)
	}
	return b
}

// splitMidTableHeaders finds header and unit-indicator rows buried inside a
// block's data region (continuation pages pasted below the first page) and
// splits the block into sibling sub-blocks sharing the parent's metadata.
func (d *Detector) splitMidTableHeaders(g *sheet.Grid, b *TableBlock) []*TableBlock {
	if b.DataStart == 0 {
		return []*TableBlock{b}
	}

	var cuts []int
	seenData := false
	for r := b.DataStart; r <= b.DataEnd; r++ {
		if g.RowBlank(r) {
			continue
		}
		first := g.Cell(r, 1)
		headerish := (first == "" && d.rowHasPeriod(g, r)) ||
			(sheet.IsUnitIndicator(first) && (d.rowHasPeriod(g, r) || d.rowHasPeriod(g, r+1)))
		if headerish {
			if seenData {
				cuts = append(cuts, r)
			}
			continue
		}
		seenData = true
	}
	if len(cuts) == 0 {
		return []*TableBlock{b}
	}

	d.logger.Debug("splitting block at mid-table headers",
		slog.String("sheet", b.Sheet),
		slog.Int("cuts", len(cuts)))

	bounds := append([]int{b.DataStart}, cuts...)
	var out []*TableBlock
	for i, start := range bounds {
		end := b.DataEnd
		if i+1 < len(bounds) {
			end = lastNonBlank(g, start, bounds[i+1]-1)
		}
		sub := d.buildBlock(g, 0, 0, start, end)
		sub.MetaStart, sub.MetaEnd = b.MetaStart, b.MetaEnd
		// Every sibling past the first borrows the preamble; marking it
		// keeps clear and relocate operations off those rows.
		sub.MetaShared = i > 0
		sub.Section, sub.Title = b.Section, b.Title
		if b.Fingerprint != nil {
			sub.Fingerprint = b.Fingerprint
		}
		if i == 0 {
			// The first sub-block keeps the parent's header shape.
			sub.HeaderStart, sub.HeaderEnd = b.HeaderStart, b.HeaderEnd
			sub.HeaderRows = b.HeaderRows
		}
		out = append(out, sub)
	}
	return out
}

func firstNonBlank(g *sheet.Grid, from, to int) int {
	for r := from; r <= to; r++ {
		if !g.RowBlank(r) {
			return r
		}
	}
	return 0
}

func lastNonBlank(g *sheet.Grid, from, to int) int {
	for r := to; r >= from; r-- {
		if !g.RowBlank(r) {
			return r
		}
	}
	return 0
}
