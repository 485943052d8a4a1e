package detect

import (
	"strings"

	"filingcli/internal/sheet"
)

// TableBlock is one table occurrence inside a worksheet: an optional metadata
// preamble, up to four header rows, and a contiguous run of data rows. Row
// numbers are 1-indexed into the worksheet the block was detected on. A block
// is a snapshot; any structural mutation of the sheet makes every block
// stale, and callers must re-run detection instead of patching row ranges.
type TableBlock struct {
	Sheet string

	// MetaStart/MetaEnd bound the metadata preamble; both zero when the
	// block has none (unit-indicator and fallback blocks).
	MetaStart, MetaEnd int

	// MetaShared marks a sibling sub-block whose preamble rows belong to
	// the first sibling. Shared rows must never be cleared with the block.
	MetaShared bool

	// HeaderStart/HeaderEnd bound the column-header rows; both zero for a
	// pure continuation block with no header of its own.
	HeaderStart, HeaderEnd int

	DataStart, DataEnd int

	// HeaderRows are the raw cells of the header rows.
	HeaderRows [][]string

	// RowLabels are the normalized first-column labels of every data row,
	// in order.
	RowLabels []string

	Section string
	Title   string

	Fingerprint *Fingerprint
}

// Start returns the first worksheet row the block claims.
func (b *TableBlock) Start() int {
	if b.MetaStart > 0 {
		return b.MetaStart
	}
	if b.HeaderStart > 0 {
		return b.HeaderStart
	}
	return b.DataStart
}

// OwnStart returns the first row the block exclusively owns: a shared
// metadata preamble is skipped. Clearing or relocating a block must use this
// bound so sibling sub-blocks never take the preamble, the first sibling's
// header, or its data with them.
func (b *TableBlock) OwnStart() int {
	if b.MetaStart > 0 && !b.MetaShared {
		return b.MetaStart
	}
	if b.HeaderStart > 0 {
		return b.HeaderStart
	}
	return b.DataStart
}

// End returns the last worksheet row the block claims.
func (b *TableBlock) End() int { return b.DataEnd }

// DataRows returns the 1-indexed rows holding data, skipping blanks.
func (b *TableBlock) DataRows(g *sheet.Grid) []int {
	var rows []int
	for r := b.DataStart; r <= b.DataEnd; r++ {
		if !g.RowBlank(r) {
			rows = append(rows, r)
		}
	}
	return rows
}

// HasHeader reports whether the block carries its own column-header rows.
func (b *TableBlock) HasHeader() bool { return b.HeaderStart > 0 }

// headerSignature flattens the header rows into one comparable string.
func (b *TableBlock) headerSignature() string {
	var parts []string
	for _, row := range b.HeaderRows {
		for _, c := range row {
			if v := sheet.NormalizeValue(c); v != "" {
				parts = append(parts, v)
			}
		}
		parts = append(parts, "/")
	}
	return strings.Join(parts, "|")
}

// SameHeader reports whether two blocks carry identical column-header rows.
func (b *TableBlock) SameHeader(other *TableBlock) bool {
	return b.headerSignature() == other.headerSignature()
}
