package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Grid is a 1-indexed snapshot of one worksheet's cell values. Reads come
// from the snapshot; writes go through to the underlying excelize file and
// the snapshot together, so a Grid stays usable across cell-level edits.
// Structural mutations (sheet creation, renames) invalidate the snapshot;
// callers must reload rather than patch row indices.
type Grid struct {
	file *excelize.File
	name string
	rows [][]string
}

// Load snapshots the named worksheet.
func Load(f *excelize.File, name string) (*Grid, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	return &Grid{file: f, name: name, rows: rows}, nil
}

// Name returns the worksheet name this grid was loaded from.
func (g *Grid) Name() string { return g.name }

// File returns the backing workbook.
func (g *Grid) File() *excelize.File { return g.file }

// Rows returns the number of rows in the snapshot.
func (g *Grid) Rows() int { return len(g.rows) }

// Cols returns the widest row length in the snapshot.
func (g *Grid) Cols() int {
	max := 0
	for _, r := range g.rows {
		if len(r) > max {
			max = len(r)
		}
	}
	return max
}

// Cell returns the trimmed value at 1-indexed (row, col), or "" when out of
// range.
func (g *Grid) Cell(row, col int) string {
	if row < 1 || row > len(g.rows) {
		return ""
	}
	r := g.rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return strings.TrimSpace(r[col-1])
}

// Row returns a copy of the 1-indexed row, or nil when out of range.
func (g *Grid) Row(row int) []string {
	if row < 1 || row > len(g.rows) {
		return nil
	}
	out := make([]string, len(g.rows[row-1]))
	copy(out, g.rows[row-1])
	return out
}

// RowBlank reports whether every cell in the row is empty.
func (g *Grid) RowBlank(row int) bool {
	if row < 1 || row > len(g.rows) {
		return true
	}
	for _, c := range g.rows[row-1] {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// LastNonBlankRow returns the highest 1-indexed row holding any value, or 0
// for an empty sheet.
func (g *Grid) LastNonBlankRow() int {
	for r := len(g.rows); r >= 1; r-- {
		if !g.RowBlank(r) {
			return r
		}
	}
	return 0
}

// SetCell writes a value at 1-indexed (row, col) to both the file and the
// snapshot.
func (g *Grid) SetCell(row, col int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid coordinates (%d,%d): %w", row, col, err)
	}
	if err := g.file.SetCellValue(g.name, cell, value); err != nil {
		return fmt.Errorf("failed to set %s!%s: %w", g.name, cell, err)
	}
	for len(g.rows) < row {
		g.rows = append(g.rows, nil)
	}
	for len(g.rows[row-1]) < col {
		g.rows[row-1] = append(g.rows[row-1], "")
	}
	g.rows[row-1][col-1] = value
	return nil
}

// ClearRows blanks every cell in rows [start, end] inclusive.
func (g *Grid) ClearRows(start, end int) error {
	for r := start; r <= end && r <= len(g.rows); r++ {
		width := len(g.rows[r-1])
		for c := 1; c <= width; c++ {
			if g.rows[r-1][c-1] == "" {
				continue
			}
			if err := g.SetCell(r, c, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

// NonBlankCells counts cells carrying a value in rows [start, end].
func (g *Grid) NonBlankCells(start, end int) int {
	n := 0
	for r := start; r <= end && r <= len(g.rows); r++ {
		for _, c := range g.rows[r-1] {
			if strings.TrimSpace(c) != "" {
				n++
			}
		}
	}
	return n
}
