package merge

import (
	"log/slog"

	"filingcli/internal/detect"
	"filingcli/internal/sheet"
)

// applyVertical appends each tail block's data rows directly below the head
// block's last row and clears the rows the tail exclusively owns; a preamble
// shared with a sibling stays in place. Tail header rows are discarded: the
// head already carries the table's header.
func (e *Engine) applyVertical(g *sheet.Grid, blocks []*detect.TableBlock) (Stats, error) {
	head := blocks[0]
	stats := Stats{MergedBlocks: len(blocks)}

	writeRow := head.DataEnd + 1
	for _, tail := range blocks[1:] {
		// Snapshot the tail's data before clearing anything; the write
		// region can overlap the tail's own rows when blocks are packed
		// tightly.
		var copied [][]string
		for _, r := range tail.DataRows(g) {
			copied = append(copied, g.Row(r))
		}

		if err := g.ClearRows(tail.OwnStart(), tail.End()); err != nil {
			return stats, err
		}

		for _, cells := range copied {
			for c, v := range cells {
				if v == "" {
					continue
				}
				if err := g.SetCell(writeRow, c+1, v); err != nil {
					return stats, err
				}
			}
			writeRow++
			stats.AppendedRows++
		}

		e.logger.Debug("vertical merge appended continuation",
			slog.String("sheet", head.Sheet),
			slog.String("title", head.Title),
			slog.Int("rows", len(copied)))
	}

	head.DataEnd = writeRow - 1
	return stats, nil
}
