package merge

import (
	"fmt"
	"log/slog"
	"strings"

	"filingcli/internal/detect"
	"filingcli/internal/period"
	"filingcli/internal/sheet"
)

// Kind distinguishes the two merge directions.
type Kind string

const (
	// Horizontal combines blocks with identical row labels by
	// concatenating period columns.
	Horizontal Kind = "horizontal"
	// Vertical combines physical continuations of one logical table by
	// concatenating data rows.
	Vertical Kind = "vertical"
)

// Group is a set of two or more blocks selected for a single merge.
type Group struct {
	Kind   Kind
	Blocks []*detect.TableBlock
}

// Stats summarizes what one merge execution did to the sheet.
type Stats struct {
	MergedBlocks   int
	CopiedColumns  int
	DroppedColumns int
	DroppedCells   int
	AppendedRows   int
}

// Engine decides which detected blocks belong together and executes merges.
// Blocks the engine leaves ungrouped are the Split/Resequencer's problem,
// not an error.
type Engine struct {
	periods   period.Normalizer
	threshold float64
	logger    *slog.Logger
}

// NewEngine builds a merge engine. threshold is the minimum fingerprint
// similarity for a vertical merge; 0.75 is the calibrated default.
func NewEngine(n period.Normalizer, threshold float64, logger *slog.Logger) *Engine {
	if threshold <= 0 {
		threshold = 0.75
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{periods: n, threshold: threshold, logger: logger}
}

// Plan groups the ordered blocks of one worksheet into merge groups.
// Horizontal grouping wins over vertical when both would apply; blocks in no
// group are omitted from the result.
func (e *Engine) Plan(blocks []*detect.TableBlock) []Group {
	used := make([]bool, len(blocks))
	var groups []Group

	// Horizontal: identical normalized row-label sequences.
	byLabels := map[string][]int{}
	var keys []string
	for i, b := range blocks {
		if len(b.RowLabels) == 0 {
			continue
		}
		k := strings.Join(b.RowLabels, "\x1f")
		if len(byLabels[k]) == 0 {
			keys = append(keys, k)
		}
		byLabels[k] = append(byLabels[k], i)
	}
	for _, k := range keys {
		idx := byLabels[k]
		if len(idx) < 2 {
			continue
		}
		g := Group{Kind: Horizontal}
		for _, i := range idx {
			g.Blocks = append(g.Blocks, blocks[i])
			used[i] = true
		}
		groups = append(groups, g)
	}

	// Vertical: adjacent continuations of the same logical table.
	for i := 0; i < len(blocks); i++ {
		if used[i] {
			continue
		}
		head := blocks[i]
		g := Group{Kind: Vertical, Blocks: []*detect.TableBlock{head}}
		j := i + 1
		for j < len(blocks) && !used[j] && e.CanMergeVertical(head, blocks[j]) {
			g.Blocks = append(g.Blocks, blocks[j])
			used[j] = true
			j++
		}
		if len(g.Blocks) >= 2 {
			used[i] = true
			groups = append(groups, g)
		}
	}

	return groups
}

// Apply executes one merge group on the grid. Every block involved is stale
// afterwards; the caller must re-detect before touching the sheet again.
func (e *Engine) Apply(g *sheet.Grid, grp Group) (Stats, error) {
	if len(grp.Blocks) < 2 {
		return Stats{}, fmt.Errorf("merge group needs at least 2 blocks, got %d", len(grp.Blocks))
	}
	switch grp.Kind {
	case Horizontal:
		return e.applyHorizontal(g, grp.Blocks)
	case Vertical:
		return e.applyVertical(g, grp.Blocks)
	default:
		return Stats{}, fmt.Errorf("unknown merge kind %q", grp.Kind)
	}
}

// CanMergeHorizontal reports whether two blocks hold the same logical rows
// for different periods: equal-length, element-wise equal row-label
// sequences after normalization.
func CanMergeHorizontal(a, b *detect.TableBlock) bool {
	if len(a.RowLabels) == 0 || len(a.RowLabels) != len(b.RowLabels) {
		return false
	}
	for i := range a.RowLabels {
		if a.RowLabels[i] != b.RowLabels[i] {
			return false
		}
	}
	return true
}

// CanMergeVertical reports whether tail continues head: identical header
// rows (or none on the tail), Section and Title equal after suffix
// stripping, and fingerprint similarity at or above the engine threshold.
func (e *Engine) CanMergeVertical(head, tail *detect.TableBlock) bool {
	if tail.HasHeader() && !head.SameHeader(tail) {
		return false
	}
	if CanonicalTitle(head.Title) != CanonicalTitle(tail.Title) {
		return false
	}
	if sheet.NormalizeLabel(head.Section) != sheet.NormalizeLabel(tail.Section) {
		return false
	}
	sim := detect.Similarity(head.Fingerprint, tail.Fingerprint)
	if sim < e.threshold {
		e.logger.Debug("vertical merge rejected by fingerprint similarity",
			slog.String("sheet", head.Sheet),
			slog.String("title", head.Title),
			slog.Float64("similarity", sim),
			slog.Float64("threshold", e.threshold))
		return false
	}
	return true
}
