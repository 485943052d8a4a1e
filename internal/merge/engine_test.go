package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"filingcli/internal/detect"
	"filingcli/internal/period"
	"filingcli/internal/sheet"
)

func buildGrid(t *testing.T, rows [][]string) *sheet.Grid {
	t.Helper()
	f := excelize.NewFile()
	name := f.GetSheetName(0)
	for r, row := range rows {
		for c, val := range row {
			if val == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(name, cell, val))
		}
	}
	g, err := sheet.Load(f, name)
	require.NoError(t, err)
	return g
}

func detectBlocks(t *testing.T, g *sheet.Grid) []*detect.TableBlock {
	t.Helper()
	return detect.NewDetector(period.Normalizer{}, 4, nil).Detect(g)
}

func preamble(title, category, periods string) [][]string {
	return [][]string{
		{"Back to Index"},
		{"Category:", category},
		{"Line Items:", "Revenue | Profit"},
		{"Header L3:", "Periods"},
		{"Periods:", periods},
		{"Table Title:", title},
		{"Source(s):", "10-Q p.12"},
	}
}

func TestHorizontalMergeCombinesPeriodColumns(t *testing.T) {
	rows := append([][]string{}, preamble("Deposits", "Banking", "2023")...)
	rows = append(rows,
		[]string{"", "2023"},
		[]string{"Revenue", "100"},
		[]string{"Profit", "40"},
		[]string{},
	)
	rows = append(rows, preamble("Deposits", "Banking", "2024")...)
	rows = append(rows,
		[]string{"", "2024"},
		[]string{"Revenue", "120"},
		[]string{"Profit", "55"},
	)
	g := buildGrid(t, rows)
	blocks := detectBlocks(t, g)
	require.Len(t, blocks, 2)

	e := NewEngine(period.Normalizer{}, 0.75, nil)
	groups := e.Plan(blocks)
	require.Len(t, groups, 1)
	require.Equal(t, Horizontal, groups[0].Kind)

	stats, err := e.Apply(g, groups[0])
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CopiedColumns)
	assert.Equal(t, 0, stats.DroppedColumns)

	// Destination header row now carries both periods.
	dest := blocks[0]
	assert.Equal(t, "Q4-2023", period.Normalizer{}.Normalize(g.Cell(dest.HeaderStart, 2)))
	assert.Equal(t, "Q4-2024", period.Normalizer{}.Normalize(g.Cell(dest.HeaderStart, 3)))

	// Data values preserved positionally.
	dataRows := dest.DataRows(g)
	require.Len(t, dataRows, 2)
	assert.Equal(t, "100", g.Cell(dataRows[0], 2))
	assert.Equal(t, "120", g.Cell(dataRows[0], 3))
	assert.Equal(t, "40", g.Cell(dataRows[1], 2))
	assert.Equal(t, "55", g.Cell(dataRows[1], 3))

	// The source block's rows were cleared.
	for r := blocks[1].Start(); r <= blocks[1].End(); r++ {
		assert.True(t, g.RowBlank(r), "row %d should be cleared", r)
	}

	// Re-detection finds a single block: the fixed point.
	after := detectBlocks(t, g)
	require.Len(t, after, 1)
	assert.Empty(t, NewEngine(period.Normalizer{}, 0.75, nil).Plan(after))
}

func TestHorizontalMergeDropsDuplicateColumns(t *testing.T) {
	rows := append([][]string{}, preamble("Deposits", "Banking", "2024")...)
	rows = append(rows,
		[]string{"", "2024"},
		[]string{"Revenue", "100"},
		[]string{"Profit", "40"},
		[]string{},
	)
	// Same period, same values: a duplicated extraction of the same table.
	rows = append(rows, preamble("Deposits", "Banking", "2024")...)
	rows = append(rows,
		[]string{"", "2024"},
		[]string{"Revenue", "100"},
		[]string{"Profit", "40"},
	)
	g := buildGrid(t, rows)
	blocks := detectBlocks(t, g)
	require.Len(t, blocks, 2)

	e := NewEngine(period.Normalizer{}, 0.75, nil)
	groups := e.Plan(blocks)
	require.Len(t, groups, 1)

	stats, err := e.Apply(g, groups[0])
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CopiedColumns)
	assert.Equal(t, 1, stats.DroppedColumns)
	assert.Equal(t, 2, stats.DroppedCells)

	// Destination kept exactly one period column.
	dest := blocks[0]
	assert.Equal(t, "", g.Cell(dest.HeaderStart, 3))
}

func TestVerticalMergeAppendsContinuation(t *testing.T) {
	rows := append([][]string{}, preamble("Loan Portfolio (Part 1)", "Banking", "At June 30, 2024")...)
	rows = append(rows,
		[]string{"", "At June 30, 2024"},
		[]string{"Consumer", "500"},
		[]string{"Commercial", "700"},
		[]string{},
	)
	rows = append(rows, preamble("Loan Portfolio (Part 2)", "Banking", "At June 30, 2024")...)
	rows = append(rows,
		[]string{"", "At June 30, 2024"},
		[]string{"Agricultural", "120"},
		[]string{"Municipal", "80"},
	)
	g := buildGrid(t, rows)
	blocks := detectBlocks(t, g)
	require.Len(t, blocks, 2)

	e := NewEngine(period.Normalizer{}, 0.75, nil)
	require.True(t, e.CanMergeVertical(blocks[0], blocks[1]))

	groups := e.Plan(blocks)
	require.Len(t, groups, 1)
	require.Equal(t, Vertical, groups[0].Kind)

	stats, err := e.Apply(g, groups[0])
	require.NoError(t, err)
	assert.Equal(t, 2, stats.AppendedRows)

	after := detectBlocks(t, g)
	require.Len(t, after, 1)
	assert.Equal(t, []string{"consumer", "commercial", "agricultural", "municipal"}, after[0].RowLabels)
}

func TestVerticalMergeSiblingsKeepsSharedPreambleAndHeadRows(t *testing.T) {
	// A continuation pasted below the first page repeats the header
	// mid-table, so detection yields sibling sub-blocks that share one
	// preamble. Merging must clear only the tail's own rows.
	rows := append([][]string{}, preamble("Loan Portfolio", "Banking", "At June 30, 2024")...)
	rows = append(rows,
		[]string{"", "At June 30, 2024"},
		[]string{"Consumer", "500"},
		[]string{"Commercial", "700"},
		[]string{"", "At June 30, 2024"},
		[]string{"Agricultural", "120"},
		[]string{"Municipal", "80"},
	)
	g := buildGrid(t, rows)
	blocks := detectBlocks(t, g)
	require.Len(t, blocks, 2)
	require.True(t, blocks[1].MetaShared)

	e := NewEngine(period.Normalizer{}, 0.75, nil)
	groups := e.Plan(blocks)
	require.Len(t, groups, 1)
	require.Equal(t, Vertical, groups[0].Kind)

	stats, err := e.Apply(g, groups[0])
	require.NoError(t, err)
	assert.Equal(t, 2, stats.AppendedRows)

	// The shared preamble and the first sibling's rows are untouched.
	assert.Equal(t, "Table Title:", g.Cell(6, 1))
	assert.Equal(t, "Loan Portfolio", g.Cell(6, 2))
	assert.Equal(t, "Consumer", g.Cell(9, 1))
	assert.Equal(t, "500", g.Cell(9, 2))

	after := detectBlocks(t, g)
	require.Len(t, after, 1)
	assert.Equal(t, "Loan Portfolio", after[0].Title)
	assert.Equal(t, []string{"consumer", "commercial", "agricultural", "municipal"}, after[0].RowLabels)
}

func TestVerticalMergeRejectsDissimilarBlock(t *testing.T) {
	rows := append([][]string{}, preamble("Loan Portfolio", "Banking", "At June 30, 2024")...)
	rows = append(rows,
		[]string{"", "At June 30, 2024"},
		[]string{"Consumer", "500"},
		[]string{},
	)
	// Same title by coincidence, but a genuinely different table.
	rows = append(rows,
		[]string{"Back to Index"},
		[]string{"Category:", "Insurance"},
		[]string{"Line Items:", "Premiums | Claims | Reserves"},
		[]string{"Header L3:", "Periods"},
		[]string{"Periods:", "Year Ended December 31, 2021"},
		[]string{"Table Title:", "Loan Portfolio"},
		[]string{"Source(s):", "10-K p.88"},
		[]string{"", "Year Ended December 31, 2021"},
		[]string{"Premiums", "900"},
	)
	g := buildGrid(t, rows)
	blocks := detectBlocks(t, g)
	require.Len(t, blocks, 2)

	e := NewEngine(period.Normalizer{}, 0.75, nil)
	assert.False(t, e.CanMergeVertical(blocks[0], blocks[1]))
	assert.Empty(t, e.Plan(blocks))
}

func TestCanMergeHorizontal(t *testing.T) {
	a := &detect.TableBlock{RowLabels: []string{"revenue", "profit"}}
	b := &detect.TableBlock{RowLabels: []string{"revenue", "profit"}}
	c := &detect.TableBlock{RowLabels: []string{"revenue"}}
	empty := &detect.TableBlock{}

	assert.True(t, CanMergeHorizontal(a, b))
	assert.False(t, CanMergeHorizontal(a, c))
	assert.False(t, CanMergeHorizontal(empty, empty))
}

func TestCanonicalTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Deposits (Part 2)", "deposits"},
		{"Deposits - Part 2", "deposits"},
		{"Deposits (Continued)", "deposits"},
		{"Deposits (Part 2) (Continued)", "deposits"},
		{"Deposits 2020-2024", "deposits"},
		{"Deposits", "deposits"},
		{"Partnership Income", "partnership income"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalTitle(tt.in), tt.in)
	}
}
