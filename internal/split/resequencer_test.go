package split

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"filingcli/internal/detect"
	"filingcli/internal/period"
	"filingcli/internal/registry"
	"filingcli/internal/sheet"
)

func TestTwoPassRenameSwap(t *testing.T) {
	// A and B swap names; single-pass renaming would collide.
	names := map[string]bool{"A": true, "B": true}
	rename := func(oldName, newName string) error {
		if names[newName] {
			return fmt.Errorf("name %q taken", newName)
		}
		delete(names, oldName)
		names[newName] = true
		return nil
	}
	taken := func(name string) bool { return names[name] }

	final, err := TwoPassRename(map[string]string{"A": "B", "B": "A"}, taken, rename, nil)
	require.NoError(t, err)
	assert.Equal(t, "B", final["A"])
	assert.Equal(t, "A", final["B"])
	assert.True(t, names["A"])
	assert.True(t, names["B"])
	assert.Len(t, names, 2)
}

func TestTwoPassRenameCollisionFallback(t *testing.T) {
	names := map[string]bool{"A": true, "X": true}
	rename := func(oldName, newName string) error {
		delete(names, oldName)
		names[newName] = true
		return nil
	}
	taken := func(name string) bool { return names[name] }

	final, err := TwoPassRename(map[string]string{"A": "X"}, taken, rename, nil)
	require.NoError(t, err)
	assert.Equal(t, "X_2", final["A"])
}

func buildWorkbook(t *testing.T, sheetName string, rows [][]string) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheetName))
	for r, row := range rows {
		for c, val := range row {
			if val == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheetName, cell, val))
		}
	}
	return f
}

func twoTableRows() [][]string {
	return [][]string{
		{"Back to Index"},
		{"Category:", "Banking"},
		{"Line Items:", "Consumer | Commercial"},
		{"Header L3:", "Periods"},
		{"Periods:", "At June 30, 2024", "At June 30, 2023"},
		{"Table Title:", "Loans"},
		{"Source(s):", "10-Q p.14"},
		{"", "At June 30, 2024"},
		{"Consumer", "500"},
		{"Commercial", "700"},
		{},
		{"Back to Index"},
		{"Category:", "Banking"},
		{"Line Items:", "Premiums | Claims"},
		{"Header L3:", "Periods"},
		{"Periods:", "At June 30, 2023"},
		{"Table Title:", "Premium Income"},
		{"Source(s):", "10-Q p.15"},
		{"", "At June 30, 2023"},
		{"Premiums", "900"},
		{"Claims", "300"},
	}
}

func detectAll(t *testing.T, f *excelize.File, name string) (*sheet.Grid, []*detect.TableBlock) {
	t.Helper()
	g, err := sheet.Load(f, name)
	require.NoError(t, err)
	return g, detect.NewDetector(period.Normalizer{}, 4, nil).Detect(g)
}

func TestSplitRelocatesBlocks(t *testing.T) {
	f := buildWorkbook(t, "T12", twoTableRows())
	entries := []registry.Entry{
		{Source: "10q", PageNo: "14", TableID: "loans", LocationID: "T12", Section: "Banking", Title: "Loans", Link: "#T12!A1"},
	}

	g, blocks := detectAll(t, f, "T12")
	require.Len(t, blocks, 2)

	r := NewResequencer(period.Normalizer{}, nil)
	updated, res, err := r.Split(f, g, blocks, entries)
	require.NoError(t, err)
	assert.Equal(t, []string{"T12_1", "T12_2"}, res.Sheets)
	assert.Equal(t, 1, res.Created)

	// The renamed original holds only the first block.
	_, firstBlocks := detectAll(t, f, "T12_1")
	require.Len(t, firstBlocks, 1)
	assert.Equal(t, "Loans", firstBlocks[0].Title)
	assert.Equal(t, []string{"consumer", "commercial"}, firstBlocks[0].RowLabels)

	// The new sheet carries the second block with its preamble.
	_, secondBlocks := detectAll(t, f, "T12_2")
	require.Len(t, secondBlocks, 1)
	assert.Equal(t, "Premium Income", secondBlocks[0].Title)
	assert.Equal(t, []string{"premiums", "claims"}, secondBlocks[0].RowLabels)

	// Tab order: the split sheet follows its predecessor.
	list := f.GetSheetList()
	i1 := indexOf(list, "T12_1")
	i2 := indexOf(list, "T12_2")
	require.GreaterOrEqual(t, i1, 0)
	assert.Equal(t, i1+1, i2)

	// Registry rewritten: one row per resulting sheet, distinct IDs.
	require.Len(t, updated, 2)
	assert.Equal(t, "T12_1", updated[0].LocationID)
	assert.Equal(t, "T12_2", updated[1].LocationID)
	assert.Equal(t, "loans", updated[0].TableID)
	assert.NotEqual(t, updated[0].TableID, updated[1].TableID)
	assert.Equal(t, "Premium Income", updated[1].Title)
	assert.Equal(t, "#T12_2!A1", updated[1].Link)
}

func TestSplitSiblingsKeepsSharedPreamble(t *testing.T) {
	// Sibling sub-blocks share one preamble; relocating the second must
	// copy those rows, not take them from the first.
	rows := [][]string{
		{"Back to Index"},
		{"Category:", "Banking"},
		{"Line Items:", "Consumer | Commercial"},
		{"Header L3:", "Periods"},
		{"Periods:", "At June 30, 2024"},
		{"Table Title:", "Loans"},
		{"Source(s):", "10-Q p.14"},
		{"", "At June 30, 2024"},
		{"Consumer", "500"},
		{"Commercial", "700"},
		{"", "Year Ended December 31, 2023"},
		{"Premiums", "900"},
		{"Claims", "300"},
	}
	f := buildWorkbook(t, "T12", rows)
	g, blocks := detectAll(t, f, "T12")
	require.Len(t, blocks, 2)
	require.True(t, blocks[1].MetaShared)

	r := NewResequencer(period.Normalizer{}, nil)
	updated, res, err := r.Split(f, g, blocks, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"T12_1", "T12_2"}, res.Sheets)

	// The renamed original keeps the preamble and the first sibling's rows.
	g1, err := sheet.Load(f, "T12_1")
	require.NoError(t, err)
	assert.Equal(t, "Table Title:", g1.Cell(6, 1))
	assert.Equal(t, "Loans", g1.Cell(6, 2))
	assert.Equal(t, "Consumer", g1.Cell(9, 1))
	assert.Equal(t, "500", g1.Cell(9, 2))

	_, firstBlocks := detectAll(t, f, "T12_1")
	require.Len(t, firstBlocks, 1)
	assert.Equal(t, "Loans", firstBlocks[0].Title)
	assert.Equal(t, []string{"consumer", "commercial"}, firstBlocks[0].RowLabels)

	// The second sibling got a copy of the preamble alongside its rows.
	_, secondBlocks := detectAll(t, f, "T12_2")
	require.Len(t, secondBlocks, 1)
	assert.Equal(t, "Loans", secondBlocks[0].Title)
	assert.Equal(t, []string{"premiums", "claims"}, secondBlocks[0].RowLabels)

	require.Len(t, updated, 2)
	assert.NotEqual(t, updated[0].TableID, updated[1].TableID)
}

func TestSplitRecomputesPeriodsRow(t *testing.T) {
	f := buildWorkbook(t, "T12", twoTableRows())
	g, blocks := detectAll(t, f, "T12")
	require.Len(t, blocks, 2)

	r := NewResequencer(period.Normalizer{}, nil)
	_, _, err := r.Split(f, g, blocks, nil)
	require.NoError(t, err)

	g2, err := sheet.Load(f, "T12_2")
	require.NoError(t, err)
	found := false
	for row := 1; row <= g2.Rows(); row++ {
		if g2.Cell(row, 1) == sheet.MarkerPeriods {
			found = true
			assert.Equal(t, "Q2-2023", g2.Cell(row, 2))
			assert.Equal(t, "", g2.Cell(row, 3))
		}
	}
	assert.True(t, found, "relocated block should carry a Periods row")
}

func TestSplitSingleBlockIsNoOp(t *testing.T) {
	rows := twoTableRows()[:10]
	f := buildWorkbook(t, "T12", rows)
	g, blocks := detectAll(t, f, "T12")
	require.Len(t, blocks, 1)

	entries := []registry.Entry{{TableID: "loans", LocationID: "T12", Section: "Banking", Title: "Loans"}}
	r := NewResequencer(period.Normalizer{}, nil)
	updated, res, err := r.Split(f, g, blocks, entries)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, entries, updated)
	assert.Equal(t, []string{"T12"}, f.GetSheetList())
}

func TestSplitIsStableOnResplit(t *testing.T) {
	f := buildWorkbook(t, "T12", twoTableRows())
	entries := []registry.Entry{
		{TableID: "loans", LocationID: "T12", Section: "Banking", Title: "Loans"},
	}
	g, blocks := detectAll(t, f, "T12")
	r := NewResequencer(period.Normalizer{}, nil)
	updated, _, err := r.Split(f, g, blocks, entries)
	require.NoError(t, err)

	// Each resulting sheet now has one block: re-running splits nothing
	// and keeps every Table_ID.
	for _, name := range []string{"T12_1", "T12_2"} {
		g, blocks := detectAll(t, f, name)
		require.Len(t, blocks, 1)
		var res Result
		updated2, res, err := r.Split(f, g, blocks, updated)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Created)
		assert.Equal(t, updated, updated2)
	}
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if s == want {
			return i
		}
	}
	return -1
}
