package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the reserved name of the registry worksheet.
const SheetName = "Index"

// Columns is the fixed header row of the registry, in order.
var Columns = []string{"Source", "PageNo", "Table_ID", "Location_ID", "Section", "Table Title", "Link"}

// Entry is one row of the Index registry. LocationID is the physical
// worksheet holding the table occurrence.
type Entry struct {
	Source     string
	PageNo     string
	TableID    string
	LocationID string
	Section    string
	Title      string
	Link       string
}

// Key identifies the logical table group an entry belongs to.
func (e Entry) Key() string {
	return strings.ToLower(strings.TrimSpace(e.Section)) + "\x1f" + strings.ToLower(strings.TrimSpace(e.Title))
}

// Read loads all registry entries from the Index worksheet.
func Read(f *excelize.File) ([]Entry, error) {
	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sheet: %w", SheetName, err)
	}
	var entries []Entry
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		cell := func(c int) string {
			if c < len(row) {
				return strings.TrimSpace(row[c])
			}
			return ""
		}
		e := Entry{
			Source:     cell(0),
			PageNo:     cell(1),
			TableID:    cell(2),
			LocationID: cell(3),
			Section:    cell(4),
			Title:      cell(5),
			Link:       cell(6),
		}
		if e == (Entry{}) {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Write replaces the Index worksheet's contents with the given entries.
func Write(f *excelize.File, entries []Entry) error {
	idx, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return fmt.Errorf("failed to locate %s sheet: %w", SheetName, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(SheetName); err != nil {
			return fmt.Errorf("failed to create %s sheet: %w", SheetName, err)
		}
	} else {
		// Blank out any previous rows beyond the new extent.
		old, err := f.GetRows(SheetName)
		if err != nil {
			return fmt.Errorf("failed to read %s sheet: %w", SheetName, err)
		}
		for r := len(entries) + 2; r <= len(old); r++ {
			for c := 1; c <= len(Columns); c++ {
				cell, _ := excelize.CoordinatesToCellName(c, r)
				if err := f.SetCellValue(SheetName, cell, ""); err != nil {
					return fmt.Errorf("failed to clear %s!%s: %w", SheetName, cell, err)
				}
			}
		}
	}

	for c, name := range Columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(SheetName, cell, name); err != nil {
			return fmt.Errorf("failed to write %s header: %w", SheetName, err)
		}
	}
	for r, e := range entries {
		values := []string{e.Source, e.PageNo, e.TableID, e.LocationID, e.Section, e.Title, e.Link}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", SheetName, r+2, err)
			}
		}
	}
	return nil
}

var idSuffix = regexp.MustCompile(`_(\d+)$`)

// BaseID strips a numeric split suffix from a Table_ID.
func BaseID(id string) string {
	return idSuffix.ReplaceAllString(id, "")
}

// AssignTableIDs gives every entry a Table_ID unique per (Section, Title)
// group. Groups with a single entry keep their bare base ID; groups split
// across several sheets get "{base}_{n}" suffixes, numbered by the group's
// own ordering rather than physical sheet order, so re-running on already
// suffixed output changes nothing.
func AssignTableIDs(entries []Entry) []Entry {
	groups := map[string][]int{}
	var order []string
	for i, e := range entries {
		k := e.Key()
		if len(groups[k]) == 0 {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	for _, k := range order {
		idx := groups[k]
		base := ""
		for _, i := range idx {
			if b := BaseID(out[i].TableID); b != "" {
				base = b
				break
			}
		}
		if base == "" {
			base = slug(out[idx[0]].Section, out[idx[0]].Title)
		}
		if len(idx) == 1 {
			// A lone entry keeps whatever ID it already carries.
			if out[idx[0]].TableID == "" {
				out[idx[0]].TableID = base
			}
			continue
		}
		// Stable ordering within the group: by existing suffix first so
		// already assigned IDs survive, then by location.
		sorted := make([]int, len(idx))
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			sa, okA := suffixOf(out[sorted[a]].TableID)
			sb, okB := suffixOf(out[sorted[b]].TableID)
			switch {
			case okA && okB:
				return sa < sb
			case okA:
				return true
			case okB:
				return false
			default:
				return out[sorted[a]].LocationID < out[sorted[b]].LocationID
			}
		})
		for n, i := range sorted {
			out[i].TableID = fmt.Sprintf("%s_%d", base, n+1)
		}
	}
	return out
}

func suffixOf(id string) (int, bool) {
	m := idSuffix.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	var n int
	fmt.Sscanf(m[1], "%d", &n)
	return n, true
}

// slug derives a fallback base ID from section and title.
func slug(section, title string) string {
	s := strings.ToLower(strings.TrimSpace(section + " " + title))
	s = strings.Join(strings.Fields(s), "_")
	s = strings.Map(func(r rune) rune {
		if r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		s = "table"
	}
	return s
}

// CountByLocation returns how many registry entries point at each worksheet,
// for detection-vs-registry diagnostics.
func CountByLocation(entries []Entry) map[string]int {
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.LocationID]++
	}
	return counts
}
