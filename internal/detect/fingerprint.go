package detect

import (
	"strconv"
	"strings"

	"filingcli/internal/period"
	"filingcli/internal/sheet"
)

// Fingerprint is a set-based summary of a block's metadata preamble, used to
// estimate whether two blocks describe the same logical table. All members
// are normalized strings.
type Fingerprint struct {
	Categories  map[string]bool
	LineItems   map[string]bool
	PeriodTypes map[string]bool
	Years       map[string]bool
	Sources     map[string]bool
	MainHeader  map[string]bool
}

func newFingerprint() *Fingerprint {
	return &Fingerprint{
		Categories:  map[string]bool{},
		LineItems:   map[string]bool{},
		PeriodTypes: map[string]bool{},
		Years:       map[string]bool{},
		Sources:     map[string]bool{},
		MainHeader:  map[string]bool{},
	}
}

// ExtractFingerprint reads the metadata preamble rows [metaStart, metaEnd]
// and collects the comparable sets.
func ExtractFingerprint(g *sheet.Grid, metaStart, metaEnd int, n period.Normalizer) *Fingerprint {
	fp := newFingerprint()
	for r := metaStart; r <= metaEnd; r++ {
		first := g.Cell(r, 1)
		values := rowValues(g, r)
		switch {
		case hasMarker(first, sheet.MarkerCategory):
			addAll(fp.Categories, values)
		case hasMarker(first, sheet.MarkerLineItems):
			addAll(fp.LineItems, values)
		case hasMarker(first, sheet.MarkerEntities):
			addAll(fp.Categories, values)
		case hasMarker(first, sheet.MarkerHeaderL1),
			hasMarker(first, sheet.MarkerHeaderL2),
			hasMarker(first, sheet.MarkerHeaderL3):
			addAll(fp.MainHeader, values)
		case hasMarker(first, sheet.MarkerPeriods):
			fp.addPeriods(values, n)
		case hasMarker(first, sheet.MarkerTitle):
			addAll(fp.MainHeader, values)
		case hasMarker(first, sheet.MarkerSources):
			addAll(fp.Sources, values)
		}
	}
	return fp
}

// FingerprintFromBlock derives a fingerprint for blocks with no preamble,
// using the header cells and row labels instead so merge decisions still
// have something to compare.
func FingerprintFromBlock(g *sheet.Grid, b *TableBlock, n period.Normalizer) *Fingerprint {
	fp := newFingerprint()
	for _, label := range b.RowLabels {
		if label != "" {
			fp.LineItems[label] = true
		}
	}
	for _, row := range b.HeaderRows {
		for _, c := range row {
			v := strings.TrimSpace(c)
			if v == "" {
				continue
			}
			if code, ok := n.Parse(v); ok {
				fp.PeriodTypes[string(code.Kind)] = true
				fp.Years[strconv.Itoa(code.Year)] = true
			} else {
				fp.MainHeader[sheet.NormalizeLabel(v)] = true
			}
		}
	}
	return fp
}

func (fp *Fingerprint) addPeriods(values []string, n period.Normalizer) {
	for v := range splitSet(values) {
		if code, ok := n.Parse(v); ok {
			fp.PeriodTypes[string(code.Kind)] = true
			fp.Years[strconv.Itoa(code.Year)] = true
			continue
		}
		// A bare year summary like "2024, 2023".
		for _, tok := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			if len(tok) == 4 {
				if _, err := strconv.Atoi(tok); err == nil {
					fp.Years[tok] = true
				}
			}
		}
	}
}

// Similarity is the mean Jaccard overlap of the six fingerprint sets,
// skipping pairs where both sides are empty. Result is in [0,1].
func Similarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil {
		return 0
	}
	pairs := [][2]map[string]bool{
		{a.Categories, b.Categories},
		{a.LineItems, b.LineItems},
		{a.PeriodTypes, b.PeriodTypes},
		{a.Years, b.Years},
		{a.Sources, b.Sources},
		{a.MainHeader, b.MainHeader},
	}
	var sum float64
	var counted int
	for _, p := range pairs {
		if len(p[0]) == 0 && len(p[1]) == 0 {
			continue
		}
		sum += jaccard(p[0], p[1])
		counted++
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

func jaccard(a, b map[string]bool) float64 {
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// metadataValue returns the value of the first preamble row opened by the
// given marker, or "".
func metadataValue(g *sheet.Grid, metaStart, metaEnd int, marker string) string {
	for r := metaStart; r <= metaEnd; r++ {
		if !hasMarker(g.Cell(r, 1), marker) {
			continue
		}
		if vals := rowValues(g, r); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// rowValues collects a metadata row's values: columns 2..n when present,
// otherwise the remainder of column 1 after its marker.
func rowValues(g *sheet.Grid, r int) []string {
	row := g.Row(r)
	var vals []string
	for c := 1; c < len(row); c++ {
		if v := strings.TrimSpace(row[c]); v != "" {
			vals = append(vals, v)
		}
	}
	if len(vals) > 0 {
		return vals
	}
	first := g.Cell(r, 1)
	if i := strings.Index(first, ":"); i >= 0 && i+1 < len(first) {
		if rest := strings.TrimSpace(first[i+1:]); rest != "" {
			for _, part := range strings.Split(rest, "|") {
				if p := strings.TrimSpace(part); p != "" {
					vals = append(vals, p)
				}
			}
		}
	}
	return vals
}

func hasMarker(cell, marker string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(cell)), strings.ToLower(marker))
}

func addAll(set map[string]bool, values []string) {
	for v := range splitSet(values) {
		set[sheet.NormalizeLabel(v)] = true
	}
}

// splitSet expands pipe-delimited multi-value cells into individual members.
func splitSet(values []string) map[string]bool {
	out := map[string]bool{}
	for _, v := range values {
		for _, part := range strings.Split(v, "|") {
			if p := strings.TrimSpace(part); p != "" {
				out[p] = true
			}
		}
	}
	return out
}
