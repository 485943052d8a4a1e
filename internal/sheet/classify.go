package sheet

import (
	"regexp"
	"strings"

	"filingcli/internal/period"
)

// RowKind is the structural role a row plays inside a table block.
type RowKind int

const (
	RowBlank RowKind = iota
	RowMetadata
	RowHeader
	RowData
)

// String returns the lowercase name used in logs and diagnostics.
func (k RowKind) String() string {
	switch k {
	case RowBlank:
		return "blank"
	case RowMetadata:
		return "metadata"
	case RowHeader:
		return "header"
	case RowData:
		return "data"
	}
	return "unknown"
}

// Metadata preamble markers, matched against the first cell of a row. The
// upstream extraction stage emits these in a fixed order; detection depends
// on the exact label text.
const (
	MarkerBackToIndex = "Back to Index"
	MarkerCategory    = "Category:"
	MarkerLineItems   = "Line Items:"
	MarkerEntities    = "Entities:"
	MarkerHeaderL1    = "Header L1:"
	MarkerHeaderL2    = "Header L2:"
	MarkerHeaderL3    = "Header L3:"
	MarkerPeriods     = "Periods:"
	MarkerTitle       = "Table Title:"
	MarkerSources     = "Source(s):"
)

var metadataMarkers = []string{
	MarkerBackToIndex, MarkerCategory, MarkerLineItems, MarkerEntities,
	MarkerHeaderL1, MarkerHeaderL2, MarkerHeaderL3, MarkerPeriods,
	MarkerTitle, MarkerSources,
}

// IsMetadataMarker reports whether the first-column cell opens a metadata
// preamble row.
func IsMetadataMarker(cell string) bool {
	c := strings.TrimSpace(cell)
	for _, m := range metadataMarkers {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(m)) {
			return true
		}
	}
	return false
}

var unitIndicator = regexp.MustCompile(`(?i)^\(?(?:in|\$ in|us\$ in|amounts in)\s+(?:thousands|millions|billions)|^\(?(?:us)?\$ (?:thousands|millions|billions)|^\(?(?:iqd|usd|eur|gbp)\b`)

// IsUnitIndicator reports whether a first-column cell declares the currency
// unit of the table ("(In millions)", "$ in thousands", ...). Sheets without
// title markers use these rows as block boundaries.
func IsUnitIndicator(cell string) bool {
	return unitIndicator.MatchString(strings.TrimSpace(cell))
}

// Classify assigns a structural role to a row using only layout signals:
// emptiness of the first column and presence of period or unit tokens. It is
// a pure function over the cell values.
func Classify(cells []string, n period.Normalizer) RowKind {
	first := ""
	rest := 0
	periodish := 0
	for i, c := range cells {
		v := strings.TrimSpace(c)
		if i == 0 {
			first = v
			continue
		}
		if v == "" {
			continue
		}
		rest++
		if n.Recognized(v) {
			periodish++
		}
	}

	switch {
	case first == "" && rest == 0:
		return RowBlank
	case IsMetadataMarker(first):
		return RowMetadata
	case first == "" && periodish > 0:
		return RowHeader
	case IsUnitIndicator(first) && periodish > 0:
		return RowHeader
	case first == "" && rest > 0:
		// Continuation of a stacked header (L1/L2 spans).
		return RowHeader
	default:
		return RowData
	}
}
