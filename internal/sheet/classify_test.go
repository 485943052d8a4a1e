package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"filingcli/internal/period"
)

func TestClassify(t *testing.T) {
	n := period.Normalizer{}

	tests := []struct {
		name  string
		cells []string
		want  RowKind
	}{
		{name: "empty row", cells: []string{"", "", ""}, want: RowBlank},
		{name: "nil row", cells: nil, want: RowBlank},
		{name: "title marker", cells: []string{"Table Title: Deposits by Segment"}, want: RowMetadata},
		{name: "sources marker", cells: []string{"Source(s): 10-Q p.44"}, want: RowMetadata},
		{name: "back to index", cells: []string{"Back to Index"}, want: RowMetadata},
		{name: "period header", cells: []string{"", "At June 30, 2024", "At December 31, 2023"}, want: RowHeader},
		{name: "bare year header", cells: []string{"", "2024", "2023"}, want: RowHeader},
		{name: "unit row with periods", cells: []string{"(In millions)", "Three Months Ended June 30, 2024"}, want: RowHeader},
		{name: "stacked header continuation", cells: []string{"", "Consumer", "Commercial"}, want: RowHeader},
		{name: "data row", cells: []string{"Total revenue", "1,234", "987"}, want: RowData},
		{name: "label only data row", cells: []string{"Deposits:"}, want: RowData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.cells, n))
		})
	}
}

func TestIsUnitIndicator(t *testing.T) {
	for _, s := range []string{"(In millions)", "$ in thousands", "(Amounts in billions)", "IQD thousands"} {
		assert.True(t, IsUnitIndicator(s), s)
	}
	for _, s := range []string{"Total deposits", "", "Interest income"} {
		assert.False(t, IsUnitIndicator(s), s)
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1,234.00", "1234"},
		{"1234", "1234"},
		{"$1,234", "1234"},
		{"(1,234)", "-1234"},
		{"12.50%", "12.5"},
		{"  Total  Revenue ", "total revenue"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeValue(tt.in), tt.in)
	}
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "total revenue", NormalizeLabel("  Total   REVENUE "))
	assert.Equal(t, NormalizeLabel("Net Income"), NormalizeLabel("net income"))
}
