package sheet

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeLabel canonicalizes a row label for comparison: lowercased,
// internal whitespace squeezed.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeValue canonicalizes a cell value for content signatures. Numeric
// cells are reduced to their exact decimal form so "1,234.00", "1234" and
// "$1,234" compare equal; everything else gets label normalization.
func NormalizeValue(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}

	num := t
	negative := false
	// Accountancy negatives: (1,234) means -1234.
	if strings.HasPrefix(num, "(") && strings.HasSuffix(num, ")") {
		num = num[1 : len(num)-1]
		negative = true
	}
	num = strings.TrimPrefix(num, "$")
	num = strings.TrimSuffix(num, "%")
	num = strings.ReplaceAll(num, ",", "")
	num = strings.TrimSpace(num)

	if d, err := decimal.NewFromString(num); err == nil {
		if negative {
			d = d.Neg()
		}
		out := d.String()
		// decimal preserves trailing zeros from the source text; signatures
		// need "1234.00" and "1234" to collide.
		if strings.Contains(out, ".") {
			out = strings.TrimRight(out, "0")
			out = strings.TrimRight(out, ".")
		}
		return out
	}
	return NormalizeLabel(t)
}
