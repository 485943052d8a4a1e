package merge

import (
	"regexp"

	"filingcli/internal/sheet"
)

// Continuation pages repeat a table's title with a part number, a
// "(Continued)" tag, or a date-range suffix. Those decorations must not
// block a vertical merge.
var titleSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[\s,–-]*\(\s*part\s*\d+\s*\)\s*$`),
	regexp.MustCompile(`(?i)[\s,–-]+part\s*\d+\s*$`),
	regexp.MustCompile(`(?i)[\s,–-]*\(\s*continued\s*\)\s*$`),
	regexp.MustCompile(`(?i)[\s,–-]+continued\s*$`),
	regexp.MustCompile(`(?i)[\s,–-]*\(?\s*\d{4}\s*(?:-|–|to|through)\s*\d{4}\s*\)?\s*$`),
}

// CanonicalTitle strips part-number and date-range suffixes and normalizes
// the remainder for comparison. Stripping repeats until no suffix matches,
// so "Deposits (Part 2) (Continued)" and "Deposits" compare equal.
func CanonicalTitle(title string) string {
	t := title
	for {
		stripped := t
		for _, re := range titleSuffixes {
			stripped = re.ReplaceAllString(stripped, "")
		}
		if stripped == t {
			break
		}
		t = stripped
	}
	return sheet.NormalizeLabel(t)
}
