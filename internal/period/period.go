package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies what span of time a period header covers.
type Kind string

const (
	// KindPoint is a balance-sheet style snapshot ("At June 30, 2024").
	KindPoint Kind = "POINT"
	// KindQTD covers a single quarter ("Three Months Ended ...").
	KindQTD Kind = "QTD"
	// KindYTD covers a year-to-date span ("Six/Nine Months Ended ...").
	KindYTD Kind = "YTD"
	// KindAnnual covers a full fiscal year ("Year Ended ...").
	KindAnnual Kind = "ANNUAL"
)

// Code is a canonical reporting period parsed from a free-text column header.
// Quarter is 1..4, or 0 when the code carries no quarter (annual periods).
// Category holds any non-period label text that preceded the period phrase in
// a compound header; it is re-appended on render so column semantics survive.
type Code struct {
	Quarter  int
	Kind     Kind
	Year     int
	Category string
}

// String renders the canonical form: Qn-YYYY for snapshots, Qn-QTD-YYYY,
// Qn-YTD-YYYY, or YTD-YYYY for annual periods, with the category suffix
// re-appended when present.
func (c Code) String() string {
	var s string
	switch {
	case c.Kind == KindAnnual || c.Quarter == 0:
		s = fmt.Sprintf("YTD-%04d", c.Year)
	case c.Kind == KindPoint:
		s = fmt.Sprintf("Q%d-%04d", c.Quarter, c.Year)
	default:
		s = fmt.Sprintf("Q%d-%s-%04d", c.Quarter, c.Kind, c.Year)
	}
	if c.Category != "" {
		s += " " + c.Category
	}
	return s
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const monthPat = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?`

var (
	rePoint   = regexp.MustCompile(`(?i)^(?:at|as of)\s+` + monthPat + `\s+(\d{1,2}),?\s*(\d{4})[.,]?$`)
	reMonths  = regexp.MustCompile(`(?i)^(three|six|nine)\s+months?\s+end(?:ed|ing)\s+` + monthPat + `\s+(\d{1,2}),?\s*(\d{4})[.,]?$`)
	reYearEnd = regexp.MustCompile(`(?i)^(?:(?:fiscal\s+)?year|twelve\s+months?)\s+end(?:ed|ing)\s+` + monthPat + `\s+(\d{1,2}),?\s*(\d{4})[.,]?$`)
	reBare    = regexp.MustCompile(`^(\d{4})$`)

	// Already-canonical forms, so Normalize is idempotent.
	reCode = regexp.MustCompile(`^(?:Q([1-4])-(?:(QTD|YTD)-)?|YTD-)(\d{4})(?:\s+(.+))?$`)

	// First point at which a period phrase can begin inside a compound
	// header ("Average Monthly Balance Three Months Ended March 31,").
	rePhraseStart = regexp.MustCompile(`(?i)\b(at\s+` + monthPat + `|as\s+of\s+|three\s+months?\s+end|six\s+months?\s+end|nine\s+months?\s+end|(?:fiscal\s+)?year\s+end|twelve\s+months?\s+end)`)

	// A date prefix with the year missing, waiting for a continuation cell
	// ("At June 30" + "2024").
	reDanglingDate = regexp.MustCompile(`(?i)` + monthPat + `\s+\d{1,2},?$`)
)

// quarterOf maps a calendar month to its quarter.
func quarterOf(m time.Month) int {
	return (int(m)-1)/3 + 1
}

// Normalizer parses free-text period headers. AnnualContext controls how a
// bare 4-digit year is read: annual filings report full-year columns, interim
// filings report Q4 snapshots.
type Normalizer struct {
	AnnualContext bool
}

// Parse attempts to read text as a period header. The boolean reports whether
// the text matched a known pattern; callers must treat false as "not a period
// header" (entity or segment label), never as an error.
func (n Normalizer) Parse(text string) (Code, bool) {
	t := collapse(text)
	if t == "" {
		return Code{}, false
	}

	if m := reCode.FindStringSubmatch(t); m != nil {
		return codeFromCanonical(m), true
	}

	if m := rePoint.FindStringSubmatch(t); m != nil {
		month := months[strings.ToLower(strings.TrimSuffix(m[1], "."))]
		year, _ := strconv.Atoi(m[3])
		return Code{Quarter: quarterOf(month), Kind: KindPoint, Year: year}, true
	}
	if m := reMonths.FindStringSubmatch(t); m != nil {
		month := months[strings.ToLower(strings.TrimSuffix(m[2], "."))]
		year, _ := strconv.Atoi(m[4])
		kind := KindQTD
		if span := strings.ToLower(m[1]); span == "six" || span == "nine" {
			kind = KindYTD
		}
		return Code{Quarter: quarterOf(month), Kind: kind, Year: year}, true
	}
	if m := reYearEnd.FindStringSubmatch(t); m != nil {
		year, _ := strconv.Atoi(m[3])
		return Code{Kind: KindAnnual, Year: year}, true
	}
	if m := reBare.FindStringSubmatch(t); m != nil {
		year, _ := strconv.Atoi(m[1])
		if n.AnnualContext {
			return Code{Kind: KindAnnual, Year: year}, true
		}
		// Interim filings use a bare year as the prior-year snapshot column.
		return Code{Quarter: 4, Kind: KindPoint, Year: year}, true
	}

	// Compound header: leading category text followed by a period phrase.
	if loc := rePhraseStart.FindStringIndex(t); loc != nil && loc[0] > 0 {
		category := collapse(t[:loc[0]])
		if code, ok := n.Parse(t[loc[0]:]); ok && category != "" {
			code.Category = category
			return code, true
		}
	}

	return Code{}, false
}

// Normalize returns the canonical rendering of text, or text unchanged when
// no period pattern matches. Normalize(Normalize(x)) == Normalize(x).
func (n Normalizer) Normalize(text string) string {
	if code, ok := n.Parse(text); ok {
		return code.String()
	}
	return text
}

// Recognized reports whether text parses as a period header.
func (n Normalizer) Recognized(text string) bool {
	_, ok := n.Parse(text)
	return ok
}

/// JoinContinuation handles headers split across adjacent cells or rows: a
// fragment ending in a year-less date prefix is concatenated with a bare
// 4-digit year from the next cell. The boolean reports whether the pair was
// joined.
func JoinContinuation(fragment, next string) (string, bool) {
	f := collapse(fragment)
	y := collapse(next)
	if reDanglingDate.MatchString(f) && reBare.MatchString(y) {
		return strings.TrimSuffix(f, ",") + ", " + y, true
	}
	return fragment, false
}

func codeFromCanonical(m []string) Code {
	year, _ := strconv.Atoi(m[3])
	c := Code{Year: year, Category: m[4]}
	if m[1] == "" {
		c.Kind = KindAnnual
		return c
	}
	c.Quarter, _ = strconv.Atoi(m[1])
	switch m[2] {
	case "QTD":
		c.Kind = KindQTD
	case "YTD":
		c.Kind = KindYTD
	default:
		c.Kind = KindPoint
	}
	return c
}

// collapse trims and squeezes internal whitespace.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
