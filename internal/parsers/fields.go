package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// statementDateFormats are tried in order for every candidate date token.
// Kenyan statements write day first, so DD/MM comes before anything else.
var statementDateFormats = []string{
	"02/01/2006",
	"02/01/06",
	"02-01-2006",
	"02-01-06",
	"2006-01-02",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"Jan 2, 2006",
}

// ParseStatementDate tries each supported format until one parses.
func ParseStatementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range statementDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseAmount converts a statement amount token into a decimal. It strips
// currency markers and thousands separators and treats parenthesized values
// as negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	for _, marker := range []string{"KES", "KSh.", "KSh", "Ksh.", "Ksh", "kes", "$", "€", "£"} {
		s = strings.TrimPrefix(s, marker)
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// completenessCheck is one (predicate, weight) pair of the shared scorer.
type completenessCheck struct {
	name   string
	weight float64
	ok     bool
}

// completeness is the shared confidence formula used by every parser: the
// weighted fraction of checks that passed.
func completeness(checks []completenessCheck) float64 {
	var total, passed float64
	for _, c := range checks {
		w := c.weight
		if w <= 0 {
			w = 1
		}
		total += w
		if c.ok {
			passed += w
		}
	}
	if total == 0 {
		return 0
	}
	return passed / total
}
