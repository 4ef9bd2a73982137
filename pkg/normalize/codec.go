// Package normalize turns locale-encoded loan and payment records into the
// canonical loan definition and event list consumed by the ledger.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ExternalDateFormat is the day.month.year form used by the host records.
	ExternalDateFormat = "02.01.2006"
	// ISODateFormat is the canonical internal form.
	ISODateFormat = "2006-01-02"

	readExternalFormat = "2.1.2006" // also accepts zero-padded day and month
	readISOFormat      = "2006-1-2"
)

// ParseDate reads a date in day.month.year or ISO form and returns it at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	layout := readExternalFormat
	if strings.Contains(s, "-") {
		layout = readISOFormat
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q want format %q or %q: %w", s, ExternalDateFormat, ISODateFormat, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatDate writes t in the external day.month.year form.
func FormatDate(t time.Time) string { return t.Format(ExternalDateFormat) }

// FormatISO writes t in the canonical internal form.
func FormatISO(t time.Time) string { return t.Format(ISODateFormat) }

var groupingReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "", "_", "")

// ParseAmount reads a number written with a decimal comma or point and optional
// thousands grouping. An empty string yields nil: absent is not zero.
func ParseAmount(s string) (*decimal.Decimal, error) {
	s = groupingReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Whichever separator comes last is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return &d, nil
}

// ParsePercent reads a percentage and returns it as a fraction ("7,5" -> 0.075).
func ParsePercent(s string) (*decimal.Decimal, error) {
	d, err := ParseAmount(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil || d == nil {
		return d, err
	}
	frac := d.Div(decimal.NewFromInt(100))
	return &frac, nil
}
