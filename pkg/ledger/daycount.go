package ledger

import (
	"fmt"
	"time"

	"github.com/mcclellann/paydown/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	daysInYear     = decimal.NewFromInt(365)
	daysInLeapYear = decimal.NewFromInt(366)
	daysInBankYear = decimal.NewFromInt(360)
)

// accrualPart is a run of days sharing one day-count denominator.
type accrualPart struct {
	days  int64
	basis decimal.Decimal
}

// daysBetween counts the days in [from, to). It compares civil day numbers,
// so gaps longer than time.Duration can hold still count correctly.
func daysBetween(from, to time.Time) int {
	return int(civilDay(to) - civilDay(from))
}

// civilDay numbers the calendar date of t, with 1970-01-01 as day 0.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	year := int64(y)
	if m <= time.February {
		year--
	}
	era := year
	if era < 0 {
		era -= 399
	}
	era /= 400
	yoe := year - era*400
	mp := (int64(m) + 9) % 12
	doy := (153*mp+2)/5 + int64(d) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// day truncates t to its calendar date at UTC midnight.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// days30E360 is the 30E/360 day difference between from and to.
func days30E360(from, to time.Time) int {
	d1, d2 := from.Day(), to.Day()
	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 {
		d2 = 30
	}
	return 360*(to.Year()-from.Year()) + 30*(int(to.Month())-int(from.Month())) + (d2 - d1)
}

func accrualParts(method models.DayCountMethod, from, to time.Time) ([]accrualPart, error) {
	if !to.After(from) {
		return nil, nil
	}
	switch method {
	case models.DayCountActual365:
		return []accrualPart{{days: int64(daysBetween(from, to)), basis: daysInYear}}, nil
	case models.DayCountActual360:
		return []accrualPart{{days: int64(daysBetween(from, to)), basis: daysInBankYear}}, nil
	case models.DayCount30360:
		return []accrualPart{{days: int64(days30E360(from, to)), basis: daysInBankYear}}, nil
	case models.DayCountActualAct:
		var parts []accrualPart
		for cur := from; cur.Before(to); {
			next := time.Date(cur.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
			if next.After(to) {
				next = to
			}
			basis := daysInYear
			if isLeap(cur.Year()) {
				basis = daysInLeapYear
			}
			parts = append(parts, accrualPart{days: int64(daysBetween(cur, next)), basis: basis})
			cur = next
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("unknown day count method %q", method)
	}
}

// YearFraction returns the fraction of a year between from (inclusive) and to (exclusive).
// It is the interest accrued on a unit principal at a unit rate.
func YearFraction(method models.DayCountMethod, from, to time.Time) (decimal.Decimal, error) {
	return accrue(method, decimal.NewFromInt(1), decimal.NewFromInt(1), day(from), day(to))
}

// accrue returns the unrounded interest on principal at rate over [from, to).
func accrue(method models.DayCountMethod, principal, rate decimal.Decimal, from, to time.Time) (decimal.Decimal, error) {
	parts, err := accrualParts(method, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	interest := decimal.Zero
	base := principal.Mul(rate)
	for _, p := range parts {
		// Divide last so the basis introduces at most one rounding step per part.
		interest = interest.Add(base.Mul(decimal.NewFromInt(p.days)).Div(p.basis))
	}
	return interest, nil
}
