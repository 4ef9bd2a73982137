package ledger

import (
	"time"

	"github.com/mcclellann/paydown/pkg/models"
)

// dateOnDay returns the given day of month, clamped to the month length.
func dateOnDay(year int, month time.Month, dom int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if dom > last {
		dom = last
	}
	return time.Date(first.Year(), first.Month(), dom, 0, 0, 0, 0, time.UTC)
}

// CadenceDates returns the scheduled payment dates of the loan within [from, to].
//
// With a Recurring definition the cadence starts at FirstPaymentDate and then
// falls on PaymentDay of every following month. Without one, the loan is
// stated monthly on the day of month of StartDate, starting one month in.
func CadenceDates(def models.LoanDefinition, from, to time.Time) []time.Time {
	from, to = day(from), day(to)
	if to.Before(from) {
		return nil
	}

	var (
		anchor time.Time
		dom    int
		k      int
		dates  []time.Time
	)
	if def.Recurring != nil {
		anchor = day(def.Recurring.FirstPaymentDate)
		dom = def.Recurring.PaymentDay
		if !anchor.Before(from) && !anchor.After(to) {
			dates = append(dates, anchor)
		}
		k = 1
	} else {
		anchor = day(def.StartDate)
		dom = anchor.Day()
		k = 1
	}
	if dom < 1 {
		dom = anchor.Day()
	}

	for ; ; k++ {
		m := time.Date(anchor.Year(), anchor.Month()+time.Month(k), 1, 0, 0, 0, 0, time.UTC)
		d := dateOnDay(m.Year(), m.Month(), dom)
		if d.After(to) {
			break
		}
		if d.Before(from) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}
