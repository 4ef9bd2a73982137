// Package ledger reconstructs the payment schedule of a loan from its
// definition and the events recorded against it.
//
// Calculate walks from the start date to the end date (or the payoff date),
// jumping directly between boundary dates: event dates and cadence dates.
// Each day accrues interest on the principal left after that day's events,
// so a payment on D covers the interest accrued through D-1.
// Accrued interest is carried as unpaid interest and is always satisfied
// before a payment reduces principal.
//
// Every monetary value is rounded to cents when it is recorded and the running
// state holds the rounded values, so the rows of the log add up exactly to the
// totals of the result.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/mcclellann/paydown/pkg/models"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Validate rejects loan definitions the calculator cannot walk.
func Validate(def models.LoanDefinition) error {
	invalid := func(field, value, reason string) error {
		return &models.InvalidInputError{Field: field, Value: value, Reason: reason}
	}
	switch {
	case def.StartDate.IsZero():
		return invalid("start_date", "", "missing")
	case def.EndDate.IsZero():
		return invalid("end_date", "", "missing")
	case day(def.EndDate).Before(day(def.StartDate)):
		return invalid("end_date", def.EndDate.Format("2006-01-02"), "before start_date "+def.StartDate.Format("2006-01-02"))
	case def.Principal.IsNegative():
		return invalid("principal", def.Principal.String(), "must not be negative")
	case def.Rate.IsNegative():
		return invalid("rate", def.Rate.String(), "must not be negative")
	case !def.DayCount.Valid():
		return invalid("day_count", string(def.DayCount), "unknown convention")
	case def.InitialFee != nil && def.InitialFee.IsNegative():
		return invalid("initial_fee", def.InitialFee.String(), "must not be negative")
	case def.Recurring != nil && (def.Recurring.PaymentDay < 1 || def.Recurring.PaymentDay > 31):
		return invalid("payment_day", fmt.Sprint(def.Recurring.PaymentDay), "must be between 1 and 31")
	case def.Recurring != nil && def.Recurring.FirstPaymentDate.IsZero():
		return invalid("first_payment_date", "", "missing")
	}
	return nil
}

// SortEvents returns a copy of events ordered by date. Events on the same
// date keep their input order.
func SortEvents(events []models.Event) []models.Event {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return day(sorted[i].Date).Before(day(sorted[j].Date))
	})
	return sorted
}

// walk holds the cursor of one computation.
type walk struct {
	def    models.LoanDefinition
	result *models.PaydownResult
	log    []models.PaymentLogEntry

	prev      time.Time // first day not yet accrued
	rate      decimal.Decimal
	principal decimal.Decimal
	unpaid    decimal.Decimal
}

// Calculate builds the payment log and summary of a loan.
// It returns a complete result or an error wrapping models.ErrInvalidInput, never a partial log.
func Calculate(def models.LoanDefinition, events []models.Event) (*models.PaydownResult, []models.PaymentLogEntry, error) {
	if err := Validate(def); err != nil {
		return nil, nil, err
	}
	def.StartDate, def.EndDate = day(def.StartDate), day(def.EndDate)

	w := &walk{
		def: def,
		result: &models.PaydownResult{
			SumOfInterests:    decimal.Zero,
			SumOfFees:         decimal.Zero,
			SumOfInstallments: decimal.Zero,
			Overpayment:       decimal.Zero,
		},
		prev:      def.StartDate,
		rate:      def.Rate,
		principal: roundMoney(def.Principal),
		unpaid:    decimal.Zero,
	}

	w.open()
	if err := w.run(SortEvents(events)); err != nil {
		return nil, nil, err
	}

	w.result.RemainingPrincipal = w.principal
	w.result.UnpaidInterest = w.unpaid
	w.result.AnnualSummaries = Annual(w.log)
	return w.result, w.log, nil
}

func (w *walk) open() {
	fee := decimal.Zero
	if w.def.InitialFee != nil {
		fee = roundMoney(*w.def.InitialFee)
		w.result.SumOfFees = w.result.SumOfFees.Add(fee)
	}
	w.log = append(w.log, models.PaymentLogEntry{
		Date:               w.def.StartDate,
		Kind:               models.EntryOpening,
		Rate:               w.rate,
		Installment:        decimal.Zero,
		PrincipalReduction: decimal.Zero,
		InterestAccrued:    decimal.Zero,
		RemainingPrincipal: w.principal,
		UnpaidInterest:     w.unpaid,
		FeeApplied:         fee,
	})
}

// boundary groups what happens on one date.
type boundary struct {
	date    time.Time
	events  []models.Event
	cadence bool
}

func (w *walk) boundaries(sorted []models.Event) []boundary {
	var out []boundary
	at := func(d time.Time) *boundary {
		if n := len(out); n > 0 && out[n-1].date.Equal(d) {
			return &out[n-1]
		}
		out = append(out, boundary{date: d})
		return &out[len(out)-1]
	}

	cadence := CadenceDates(w.def, w.def.StartDate.AddDate(0, 0, 1), w.def.EndDate)
	ci := 0
	for _, ev := range sorted {
		d := day(ev.Date)
		if d.After(w.def.EndDate) {
			break
		}
		if d.Before(w.def.StartDate) {
			// Recorded before the first accrual day: it takes effect on it.
			d = w.def.StartDate
		}
		for ci < len(cadence) && cadence[ci].Before(d) {
			at(cadence[ci]).cadence = true
			ci++
		}
		if ci < len(cadence) && cadence[ci].Equal(d) {
			at(d).cadence = true
			ci++
		}
		b := at(d)
		if ev.Actionable() {
			b.events = append(b.events, ev)
		}
	}
	for ; ci < len(cadence); ci++ {
		at(cadence[ci]).cadence = true
	}
	return out
}

func (w *walk) run(sorted []models.Event) error {
	for _, b := range w.boundaries(sorted) {
		if len(b.events) == 0 && !b.cadence {
			continue
		}
		interest, days, err := w.accrueTo(b.date)
		if err != nil {
			return err
		}

		if len(b.events) == 0 {
			w.record(models.PaymentLogEntry{
				Date:            b.date,
				Kind:            models.EntryCadence,
				InterestAccrued: interest,
			}, days)
			continue
		}

		paid := false
		for _, ev := range b.events {
			if w.apply(b.date, ev, interest, days) {
				paid = true
			}
			interest, days = decimal.Zero, 0
		}
		// Every event of the payoff date is applied before the walk stops.
		if paid && w.principal.IsZero() && w.unpaid.IsZero() {
			w.result.PaidOff = true
			w.result.ActualEndDate = b.date
			return nil
		}
	}

	interest, days, err := w.accrueTo(w.def.EndDate.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	w.record(models.PaymentLogEntry{
		Date:            w.def.EndDate,
		Kind:            models.EntryClosing,
		InterestAccrued: interest,
	}, days)
	w.result.ActualEndDate = w.def.EndDate
	return nil
}

// accrueTo accrues [prev, to) at the current rate and moves the cursor to to.
func (w *walk) accrueTo(to time.Time) (decimal.Decimal, int, error) {
	days := daysBetween(w.prev, to)
	if days <= 0 {
		return decimal.Zero, 0, nil
	}
	raw, err := accrue(w.def.DayCount, w.principal, w.rate, w.prev, to)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("accrue interest from %s to %s: %w", w.prev.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	interest := roundMoney(raw)
	w.unpaid = w.unpaid.Add(interest)
	w.result.SumOfInterests = w.result.SumOfInterests.Add(interest)
	w.result.DaysCalculated += days
	w.prev = to
	return interest, days, nil
}

// apply applies one event on date d and reports whether it paid anything.
func (w *walk) apply(d time.Time, ev models.Event, interest decimal.Decimal, days int) bool {
	if ev.Rate != nil {
		w.rate = *ev.Rate
	}

	entry := models.PaymentLogEntry{
		Date:            d,
		Kind:            models.EntryEvent,
		InterestAccrued: interest,
		Simulated:       ev.IsSimulated,
		EarlyPayment:    ev.EarlyPayment,
		Title:           ev.Title,
	}

	paid := false
	if amount, ok := ev.Payment(); ok {
		amount = roundMoney(decimal.Max(amount, decimal.Zero))
		if amount.IsPositive() {
			toInterest := decimal.Min(amount, w.unpaid)
			w.unpaid = w.unpaid.Sub(toInterest)
			rest := amount.Sub(toInterest)
			toPrincipal := decimal.Min(rest, w.principal)
			w.principal = w.principal.Sub(toPrincipal)
			w.result.Overpayment = w.result.Overpayment.Add(rest.Sub(toPrincipal))

			entry.Installment = amount
			entry.PrincipalReduction = toPrincipal
			entry.WasPaid = true
			w.result.SumOfInstallments = w.result.SumOfInstallments.Add(amount)
			if !ev.IsSimulated {
				latest := d
				w.result.LatestPaymentDate = &latest
			}
			paid = true
		}
	}

	if ev.PaySingleFee != nil {
		fee := roundMoney(decimal.Max(*ev.PaySingleFee, decimal.Zero))
		entry.FeeApplied = fee
		w.result.SumOfFees = w.result.SumOfFees.Add(fee)
	}

	w.record(entry, days)
	return paid
}

// record fills the running state into entry and appends it.
func (w *walk) record(entry models.PaymentLogEntry, days int) {
	entry.Rate = w.rate
	entry.RemainingPrincipal = w.principal
	entry.UnpaidInterest = w.unpaid
	entry.DaysSincePrevious = days
	zeroIfUnset(&entry.Installment)
	zeroIfUnset(&entry.PrincipalReduction)
	zeroIfUnset(&entry.InterestAccrued)
	zeroIfUnset(&entry.FeeApplied)
	w.log = append(w.log, entry)
}

// zeroIfUnset replaces the zero value of decimal.Decimal with decimal.Zero so
// entries compare and serialize uniformly.
func zeroIfUnset(d *decimal.Decimal) {
	if d.Equal(decimal.Zero) {
		*d = decimal.Zero
	}
}
