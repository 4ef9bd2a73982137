package ledger

import (
	"testing"
	"time"

	"github.com/mcclellann/paydown/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s %v", want, got.StringFixed(2), msgAndArgs)
}

// loan2023 is 12000 at 10% act/365 over calendar year 2023.
func loan2023() models.LoanDefinition {
	return models.LoanDefinition{
		StartDate: date(2023, time.January, 1),
		EndDate:   date(2023, time.December, 31),
		Principal: dec("12000.00"),
		Rate:      dec("0.10"),
		DayCount:  models.DayCountActual365,
	}
}

func TestCalculate_NoEvents_AccruesUnpaidInterest(t *testing.T) {
	result, log, err := Calculate(loan2023(), nil)
	require.NoError(t, err)

	assertDecimal(t, "12000.00", result.RemainingPrincipal)
	assertDecimal(t, "1200.01", result.UnpaidInterest)
	assert.InDelta(t, 1200.0, result.UnpaidInterest.InexactFloat64(), 0.05)
	assertDecimal(t, "1200.01", result.SumOfInterests)
	assertDecimal(t, "0", result.SumOfInstallments)
	assert.Equal(t, 365, result.DaysCalculated)
	assert.Equal(t, date(2023, time.December, 31), result.ActualEndDate)
	assert.False(t, result.PaidOff)
	assert.Nil(t, result.LatestPaymentDate)

	// opening, eleven monthly cadence dates, closing
	require.Len(t, log, 13)
	assert.Equal(t, models.EntryOpening, log[0].Kind)
	assert.Equal(t, models.EntryClosing, log[12].Kind)
	for i, e := range log {
		assert.False(t, e.WasPaid, "entry %d", i)
		assertDecimal(t, "12000.00", e.RemainingPrincipal, i)
	}
	assertDecimal(t, "101.92", log[1].InterestAccrued) // January, 31 days
	assert.Equal(t, 31, log[1].DaysSincePrevious)

	require.Contains(t, result.AnnualSummaries, 2023)
	summary := result.AnnualSummaries[2023]
	assertDecimal(t, "1200.01", summary.TotalInterest)
	assertDecimal(t, "0", summary.TotalPrincipal)
}

func TestCalculate_InstallmentAbsorbsUnpaidInterestFirst(t *testing.T) {
	events := []models.Event{{Date: date(2023, time.July, 1), PayInstallment: decPtr("6200.00")}}

	result, log, err := Calculate(loan2023(), events)
	require.NoError(t, err)

	var paid *models.PaymentLogEntry
	for i := range log {
		if log[i].WasPaid {
			paid = &log[i]
		}
	}
	require.NotNil(t, paid)
	assert.Equal(t, date(2023, time.July, 1), paid.Date)
	assertDecimal(t, "6200.00", paid.Installment)
	// Interest through June 30 is 595.07, the rest goes to principal.
	assertDecimal(t, "5604.93", paid.PrincipalReduction)
	assertDecimal(t, "6395.07", paid.RemainingPrincipal)
	assertDecimal(t, "0", paid.UnpaidInterest)

	// The next accrual runs on the reduced principal: 6395.07 * 0.10 * 31/365.
	next := log[indexAfter(log, date(2023, time.July, 1))]
	assert.Equal(t, date(2023, time.August, 1), next.Date)
	assertDecimal(t, "54.31", next.InterestAccrued)

	assertDecimal(t, "6395.07", result.RemainingPrincipal)
	assertDecimal(t, "6200.00", result.SumOfInstallments)
	require.NotNil(t, result.LatestPaymentDate)
	assert.Equal(t, date(2023, time.July, 1), *result.LatestPaymentDate)
}

func indexAfter(log []models.PaymentLogEntry, d time.Time) int {
	for i, e := range log {
		if e.Date.After(d) {
			return i
		}
	}
	return len(log) - 1
}

func TestCalculate_PartialPaymentLeavesPrincipalUntouched(t *testing.T) {
	events := []models.Event{{Date: date(2023, time.February, 1), PayInstallment: decPtr("50")}}

	_, log, err := Calculate(loan2023(), events)
	require.NoError(t, err)

	entry := log[1]
	require.True(t, entry.WasPaid)
	assertDecimal(t, "101.92", entry.InterestAccrued)
	assertDecimal(t, "51.92", entry.UnpaidInterest)
	assertDecimal(t, "0", entry.PrincipalReduction)
	assertDecimal(t, "12000.00", entry.RemainingPrincipal)
}

func TestCalculate_EarlyPayoffStopsTheWalk(t *testing.T) {
	def := models.LoanDefinition{
		StartDate: date(2023, time.January, 1),
		EndDate:   date(2025, time.December, 31),
		Principal: dec("1000"),
		Rate:      dec("0.12"),
		DayCount:  models.DayCountActual365,
	}
	events := []models.Event{
		{Date: date(2023, time.March, 1), PayInstallment: decPtr("2000"), Title: "early repayment"},
		{Date: date(2023, time.June, 1), PayInstallment: decPtr("10")},
	}

	result, log, err := Calculate(def, events)
	require.NoError(t, err)

	assert.True(t, result.PaidOff)
	assert.Equal(t, date(2023, time.March, 1), result.ActualEndDate)
	assert.True(t, result.ActualEndDate.Before(def.EndDate))
	assertDecimal(t, "0", result.RemainingPrincipal)
	assertDecimal(t, "0", result.UnpaidInterest)
	// 10.19 for January and 9.21 for February were owed.
	assertDecimal(t, "19.40", result.SumOfInterests)
	assertDecimal(t, "980.60", result.Overpayment)
	assertDecimal(t, "2000", result.SumOfInstallments)
	assert.Equal(t, 59, result.DaysCalculated)

	last := log[len(log)-1]
	assert.Equal(t, date(2023, time.March, 1), last.Date)
	assert.True(t, last.WasPaid)
	assertDecimal(t, "1000", last.PrincipalReduction)
}

func TestCalculate_PayoffDateAppliesEverySameDayEvent(t *testing.T) {
	events := []models.Event{
		{Date: date(2023, time.March, 1), PayInstallment: decPtr("20000"), Title: "payoff"},
		{Date: date(2023, time.March, 1), PaySingleFee: decPtr("50"), Title: "closing fee"},
		{Date: date(2023, time.March, 1), PayInstallment: decPtr("25"), Title: "second transfer"},
	}

	result, log, err := Calculate(loan2023(), events)
	require.NoError(t, err)

	assert.True(t, result.PaidOff)
	assert.Equal(t, date(2023, time.March, 1), result.ActualEndDate)
	assertDecimal(t, "50", result.SumOfFees)
	assertDecimal(t, "20025", result.SumOfInstallments)

	// opening, February cadence, then the three events of March 1
	require.Len(t, log, 5)
	assert.Equal(t, []string{"payoff", "closing fee", "second transfer"},
		[]string{log[2].Title, log[3].Title, log[4].Title})
	assertDecimal(t, "50", log[3].FeeApplied)
	assert.Equal(t, 0, log[4].DaysSincePrevious)

	owed := dec("12000").Add(result.SumOfInterests)
	assertDecimal(t, dec("20025").Sub(owed).String(), result.Overpayment)
}

func TestCalculate_ZeroRateAccruesNothing(t *testing.T) {
	def := loan2023()
	def.Rate = decimal.Zero
	events := []models.Event{
		{Date: date(2023, time.May, 10), PayInstallment: decPtr("500")},
		{Date: date(2023, time.September, 3), PaySingleFee: decPtr("25")},
	}

	result, log, err := Calculate(def, events)
	require.NoError(t, err)

	for i, e := range log {
		assert.True(t, e.InterestAccrued.IsZero(), "entry %d accrued %s", i, e.InterestAccrued)
	}
	assertDecimal(t, "0", result.SumOfInterests)
	assertDecimal(t, "11500", result.RemainingPrincipal)
	assertDecimal(t, "25", result.SumOfFees)
}

func TestCalculate_RateChangeAppliesFromItsDate(t *testing.T) {
	def := loan2023()
	events := []models.Event{{Date: date(2023, time.February, 1), Rate: decPtr("0.20")}}

	_, log, err := Calculate(def, events)
	require.NoError(t, err)

	// January accrues at the old rate, February at the new one.
	assertDecimal(t, "101.92", log[1].InterestAccrued)
	assertDecimal(t, "0.20", log[1].Rate)
	assert.Equal(t, date(2023, time.March, 1), log[2].Date)
	assertDecimal(t, "184.11", log[2].InterestAccrued) // 12000 * 0.20 * 28/365
}

func TestCalculate_SameDayEventsKeepInputOrder(t *testing.T) {
	d := date(2023, time.April, 15)
	events := []models.Event{
		{Date: date(2023, time.June, 1), PayInstallment: decPtr("100"), Title: "later"},
		{Date: d, PayInstallment: decPtr("300"), Title: "payment"},
		{Date: d, Rate: decPtr("0.05"), Title: "rate change"},
		{Date: d, PaySingleFee: decPtr("10"), Title: "fee"},
	}

	_, log, err := Calculate(loan2023(), events)
	require.NoError(t, err)

	var titles []string
	var rates []string
	var days []int
	for _, e := range log {
		if e.Date.Equal(d) {
			titles = append(titles, e.Title)
			rates = append(rates, e.Rate.String())
			days = append(days, e.DaysSincePrevious)
		}
	}
	assert.Equal(t, []string{"payment", "rate change", "fee"}, titles)
	assert.Equal(t, []string{"0.1", "0.05", "0.05"}, rates)
	assert.Equal(t, []int{14, 0, 0}, days)
}

func TestCalculate_FeesDoNotTouchPrincipal(t *testing.T) {
	def := loan2023()
	def.InitialFee = decPtr("150")
	events := []models.Event{{Date: date(2023, time.March, 20), PaySingleFee: decPtr("35.5")}}

	result, log, err := Calculate(def, events)
	require.NoError(t, err)

	assertDecimal(t, "150", log[0].FeeApplied)
	assert.Equal(t, def.StartDate, log[0].Date)
	assertDecimal(t, "185.50", result.SumOfFees)
	assertDecimal(t, "12000", result.RemainingPrincipal)
	assertDecimal(t, "185.50", result.AnnualSummaries[2023].TotalFees)
}

func TestCalculate_NonActionableEventIsNoOp(t *testing.T) {
	withNoise, noiseLog, err := Calculate(loan2023(), []models.Event{{Date: date(2023, time.March, 20), Title: "note"}})
	require.NoError(t, err)
	plain, plainLog, err := Calculate(loan2023(), nil)
	require.NoError(t, err)

	assert.Equal(t, plain, withNoise)
	assert.Equal(t, plainLog, noiseLog)
}

func TestCalculate_RejectsInvalidDefinition(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.LoanDefinition)
		field  string
	}{
		{"end before start", func(d *models.LoanDefinition) { d.EndDate = date(2022, time.December, 31) }, "end_date"},
		{"negative principal", func(d *models.LoanDefinition) { d.Principal = dec("-1") }, "principal"},
		{"negative rate", func(d *models.LoanDefinition) { d.Rate = dec("-0.01") }, "rate"},
		{"implicit day count", func(d *models.LoanDefinition) { d.DayCount = "" }, "day_count"},
		{"missing start", func(d *models.LoanDefinition) { d.StartDate = time.Time{} }, "start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := loan2023()
			tt.mutate(&def)

			result, log, err := Calculate(def, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
			var inv *models.InvalidInputError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tt.field, inv.Field)
			assert.Nil(t, result)
			assert.Nil(t, log)
		})
	}
}

func TestCalculate_EventBeforeStartAppliesOnStart(t *testing.T) {
	events := []models.Event{{Date: date(2022, time.December, 1), PayInstallment: decPtr("1000")}}

	_, log, err := Calculate(loan2023(), events)
	require.NoError(t, err)

	require.True(t, log[1].WasPaid)
	assert.Equal(t, date(2023, time.January, 1), log[1].Date)
	assert.Equal(t, 0, log[1].DaysSincePrevious)
	assertDecimal(t, "11000", log[1].RemainingPrincipal)
}

func TestCalculate_RecurringCadenceWithoutPaymentsRecordsUnpaidRows(t *testing.T) {
	def := loan2023()
	def.Recurring = &models.Recurring{FirstPaymentDate: date(2023, time.January, 31), PaymentDay: 31}

	_, log, err := Calculate(def, []models.Event{{Date: date(2023, time.February, 28), RecurringAmount: decPtr("1100")}})
	require.NoError(t, err)

	assert.Equal(t, date(2023, time.January, 31), log[1].Date)
	assert.Equal(t, models.EntryCadence, log[1].Kind)
	assert.False(t, log[1].WasPaid)
	assert.Equal(t, date(2023, time.February, 28), log[2].Date)
	assert.Equal(t, models.EntryEvent, log[2].Kind)
	assert.True(t, log[2].WasPaid)
	assert.Equal(t, date(2023, time.March, 31), log[3].Date)
	assert.Equal(t, models.EntryCadence, log[3].Kind)
}

func TestCalculate_SimulatedPaymentsDoNotMoveLatestPaymentDate(t *testing.T) {
	events := []models.Event{
		{Date: date(2023, time.March, 1), PayInstallment: decPtr("500")},
		{Date: date(2023, time.April, 1), RecurringAmount: decPtr("500"), IsSimulated: true},
	}

	result, log, err := Calculate(loan2023(), events)
	require.NoError(t, err)

	require.NotNil(t, result.LatestPaymentDate)
	assert.Equal(t, date(2023, time.March, 1), *result.LatestPaymentDate)
	assertDecimal(t, "1000", result.SumOfInstallments)
	var simulated int
	for _, e := range log {
		if e.Simulated {
			simulated++
		}
	}
	assert.Equal(t, 1, simulated)
}

// multiYear is a three-year loan with a mix of every event kind.
func multiYear() (models.LoanDefinition, []models.Event) {
	fee := dec("99")
	def := models.LoanDefinition{
		StartDate:  date(2022, time.March, 15),
		EndDate:    date(2025, time.March, 14),
		Principal:  dec("25000"),
		Rate:       dec("0.0725"),
		DayCount:   models.DayCountActualAct,
		InitialFee: &fee,
		Recurring:  &models.Recurring{FirstPaymentDate: date(2022, time.April, 15), PaymentDay: 15},
	}
	var events []models.Event
	for i, d := 0, date(2022, time.April, 15); d.Before(def.EndDate); i, d = i+1, d.AddDate(0, 1, 0) {
		events = append(events, models.Event{Date: d, RecurringAmount: decPtr("650"), Seq: i})
	}
	events = append(events,
		models.Event{Date: date(2023, time.January, 1), Rate: decPtr("0.081")},
		models.Event{Date: date(2023, time.June, 30), PayInstallment: decPtr("3000"), Title: "extra payment"},
		models.Event{Date: date(2023, time.August, 2), PaySingleFee: decPtr("12.50")},
		models.Event{Date: date(2024, time.February, 29), PayInstallment: decPtr("20")},
	)
	return def, events
}

func TestCalculate_Properties(t *testing.T) {
	def, events := multiYear()

	result, log, err := Calculate(def, events)
	require.NoError(t, err)
	require.NotEmpty(t, log)

	t.Run("principal conservation", func(t *testing.T) {
		reduced := decimal.Zero
		for _, e := range log {
			reduced = reduced.Add(e.PrincipalReduction)
		}
		assertDecimal(t, def.Principal.String(), reduced.Add(result.RemainingPrincipal))
	})

	t.Run("non negative and non increasing", func(t *testing.T) {
		prev := def.Principal
		for i, e := range log {
			assert.False(t, e.RemainingPrincipal.IsNegative(), "entry %d", i)
			assert.False(t, e.UnpaidInterest.IsNegative(), "entry %d", i)
			assert.True(t, e.RemainingPrincipal.LessThanOrEqual(prev), "entry %d", i)
			prev = e.RemainingPrincipal
		}
	})

	t.Run("monotonic time", func(t *testing.T) {
		for i := 1; i < len(log); i++ {
			assert.False(t, log[i].Date.Before(log[i-1].Date), "entry %d", i)
		}
	})

	t.Run("totals match the log", func(t *testing.T) {
		interest, fees, paid := decimal.Zero, decimal.Zero, decimal.Zero
		days := 0
		for _, e := range log {
			interest = interest.Add(e.InterestAccrued)
			fees = fees.Add(e.FeeApplied)
			paid = paid.Add(e.Installment)
			days += e.DaysSincePrevious
		}
		assertDecimal(t, result.SumOfInterests.String(), interest)
		assertDecimal(t, result.SumOfFees.String(), fees)
		assertDecimal(t, result.SumOfInstallments.String(), paid)
		assert.Equal(t, result.DaysCalculated, days)
	})

	t.Run("annual aggregation", func(t *testing.T) {
		principal, interest, fees := decimal.Zero, decimal.Zero, decimal.Zero
		for _, s := range result.AnnualSummaries {
			principal = principal.Add(s.TotalPrincipal)
			interest = interest.Add(s.TotalInterest)
			fees = fees.Add(s.TotalFees)
		}
		assertDecimal(t, def.Principal.Sub(result.RemainingPrincipal).String(), principal)
		assertDecimal(t, result.SumOfInterests.String(), interest)
		assertDecimal(t, result.SumOfFees.String(), fees)
		assert.Len(t, result.AnnualSummaries, 4)
	})

	t.Run("determinism", func(t *testing.T) {
		again, againLog, err := Calculate(def, events)
		require.NoError(t, err)
		assert.Equal(t, result, again)
		assert.Equal(t, log, againLog)
	})
}

func TestCalculate_DoesNotMutateEvents(t *testing.T) {
	def, events := multiYear()
	before := make([]models.Event, len(events))
	copy(before, events)

	_, _, err := Calculate(def, events)
	require.NoError(t, err)
	assert.Equal(t, before, events)
}
