package normalize

import (
	"strconv"
	"strings"

	"github.com/mcclellann/paydown/pkg/models"
)

// Loan converts a raw loan record into a LoanDefinition.
// Every problem is reported as a *models.InvalidInputError.
func Loan(rec models.LoanRecord) (models.LoanDefinition, error) {
	invalid := func(field, value, reason string) error {
		return &models.InvalidInputError{LoanID: rec.ID, Field: field, Value: value, Reason: reason}
	}

	var def models.LoanDefinition

	start, err := ParseDate(rec.StartDate)
	if err != nil {
		return def, invalid("start_date", rec.StartDate, "missing or unparseable")
	}
	end, err := ParseDate(rec.EndDate)
	if err != nil {
		return def, invalid("end_date", rec.EndDate, "missing or unparseable")
	}
	if end.Before(start) {
		return def, invalid("end_date", rec.EndDate, "before start_date "+FormatDate(start))
	}

	principal, err := ParseAmount(rec.Principal)
	if err != nil || principal == nil {
		return def, invalid("principal", rec.Principal, "missing or unparseable")
	}
	if principal.IsNegative() {
		return def, invalid("principal", rec.Principal, "must not be negative")
	}

	rate, err := ParsePercent(rec.InterestRate)
	if err != nil || rate == nil {
		return def, invalid("interest_rate", rec.InterestRate, "missing or unparseable")
	}
	if rate.IsNegative() {
		return def, invalid("interest_rate", rec.InterestRate, "must not be negative")
	}

	method := models.DayCountMethod(strings.ToLower(strings.TrimSpace(rec.DayCount)))
	if !method.Valid() {
		return def, invalid("day_count", rec.DayCount, "must be one of act/365, act/360, act/act, 30/360")
	}

	def = models.LoanDefinition{
		StartDate: start,
		EndDate:   end,
		Principal: principal.Round(2),
		Rate:      *rate,
		DayCount:  method,
	}

	fee, err := ParseAmount(rec.InitialFee)
	if err != nil {
		return models.LoanDefinition{}, invalid("initial_fee", rec.InitialFee, "unparseable")
	}
	if fee != nil {
		if fee.IsNegative() {
			return models.LoanDefinition{}, invalid("initial_fee", rec.InitialFee, "must not be negative")
		}
		rounded := fee.Round(2)
		def.InitialFee = &rounded
	}

	if strings.TrimSpace(rec.FirstPaymentDate) != "" {
		first, err := ParseDate(rec.FirstPaymentDate)
		if err != nil {
			return models.LoanDefinition{}, invalid("first_payment_date", rec.FirstPaymentDate, "unparseable")
		}
		day := first.Day()
		if s := strings.TrimSpace(rec.PaymentDay); s != "" {
			day, err = strconv.Atoi(s)
			if err != nil || day < 1 || day > 31 {
				return models.LoanDefinition{}, invalid("payment_day", rec.PaymentDay, "must be a day of month between 1 and 31")
			}
		}
		def.Recurring = &models.Recurring{FirstPaymentDate: first, PaymentDay: day}
	} else if strings.TrimSpace(rec.PaymentDay) != "" {
		return models.LoanDefinition{}, invalid("payment_day", rec.PaymentDay, "requires first_payment_date")
	}

	return def, nil
}
