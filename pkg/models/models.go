package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayCountMethod fixes how a number of elapsed days converts into a fraction of annual interest.
type DayCountMethod string

const (
	DayCountActual365 DayCountMethod = "act/365"
	DayCountActual360 DayCountMethod = "act/360"
	DayCountActualAct DayCountMethod = "act/act"
	DayCount30360     DayCountMethod = "30/360"
)

// Valid reports whether m is one of the supported conventions.
func (m DayCountMethod) Valid() bool {
	switch m {
	case DayCountActual365, DayCountActual360, DayCountActualAct, DayCount30360:
		return true
	}
	return false
}

// Recurring describes the payment cadence of a loan. It carries no amount.
type Recurring struct {
	FirstPaymentDate time.Time `json:"first_payment_date"`
	PaymentDay       int       `json:"payment_day"` // 1-31, clamped to the month length
}

// LoanDefinition is the canonical, immutable description of a loan.
type LoanDefinition struct {
	StartDate  time.Time        `json:"start_date"`
	EndDate    time.Time        `json:"end_date"`
	Principal  decimal.Decimal  `json:"principal"`
	Rate       decimal.Decimal  `json:"rate"` // nominal annual rate as a fraction (0.10 = 10%)
	DayCount   DayCountMethod   `json:"day_count"`
	InitialFee *decimal.Decimal `json:"initial_fee,omitempty"`
	Recurring  *Recurring       `json:"recurring,omitempty"`
}

// Event is one recorded (or simulated) rate change, payment or fee.
// Only the fields relevant to its purpose are set.
type Event struct {
	Date            time.Time        `json:"date"`
	Rate            *decimal.Decimal `json:"rate,omitempty"`
	PayInstallment  *decimal.Decimal `json:"pay_installment,omitempty"`
	PaySingleFee    *decimal.Decimal `json:"pay_single_fee,omitempty"`
	RecurringAmount *decimal.Decimal `json:"recurring_amount,omitempty"`
	IsSimulated     bool             `json:"is_simulated"`
	Title           string           `json:"title,omitempty"`
	EarlyPayment    bool             `json:"early_payment"` // keyword heuristic, display hint only
	Seq             int              `json:"seq"`           // position in the input, keeps same-day order stable
}

// Actionable reports whether the event changes anything when applied.
func (e Event) Actionable() bool {
	return e.Rate != nil || e.PayInstallment != nil || e.PaySingleFee != nil || e.RecurringAmount != nil
}

// Payment returns the amount paid by the event, if any.
func (e Event) Payment() (decimal.Decimal, bool) {
	if e.PayInstallment == nil && e.RecurringAmount == nil {
		return decimal.Zero, false
	}
	amount := decimal.Zero
	if e.PayInstallment != nil {
		amount = amount.Add(*e.PayInstallment)
	}
	if e.RecurringAmount != nil {
		amount = amount.Add(*e.RecurringAmount)
	}
	return amount, true
}

type EntryKind string

const (
	EntryOpening EntryKind = "opening"
	EntryEvent   EntryKind = "event"
	EntryCadence EntryKind = "cadence" // scheduled payment date with no recorded event
	EntryClosing EntryKind = "closing"
)

// PaymentLogEntry is one processed boundary of the schedule. Entries are never mutated once appended.
type PaymentLogEntry struct {
	Date               time.Time       `json:"date"`
	Kind               EntryKind       `json:"kind"`
	Rate               decimal.Decimal `json:"rate_in_effect"`
	Installment        decimal.Decimal `json:"installment_amount"`
	PrincipalReduction decimal.Decimal `json:"principal_reduction"`
	InterestAccrued    decimal.Decimal `json:"interest_accrued"`
	RemainingPrincipal decimal.Decimal `json:"remaining_principal"`
	UnpaidInterest     decimal.Decimal `json:"unpaid_interest"`
	FeeApplied         decimal.Decimal `json:"fee_applied"`
	WasPaid            bool            `json:"was_paid"`
	DaysSincePrevious  int             `json:"days_since_previous_entry"`
	Simulated          bool            `json:"simulated"`
	EarlyPayment       bool            `json:"early_payment"`
	Title              string          `json:"title,omitempty"`
}

// AnnualSummary aggregates a calendar year of the payment log.
type AnnualSummary struct {
	Year              int             `json:"year"`
	TotalPrincipal    decimal.Decimal `json:"total_principal"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	TotalFees         decimal.Decimal `json:"total_fees"`
	TotalInstallments decimal.Decimal `json:"total_installments"`
}

// PaydownResult is the loan-level summary of one computation.
type PaydownResult struct {
	SumOfInterests     decimal.Decimal       `json:"sum_of_interests"`
	SumOfFees          decimal.Decimal       `json:"sum_of_fees"`
	SumOfInstallments  decimal.Decimal       `json:"sum_of_installments"`
	RemainingPrincipal decimal.Decimal       `json:"remaining_principal"`
	UnpaidInterest     decimal.Decimal       `json:"unpaid_interest"`
	Overpayment        decimal.Decimal       `json:"overpayment"`
	DaysCalculated     int                   `json:"days_calculated"`
	ActualEndDate      time.Time             `json:"actual_end_date"`
	LatestPaymentDate  *time.Time            `json:"latest_payment_date,omitempty"`
	PaidOff            bool                  `json:"paid_off"`
	AnnualSummaries    map[int]AnnualSummary `json:"annual_summaries"`
}

// DisplayRow is either a log entry or an annual summary marker.
type DisplayRow struct {
	Entry   *PaymentLogEntry `json:"entry,omitempty"`
	Summary *AnnualSummary   `json:"summary,omitempty"`
}

// LoanRecord is a loan as the host application stores it: locale-encoded text.
type LoanRecord struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date"`
	Principal        string    `json:"principal"`
	InterestRate     string    `json:"interest_rate"` // percent, e.g. "7,5"
	DayCount         string    `json:"day_count"`
	InitialFee       string    `json:"initial_fee,omitempty"`
	FirstPaymentDate string    `json:"first_payment_date,omitempty"`
	PaymentDay       string    `json:"payment_day,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// PaymentRecord is a recorded payment, fee or rate change as the host application stores it.
type PaymentRecord struct {
	ID              uuid.UUID `json:"id"`
	LoanID          uuid.UUID `json:"loan_id"`
	Date            string    `json:"date"`
	Title           string    `json:"title,omitempty"`
	InterestRate    string    `json:"interest_rate,omitempty"` // percent
	Installment     string    `json:"installment,omitempty"`
	SingleFee       string    `json:"single_fee,omitempty"`
	RecurringAmount string    `json:"recurring_amount,omitempty"`
	Simulated       bool      `json:"simulated"`
	CreatedAt       time.Time `json:"created_at"`
}
