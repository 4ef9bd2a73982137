package normalize

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/mcclellann/paydown/pkg/ledger"
	"github.com/mcclellann/paydown/pkg/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// earlyPaymentKeywords are matched as lowercase, diacritic-free substrings of
// the title. They cover English, Romanian, French, Italian, Spanish, German,
// Portuguese and Polish wording.
var earlyPaymentKeywords = []string{
	"early", "advance", "extra", "prepay", "pre-pay", "overpay", "additional",
	"anticipat", "anticipe", "anticipo", "avans", "suplimentar", "adelant",
	"vorzeitig", "sondertilgung", "antecipad", "amortizacao", "nadplat", "przedplat",
}

// IsEarlyPayment reports whether a payment title looks like an early or extra payment.
// It is a display hint: titles are free text and the match may be wrong.
func IsEarlyPayment(title string) bool {
	folded := foldTitle(title)
	if folded == "" {
		return false
	}
	for _, kw := range earlyPaymentKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

func foldTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

var errNegativeAmount = errors.New("amount must not be negative")

// Events converts raw payment records into events, in input order.
// Records with an unparseable date are dropped; unparseable optional amounts
// are omitted from their event. Both are reported as diagnostics.
func Events(records []models.PaymentRecord) ([]models.Event, []models.Diagnostic) {
	events := make([]models.Event, 0, len(records))
	var diags []models.Diagnostic

	for i, rec := range records {
		date, err := ParseDate(rec.Date)
		if err != nil {
			diags = append(diags, models.Diagnostic{
				Index: i, RecordID: rec.ID, Field: "date", Value: rec.Date,
				Dropped: true, Err: models.ErrUnparseableEvent,
			})
			continue
		}

		amount := func(field, raw string, parse func(string) (*decimal.Decimal, error)) *decimal.Decimal {
			v, err := parse(raw)
			if err == nil && v != nil && v.IsNegative() {
				err = errNegativeAmount
			}
			if err != nil {
				diags = append(diags, models.Diagnostic{
					Index: i, RecordID: rec.ID, Field: field, Value: raw, Err: err,
				})
				return nil
			}
			return v
		}

		ev := models.Event{
			Date:            date,
			Rate:            amount("interest_rate", rec.InterestRate, ParsePercent),
			PayInstallment:  amount("installment", rec.Installment, ParseAmount),
			PaySingleFee:    amount("single_fee", rec.SingleFee, ParseAmount),
			RecurringAmount: amount("recurring_amount", rec.RecurringAmount, ParseAmount),
			IsSimulated:     rec.Simulated,
			Title:           strings.TrimSpace(rec.Title),
			Seq:             i,
		}
		ev.EarlyPayment = IsEarlyPayment(ev.Title)
		events = append(events, ev)
	}
	return events, diags
}

// SimulateRecurring projects a payment of amount onto every cadence date of the
// loan in [from, def.EndDate]. The events are flagged as simulated.
func SimulateRecurring(def models.LoanDefinition, from time.Time, amount decimal.Decimal, seqBase int) []models.Event {
	var events []models.Event
	for i, d := range ledger.CadenceDates(def, from, def.EndDate) {
		a := amount
		events = append(events, models.Event{
			Date:            d,
			RecurringAmount: &a,
			IsSimulated:     true,
			Title:           "projected installment",
			Seq:             seqBase + i,
		})
	}
	return events
}
