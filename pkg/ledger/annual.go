package ledger

import (
	"github.com/mcclellann/paydown/pkg/models"
	"github.com/shopspring/decimal"
)

// Annual groups the log by the calendar year of each entry's date.
func Annual(log []models.PaymentLogEntry) map[int]models.AnnualSummary {
	summaries := make(map[int]models.AnnualSummary)
	for _, e := range log {
		year := e.Date.Year()
		s, ok := summaries[year]
		if !ok {
			s = models.AnnualSummary{
				Year:              year,
				TotalPrincipal:    decimal.Zero,
				TotalInterest:     decimal.Zero,
				TotalFees:         decimal.Zero,
				TotalInstallments: decimal.Zero,
			}
		}
		s.TotalPrincipal = s.TotalPrincipal.Add(e.PrincipalReduction)
		s.TotalInterest = s.TotalInterest.Add(e.InterestAccrued)
		s.TotalFees = s.TotalFees.Add(e.FeeApplied)
		s.TotalInstallments = s.TotalInstallments.Add(e.Installment)
		summaries[year] = s
	}
	return summaries
}

// Interleave returns the log with an annual summary row after the last entry
// of each year and after the final entry. The log itself is left untouched;
// rows point at copies of its entries.
func Interleave(log []models.PaymentLogEntry, summaries map[int]models.AnnualSummary) []models.DisplayRow {
	if summaries == nil {
		summaries = Annual(log)
	}
	rows := make([]models.DisplayRow, 0, len(log)+len(summaries))
	for i := range log {
		entry := log[i]
		rows = append(rows, models.DisplayRow{Entry: &entry})

		year := entry.Date.Year()
		if i+1 < len(log) && log[i+1].Date.Year() == year {
			continue
		}
		s, ok := summaries[year]
		if !ok {
			s = models.AnnualSummary{Year: year}
		}
		rows = append(rows, models.DisplayRow{Summary: &s})
	}
	return rows
}
