package ledger

import (
	"testing"
	"time"

	"github.com/mcclellann/paydown/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(d time.Time, principal, interest, fee string) models.PaymentLogEntry {
	return models.PaymentLogEntry{
		Date:               d,
		PrincipalReduction: dec(principal),
		InterestAccrued:    dec(interest),
		FeeApplied:         dec(fee),
		Installment:        dec(principal).Add(dec(interest)),
	}
}

func TestAnnual_GroupsByEntryYear(t *testing.T) {
	log := []models.PaymentLogEntry{
		entry(date(2023, time.November, 1), "100", "10", "0"),
		entry(date(2023, time.December, 31), "100", "9.50", "5"),
		entry(date(2024, time.January, 1), "200", "8.25", "0"),
	}

	got := Annual(log)

	require.Len(t, got, 2)
	assertDecimal(t, "200", got[2023].TotalPrincipal)
	assertDecimal(t, "19.50", got[2023].TotalInterest)
	assertDecimal(t, "5", got[2023].TotalFees)
	assertDecimal(t, "219.50", got[2023].TotalInstallments)
	assertDecimal(t, "200", got[2024].TotalPrincipal)
	assertDecimal(t, "8.25", got[2024].TotalInterest)
	assert.Equal(t, 2024, got[2024].Year)
}

func TestInterleave_InsertsSummaryAfterEachYear(t *testing.T) {
	def, events := multiYear()
	result, log, err := Calculate(def, events)
	require.NoError(t, err)
	original := append([]models.PaymentLogEntry(nil), log...)

	rows := Interleave(log, result.AnnualSummaries)

	require.Len(t, rows, len(log)+len(result.AnnualSummaries))
	assert.Equal(t, original, log, "log must not be mutated")

	var years []int
	for i, row := range rows {
		if row.Summary == nil {
			require.NotNil(t, row.Entry)
			continue
		}
		years = append(years, row.Summary.Year)
		require.Greater(t, i, 0)
		prev := rows[i-1].Entry
		require.NotNil(t, prev, "summary follows an entry")
		assert.Equal(t, row.Summary.Year, prev.Date.Year())
		if i+1 < len(rows) {
			assert.Equal(t, row.Summary.Year+1, rows[i+1].Entry.Date.Year())
		}
	}
	assert.Equal(t, []int{2022, 2023, 2024, 2025}, years)
	assert.NotNil(t, rows[len(rows)-1].Summary, "final row is a summary")
}

func TestInterleave_ComputesSummariesWhenMissing(t *testing.T) {
	log := []models.PaymentLogEntry{entry(date(2023, time.March, 1), "10", "1", "0")}

	rows := Interleave(log, nil)

	require.Len(t, rows, 2)
	require.NotNil(t, rows[1].Summary)
	assertDecimal(t, "10", rows[1].Summary.TotalPrincipal)
}

func TestInterleave_EmptyLog(t *testing.T) {
	assert.Empty(t, Interleave(nil, nil))
}
