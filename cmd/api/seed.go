package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mcclellann/paydown/pkg/logging"
	"github.com/mcclellann/paydown/pkg/models"
	"github.com/mcclellann/paydown/pkg/store"
)

// seedLoan is a loan record followed by its payment records, in application order.
type seedLoan struct {
	models.LoanRecord
	Payments []models.PaymentRecord `json:"payments"`
}

type seedFile struct {
	Loans []seedLoan `json:"loans"`
}

// seedFromFile loads loans and payments from a JSON file into the store.
// Loans whose id is already stored are skipped so a restart does not duplicate them.
func seedFromFile(s store.Storage, path string, logger *logging.Logger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to decode seed file: %w", err)
	}

	logger = logger.WithComponent(logging.ComponentSeed)
	created := 0
	for i := range seed.Loans {
		loan := &seed.Loans[i].LoanRecord
		if _, err := s.GetLoanRecord(loan.ID); err == nil {
			logger.Debug("loan already stored", logging.FieldLoanID, loan.ID.String())
			continue
		} else if !errors.Is(err, models.ErrLoanNotFound) {
			return created, err
		}

		if err := s.CreateLoanRecord(loan); err != nil {
			return created, err
		}
		for j := range seed.Loans[i].Payments {
			p := &seed.Loans[i].Payments[j]
			p.LoanID = loan.ID
			if err := s.CreatePaymentRecord(p); err != nil {
				return created, err
			}
		}
		created++
	}
	return created, nil
}
