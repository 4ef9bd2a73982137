package store

import (
	"github.com/google/uuid"
	"github.com/mcclellann/paydown/pkg/models"
)

// Storage defines the interface for the raw loan and payment records the engine reads.
type Storage interface {
	CreateLoanRecord(rec *models.LoanRecord) error
	GetLoanRecord(id uuid.UUID) (*models.LoanRecord, error)
	GetAllLoanRecords() ([]*models.LoanRecord, error)
	DeleteLoanRecord(id uuid.UUID) error

	CreatePaymentRecord(rec *models.PaymentRecord) error
	GetPaymentRecordsForLoan(loanID uuid.UUID) ([]*models.PaymentRecord, error)

	Close() error
}
