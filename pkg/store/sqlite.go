package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/paydown/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps loan and payment records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and initializes the schema.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withPragmas(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// withPragmas adds foreign key enforcement and WAL mode to the DSN so that
// every pooled connection gets them, not only the first one.
func withPragmas(dataSourceName string) string {
	sep := "?"
	if strings.Contains(dataSourceName, "?") {
		sep = "&"
	}
	return dataSourceName + sep + "_foreign_keys=on&_journal_mode=WAL"
}

// initSchema creates the tables if they don't exist.
// Records are stored exactly as the host wrote them, as TEXT; parsing happens in normalize.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loan_records (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		principal TEXT NOT NULL DEFAULT '',
		interest_rate TEXT NOT NULL DEFAULT '',
		day_count TEXT NOT NULL DEFAULT '',
		initial_fee TEXT NOT NULL DEFAULT '',
		first_payment_date TEXT NOT NULL DEFAULT '',
		payment_day TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payment_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		loan_id TEXT NOT NULL,
		date TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		interest_rate TEXT NOT NULL DEFAULT '',
		installment TEXT NOT NULL DEFAULT '',
		single_fee TEXT NOT NULL DEFAULT '',
		recurring_amount TEXT NOT NULL DEFAULT '',
		simulated INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loan_records(id)
	);
	CREATE INDEX IF NOT EXISTS idx_payment_records_loan ON payment_records(loan_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

const loanColumns = `id, name, start_date, end_date, principal, interest_rate, day_count, initial_fee, first_payment_date, payment_day, created_at`

// CreateLoanRecord inserts a loan record, assigning an ID if it has none.
func (s *SQLiteStore) CreateLoanRecord(rec *models.LoanRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO loan_records (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Name, rec.StartDate, rec.EndDate, rec.Principal, rec.InterestRate, rec.DayCount,
		rec.InitialFee, rec.FirstPaymentDate, rec.PaymentDay, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoanRecord(row rowScanner) (*models.LoanRecord, error) {
	var rec models.LoanRecord
	var idStr string
	err := row.Scan(&idStr, &rec.Name, &rec.StartDate, &rec.EndDate, &rec.Principal, &rec.InterestRate,
		&rec.DayCount, &rec.InitialFee, &rec.FirstPaymentDate, &rec.PaymentDay, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt loan record id %q: %w", idStr, err)
	}
	rec.ID = id
	return &rec, nil
}

// GetLoanRecord retrieves a loan record by its ID.
func (s *SQLiteStore) GetLoanRecord(id uuid.UUID) (*models.LoanRecord, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loan_records WHERE id = ?`, id.String())
	rec, err := scanLoanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %s: %w", id, models.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("failed to get loan record: %w", err)
	}
	return rec, nil
}

// GetAllLoanRecords retrieves every loan record, oldest first.
func (s *SQLiteStore) GetAllLoanRecords() ([]*models.LoanRecord, error) {
	rows, err := s.db.Query(`SELECT ` + loanColumns + ` FROM loan_records ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan records: %w", err)
	}
	defer rows.Close()

	var recs []*models.LoanRecord
	for rows.Next() {
		rec, err := scanLoanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan record row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return recs, nil
}

// DeleteLoanRecord removes a loan record and its payment records within a transaction.
func (s *SQLiteStore) DeleteLoanRecord(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM payment_records WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated payment records: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loan_records WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("loan %s: %w", id, models.ErrLoanNotFound)
	}

	return tx.Commit()
}

// CreatePaymentRecord inserts a payment record. Records keep their insertion
// order, which is the order same-day events are applied in.
func (s *SQLiteStore) CreatePaymentRecord(rec *models.PaymentRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO payment_records (id, loan_id, date, title, interest_rate, installment, single_fee, recurring_amount, simulated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.LoanID.String(), rec.Date, rec.Title, rec.InterestRate, rec.Installment,
		rec.SingleFee, rec.RecurringAmount, rec.Simulated, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

// GetPaymentRecordsForLoan retrieves the payment records of a loan in insertion order.
func (s *SQLiteStore) GetPaymentRecordsForLoan(loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, loan_id, date, title, interest_rate, installment, single_fee, recurring_amount, simulated, created_at
		FROM payment_records WHERE loan_id = ? ORDER BY seq ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payment records for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var recs []*models.PaymentRecord
	for rows.Next() {
		var rec models.PaymentRecord
		var idStr, loanIDStr string
		if err := rows.Scan(&idStr, &loanIDStr, &rec.Date, &rec.Title, &rec.InterestRate, &rec.Installment,
			&rec.SingleFee, &rec.RecurringAmount, &rec.Simulated, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment record row: %w", err)
		}
		if rec.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("corrupt payment record id %q: %w", idStr, err)
		}
		if rec.LoanID, err = uuid.Parse(loanIDStr); err != nil {
			return nil, fmt.Errorf("corrupt payment record loan id %q: %w", loanIDStr, err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for payment records: %w", err)
	}
	return recs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
