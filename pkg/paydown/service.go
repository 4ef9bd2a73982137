// Package paydown turns stored loan and payment records into paydown reports.
// It chains the normalizer, the memoized ledger walk and the annual aggregator.
package paydown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/paydown/pkg/cache"
	"github.com/mcclellann/paydown/pkg/ledger"
	"github.com/mcclellann/paydown/pkg/logging"
	"github.com/mcclellann/paydown/pkg/metrics"
	"github.com/mcclellann/paydown/pkg/models"
	"github.com/mcclellann/paydown/pkg/normalize"
	"github.com/mcclellann/paydown/pkg/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Report is everything computed for one loan.
type Report struct {
	LoanID      uuid.UUID                `json:"loan_id"`
	Name        string                   `json:"name"`
	Definition  models.LoanDefinition    `json:"definition"`
	Events      []models.Event           `json:"events"`
	Result      *models.PaydownResult    `json:"result"`
	Log         []models.PaymentLogEntry `json:"log"`
	Rows        []models.DisplayRow      `json:"rows"`
	Diagnostics []models.Diagnostic      `json:"diagnostics"`
	// CostPerDay is the interest paid per accrued day.
	CostPerDay decimal.Decimal `json:"cost_per_day"`
	CacheHit   bool            `json:"cache_hit"`
}

// Outcome is one loan's entry in a batch run.
type Outcome struct {
	LoanID uuid.UUID `json:"loan_id"`
	Name   string    `json:"name"`
	Report *Report   `json:"report,omitempty"`
	Error  string    `json:"error,omitempty"`
	Err    error     `json:"-"`
}

// Options configures a Service.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Workers   int
	Logger    *logging.Logger
}

// Service computes paydown reports for records held in a Storage.
type Service struct {
	storage store.Storage
	memo    *cache.Memo
	logger  *logging.Logger
	workers int
}

// NewService creates a Service reading from the given Storage.
func NewService(s store.Storage, opts Options) *Service {
	if opts.CacheSize < 1 {
		opts.CacheSize = 128
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		storage: s,
		memo:    cache.NewMemo(opts.CacheSize, opts.CacheTTL),
		logger:  logger.WithComponent(logging.ComponentPaydown),
		workers: opts.Workers,
	}
}

// CacheStats reports memo usage.
func (s *Service) CacheStats() cache.Stats {
	return s.memo.Stats()
}

// Compute builds the report for a raw loan record and its payment records.
// Unusable payment records become diagnostics; a malformed loan record fails
// with an error wrapping models.ErrInvalidInput.
func (s *Service) Compute(ctx context.Context, loan *models.LoanRecord, payments []*models.PaymentRecord) (*Report, error) {
	return s.compute(ctx, loan, payments, nil)
}

// Project is Compute with a simulated recurring payment of amount on every
// cadence date after the last recorded event.
func (s *Service) Project(ctx context.Context, loan *models.LoanRecord, payments []*models.PaymentRecord, amount decimal.Decimal) (*Report, error) {
	if amount.IsNegative() {
		return nil, &models.InvalidInputError{LoanID: loan.ID, Field: "amount", Value: amount.String(), Reason: "must not be negative"}
	}
	return s.compute(ctx, loan, payments, func(def models.LoanDefinition, events []models.Event) []models.Event {
		from := def.StartDate
		for _, ev := range events {
			if !ev.Date.Before(from) {
				from = ev.Date.AddDate(0, 0, 1)
			}
		}
		return append(events, normalize.SimulateRecurring(def, from, amount, len(events))...)
	})
}

// ComputeStored loads a loan and its payments from storage and computes its report.
func (s *Service) ComputeStored(ctx context.Context, loanID uuid.UUID) (*Report, error) {
	loan, payments, err := s.load(loanID)
	if err != nil {
		return nil, err
	}
	return s.Compute(ctx, loan, payments)
}

// ProjectStored is Project for a stored loan.
func (s *Service) ProjectStored(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (*Report, error) {
	loan, payments, err := s.load(loanID)
	if err != nil {
		return nil, err
	}
	return s.Project(ctx, loan, payments, amount)
}

// ComputeAll computes every stored loan on a bounded pool of workers.
// Invalid loans are reported in their Outcome; storage failures abort the batch.
func (s *Service) ComputeAll(ctx context.Context) ([]Outcome, error) {
	loans, err := s.storage.GetAllLoanRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	outcomes := make([]Outcome, len(loans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, loan := range loans {
		i, loan := i, loan
		g.Go(func() error {
			payments, err := s.storage.GetPaymentRecordsForLoan(loan.ID)
			if err != nil {
				return fmt.Errorf("failed to load payments for loan %s: %w", loan.ID, err)
			}
			out := Outcome{LoanID: loan.ID, Name: loan.Name}
			report, err := s.Compute(gctx, loan, payments)
			switch {
			case err == nil:
				out.Report = report
			case errors.Is(err, models.ErrInvalidInput):
				out.Err, out.Error = err, err.Error()
			default:
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *Service) load(loanID uuid.UUID) (*models.LoanRecord, []*models.PaymentRecord, error) {
	loan, err := s.storage.GetLoanRecord(loanID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := s.storage.GetPaymentRecordsForLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	return loan, payments, nil
}

type eventHook func(def models.LoanDefinition, events []models.Event) []models.Event

func (s *Service) compute(ctx context.Context, loan *models.LoanRecord, payments []*models.PaymentRecord, hook eventHook) (report *Report, err error) {
	started := time.Now()
	defer func() {
		metrics.ComputeDuration.Observe(time.Since(started).Seconds())
		metrics.Computations.WithLabelValues(statusOf(err)).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := s.logger.With(logging.FieldLoanID, loan.ID.String())

	def, err := normalize.Loan(*loan)
	if err != nil {
		logger.WarnContext(ctx, "loan record rejected", logging.FieldError, err)
		return nil, err
	}

	records := make([]models.PaymentRecord, len(payments))
	for i, p := range payments {
		records[i] = *p
	}
	events, diags := normalize.Events(records)
	for _, d := range diags {
		metrics.EventDiagnostics.WithLabelValues(d.Field, strconv.FormatBool(d.Dropped)).Inc()
		logger.WarnContext(ctx, "payment record not usable as given",
			logging.FieldIndex, d.Index,
			logging.FieldRecordID, d.RecordID.String(),
			logging.FieldField, d.Field,
			logging.FieldValue, d.Value,
			logging.FieldDropped, d.Dropped,
			logging.FieldError, d.Err,
		)
	}
	if hook != nil {
		events = hook(def, events)
	}

	key, err := cache.Key(def, events)
	if err != nil {
		return nil, err
	}
	schedule, hit, err := s.memo.GetOrCompute(key, func() (cache.Schedule, error) {
		result, log, err := ledger.Calculate(def, events)
		if err != nil {
			return cache.Schedule{}, err
		}
		return cache.Schedule{Result: result, Log: log}, nil
	})
	if hit {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	if err != nil {
		var invalid *models.InvalidInputError
		if errors.As(err, &invalid) && invalid.LoanID == uuid.Nil {
			invalid.LoanID = loan.ID
		}
		logger.WarnContext(ctx, "loan definition rejected", logging.FieldError, err)
		return nil, err
	}

	report = &Report{
		LoanID:      loan.ID,
		Name:        loan.Name,
		Definition:  def,
		Events:      events,
		Result:      schedule.Result,
		Log:         schedule.Log,
		Rows:        ledger.Interleave(schedule.Log, schedule.Result.AnnualSummaries),
		Diagnostics: diags,
		CostPerDay:  CostPerDay(schedule.Result),
		CacheHit:    hit,
	}
	logger.DebugContext(ctx, "paydown computed",
		logging.FieldEvents, len(events),
		logging.FieldEntries, len(schedule.Log),
		logging.FieldCacheHit, hit,
	)
	return report, nil
}

// CostPerDay divides the interest paid by the number of accrued days.
func CostPerDay(r *models.PaydownResult) decimal.Decimal {
	if r == nil || r.DaysCalculated <= 0 {
		return decimal.Zero
	}
	return r.SumOfInterests.Div(decimal.NewFromInt(int64(r.DaysCalculated))).Round(2)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, models.ErrInvalidInput):
		return metrics.StatusInvalidInput
	default:
		return metrics.StatusError
	}
}
