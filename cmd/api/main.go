package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mcclellann/paydown/pkg/config"
	"github.com/mcclellann/paydown/pkg/logging"
	"github.com/mcclellann/paydown/pkg/models"
	"github.com/mcclellann/paydown/pkg/paydown"
	"github.com/mcclellann/paydown/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Server holds the paydown service and the storage it reads from.
type Server struct {
	paydown *paydown.Service
	storage store.Storage // Keep a reference to the storage to close it
	logger  *logging.Logger
}

func NewServer(s store.Storage, opts paydown.Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		paydown: paydown.NewService(s, opts),
		storage: s,
		logger:  logger.WithComponent(logging.ComponentHTTP),
	}
}

// Router wires every route of the API.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/paydown", s.paydownHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/paydown/annual", s.annualHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/projection", s.projectionHandler).Methods("GET")
	router.HandleFunc("/paydown", s.computeHandler).Methods("POST")
	router.HandleFunc("/paydown/all", s.computeAllHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

type loanSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.storage.GetAllLoanRecords()
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]loanSummary, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanSummary{ID: l.ID, Name: l.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) paydownHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}

	report, err := s.paydown.ComputeStored(r.Context(), loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) annualHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}

	report, err := s.paydown.ComputeStored(r.Context(), loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	summaries := make([]models.AnnualSummary, 0, len(report.Result.AnnualSummaries))
	for _, a := range report.Result.AnnualSummaries {
		summaries = append(summaries, a)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Year < summaries[j].Year })
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) projectionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		http.Error(w, "amount must be a decimal number", http.StatusBadRequest)
		return
	}

	report, err := s.paydown.ProjectStored(r.Context(), loanID, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// computeRequest carries raw records for a computation that touches no storage.
type computeRequest struct {
	Loan     models.LoanRecord      `json:"loan"`
	Payments []models.PaymentRecord `json:"payments"`
}

func (s *Server) computeHandler(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payments := make([]*models.PaymentRecord, len(req.Payments))
	for i := range req.Payments {
		payments[i] = &req.Payments[i]
	}
	report, err := s.paydown.Compute(r.Context(), &req.Loan, payments)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) computeAllHandler(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.paydown.ComputeAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func loanIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return loanID, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrLoanNotFound):
		http.Error(w, "Loan not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.Error("request failed", logging.FieldError, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			logging.FieldMethod, r.Method,
			logging.FieldPath, r.URL.Path,
			logging.FieldStatusCode, rec.status,
			logging.FieldDuration, time.Since(start).Milliseconds(),
		)
	})
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(logging.Config{Level: level, Component: logging.ComponentApp, Output: os.Stdout})
	logging.SetDefault(logger)

	sqliteStore, err := store.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	if cfg.SeedFile != "" {
		n, err := seedFromFile(sqliteStore, cfg.SeedFile, logger)
		if err != nil {
			log.Fatalf("Failed to seed records: %v", err)
		}
		logger.Info("seed file loaded", "loans", n)
	}

	server := NewServer(sqliteStore, paydown.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Workers:   cfg.Workers,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", logging.FieldError, err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", logging.FieldError, err)
	}
	logger.Info("server stopped")
}
