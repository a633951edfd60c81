// Package service provides the business logic layer (use cases).
// LedgerService owns the in-memory ledger: it applies every intent locally,
// mirrors it to the transactions backend, keeps the scheduling sweep armed and
// reports outcomes through the notifier.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// Options tunes the ledger behavior.
type Options struct {
	// ProcessingWindow is how long a new immediate transaction stays processing.
	ProcessingWindow time.Duration
	// Location defines "today" for date validation and expiry checks.
	Location *time.Location
	// RollbackOnConfirmFailure reverts an optimistic cancel/restore when the
	// backend rejects it. Off by default: the local change stands and the user is notified.
	RollbackOnConfirmFailure bool
	// MaxConcurrency bounds in-flight backend confirmations.
	MaxConcurrency int
}

// LedgerService is the single owner of the session's transactions.
type LedgerService struct {
	store    port.TransactionStore
	notifier port.Notifier
	clock    port.Clock
	metrics  *observability.Metrics
	logger   *zap.Logger
	opts     Options
	bulkhead *resilience.Bulkhead

	mu           sync.Mutex
	transactions []domain.Transaction
	timer        port.Timer
	generation   uint64
	closed       bool

	confirming map[string]chan struct{}
	pending    sync.WaitGroup
}

// NewLedgerService creates a ledger service with an empty ledger and no timer armed.
func NewLedgerService(store port.TransactionStore, notifier port.Notifier, clock port.Clock, metrics *observability.Metrics, logger *zap.Logger, opts Options) *LedgerService {
	if opts.ProcessingWindow <= 0 {
		opts.ProcessingWindow = 10 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	return &LedgerService{
		store:        store,
		notifier:     notifier,
		clock:        clock,
		metrics:      metrics,
		logger:       logger,
		opts:         opts,
		bulkhead:     resilience.NewBulkhead(opts.MaxConcurrency),
		transactions: []domain.Transaction{},
		confirming:   make(map[string]chan struct{}),
	}
}

// Now is the ledger's current time in its configured location.
func (s *LedgerService) Now() time.Time {
	return s.clock.Now().In(s.opts.Location)
}

// ============================================================
// Reads
// ============================================================

// List returns a copy of the records matching q, in ledger order.
func (s *LedgerService) List(q domain.Query) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Get returns one record by id.
func (s *LedgerService) Get(id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	t := s.transactions[i]
	return &t, nil
}

// Groups buckets the records matching q by effective day, newest first.
func (s *LedgerService) Groups(q domain.Query) []domain.TransactionGroup {
	return domain.GroupByDay(s.List(q))
}

// Size is the number of records held.
func (s *LedgerService) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

// Balance is the ledger balance in cents.
func (s *LedgerService) Balance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Balance(s.transactions)
}

// ============================================================
// Fetch
// ============================================================

// FetchAll replaces the ledger with the backend's records, newest first,
// then runs one sweep pass and re-arms. On failure the ledger is untouched.
func (s *LedgerService) FetchAll(ctx context.Context, filter domain.ListFilter) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.FetchAll")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordOperation("fetch", time.Since(start)) }()

	if filter.Sort == "" {
		filter.Sort, filter.Order = "date", "desc"
	}

	list, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		s.metrics.IncrExternalError("fetch")
		s.logger.Error("failed to fetch transactions", zap.Error(err))
		s.notifier.Error("Erro ao carregar transações. " + errorMessage(err))
		return err
	}
	domain.SortByDateDesc(list)

	s.mu.Lock()
	s.transactions = s.carryRuntimeLocked(list)
	s.metrics.SetLedgerSize(len(s.transactions))
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("transactions.count", len(list)))
	s.logger.Info("transactions fetched", zap.Int("count", len(list)))

	s.sweep()
	return nil
}

// carryRuntimeLocked keeps local runtime attributes that the backend does not
// own, for records whose status did not move underneath us.
func (s *LedgerService) carryRuntimeLocked(fetched []domain.Transaction) []domain.Transaction {
	local := make(map[string]domain.Transaction, len(s.transactions))
	for _, t := range s.transactions {
		local[t.ID] = t
	}
	for i, t := range fetched {
		prev, ok := local[t.ID]
		if !ok || prev.Status != t.Status {
			continue
		}
		switch t.Status {
		case domain.StatusCancelled:
			if prev.Locked {
				t.Locked = true
			}
			if t.PreviousStatus == prev.PreviousStatus {
				t = domain.CarryDeadline(prev, t)
			}
		case domain.StatusProcessing:
			if t.ProcessingUntil == "" {
				t.ProcessingUntil = prev.ProcessingUntil
			}
		}
		fetched[i] = t
	}
	return fetched
}

// ============================================================
// Helpers
// ============================================================

func (s *LedgerService) indexLocked(id string) int {
	for i, t := range s.transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Wait blocks until every in-flight backend confirmation has finished.
func (s *LedgerService) Wait() {
	s.pending.Wait()
}

// Close disarms the sweep and waits for in-flight confirmations.
func (s *LedgerService) Close() {
	s.mu.Lock()
	s.closed = true
	s.disarmLocked()
	s.mu.Unlock()
	s.pending.Wait()
}

// errorMessage extracts the user-facing part of a failure.
func errorMessage(err error) string {
	var validation *domain.ErrValidation
	if errors.As(err, &validation) {
		return validation.Message
	}
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) && ext.Err != nil {
		return ext.Err.Error()
	}
	return err.Error()
}
