package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Add / Patch / Remove: confirmed by the backend before any local change
// ============================================================

// Add validates the draft, creates it in the backend and prepends the stored
// record (with its backend id) to the ledger.
func (s *LedgerService) Add(ctx context.Context, draft domain.Draft) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Add")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordOperation("add", time.Since(start)) }()

	now := s.Now()
	if err := validateDraft(draft, domain.DayOf(now)); err != nil {
		return nil, err
	}
	record := newTransaction(draft, now, s.opts.ProcessingWindow)

	created, err := s.store.CreateTransaction(ctx, record)
	if err != nil {
		s.metrics.IncrExternalError("add")
		s.logger.Error("failed to create transaction", zap.String("type", string(draft.Type)), zap.Error(err))
		s.notifier.Error("Erro ao salvar transação. " + errorMessage(err))
		return nil, err
	}
	if created.Status == domain.StatusProcessing && created.ProcessingUntil == "" {
		created.ProcessingUntil = record.ProcessingUntil
	}

	s.mu.Lock()
	s.transactions = append([]domain.Transaction{*created}, s.transactions...)
	s.metrics.SetLedgerSize(len(s.transactions))
	s.rearmLocked()
	s.mu.Unlock()

	span.SetAttributes(attribute.String("transaction.id", created.ID))
	s.logger.Info("transaction created",
		zap.String("transaction_id", created.ID),
		zap.String("type", string(created.Type)),
		zap.String("status", string(created.Status)),
		zap.Int64("amount_minor", created.AmountMinor()),
	)
	s.notifier.Success("Transação criada com sucesso!")

	result := *created
	return &result, nil
}

// Patch edits an editable record. The local record is replaced by the
// backend's version only after the backend accepts the change.
func (s *LedgerService) Patch(ctx context.Context, id string, p domain.TransactionPatch) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Patch")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() { s.metrics.RecordOperation("patch", time.Since(start)) }()

	if p.IsEmpty() {
		return nil, &domain.ErrValidation{Field: "patch", Message: "nothing to update"}
	}

	current, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanEdit(*current) {
		return nil, &domain.ErrTransitionNotAllowed{ID: id, From: current.Status, Action: "edit"}
	}

	result := p.Apply(*current)
	if err := validatePatch(p, result, domain.DayOf(s.Now())); err != nil {
		return nil, err
	}

	updated, err := s.store.PatchTransaction(ctx, id, p.Fields(result))
	if err != nil {
		s.metrics.IncrExternalError("patch")
		s.logger.Error("failed to patch transaction", zap.String("transaction_id", id), zap.Error(err))
		s.notifier.Error("Erro ao salvar transação. " + errorMessage(err))
		return nil, err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		local := s.transactions[i]
		switch {
		case local.Status != current.Status:
			// a cancel, restore or sweep landed while the edit was in flight;
			// the edit keeps its fields and the local lifecycle wins
			*updated = domain.WithLifecycle(*updated, local)
			s.logger.Info("transaction status changed during edit",
				zap.String("transaction_id", id),
				zap.String("edited_from", string(current.Status)),
				zap.String("status", string(local.Status)),
			)
		case updated.Status == domain.StatusProcessing && updated.ProcessingUntil == "":
			updated.ProcessingUntil = local.ProcessingUntil
		}
		s.transactions[i] = *updated
	}
	s.rearmLocked()
	s.mu.Unlock()

	s.logger.Info("transaction updated",
		zap.String("transaction_id", id),
		zap.String("status", string(updated.Status)),
	)
	s.notifier.Success("Transação atualizada com sucesso!")

	result = *updated
	return &result, nil
}

// Remove deletes a record from the backend, then from the ledger.
func (s *LedgerService) Remove(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() { s.metrics.RecordOperation("remove", time.Since(start)) }()

	current, err := s.Get(id)
	if err != nil {
		return err
	}
	if !domain.CanDelete(*current) {
		return &domain.ErrTransitionNotAllowed{ID: id, From: current.Status, Action: "delete"}
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		s.metrics.IncrExternalError("remove")
		s.logger.Error("failed to delete transaction", zap.String("transaction_id", id), zap.Error(err))
		s.notifier.Error("Erro ao excluir transação. " + errorMessage(err))
		return err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.transactions = append(s.transactions[:i:i], s.transactions[i+1:]...)
	}
	s.metrics.SetLedgerSize(len(s.transactions))
	s.rearmLocked()
	s.mu.Unlock()

	s.logger.Info("transaction deleted", zap.String("transaction_id", id))
	s.notifier.Success("Transação excluída.")
	return nil
}

// ============================================================
// Cancel / Restore: optimistic, confirmed asynchronously
// ============================================================

// Cancel marks the record cancelled right away and confirms with the backend
// in the background. The returned record is the optimistic local state.
func (s *LedgerService) Cancel(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() { s.metrics.RecordOperation("cancel", time.Since(start)) }()

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	before := s.transactions[i]
	after, err := domain.Cancel(before)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.transactions[i] = after
	s.rearmLocked()
	s.mu.Unlock()

	s.logger.Info("transaction cancelled",
		zap.String("transaction_id", id),
		zap.String("previous_status", string(before.Status)),
	)

	s.confirm(ctx, "cancel", before, after, map[string]any{
		"status":          domain.StatusCancelled,
		"previousStatus":  before.Status,
		"processingUntil": nil,
	})
	return &after, nil
}

// Restore returns a cancelled record to its previous status right away and
// confirms with the backend in the background.
func (s *LedgerService) Restore(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Restore")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() { s.metrics.RecordOperation("restore", time.Since(start)) }()

	now := s.Now()

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	before := s.transactions[i]
	after, err := domain.Restore(before, domain.FormatDeadline(now.Add(s.opts.ProcessingWindow)))
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.transactions[i] = after
	s.rearmLocked()
	s.mu.Unlock()

	s.logger.Info("transaction restored",
		zap.String("transaction_id", id),
		zap.String("status", string(after.Status)),
	)

	var deadline any
	if after.ProcessingUntil != "" {
		deadline = after.ProcessingUntil
	}
	s.confirm(ctx, "restore", before, after, map[string]any{
		"status":          after.Status,
		"previousStatus":  nil,
		"processingUntil": deadline,
	})
	return &after, nil
}

// Dismiss hides a cancelled record and locks it against restore.
// It is a local action; the backend is not told.
func (s *LedgerService) Dismiss(id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	t, err := domain.Dismiss(s.transactions[i])
	if err != nil {
		return nil, err
	}
	s.transactions[i] = t
	return &t, nil
}

// confirm mirrors an optimistic change to the backend on its own goroutine.
// Confirmations for the same record are sent in the order they were issued.
func (s *LedgerService) confirm(ctx context.Context, action string, before, after domain.Transaction, fields map[string]any) {
	ctx = context.WithoutCancel(ctx)

	done := make(chan struct{})
	s.mu.Lock()
	prev := s.confirming[after.ID]
	s.confirming[after.ID] = done
	s.mu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			close(done)
			s.mu.Lock()
			if s.confirming[after.ID] == done {
				delete(s.confirming, after.ID)
			}
			s.mu.Unlock()
		}()
		if prev != nil {
			<-prev
		}
		ctx, span := ledgerTracer.Start(ctx, "LedgerService.confirm")
		defer span.End()
		span.SetAttributes(
			attribute.String("transaction.id", after.ID),
			attribute.String("action", action),
		)

		if err := s.bulkhead.Acquire(ctx); err != nil {
			return
		}
		_, err := s.store.PatchTransaction(ctx, after.ID, fields)
		s.bulkhead.Release()

		if err == nil {
			s.metrics.IncrConfirmation(action, "ok")
			s.notifier.Success(confirmMessage(action))
			return
		}

		s.metrics.IncrConfirmation(action, "failed")
		s.metrics.IncrExternalError(action)
		s.logger.Warn("backend did not confirm optimistic change",
			zap.String("transaction_id", after.ID),
			zap.String("action", action),
			zap.Bool("rollback", s.opts.RollbackOnConfirmFailure),
			zap.Error(err),
		)
		s.notifier.Error(fmt.Sprintf("%s %s", failureMessage(action), errorMessage(err)))

		if s.opts.RollbackOnConfirmFailure {
			s.rollback(before, after)
		}
	}()
}

// rollback reverts after to before, unless the record moved on meanwhile.
func (s *LedgerService) rollback(before, after domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(after.ID)
	if i < 0 || s.transactions[i].Status != after.Status {
		return
	}
	s.transactions[i] = before
	s.rearmLocked()
}

func confirmMessage(action string) string {
	switch action {
	case "cancel":
		return "Transação cancelada."
	case "restore":
		return "Transação restaurada."
	}
	return "Transação atualizada."
}

func failureMessage(action string) string {
	switch action {
	case "cancel":
		return "Erro ao cancelar transação."
	case "restore":
		return "Erro ao restaurar transação."
	}
	return "Erro ao atualizar transação."
}
