package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Scheduling sweep
// ============================================================
//
// The ledger owns at most one timer. Every re-arm stops the previous one and
// bumps the generation, so a callback that was already in flight when it got
// replaced sees a stale generation and does nothing.

// Sweep promotes every processing record whose deadline has passed and
// re-arms the timer for the next one.
func (s *LedgerService) Sweep() {
	s.sweep()
}

func (s *LedgerService) sweep() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	promoted := s.promoteDueLocked()
	s.rearmLocked()
	s.mu.Unlock()

	s.propagate(promoted)
}

// onWake runs when the timer armed under gen fires.
func (s *LedgerService) onWake(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	promoted := s.promoteDueLocked()
	s.rearmLocked()
	s.mu.Unlock()

	if len(promoted) > 0 {
		s.logger.Debug("sweep woke up", zap.Int("promoted", len(promoted)))
	}
	s.propagate(promoted)
}

// promoteDueLocked settles due records in place and returns them.
// Records with a missing or unparsable deadline are left alone.
func (s *LedgerService) promoteDueLocked() []domain.Transaction {
	now := s.clock.Now()
	var promoted []domain.Transaction
	for i, t := range s.transactions {
		if next, ok := domain.Promote(t, now); ok {
			s.transactions[i] = next
			promoted = append(promoted, next)
		}
	}
	return promoted
}

// rearmLocked replaces the current timer with one aimed at the earliest
// processing deadline. With no processing record left the sweep stays idle.
func (s *LedgerService) rearmLocked() {
	s.disarmLocked()
	if s.closed {
		return
	}

	var (
		earliest time.Time
		found    bool
	)
	for _, t := range s.transactions {
		d, ok := domain.Deadline(t)
		if !ok {
			continue
		}
		if !found || d.Before(earliest) {
			earliest, found = d, true
		}
	}
	if !found {
		return
	}

	delay := earliest.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	gen := s.generation
	s.timer = s.clock.AfterFunc(delay, func() { s.onWake(gen) })
	s.metrics.SetSweepArmed(true)
}

// disarmLocked stops the current timer, if any, and invalidates its callback.
func (s *LedgerService) disarmLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.metrics.SetSweepArmed(false)
}

// Armed reports whether a sweep timer is pending.
func (s *LedgerService) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// propagate sends each promotion to the backend as an independent request.
// Local state is already settled; failures are only reported.
func (s *LedgerService) propagate(promoted []domain.Transaction) {
	if len(promoted) == 0 {
		return
	}
	s.metrics.AddPromotions(len(promoted))
	s.logger.Info("processing transactions settled", zap.Int("count", len(promoted)))

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, span := ledgerTracer.Start(context.Background(), "LedgerService.propagate")
		defer span.End()

		var g errgroup.Group
		g.SetLimit(s.opts.MaxConcurrency)
		for _, t := range promoted {
			t := t
			g.Go(func() error {
				_, err := s.store.PatchTransaction(ctx, t.ID, map[string]any{
					"status":          domain.StatusProcessed,
					"processingUntil": nil,
				})
				if err != nil {
					s.metrics.IncrConfirmation("promote", "failed")
					s.metrics.IncrExternalError("promote")
					s.logger.Warn("failed to persist promotion",
						zap.String("transaction_id", t.ID),
						zap.Error(err),
					)
					s.notifier.Error(fmt.Sprintf("Erro ao atualizar transação %s. %s", t.ID, errorMessage(err)))
					return nil
				}
				s.metrics.IncrConfirmation("promote", "ok")
				return nil
			})
		}
		_ = g.Wait()
	}()
}
