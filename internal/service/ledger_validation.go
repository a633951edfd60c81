package service

import (
	"math"
	"strings"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"

	"cloud.google.com/go/civil"
)

// validateDraft checks a form submission before anything reaches the backend.
func validateDraft(d domain.Draft, today civil.Date) error {
	if strings.TrimSpace(d.Description) == "" {
		return &domain.ErrValidation{Field: "description", Message: "Descrição é obrigatória"}
	}
	if err := validAmount(d.Amount); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "Tipo de transação inválido"}
	}

	if d.Type != domain.TypePix {
		if d.Date == "" {
			return &domain.ErrValidation{Field: "date", Message: "Data é obrigatória"}
		}
		return notBeforeToday("date", d.Date, today)
	}

	switch d.PixType {
	case domain.PixNormal:
		if d.Date != "" {
			return notBeforeToday("date", d.Date, today)
		}
		return nil
	case domain.PixScheduled:
		if d.ScheduledFor == "" {
			return &domain.ErrValidation{Field: "scheduledFor", Message: "Data de agendamento é obrigatória"}
		}
		return notBeforeToday("scheduledFor", d.ScheduledFor, today)
	}
	return &domain.ErrValidation{Field: "pixType", Message: "Tipo de Pix inválido"}
}

// validatePatch checks the edited record. Dates are only checked when the
// patch touches them, so an old record can still be renamed.
func validatePatch(p domain.TransactionPatch, result domain.Transaction, today civil.Date) error {
	if p.Description != nil && result.Description == "" {
		return &domain.ErrValidation{Field: "description", Message: "Descrição é obrigatória"}
	}
	if p.Amount != nil {
		if err := validAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "Tipo de transação inválido"}
	}
	if p.PixType != nil && !p.PixType.Valid() {
		return &domain.ErrValidation{Field: "pixType", Message: "Tipo de Pix inválido"}
	}
	if p.Date != nil {
		if err := notBeforeToday("date", *p.Date, today); err != nil {
			return err
		}
	}
	if result.Type == domain.TypePix && result.Pix.PixType == domain.PixScheduled {
		if result.Pix.ScheduledFor == "" {
			return &domain.ErrValidation{Field: "scheduledFor", Message: "Data de agendamento é obrigatória"}
		}
		if p.ScheduledFor != nil || p.PixType != nil || p.Type != nil {
			return notBeforeToday("scheduledFor", result.Pix.ScheduledFor, today)
		}
	}
	return nil
}

// validAmount rejects amounts that are not finite or round to zero cents.
func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || domain.ToMinorUnits(amount) <= 0 {
		return &domain.ErrValidation{Field: "amount", Message: "Valor deve ser maior que zero"}
	}
	return nil
}

func notBeforeToday(field, raw string, today civil.Date) error {
	day, err := domain.ParseDay(raw)
	if err != nil {
		return &domain.ErrValidation{Field: field, Message: "Data inválida"}
	}
	if day.Before(today) {
		return &domain.ErrValidation{Field: field, Message: "A data não pode ser anterior a hoje"}
	}
	return nil
}

// newTransaction builds the record to create from a validated draft and
// derives its initial status.
func newTransaction(d domain.Draft, now time.Time, window time.Duration) domain.Transaction {
	today := domain.DayOf(now)
	t := domain.Transaction{
		Type:        d.Type,
		Description: strings.TrimSpace(d.Description),
		Amount:      d.Amount,
		Date:        d.Date,
	}
	if t.Date == "" {
		t.Date = today.String()
	}

	scheduled := false
	switch d.Type {
	case domain.TypePix:
		t.Pix = &domain.PixDetails{PixType: d.PixType}
		if d.PixType == domain.PixScheduled {
			t.Pix.ScheduledFor = d.ScheduledFor
			scheduled = true
		}
	case domain.TypeDeposit, domain.TypeTransfer, domain.TypePayment, domain.TypeWithdraw:
		if day, err := domain.ParseDay(d.Date); err == nil && day.After(today) {
			scheduled = true
		}
	}

	if scheduled {
		t.Status = domain.StatusScheduled
		return t
	}
	t.Status = domain.StatusProcessing
	t.ProcessingUntil = domain.FormatDeadline(now.Add(window))
	return t
}
