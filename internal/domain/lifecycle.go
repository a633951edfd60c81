package domain

import "time"

// ============================================================
// Permission predicates
// ============================================================

// CanEdit reports whether t may still be edited. Settled history is read-only.
func CanEdit(t Transaction) bool {
	switch t.Status {
	case StatusScheduled, StatusProcessing:
		return true
	}
	return false
}

// CanCancel mirrors CanEdit: only non-final records are cancellable.
func CanCancel(t Transaction) bool {
	return CanEdit(t)
}

// CanRestore reports whether a cancelled record may return to its previous status.
func CanRestore(t Transaction) bool {
	return t.Status == StatusCancelled && !t.Locked
}

// CanDelete reports whether t may be removed from the backend.
func CanDelete(t Transaction) bool {
	switch t.Status {
	case StatusScheduled, StatusProcessing, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// IsExpiredScheduled flags a scheduled record whose scheduled day is already
// behind today's calendar day in now's location. It never changes the record.
func IsExpiredScheduled(t Transaction, now time.Time) bool {
	if t.Status != StatusScheduled {
		return false
	}
	sf, ok := t.ScheduledFor()
	if !ok {
		return false
	}
	day, err := ParseDay(sf)
	if err != nil {
		return false
	}
	return day.Before(DayOf(now))
}

// Actions is the per-record button state consumed by the UI.
type Actions struct {
	CanEdit      bool   `json:"canEdit"`
	CanCancel    bool   `json:"canCancel"`
	CanRestore   bool   `json:"canRestore"`
	CanDelete    bool   `json:"canDelete"`
	Expired      bool   `json:"expired"`
	EditReason   string `json:"editReason,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
}

// ActionsFor evaluates every predicate for t.
func ActionsFor(t Transaction, now time.Time) Actions {
	a := Actions{
		CanEdit:    CanEdit(t),
		CanCancel:  CanCancel(t),
		CanRestore: CanRestore(t),
		CanDelete:  CanDelete(t),
		Expired:    IsExpiredScheduled(t, now),
	}
	if !a.CanEdit {
		a.EditReason = blockedReason(t)
	}
	if !a.CanCancel {
		a.CancelReason = blockedReason(t)
	}
	return a
}

func blockedReason(t Transaction) string {
	switch t.Status {
	case StatusProcessed:
		return "Transação já finalizada"
	case StatusCancelled:
		return "Transação cancelada"
	case StatusFailed:
		return "Transação com falha"
	}
	return "Status não permite alterações"
}

// ============================================================
// Transitions
// ============================================================

// Cancel moves t to cancelled and snapshots its previous status.
func Cancel(t Transaction) (Transaction, error) {
	if !CanCancel(t) {
		return t, &ErrTransitionNotAllowed{ID: t.ID, From: t.Status, Action: "cancel"}
	}
	t.PreviousStatus = t.Status
	t.previousDeadline = t.ProcessingUntil
	t.Status = StatusCancelled
	t.ProcessingUntil = ""
	t.Locked = false
	return t, nil
}

// Restore returns a cancelled record to its snapshot status. A record restored
// to processing keeps its old deadline, or gets fallbackDeadline when none was kept.
func Restore(t Transaction, fallbackDeadline string) (Transaction, error) {
	if !CanRestore(t) || !t.PreviousStatus.Valid() || t.PreviousStatus == StatusCancelled {
		return t, &ErrTransitionNotAllowed{ID: t.ID, From: t.Status, Action: "restore"}
	}
	t.Status = t.PreviousStatus
	t.PreviousStatus = ""
	if t.Status == StatusProcessing {
		t.ProcessingUntil = t.previousDeadline
		if t.ProcessingUntil == "" {
			t.ProcessingUntil = fallbackDeadline
		}
	}
	t.previousDeadline = ""
	return t, nil
}

// Dismiss hides a cancelled record and locks it against restore.
func Dismiss(t Transaction) (Transaction, error) {
	if t.Status != StatusCancelled {
		return t, &ErrTransitionNotAllowed{ID: t.ID, From: t.Status, Action: "dismiss"}
	}
	t.Locked = true
	return t, nil
}

// Deadline parses the processing deadline of t.
func Deadline(t Transaction) (time.Time, bool) {
	if t.Status != StatusProcessing || t.ProcessingUntil == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(time.RFC3339Nano, t.ProcessingUntil)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Promote settles a processing record whose deadline is at or before now.
func Promote(t Transaction, now time.Time) (Transaction, bool) {
	deadline, ok := Deadline(t)
	if !ok || deadline.After(now) {
		return t, false
	}
	t.Status = StatusProcessed
	t.ProcessingUntil = ""
	return t, true
}

// FormatDeadline renders a deadline the way ProcessingUntil stores it.
func FormatDeadline(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// CarryDeadline copies the deadline kept by a local cancellation of from onto to.
func CarryDeadline(from, to Transaction) Transaction {
	to.previousDeadline = from.previousDeadline
	return to
}

// WithLifecycle returns t carrying the lifecycle state of from: status,
// the cancel snapshot, the lock and the processing deadline.
func WithLifecycle(t, from Transaction) Transaction {
	t.Status = from.Status
	t.PreviousStatus = from.PreviousStatus
	t.Locked = from.Locked
	t.ProcessingUntil = from.ProcessingUntil
	t.previousDeadline = from.previousDeadline
	return t
}
