package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================
// Transaction types and statuses
// ============================================================

// TransactionType is the discriminant of a ledger record.
type TransactionType string

const (
	TypeDeposit  TransactionType = "deposit"
	TypeTransfer TransactionType = "transfer"
	TypePayment  TransactionType = "payment"
	TypeWithdraw TransactionType = "withdraw"
	TypePix      TransactionType = "pix"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeTransfer, TypePayment, TypeWithdraw, TypePix:
		return true
	}
	return false
}

// IsDebit reports whether the type takes money out of the balance.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TypeWithdraw, TypePayment, TypePix:
		return true
	case TypeDeposit, TypeTransfer:
		return false
	}
	return false
}

// Status is a lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusProcessing, StatusProcessed, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// PixType tells whether a pix executes now or on a scheduled date.
type PixType string

const (
	PixNormal    PixType = "normal"
	PixScheduled PixType = "scheduled"
)

func (p PixType) Valid() bool {
	return p == PixNormal || p == PixScheduled
}

// ============================================================
// Transaction record
// ============================================================

// PixDetails carries the fields that exist only on pix records.
type PixDetails struct {
	PixType      PixType
	ScheduledFor string // set only when PixType is PixScheduled
}

// Transaction is a ledger entry. Pix is non-nil if and only if Type is TypePix.
// Amount is always a non-negative magnitude; the sign comes from Type.
type Transaction struct {
	ID          string
	Type        TransactionType
	Description string
	Amount      float64
	Date        string
	Status      Status
	Pix         *PixDetails

	// Runtime attributes.
	ProcessingUntil string // set iff Status is processing
	PreviousStatus  Status // set iff cancelled through Cancel
	Locked          bool   // restore suppressed

	// deadline held while cancelled, so a restore to processing keeps it
	previousDeadline string
}

// ScheduledFor returns the scheduled execution date of a scheduled pix.
func (t Transaction) ScheduledFor() (string, bool) {
	switch t.Type {
	case TypePix:
		if t.Pix == nil || t.Pix.PixType != PixScheduled || t.Pix.ScheduledFor == "" {
			return "", false
		}
		return t.Pix.ScheduledFor, true
	case TypeDeposit, TypeTransfer, TypePayment, TypeWithdraw:
		return "", false
	}
	return "", false
}

// EffectiveDate is the date used for grouping and ordering:
// scheduledFor while a scheduled record has one, the nominal date otherwise.
func (t Transaction) EffectiveDate() string {
	if t.Status == StatusScheduled {
		if sf, ok := t.ScheduledFor(); ok {
			return sf
		}
	}
	return t.Date
}

// AmountMinor is the unsigned amount in cents.
func (t Transaction) AmountMinor() int64 {
	return ToMinorUnits(t.Amount)
}

// SignedMinor is the balance contribution of t in cents.
func (t Transaction) SignedMinor() int64 {
	if t.Type.IsDebit() {
		return -t.AmountMinor()
	}
	return t.AmountMinor()
}

// Contribution is what t adds to balances and day totals, in cents.
// Cancelled and failed records move no money.
func (t Transaction) Contribution() int64 {
	switch t.Status {
	case StatusCancelled, StatusFailed:
		return 0
	}
	return t.SignedMinor()
}

// transactionJSON is the flat wire shape shared with the backend and the UI.
type transactionJSON struct {
	ID              json.RawMessage `json:"id,omitempty"`
	Type            TransactionType `json:"type"`
	Description     string          `json:"description"`
	Amount          float64         `json:"amount"`
	Date            string          `json:"date"`
	Status          Status          `json:"status"`
	PixType         PixType         `json:"pixType,omitempty"`
	ScheduledFor    string          `json:"scheduledFor,omitempty"`
	ProcessingUntil string          `json:"processingUntil,omitempty"`
	PreviousStatus  Status          `json:"previousStatus,omitempty"`
	Locked          bool            `json:"locked,omitempty"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	w := transactionJSON{
		Type:            t.Type,
		Description:     t.Description,
		Amount:          t.Amount,
		Date:            t.Date,
		Status:          t.Status,
		ProcessingUntil: t.ProcessingUntil,
		PreviousStatus:  t.PreviousStatus,
		Locked:          t.Locked,
	}
	if t.ID != "" {
		id, err := json.Marshal(t.ID)
		if err != nil {
			return nil, err
		}
		w.ID = id
	}
	if t.Type == TypePix && t.Pix != nil {
		w.PixType = t.Pix.PixType
		if t.Pix.PixType == PixScheduled {
			w.ScheduledFor = t.Pix.ScheduledFor
		}
	}
	return json.Marshal(w)
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w transactionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}

	*t = Transaction{
		ID:              id,
		Type:            w.Type,
		Description:     w.Description,
		Amount:          w.Amount,
		Date:            w.Date,
		Status:          w.Status,
		ProcessingUntil: w.ProcessingUntil,
		PreviousStatus:  w.PreviousStatus,
		Locked:          w.Locked,
	}
	if w.Type == TypePix {
		pixType := w.PixType
		if pixType == "" {
			pixType = PixNormal
		}
		t.Pix = &PixDetails{PixType: pixType}
		if pixType == PixScheduled {
			t.Pix.ScheduledFor = w.ScheduledFor
		}
	}
	return nil
}

// decodeID accepts string and numeric ids; json-server hands out either.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unsupported id %s: %w", raw, err)
	}
	return n.String(), nil
}

// ============================================================
// Drafts and patches
// ============================================================

// Draft is a transaction as submitted by the form, before the backend assigns an id.
type Draft struct {
	Type         TransactionType `json:"type"`
	Description  string          `json:"description"`
	Amount       float64         `json:"amount"`
	Date         string          `json:"date"`
	PixType      PixType         `json:"pixType,omitempty"`
	ScheduledFor string          `json:"scheduledFor,omitempty"`
}

// TransactionPatch is a partial edit. Nil fields are left untouched.
// Status is not editable here; it moves only through the lifecycle actions.
type TransactionPatch struct {
	Type         *TransactionType `json:"type,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Amount       *float64         `json:"amount,omitempty"`
	Date         *string          `json:"date,omitempty"`
	PixType      *PixType         `json:"pixType,omitempty"`
	ScheduledFor *string          `json:"scheduledFor,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Description == nil && p.Amount == nil &&
		p.Date == nil && p.PixType == nil && p.ScheduledFor == nil
}

// Apply returns t with the patch applied, keeping the pix invariant.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}

	if t.Type != TypePix {
		t.Pix = nil
		return t
	}
	pix := PixDetails{PixType: PixNormal}
	if t.Pix != nil {
		pix = *t.Pix
	}
	if p.PixType != nil {
		pix.PixType = *p.PixType
	}
	if p.ScheduledFor != nil {
		pix.ScheduledFor = *p.ScheduledFor
	}
	if pix.PixType != PixScheduled {
		pix.ScheduledFor = ""
	}
	t.Pix = &pix
	return t
}

// Fields renders the patch body for the backend. Pix fields are sent as null
// when the edited record is no longer a pix, or no longer scheduled.
func (p TransactionPatch) Fields(result Transaction) map[string]any {
	fields := make(map[string]any)
	if p.Type != nil {
		fields["type"] = *p.Type
	}
	if p.Description != nil {
		fields["description"] = result.Description
	}
	if p.Amount != nil {
		fields["amount"] = *p.Amount
	}
	if p.Date != nil {
		fields["date"] = *p.Date
	}

	switch {
	case result.Type != TypePix:
		if p.Type != nil {
			fields["pixType"] = nil
			fields["scheduledFor"] = nil
		}
	case p.Type != nil || p.PixType != nil || p.ScheduledFor != nil:
		fields["pixType"] = result.Pix.PixType
		if result.Pix.PixType == PixScheduled {
			fields["scheduledFor"] = result.Pix.ScheduledFor
		} else {
			fields["scheduledFor"] = nil
		}
	}
	return fields
}
