package domain

import "time"

// NotificationLevel is the toast flavor.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient, non-blocking message for the user.
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
}

// LedgerMetrics is the snapshot served by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	Promotions         int64   `json:"promotions"`
	ConfirmFailures    int64   `json:"confirmFailures"`
	ExternalErrors     int64   `json:"externalErrors"`
	NotificationsSent  int64   `json:"notificationsSent"`
	SweepTimerArmed    bool    `json:"sweepTimerArmed"`
	ConfirmFailureRate float64 `json:"confirmFailureRate"`
}
