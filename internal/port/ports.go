// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
)

// TransactionStore is the persistence collaborator behind /transactions.
// The ledger treats it as opaque: ids are assigned here, never by the client.
type TransactionStore interface {
	ListTransactions(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, t domain.Transaction) (*domain.Transaction, error)
	PatchTransaction(ctx context.Context, id string, fields map[string]any) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Notifier surfaces transient success/error messages to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Clock abstracts time so the scheduling sweep can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a one-shot wake-up armed by a Clock.
type Timer interface {
	Stop() bool
}
