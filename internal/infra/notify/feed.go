// Package notify keeps the transient notifications ("toasts") produced by the
// ledger. Entries expire after a TTL; the UI polls Recent.
package notify

import (
	"sync"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type entry struct {
	notification domain.Notification
	expiresAt    time.Time
}

// Feed is a thread-safe, bounded, TTL'd list of notifications.
// It implements port.Notifier.
type Feed struct {
	mu       sync.RWMutex
	items    []entry
	ttl      time.Duration
	capacity int
	metrics  *observability.Metrics
	logger   *zap.Logger
	done     chan struct{}
	once     sync.Once
}

// New creates a feed keeping at most capacity notifications for ttl each.
func New(ttl time.Duration, capacity int, metrics *observability.Metrics, logger *zap.Logger) *Feed {
	if capacity <= 0 {
		capacity = 50
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	f := &Feed{
		ttl:      ttl,
		capacity: capacity,
		metrics:  metrics,
		logger:   logger,
		done:     make(chan struct{}),
	}
	// Background cleanup goroutine
	go f.cleanup()
	return f
}

// Success records a success toast.
func (f *Feed) Success(message string) {
	f.push(domain.NotificationSuccess, message)
}

// Error records an error toast.
func (f *Feed) Error(message string) {
	f.push(domain.NotificationError, message)
}

func (f *Feed) push(level domain.NotificationLevel, message string) {
	now := time.Now()
	n := domain.Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
	}

	f.mu.Lock()
	f.items = append(f.items, entry{notification: n, expiresAt: now.Add(f.ttl)})
	if over := len(f.items) - f.capacity; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.IncrNotification(string(level))
	}
	f.logger.Debug("notification",
		zap.String("level", string(level)),
		zap.String("message", message),
	)
}

// Recent returns the live notifications, newest first.
func (f *Feed) Recent() []domain.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	now := time.Now()
	out := make([]domain.Notification, 0, len(f.items))
	for i := len(f.items) - 1; i >= 0; i-- {
		if now.After(f.items[i].expiresAt) {
			continue
		}
		out = append(out, f.items[i].notification)
	}
	return out
}

// Close stops the cleanup goroutine.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// cleanup periodically removes expired entries.
func (f *Feed) cleanup() {
	ticker := time.NewTicker(f.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
		}

		f.mu.Lock()
		now := time.Now()
		kept := f.items[:0]
		for _, e := range f.items {
			if !now.After(e.expiresAt) {
				kept = append(kept, e)
			}
		}
		f.items = kept
		f.mu.Unlock()
	}
}
