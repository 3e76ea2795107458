// internal/repository/event_repo.go
package repository

import (
	"context"
	"time"

	"ledgersync/internal/domain"
)

// EventCursor marks the last row of a returned page for keyset pagination
// over (occurred_at, event_id) descending.
type EventCursor struct {
	OccurredAt time.Time
	EventID    string
}

// EventRepository defines the interface for transaction event storage.
// Insert follows the same atomic check-and-insert contract as
// SnapshotRepository.Insert.
type EventRepository interface {
	// Insert stores a new event using the provided DBExecutor.
	Insert(ctx context.Context, q DBExecutor, event *domain.TransactionEvent) error
	// FindByEventID retrieves an event by its internal event id.
	FindByEventID(ctx context.Context, q DBExecutor, eventID string) (*domain.TransactionEvent, error)
	// FindByProviderEventID retrieves the event holding the given
	// provider-supplied id.
	FindByProviderEventID(ctx context.Context, q DBExecutor, providerEventID string) (*domain.TransactionEvent, error)
	// FindByIdempotencyKey retrieves the event created under the given
	// idempotency key.
	FindByIdempotencyKey(ctx context.Context, q DBExecutor, key string) (*domain.TransactionEvent, error)
	// ListByWallet retrieves up to limit events for a wallet, descending by
	// (occurred_at, event_id), starting strictly after the cursor when one is
	// given. A wallet with no events yields an empty slice, not an error.
	ListByWallet(ctx context.Context, q DBExecutor, walletID string, limit int, cursor *EventCursor) ([]domain.TransactionEvent, error)
}
