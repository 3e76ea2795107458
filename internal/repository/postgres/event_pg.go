// internal/repository/postgres/event_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledgersync/internal/domain"
	"ledgersync/internal/repository"
	"ledgersync/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Constraint names for transaction_events.
const (
	eventPKConstraint              = "transaction_events_pkey"
	eventProviderEventIDConstraint = "uq_transaction_events_provider_event_id"
	eventIdempotencyKeyConstraint  = "uq_transaction_events_idempotency_key"
)

const eventColumns = `event_id, wallet_id, provider, event_type, amount, currency,
	provider_event_id, idempotency_key, metadata, occurred_at, created_at`

// EventRepository implements repository.EventRepository for PostgreSQL.
type EventRepository struct{}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sqlx.DB) repository.EventRepository {
	return &EventRepository{}
}

// Insert stores a new event. A unique violation is translated into
// *util.DuplicateKeyError naming the conflicting key.
func (r *EventRepository) Insert(ctx context.Context, q repository.DBExecutor, event *domain.TransactionEvent) error {
	query := `INSERT INTO transaction_events (event_id, wallet_id, provider, event_type, amount, currency,
	              provider_event_id, idempotency_key, metadata, occurred_at, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := q.ExecContext(ctx, query,
		event.EventID,
		event.WalletID,
		event.Provider,
		event.EventType,
		event.Amount,
		event.Currency,
		event.ProviderEventID,
		event.IdempotencyKey,
		event.Metadata,
		event.OccurredAt,
		event.CreatedAt,
	)

	if err != nil {
		if dup := eventConflict(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert transaction event: %w", err)
	}
	return nil
}

// eventConflict maps a unique violation to the conflicting dedup key.
func eventConflict(err error) *util.DuplicateKeyError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case eventPKConstraint:
		return &util.DuplicateKeyError{Key: util.ConflictEventID}
	case eventProviderEventIDConstraint:
		return &util.DuplicateKeyError{Key: util.ConflictProviderEventID}
	case eventIdempotencyKeyConstraint:
		return &util.DuplicateKeyError{Key: util.ConflictIdempotencyKey}
	default:
		return &util.DuplicateKeyError{Key: util.ConflictUnknown}
	}
}

// FindByEventID retrieves an event by its internal event id.
func (r *EventRepository) FindByEventID(ctx context.Context, q repository.DBExecutor, eventID string) (*domain.TransactionEvent, error) {
	var event domain.TransactionEvent
	query := `SELECT ` + eventColumns + ` FROM transaction_events WHERE event_id = $1`
	err := q.GetContext(ctx, &event, query, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event by id '%s': %w", eventID, err)
	}
	return &event, nil
}

// FindByProviderEventID retrieves the event holding the given provider id.
func (r *EventRepository) FindByProviderEventID(ctx context.Context, q repository.DBExecutor, providerEventID string) (*domain.TransactionEvent, error) {
	var event domain.TransactionEvent
	query := `SELECT ` + eventColumns + ` FROM transaction_events WHERE provider_event_id = $1`
	err := q.GetContext(ctx, &event, query, providerEventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event by provider event id '%s': %w", providerEventID, err)
	}
	return &event, nil
}

// FindByIdempotencyKey retrieves the event created under the given key.
func (r *EventRepository) FindByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.TransactionEvent, error) {
	var event domain.TransactionEvent
	query := `SELECT ` + eventColumns + ` FROM transaction_events WHERE idempotency_key = $1`
	err := q.GetContext(ctx, &event, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event by idempotency key: %w", err)
	}
	return &event, nil
}

// ListByWallet retrieves a page of events for a wallet, descending by
// (occurred_at, event_id). The keyset predicate keeps already-returned pages
// stable under concurrent inserts, which OFFSET pagination would not.
func (r *EventRepository) ListByWallet(ctx context.Context, q repository.DBExecutor, walletID string, limit int, cursor *repository.EventCursor) ([]domain.TransactionEvent, error) {
	events := []domain.TransactionEvent{}

	if cursor == nil {
		query := `SELECT ` + eventColumns + ` FROM transaction_events
		          WHERE wallet_id = $1
		          ORDER BY occurred_at DESC, event_id DESC
		          LIMIT $2`
		if err := q.SelectContext(ctx, &events, query, walletID, limit); err != nil {
			return nil, fmt.Errorf("failed to list events for wallet %s: %w", walletID, err)
		}
		return events, nil
	}

	query := `SELECT ` + eventColumns + ` FROM transaction_events
	          WHERE wallet_id = $1 AND (occurred_at, event_id) < ($2, $3)
	          ORDER BY occurred_at DESC, event_id DESC
	          LIMIT $4`
	if err := q.SelectContext(ctx, &events, query, walletID, cursor.OccurredAt, cursor.EventID, limit); err != nil {
		return nil, fmt.Errorf("failed to list events for wallet %s after cursor: %w", walletID, err)
	}
	return events, nil
}
