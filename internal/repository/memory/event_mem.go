// internal/repository/memory/event_mem.go
package memory

import (
	"context"
	"sort"
	"sync"

	"ledgersync/internal/domain"
	"ledgersync/internal/repository"
	"ledgersync/internal/util"
)

// EventRepository is an in-memory implementation of
// repository.EventRepository. Uniqueness checks and the insert happen under
// one mutex, matching the atomic check-and-insert contract.
type EventRepository struct {
	mu          sync.Mutex
	byEventID   map[string]*domain.TransactionEvent
	byProvEvtID map[string]*domain.TransactionEvent
	byIdemKey   map[string]*domain.TransactionEvent
	byWallet    map[string][]*domain.TransactionEvent
}

// NewEventRepository creates an empty in-memory event store.
func NewEventRepository() *EventRepository {
	return &EventRepository{
		byEventID:   make(map[string]*domain.TransactionEvent),
		byProvEvtID: make(map[string]*domain.TransactionEvent),
		byIdemKey:   make(map[string]*domain.TransactionEvent),
		byWallet:    make(map[string][]*domain.TransactionEvent),
	}
}

// Insert stores an event after checking every uniqueness invariant under the
// store lock. The q parameter is ignored.
func (r *EventRepository) Insert(ctx context.Context, q repository.DBExecutor, event *domain.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEventID[event.EventID]; exists {
		return &util.DuplicateKeyError{Key: util.ConflictEventID}
	}
	if event.ProviderEventID != nil {
		if _, exists := r.byProvEvtID[*event.ProviderEventID]; exists {
			return &util.DuplicateKeyError{Key: util.ConflictProviderEventID}
		}
	}
	if event.IdempotencyKey != nil {
		if _, exists := r.byIdemKey[*event.IdempotencyKey]; exists {
			return &util.DuplicateKeyError{Key: util.ConflictIdempotencyKey}
		}
	}

	stored := copyEvent(event)
	r.byEventID[stored.EventID] = stored
	if stored.ProviderEventID != nil {
		r.byProvEvtID[*stored.ProviderEventID] = stored
	}
	if stored.IdempotencyKey != nil {
		r.byIdemKey[*stored.IdempotencyKey] = stored
	}
	r.byWallet[stored.WalletID] = append(r.byWallet[stored.WalletID], stored)
	return nil
}

// FindByEventID retrieves an event by its internal event id.
func (r *EventRepository) FindByEventID(ctx context.Context, q repository.DBExecutor, eventID string) (*domain.TransactionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, exists := r.byEventID[eventID]; exists {
		return copyEvent(e), nil
	}
	return nil, util.ErrNotFound
}

// FindByProviderEventID retrieves the event holding the given provider id.
func (r *EventRepository) FindByProviderEventID(ctx context.Context, q repository.DBExecutor, providerEventID string) (*domain.TransactionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, exists := r.byProvEvtID[providerEventID]; exists {
		return copyEvent(e), nil
	}
	return nil, util.ErrNotFound
}

// FindByIdempotencyKey retrieves the event created under the given key.
func (r *EventRepository) FindByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.TransactionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, exists := r.byIdemKey[key]; exists {
		return copyEvent(e), nil
	}
	return nil, util.ErrNotFound
}

// ListByWallet retrieves a page of events descending by
// (occurred_at, event_id), strictly after the cursor when one is given.
func (r *EventRepository) ListByWallet(ctx context.Context, q repository.DBExecutor, walletID string, limit int, cursor *repository.EventCursor) ([]domain.TransactionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := make([]*domain.TransactionEvent, len(r.byWallet[walletID]))
	copy(ordered, r.byWallet[walletID])
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.After(ordered[j].OccurredAt)
		}
		return ordered[i].EventID > ordered[j].EventID
	})

	events := []domain.TransactionEvent{}
	for _, e := range ordered {
		if cursor != nil && !beforeCursor(e, cursor) {
			continue
		}
		events = append(events, *copyEvent(e))
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

// beforeCursor reports whether e sorts strictly after the cursor position in
// the descending (occurred_at, event_id) order.
func beforeCursor(e *domain.TransactionEvent, c *repository.EventCursor) bool {
	if e.OccurredAt.Equal(c.OccurredAt) {
		return e.EventID < c.EventID
	}
	return e.OccurredAt.Before(c.OccurredAt)
}

func copyEvent(e *domain.TransactionEvent) *domain.TransactionEvent {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(domain.Metadata, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Compile-time check: EventRepository implements the repository port.
var _ repository.EventRepository = (*EventRepository)(nil)
