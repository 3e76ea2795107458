// internal/service/event_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgersync/internal/audit"
	"ledgersync/internal/domain"
	"ledgersync/internal/repository"
	"ledgersync/internal/util"

	"github.com/shopspring/decimal"
)

// Listing limits for ListEvents.
const (
	MinListLimit = 1
	MaxListLimit = 1000
)

// EventService defines the interface for transaction event ingestion and
// listing.
type EventService interface {
	// IngestEvent stores a provider-reported financial movement exactly once
	// per dedup key. Duplicate submissions return the original event
	// unchanged. Never calls the provider gateway.
	IngestEvent(ctx context.Context, params IngestEventParams) (*domain.TransactionEvent, error)
	// ListEvents returns up to limit events for a wallet, descending by
	// occurrence time, with an opaque cursor for the next page. Read-only.
	ListEvents(ctx context.Context, walletID string, limit int, cursor string) ([]domain.TransactionEvent, string, error)
}

// IngestEventParams carries one event as supplied by the caller (e.g. a
// parsed webhook payload).
type IngestEventParams struct {
	EventID         string // optional; assigned when empty
	WalletID        string
	Provider        domain.Provider
	EventType       domain.EventType
	Amount          decimal.Decimal
	Currency        string
	ProviderEventID *string
	IdempotencyKey  *string
	Metadata        domain.Metadata
	OccurredAt      time.Time
}

// eventService implements EventService.
type eventService struct {
	dbExecutor repository.DBExecutor
	eventRepo  repository.EventRepository
	auditor    audit.Recorder
	logger     *slog.Logger
}

// NewEventService creates a new instance of EventService.
func NewEventService(
	dbExecutor repository.DBExecutor,
	eventRepo repository.EventRepository,
	auditor audit.Recorder,
	logger *slog.Logger,
) EventService {
	return &eventService{
		dbExecutor: dbExecutor,
		eventRepo:  eventRepo,
		auditor:    auditor,
		logger:     logger,
	}
}

// IngestEvent runs the triple deduplication check (event id, then provider
// event id, then idempotency key), then insert-or-resolve-race. The
// audit record is written only for a genuinely new row, so a replay produces
// no second audit entry.
func (s *eventService) IngestEvent(ctx context.Context, params IngestEventParams) (*domain.TransactionEvent, error) {
	if err := validateIngestParams(params); err != nil {
		return nil, err
	}
	params.ProviderEventID = normalizeOptionalKey(params.ProviderEventID)
	params.IdempotencyKey = normalizeOptionalKey(params.IdempotencyKey)

	if existing, err := s.findExisting(ctx, params); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	event := domain.NewTransactionEvent(
		params.EventID,
		params.WalletID,
		params.Provider,
		params.EventType,
		params.Amount,
		params.Currency,
		params.ProviderEventID,
		params.IdempotencyKey,
		params.Metadata,
		params.OccurredAt,
	)

	if err := s.eventRepo.Insert(ctx, s.dbExecutor, event); err != nil {
		if dup, ok := util.AsDuplicateKey(err); ok {
			// A concurrent identical ingestion won; return the winner.
			return s.resolveEventConflict(ctx, dup.Key, event)
		}
		return nil, fmt.Errorf("ingest event: failed to insert event for wallet %s: %w", params.WalletID, err)
	}

	s.recordAudit(ctx, event)
	return event, nil
}

func validateIngestParams(params IngestEventParams) error {
	if params.WalletID == "" {
		return fmt.Errorf("%w: wallet id is required", util.ErrInvalidInput)
	}
	if !params.Provider.IsValid() {
		return fmt.Errorf("%w: %q", util.ErrUnknownProvider, params.Provider)
	}
	if !params.EventType.IsValid() {
		return fmt.Errorf("%w: unknown event type %q", util.ErrInvalidInput, params.EventType)
	}
	if params.Currency == "" {
		return fmt.Errorf("%w: currency is required", util.ErrInvalidInput)
	}
	if params.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", util.ErrInvalidInput)
	}
	return nil
}

// findExisting performs the ordered pre-checks. A nil, nil return means no
// dedup key matched and the insert should proceed.
func (s *eventService) findExisting(ctx context.Context, params IngestEventParams) (*domain.TransactionEvent, error) {
	if params.EventID != "" {
		existing, err := s.eventRepo.FindByEventID(ctx, s.dbExecutor, params.EventID)
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("ingest event: failed to check event id: %w", err)
		}
	}
	if id := params.ProviderEventID; id != nil {
		existing, err := s.eventRepo.FindByProviderEventID(ctx, s.dbExecutor, *id)
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("ingest event: failed to check provider event id: %w", err)
		}
	}
	if key := params.IdempotencyKey; key != nil {
		existing, err := s.eventRepo.FindByIdempotencyKey(ctx, s.dbExecutor, *key)
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("ingest event: failed to check idempotency key: %w", err)
		}
	}
	return nil, nil
}

// resolveEventConflict re-queries by the key the constraint violation named
// and returns the winner's event.
func (s *eventService) resolveEventConflict(ctx context.Context, key util.ConflictKey, event *domain.TransactionEvent) (*domain.TransactionEvent, error) {
	lookups := []util.ConflictKey{key}
	if key == util.ConflictUnknown {
		lookups = []util.ConflictKey{util.ConflictEventID, util.ConflictProviderEventID, util.ConflictIdempotencyKey}
	}

	for _, k := range lookups {
		var (
			existing *domain.TransactionEvent
			err      error
		)
		switch k {
		case util.ConflictEventID:
			existing, err = s.eventRepo.FindByEventID(ctx, s.dbExecutor, event.EventID)
		case util.ConflictProviderEventID:
			if event.ProviderEventID == nil {
				continue
			}
			existing, err = s.eventRepo.FindByProviderEventID(ctx, s.dbExecutor, *event.ProviderEventID)
		case util.ConflictIdempotencyKey:
			if event.IdempotencyKey == nil {
				continue
			}
			existing, err = s.eventRepo.FindByIdempotencyKey(ctx, s.dbExecutor, *event.IdempotencyKey)
		default:
			continue
		}
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("ingest event: failed to resolve duplicate on %s: %w", k, err)
		}
	}

	return nil, fmt.Errorf("ingest event: unresolvable duplicate for wallet %s: %w", event.WalletID, util.ErrDuplicateEntry)
}

// ListEvents returns one page of events for a wallet. "No events yet" is an
// empty page, not an error.
func (s *eventService) ListEvents(ctx context.Context, walletID string, limit int, cursor string) ([]domain.TransactionEvent, string, error) {
	if walletID == "" {
		return nil, "", fmt.Errorf("%w: wallet id is required", util.ErrInvalidInput)
	}
	if limit < MinListLimit || limit > MaxListLimit {
		return nil, "", fmt.Errorf("%w: limit must be between %d and %d", util.ErrInvalidInput, MinListLimit, MaxListLimit)
	}

	var after *repository.EventCursor
	if cursor != "" {
		decoded, err := decodeEventCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		after = decoded
	}

	events, err := s.eventRepo.ListByWallet(ctx, s.dbExecutor, walletID, limit, after)
	if err != nil {
		return nil, "", fmt.Errorf("list events: failed to list events for wallet %s: %w", walletID, err)
	}

	nextCursor := ""
	if len(events) == limit {
		last := events[len(events)-1]
		nextCursor = encodeEventCursor(repository.EventCursor{OccurredAt: last.OccurredAt, EventID: last.EventID})
	}
	return events, nextCursor, nil
}

// recordAudit writes the ingest_event audit record, best-effort.
func (s *eventService) recordAudit(ctx context.Context, event *domain.TransactionEvent) {
	details := map[string]string{
		"event_id":    event.EventID,
		"wallet_id":   event.WalletID,
		"provider":    string(event.Provider),
		"event_type":  string(event.EventType),
		"amount":      event.Amount.String(),
		"currency":    event.Currency,
		"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
	}
	if event.ProviderEventID != nil {
		details["provider_event_id"] = *event.ProviderEventID
	}
	if event.IdempotencyKey != nil {
		details["idempotency_key"] = *event.IdempotencyKey
	}
	if err := s.auditor.Record(ctx, audit.ActionIngestEvent, audit.ResourceTransactionEvent, details); err != nil {
		s.logger.Warn("failed to write audit record", "action", audit.ActionIngestEvent, "wallet_id", event.WalletID, "error", err)
	}
}
