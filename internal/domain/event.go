// internal/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionEvent is an immutable fact: one financial movement reported by
// a provider. Created exactly once per dedup key, never mutated, never
// deleted.
type TransactionEvent struct {
	EventID         string          `db:"event_id" json:"event_id"`                   // Globally unique, stable once assigned
	WalletID        string          `db:"wallet_id" json:"wallet_id"`                 // Opaque wallet identifier
	Provider        Provider        `db:"provider" json:"provider"`                   // Reporting provider
	EventType       EventType       `db:"event_type" json:"event_type"`               // deposit, withdrawal, transfer_in, ...
	Amount          decimal.Decimal `db:"amount" json:"amount"`                       // NUMERIC(20, 4) in DB
	Currency        string          `db:"currency" json:"currency"`                   // 3-letter code
	ProviderEventID *string         `db:"provider_event_id" json:"provider_event_id"` // Provider-supplied id, unique when present
	IdempotencyKey  *string         `db:"idempotency_key" json:"idempotency_key"`     // Caller-supplied, unique when present
	Metadata        Metadata        `db:"metadata" json:"metadata"`
	OccurredAt      time.Time       `db:"occurred_at" json:"occurred_at"` // Provider-reported time
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`   // Storage time
}

// NewTransactionEvent creates a new TransactionEvent instance. When eventID
// is empty a fresh one is assigned.
func NewTransactionEvent(
	eventID string,
	walletID string,
	provider Provider,
	eventType EventType,
	amount decimal.Decimal,
	currency string,
	providerEventID *string,
	idempotencyKey *string,
	metadata Metadata,
	occurredAt time.Time,
) *TransactionEvent {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	return &TransactionEvent{
		EventID:         eventID,
		WalletID:        walletID,
		Provider:        provider,
		EventType:       eventType,
		Amount:          amount,
		Currency:        currency,
		ProviderEventID: providerEventID,
		IdempotencyKey:  idempotencyKey,
		Metadata:        metadata,
		OccurredAt:      occurredAt.UTC(),
		CreatedAt:       time.Now().UTC(),
	}
}
