// internal/domain/snapshot.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary values
)

// BalanceSnapshot is an immutable fact: a wallet's balance as reported by a
// provider at a point in time. Snapshots are created exactly once per dedup
// key, never mutated and never deleted.
type BalanceSnapshot struct {
	ID                int64           `db:"id" json:"id"`                                   // Primary key, BIGSERIAL in DB
	ExternalID        string          `db:"external_id" json:"external_id"`                 // Globally unique id exposed to callers
	WalletID          string          `db:"wallet_id" json:"wallet_id"`                     // Opaque wallet identifier
	Provider          Provider        `db:"provider" json:"provider"`                       // Reporting provider
	Balance           decimal.Decimal `db:"balance" json:"balance"`                         // NUMERIC(20, 4) in DB; may be negative
	Currency          string          `db:"currency" json:"currency"`                       // 3-letter code
	ExternalBalanceID *string         `db:"external_balance_id" json:"external_balance_id"` // Provider-supplied reading id, unique when present
	AsOf              time.Time       `db:"as_of" json:"as_of"`                             // Instant the reading represents; (wallet_id, as_of) is unique
	IdempotencyKey    *string         `db:"idempotency_key" json:"idempotency_key"`         // Caller-supplied, unique when present
	Metadata          Metadata        `db:"metadata" json:"metadata"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"` // Storage time
}

// NewBalanceSnapshot creates a new BalanceSnapshot instance with a freshly
// assigned external id.
func NewBalanceSnapshot(
	walletID string,
	provider Provider,
	balance decimal.Decimal,
	currency string,
	externalBalanceID *string,
	asOf time.Time,
	idempotencyKey *string,
	metadata Metadata,
) *BalanceSnapshot {
	return &BalanceSnapshot{
		ExternalID:        uuid.NewString(),
		WalletID:          walletID,
		Provider:          provider,
		Balance:           balance,
		Currency:          currency,
		ExternalBalanceID: externalBalanceID,
		AsOf:              asOf.UTC(),
		IdempotencyKey:    idempotencyKey,
		Metadata:          metadata,
		CreatedAt:         time.Now().UTC(),
	}
}
