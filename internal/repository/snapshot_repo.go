// internal/repository/snapshot_repo.go
package repository

import (
	"context"
	"time"

	"ledgersync/internal/domain"
)

// SnapshotRepository defines the interface for balance snapshot storage.
// Insert must perform its uniqueness checks and the row creation as one
// atomic unit; on a violated invariant it returns *util.DuplicateKeyError
// naming the conflicting key, leaving no partial state behind.
type SnapshotRepository interface {
	// Insert stores a new snapshot using the provided DBExecutor and assigns
	// its internal ID.
	Insert(ctx context.Context, q DBExecutor, snapshot *domain.BalanceSnapshot) error
	// FindByIdempotencyKey retrieves the snapshot created under the given
	// caller-supplied idempotency key.
	FindByIdempotencyKey(ctx context.Context, q DBExecutor, key string) (*domain.BalanceSnapshot, error)
	// FindByExternalBalanceID retrieves the snapshot holding the given
	// provider-supplied reading id.
	FindByExternalBalanceID(ctx context.Context, q DBExecutor, externalBalanceID string) (*domain.BalanceSnapshot, error)
	// FindByWalletAndAsOf retrieves the snapshot representing walletID at the
	// exact instant asOf.
	FindByWalletAndAsOf(ctx context.Context, q DBExecutor, walletID string, asOf time.Time) (*domain.BalanceSnapshot, error)
	// FindByExternalID retrieves a snapshot by the external id assigned at
	// creation.
	FindByExternalID(ctx context.Context, q DBExecutor, externalID string) (*domain.BalanceSnapshot, error)
	// LatestByWallet retrieves the most recent snapshot (by as_of) for a
	// wallet, or util.ErrNotFound when the wallet has none.
	LatestByWallet(ctx context.Context, q DBExecutor, walletID string) (*domain.BalanceSnapshot, error)
}
