// internal/repository/postgres/snapshot_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/repository"
	"ledgersync/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// Constraint names for balance_snapshots; the partial unique indexes encode
// "unique when present" for the nullable dedup columns.
const (
	snapshotIdempotencyKeyConstraint    = "uq_balance_snapshots_idempotency_key"
	snapshotExternalBalanceIDConstraint = "uq_balance_snapshots_external_balance_id"
	snapshotWalletAsOfConstraint        = "uq_balance_snapshots_wallet_as_of"
)

const snapshotColumns = `id, external_id, wallet_id, provider, balance, currency,
	external_balance_id, as_of, idempotency_key, metadata, created_at`

// SnapshotRepository implements repository.SnapshotRepository for PostgreSQL.
type SnapshotRepository struct{}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *sqlx.DB) repository.SnapshotRepository {
	return &SnapshotRepository{}
}

// Insert stores a new snapshot and assigns its internal ID. A unique
// violation is translated into *util.DuplicateKeyError naming the
// conflicting key; the database enforces check-and-insert atomicity.
func (r *SnapshotRepository) Insert(ctx context.Context, q repository.DBExecutor, snapshot *domain.BalanceSnapshot) error {
	query := `INSERT INTO balance_snapshots (external_id, wallet_id, provider, balance, currency,
	              external_balance_id, as_of, idempotency_key, metadata, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		snapshot.ExternalID,
		snapshot.WalletID,
		snapshot.Provider,
		snapshot.Balance,
		snapshot.Currency,
		snapshot.ExternalBalanceID,
		snapshot.AsOf,
		snapshot.IdempotencyKey,
		snapshot.Metadata,
		snapshot.CreatedAt,
	).Scan(&snapshot.ID)

	if err != nil {
		if dup := snapshotConflict(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert balance snapshot: %w", err)
	}
	return nil
}

// snapshotConflict maps a unique violation to the conflicting dedup key.
func snapshotConflict(err error) *util.DuplicateKeyError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case snapshotIdempotencyKeyConstraint:
		return &util.DuplicateKeyError{Key: util.ConflictIdempotencyKey}
	case snapshotExternalBalanceIDConstraint:
		return &util.DuplicateKeyError{Key: util.ConflictExternalBalanceID}
	case snapshotWalletAsOfConstraint:
		return &util.DuplicateKeyError{Key: util.ConflictWalletAsOf}
	default:
		return &util.DuplicateKeyError{Key: util.ConflictUnknown}
	}
}

// FindByIdempotencyKey retrieves the snapshot created under the given key.
func (r *SnapshotRepository) FindByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.BalanceSnapshot, error) {
	var snapshot domain.BalanceSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM balance_snapshots WHERE idempotency_key = $1`
	err := q.GetContext(ctx, &snapshot, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot by idempotency key: %w", err)
	}
	return &snapshot, nil
}

// FindByExternalBalanceID retrieves the snapshot holding the given
// provider-supplied reading id.
func (r *SnapshotRepository) FindByExternalBalanceID(ctx context.Context, q repository.DBExecutor, externalBalanceID string) (*domain.BalanceSnapshot, error) {
	var snapshot domain.BalanceSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM balance_snapshots WHERE external_balance_id = $1`
	err := q.GetContext(ctx, &snapshot, query, externalBalanceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot by external balance id '%s': %w", externalBalanceID, err)
	}
	return &snapshot, nil
}

// FindByWalletAndAsOf retrieves the snapshot representing walletID at asOf.
func (r *SnapshotRepository) FindByWalletAndAsOf(ctx context.Context, q repository.DBExecutor, walletID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	var snapshot domain.BalanceSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM balance_snapshots WHERE wallet_id = $1 AND as_of = $2`
	err := q.GetContext(ctx, &snapshot, query, walletID, asOf)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot for wallet %s at %s: %w", walletID, asOf, err)
	}
	return &snapshot, nil
}

// FindByExternalID retrieves a snapshot by its creation-assigned external id.
func (r *SnapshotRepository) FindByExternalID(ctx context.Context, q repository.DBExecutor, externalID string) (*domain.BalanceSnapshot, error) {
	var snapshot domain.BalanceSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM balance_snapshots WHERE external_id = $1`
	err := q.GetContext(ctx, &snapshot, query, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot by external id '%s': %w", externalID, err)
	}
	return &snapshot, nil
}

// LatestByWallet retrieves the most recent snapshot for a wallet.
func (r *SnapshotRepository) LatestByWallet(ctx context.Context, q repository.DBExecutor, walletID string) (*domain.BalanceSnapshot, error) {
	var snapshot domain.BalanceSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM balance_snapshots
	          WHERE wallet_id = $1 ORDER BY as_of DESC LIMIT 1`
	err := q.GetContext(ctx, &snapshot, query, walletID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest snapshot for wallet %s: %w", walletID, err)
	}
	return &snapshot, nil
}
