// internal/repository/memory/snapshot_mem.go
package memory

import (
	"context"
	"sync"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/repository"
	"ledgersync/internal/util"
)

// SnapshotRepository is an in-memory implementation of
// repository.SnapshotRepository, used for local runs and tests. All
// uniqueness checks and the insert happen under one mutex, so the atomic
// check-and-insert contract holds for concurrent callers.
type SnapshotRepository struct {
	mu           sync.Mutex
	nextID       int64
	byID         map[int64]*domain.BalanceSnapshot
	byExternalID map[string]*domain.BalanceSnapshot
	byIdemKey    map[string]*domain.BalanceSnapshot
	byExtBalID   map[string]*domain.BalanceSnapshot
	byWalletAsOf map[string]*domain.BalanceSnapshot
	byWallet     map[string][]*domain.BalanceSnapshot
}

// NewSnapshotRepository creates an empty in-memory snapshot store.
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		byID:         make(map[int64]*domain.BalanceSnapshot),
		byExternalID: make(map[string]*domain.BalanceSnapshot),
		byIdemKey:    make(map[string]*domain.BalanceSnapshot),
		byExtBalID:   make(map[string]*domain.BalanceSnapshot),
		byWalletAsOf: make(map[string]*domain.BalanceSnapshot),
		byWallet:     make(map[string][]*domain.BalanceSnapshot),
	}
}

func walletAsOfKey(walletID string, asOf time.Time) string {
	return walletID + "\x00" + asOf.UTC().Format(time.RFC3339Nano)
}

// Insert stores a snapshot after checking every uniqueness invariant under
// the store lock. The q parameter is ignored.
func (r *SnapshotRepository) Insert(ctx context.Context, q repository.DBExecutor, snapshot *domain.BalanceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot.IdempotencyKey != nil {
		if _, exists := r.byIdemKey[*snapshot.IdempotencyKey]; exists {
			return &util.DuplicateKeyError{Key: util.ConflictIdempotencyKey}
		}
	}
	if snapshot.ExternalBalanceID != nil {
		if _, exists := r.byExtBalID[*snapshot.ExternalBalanceID]; exists {
			return &util.DuplicateKeyError{Key: util.ConflictExternalBalanceID}
		}
	}
	if _, exists := r.byWalletAsOf[walletAsOfKey(snapshot.WalletID, snapshot.AsOf)]; exists {
		return &util.DuplicateKeyError{Key: util.ConflictWalletAsOf}
	}

	r.nextID++
	snapshot.ID = r.nextID

	stored := copySnapshot(snapshot)
	r.byID[stored.ID] = stored
	r.byExternalID[stored.ExternalID] = stored
	if stored.IdempotencyKey != nil {
		r.byIdemKey[*stored.IdempotencyKey] = stored
	}
	if stored.ExternalBalanceID != nil {
		r.byExtBalID[*stored.ExternalBalanceID] = stored
	}
	r.byWalletAsOf[walletAsOfKey(stored.WalletID, stored.AsOf)] = stored
	r.byWallet[stored.WalletID] = append(r.byWallet[stored.WalletID], stored)
	return nil
}

// FindByIdempotencyKey retrieves the snapshot created under the given key.
func (r *SnapshotRepository) FindByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, exists := r.byIdemKey[key]; exists {
		return copySnapshot(s), nil
	}
	return nil, util.ErrNotFound
}

// FindByExternalBalanceID retrieves the snapshot holding the given
// provider-supplied reading id.
func (r *SnapshotRepository) FindByExternalBalanceID(ctx context.Context, q repository.DBExecutor, externalBalanceID string) (*domain.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, exists := r.byExtBalID[externalBalanceID]; exists {
		return copySnapshot(s), nil
	}
	return nil, util.ErrNotFound
}

// FindByWalletAndAsOf retrieves the snapshot representing walletID at asOf.
func (r *SnapshotRepository) FindByWalletAndAsOf(ctx context.Context, q repository.DBExecutor, walletID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, exists := r.byWalletAsOf[walletAsOfKey(walletID, asOf)]; exists {
		return copySnapshot(s), nil
	}
	return nil, util.ErrNotFound
}

// FindByExternalID retrieves a snapshot by its creation-assigned external id.
func (r *SnapshotRepository) FindByExternalID(ctx context.Context, q repository.DBExecutor, externalID string) (*domain.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, exists := r.byExternalID[externalID]; exists {
		return copySnapshot(s), nil
	}
	return nil, util.ErrNotFound
}

// LatestByWallet retrieves the most recent snapshot (by as_of) for a wallet.
func (r *SnapshotRepository) LatestByWallet(ctx context.Context, q repository.DBExecutor, walletID string) (*domain.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.BalanceSnapshot
	for _, s := range r.byWallet[walletID] {
		if latest == nil || s.AsOf.After(latest.AsOf) {
			latest = s
		}
	}
	if latest == nil {
		return nil, util.ErrNotFound
	}
	return copySnapshot(latest), nil
}

// copySnapshot returns a deep enough copy that callers cannot mutate the
// stored record through the returned pointer.
func copySnapshot(s *domain.BalanceSnapshot) *domain.BalanceSnapshot {
	c := *s
	if s.Metadata != nil {
		c.Metadata = make(domain.Metadata, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Compile-time check: SnapshotRepository implements the repository port.
var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)
