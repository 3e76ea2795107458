// internal/service/sync_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgersync/internal/audit"
	"ledgersync/internal/domain"
	"ledgersync/internal/gateway"
	"ledgersync/internal/repository"
	"ledgersync/internal/util"
)

// SyncService defines the interface for balance synchronization.
type SyncService interface {
	// SyncBalance fetches the current balance for a wallet from its provider
	// and records it as an immutable snapshot, exactly once per dedup key.
	// Duplicate submissions return the original snapshot unchanged. Safe to
	// call concurrently from uncoordinated workers.
	SyncBalance(ctx context.Context, params SyncBalanceParams) (*domain.BalanceSnapshot, error)
	// GetSnapshot retrieves a snapshot by the external id assigned when it
	// was created. Unknown ids yield ErrNotFound.
	GetSnapshot(ctx context.Context, externalID string) (*domain.BalanceSnapshot, error)
}

// SyncBalanceParams carries the inputs of one synchronization attempt.
type SyncBalanceParams struct {
	WalletID           string
	Provider           domain.Provider
	ProviderAccountRef string
	IdempotencyKey     *string
	Metadata           domain.Metadata
}

// syncService implements SyncService. It holds no per-call state: every
// invocation re-derives its decision from the store, which makes retries
// after partial failure independently replayable.
type syncService struct {
	dbExecutor   repository.DBExecutor
	snapshotRepo repository.SnapshotRepository
	gateway      gateway.ProviderGateway
	auditor      audit.Recorder
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewSyncService creates a new instance of SyncService.
func NewSyncService(
	dbExecutor repository.DBExecutor,
	snapshotRepo repository.SnapshotRepository,
	providerGateway gateway.ProviderGateway,
	auditor audit.Recorder,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) SyncService {
	return &syncService{
		dbExecutor:   dbExecutor,
		snapshotRepo: snapshotRepo,
		gateway:      providerGateway,
		auditor:      auditor,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// SyncBalance runs the check-key, fetch, check-external, insert-or-resolve,
// audit sequence. The store is never held locked across the provider call.
func (s *syncService) SyncBalance(ctx context.Context, params SyncBalanceParams) (*domain.BalanceSnapshot, error) {
	if params.WalletID == "" {
		return nil, fmt.Errorf("%w: wallet id is required", util.ErrInvalidInput)
	}
	if !params.Provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", util.ErrUnknownProvider, params.Provider)
	}
	params.IdempotencyKey = normalizeOptionalKey(params.IdempotencyKey)

	// Fast idempotent path: a replayed key resolves without touching the
	// provider at all.
	if key := params.IdempotencyKey; key != nil {
		existing, err := s.snapshotRepo.FindByIdempotencyKey(ctx, s.dbExecutor, *key)
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("sync balance: failed to check idempotency key: %w", err)
		}
	}

	reading, err := s.fetchReading(ctx, params)
	if err != nil {
		return nil, err
	}

	reading.ExternalBalanceID = normalizeOptionalKey(reading.ExternalBalanceID)

	// The provider redelivered a reading we already hold.
	if id := reading.ExternalBalanceID; id != nil {
		existing, err := s.snapshotRepo.FindByExternalBalanceID(ctx, s.dbExecutor, *id)
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("sync balance: failed to check external balance id: %w", err)
		}
	}

	// A pure re-fetch of the latest reading creates no new row. Anything
	// else proceeds to insert; the (wallet_id, as_of) constraint is the
	// final arbiter either way.
	latest, err := s.snapshotRepo.LatestByWallet(ctx, s.dbExecutor, params.WalletID)
	if err != nil && !util.IsError(err, util.ErrNotFound) {
		return nil, fmt.Errorf("sync balance: failed to load latest snapshot for wallet %s: %w", params.WalletID, err)
	}
	if latest != nil && latest.AsOf.Equal(reading.AsOf) &&
		latest.Balance.Equal(reading.Balance) && latest.Currency == reading.Currency {
		return latest, nil
	}

	snapshot := domain.NewBalanceSnapshot(
		params.WalletID,
		params.Provider,
		reading.Balance,
		reading.Currency,
		reading.ExternalBalanceID,
		reading.AsOf,
		params.IdempotencyKey,
		params.Metadata,
	)

	if err := s.snapshotRepo.Insert(ctx, s.dbExecutor, snapshot); err != nil {
		if dup, ok := util.AsDuplicateKey(err); ok {
			// A concurrent caller won the race; hand back their row.
			return s.resolveSnapshotConflict(ctx, dup.Key, params, reading)
		}
		return nil, fmt.Errorf("sync balance: failed to insert snapshot for wallet %s: %w", params.WalletID, err)
	}

	s.recordAudit(ctx, snapshot)
	return snapshot, nil
}

// GetSnapshot retrieves a snapshot by its external id.
func (s *syncService) GetSnapshot(ctx context.Context, externalID string) (*domain.BalanceSnapshot, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: snapshot id is required", util.ErrInvalidInput)
	}
	snapshot, err := s.snapshotRepo.FindByExternalID(ctx, s.dbExecutor, externalID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: failed to get snapshot '%s': %w", externalID, err)
	}
	return snapshot, nil
}

// fetchReading calls the provider gateway under a bounded timeout. No store
// state is held while the call is in flight.
func (s *syncService) fetchReading(ctx context.Context, params SyncBalanceParams) (*gateway.BalanceReading, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	reading, err := s.gateway.FetchBalance(fetchCtx, params.WalletID, params.Provider, params.ProviderAccountRef)
	if err != nil {
		if util.IsError(err, util.ErrProviderUnavailable) {
			return nil, fmt.Errorf("sync balance: %w", err)
		}
		return nil, fmt.Errorf("sync balance: %w: provider %s fetch for wallet %s failed: %s",
			util.ErrProviderUnavailable, params.Provider, params.WalletID, err)
	}
	if reading.Currency == "" {
		return nil, fmt.Errorf("sync balance: %w: provider %s returned a reading without currency",
			util.ErrProviderUnavailable, params.Provider)
	}
	if reading.AsOf.IsZero() {
		return nil, fmt.Errorf("sync balance: %w: provider %s returned a reading without timestamp",
			util.ErrProviderUnavailable, params.Provider)
	}
	return reading, nil
}

// resolveSnapshotConflict re-queries by the key the constraint violation
// named and returns the winner's snapshot. DuplicateKey never crosses the
// engine boundary.
func (s *syncService) resolveSnapshotConflict(
	ctx context.Context,
	key util.ConflictKey,
	params SyncBalanceParams,
	reading *gateway.BalanceReading,
) (*domain.BalanceSnapshot, error) {
	lookups := []util.ConflictKey{key}
	if key == util.ConflictUnknown {
		lookups = []util.ConflictKey{util.ConflictIdempotencyKey, util.ConflictExternalBalanceID, util.ConflictWalletAsOf}
	}

	for _, k := range lookups {
		var (
			existing *domain.BalanceSnapshot
			err      error
		)
		switch k {
		case util.ConflictIdempotencyKey:
			if params.IdempotencyKey == nil {
				continue
			}
			existing, err = s.snapshotRepo.FindByIdempotencyKey(ctx, s.dbExecutor, *params.IdempotencyKey)
		case util.ConflictExternalBalanceID:
			if reading.ExternalBalanceID == nil {
				continue
			}
			existing, err = s.snapshotRepo.FindByExternalBalanceID(ctx, s.dbExecutor, *reading.ExternalBalanceID)
		case util.ConflictWalletAsOf:
			existing, err = s.snapshotRepo.FindByWalletAndAsOf(ctx, s.dbExecutor, params.WalletID, reading.AsOf)
		default:
			continue
		}
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("sync balance: failed to resolve duplicate on %s: %w", k, err)
		}
	}

	// Rows are never deleted, so the winner must be findable; reaching here
	// means the conflict key did not match any lookup we can perform.
	return nil, fmt.Errorf("sync balance: unresolvable duplicate for wallet %s: %w", params.WalletID, util.ErrDuplicateEntry)
}

// normalizeOptionalKey maps an absent or empty optional key to nil, so the
// stores never index the empty string as a value. Without this, two distinct
// facts both carrying "" would collide on a uniqueness constraint.
func normalizeOptionalKey(key *string) *string {
	if key == nil || *key == "" {
		return nil
	}
	return key
}

// recordAudit writes the sync_balance audit record. Failures are logged and
// dropped: the snapshot is already durable and audit is best-effort.
func (s *syncService) recordAudit(ctx context.Context, snapshot *domain.BalanceSnapshot) {
	details := map[string]string{
		"external_id": snapshot.ExternalID,
		"wallet_id":   snapshot.WalletID,
		"provider":    string(snapshot.Provider),
		"balance":     snapshot.Balance.String(),
		"currency":    snapshot.Currency,
		"as_of":       snapshot.AsOf.Format(time.RFC3339Nano),
	}
	if snapshot.ExternalBalanceID != nil {
		details["external_balance_id"] = *snapshot.ExternalBalanceID
	}
	if snapshot.IdempotencyKey != nil {
		details["idempotency_key"] = *snapshot.IdempotencyKey
	}
	if err := s.auditor.Record(ctx, audit.ActionSyncBalance, audit.ResourceBalanceSnapshot, details); err != nil {
		s.logger.Warn("failed to write audit record", "action", audit.ActionSyncBalance, "wallet_id", snapshot.WalletID, "error", err)
	}
}
