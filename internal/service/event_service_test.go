// internal/service/event_service_test.go
package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/gateway"
	"ledgersync/internal/repository"
	"ledgersync/internal/repository/memory"
	"ledgersync/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestIngestEvent tests the IngestEvent method of EventService.
func TestIngestEvent(t *testing.T) {
	walletID := "W1"
	occurredAt := time.Date(2026, 8, 21, 9, 30, 0, 0, time.UTC)

	baseParams := IngestEventParams{
		WalletID:   walletID,
		Provider:   domain.ProviderAdyen,
		EventType:  domain.EventTypeDeposit,
		Amount:     decimal.NewFromFloat(42.00),
		Currency:   "EUR",
		OccurredAt: occurredAt,
	}

	t.Run("EventIDMatchShortCircuitsRemainingChecks", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockEventRepository)
		mockRecorder := new(MockRecorder)
		svc := NewEventService(nil, mockRepo, mockRecorder, testLogger())

		existing := &domain.TransactionEvent{EventID: "evt-internal-1", WalletID: walletID}
		mockRepo.On("FindByEventID", ctx, nil, "evt-internal-1").Return(existing, nil).Once()

		params := baseParams
		params.EventID = "evt-internal-1"
		params.ProviderEventID = strPtr("evt-7")
		params.IdempotencyKey = strPtr("k1")

		got, err := svc.IngestEvent(ctx, params)
		assert.NoError(t, err)
		assert.Equal(t, existing, got)
		mockRepo.AssertNotCalled(t, "FindByProviderEventID")
		mockRepo.AssertNotCalled(t, "FindByIdempotencyKey")
		mockRepo.AssertNotCalled(t, "Insert")
		mockRecorder.AssertNotCalled(t, "Record")
	})

	t.Run("ProviderEventIDReplayReturnsExisting", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockEventRepository)
		mockRecorder := new(MockRecorder)
		svc := NewEventService(nil, mockRepo, mockRecorder, testLogger())

		existing := &domain.TransactionEvent{EventID: "evt-internal-2", ProviderEventID: strPtr("evt-7")}
		mockRepo.On("FindByProviderEventID", ctx, nil, "evt-7").Return(existing, nil).Once()

		params := baseParams
		params.ProviderEventID = strPtr("evt-7")
		params.IdempotencyKey = strPtr("k1")

		got, err := svc.IngestEvent(ctx, params)
		assert.NoError(t, err)
		assert.Equal(t, existing, got)
		mockRepo.AssertNotCalled(t, "FindByIdempotencyKey")
		mockRepo.AssertNotCalled(t, "Insert")
		mockRecorder.AssertNotCalled(t, "Record")
	})

	t.Run("IdempotencyKeyReplayReturnsExisting", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockEventRepository)
		mockRecorder := new(MockRecorder)
		svc := NewEventService(nil, mockRepo, mockRecorder, testLogger())

		existing := &domain.TransactionEvent{EventID: "evt-internal-3", IdempotencyKey: strPtr("k1")}
		mockRepo.On("FindByIdempotencyKey", ctx, nil, "k1").Return(existing, nil).Once()

		params := baseParams
		params.IdempotencyKey = strPtr("k1")

		got, err := svc.IngestEvent(ctx, params)
		assert.NoError(t, err)
		assert.Equal(t, existing, got)
		mockRepo.AssertNotCalled(t, "Insert")
		mockRecorder.AssertNotCalled(t, "Record")
	})

	t.Run("NewEventIsInsertedAndAudited", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockEventRepository)
		mockRecorder := new(MockRecorder)
		svc := NewEventService(nil, mockRepo, mockRecorder, testLogger())

		mockRepo.On("FindByProviderEventID", ctx, nil, "evt-8").Return(nil, util.ErrNotFound).Once()
		mockRepo.On("Insert", ctx, nil, mock.AnythingOfType("*domain.TransactionEvent")).Return(nil).Once()
		mockRecorder.On("Record", ctx, "ingest_event", "transaction_event", mock.Anything).Return(nil).Once()

		params := baseParams
		params.ProviderEventID = strPtr("evt-8")

		got, err := svc.IngestEvent(ctx, params)
		assert.NoError(t, err)
		assert.NotEmpty(t, got.EventID)
		assert.Equal(t, walletID, got.WalletID)
		assert.Equal(t, domain.EventTypeDeposit, got.EventType)
		assert.True(t, got.OccurredAt.Equal(occurredAt))
		mockRepo.AssertExpectations(t)
		mockRecorder.AssertExpectations(t)
	})

	t.Run("DuplicateOnProviderEventIDResolvesToWinner", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockEventRepository)
		mockRecorder := new(MockRecorder)
		svc := NewEventService(nil, mockRepo, mockRecorder, testLogger())

		winner := &domain.TransactionEvent{EventID: "evt-winner", ProviderEventID: strPtr("evt-7")}
		// Pre-check misses, then the concurrent writer commits first.
		mockRepo.On("FindByProviderEventID", ctx, nil, "evt-7").Return(nil, util.ErrNotFound).Once()
		mockRepo.On("Insert", ctx, nil, mock.AnythingOfType("*domain.TransactionEvent")).
			Return(&util.DuplicateKeyError{Key: util.ConflictProviderEventID}).Once()
		mockRepo.On("FindByProviderEventID", ctx, nil, "evt-7").Return(winner, nil).Once()

		params := baseParams
		params.ProviderEventID = strPtr("evt-7")

		got, err := svc.IngestEvent(ctx, params)
		assert.NoError(t, err)
		assert.Equal(t, winner, got)
		mockRecorder.AssertNotCalled(t, "Record")
		mockRepo.AssertExpectations(t)
	})

	t.Run("EmptyOptionalKeysAreTreatedAsAbsent", func(t *testing.T) {
		ctx := context.Background()
		repo := memory.NewEventRepository()
		svc := NewEventService(nil, repo, noopRecorder{}, testLogger())

		params := baseParams
		params.ProviderEventID = strPtr("")
		params.IdempotencyKey = strPtr("")

		first, err := svc.IngestEvent(ctx, params)
		require.NoError(t, err)
		assert.Nil(t, first.ProviderEventID)
		assert.Nil(t, first.IdempotencyKey)

		// A second, distinct movement with the same empty-string keys must
		// not collapse into the first.
		params.OccurredAt = occurredAt.Add(time.Minute)
		second, err := svc.IngestEvent(ctx, params)
		require.NoError(t, err)
		assert.NotEqual(t, first.EventID, second.EventID)

		events, _, err := svc.ListEvents(ctx, walletID, 10, "")
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("InvalidInputs", func(t *testing.T) {
		svc := NewEventService(nil, new(MockEventRepository), new(MockRecorder), testLogger())
		ctx := context.Background()

		missingWallet := baseParams
		missingWallet.WalletID = ""
		_, err := svc.IngestEvent(ctx, missingWallet)
		assert.ErrorIs(t, err, util.ErrInvalidInput)

		badProvider := baseParams
		badProvider.Provider = "carrier-pigeon"
		_, err = svc.IngestEvent(ctx, badProvider)
		assert.ErrorIs(t, err, util.ErrUnknownProvider)

		badType := baseParams
		badType.EventType = "donation"
		_, err = svc.IngestEvent(ctx, badType)
		assert.ErrorIs(t, err, util.ErrInvalidInput)

		noTime := baseParams
		noTime.OccurredAt = time.Time{}
		_, err = svc.IngestEvent(ctx, noTime)
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})
}

// TestIngestEventConcurrentRace drives concurrent ingestions of the same
// provider event through the real in-memory store: exactly one row must be
// created and every caller must observe the same event id.
func TestIngestEventConcurrentRace(t *testing.T) {
	const callers = 16
	ctx := context.Background()
	repo := memory.NewEventRepository()
	svc := NewEventService(nil, repo, noopRecorder{}, testLogger())

	params := IngestEventParams{
		WalletID:        "W1",
		Provider:        domain.ProviderWise,
		EventType:       domain.EventTypeTransferIn,
		Amount:          decimal.NewFromFloat(13.37),
		Currency:        "USD",
		ProviderEventID: strPtr("evt-7"),
		OccurredAt:      time.Date(2026, 8, 22, 8, 0, 0, 0, time.UTC),
	}

	var wg sync.WaitGroup
	eventIDs := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := svc.IngestEvent(ctx, params)
			if err != nil {
				errs[i] = err
				return
			}
			eventIDs[i] = got.EventID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, eventIDs[0], eventIDs[i])
	}

	stored, _, err := svc.ListEvents(ctx, "W1", 100, "")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Equal(t, eventIDs[0], stored[0].EventID)
}

// TestSyncBalanceIndependentWallets runs concurrent syncs for different
// wallets against the real in-memory store; each wallet gets its own row.
func TestSyncBalanceIndependentWallets(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSnapshotRepository()

	asOf := time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC)
	gw := &staticGateway{asOf: asOf}
	svc := NewSyncService(nil, repo, gw, noopRecorder{}, fetchTimeout, testLogger())

	wallets := []string{"W1", "W2", "W3", "W4"}
	var wg sync.WaitGroup
	errs := make([]error, len(wallets))
	for i, w := range wallets {
		wg.Add(1)
		go func(i int, w string) {
			defer wg.Done()
			_, errs[i] = svc.SyncBalance(ctx, SyncBalanceParams{
				WalletID:           w,
				Provider:           domain.ProviderMock,
				ProviderAccountRef: "acct-" + w,
			})
		}(i, w)
	}
	wg.Wait()

	for i, w := range wallets {
		require.NoError(t, errs[i])
		snap, err := repo.LatestByWallet(ctx, nil, w)
		require.NoError(t, err)
		assert.Equal(t, w, snap.WalletID)
	}
}

// staticGateway serves a deterministic reading per wallet.
type staticGateway struct {
	asOf time.Time
}

func (g *staticGateway) FetchBalance(ctx context.Context, walletID string, provider domain.Provider, providerAccountRef string) (*gateway.BalanceReading, error) {
	return &gateway.BalanceReading{
		Balance:  decimal.NewFromInt(int64(len(walletID))),
		Currency: "USD",
		AsOf:     g.asOf,
	}, nil
}

// TestListEvents tests the ListEvents method of EventService.
func TestListEvents(t *testing.T) {
	t.Run("LimitBounds", func(t *testing.T) {
		mockRepo := new(MockEventRepository)
		svc := NewEventService(nil, mockRepo, new(MockRecorder), testLogger())
		ctx := context.Background()

		_, _, err := svc.ListEvents(ctx, "W1", 0, "")
		assert.ErrorIs(t, err, util.ErrInvalidInput)

		_, _, err = svc.ListEvents(ctx, "W1", 1001, "")
		assert.ErrorIs(t, err, util.ErrInvalidInput)

		mockRepo.On("ListByWallet", ctx, nil, "W1", 1, (*repository.EventCursor)(nil)).Return([]domain.TransactionEvent{}, nil).Once()
		_, _, err = svc.ListEvents(ctx, "W1", 1, "")
		assert.NoError(t, err)

		mockRepo.On("ListByWallet", ctx, nil, "W1", 1000, (*repository.EventCursor)(nil)).Return([]domain.TransactionEvent{}, nil).Once()
		_, _, err = svc.ListEvents(ctx, "W1", 1000, "")
		assert.NoError(t, err)

		mockRepo.AssertNotCalled(t, "ListByWallet", ctx, nil, "W1", 0, (*repository.EventCursor)(nil))
	})

	t.Run("MalformedCursorIsInvalidInput", func(t *testing.T) {
		svc := NewEventService(nil, new(MockEventRepository), new(MockRecorder), testLogger())

		_, _, err := svc.ListEvents(context.Background(), "W1", 10, "not-a-cursor")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("FullPageYieldsNextCursor", func(t *testing.T) {
		mockRepo := new(MockEventRepository)
		svc := NewEventService(nil, mockRepo, new(MockRecorder), testLogger())
		ctx := context.Background()

		newest := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
		page := []domain.TransactionEvent{
			{EventID: "e2", WalletID: "W1", OccurredAt: newest},
			{EventID: "e1", WalletID: "W1", OccurredAt: newest.Add(-time.Hour)},
		}
		mockRepo.On("ListByWallet", ctx, nil, "W1", 2, (*repository.EventCursor)(nil)).Return(page, nil).Once()

		events, next, err := svc.ListEvents(ctx, "W1", 2, "")
		assert.NoError(t, err)
		assert.Len(t, events, 2)
		require.NotEmpty(t, next)

		decoded, err := decodeEventCursor(next)
		require.NoError(t, err)
		assert.Equal(t, "e1", decoded.EventID)
		assert.True(t, decoded.OccurredAt.Equal(newest.Add(-time.Hour)))
	})

	t.Run("EmptyWalletReturnsEmptyPage", func(t *testing.T) {
		ctx := context.Background()
		repo := memory.NewEventRepository()
		svc := NewEventService(nil, repo, noopRecorder{}, testLogger())

		events, next, err := svc.ListEvents(ctx, "W-empty", 50, "")
		assert.NoError(t, err)
		assert.Empty(t, events)
		assert.Empty(t, next)
	})
}

// TestListEventsPaginationStability verifies that already-returned pages do
// not change when an older-timestamped event lands between page fetches.
func TestListEventsPaginationStability(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewEventRepository()
	svc := NewEventService(nil, repo, noopRecorder{}, testLogger())

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	ingest := func(i int, occurredAt time.Time) {
		t.Helper()
		_, err := svc.IngestEvent(ctx, IngestEventParams{
			WalletID:        "W1",
			Provider:        domain.ProviderPaystack,
			EventType:       domain.EventTypeFee,
			Amount:          decimal.NewFromInt(int64(i)),
			Currency:        "USD",
			ProviderEventID: strPtr(fmt.Sprintf("prov-evt-%d", i)),
			OccurredAt:      occurredAt,
		})
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		ingest(i, base.Add(time.Duration(i)*time.Minute))
	}

	pageOne, cursorOne, err := svc.ListEvents(ctx, "W1", 2, "")
	require.NoError(t, err)
	require.Len(t, pageOne, 2)
	require.NotEmpty(t, cursorOne)

	pageTwo, cursorTwo, err := svc.ListEvents(ctx, "W1", 2, cursorOne)
	require.NoError(t, err)
	require.Len(t, pageTwo, 2)
	require.NotEmpty(t, cursorTwo)

	// A late event with an older timestamp than everything fetched so far.
	ingest(99, base.Add(-time.Hour))

	pageOneAgain, _, err := svc.ListEvents(ctx, "W1", 2, "")
	require.NoError(t, err)
	assert.Equal(t, pageOne, pageOneAgain)

	pageTwoAgain, _, err := svc.ListEvents(ctx, "W1", 2, cursorOne)
	require.NoError(t, err)
	assert.Equal(t, pageTwo, pageTwoAgain)

	// The straggler still shows up, at the end.
	pageThree, _, err := svc.ListEvents(ctx, "W1", 2, cursorTwo)
	require.NoError(t, err)
	require.Len(t, pageThree, 2)
	assert.True(t, pageThree[1].OccurredAt.Equal(base.Add(-time.Hour)))
}
