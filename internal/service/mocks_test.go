// internal/service/mocks_test.go
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/gateway"
	"ledgersync/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockSnapshotRepository is a mock implementation of repository.SnapshotRepository.
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Insert(ctx context.Context, q repository.DBExecutor, snapshot *domain.BalanceSnapshot) error {
	args := m.Called(ctx, q, snapshot)
	return args.Error(0)
}

func (m *MockSnapshotRepository) FindByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.BalanceSnapshot, error) {
	args := m.Called(ctx, q, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) FindByExternalBalanceID(ctx context.Context, q repository.DBExecutor, externalBalanceID string) (*domain.BalanceSnapshot, error) {
	args := m.Called(ctx, q, externalBalanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) FindByWalletAndAsOf(ctx context.Context, q repository.DBExecutor, walletID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	args := m.Called(ctx, q, walletID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) FindByExternalID(ctx context.Context, q repository.DBExecutor, externalID string) (*domain.BalanceSnapshot, error) {
	args := m.Called(ctx, q, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) LatestByWallet(ctx context.Context, q repository.DBExecutor, walletID string) (*domain.BalanceSnapshot, error) {
	args := m.Called(ctx, q, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceSnapshot), args.Error(1)
}

// MockEventRepository is a mock implementation of repository.EventRepository.
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Insert(ctx context.Context, q repository.DBExecutor, event *domain.TransactionEvent) error {
	args := m.Called(ctx, q, event)
	return args.Error(0)
}

func (m *MockEventRepository) FindByEventID(ctx context.Context, q repository.DBExecutor, eventID string) (*domain.TransactionEvent, error) {
	args := m.Called(ctx, q, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionEvent), args.Error(1)
}

func (m *MockEventRepository) FindByProviderEventID(ctx context.Context, q repository.DBExecutor, providerEventID string) (*domain.TransactionEvent, error) {
	args := m.Called(ctx, q, providerEventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionEvent), args.Error(1)
}

func (m *MockEventRepository) FindByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.TransactionEvent, error) {
	args := m.Called(ctx, q, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionEvent), args.Error(1)
}

func (m *MockEventRepository) ListByWallet(ctx context.Context, q repository.DBExecutor, walletID string, limit int, cursor *repository.EventCursor) ([]domain.TransactionEvent, error) {
	args := m.Called(ctx, q, walletID, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TransactionEvent), args.Error(1)
}

// MockProviderGateway is a mock implementation of gateway.ProviderGateway.
type MockProviderGateway struct {
	mock.Mock
}

func (m *MockProviderGateway) FetchBalance(ctx context.Context, walletID string, provider domain.Provider, providerAccountRef string) (*gateway.BalanceReading, error) {
	args := m.Called(ctx, walletID, provider, providerAccountRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.BalanceReading), args.Error(1)
}

// MockRecorder is a mock implementation of audit.Recorder.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, action, resource string, details map[string]string) error {
	args := m.Called(ctx, action, resource, details)
	return args.Error(0)
}

// noopRecorder discards audit records; for tests that exercise real stores.
type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, action, resource string, details map[string]string) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string {
	return &s
}
