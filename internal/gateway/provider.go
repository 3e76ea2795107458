// internal/gateway/provider.go
package gateway

import (
	"context"
	"fmt"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/util"

	"github.com/shopspring/decimal"
)

// BalanceReading is a provider's report of a wallet's current balance.
type BalanceReading struct {
	Balance           decimal.Decimal
	Currency          string
	ExternalBalanceID *string // provider-supplied id for this specific reading, if any
	AsOf              time.Time
}

// ProviderGateway fetches a current balance reading for a wallet from a
// named provider. Implementations may be slow and may fail; they are not
// assumed idempotent, so callers must avoid redundant fetches.
type ProviderGateway interface {
	FetchBalance(ctx context.Context, walletID string, provider domain.Provider, providerAccountRef string) (*BalanceReading, error)
}

// Unconfigured is the gateway wired when no provider client has been set up
// for the process. Every fetch fails with ErrProviderUnavailable, which is
// safe to retry once a client is configured.
type Unconfigured struct{}

// FetchBalance always fails: there is no client to call.
func (Unconfigured) FetchBalance(ctx context.Context, walletID string, provider domain.Provider, providerAccountRef string) (*BalanceReading, error) {
	return nil, fmt.Errorf("no client configured for provider %s: %w", provider, util.ErrProviderUnavailable)
}

var _ ProviderGateway = Unconfigured{}
