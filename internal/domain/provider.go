// internal/domain/provider.go
package domain

// Provider identifies an external payment provider that supplies balance
// readings and transaction events.
type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderAdyen    Provider = "adyen"
	ProviderWise     Provider = "wise"
	ProviderPaystack Provider = "paystack"
	ProviderMock     Provider = "mock" // local development and tests
)

// IsValid reports whether p is one of the known providers.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderStripe, ProviderAdyen, ProviderWise, ProviderPaystack, ProviderMock:
		return true
	}
	return false
}

// EventType classifies a single financial movement reported by a provider.
type EventType string

const (
	EventTypeDeposit     EventType = "deposit"
	EventTypeWithdrawal  EventType = "withdrawal"
	EventTypeTransferIn  EventType = "transfer_in"
	EventTypeTransferOut EventType = "transfer_out"
	EventTypeFee         EventType = "fee"
	EventTypeRefund      EventType = "refund"
	EventTypeHold        EventType = "hold"
	EventTypeRelease     EventType = "release"
)

// IsValid reports whether t is one of the known event types.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeDeposit, EventTypeWithdrawal, EventTypeTransferIn, EventTypeTransferOut,
		EventTypeFee, EventTypeRefund, EventTypeHold, EventTypeRelease:
		return true
	}
	return false
}
