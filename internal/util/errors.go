// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input provided")
	ErrDuplicateEntry      = errors.New("duplicate entry")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// IsError reports whether err matches target anywhere in its wrap chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// ConflictKey identifies which uniqueness constraint rejected an insert.
type ConflictKey string

const (
	ConflictIdempotencyKey    ConflictKey = "idempotency_key"
	ConflictExternalBalanceID ConflictKey = "external_balance_id"
	ConflictWalletAsOf        ConflictKey = "wallet_as_of"
	ConflictProviderEventID   ConflictKey = "provider_event_id"
	ConflictEventID           ConflictKey = "event_id"
	ConflictUnknown           ConflictKey = "unknown"
)

// DuplicateKeyError is returned by store inserts when a uniqueness invariant
// would be violated. Key names the violated constraint so the caller can
// re-query the record that won the race.
type DuplicateKeyError struct {
	Key ConflictKey
}

func (e *DuplicateKeyError) Error() string {
	return "duplicate entry on " + string(e.Key)
}

// Is makes errors.Is(err, ErrDuplicateEntry) match.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

// AsDuplicateKey extracts a DuplicateKeyError from err's wrap chain, if any.
func AsDuplicateKey(err error) (*DuplicateKeyError, bool) {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}
