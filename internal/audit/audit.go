// internal/audit/audit.go
package audit

import "context"

// Ingestion audit actions.
const (
	ActionSyncBalance = "sync_balance"
	ActionIngestEvent = "ingest_event"
)

// Audited resource names.
const (
	ResourceBalanceSnapshot  = "balance_snapshot"
	ResourceTransactionEvent = "transaction_event"
)

// Recorder is a durable append-only sink for "an ingestion happened"
// records. Writes are best-effort relative to the main operation: engines
// log a failed Record call and move on, never retry and never fail the
// operation over it.
type Recorder interface {
	Record(ctx context.Context, action, resource string, details map[string]string) error
}
