// internal/service/cursor.go
package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"ledgersync/internal/repository"
	"ledgersync/internal/util"
)

// eventCursor is the wire shape of a pagination cursor. Callers treat the
// encoded form as opaque.
type eventCursor struct {
	OccurredAt time.Time `json:"occurred_at"`
	EventID    string    `json:"event_id"`
}

// encodeEventCursor serializes the position of the last row of a page.
func encodeEventCursor(c repository.EventCursor) string {
	data, _ := json.Marshal(eventCursor{OccurredAt: c.OccurredAt, EventID: c.EventID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeEventCursor parses an encoded cursor. A malformed cursor is an
// invalid argument, not a server error.
func decodeEventCursor(s string) (*repository.EventCursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", util.ErrInvalidInput)
	}
	var c eventCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", util.ErrInvalidInput)
	}
	if c.EventID == "" || c.OccurredAt.IsZero() {
		return nil, fmt.Errorf("%w: malformed cursor", util.ErrInvalidInput)
	}
	return &repository.EventCursor{OccurredAt: c.OccurredAt, EventID: c.EventID}, nil
}
