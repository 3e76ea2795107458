// internal/api/types/response.go
package types

// ListResponse defines a generic structure for cursor-paginated API
// responses. NextCursor is empty on the last page.
type ListResponse[T any] struct {
	Data       []T    `json:"data"`
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
}
