// internal/api/handler/ingestion.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ledgersync/internal/api/types"
	"ledgersync/internal/domain"
	"ledgersync/internal/service"
	"ledgersync/internal/util"
)

// DefaultTimeout is the per-request timeout applied by the router.
const DefaultTimeout = 30 * time.Second

// IngestionHandler handles HTTP requests for balance syncs, event
// ingestion and event listing. It only decodes, delegates and encodes; all
// ingestion semantics live in the services.
type IngestionHandler struct {
	syncService  service.SyncService
	eventService service.EventService
	logger       *slog.Logger
}

// NewIngestionHandler creates a new IngestionHandler.
func NewIngestionHandler(syncSvc service.SyncService, eventSvc service.EventService, logger *slog.Logger) *IngestionHandler {
	return &IngestionHandler{
		syncService:  syncSvc,
		eventService: eventSvc,
		logger:       logger,
	}
}

// Helper function to send JSON responses.
func (h *IngestionHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h *IngestionHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput), util.IsError(err, util.ErrUnknownProvider):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrProviderUnavailable):
		statusCode = http.StatusBadGateway
		message = "Provider unavailable"
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

type syncBalanceRequest struct {
	Provider           string            `json:"provider"`
	ProviderAccountRef string            `json:"provider_account_ref"`
	IdempotencyKey     *string           `json:"idempotency_key"`
	Metadata           map[string]string `json:"metadata"`
}

// SyncBalance handles POST /wallets/{walletID}/balance-syncs.
func (h *IngestionHandler) SyncBalance(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")

	var req syncBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == nil {
		if header := r.Header.Get("Idempotency-Key"); header != "" {
			idempotencyKey = &header
		}
	}

	snapshot, err := h.syncService.SyncBalance(r.Context(), service.SyncBalanceParams{
		WalletID:           walletID,
		Provider:           domain.Provider(req.Provider),
		ProviderAccountRef: req.ProviderAccountRef,
		IdempotencyKey:     idempotencyKey,
		Metadata:           req.Metadata,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	// Replays return the original snapshot; callers cannot tell a fresh
	// sync from a replay.
	h.respondWithJSON(w, http.StatusCreated, snapshot)
}

// GetSnapshot handles GET /balance-snapshots/{externalID}.
func (h *IngestionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")

	snapshot, err := h.syncService.GetSnapshot(r.Context(), externalID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, snapshot)
}

type ingestEventRequest struct {
	EventID         string            `json:"event_id"`
	Provider        string            `json:"provider"`
	EventType       string            `json:"event_type"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	ProviderEventID *string           `json:"provider_event_id"`
	IdempotencyKey  *string           `json:"idempotency_key"`
	Metadata        map[string]string `json:"metadata"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// IngestEvent handles POST /wallets/{walletID}/events.
func (h *IngestionHandler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")

	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == nil {
		if header := r.Header.Get("Idempotency-Key"); header != "" {
			idempotencyKey = &header
		}
	}

	event, err := h.eventService.IngestEvent(r.Context(), service.IngestEventParams{
		EventID:         req.EventID,
		WalletID:        walletID,
		Provider:        domain.Provider(req.Provider),
		EventType:       domain.EventType(req.EventType),
		Amount:          req.Amount,
		Currency:        req.Currency,
		ProviderEventID: req.ProviderEventID,
		IdempotencyKey:  idempotencyKey,
		Metadata:        req.Metadata,
		OccurredAt:      req.OccurredAt,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /wallets/{walletID}/events.
func (h *IngestionHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")

	limit := 100 // default page size
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	cursor := r.URL.Query().Get("cursor")

	events, nextCursor, err := h.eventService.ListEvents(r.Context(), walletID, limit, cursor)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.ListResponse[domain.TransactionEvent]{
		Data:       events,
		Limit:      limit,
		NextCursor: nextCursor,
	})
}
