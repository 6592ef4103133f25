package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/skushagra-sst/visit-counter/internal/counter"
	"github.com/skushagra-sst/visit-counter/internal/hashring"
)

// VisitCounter is the engine surface the HTTP layer depends on.
type VisitCounter interface {
	RecordVisit(pageID string) error
	Visits(ctx context.Context, pageID string) (int64, string, error)
}

// RecordVisitResponse acknowledges a buffered visit.
type RecordVisitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VisitCountResponse reports the current count and its provenance.
type VisitCountResponse struct {
	Visits    int64  `json:"visits"`
	ServedVia string `json:"served_via"`
}

// CounterHandler handles visit-counter HTTP requests.
type CounterHandler struct {
	engine VisitCounter
}

// NewCounterHandler creates a new CounterHandler.
func NewCounterHandler(engine VisitCounter) *CounterHandler {
	return &CounterHandler{engine: engine}
}

// RecordVisit handles POST /api/v1/counter/visit/{page_id} requests.
func (h *CounterHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("page_id")
	if pageID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "page id is required",
			Code:  "INVALID_PAGE_ID",
		})
		return
	}

	if err := h.engine.RecordVisit(pageID); err != nil {
		status, resp := mapCounterError(err)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, RecordVisitResponse{
		Status:  "success",
		Message: fmt.Sprintf("visit recorded for page %s", pageID),
	})
}

// GetVisits handles GET /api/v1/counter/visits/{page_id} requests.
func (h *CounterHandler) GetVisits(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("page_id")
	if pageID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "page id is required",
			Code:  "INVALID_PAGE_ID",
		})
		return
	}

	count, servedVia, err := h.engine.Visits(r.Context(), pageID)
	if err != nil {
		status, resp := mapCounterError(err)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, VisitCountResponse{
		Visits:    count,
		ServedVia: servedVia,
	})
}

// mapCounterError maps engine errors to HTTP responses.
func mapCounterError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, counter.ErrShuttingDown):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "service is shutting down",
			Code:  "SHUTTING_DOWN",
		}
	case errors.Is(err, hashring.ErrEmptyRing):
		return http.StatusInternalServerError, ErrorResponse{
			Error: "no shards available",
			Code:  "EMPTY_RING",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "counter store unavailable",
			Code:  "SHARD_IO",
		}
	}
}
