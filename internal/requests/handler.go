package requests

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// Handler serves the admin read API for request records.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new request records handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// ListRecordsResponse is the response for listing records
type ListRecordsResponse struct {
	Records []*Record `json:"records"`
	Count   int       `json:"count"`
	Offset  int       `json:"offset"`
	Limit   int       `json:"limit"`
}

// ListRecords handles GET /admin/businesses/{businessRef}/requests
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	businessRef := chi.URLParam(r, "businessRef")
	if businessRef == "" {
		http.Error(w, "missing business_ref", http.StatusBadRequest)
		return
	}

	filter := ListFilter{Limit: 50}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	filter.Status = r.URL.Query().Get("status")

	records, err := h.repo.ListByBusiness(r.Context(), businessRef, filter)
	if err != nil {
		h.logger.Error("failed to list request records", "error", err, "business_ref", businessRef)
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListRecordsResponse{
		Records: records,
		Count:   len(records),
		Offset:  filter.Offset,
		Limit:   filter.Limit,
	})
}

// GetRecord handles GET /admin/requests/{id}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			http.Error(w, "request not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load request record", "error", err, "id", id)
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}
