package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"civicroute/models"
	"civicroute/repository"
	"civicroute/service"
)

// maxIngestBody caps a complaint submission at 1 MB
const maxIngestBody = 1 << 20

// maxListLimit caps one list page; larger requests are trimmed, not rejected
const maxListLimit = 500

// ComplaintAPI is the service surface the complaint endpoints use
type ComplaintAPI interface {
	Ingest(ctx context.Context, raw *models.RawComplaint) (*models.EnrichedComplaint, error)
	FetchEnriched(ctx context.Context, filter models.ComplaintFilter) ([]models.EnrichedComplaint, error)
	GetEnrichedByID(ctx context.Context, complaintID int64) (*models.EnrichedComplaint, error)
	UpdateStatus(ctx context.Context, complaintID int64, req *models.UpdateStatusRequest) (*models.EnrichedComplaint, error)
}

// ComplaintHandler handles HTTP requests for complaints
type ComplaintHandler struct {
	service ComplaintAPI
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(svc ComplaintAPI) *ComplaintHandler {
	return &ComplaintHandler{service: svc}
}

// CreateComplaint handles POST /api/v1/complaints.
// Accepts both the flat and the nested historical payload shapes.
func (h *ComplaintHandler) CreateComplaint(w http.ResponseWriter, r *http.Request) {
	var raw models.RawComplaint
	body := http.MaxBytesReader(w, r.Body, maxIngestBody)
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}

	if strings.TrimSpace(raw.Description) == "" {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Description is required")
		return
	}

	enriched, err := h.service.Ingest(r.Context(), &raw)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to store complaint")
		return
	}

	respondWithJSON(w, http.StatusCreated, enriched)
}

// ListComplaints handles GET /api/v1/complaints
func (h *ComplaintHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	filter, err := parseComplaintFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	enriched, err := h.service.FetchEnriched(r.Context(), filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to load complaints")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"complaints": enriched,
		"count":      len(enriched),
	})
}

// GetComplaint handles GET /api/v1/complaints/{id}
func (h *ComplaintHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	complaintID, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	enriched, err := h.service.GetEnrichedByID(r.Context(), complaintID)
	if err != nil {
		respondServiceError(w, err, "Complaint not found")
		return
	}

	respondWithJSON(w, http.StatusOK, enriched)
}

// UpdateComplaintStatus handles POST /api/v1/complaints/{id}/status
func (h *ComplaintHandler) UpdateComplaintStatus(w http.ResponseWriter, r *http.Request) {
	complaintID, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Status is required")
		return
	}

	enriched, err := h.service.UpdateStatus(r.Context(), complaintID, &req)
	if err != nil {
		respondServiceError(w, err, "Complaint not found")
		return
	}

	respondWithJSON(w, http.StatusOK, enriched)
}

// parseComplaintFilter reads the list/stream query parameters
func parseComplaintFilter(r *http.Request) (models.ComplaintFilter, error) {
	q := r.URL.Query()
	filter := models.ComplaintFilter{
		Category: strings.TrimSpace(q.Get("category")),
		City:     strings.TrimSpace(q.Get("city")),
	}

	if status := q.Get("status"); status != "" {
		filter.Status = models.NormalizeStatus(status)
	}
	if priority := q.Get("priority"); priority != "" {
		switch models.Priority(strings.ToLower(priority)) {
		case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
			filter.Priority = models.Priority(strings.ToLower(priority))
		default:
			return filter, errors.New("priority must be one of low, medium, high")
		}
	}
	if ps := q.Get("processing_status"); ps != "" {
		filter.ProcessingStatus = models.ProcessingStatus(strings.ToLower(ps))
	}
	if v := q.Get("is_default"); v != "" {
		isDefault, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("is_default must be a boolean")
		}
		filter.IsDefault = &isDefault
	}
	if v := q.Get("processed"); v != "" {
		processed, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("processed must be a boolean")
		}
		filter.Processed = &processed
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("since must be an RFC3339 timestamp")
		}
		filter.Since = &since
	}
	if v := q.Get("until"); v != "" {
		until, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("until must be an RFC3339 timestamp")
		}
		filter.Until = &until
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

// parseIDVar extracts a numeric path variable, writing the 400 itself
func parseIDVar(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars[name], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid "+name)
		return 0, false
	}
	return id, true
}

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not Found", notFoundMessage)
	case errors.Is(err, service.ErrUnknownStatus):
		respondWithError(w, http.StatusBadRequest, "Validation error", "Unknown status value")
	case errors.Is(err, service.ErrInvalidTransition):
		respondWithError(w, http.StatusUnprocessableEntity, "Invalid transition", err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Request failed")
	}
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := models.ErrorResponse{
		Error:   errorType,
		Message: message,
		Code:    statusCode,
	}
	respondWithJSON(w, statusCode, response)
}
