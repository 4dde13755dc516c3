package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"civicroute/models"
)

// PublicComplaintReader looks complaints up by their public number
type PublicComplaintReader interface {
	GetEnrichedByNumber(ctx context.Context, complaintNumber string) (*models.EnrichedComplaint, error)
}

// PublicHandler serves read-only public complaint tracking. No auth;
// whitelisted fields only; no PII and no internal IDs.
type PublicHandler struct {
	service PublicComplaintReader
}

// NewPublicHandler creates a public handler
func NewPublicHandler(svc PublicComplaintReader) *PublicHandler {
	return &PublicHandler{service: svc}
}

// TrackComplaint handles GET /api/v1/public/complaints/by-number/{complaint_number}.
// The internal complaint ID never appears in the response.
func (h *PublicHandler) TrackComplaint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	complaintNumber := vars["complaint_number"]
	if complaintNumber == "" {
		respondWithError(w, http.StatusBadRequest, "Bad Request", "complaint_number required")
		return
	}

	enriched, err := h.service.GetEnrichedByNumber(r.Context(), complaintNumber)
	if err != nil {
		respondServiceError(w, err, "Complaint not found")
		return
	}

	respondWithJSON(w, http.StatusOK, publicComplaintResponse{
		ComplaintNumber:    enriched.ComplaintNumber,
		Category:           enriched.Category,
		City:               enriched.City,
		Status:             string(enriched.Status),
		ProcessingStatus:   string(enriched.ProcessingStatus),
		Priority:           string(enriched.Priority),
		Department:         enriched.Mapping.Department,
		HigherAuthority:    enriched.Mapping.HigherAuthority,
		SLADeadlineAt:      enriched.SLADeadlineAt.Format(time.RFC3339),
		BreachState:        string(enriched.BreachState),
		DaysSinceCreated:   enriched.DaysSinceCreated,
		CreatedAt:          enriched.CreatedAt.Format(time.RFC3339),
		FormattedCreatedAt: enriched.FormattedCreatedAt,
	})
}

// publicComplaintResponse: whitelist only. No complaint_id, no submitter
// fields, no coordinates.
type publicComplaintResponse struct {
	ComplaintNumber    string `json:"complaint_number"`
	Category           string `json:"category"`
	City               string `json:"city"`
	Status             string `json:"status"`
	ProcessingStatus   string `json:"processing_status"`
	Priority           string `json:"priority"`
	Department         string `json:"department"`
	HigherAuthority    string `json:"higher_authority"`
	SLADeadlineAt      string `json:"sla_deadline_at"`
	BreachState        string `json:"breach_state"`
	DaysSinceCreated   int    `json:"days_since_created"`
	CreatedAt          string `json:"created_at"`
	FormattedCreatedAt string `json:"formatted_created_at"`
}
