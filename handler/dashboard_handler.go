package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"civicroute/auth"
	"civicroute/models"
)

// DashboardAPI is the aggregate read surface of the operator dashboard
type DashboardAPI interface {
	GetStatistics(ctx context.Context, filter models.ComplaintFilter) (*models.Statistics, error)
	GetAttentionQueues(ctx context.Context) (*models.AttentionQueues, error)
}

// DashboardHandler handles operator login and the aggregate dashboard reads
type DashboardHandler struct {
	service     DashboardAPI
	credentials auth.CredentialStore
	tokenTTL    time.Duration
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc DashboardAPI, credentials auth.CredentialStore, tokenTTL time.Duration) *DashboardHandler {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &DashboardHandler{service: svc, credentials: credentials, tokenTTL: tokenTTL}
}

// Login handles POST /api/v1/dashboard/login. The error body never says
// which part of the credentials was wrong.
func (h *DashboardHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Validation error", "Username and password are required")
		return
	}

	if err := h.credentials.Verify(req.Username, req.Password); err != nil {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials")
		return
	}

	token, expiresAt, err := auth.GenerateDashboardToken(req.Username, h.credentials.TokenSecret(), h.tokenTTL)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// GetStatistics handles GET /api/v1/statistics
func (h *DashboardHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseComplaintFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	stats, err := h.service.GetStatistics(r.Context(), filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to compute statistics")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// GetAttentionQueues handles GET /api/v1/attention
func (h *DashboardHandler) GetAttentionQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.service.GetAttentionQueues(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to build attention queues")
		return
	}

	respondWithJSON(w, http.StatusOK, queues)
}
