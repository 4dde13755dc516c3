package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"civicroute/models"
	"civicroute/service"
)

// MappingAdminStore is the routing-rule CRUD surface
type MappingAdminStore interface {
	List(ctx context.Context) ([]models.DepartmentMapping, error)
	GetByID(ctx context.Context, mappingID int64) (*models.DepartmentMapping, error)
	Create(ctx context.Context, mapping *models.DepartmentMapping) error
	Update(ctx context.Context, mapping *models.DepartmentMapping) error
	Delete(ctx context.Context, mappingID int64) error
}

// MappingCacheInvalidator drops cached resolutions after a rule write
type MappingCacheInvalidator interface {
	Invalidate(ctx context.Context, category, city string)
	Flush(ctx context.Context)
}

// SLAScanTrigger runs one on-demand breach scan
type SLAScanTrigger interface {
	ScanOnce(ctx context.Context) (service.ScanResult, error)
}

// AdminHandler provides the authenticated operations endpoints: routing rule
// CRUD and the manual SLA scan trigger.
type AdminHandler struct {
	mappings MappingAdminStore
	cache    MappingCacheInvalidator
	sla      SLAScanTrigger
	validate *validator.Validate
}

// NewAdminHandler creates a new admin handler. cache may be nil when Redis
// is not configured.
func NewAdminHandler(mappings MappingAdminStore, cache MappingCacheInvalidator, sla SLAScanTrigger) *AdminHandler {
	return &AdminHandler{
		mappings: mappings,
		cache:    cache,
		sla:      sla,
		validate: validator.New(),
	}
}

// ListMappings handles GET /api/v1/admin/mappings
func (h *AdminHandler) ListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.mappings.List(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to load mappings")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"mappings": mappings,
		"count":    len(mappings),
	})
}

// GetMapping handles GET /api/v1/admin/mappings/{id}
func (h *AdminHandler) GetMapping(w http.ResponseWriter, r *http.Request) {
	mappingID, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	mapping, err := h.mappings.GetByID(r.Context(), mappingID)
	if err != nil {
		respondServiceError(w, err, "Mapping not found")
		return
	}
	respondWithJSON(w, http.StatusOK, mapping)
}

// CreateMapping handles POST /api/v1/admin/mappings
func (h *AdminHandler) CreateMapping(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}

	mapping := &models.DepartmentMapping{
		Category:        req.Category,
		City:            req.City,
		Department:      req.Department,
		HigherAuthority: req.HigherAuthority,
		Status:          req.Status,
	}
	if req.Pincode != "" {
		mapping.Pincode = sql.NullString{String: req.Pincode, Valid: true}
	}

	if err := h.mappings.Create(r.Context(), mapping); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to create mapping")
		return
	}
	h.invalidate(r.Context(), mapping.Category, mapping.City)

	respondWithJSON(w, http.StatusCreated, mapping)
}

// UpdateMapping handles PUT /api/v1/admin/mappings/{id}
func (h *AdminHandler) UpdateMapping(w http.ResponseWriter, r *http.Request) {
	mappingID, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	var req models.UpdateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}

	mapping, err := h.mappings.GetByID(r.Context(), mappingID)
	if err != nil {
		respondServiceError(w, err, "Mapping not found")
		return
	}
	// Drop the cached entries for the old keys too; the rule may move.
	oldCategory, oldCity := mapping.Category, mapping.City

	mapping.Category = req.Category
	mapping.City = req.City
	mapping.Department = req.Department
	mapping.HigherAuthority = req.HigherAuthority
	if req.Status != "" {
		mapping.Status = req.Status
	}
	mapping.Pincode = sql.NullString{}
	if req.Pincode != "" {
		mapping.Pincode = sql.NullString{String: req.Pincode, Valid: true}
	}

	if err := h.mappings.Update(r.Context(), mapping); err != nil {
		respondServiceError(w, err, "Mapping not found")
		return
	}
	h.invalidate(r.Context(), oldCategory, oldCity)
	h.invalidate(r.Context(), mapping.Category, mapping.City)

	respondWithJSON(w, http.StatusOK, mapping)
}

// DeleteMapping handles DELETE /api/v1/admin/mappings/{id}
func (h *AdminHandler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	mappingID, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	mapping, err := h.mappings.GetByID(r.Context(), mappingID)
	if err != nil {
		respondServiceError(w, err, "Mapping not found")
		return
	}

	if err := h.mappings.Delete(r.Context(), mappingID); err != nil {
		respondServiceError(w, err, "Mapping not found")
		return
	}
	h.invalidate(r.Context(), mapping.Category, mapping.City)

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Mapping deleted"})
}

// FlushMappingCache handles POST /api/v1/admin/cache/flush. Useful after a
// bulk import bypasses the per-rule invalidation.
func (h *AdminHandler) FlushMappingCache(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		h.cache.Flush(r.Context())
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Mapping cache flushed"})
}

// TriggerSLAScan handles POST /api/v1/admin/sla/scan
func (h *AdminHandler) TriggerSLAScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.sla.ScanOnce(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Scan failed")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) invalidate(ctx context.Context, category, city string) {
	if h.cache == nil {
		return
	}
	h.cache.Invalidate(ctx, category, city)
}
