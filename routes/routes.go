package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"civicroute/auth"
	"civicroute/handler"
	"civicroute/middleware"
	"civicroute/service"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	complaintService *service.ComplaintService,
	streamService *service.StreamService,
	slaService *service.SLAService,
	mappingStore handler.MappingAdminStore,
	mappingCache handler.MappingCacheInvalidator,
	credentials auth.CredentialStore,
	dashboardTokenTTL time.Duration,
	logger zerolog.Logger,
) *mux.Router {
	router := mux.NewRouter()

	// Order matters: request IDs first so the logger can pick them up,
	// recovery innermost so panics are logged with status 500.
	router.Use(middleware.RequestID, middleware.Logger(logger), middleware.Recovery(logger))

	// Initialize handlers
	complaintHandler := handler.NewComplaintHandler(complaintService)
	dashboardHandler := handler.NewDashboardHandler(complaintService, credentials, dashboardTokenTTL)
	adminHandler := handler.NewAdminHandler(mappingStore, mappingCache, slaService)
	publicHandler := handler.NewPublicHandler(complaintService)
	streamHandler := handler.NewStreamHandler(streamService, logger)

	authMiddleware := middleware.NewAuthMiddleware(credentials)

	// API v1 routes
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	// Complaint routes
	complaints := apiV1.PathPrefix("/complaints").Subrouter()

	// POST /api/v1/complaints - Ingest a raw complaint (open; malformed fields are defaulted, not rejected)
	complaints.HandleFunc("", complaintHandler.CreateComplaint).Methods("POST")

	// GET /api/v1/complaints - Enriched list with query-param filters
	complaints.HandleFunc("", complaintHandler.ListComplaints).Methods("GET")

	// GET /api/v1/complaints/stream - Live SSE snapshot feed (must register before /{id})
	complaints.HandleFunc("/stream", streamHandler.StreamComplaints).Methods("GET")

	// GET /api/v1/complaints/{id} - One enriched complaint
	complaints.HandleFunc("/{id}", complaintHandler.GetComplaint).Methods("GET")

	// POST /api/v1/complaints/{id}/status - Staff status update (REQUIRES AUTH)
	complaints.Handle("/{id}/status", authMiddleware.RequireDashboardAuth(http.HandlerFunc(complaintHandler.UpdateComplaintStatus))).Methods("POST")

	// POST /api/v1/dashboard/login - Operator login; returns a bearer token
	apiV1.HandleFunc("/dashboard/login", dashboardHandler.Login).Methods("POST")

	// GET /api/v1/statistics - Aggregate counts for the dashboard
	apiV1.HandleFunc("/statistics", dashboardHandler.GetStatistics).Methods("GET")

	// GET /api/v1/attention - Breached / default-routed / high-priority / long-pending queues
	apiV1.HandleFunc("/attention", dashboardHandler.GetAttentionQueues).Methods("GET")

	// Admin routes (REQUIRES AUTH): routing-rule CRUD and the manual scan trigger
	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware.RequireDashboardAuth)
	admin.HandleFunc("/mappings", adminHandler.ListMappings).Methods("GET")
	admin.HandleFunc("/mappings", adminHandler.CreateMapping).Methods("POST")
	admin.HandleFunc("/mappings/{id}", adminHandler.GetMapping).Methods("GET")
	admin.HandleFunc("/mappings/{id}", adminHandler.UpdateMapping).Methods("PUT")
	admin.HandleFunc("/mappings/{id}", adminHandler.DeleteMapping).Methods("DELETE")
	admin.HandleFunc("/sla/scan", adminHandler.TriggerSLAScan).Methods("POST")
	admin.HandleFunc("/cache/flush", adminHandler.FlushMappingCache).Methods("POST")

	// Public read-only tracking page by complaint_number (shareable; complaint_id never exposed).
	apiV1.HandleFunc("/public/complaints/by-number/{complaint_number}", publicHandler.TrackComplaint).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
