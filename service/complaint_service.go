package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"civicroute/location"
	"civicroute/metrics"
	"civicroute/models"
)

// Errors surfaced to handlers, which map them onto HTTP statuses
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
)

// statusTransitions lists the allowed moves per current status. Closed is
// terminal; resolved can be reopened, which starts a fresh breach episode.
var statusTransitions = map[models.ComplaintStatus][]models.ComplaintStatus{
	models.StatusPending:    {models.StatusAssigned, models.StatusInProgress, models.StatusEscalated, models.StatusResolved},
	models.StatusAssigned:   {models.StatusInProgress, models.StatusEscalated, models.StatusResolved, models.StatusPending},
	models.StatusInProgress: {models.StatusResolved, models.StatusEscalated, models.StatusAssigned},
	models.StatusEscalated:  {models.StatusAssigned, models.StatusInProgress, models.StatusResolved},
	models.StatusResolved:   {models.StatusClosed, models.StatusInProgress},
	models.StatusClosed:     {},
}

// ComplaintStore is the persistence surface the complaint service needs
type ComplaintStore interface {
	GenerateComplaintNumber() string
	Insert(ctx context.Context, complaint *models.Complaint) error
	GetByID(ctx context.Context, complaintID int64) (*models.Complaint, error)
	GetByNumber(ctx context.Context, complaintNumber string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	ListUnresolved(ctx context.Context, limit int) ([]models.Complaint, error)
	UpdateStatus(ctx context.Context, complaintID int64, status models.ComplaintStatus) error
	ClearBreach(ctx context.Context, complaintID int64) error
}

// AuditCounter reads the pipeline audit trail for the statistics endpoint.
type AuditCounter interface {
	CountSince(ctx context.Context, since *time.Time) (int64, error)
}

// ComplaintService owns ingestion and every enriched read path. All reads go
// through the same enrichment pipeline so one-shot, statistics, and streaming
// consumers never disagree about a complaint's department or priority.
type ComplaintService struct {
	store    ComplaintStore
	audit    AuditCounter
	enricher *EnrichmentService
	policy   *models.EnrichmentPolicy
	logger   zerolog.Logger

	statsScanLimit int
}

// NewComplaintService creates a new complaint service. audit may be nil;
// statistics then omit the pipeline throughput count.
func NewComplaintService(store ComplaintStore, audit AuditCounter, enricher *EnrichmentService, policy *models.EnrichmentPolicy, statsScanLimit int, logger zerolog.Logger) *ComplaintService {
	if policy == nil {
		policy = models.DefaultEnrichmentPolicy()
	}
	if statsScanLimit <= 0 {
		statsScanLimit = 2000
	}
	return &ComplaintService{
		store:          store,
		audit:          audit,
		enricher:       enricher,
		policy:         policy,
		statsScanLimit: statsScanLimit,
		logger:         logger,
	}
}

// Ingest accepts a raw citizen submission, canonicalizes it, fills missing
// location fields from the free-text address, persists it, and returns the
// enriched view for the response. Audit rows and notifications are the
// pipeline worker's job, not ingestion's.
func (s *ComplaintService) Ingest(ctx context.Context, raw *models.RawComplaint) (*models.EnrichedComplaint, error) {
	complaint := raw.Canonicalize(time.Now().UTC())
	s.fillLocation(&complaint)
	complaint.ComplaintNumber = s.store.GenerateComplaintNumber()

	if err := s.store.Insert(ctx, &complaint); err != nil {
		return nil, fmt.Errorf("failed to store complaint: %w", err)
	}
	metrics.ComplaintsIngested.Inc()

	s.logger.Info().
		Int64("complaint_id", complaint.ComplaintID).
		Str("complaint_number", complaint.ComplaintNumber).
		Str("category", complaint.Category).
		Str("city", complaint.City).
		Msg("[complaint] ingested")

	enriched := s.enricher.Enrich(ctx, complaint)
	return &enriched, nil
}

// fillLocation runs the address normalizer over the free-text address and
// fills only the fields the submission left blank.
func (s *ComplaintService) fillLocation(c *models.Complaint) {
	if !c.FullAddress.Valid {
		return
	}
	needCity := c.City == "" || c.City == models.UnknownCity
	if !needCity && c.State.Valid && c.Pincode.Valid {
		return
	}

	loc := location.Normalize(c.FullAddress.String)
	if needCity && loc.City != "" {
		c.City = loc.City
	}
	if !c.State.Valid && loc.State != "" {
		c.State = sql.NullString{String: loc.State, Valid: true}
	}
	if !c.Pincode.Valid && loc.Pincode != "" {
		c.Pincode = sql.NullString{String: loc.Pincode, Valid: true}
	}
}

// FetchEnriched loads complaints for a filter and enriches them. Filters on
// derived fields (priority, processing status, default routing) apply after
// enrichment, so a page can come back shorter than the requested limit.
func (s *ComplaintService) FetchEnriched(ctx context.Context, filter models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
	complaints, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	enriched := s.enricher.EnrichAll(ctx, complaints)
	return filterDerived(enriched, filter), nil
}

// GetEnrichedByID returns the enriched view of one complaint
func (s *ComplaintService) GetEnrichedByID(ctx context.Context, complaintID int64) (*models.EnrichedComplaint, error) {
	complaint, err := s.store.GetByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	enriched := s.enricher.Enrich(ctx, *complaint)
	return &enriched, nil
}

// GetEnrichedByNumber returns the enriched view of one complaint by its
// public number
func (s *ComplaintService) GetEnrichedByNumber(ctx context.Context, complaintNumber string) (*models.EnrichedComplaint, error) {
	complaint, err := s.store.GetByNumber(ctx, complaintNumber)
	if err != nil {
		return nil, err
	}
	enriched := s.enricher.Enrich(ctx, *complaint)
	return &enriched, nil
}

// GetStatistics aggregates the enriched view of the filtered complaint set.
// The scan is capped, so on very large datasets the numbers describe the most
// recent window rather than all history.
func (s *ComplaintService) GetStatistics(ctx context.Context, filter models.ComplaintFilter) (*models.Statistics, error) {
	filter.Limit = s.statsScanLimit
	filter.Offset = 0

	complaints, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load complaints for statistics: %w", err)
	}
	enriched := s.enricher.EnrichAll(ctx, complaints)
	enriched = filterDerived(enriched, filter)

	stats := &models.Statistics{
		ByCategory:         make(map[string]int),
		ByCity:             make(map[string]int),
		ByStatus:           make(map[string]int),
		ByPriority:         make(map[string]int),
		ByDepartment:       make(map[string]int),
		ByProcessingStatus: make(map[string]int),
		GeneratedAt:        time.Now().UTC(),
	}
	for _, e := range enriched {
		stats.Total++
		stats.ByCategory[e.Category]++
		stats.ByCity[e.City]++
		stats.ByStatus[string(e.Status)]++
		stats.ByPriority[string(e.Priority)]++
		stats.ByDepartment[e.Mapping.Department]++
		stats.ByProcessingStatus[string(e.ProcessingStatus)]++
		if e.Mapping.IsDefault {
			stats.DefaultMappingCount++
		}
		if e.BreachState == models.BreachBreached {
			stats.BreachCount++
		}
	}

	if s.audit != nil {
		// Best-effort: on a failed read the count stays zero.
		count, err := s.audit.CountSince(ctx, filter.Since)
		if err != nil {
			s.logger.Warn().Err(err).Msg("[complaint] processed count unavailable")
		} else {
			stats.ProcessedCount = count
		}
	}
	return stats, nil
}

// GetAttentionQueues partitions the unresolved backlog into the queues an
// operator should look at first. One complaint can appear in several queues.
func (s *ComplaintService) GetAttentionQueues(ctx context.Context) (*models.AttentionQueues, error) {
	complaints, err := s.store.ListUnresolved(ctx, s.statsScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load complaints for attention queues: %w", err)
	}
	enriched := s.enricher.EnrichAll(ctx, complaints)

	queues := &models.AttentionQueues{
		SLABreaches:         []models.EnrichedComplaint{},
		DefaultMappings:     []models.EnrichedComplaint{},
		HighPriorityPending: []models.EnrichedComplaint{},
		LongPending:         []models.EnrichedComplaint{},
		GeneratedAt:         time.Now().UTC(),
	}
	for _, e := range enriched {
		if e.BreachState == models.BreachBreached {
			queues.SLABreaches = append(queues.SLABreaches, e)
		}
		if e.Mapping.IsDefault {
			queues.DefaultMappings = append(queues.DefaultMappings, e)
		}
		if e.Priority == models.PriorityHigh &&
			(e.ProcessingStatus == models.ProcessingPending || e.ProcessingStatus == models.ProcessingAssigned) {
			queues.HighPriorityPending = append(queues.HighPriorityPending, e)
		}
		if e.DaysSinceCreated > s.policy.LongPendingDays {
			queues.LongPending = append(queues.LongPending, e)
		}
	}
	return queues, nil
}

// UpdateStatus applies a staff status change, enforcing the lifecycle
// transition table. Resolving a complaint ends its breach episode; a later
// reopen starts a fresh one that can signal again.
func (s *ComplaintService) UpdateStatus(ctx context.Context, complaintID int64, req *models.UpdateStatusRequest) (*models.EnrichedComplaint, error) {
	newStatus, known := models.LookupStatus(req.Status)
	if !known {
		return nil, ErrUnknownStatus
	}

	complaint, err := s.store.GetByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(complaint.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, complaint.Status, newStatus)
	}

	if err := s.store.UpdateStatus(ctx, complaintID, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if newStatus == models.StatusResolved {
		if err := s.store.ClearBreach(ctx, complaintID); err != nil {
			s.logger.Warn().Err(err).Int64("complaint_id", complaintID).Msg("[complaint] breach episode not cleared")
		}
	}

	logEvent := s.logger.Info().
		Int64("complaint_id", complaintID).
		Str("from", string(complaint.Status)).
		Str("to", string(newStatus))
	if req.Note != "" {
		logEvent = logEvent.Str("note", req.Note)
	}
	logEvent.Msg("[complaint] status updated")

	complaint.Status = newStatus
	enriched := s.enricher.Enrich(ctx, *complaint)
	return &enriched, nil
}

func transitionAllowed(from, to models.ComplaintStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// filterDerived applies the enrichment-derived filter fields
func filterDerived(enriched []models.EnrichedComplaint, filter models.ComplaintFilter) []models.EnrichedComplaint {
	if filter.Priority == "" && filter.ProcessingStatus == "" && filter.IsDefault == nil {
		return enriched
	}
	out := make([]models.EnrichedComplaint, 0, len(enriched))
	for _, e := range enriched {
		if filter.Priority != "" && e.Priority != filter.Priority {
			continue
		}
		if filter.ProcessingStatus != "" && e.ProcessingStatus != filter.ProcessingStatus {
			continue
		}
		if filter.IsDefault != nil && e.Mapping.IsDefault != *filter.IsDefault {
			continue
		}
		out = append(out, e)
	}
	return out
}
