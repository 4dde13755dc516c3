package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"civicroute/metrics"
	"civicroute/models"
)

// EnrichmentService derives the pipeline view of a complaint: resolved
// department, priority, SLA deadline, processing status, and display fields.
// Enrichment never fails; an internal error degrades to a minimal fallback
// record so a batch is never blocked by one bad complaint.
type EnrichmentService struct {
	resolver *MappingService
	policy   *models.EnrichmentPolicy
	logger   zerolog.Logger
}

// NewEnrichmentService creates a new enrichment service
func NewEnrichmentService(resolver *MappingService, policy *models.EnrichmentPolicy, logger zerolog.Logger) *EnrichmentService {
	if policy == nil {
		policy = models.DefaultEnrichmentPolicy()
	}
	return &EnrichmentService{resolver: resolver, policy: policy, logger: logger}
}

// Enrich derives the enriched view of one complaint as of now
func (s *EnrichmentService) Enrich(ctx context.Context, c models.Complaint) models.EnrichedComplaint {
	return s.EnrichAt(ctx, c, time.Now().UTC())
}

// EnrichAt derives the enriched view of one complaint as of a fixed instant.
// Enriching the same complaint twice at the same instant with the same mapping
// table yields identical output.
func (s *EnrichmentService) EnrichAt(ctx context.Context, c models.Complaint, now time.Time) models.EnrichedComplaint {
	mapping := s.resolver.Resolve(ctx, MappingQuery{
		ID:       c.ComplaintID,
		Category: c.Category,
		City:     c.City,
		Pincode:  c.Pincode.String,
	})
	return s.assemble(c, mapping, now)
}

// EnrichAll enriches a batch against one shared instant so every record in
// the snapshot agrees about "now". Departments resolve concurrently; a
// failure for one item degrades that item to the minimal fallback only.
func (s *EnrichmentService) EnrichAll(ctx context.Context, complaints []models.Complaint) []models.EnrichedComplaint {
	now := time.Now().UTC()
	return s.EnrichAllAt(ctx, complaints, now)
}

// EnrichAllAt is EnrichAll with the evaluation instant under caller control
func (s *EnrichmentService) EnrichAllAt(ctx context.Context, complaints []models.Complaint, now time.Time) []models.EnrichedComplaint {
	if len(complaints) == 0 {
		return []models.EnrichedComplaint{}
	}

	queries := make([]MappingQuery, 0, len(complaints))
	for _, c := range complaints {
		queries = append(queries, MappingQuery{
			ID:       c.ComplaintID,
			Category: c.Category,
			City:     c.City,
			Pincode:  c.Pincode.String,
		})
	}
	mappings := s.resolver.ResolveMany(ctx, queries)

	enriched := make([]models.EnrichedComplaint, 0, len(complaints))
	for _, c := range complaints {
		mapping, ok := mappings[c.ComplaintID]
		if !ok {
			mapping = s.resolver.DefaultResult(c.Category, c.City)
		}
		enriched = append(enriched, s.assembleSafe(c, mapping, now))
	}
	return enriched
}

// assembleSafe shields a batch from panics while deriving one record
func (s *EnrichmentService) assembleSafe(c models.Complaint, mapping models.DepartmentMappingResult, now time.Time) (e models.EnrichedComplaint) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Int64("complaint_id", c.ComplaintID).Msg("[enrichment] recovered")
			metrics.EnrichmentFallbacks.Inc()
			e = s.fallback(c, now)
		}
	}()
	return s.assemble(c, mapping, now)
}

func (s *EnrichmentService) assemble(c models.Complaint, mapping models.DepartmentMappingResult, now time.Time) models.EnrichedComplaint {
	priority := s.priorityFor(c)
	deadline := s.slaDeadline(c.CreatedAt, priority, mapping.Department)
	processing := s.processingStatusFor(c.Status, mapping.IsDefault)

	e := models.EnrichedComplaint{
		Complaint:          c,
		Mapping:            mapping,
		ProcessingStatus:   processing,
		Priority:           priority,
		SLADeadlineAt:      deadline,
		DaysSinceCreated:   daysSince(c.CreatedAt, now),
		FormattedCreatedAt: c.DisplayCreatedAt(),
	}
	e.BreachState = classifyBreach(deadline, processing, now, s.policy.WarningWindow)
	metrics.ComplaintsEnriched.Inc()
	return e
}

// fallback is the minimal enrichment used when derivation itself failed:
// default department, pending status, low priority.
func (s *EnrichmentService) fallback(c models.Complaint, now time.Time) models.EnrichedComplaint {
	mapping := s.resolver.DefaultResult(c.Category, c.City)
	deadline := s.slaDeadline(c.CreatedAt, models.PriorityLow, mapping.Department)
	e := models.EnrichedComplaint{
		Complaint:          c,
		Mapping:            mapping,
		ProcessingStatus:   models.ProcessingPending,
		Priority:           models.PriorityLow,
		SLADeadlineAt:      deadline,
		DaysSinceCreated:   daysSince(c.CreatedAt, now),
		FormattedCreatedAt: c.DisplayCreatedAt(),
	}
	e.BreachState = classifyBreach(deadline, e.ProcessingStatus, now, s.policy.WarningWindow)
	return e
}

// priorityFor applies the keyword and category rules. Keywords in the
// description or a high-priority category force high; a medium category gives
// medium; everything else is low.
func (s *EnrichmentService) priorityFor(c models.Complaint) models.Priority {
	description := strings.ToLower(c.Description)
	for _, kw := range s.policy.PriorityKeywords {
		if strings.Contains(description, kw) {
			return models.PriorityHigh
		}
	}

	category := strings.ToLower(strings.TrimSpace(c.Category))
	for _, high := range s.policy.HighPriorityCategories {
		if category == high || strings.Contains(category, high) {
			return models.PriorityHigh
		}
	}
	for _, medium := range s.policy.MediumPriorityCategories {
		if category == medium || strings.Contains(category, medium) {
			return models.PriorityMedium
		}
	}
	return models.PriorityLow
}

// slaDeadline computes createdAt + the priority's SLA hours, reduced for
// urgent departments and floored at the policy minimum.
func (s *EnrichmentService) slaDeadline(createdAt time.Time, priority models.Priority, department string) time.Time {
	hours, ok := s.policy.SLAHours[priority]
	if !ok {
		hours = s.policy.SLAHours[models.PriorityLow]
	}

	if departmentIsUrgent(department, s.policy.UrgentDepartmentMarkers) {
		hours -= s.policy.UrgentReductionHours
		if hours < s.policy.MinSLAHours {
			hours = s.policy.MinSLAHours
		}
	}
	return createdAt.Add(time.Duration(hours) * time.Hour)
}

// processingStatusFor maps the stored status onto the pipeline enum. Closed
// complaints read as resolved. A complaint with no meaningful stored status
// shows pending when routed by fallback, assigned when a real rule matched.
func (s *EnrichmentService) processingStatusFor(status models.ComplaintStatus, isDefault bool) models.ProcessingStatus {
	switch status {
	case models.StatusResolved, models.StatusClosed:
		return models.ProcessingResolved
	case models.StatusInProgress:
		return models.ProcessingInProgress
	case models.StatusEscalated:
		return models.ProcessingEscalated
	case models.StatusAssigned:
		return models.ProcessingAssigned
	default:
		if isDefault {
			return models.ProcessingPending
		}
		return models.ProcessingAssigned
	}
}

func departmentIsUrgent(department string, markers []string) bool {
	d := strings.ToLower(department)
	for _, m := range markers {
		if strings.Contains(d, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func daysSince(createdAt, now time.Time) int {
	if now.Before(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt).Hours() / 24)
}
