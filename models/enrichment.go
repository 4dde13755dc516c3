package models

import "time"

// MatchedCriteria records the (category, city) pair that actually matched during
// resolution. On a category-only match the city is the matched row's city, not
// the complaint's. Callers must not assume it echoes the input.
type MatchedCriteria struct {
	Category string `json:"category"`
	City     string `json:"city"`
}

// DepartmentMappingResult is the resolver output for one complaint
type DepartmentMappingResult struct {
	Department      string          `json:"department"`
	HigherAuthority string          `json:"higher_authority"`
	Status          string          `json:"status"`
	IsDefault       bool            `json:"is_default"`
	MatchedCriteria MatchedCriteria `json:"matched_criteria"`
}

// EnrichedComplaint is a complaint plus its resolved mapping and derived fields.
// It is computed transiently on every read or stream tick and never persisted
// as a record of its own (the processed_complaints audit row is a separate,
// explicit side effect).
type EnrichedComplaint struct {
	Complaint
	Mapping            DepartmentMappingResult `json:"mapping"`
	ProcessingStatus   ProcessingStatus        `json:"processing_status"`
	Priority           Priority                `json:"priority"`
	SLADeadlineAt      time.Time               `json:"sla_deadline_at"`
	DaysSinceCreated   int                     `json:"days_since_created"`
	FormattedCreatedAt string                  `json:"formatted_created_at"`
	BreachState        BreachState             `json:"breach_state"`
}

// Statistics aggregates the enriched view of a filtered complaint set.
// ProcessedCount comes from the pipeline audit table, not the scan window.
type Statistics struct {
	Total               int            `json:"total"`
	ByCategory          map[string]int `json:"by_category"`
	ByCity              map[string]int `json:"by_city"`
	ByStatus            map[string]int `json:"by_status"`
	ByPriority          map[string]int `json:"by_priority"`
	ByDepartment        map[string]int `json:"by_department"`
	ByProcessingStatus  map[string]int `json:"by_processing_status"`
	DefaultMappingCount int            `json:"default_mapping_count"`
	BreachCount         int            `json:"breach_count"`
	ProcessedCount      int64          `json:"processed_count"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// AttentionQueues groups the complaints a dashboard operator should look at first
type AttentionQueues struct {
	SLABreaches         []EnrichedComplaint `json:"sla_breaches"`
	DefaultMappings     []EnrichedComplaint `json:"default_mappings"`
	HighPriorityPending []EnrichedComplaint `json:"high_priority_pending"`
	LongPending         []EnrichedComplaint `json:"long_pending"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

// EnrichmentPolicy holds the tunable rules the pipeline applies: priority
// keywords and category sets, SLA hours per priority, the urgent-department
// reduction, and the default department sentinel. The values have no cited
// policy source, so they live here rather than as literals at call sites.
type EnrichmentPolicy struct {
	// Priority rules
	PriorityKeywords         []string
	HighPriorityCategories   []string
	MediumPriorityCategories []string

	// SLA rules
	SLAHours                map[Priority]int
	UrgentDepartmentMarkers []string
	UrgentReductionHours    int
	MinSLAHours             int
	WarningWindow           time.Duration

	// Fallback routing
	DefaultDepartment string

	// Attention queue threshold
	LongPendingDays int
}

// DefaultEnrichmentPolicy returns the baseline policy table
func DefaultEnrichmentPolicy() *EnrichmentPolicy {
	return &EnrichmentPolicy{
		PriorityKeywords: []string{"urgent", "emergency", "danger", "immediate", "critical"},
		HighPriorityCategories: []string{
			"water supply", "electricity", "sewage", "gas leak",
			"fire safety", "medical emergency", "accident",
		},
		MediumPriorityCategories: []string{
			"road", "pothole", "garbage", "streetlight",
			"drainage", "traffic", "water logging",
		},
		SLAHours: map[Priority]int{
			PriorityHigh:   24,
			PriorityMedium: 48,
			PriorityLow:    72,
		},
		UrgentDepartmentMarkers: []string{"water", "electricity", "fire"},
		UrgentReductionHours:    12,
		MinSLAHours:             12,
		WarningWindow:           24 * time.Hour,
		DefaultDepartment:       "General Grievances",
		LongPendingDays:         7,
	}
}

// HigherAuthorityFor derives the escalation contact title for a department
func HigherAuthorityFor(department string) string {
	return "Municipal Commissioner / Executive Officer - " + department
}
