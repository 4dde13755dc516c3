package service

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicroute/models"
)

func newTestEnricher(store MappingStore) *EnrichmentService {
	policy := models.DefaultEnrichmentPolicy()
	resolver := NewMappingService(store, policy, zerolog.Nop())
	return NewEnrichmentService(resolver, policy, zerolog.Nop())
}

func TestPriorityRules(t *testing.T) {
	s := newTestEnricher(&fakeMappingStore{})

	cases := []struct {
		description string
		category    string
		want        models.Priority
	}{
		// keyword in the description forces high, case-insensitive
		{"URGENT water leak near school", "misc", models.PriorityHigh},
		{"this is an Emergency", "misc", models.PriorityHigh},
		// keyword matching is substring-based
		{"dangerous intersection", "misc", models.PriorityHigh},
		// high-priority category, exact and embedded
		{"tap dry since monday", "water supply", models.PriorityHigh},
		{"no power", "Electricity - Sector 9", models.PriorityHigh},
		// medium category
		{"lamp broken", "streetlight", models.PriorityMedium},
		{"deep pothole on main road", "pothole", models.PriorityMedium},
		// everything else
		{"loud music at night", "noise", models.PriorityLow},
		{"", "", models.PriorityLow},
	}

	for _, tc := range cases {
		c := models.Complaint{Description: tc.description, Category: tc.category}
		if got := s.priorityFor(c); got != tc.want {
			t.Errorf("priorityFor(%q, %q) = %q; want %q", tc.description, tc.category, got, tc.want)
		}
	}
}

func TestSLADeadline(t *testing.T) {
	s := newTestEnricher(&fakeMappingStore{})
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		priority   models.Priority
		department string
		wantHours  int
	}{
		{models.PriorityHigh, "Sanitation", 24},
		{models.PriorityMedium, "Sanitation", 48},
		{models.PriorityLow, "Sanitation", 72},
		// urgent departments shave hours, floored at the minimum
		{models.PriorityHigh, "Water Board", 12},
		{models.PriorityMedium, "Electricity Dept", 36},
		{models.PriorityLow, "Fire Services", 60},
	}

	for _, tc := range cases {
		got := s.slaDeadline(created, tc.priority, tc.department)
		want := created.Add(time.Duration(tc.wantHours) * time.Hour)
		if !got.Equal(want) {
			t.Errorf("slaDeadline(%q, %q) = %v; want created+%dh", tc.priority, tc.department, got, tc.wantHours)
		}
	}
}

func TestProcessingStatusMapping(t *testing.T) {
	s := newTestEnricher(&fakeMappingStore{})

	cases := []struct {
		status    models.ComplaintStatus
		isDefault bool
		want      models.ProcessingStatus
	}{
		{models.StatusResolved, false, models.ProcessingResolved},
		{models.StatusClosed, false, models.ProcessingResolved},
		{models.StatusInProgress, false, models.ProcessingInProgress},
		{models.StatusEscalated, false, models.ProcessingEscalated},
		{models.StatusAssigned, false, models.ProcessingAssigned},
		// pending splits by routing outcome
		{models.StatusPending, true, models.ProcessingPending},
		{models.StatusPending, false, models.ProcessingAssigned},
	}

	for _, tc := range cases {
		if got := s.processingStatusFor(tc.status, tc.isDefault); got != tc.want {
			t.Errorf("processingStatusFor(%q, %v) = %q; want %q", tc.status, tc.isDefault, got, tc.want)
		}
	}
}

func TestEnrichAt_Deterministic(t *testing.T) {
	store := &fakeMappingStore{
		exact: map[string]*models.DepartmentMapping{
			"garbage|pune": {Department: "Sanitation", HigherAuthority: "Commissioner", City: "pune"},
		},
	}
	s := newTestEnricher(store)

	c := models.Complaint{
		ComplaintID: 7,
		Category:    "garbage",
		City:        "pune",
		Description: "overflowing bins",
		Status:      models.StatusPending,
		CreatedAt:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	first := s.EnrichAt(context.Background(), c, now)
	second := s.EnrichAt(context.Background(), c, now)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same complaint, same instant, different output:\n%+v\n%+v", first, second)
	}
}

func TestEnrichAt_BreachStates(t *testing.T) {
	s := newTestEnricher(&fakeMappingStore{})
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		createdAt time.Time
		status    models.ComplaintStatus
		want      models.BreachState
	}{
		// low priority default route: 72h SLA
		{"fresh", now.Add(-1 * time.Hour), models.StatusPending, models.BreachOK},
		{"inside warning window", now.Add(-60 * time.Hour), models.StatusPending, models.BreachWarning},
		{"past deadline", now.Add(-96 * time.Hour), models.StatusPending, models.BreachBreached},
		// resolved is never breached, deadline long gone or not
		{"resolved late", now.Add(-96 * time.Hour), models.StatusResolved, models.BreachOK},
		{"closed late", now.Add(-96 * time.Hour), models.StatusClosed, models.BreachOK},
	}

	for _, tc := range cases {
		c := models.Complaint{
			ComplaintID: 1,
			Category:    "misc",
			City:        "pune",
			Status:      tc.status,
			CreatedAt:   tc.createdAt,
		}
		got := s.EnrichAt(context.Background(), c, now)
		if got.BreachState != tc.want {
			t.Errorf("%s: breach state = %q; want %q", tc.name, got.BreachState, tc.want)
		}
	}
}

func TestEnrichAllAt_SharedInstant(t *testing.T) {
	s := newTestEnricher(&fakeMappingStore{})
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	created := now.Add(-30 * time.Hour)

	complaints := []models.Complaint{
		{ComplaintID: 1, Category: "misc", City: "pune", CreatedAt: created},
		{ComplaintID: 2, Category: "misc", City: "pune", CreatedAt: created},
	}

	enriched := s.EnrichAllAt(context.Background(), complaints, now)
	if len(enriched) != 2 {
		t.Fatalf("enriched = %d records; want 2", len(enriched))
	}
	if enriched[0].DaysSinceCreated != enriched[1].DaysSinceCreated {
		t.Fatalf("batch disagrees about age: %d vs %d",
			enriched[0].DaysSinceCreated, enriched[1].DaysSinceCreated)
	}
	if enriched[0].DaysSinceCreated != 1 {
		t.Fatalf("days since created = %d; want 1", enriched[0].DaysSinceCreated)
	}
}

func TestEnrichAllAt_EmptyBatch(t *testing.T) {
	s := newTestEnricher(&fakeMappingStore{})
	got := s.EnrichAllAt(context.Background(), nil, time.Now().UTC())
	if got == nil || len(got) != 0 {
		t.Fatalf("empty batch enriched = %v; want empty non-nil slice", got)
	}
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		createdAt time.Time
		want      int
	}{
		{now.Add(time.Hour), 0}, // future timestamps clamp to zero
		{now, 0},
		{now.Add(-25 * time.Hour), 1},
		{now.Add(-47 * time.Hour), 1},
		{now.Add(-49 * time.Hour), 2},
	}
	for _, tc := range cases {
		if got := daysSince(tc.createdAt, now); got != tc.want {
			t.Errorf("daysSince(%v) = %d; want %d", tc.createdAt, got, tc.want)
		}
	}
}

func TestFallbackRecord(t *testing.T) {
	s := newTestEnricher(&fakeMappingStore{})
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	c := models.Complaint{
		ComplaintID: 9,
		Category:    "garbage",
		City:        "pune",
		Pincode:     sql.NullString{String: "411001", Valid: true},
		CreatedAt:   now.Add(-time.Hour),
	}

	got := s.fallback(c, now)

	if !got.Mapping.IsDefault {
		t.Fatalf("fallback mapping = %+v; want default", got.Mapping)
	}
	if got.Priority != models.PriorityLow {
		t.Fatalf("fallback priority = %q; want low", got.Priority)
	}
	if got.ProcessingStatus != models.ProcessingPending {
		t.Fatalf("fallback processing status = %q; want pending", got.ProcessingStatus)
	}
	if got.ComplaintID != 9 {
		t.Fatalf("fallback lost the complaint: %+v", got.Complaint)
	}
}
