package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"civicroute/models"
	"civicroute/repository"
)

type fakePublicReader struct {
	fn func(ctx context.Context, complaintNumber string) (*models.EnrichedComplaint, error)
}

func (f *fakePublicReader) GetEnrichedByNumber(ctx context.Context, complaintNumber string) (*models.EnrichedComplaint, error) {
	if f.fn != nil {
		return f.fn(ctx, complaintNumber)
	}
	return &models.EnrichedComplaint{}, nil
}

func TestTrackComplaint_WhitelistsFields(t *testing.T) {
	reader := &fakePublicReader{
		fn: func(ctx context.Context, complaintNumber string) (*models.EnrichedComplaint, error) {
			e := sampleEnriched(42)
			e.SubmitterName = sql.NullString{String: "A Citizen", Valid: true}
			e.SubmitterPhone = sql.NullString{String: "9876543210", Valid: true}
			e.Latitude = sql.NullFloat64{Float64: 18.52, Valid: true}
			e.Mapping.Department = "Road Maintenance"
			e.SLADeadlineAt = time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)
			return e, nil
		},
	}
	h := NewPublicHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/complaints/by-number/CMP-20260115-0042", nil)
	req = mux.SetURLVars(req, map[string]string{"complaint_number": "CMP-20260115-0042"})
	rec := httptest.NewRecorder()
	h.TrackComplaint(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if body["complaint_number"] != "CMP-20260115-0042" {
		t.Errorf("complaint_number = %v", body["complaint_number"])
	}
	if body["department"] != "Road Maintenance" {
		t.Errorf("department = %v", body["department"])
	}
	if body["sla_deadline_at"] != "2026-01-17T10:00:00Z" {
		t.Errorf("sla_deadline_at = %v", body["sla_deadline_at"])
	}
	// Internal IDs, submitter PII, and coordinates must never leak.
	for _, key := range []string{"complaint_id", "submitter_name", "submitter_phone", "latitude", "longitude", "full_address"} {
		if _, leaked := body[key]; leaked {
			t.Errorf("field %q leaked into the public response", key)
		}
	}
}

func TestTrackComplaint_NotFound(t *testing.T) {
	reader := &fakePublicReader{
		fn: func(ctx context.Context, complaintNumber string) (*models.EnrichedComplaint, error) {
			return nil, repository.ErrNotFound
		},
	}
	h := NewPublicHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/complaints/by-number/CMP-NOPE", nil)
	req = mux.SetURLVars(req, map[string]string{"complaint_number": "CMP-NOPE"})
	rec := httptest.NewRecorder()
	h.TrackComplaint(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

func TestTrackComplaint_MissingNumber(t *testing.T) {
	h := NewPublicHandler(&fakePublicReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/complaints/by-number/", nil)
	rec := httptest.NewRecorder()
	h.TrackComplaint(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}
