package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"civicroute/models"
	"civicroute/repository"
	"civicroute/service"
)

// ---------- fakes ----------

type fakeAdminStore struct {
	mappings map[int64]*models.DepartmentMapping
	nextID   int64
	listErr  error
	deleted  []int64
}

func (f *fakeAdminStore) List(ctx context.Context) ([]models.DepartmentMapping, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.DepartmentMapping, 0, len(f.mappings))
	for _, m := range f.mappings {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeAdminStore) GetByID(ctx context.Context, mappingID int64) (*models.DepartmentMapping, error) {
	m, ok := f.mappings[mappingID]
	if !ok {
		return nil, fmt.Errorf("mapping %d: %w", mappingID, repository.ErrNotFound)
	}
	out := *m
	return &out, nil
}

func (f *fakeAdminStore) Create(ctx context.Context, mapping *models.DepartmentMapping) error {
	f.nextID++
	mapping.MappingID = f.nextID
	if f.mappings == nil {
		f.mappings = make(map[int64]*models.DepartmentMapping)
	}
	stored := *mapping
	f.mappings[mapping.MappingID] = &stored
	return nil
}

func (f *fakeAdminStore) Update(ctx context.Context, mapping *models.DepartmentMapping) error {
	if _, ok := f.mappings[mapping.MappingID]; !ok {
		return fmt.Errorf("mapping %d: %w", mapping.MappingID, repository.ErrNotFound)
	}
	stored := *mapping
	f.mappings[mapping.MappingID] = &stored
	return nil
}

func (f *fakeAdminStore) Delete(ctx context.Context, mappingID int64) error {
	if _, ok := f.mappings[mappingID]; !ok {
		return fmt.Errorf("mapping %d: %w", mappingID, repository.ErrNotFound)
	}
	delete(f.mappings, mappingID)
	f.deleted = append(f.deleted, mappingID)
	return nil
}

type fakeInvalidator struct {
	pairs   [][2]string
	flushed bool
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, category, city string) {
	f.pairs = append(f.pairs, [2]string{category, city})
}

func (f *fakeInvalidator) Flush(ctx context.Context) { f.flushed = true }

type fakeSLATrigger struct {
	result service.ScanResult
	err    error
}

func (f *fakeSLATrigger) ScanOnce(ctx context.Context) (service.ScanResult, error) {
	return f.result, f.err
}

func seededAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		nextID: 5,
		mappings: map[int64]*models.DepartmentMapping{
			5: {MappingID: 5, Category: "garbage", City: "pune", Department: "Sanitation", Status: "active"},
		},
	}
}

// ---------- CreateMapping ----------

func TestCreateMapping_Created(t *testing.T) {
	store := &fakeAdminStore{}
	cache := &fakeInvalidator{}
	h := NewAdminHandler(store, cache, &fakeSLATrigger{})

	body := `{"category":"water supply","city":"nagpur","department":"Water Board","higher_authority":"Chief Engineer","status":"active","pincode":"440001"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/mappings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateMapping(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201: %s", rec.Code, rec.Body.String())
	}
	var got models.DepartmentMapping
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.MappingID == 0 {
		t.Errorf("mapping id not assigned")
	}
	if !got.Pincode.Valid || got.Pincode.String != "440001" {
		t.Errorf("pincode = %+v; want 440001", got.Pincode)
	}
	if len(cache.pairs) != 1 || cache.pairs[0] != [2]string{"water supply", "nagpur"} {
		t.Errorf("invalidations = %v; want the new rule's keys", cache.pairs)
	}
}

func TestCreateMapping_Validation(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, nil, &fakeSLATrigger{})

	cases := []struct {
		name string
		body string
	}{
		{"missing department", `{"category":"garbage","city":"pune"}`},
		{"category too short", `{"category":"x","city":"pune","department":"Sanitation"}`},
		{"bad pincode", `{"category":"garbage","city":"pune","department":"Sanitation","pincode":"44AB01"}`},
		{"bad status", `{"category":"garbage","city":"pune","department":"Sanitation","status":"paused"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/mappings", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		h.CreateMapping(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d; want 400", tc.name, rec.Code)
		}
	}
}

func TestCreateMapping_BadJSON(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, nil, &fakeSLATrigger{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/mappings", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.CreateMapping(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

// ---------- UpdateMapping ----------

func TestUpdateMapping_InvalidatesOldAndNewKeys(t *testing.T) {
	store := seededAdminStore()
	cache := &fakeInvalidator{}
	h := NewAdminHandler(store, cache, &fakeSLATrigger{})

	body := `{"category":"garbage","city":"nagpur","department":"Solid Waste Management"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/mappings/5", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": "5"})
	rec := httptest.NewRecorder()
	h.UpdateMapping(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	want := [][2]string{{"garbage", "pune"}, {"garbage", "nagpur"}}
	if len(cache.pairs) != 2 || cache.pairs[0] != want[0] || cache.pairs[1] != want[1] {
		t.Errorf("invalidations = %v; want old key then new key", cache.pairs)
	}
	updated := store.mappings[5]
	if updated.City != "nagpur" || updated.Department != "Solid Waste Management" {
		t.Errorf("stored mapping = %+v; want the updated fields", updated)
	}
	// An empty status in the payload keeps the existing one.
	if updated.Status != "active" {
		t.Errorf("status = %q; want active preserved", updated.Status)
	}
}

func TestUpdateMapping_NotFound(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, nil, &fakeSLATrigger{})

	body := `{"category":"garbage","city":"nagpur","department":"Sanitation"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/mappings/99", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rec := httptest.NewRecorder()
	h.UpdateMapping(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

// ---------- DeleteMapping ----------

func TestDeleteMapping_OK(t *testing.T) {
	store := seededAdminStore()
	cache := &fakeInvalidator{}
	h := NewAdminHandler(store, cache, &fakeSLATrigger{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/mappings/5", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "5"})
	rec := httptest.NewRecorder()
	h.DeleteMapping(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 5 {
		t.Errorf("deleted = %v; want [5]", store.deleted)
	}
	if len(cache.pairs) != 1 || cache.pairs[0] != [2]string{"garbage", "pune"} {
		t.Errorf("invalidations = %v; want the deleted rule's keys", cache.pairs)
	}
}

// ---------- ListMappings / GetMapping ----------

func TestListMappings_OK(t *testing.T) {
	h := NewAdminHandler(seededAdminStore(), nil, &fakeSLATrigger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/mappings", nil)
	rec := httptest.NewRecorder()
	h.ListMappings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var got struct {
		Mappings []models.DepartmentMapping `json:"mappings"`
		Count    int                        `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Count != 1 || len(got.Mappings) != 1 {
		t.Errorf("count = %d, mappings = %d; want 1/1", got.Count, len(got.Mappings))
	}
}

func TestGetMapping_NotFound(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, nil, &fakeSLATrigger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/mappings/99", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rec := httptest.NewRecorder()
	h.GetMapping(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

// ---------- FlushMappingCache ----------

func TestFlushMappingCache_OK(t *testing.T) {
	cache := &fakeInvalidator{}
	h := NewAdminHandler(&fakeAdminStore{}, cache, &fakeSLATrigger{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/flush", nil)
	rec := httptest.NewRecorder()
	h.FlushMappingCache(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if !cache.flushed {
		t.Errorf("cache not flushed")
	}
}

func TestFlushMappingCache_NoCache(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, nil, &fakeSLATrigger{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/flush", nil)
	rec := httptest.NewRecorder()
	h.FlushMappingCache(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
}

// ---------- TriggerSLAScan ----------

func TestTriggerSLAScan_OK(t *testing.T) {
	trigger := &fakeSLATrigger{result: service.ScanResult{Scanned: 10, Breached: 2, NewlyBreached: 1, Warnings: 3}}
	h := NewAdminHandler(&fakeAdminStore{}, nil, trigger)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sla/scan", nil)
	rec := httptest.NewRecorder()
	h.TriggerSLAScan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var got service.ScanResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got != trigger.result {
		t.Errorf("result = %+v; want %+v", got, trigger.result)
	}
}

func TestTriggerSLAScan_Failure(t *testing.T) {
	h := NewAdminHandler(&fakeAdminStore{}, nil, &fakeSLATrigger{err: errors.New("lock lost")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sla/scan", nil)
	rec := httptest.NewRecorder()
	h.TriggerSLAScan(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
}
