package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicroute/models"
	"civicroute/service"
)

// syncRecorder is a concurrency-safe ResponseWriter: the SSE handler writes
// from its own goroutine while the test polls the body.
type syncRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	status int
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{header: make(http.Header)}
}

func (r *syncRecorder) Header() http.Header { return r.header }

func (r *syncRecorder) WriteHeader(code int) {
	r.mu.Lock()
	r.status = code
	r.mu.Unlock()
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *syncRecorder) Flush() {}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func (r *syncRecorder) code() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

type stubFetcher struct {
	rows []models.EnrichedComplaint
}

func (s *stubFetcher) FetchEnriched(ctx context.Context, filter models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
	return s.rows, nil
}

func TestStreamComplaints_EmitsSnapshotEvent(t *testing.T) {
	hub := service.NewStreamService(&stubFetcher{rows: []models.EnrichedComplaint{*sampleEnriched(42)}}, time.Hour, zerolog.Nop())
	defer hub.Close()
	h := NewStreamHandler(hub, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/complaints/stream", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := newSyncRecorder()

	done := make(chan struct{})
	go func() {
		h.StreamComplaints(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(rec.body(), "event: snapshot") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler did not return after client disconnect")
	}

	if rec.code() != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.code())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q; want text/event-stream", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("cache control = %q; want no-cache", cc)
	}

	body := rec.body()
	if !strings.Contains(body, "event: snapshot\ndata: ") {
		t.Fatalf("body missing snapshot event:\n%s", body)
	}
	if !strings.Contains(body, `"complaint_number":"CMP-20260115-0042"`) {
		t.Errorf("snapshot payload missing the complaint:\n%s", body)
	}
}

func TestStreamComplaints_BadFilter(t *testing.T) {
	hub := service.NewStreamService(&stubFetcher{}, time.Hour, zerolog.Nop())
	defer hub.Close()
	h := NewStreamHandler(hub, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/complaints/stream?priority=zzz", nil)
	rec := httptest.NewRecorder()
	h.StreamComplaints(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestStreamComplaints_ClosedHub(t *testing.T) {
	hub := service.NewStreamService(&stubFetcher{}, time.Hour, zerolog.Nop())
	hub.Close()
	h := NewStreamHandler(hub, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/complaints/stream", nil)
	rec := httptest.NewRecorder()

	// Must return instead of hanging on a dead subscription.
	h.StreamComplaints(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want the SSE preamble already written", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "event:") {
		t.Errorf("unexpected events from a closed hub:\n%s", rec.Body.String())
	}
}
