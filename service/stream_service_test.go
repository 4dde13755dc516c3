package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicroute/models"
)

// ---------- fakes ----------

type fakeFetcher struct {
	mu    sync.Mutex
	fn    func(filter models.ComplaintFilter) ([]models.EnrichedComplaint, error)
	calls int
}

func (f *fakeFetcher) FetchEnriched(ctx context.Context, filter models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fn != nil {
		return f.fn(filter)
	}
	return nil, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func enrichedRow(id int64, status models.ComplaintStatus) models.EnrichedComplaint {
	return models.EnrichedComplaint{
		Complaint: models.Complaint{
			ComplaintID: id,
			Category:    "garbage",
			City:        "Pune",
			Status:      status,
		},
		ProcessingStatus: models.ProcessingPending,
		BreachState:      models.BreachOK,
	}
}

func waitSnapshot(t *testing.T, ch <-chan []models.EnrichedComplaint) []models.EnrichedComplaint {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return nil
	}
}

// ---------- Subscribe ----------

func TestSubscribe_DeliversInitialSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{
		fn: func(models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
			return []models.EnrichedComplaint{enrichedRow(1, models.StatusPending), enrichedRow(2, models.StatusAssigned)}, nil
		},
	}
	hub := NewStreamService(fetcher, time.Hour, zerolog.Nop())
	defer hub.Close()

	ch := make(chan []models.EnrichedComplaint, 4)
	sub := hub.Subscribe(models.ComplaintFilter{}, func(snap []models.EnrichedComplaint) { ch <- snap })
	if sub == nil {
		t.Fatalf("Subscribe returned nil on an open hub")
	}
	defer sub.Unsubscribe()

	// The first snapshot must arrive without waiting for a tick.
	snap := waitSnapshot(t, ch)
	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d; want 2", len(snap))
	}
	if snap[0].ComplaintID != 1 || snap[1].ComplaintID != 2 {
		t.Fatalf("snapshot ids = %d, %d; want 1, 2", snap[0].ComplaintID, snap[1].ComplaintID)
	}
}

func TestSubscribe_SkipsUnchangedSnapshots(t *testing.T) {
	fetcher := &fakeFetcher{
		fn: func(models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
			return []models.EnrichedComplaint{enrichedRow(1, models.StatusPending)}, nil
		},
	}
	hub := NewStreamService(fetcher, 10*time.Millisecond, zerolog.Nop())
	defer hub.Close()

	var deliveries int32
	sub := hub.Subscribe(models.ComplaintFilter{}, func([]models.EnrichedComplaint) {
		atomic.AddInt32(&deliveries, 1)
	})
	defer sub.Unsubscribe()

	// Let several poll ticks elapse over identical data.
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fetcher.callCount() < 5 {
		t.Fatalf("poll loop stalled: only %d fetches", fetcher.callCount())
	}
	if got := atomic.LoadInt32(&deliveries); got != 1 {
		t.Fatalf("deliveries = %d; want 1 for an unchanged snapshot", got)
	}
}

func TestSubscribe_DeliversOnStatusChange(t *testing.T) {
	var flipped atomic.Bool
	fetcher := &fakeFetcher{
		fn: func(models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
			status := models.StatusPending
			if flipped.Load() {
				status = models.StatusResolved
			}
			return []models.EnrichedComplaint{enrichedRow(1, status)}, nil
		},
	}
	hub := NewStreamService(fetcher, 10*time.Millisecond, zerolog.Nop())
	defer hub.Close()

	ch := make(chan []models.EnrichedComplaint, 4)
	sub := hub.Subscribe(models.ComplaintFilter{}, func(snap []models.EnrichedComplaint) { ch <- snap })
	defer sub.Unsubscribe()

	first := waitSnapshot(t, ch)
	if first[0].Status != models.StatusPending {
		t.Fatalf("first snapshot status = %q; want pending", first[0].Status)
	}

	flipped.Store(true)
	second := waitSnapshot(t, ch)
	if second[0].Status != models.StatusResolved {
		t.Fatalf("second snapshot status = %q; want resolved", second[0].Status)
	}
}

func TestSubscribe_FetchErrorYieldsEmptySnapshot(t *testing.T) {
	fetcher := &fakeFetcher{
		fn: func(models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
			return nil, errors.New("db gone")
		},
	}
	hub := NewStreamService(fetcher, time.Hour, zerolog.Nop())
	defer hub.Close()

	ch := make(chan []models.EnrichedComplaint, 4)
	sub := hub.Subscribe(models.ComplaintFilter{}, func(snap []models.EnrichedComplaint) { ch <- snap })
	defer sub.Unsubscribe()

	snap := waitSnapshot(t, ch)
	if snap == nil {
		t.Fatalf("snapshot is nil; want empty slice on fetch failure")
	}
	if len(snap) != 0 {
		t.Fatalf("snapshot length = %d; want 0", len(snap))
	}
}

func TestSubscribe_CallbackPanicDoesNotKillFeed(t *testing.T) {
	var flipped atomic.Bool
	fetcher := &fakeFetcher{
		fn: func(models.ComplaintFilter) ([]models.EnrichedComplaint, error) {
			status := models.StatusPending
			if flipped.Load() {
				status = models.StatusResolved
			}
			return []models.EnrichedComplaint{enrichedRow(1, status)}, nil
		},
	}
	hub := NewStreamService(fetcher, 10*time.Millisecond, zerolog.Nop())
	defer hub.Close()

	ch := make(chan []models.EnrichedComplaint, 4)
	panicked := make(chan struct{})
	var first atomic.Bool
	sub := hub.Subscribe(models.ComplaintFilter{}, func(snap []models.EnrichedComplaint) {
		if first.CompareAndSwap(false, true) {
			close(panicked)
			panic("subscriber bug")
		}
		ch <- snap
	})
	defer sub.Unsubscribe()

	// Flip the data only after the first delivery has blown up, so the next
	// changed snapshot can only come from a poll loop that survived it.
	select {
	case <-panicked:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the panicking delivery")
	}
	flipped.Store(true)

	snap := waitSnapshot(t, ch)
	if snap[0].Status != models.StatusResolved {
		t.Fatalf("post-panic snapshot status = %q; want resolved", snap[0].Status)
	}
}

// ---------- Unsubscribe / Close ----------

func subscriberCount(hub *StreamService) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	fetcher := &fakeFetcher{}
	hub := NewStreamService(fetcher, time.Hour, zerolog.Nop())
	defer hub.Close()

	ch := make(chan []models.EnrichedComplaint, 4)
	sub := hub.Subscribe(models.ComplaintFilter{}, func(snap []models.EnrichedComplaint) { ch <- snap })
	waitSnapshot(t, ch)

	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic or double-close

	if n := subscriberCount(hub); n != 0 {
		t.Fatalf("subscriber count = %d; want 0 after unsubscribe", n)
	}
}

func TestSubscribe_AfterCloseReturnsNil(t *testing.T) {
	hub := NewStreamService(&fakeFetcher{}, time.Hour, zerolog.Nop())
	hub.Close()

	if sub := hub.Subscribe(models.ComplaintFilter{}, func([]models.EnrichedComplaint) {}); sub != nil {
		t.Fatalf("Subscribe after Close = %v; want nil", sub)
	}
}

func TestClose_RemovesAllSubscriptions(t *testing.T) {
	fetcher := &fakeFetcher{}
	hub := NewStreamService(fetcher, time.Hour, zerolog.Nop())

	for i := 0; i < 3; i++ {
		hub.Subscribe(models.ComplaintFilter{}, func([]models.EnrichedComplaint) {})
	}
	hub.Close()

	if n := subscriberCount(hub); n != 0 {
		t.Fatalf("subscriber count = %d; want 0 after Close", n)
	}
}
