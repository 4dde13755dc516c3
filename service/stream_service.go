package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"civicroute/metrics"
	"civicroute/models"
)

// StreamCallback receives a fully-enriched, internally consistent snapshot.
// It is never invoked with partially-enriched records; a failed fetch shows
// up as an empty snapshot rather than an error.
type StreamCallback func(snapshot []models.EnrichedComplaint)

// EnrichedFetcher is the read surface a subscription polls
type EnrichedFetcher interface {
	FetchEnriched(ctx context.Context, filter models.ComplaintFilter) ([]models.EnrichedComplaint, error)
}

// Subscription is a live enriched-complaint feed. Unsubscribe stops further
// callbacks immediately and is safe to call any number of times.
type Subscription struct {
	id       int64
	filter   models.ComplaintFilter
	callback StreamCallback
	stop     chan struct{}
	once     sync.Once
	hub      *StreamService
}

// Unsubscribe tears the subscription down. Repeated calls are a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		s.hub.remove(s.id)
		metrics.StreamSubscriptions.Dec()
	})
}

// StreamService multiplexes polling subscriptions over the enriched read
// path. Every subscription re-runs the same enrichment pipeline the one-shot
// reads use, so streaming consumers never see different departments or
// priorities than a plain fetch would return.
type StreamService struct {
	fetcher   EnrichedFetcher
	interval  time.Duration
	fetchWait time.Duration
	logger    zerolog.Logger

	mu     sync.Mutex
	subs   map[int64]*Subscription
	nextID int64
	closed bool
}

// NewStreamService creates a new subscription hub
func NewStreamService(fetcher EnrichedFetcher, interval time.Duration, logger zerolog.Logger) *StreamService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StreamService{
		fetcher:   fetcher,
		interval:  interval,
		fetchWait: 15 * time.Second,
		logger:    logger,
		subs:      make(map[int64]*Subscription),
	}
}

// Subscribe registers a callback for the filtered enriched feed. The first
// snapshot is delivered immediately; afterwards one arrives per interval
// whenever the underlying data changed. Returns nil after Close.
func (s *StreamService) Subscribe(filter models.ComplaintFilter, callback StreamCallback) *Subscription {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.nextID++
	sub := &Subscription{
		id:       s.nextID,
		filter:   filter,
		callback: callback,
		stop:     make(chan struct{}),
		hub:      s,
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	metrics.StreamSubscriptions.Inc()
	go s.run(sub)
	return sub
}

// Close unsubscribes everything. Used on shutdown.
func (s *StreamService) Close() {
	s.mu.Lock()
	s.closed = true
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (s *StreamService) remove(id int64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// run polls on behalf of one subscription until it stops. Snapshots that are
// byte-for-byte equivalent to the previous emission are skipped; breach-state
// flips count as changes even when no row changed.
func (s *StreamService) run(sub *Subscription) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	lastSig := "\x00never"
	emit := func() {
		snapshot := s.fetch(sub.filter)
		sig := snapshotSignature(snapshot)
		if sig == lastSig {
			return
		}
		lastSig = sig
		s.deliver(sub, snapshot)
	}

	emit()
	for {
		select {
		case <-sub.stop:
			return
		case <-ticker.C:
			emit()
		}
	}
}

// fetch loads one snapshot, degrading to empty on any error
func (s *StreamService) fetch(filter models.ComplaintFilter) []models.EnrichedComplaint {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchWait)
	defer cancel()

	snapshot, err := s.fetcher.FetchEnriched(ctx, filter)
	if err != nil {
		s.logger.Warn().Err(err).Msg("[stream] fetch failed, emitting empty snapshot")
		return []models.EnrichedComplaint{}
	}
	if snapshot == nil {
		snapshot = []models.EnrichedComplaint{}
	}
	return snapshot
}

// deliver invokes the callback, shielding the poll loop from panics inside
// subscriber code. A panicking callback would otherwise kill its feed silently.
func (s *StreamService) deliver(sub *Subscription, snapshot []models.EnrichedComplaint) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Int64("subscription_id", sub.id).Msg("[stream] callback panicked")
		}
	}()
	select {
	case <-sub.stop:
		return
	default:
	}
	sub.callback(snapshot)
}

// snapshotSignature identifies the visible state of a snapshot: which
// complaints it holds and the fields a consumer would react to.
func snapshotSignature(snapshot []models.EnrichedComplaint) string {
	var b strings.Builder
	for _, e := range snapshot {
		fmt.Fprintf(&b, "%d:%s:%s:%s:%t;", e.ComplaintID, e.Status, e.ProcessingStatus, e.BreachState, e.Processed)
	}
	return b.String()
}
