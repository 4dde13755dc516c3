package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"civicroute/metrics"
	"civicroute/models"
	"civicroute/service"
)

// PipelineStore is the complaint surface the pipeline worker needs
type PipelineStore interface {
	ListUnprocessed(ctx context.Context, limit int) ([]models.Complaint, error)
	MarkProcessed(ctx context.Context, complaintID int64) error
}

// AuditStore records the write-once processed_complaints rows
type AuditStore interface {
	Record(ctx context.Context, p *models.ProcessedComplaint) error
}

// PipelineNotifier queues notifications for complaints that need attention
type PipelineNotifier interface {
	QueueForComplaint(ctx context.Context, kind models.NotificationKind, enriched models.EnrichedComplaint, message string) error
}

// PipelineWorker is the background worker that drains unprocessed complaints:
// enrich, write the audit row, set the processed marker, and queue attention
// notifications. Two instances racing over the same complaint is benign; the
// marker set is idempotent and the audit insert is write-once.
type PipelineWorker struct {
	store     PipelineStore
	audit     AuditStore
	enricher  *service.EnrichmentService
	notifier  PipelineNotifier
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	stopChan  chan struct{}
	running   bool
}

// NewPipelineWorker creates a new pipeline worker
func NewPipelineWorker(
	store PipelineStore,
	audit AuditStore,
	enricher *service.EnrichmentService,
	notifier PipelineNotifier,
	interval time.Duration,
	batchSize int,
	logger zerolog.Logger,
) *PipelineWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PipelineWorker{
		store:     store,
		audit:     audit,
		enricher:  enricher,
		notifier:  notifier,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		stopChan:  make(chan struct{}),
		running:   false,
	}
}

// Start starts the pipeline worker.
// The worker runs in a separate goroutine and processes complaints periodically.
func (w *PipelineWorker) Start() {
	if w.running {
		w.logger.Warn().Msg("[pipeline] worker already running")
		return
	}

	w.running = true
	w.logger.Info().Dur("interval", w.interval).Int("batch_size", w.batchSize).Msg("[pipeline] worker started")

	go w.run()
}

// Stop stops the pipeline worker
func (w *PipelineWorker) Stop() {
	if !w.running {
		return
	}

	close(w.stopChan)
	w.running = false
	w.logger.Info().Msg("[pipeline] worker stopped")
}

// run is the main worker loop
func (w *PipelineWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start
	w.processBatch()

	for {
		select {
		case <-ticker.C:
			w.processBatch()
		case <-w.stopChan:
			return
		}
	}
}

// processBatch runs one pipeline pass. Safe to call repeatedly; an already
// processed complaint is never picked up again.
func (w *PipelineWorker) processBatch() {
	startTime := time.Now()
	ctx := context.Background()

	complaints, err := w.store.ListUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("[pipeline] failed to load unprocessed complaints")
		return
	}
	if len(complaints) == 0 {
		return
	}

	enriched := w.enricher.EnrichAll(ctx, complaints)
	now := time.Now().UTC()

	processedCount := 0
	for _, e := range enriched {
		w.recordAudit(ctx, e, now)

		if err := w.store.MarkProcessed(ctx, e.ComplaintID); err != nil {
			w.logger.Warn().Err(err).Int64("complaint_id", e.ComplaintID).Msg("[pipeline] processed marker not set")
			continue
		}
		processedCount++

		w.queueAttention(ctx, e)
	}

	duration := time.Since(startTime)
	metrics.PipelineTickDuration.Observe(duration.Seconds())
	w.logger.Info().
		Int("loaded", len(complaints)).
		Int("processed", processedCount).
		Dur("duration", duration).
		Msg("[pipeline] pass complete")
}

// recordAudit writes the processed_complaints row. Best-effort: a failed
// insert never blocks the processed marker.
func (w *PipelineWorker) recordAudit(ctx context.Context, e models.EnrichedComplaint, now time.Time) {
	record := &models.ProcessedComplaint{
		ComplaintID:     e.ComplaintID,
		ComplaintNumber: e.ComplaintNumber,
		Department:      e.Mapping.Department,
		Priority:        e.Priority,
		IsDefault:       e.Mapping.IsDefault,
		SLADeadlineAt:   e.SLADeadlineAt,
		ProcessedAt:     now,
	}
	if err := w.audit.Record(ctx, record); err != nil {
		w.logger.Warn().Err(err).Int64("complaint_id", e.ComplaintID).Msg("[pipeline] audit row not written")
	}
}

// queueAttention raises notifications for complaints an operator should see:
// high-priority submissions and ones routed to the default department.
func (w *PipelineWorker) queueAttention(ctx context.Context, e models.EnrichedComplaint) {
	if w.notifier == nil {
		return
	}

	if e.Priority == models.PriorityHigh {
		message := fmt.Sprintf("High priority complaint %s (%s, %s) assigned to %s, due %s",
			e.ComplaintNumber, e.Category, e.City,
			e.Mapping.Department, e.SLADeadlineAt.Format(time.RFC3339))
		if err := w.notifier.QueueForComplaint(ctx, models.KindHighPriority, e, message); err != nil {
			w.logger.Warn().Err(err).Int64("complaint_id", e.ComplaintID).Msg("[pipeline] high priority notification not queued")
		}
	}

	if e.Mapping.IsDefault {
		message := fmt.Sprintf("Complaint %s (%s, %s) fell through to %s and needs manual routing",
			e.ComplaintNumber, e.Category, e.City, e.Mapping.Department)
		if err := w.notifier.QueueForComplaint(ctx, models.KindDefaultMapping, e, message); err != nil {
			w.logger.Warn().Err(err).Int64("complaint_id", e.ComplaintID).Msg("[pipeline] default mapping notification not queued")
		}
	}
}
