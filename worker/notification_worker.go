package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"civicroute/models"
	"civicroute/notification"
)

// NotificationProcessor drains the notification queue
type NotificationProcessor interface {
	GetPending(ctx context.Context, limit int) ([]models.Notification, error)
	ProcessNotification(ctx context.Context, n *models.Notification) error
}

// NotificationWorker is a background worker that delivers queued
// notifications asynchronously
type NotificationWorker struct {
	processor NotificationProcessor
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	stopChan  chan struct{}
	running   bool
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(processor NotificationProcessor, interval time.Duration, batchSize int, logger zerolog.Logger) *NotificationWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &NotificationWorker{
		processor: processor,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		stopChan:  make(chan struct{}),
		running:   false,
	}
}

// Start starts the notification worker.
// The worker runs in a separate goroutine and processes notifications periodically.
func (w *NotificationWorker) Start() {
	if w.running {
		w.logger.Warn().Msg("[notify] worker already running")
		return
	}

	w.running = true
	w.logger.Info().Dur("interval", w.interval).Int("batch_size", w.batchSize).Msg("[notify] worker started")

	go w.run()
}

// Stop stops the notification worker
func (w *NotificationWorker) Stop() {
	if !w.running {
		return
	}

	close(w.stopChan)
	w.running = false
	w.logger.Info().Msg("[notify] worker stopped")
}

// run is the main worker loop
func (w *NotificationWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start
	w.processNotifications()

	for {
		select {
		case <-ticker.C:
			w.processNotifications()
		case <-w.stopChan:
			return
		}
	}
}

// processNotifications drains one batch of due notifications. Safe to call
// repeatedly; a delivered record never comes back pending.
func (w *NotificationWorker) processNotifications() {
	startTime := time.Now()
	ctx := context.Background()

	notifications, err := w.processor.GetPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("[notify] failed to load pending notifications")
		return
	}
	if len(notifications) == 0 {
		return
	}

	sentCount := 0
	failedCount := 0
	retryCount := 0

	for i := range notifications {
		n := &notifications[i]
		err := w.processor.ProcessNotification(ctx, n)
		switch {
		case err == nil:
			sentCount++
		case errors.Is(err, notification.ErrMaxRetriesExceeded),
			errors.Is(err, notification.ErrUnsupportedChannel),
			errors.Is(err, notification.ErrInvalidEvent):
			failedCount++
			w.logger.Warn().Err(err).Int64("notification_id", n.NotificationID).Msg("[notify] delivery failed")
		default:
			retryCount++
			w.logger.Debug().Err(err).Int64("notification_id", n.NotificationID).Msg("[notify] retry scheduled")
		}
	}

	w.logger.Info().
		Int("sent", sentCount).
		Int("failed", failedCount).
		Int("retries", retryCount).
		Dur("duration", time.Since(startTime)).
		Msg("[notify] pass complete")
}
