package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"civicroute/metrics"
	"civicroute/models"
	"civicroute/notification"
)

// NotificationQueueStore is the persistence surface of the delivery queue
type NotificationQueueStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetPending(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	ScheduleRetry(ctx context.Context, id int64, nextRetryAt time.Time, errorMessage string) error
}

// NotificationConfig is an alias for models.NotificationConfig
type NotificationConfig = models.NotificationConfig

// NotificationService queues and delivers best-effort notifications. Queueing
// never blocks on delivery; the background worker drains the queue through
// the registered sinks with capped exponential backoff.
type NotificationService struct {
	repo   NotificationQueueStore
	sinks  map[models.NotificationChannel]notification.Sink
	config *models.NotificationConfig
	logger zerolog.Logger
}

// NewNotificationService creates a notification service over the given sinks.
// One queue record is written per sink for every queued event.
func NewNotificationService(repo NotificationQueueStore, sinks []notification.Sink, config *models.NotificationConfig, logger zerolog.Logger) *NotificationService {
	if config == nil {
		config = models.DefaultNotificationConfig()
	}

	byChannel := make(map[models.NotificationChannel]notification.Sink, len(sinks))
	for _, sink := range sinks {
		byChannel[sink.Channel()] = sink
	}

	return &NotificationService{
		repo:   repo,
		sinks:  byChannel,
		config: config,
		logger: logger,
	}
}

// QueueForComplaint records one pending notification per registered sink for
// an enriched complaint. Failures are reported but callers treat them as
// best-effort: a lost notification never rolls back the event that caused it.
func (s *NotificationService) QueueForComplaint(ctx context.Context, kind models.NotificationKind, enriched models.EnrichedComplaint, message string) error {
	var firstErr error
	for channel := range s.sinks {
		record := &models.Notification{
			Kind:            kind,
			Channel:         channel,
			ComplaintID:     enriched.ComplaintID,
			ComplaintNumber: enriched.ComplaintNumber,
			Department:      enriched.Mapping.Department,
			Priority:        enriched.Priority,
			City:            enriched.City,
			Category:        enriched.Category,
			Message:         message,
			Status:          models.NotificationStatusPending,
			MaxRetries:      s.config.DefaultMaxRetries,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to queue %s notification: %w", channel, err)
			}
			s.logger.Warn().Err(err).
				Str("kind", string(kind)).
				Str("channel", string(channel)).
				Int64("complaint_id", enriched.ComplaintID).
				Msg("[notify] queue failed")
			continue
		}
		metrics.Notifications.WithLabelValues("queued").Inc()
	}
	return firstErr
}

// GetPending retrieves due notifications for the worker
func (s *NotificationService) GetPending(ctx context.Context, limit int) ([]models.Notification, error) {
	return s.repo.GetPending(ctx, limit)
}

// ProcessNotification attempts one delivery. On failure it schedules a retry
// with exponential backoff until MaxRetries, then marks the record failed.
func (s *NotificationService) ProcessNotification(ctx context.Context, n *models.Notification) error {
	sink, exists := s.sinks[n.Channel]
	if !exists {
		// A record for an unregistered channel can never deliver.
		if err := s.repo.MarkFailed(ctx, n.NotificationID, "unsupported channel: "+string(n.Channel)); err != nil {
			return fmt.Errorf("failed to mark notification failed: %w", err)
		}
		metrics.Notifications.WithLabelValues("failed").Inc()
		return notification.ErrUnsupportedChannel
	}

	event := eventFromRecord(n)
	if err := sink.Validate(event); err != nil {
		if markErr := s.repo.MarkFailed(ctx, n.NotificationID, "validation failed: "+err.Error()); markErr != nil {
			return fmt.Errorf("failed to mark notification failed: %w", markErr)
		}
		metrics.Notifications.WithLabelValues("failed").Inc()
		return err
	}

	if err := sink.Notify(ctx, event); err != nil {
		return s.handleFailure(ctx, n, err.Error())
	}

	if err := s.repo.MarkSent(ctx, n.NotificationID); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	s.logger.Info().
		Int64("notification_id", n.NotificationID).
		Str("kind", string(n.Kind)).
		Str("channel", string(n.Channel)).
		Str("complaint_number", n.ComplaintNumber).
		Msg("[notify] delivered")
	return nil
}

// handleFailure schedules a retry or gives up once the budget is spent
func (s *NotificationService) handleFailure(ctx context.Context, n *models.Notification, errorMessage string) error {
	if n.RetryCount >= n.MaxRetries {
		if err := s.repo.MarkFailed(ctx, n.NotificationID, errorMessage); err != nil {
			return fmt.Errorf("failed to mark notification failed: %w", err)
		}
		metrics.Notifications.WithLabelValues("failed").Inc()
		s.logger.Warn().
			Int64("notification_id", n.NotificationID).
			Int("retry_count", n.RetryCount).
			Str("error", errorMessage).
			Msg("[notify] gave up")
		return fmt.Errorf("%w: %s", notification.ErrMaxRetriesExceeded, errorMessage)
	}

	nextRetryAt := s.calculateNextRetryTime(n.RetryCount)
	if err := s.repo.ScheduleRetry(ctx, n.NotificationID, nextRetryAt, errorMessage); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	metrics.Notifications.WithLabelValues("retried").Inc()
	return fmt.Errorf("notification failed, retry scheduled: %s", errorMessage)
}

// calculateNextRetryTime applies capped exponential backoff:
// delay = min(initialDelay * multiplier^retryCount, maxDelay)
func (s *NotificationService) calculateNextRetryTime(retryCount int) time.Time {
	delaySeconds := s.config.InitialRetryDelay.Seconds() * math.Pow(s.config.BackoffMultiplier, float64(retryCount))
	delay := time.Duration(delaySeconds) * time.Second

	if delay > s.config.MaxRetryDelay {
		delay = s.config.MaxRetryDelay
	}
	return time.Now().Add(delay)
}

func eventFromRecord(n *models.Notification) notification.Event {
	return notification.Event{
		Kind:            n.Kind,
		ComplaintID:     n.ComplaintID,
		ComplaintNumber: n.ComplaintNumber,
		Department:      n.Department,
		Priority:        n.Priority,
		City:            n.City,
		Category:        n.Category,
		Message:         n.Message,
		OccurredAt:      n.CreatedAt,
	}
}
