package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"civicroute/models"
)

// Event is the channel-independent payload a sink delivers. Sinks receive a
// value, not the stored record, so delivery cannot mutate queue state.
type Event struct {
	Kind            models.NotificationKind `json:"kind"`
	ComplaintID     int64                   `json:"complaint_id"`
	ComplaintNumber string                  `json:"complaint_number"`
	Department      string                  `json:"department"`
	Priority        models.Priority         `json:"priority"`
	City            string                  `json:"city"`
	Category        string                  `json:"category"`
	Message         string                  `json:"message"`
	OccurredAt      time.Time               `json:"occurred_at"`
}

// Sink is the interface for notification delivery channels
type Sink interface {
	Notify(ctx context.Context, event Event) error
	Channel() models.NotificationChannel
	Validate(event Event) error
}

// LogSink writes notifications to the structured log. It never fails, which
// makes it the safe default channel.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log-backed sink
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Channel returns the log channel type
func (s *LogSink) Channel() models.NotificationChannel {
	return models.ChannelLog
}

// Validate validates a log event
func (s *LogSink) Validate(event Event) error {
	if event.Message == "" {
		return ErrInvalidEvent
	}
	return nil
}

// Notify emits the event as a structured log line
func (s *LogSink) Notify(ctx context.Context, event Event) error {
	if err := s.Validate(event); err != nil {
		return err
	}
	s.logger.Warn().
		Str("kind", string(event.Kind)).
		Int64("complaint_id", event.ComplaintID).
		Str("complaint_number", event.ComplaintNumber).
		Str("department", event.Department).
		Str("priority", string(event.Priority)).
		Str("city", event.City).
		Str("category", event.Category).
		Time("occurred_at", event.OccurredAt).
		Msg(event.Message)
	return nil
}

const maxWebhookRetries = 3

// WebhookSink POSTs events as JSON to a configured URL. With no URL it is a
// no-op, so the sink can always be registered.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for the given URL
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel returns the webhook channel type
func (s *WebhookSink) Channel() models.NotificationChannel {
	return models.ChannelWebhook
}

// Validate validates a webhook event
func (s *WebhookSink) Validate(event Event) error {
	if event.ComplaintID == 0 && event.ComplaintNumber == "" {
		return ErrInvalidEvent
	}
	return nil
}

// Notify delivers the event with a short in-call retry loop. Longer-horizon
// retries are the queue's job, not the sink's.
func (s *WebhookSink) Notify(ctx context.Context, event Event) error {
	if s.url == "" {
		return nil
	}
	if err := s.Validate(event); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	var lastErr error
	for attempt := 0; attempt < maxWebhookRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return lastErr
}

// Errors
var (
	ErrInvalidEvent       = &NotificationError{Message: "invalid notification event"}
	ErrUnsupportedChannel = &NotificationError{Message: "unsupported channel"}
	ErrMaxRetriesExceeded = &NotificationError{Message: "max retries exceeded"}
)

// NotificationError represents a notification delivery error
type NotificationError struct {
	Message string
	Err     error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
