package models

import (
	"database/sql"
	"time"
)

// NotificationKind says why a notification exists
type NotificationKind string

const (
	KindSLABreach      NotificationKind = "sla_breach"
	KindHighPriority   NotificationKind = "high_priority"
	KindDefaultMapping NotificationKind = "default_mapping"
)

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	ChannelLog     NotificationChannel = "log"
	ChannelWebhook NotificationChannel = "webhook"
)

// NotificationStatus represents the delivery state of a notification record
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is a queued, best-effort delivery record. The pipeline and the
// SLA scanner write these; the notification worker drains them through the
// configured sinks with bounded retries.
type Notification struct {
	NotificationID  int64               `db:"notification_id" json:"notification_id"`
	Kind            NotificationKind    `db:"kind" json:"kind"`
	Channel         NotificationChannel `db:"channel" json:"channel"`
	ComplaintID     int64               `db:"complaint_id" json:"complaint_id"`
	ComplaintNumber string              `db:"complaint_number" json:"complaint_number"`
	Department      string              `db:"department" json:"department"`
	Priority        Priority            `db:"priority" json:"priority"`
	City            string              `db:"city" json:"city"`
	Category        string              `db:"category" json:"category"`
	Message         string              `db:"message" json:"message"`
	Status          NotificationStatus  `db:"status" json:"status"`
	RetryCount      int                 `db:"retry_count" json:"retry_count"`
	MaxRetries      int                 `db:"max_retries" json:"max_retries"`
	NextRetryAt     sql.NullTime        `db:"next_retry_at" json:"next_retry_at,omitempty"`
	SentAt          sql.NullTime        `db:"sent_at" json:"sent_at,omitempty"`
	ErrorMessage    sql.NullString      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       sql.NullTime        `db:"updated_at" json:"updated_at,omitempty"`
}

// NotificationConfig holds retry and worker tuning for notification delivery
type NotificationConfig struct {
	DefaultMaxRetries int

	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64

	WorkerBatchSize int
	WorkerInterval  time.Duration
}

// DefaultNotificationConfig returns default notification configuration
func DefaultNotificationConfig() *NotificationConfig {
	return &NotificationConfig{
		DefaultMaxRetries: 3,
		InitialRetryDelay: 1 * time.Minute,
		MaxRetryDelay:     30 * time.Minute,
		BackoffMultiplier: 2.0,
		WorkerBatchSize:   100,
		WorkerInterval:    30 * time.Second,
	}
}
