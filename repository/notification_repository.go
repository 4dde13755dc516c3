package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"civicroute/models"
)

const notificationColumns = `notification_id, kind, channel, complaint_id, complaint_number,
	department, priority, city, category, message,
	status, retry_count, max_retries, next_retry_at, sent_at, error_message,
	created_at, updated_at`

// NotificationRepository handles database operations for notification records
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a pending notification record and fills in its ID
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications_log (
			kind, channel, complaint_id, complaint_number,
			department, priority, city, category, message,
			status, retry_count, max_retries, next_retry_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		string(n.Kind),
		string(n.Channel),
		n.ComplaintID,
		n.ComplaintNumber,
		n.Department,
		string(n.Priority),
		n.City,
		n.Category,
		n.Message,
		string(n.Status),
		n.RetryCount,
		n.MaxRetries,
		n.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	notificationID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification ID: %w", err)
	}

	n.NotificationID = notificationID
	return nil
}

// GetPending retrieves pending notifications that are due for delivery.
// A row with a future next_retry_at is not due yet.
func (r *NotificationRepository) GetPending(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications_log
		WHERE status = 'pending'
			AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY
			CASE priority
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				WHEN 'low' THEN 3
				ELSE 4
			END,
			created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// MarkSent flags a notification as delivered and clears any stored error
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notifications_log
		SET status = 'sent',
			sent_at = NOW(),
			error_message = NULL,
			next_retry_at = NULL,
			updated_at = NOW()
		WHERE notification_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed flags a notification as permanently failed
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE notifications_log
		SET status = 'failed',
			error_message = ?,
			next_retry_at = NULL,
			updated_at = NOW()
		WHERE notification_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, errorMessage, id); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// ScheduleRetry records a failed attempt and the time of the next one. The
// record stays pending; next_retry_at keeps it out of GetPending until due.
func (r *NotificationRepository) ScheduleRetry(ctx context.Context, id int64, nextRetryAt time.Time, errorMessage string) error {
	query := `
		UPDATE notifications_log
		SET retry_count = retry_count + 1,
			next_retry_at = ?,
			error_message = ?,
			updated_at = NOW()
		WHERE notification_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, nextRetryAt, errorMessage, id); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	return nil
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var kind, channel, priority, status string
	err := row.Scan(
		&n.NotificationID,
		&kind,
		&channel,
		&n.ComplaintID,
		&n.ComplaintNumber,
		&n.Department,
		&priority,
		&n.City,
		&n.Category,
		&n.Message,
		&status,
		&n.RetryCount,
		&n.MaxRetries,
		&n.NextRetryAt,
		&n.SentAt,
		&n.ErrorMessage,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	n.Kind = models.NotificationKind(kind)
	n.Channel = models.NotificationChannel(channel)
	n.Priority = models.Priority(priority)
	n.Status = models.NotificationStatus(status)
	return &n, nil
}
