package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"civicroute/models"
)

// ProcessedRepository records the write-once audit trail of pipeline passes.
type ProcessedRepository struct {
	db *sql.DB
}

func NewProcessedRepository(db *sql.DB) *ProcessedRepository {
	return &ProcessedRepository{db: db}
}

// Record inserts one audit row per complaint. Re-processing the same
// complaint is a no-op thanks to the unique key on complaint_id.
func (r *ProcessedRepository) Record(ctx context.Context, p *models.ProcessedComplaint) error {
	query := `INSERT IGNORE INTO processed_complaints
		(complaint_id, complaint_number, department, priority, is_default, sla_deadline_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ComplaintID,
		p.ComplaintNumber,
		p.Department,
		string(p.Priority),
		p.IsDefault,
		p.SLADeadlineAt,
		p.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record processed complaint %d: %w", p.ComplaintID, err)
	}
	return nil
}

// CountSince returns how many complaints the pipeline has audited since the
// given time, or ever when since is nil. Backs the dashboard throughput
// number.
func (r *ProcessedRepository) CountSince(ctx context.Context, since *time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM processed_complaints`
	args := []interface{}{}
	if since != nil {
		query += ` WHERE processed_at >= ?`
		args = append(args, *since)
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count processed complaints: %w", err)
	}
	return n, nil
}
