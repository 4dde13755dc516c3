package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"civicroute/models"

	"github.com/google/uuid"
)

// complaintColumns is the canonical select list; scanComplaint must stay in sync.
const complaintColumns = `
	complaint_id, complaint_number, category, city, state, pincode,
	description, status, submitter_id, submitter_name, submitter_phone,
	latitude, longitude, image_url, full_address,
	processed, processed_at, breach_notified_at, created_at, updated_at`

// ComplaintRepository handles database operations for complaints
type ComplaintRepository struct {
	db *sql.DB
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *sql.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// GenerateComplaintNumber generates a unique complaint number
// Format: CMP-YYYYMMDD-{UUID}
func (r *ComplaintRepository) GenerateComplaintNumber() string {
	datePrefix := time.Now().UTC().Format("20060102")
	uniqueID := uuid.New().String()[:8]
	return fmt.Sprintf("CMP-%s-%s", datePrefix, uniqueID)
}

// Insert stores a canonical complaint. Assigns ComplaintNumber when empty and
// fills ComplaintID from the insert.
func (r *ComplaintRepository) Insert(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ComplaintNumber == "" {
		complaint.ComplaintNumber = r.GenerateComplaintNumber()
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO complaints (
			complaint_number, category, city, state, pincode,
			description, status, submitter_id, submitter_name, submitter_phone,
			latitude, longitude, image_url, full_address, processed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		complaint.ComplaintNumber,
		complaint.Category,
		complaint.City,
		complaint.State,
		complaint.Pincode,
		complaint.Description,
		complaint.Status,
		complaint.SubmitterID,
		complaint.SubmitterName,
		complaint.SubmitterPhone,
		complaint.Latitude,
		complaint.Longitude,
		complaint.ImageURL,
		complaint.FullAddress,
		complaint.Processed,
		complaint.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert complaint: %w", err)
	}

	complaintID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get complaint ID: %w", err)
	}

	complaint.ComplaintID = complaintID
	return nil
}

// GetByID retrieves a complaint by its ID
func (r *ComplaintRepository) GetByID(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE complaint_id = ?`

	complaint, err := scanComplaint(r.db.QueryRowContext(ctx, query, complaintID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("complaint %d: %w", complaintID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return complaint, nil
}

// GetByNumber retrieves a complaint by its shareable complaint number
func (r *ComplaintRepository) GetByNumber(ctx context.Context, complaintNumber string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE complaint_number = ?`

	complaint, err := scanComplaint(r.db.QueryRowContext(ctx, query, complaintNumber))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("complaint %s: %w", complaintNumber, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return complaint, nil
}

// List retrieves complaints matching the store-level filter fields, newest
// first. Derived-field filters (priority, processing status, isDefault) are the
// service layer's job after enrichment.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Category)))
	}
	if filter.City != "" {
		conditions = append(conditions, "city = ?")
		args = append(args, strings.TrimSpace(filter.City))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Processed != nil {
		conditions = append(conditions, "processed = ?")
		args = append(args, *filter.Processed)
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *filter.Until)
	}

	query := `SELECT ` + complaintColumns + ` FROM complaints`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, complaint_id DESC"

	// Callers own their limits: the HTTP boundary caps user input, the
	// statistics scan deliberately asks for thousands.
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	return r.queryComplaints(ctx, query, args...)
}

// ListUnprocessed returns complaints the pipeline has not marked yet, oldest first
func (r *ComplaintRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.Complaint, error) {
	query := `SELECT ` + complaintColumns + `
		FROM complaints
		WHERE processed = FALSE
		ORDER BY created_at ASC
		LIMIT ?`
	return r.queryComplaints(ctx, query, limit)
}

// ListUnresolved returns complaints still open for SLA evaluation, oldest first
func (r *ComplaintRepository) ListUnresolved(ctx context.Context, limit int) ([]models.Complaint, error) {
	query := `SELECT ` + complaintColumns + `
		FROM complaints
		WHERE status NOT IN (?, ?)
		ORDER BY created_at ASC
		LIMIT ?`
	return r.queryComplaints(ctx, query, models.StatusResolved, models.StatusClosed, limit)
}

// MarkProcessed sets the processed marker. Idempotent: marking an already
// processed complaint is a no-op, and two pipeline instances racing on the same
// complaint is a tolerated benign race, not an exclusive claim.
func (r *ComplaintRepository) MarkProcessed(ctx context.Context, complaintID int64) error {
	query := `
		UPDATE complaints
		SET processed = TRUE,
			processed_at = COALESCE(processed_at, NOW()),
			updated_at = NOW()
		WHERE complaint_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, complaintID); err != nil {
		return fmt.Errorf("failed to mark complaint processed: %w", err)
	}
	return nil
}

// ClaimBreach atomically claims the first-breach signal for the current breach
// episode. Returns true only for the caller that flipped the marker; a
// still-breached complaint on later scans returns false.
func (r *ComplaintRepository) ClaimBreach(ctx context.Context, complaintID int64, at time.Time) (bool, error) {
	query := `
		UPDATE complaints
		SET breach_notified_at = ?,
			updated_at = NOW()
		WHERE complaint_id = ? AND breach_notified_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, at, complaintID)
	if err != nil {
		return false, fmt.Errorf("failed to claim breach for complaint %d: %w", complaintID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return affected == 1, nil
}

// ClearBreach ends the breach episode. Called when a complaint transitions to
// resolved so a later reopen+breach produces one fresh signal.
func (r *ComplaintRepository) ClearBreach(ctx context.Context, complaintID int64) error {
	query := `
		UPDATE complaints
		SET breach_notified_at = NULL,
			updated_at = NOW()
		WHERE complaint_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, complaintID); err != nil {
		return fmt.Errorf("failed to clear breach marker: %w", err)
	}
	return nil
}

// UpdateStatus sets a complaint's stored status
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, complaintID int64, status models.ComplaintStatus) error {
	query := `
		UPDATE complaints
		SET status = ?,
			updated_at = NOW()
		WHERE complaint_id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, complaintID)
	if err != nil {
		return fmt.Errorf("failed to update complaint status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("complaint %d: %w", complaintID, ErrNotFound)
	}
	return nil
}

func (r *ComplaintRepository) queryComplaints(ctx context.Context, query string, args ...interface{}) ([]models.Complaint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	var complaints []models.Complaint
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, *complaint)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating complaints: %w", err)
	}
	return complaints, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComplaint(row rowScanner) (*models.Complaint, error) {
	var c models.Complaint
	err := row.Scan(
		&c.ComplaintID,
		&c.ComplaintNumber,
		&c.Category,
		&c.City,
		&c.State,
		&c.Pincode,
		&c.Description,
		&c.Status,
		&c.SubmitterID,
		&c.SubmitterName,
		&c.SubmitterPhone,
		&c.Latitude,
		&c.Longitude,
		&c.ImageURL,
		&c.FullAddress,
		&c.Processed,
		&c.ProcessedAt,
		&c.BreachNotifiedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
