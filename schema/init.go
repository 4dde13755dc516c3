// Package schema performs safe database initialization: create only missing
// tables, never drop or overwrite.
package schema

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	tableComplaints          = "complaints"
	tableDepartmentMappings  = "department_mappings"
	tableProcessedComplaints = "processed_complaints"
	tableNotificationsLog    = "notifications_log"
)

// InitializeDatabase ensures core tables exist. Checks INFORMATION_SCHEMA.TABLES
// and creates only missing tables, in order: complaints, department_mappings,
// processed_complaints, notifications_log. Does not drop or recreate tables and
// does not remove data.
func InitializeDatabase(db *sql.DB, logger zerolog.Logger) error {
	tables := []struct {
		name   string
		create func(*sql.DB) error
	}{
		{tableComplaints, createComplaintsTable},
		{tableDepartmentMappings, createDepartmentMappingsTable},
		{tableProcessedComplaints, createProcessedComplaintsTable},
		{tableNotificationsLog, createNotificationsLogTable},
	}

	for _, t := range tables {
		exists, err := tableExists(db, t.name)
		if err != nil {
			return fmt.Errorf("failed to check if table %s exists: %w", t.name, err)
		}
		if exists {
			logger.Debug().Str("table", t.name).Msg("[schema] table exists")
			continue
		}
		if err := t.create(db); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
		logger.Info().Str("table", t.name).Msg("[schema] created table")
	}

	logger.Info().Msg("[schema] schema check passed")
	return nil
}

func tableExists(db *sql.DB, table string) (bool, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`,
		table,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func createComplaintsTable(db *sql.DB) error {
	q := `
CREATE TABLE IF NOT EXISTS complaints (
    complaint_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_number VARCHAR(50) UNIQUE NOT NULL COMMENT 'Public-facing complaint number',
    category VARCHAR(100) NOT NULL COMMENT 'Complaint category (lower-cased)',
    city VARCHAR(100) NOT NULL COMMENT 'Normalized city',
    state VARCHAR(100) NULL COMMENT 'State when known',
    pincode VARCHAR(10) NULL COMMENT '6-digit postal code when known',
    description TEXT NOT NULL COMMENT 'Detailed description',
    status VARCHAR(50) NOT NULL DEFAULT 'pending' COMMENT 'Lifecycle status',
    submitter_id VARCHAR(64) NULL COMMENT 'External submitter identifier',
    submitter_name VARCHAR(255) NULL COMMENT 'Submitter name (optional)',
    submitter_phone VARCHAR(20) NULL COMMENT 'Submitter phone (optional)',
    latitude DECIMAL(10, 8) NULL COMMENT 'Specific coordinates',
    longitude DECIMAL(11, 8) NULL COMMENT 'Specific coordinates',
    image_url VARCHAR(512) NULL COMMENT 'Attached photo URL',
    full_address TEXT NULL COMMENT 'Raw address as submitted',
    processed BOOLEAN NOT NULL DEFAULT FALSE COMMENT 'Pipeline has audited this complaint',
    processed_at TIMESTAMP NULL COMMENT 'When the pipeline audited it',
    breach_notified_at TIMESTAMP NULL COMMENT 'When the current breach episode was signalled',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP COMMENT 'Complaint creation',
    updated_at TIMESTAMP NULL ON UPDATE CURRENT_TIMESTAMP COMMENT 'Last update',
    INDEX idx_complaint_number (complaint_number),
    INDEX idx_status (status),
    INDEX idx_processed (processed),
    INDEX idx_category_city (category, city),
    INDEX idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	_, err := db.Exec(q)
	return err
}

func createDepartmentMappingsTable(db *sql.DB) error {
	q := `
CREATE TABLE IF NOT EXISTS department_mappings (
    mapping_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    category VARCHAR(100) NOT NULL COMMENT 'Match key (lower-cased)',
    city VARCHAR(100) NOT NULL COMMENT 'Match key (lower-cased)',
    department VARCHAR(255) NOT NULL COMMENT 'Responsible department',
    higher_authority VARCHAR(255) NOT NULL COMMENT 'Escalation contact',
    status VARCHAR(20) NOT NULL DEFAULT 'active' COMMENT 'active | inactive',
    pincode VARCHAR(10) NULL COMMENT 'Optional pincode scope',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_category_city (category, city),
    INDEX idx_category (category)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	_, err := db.Exec(q)
	return err
}

func createProcessedComplaintsTable(db *sql.DB) error {
	q := `
CREATE TABLE IF NOT EXISTS processed_complaints (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_id BIGINT NOT NULL COMMENT 'Audited complaint',
    complaint_number VARCHAR(50) NOT NULL COMMENT 'Public-facing complaint number',
    department VARCHAR(255) NOT NULL COMMENT 'Routed department at processing time',
    priority VARCHAR(20) NOT NULL COMMENT 'Derived priority at processing time',
    is_default BOOLEAN NOT NULL DEFAULT FALSE COMMENT 'Routing fell through to the default department',
    sla_deadline_at TIMESTAMP NOT NULL COMMENT 'Derived deadline at processing time',
    processed_at TIMESTAMP NOT NULL COMMENT 'When the pipeline audited it',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uq_complaint_id (complaint_id),
    INDEX idx_processed_at (processed_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	_, err := db.Exec(q)
	return err
}

func createNotificationsLogTable(db *sql.DB) error {
	q := `
CREATE TABLE IF NOT EXISTS notifications_log (
    notification_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    kind VARCHAR(50) NOT NULL COMMENT 'sla_breach | high_priority | default_mapping',
    channel VARCHAR(50) NOT NULL COMMENT 'log | webhook',
    complaint_id BIGINT NOT NULL COMMENT 'Subject complaint',
    complaint_number VARCHAR(50) NOT NULL,
    department VARCHAR(255) NOT NULL,
    priority VARCHAR(20) NOT NULL,
    city VARCHAR(100) NOT NULL,
    category VARCHAR(100) NOT NULL,
    message TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending' COMMENT 'pending | sent | failed',
    retry_count INT NOT NULL DEFAULT 0,
    max_retries INT NOT NULL DEFAULT 3,
    next_retry_at TIMESTAMP NULL COMMENT 'Due time for the next delivery attempt',
    sent_at TIMESTAMP NULL,
    error_message TEXT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_status_next_retry (status, next_retry_at),
    INDEX idx_complaint_id (complaint_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	_, err := db.Exec(q)
	return err
}
