package schema

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// RequiredColumn names a column the repositories scan. A missing column means
// the database predates the current build.
type RequiredColumn struct {
	Table  string
	Column string
}

// requiredColumns lists the columns added after the initial schema. An old
// table passes the existence check in InitializeDatabase but still breaks
// every scan that selects these.
var requiredColumns = []RequiredColumn{
	{Table: tableComplaints, Column: "processed"},
	{Table: tableComplaints, Column: "processed_at"},
	{Table: tableComplaints, Column: "breach_notified_at"},
	{Table: tableDepartmentMappings, Column: "higher_authority"},
	{Table: tableDepartmentMappings, Column: "status"},
	{Table: tableProcessedComplaints, Column: "sla_deadline_at"},
	{Table: tableNotificationsLog, Column: "next_retry_at"},
}

// ValidateRequiredColumns checks that every column the repositories depend on
// exists, so a stale database fails at startup instead of mid-request.
func ValidateRequiredColumns(db *sql.DB, logger zerolog.Logger) error {
	var missing []string
	for _, rc := range requiredColumns {
		exists, err := columnExists(db, rc.Table, rc.Column)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", rc.Table, rc.Column, err)
		}
		if !exists {
			missing = append(missing, rc.Table+"."+rc.Column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns (run migrations to fix): %s", strings.Join(missing, ", "))
	}
	logger.Debug().Msg("[schema] required columns verified")
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
