package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"civicroute/models"
)

const mappingColumns = `
	mapping_id, category, city, department, higher_authority,
	status, pincode, created_at, updated_at`

// MappingRepository handles database operations for department routing rules.
// Rows are queried by exact match on lower-cased category/city; duplicates are
// tolerated by taking the lowest mapping_id.
type MappingRepository struct {
	db *sql.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *sql.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// FindByCategoryAndCity returns the first rule matching both category and city
func (r *MappingRepository) FindByCategoryAndCity(ctx context.Context, category, city string) (*models.DepartmentMapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM department_mappings
		WHERE category = ? AND city = ?
		ORDER BY mapping_id ASC
		LIMIT 1`

	mapping, err := scanMapping(r.db.QueryRowContext(ctx, query, normalizeKey(category), normalizeKey(city)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mapping %s/%s: %w", category, city, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return mapping, nil
}

// FindByCategory returns the first rule matching the category in any city
func (r *MappingRepository) FindByCategory(ctx context.Context, category string) (*models.DepartmentMapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM department_mappings
		WHERE category = ?
		ORDER BY mapping_id ASC
		LIMIT 1`

	mapping, err := scanMapping(r.db.QueryRowContext(ctx, query, normalizeKey(category)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mapping %s: %w", category, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return mapping, nil
}

// GetByID retrieves a rule by primary key
func (r *MappingRepository) GetByID(ctx context.Context, mappingID int64) (*models.DepartmentMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM department_mappings WHERE mapping_id = ?`

	mapping, err := scanMapping(r.db.QueryRowContext(ctx, query, mappingID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mapping %d: %w", mappingID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return mapping, nil
}

// List returns all routing rules ordered by category then city
func (r *MappingRepository) List(ctx context.Context) ([]models.DepartmentMapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM department_mappings
		ORDER BY category ASC, city ASC, mapping_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.DepartmentMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, *mapping)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}
	return mappings, nil
}

// Create stores a new routing rule. Category and city are lower-cased so
// resolver queries stay case-insensitive.
func (r *MappingRepository) Create(ctx context.Context, mapping *models.DepartmentMapping) error {
	mapping.Category = normalizeKey(mapping.Category)
	mapping.City = normalizeKey(mapping.City)
	if mapping.Status == "" {
		mapping.Status = "active"
	}
	if mapping.HigherAuthority == "" {
		mapping.HigherAuthority = models.HigherAuthorityFor(mapping.Department)
	}

	query := `
		INSERT INTO department_mappings (
			category, city, department, higher_authority, status, pincode
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		mapping.Category,
		mapping.City,
		mapping.Department,
		mapping.HigherAuthority,
		mapping.Status,
		mapping.Pincode,
	)
	if err != nil {
		return fmt.Errorf("failed to create mapping: %w", err)
	}

	mappingID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get mapping ID: %w", err)
	}
	mapping.MappingID = mappingID
	return nil
}

// Update rewrites a routing rule in place
func (r *MappingRepository) Update(ctx context.Context, mapping *models.DepartmentMapping) error {
	mapping.Category = normalizeKey(mapping.Category)
	mapping.City = normalizeKey(mapping.City)
	if mapping.HigherAuthority == "" {
		mapping.HigherAuthority = models.HigherAuthorityFor(mapping.Department)
	}

	query := `
		UPDATE department_mappings
		SET category = ?, city = ?, department = ?,
			higher_authority = ?, status = ?, pincode = ?,
			updated_at = NOW()
		WHERE mapping_id = ?
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		mapping.Category,
		mapping.City,
		mapping.Department,
		mapping.HigherAuthority,
		mapping.Status,
		mapping.Pincode,
		mapping.MappingID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mapping %d: %w", mapping.MappingID, ErrNotFound)
	}
	return nil
}

// Delete removes a routing rule
func (r *MappingRepository) Delete(ctx context.Context, mappingID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM department_mappings WHERE mapping_id = ?`, mappingID)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mapping %d: %w", mappingID, ErrNotFound)
	}
	return nil
}

// SeedDefaults inserts a starter routing table when the table is empty so a
// fresh install resolves the common categories without admin work.
func (r *MappingRepository) SeedDefaults(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM department_mappings`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count mappings: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds := []models.DepartmentMapping{
		{Category: "water supply", City: "mumbai", Department: "Water Supply Department"},
		{Category: "water supply", City: "delhi", Department: "Delhi Jal Board"},
		{Category: "electricity", City: "mumbai", Department: "Electricity Department"},
		{Category: "electricity", City: "delhi", Department: "Electricity Department"},
		{Category: "road", City: "mumbai", Department: "Public Works Department"},
		{Category: "road", City: "delhi", Department: "Public Works Department"},
		{Category: "pothole", City: "mumbai", Department: "Public Works Department"},
		{Category: "garbage", City: "mumbai", Department: "Sanitation Department"},
		{Category: "garbage", City: "delhi", Department: "Sanitation Department"},
		{Category: "sewage", City: "mumbai", Department: "Sewerage Operations"},
		{Category: "streetlight", City: "mumbai", Department: "Electricity Department"},
		{Category: "drainage", City: "mumbai", Department: "Storm Water Drains Department"},
		{Category: "health", City: "mumbai", Department: "Health Department"},
		{Category: "education", City: "mumbai", Department: "Education Department"},
	}
	for i := range seeds {
		if err := r.Create(ctx, &seeds[i]); err != nil {
			return fmt.Errorf("failed to seed mapping %s/%s: %w", seeds[i].Category, seeds[i].City, err)
		}
	}
	return nil
}

// normalizeKey lower-cases and trims a category/city lookup key
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func scanMapping(row rowScanner) (*models.DepartmentMapping, error) {
	var m models.DepartmentMapping
	err := row.Scan(
		&m.MappingID,
		&m.Category,
		&m.City,
		&m.Department,
		&m.HigherAuthority,
		&m.Status,
		&m.Pincode,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
