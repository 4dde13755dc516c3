package models

import (
	"database/sql"
	"strings"
	"time"
)

// ComplaintStatus represents the stored lifecycle status of a complaint
type ComplaintStatus string

const (
	StatusPending    ComplaintStatus = "pending"
	StatusAssigned   ComplaintStatus = "assigned"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusEscalated  ComplaintStatus = "escalated"
	StatusClosed     ComplaintStatus = "closed"
)

// Priority represents complaint priority levels
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ProcessingStatus represents the derived pipeline-facing status of a complaint
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingAssigned   ProcessingStatus = "assigned"
	ProcessingInProgress ProcessingStatus = "in_progress"
	ProcessingResolved   ProcessingStatus = "resolved"
	ProcessingEscalated  ProcessingStatus = "escalated"
)

// BreachState classifies a complaint against its SLA deadline
type BreachState string

const (
	BreachOK       BreachState = "ok"
	BreachWarning  BreachState = "warning"
	BreachBreached BreachState = "breached"
)

// statusAliases maps the raw status spellings seen in source data onto the enum.
// Source data carried at least three casings/spellings for the same logical state
// ("Open", "open", "In Progress", "inprogress", ...), so every boundary read goes
// through NormalizeStatus.
var statusAliases = map[string]ComplaintStatus{
	"open":        StatusPending,
	"new":         StatusPending,
	"pending":     StatusPending,
	"submitted":   StatusPending,
	"assigned":    StatusAssigned,
	"in progress": StatusInProgress,
	"in_progress": StatusInProgress,
	"in-progress": StatusInProgress,
	"inprogress":  StatusInProgress,
	"resolved":    StatusResolved,
	"fixed":       StatusResolved,
	"completed":   StatusResolved,
	"done":        StatusResolved,
	"closed":      StatusClosed,
	"escalated":   StatusEscalated,
}

// LookupStatus maps a raw status spelling onto the enum, reporting whether the
// spelling is recognized. Callers that must reject typos use this directly.
func LookupStatus(raw string) (ComplaintStatus, bool) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// NormalizeStatus maps an arbitrary raw status string onto the ComplaintStatus enum.
// Unknown or empty values normalize to pending.
func NormalizeStatus(raw string) ComplaintStatus {
	if status, ok := LookupStatus(raw); ok {
		return status
	}
	return StatusPending
}

// Complaint is the canonical complaint record. Both historical ingest shapes
// (flat and nested) are parsed into this one shape at the boundary; the rest of
// the pipeline never sees anything else.
type Complaint struct {
	ComplaintID      int64           `db:"complaint_id" json:"complaint_id"`
	ComplaintNumber  string          `db:"complaint_number" json:"complaint_number"`
	Category         string          `db:"category" json:"category"`
	City             string          `db:"city" json:"city"`
	State            sql.NullString  `db:"state" json:"state,omitempty"`
	Pincode          sql.NullString  `db:"pincode" json:"pincode,omitempty"`
	Description      string          `db:"description" json:"description"`
	Status           ComplaintStatus `db:"status" json:"status"`
	SubmitterID      sql.NullString  `db:"submitter_id" json:"submitter_id,omitempty"`
	SubmitterName    sql.NullString  `db:"submitter_name" json:"submitter_name,omitempty"`
	SubmitterPhone   sql.NullString  `db:"submitter_phone" json:"submitter_phone,omitempty"`
	Latitude         sql.NullFloat64 `db:"latitude" json:"latitude,omitempty"`
	Longitude        sql.NullFloat64 `db:"longitude" json:"longitude,omitempty"`
	ImageURL         sql.NullString  `db:"image_url" json:"image_url,omitempty"`
	FullAddress      sql.NullString  `db:"full_address" json:"full_address,omitempty"`
	Processed        bool            `db:"processed" json:"processed"`
	ProcessedAt      sql.NullTime    `db:"processed_at" json:"processed_at,omitempty"`
	BreachNotifiedAt sql.NullTime    `db:"breach_notified_at" json:"breach_notified_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        sql.NullTime    `db:"updated_at" json:"updated_at,omitempty"`
}

// DisplayCreatedAt renders the creation time for dashboard display
func (c *Complaint) DisplayCreatedAt() string {
	return c.CreatedAt.Format("02 Jan 2006, 3:04 PM")
}

// DepartmentMapping is one routing rule keyed by (category, city). Category and
// city are stored lower-cased so exact-match queries are case-insensitive.
// Read-many/write-rare: administrators edit rows, the resolver only reads.
type DepartmentMapping struct {
	MappingID       int64          `db:"mapping_id" json:"mapping_id"`
	Category        string         `db:"category" json:"category"`
	City            string         `db:"city" json:"city"`
	Department      string         `db:"department" json:"department"`
	HigherAuthority string         `db:"higher_authority" json:"higher_authority"`
	Status          string         `db:"status" json:"status"` // active | inactive
	Pincode         sql.NullString `db:"pincode" json:"pincode,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       sql.NullTime   `db:"updated_at" json:"updated_at,omitempty"`
}

// ProcessedComplaint is the write-once audit record the pipeline emits per
// enrichment. Best-effort: a failed insert never rolls back the enrichment.
type ProcessedComplaint struct {
	ID              int64        `db:"id" json:"id"`
	ComplaintID     int64        `db:"complaint_id" json:"complaint_id"`
	ComplaintNumber string       `db:"complaint_number" json:"complaint_number"`
	Department      string       `db:"department" json:"department"`
	Priority        Priority     `db:"priority" json:"priority"`
	IsDefault       bool         `db:"is_default" json:"is_default"`
	SLADeadlineAt   time.Time    `db:"sla_deadline_at" json:"sla_deadline_at"`
	ProcessedAt     time.Time    `db:"processed_at" json:"processed_at"`
	CreatedAt       sql.NullTime `db:"created_at" json:"created_at,omitempty"`
}

// ComplaintFilter narrows complaint reads. Category/City/Status/Processed/Since/
// Until are pushed down to the store; Priority/ProcessingStatus/IsDefault are
// derived fields and get applied after enrichment.
type ComplaintFilter struct {
	Category         string
	City             string
	Status           ComplaintStatus
	Processed        *bool
	Since            *time.Time
	Until            *time.Time
	Priority         Priority
	ProcessingStatus ProcessingStatus
	IsDefault        *bool
	Limit            int
	Offset           int
}

// CreateMappingRequest is the admin payload for creating a routing rule
type CreateMappingRequest struct {
	Category        string `json:"category" validate:"required,min=2,max=100"`
	City            string `json:"city" validate:"required,min=2,max=100"`
	Department      string `json:"department" validate:"required,min=2,max=255"`
	HigherAuthority string `json:"higher_authority" validate:"omitempty,max=255"`
	Status          string `json:"status" validate:"omitempty,oneof=active inactive"`
	Pincode         string `json:"pincode" validate:"omitempty,len=6,numeric"`
}

// UpdateMappingRequest is the admin payload for editing a routing rule
type UpdateMappingRequest struct {
	Category        string `json:"category" validate:"required,min=2,max=100"`
	City            string `json:"city" validate:"required,min=2,max=100"`
	Department      string `json:"department" validate:"required,min=2,max=255"`
	HigherAuthority string `json:"higher_authority" validate:"omitempty,max=255"`
	Status          string `json:"status" validate:"omitempty,oneof=active inactive"`
	Pincode         string `json:"pincode" validate:"omitempty,len=6,numeric"`
}

// UpdateStatusRequest is the dashboard payload for a staff status change
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"omitempty,max=1000"`
}

// LoginRequest is the dashboard login payload
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued dashboard token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is the uniform HTTP error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
