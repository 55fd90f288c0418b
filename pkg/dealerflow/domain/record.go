package domain

import (
	"database/sql"
	"time"
)

// Lead is the CRM record most workflows act on. The engine only touches the
// fields its actions mutate; the full CRM schema lives outside this service.
type Lead struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	Source     string         `json:"source"`
	Status     string         `json:"status"`
	AssignedTo sql.NullString `json:"-"`
	Score      int            `json:"score"`
	Tags       sql.NullString `json:"-"` // JSON array of strings
	Created    time.Time      `json:"created"`
	Modified   time.Time      `json:"modified"`
}

// Task is a follow-up item created by the create_task action.
type Task struct {
	ID         int64          `json:"id"`
	TenantID   string         `json:"tenantId"`
	LeadID     string         `json:"leadId"`
	Title      string         `json:"title"`
	AssignedTo sql.NullString `json:"-"`
	DueDate    sql.NullTime   `json:"-"`
	Status     string         `json:"status"`
	Created    time.Time      `json:"created"`
}
