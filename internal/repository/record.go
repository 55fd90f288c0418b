package repository

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// ErrRecordNotFound is returned when an action targets a lead that does not
// exist for the tenant.
var ErrRecordNotFound = errors.New("record not found")

// RecordRepository is the store for the dealership records workflow actions
// mutate: leads and their follow-up tasks. All operations are tenant scoped.
type RecordRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewRecordRepository(db *sql.DB, clock core.Clock) *RecordRepository {
	return &RecordRepository{db: db, clock: clock}
}

func (r *RecordRepository) SaveLead(lead *domain.Lead) error {
	query := `
		INSERT INTO leads (id, tenant_id, source, status, assigned_to, score, tags, created, modified)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `,
		        ` + placeholder(6) + `, ` + placeholder(7) + `, ` + nowFunc(r.clock) + `, ` + nowFunc(r.clock) + `)
	`
	_, err := r.db.Exec(query, lead.ID, lead.TenantID, lead.Source, lead.Status, lead.AssignedTo, lead.Score, lead.Tags)
	return err
}

func (r *RecordRepository) FindLeadByID(tenantID string, id string) (*domain.Lead, error) {
	query := `
		SELECT id, tenant_id, source, status, assigned_to, score, tags, created, modified
		FROM leads WHERE tenant_id = ` + placeholder(1) + ` AND id = ` + placeholder(2) + `
	`
	var lead domain.Lead
	err := r.db.QueryRow(query, tenantID, id).Scan(
		&lead.ID, &lead.TenantID, &lead.Source, &lead.Status, &lead.AssignedTo,
		&lead.Score, &lead.Tags, &lead.Created, &lead.Modified)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *RecordRepository) updateLead(tenantID string, id string, set string, args ...interface{}) error {
	query := `
		UPDATE leads
		SET ` + set + `, modified = ` + nowFunc(r.clock) + `
		WHERE tenant_id = ` + placeholder(len(args)+1) + ` AND id = ` + placeholder(len(args)+2) + `
	`
	args = append(args, tenantID, id)
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepository) UpdateStatus(tenantID string, id string, status string) error {
	return r.updateLead(tenantID, id, "status = "+placeholder(1), status)
}

func (r *RecordRepository) AssignUser(tenantID string, id string, userID string) error {
	return r.updateLead(tenantID, id, "assigned_to = "+placeholder(1), userID)
}

// UpdateScore applies a relative delta to the lead's score.
func (r *RecordRepository) UpdateScore(tenantID string, id string, delta int) error {
	return r.updateLead(tenantID, id, "score = score + "+placeholder(1), delta)
}

// AddTag appends a tag to the lead's tag list unless it is already present.
// Tags are stored as a JSON array in a TEXT column.
func (r *RecordRepository) AddTag(tenantID string, id string, tag string) error {
	lead, err := r.FindLeadByID(tenantID, id)
	if err != nil {
		return err
	}
	var tags []string
	if lead.Tags.Valid && lead.Tags.String != "" {
		if err := json.Unmarshal([]byte(lead.Tags.String), &tags); err != nil {
			return err
		}
	}
	for _, existing := range tags {
		if existing == tag {
			return nil
		}
	}
	tags = append(tags, tag)
	encoded, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	return r.updateLead(tenantID, id, "tags = "+placeholder(1), string(encoded))
}

func (r *RecordRepository) CreateTask(task *domain.Task) (int64, error) {
	base := `
		INSERT INTO tasks (tenant_id, lead_id, title, assigned_to, due_date, status, created)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `,
		        ` + placeholder(5) + `, ` + placeholder(6) + `, ` + nowFunc(r.clock) + `)
	`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, task.TenantID, task.LeadID, task.Title, task.AssignedTo,
			formatDateInDatabaseNull(task.DueDate), task.Status).Scan(&task.ID)
	} else {
		res, e := r.db.Exec(base, task.TenantID, task.LeadID, task.Title, task.AssignedTo,
			formatDateInDatabaseNull(task.DueDate), task.Status)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				task.ID = id
			}
		}
	}
	return task.ID, err
}

func (r *RecordRepository) FindTasksByLead(tenantID string, leadID string) (*[]domain.Task, error) {
	query := `
		SELECT id, tenant_id, lead_id, title, assigned_to, due_date, status, created
		FROM tasks
		WHERE tenant_id = ` + placeholder(1) + ` AND lead_id = ` + placeholder(2) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		err := rows.Scan(&t.ID, &t.TenantID, &t.LeadID, &t.Title, &t.AssignedTo, &t.DueDate, &t.Status, &t.Created)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return &tasks, rows.Err()
}
