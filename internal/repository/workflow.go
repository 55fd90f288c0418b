package repository

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/dealerflow/dealerflow/internal/config"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// WorkflowRepository is the workflow store: CRUD persistence of tenant
// workflow definitions. The engine only reads enabled definitions through
// FindEnabledByTenantAndTrigger.
type WorkflowRepository struct {
	db    *sql.DB
	clock core.Clock
}

const WORKFLOW_COLUMNS = ` id, tenant_id, name, description, enabled, trigger_kind,
		       trigger_config, conditions, actions, execution_count,
		       last_executed_at, created, modified `

func NewWorkflowRepository(db *sql.DB, clock core.Clock) *WorkflowRepository {
	return &WorkflowRepository{db: db, clock: clock}
}

func formatDateInDatabase(t time.Time) string {
	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_SQLLITE {
		return t.UTC().Format("2006-01-02 15:04:05.000")
	}
	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_MYSQL {
		return t.UTC().Format("2006-01-02 15:04:05.000000")
	}
	// PostgreSQL supports RFC3339
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDateInDatabaseNull(t sql.NullTime) interface{} {
	if !t.Valid {
		return nil
	}
	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_SQLLITE {
		return t.Time.UTC().Format("2006-01-02 15:04:05.000")
	}
	if config.GetSystemSettingString(config.DATABASE_TYPE) == config.DATABASE_TYPE_MYSQL {
		return t.Time.UTC().Format("2006-01-02 15:04:05.000000")
	}
	return t.Time
}

// marshalWorkflowColumns serializes the map/list fields for storage.
func marshalWorkflowColumns(wf *domain.Workflow) (triggerConfig, conditions, actions sql.NullString, err error) {
	if wf.TriggerConfig != nil {
		b, e := json.Marshal(wf.TriggerConfig)
		if e != nil {
			return triggerConfig, conditions, actions, e
		}
		triggerConfig = sql.NullString{String: string(b), Valid: true}
	}
	if wf.Conditions != nil {
		b, e := json.Marshal(wf.Conditions)
		if e != nil {
			return triggerConfig, conditions, actions, e
		}
		conditions = sql.NullString{String: string(b), Valid: true}
	}
	b, e := json.Marshal(wf.Actions)
	if e != nil {
		return triggerConfig, conditions, actions, e
	}
	actions = sql.NullString{String: string(b), Valid: true}
	return triggerConfig, conditions, actions, nil
}

func scanWorkflow(scan func(dest ...any) error) (*domain.Workflow, error) {
	var wf domain.Workflow
	var triggerConfig, conditions, actions sql.NullString
	err := scan(
		&wf.ID,
		&wf.TenantID,
		&wf.Name,
		&wf.Description,
		&wf.Enabled,
		&wf.Trigger,
		&triggerConfig,
		&conditions,
		&actions,
		&wf.ExecutionCount,
		&wf.LastExecutedAt,
		&wf.Created,
		&wf.Modified,
	)
	if err != nil {
		return nil, err
	}
	if triggerConfig.Valid && triggerConfig.String != "" {
		if err := json.Unmarshal([]byte(triggerConfig.String), &wf.TriggerConfig); err != nil {
			return nil, err
		}
	}
	if conditions.Valid && conditions.String != "" {
		if err := json.Unmarshal([]byte(conditions.String), &wf.Conditions); err != nil {
			return nil, err
		}
	}
	if actions.Valid && actions.String != "" {
		if err := json.Unmarshal([]byte(actions.String), &wf.Actions); err != nil {
			return nil, err
		}
	}
	// Decode typed action payloads at the store boundary so the rest of the
	// engine never touches raw config maps.
	if err := domain.DecodeActionPayloads(wf.Actions); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *WorkflowRepository) Save(wf *domain.Workflow) (int64, error) {
	triggerConfig, conditions, actions, err := marshalWorkflowColumns(wf)
	if err != nil {
		return 0, err
	}
	vals := []interface{}{wf.TenantID, wf.Name, wf.Description, wf.Enabled, wf.Trigger,
		triggerConfig, conditions, actions, wf.ExecutionCount,
		formatDateInDatabaseNull(wf.LastExecutedAt), formatDateInDatabase(wf.Created), formatDateInDatabase(wf.Modified)}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO workflow (
		tenant_id, name, description, enabled, trigger_kind,
		trigger_config, conditions, actions, execution_count,
		last_executed_at, created, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&wf.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				wf.ID = id
			}
		}
	}
	return wf.ID, err
}

// Update rewrites the editable definition fields. Enabled, execution
// bookkeeping and the trigger-immutability rule are handled elsewhere.
func (r *WorkflowRepository) Update(wf *domain.Workflow) error {
	triggerConfig, conditions, actions, err := marshalWorkflowColumns(wf)
	if err != nil {
		return err
	}
	query := `
		UPDATE workflow
		SET name = ` + placeholder(1) + `, description = ` + placeholder(2) + `, trigger_kind = ` + placeholder(3) + `,
		    trigger_config = ` + placeholder(4) + `, conditions = ` + placeholder(5) + `, actions = ` + placeholder(6) + `,
		    modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(7) + ` AND tenant_id = ` + placeholder(8) + `
	`
	_, err = r.db.Exec(query, wf.Name, wf.Description, wf.Trigger, triggerConfig, conditions, actions, wf.ID, wf.TenantID)
	return err
}

func (r *WorkflowRepository) FindByID(tenantID string, id int64) (*domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflow WHERE id = ` + placeholder(1) + ` AND tenant_id = ` + placeholder(2) + `
	`
	row := r.db.QueryRow(query, id, tenantID)
	wf, err := scanWorkflow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// FindEnabledByTenantAndTrigger returns the enabled workflows of one tenant
// listening on the given trigger kind. Never crosses tenants.
func (r *WorkflowRepository) FindEnabledByTenantAndTrigger(tenantID string, triggerKind string) (*[]domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflow
		WHERE tenant_id = ` + placeholder(1) + `
		  AND trigger_kind = ` + placeholder(2) + `
		  AND enabled = ` + enabledLiteral(true) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, tenantID, triggerKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return &workflows, rows.Err()
}

func (r *WorkflowRepository) FindAllByTenant(tenantID string) (*[]domain.Workflow, error) {
	query := `
		SELECT ` + WORKFLOW_COLUMNS + `
		FROM workflow
		WHERE tenant_id = ` + placeholder(1) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return &workflows, rows.Err()
}

func (r *WorkflowRepository) SetEnabled(tenantID string, id int64, enabled bool) error {
	query := `
		UPDATE workflow
		SET enabled = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + ` AND tenant_id = ` + placeholder(3) + `
	`
	_, err := r.db.Exec(query, enabled, id, tenantID)
	return err
}

// MarkExecuted bumps the execution counter and last_executed_at. Called once
// per run start by the ledger.
func (r *WorkflowRepository) MarkExecuted(id int64) error {
	query := `
		UPDATE workflow
		SET execution_count = execution_count + 1, last_executed_at = ` + nowFunc(r.clock) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *WorkflowRepository) DeleteByID(tenantID string, id int64) error {
	query := `
		DELETE FROM workflow WHERE id = ` + placeholder(1) + ` AND tenant_id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, id, tenantID)
	return err
}

// enabledLiteral papers over boolean literals across the three dialects.
func enabledLiteral(v bool) string {
	db := config.GetSystemSettingString(config.DATABASE_TYPE)
	if db == config.DATABASE_TYPE_POSTGRES {
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	if v {
		return "1"
	}
	return "0"
}
