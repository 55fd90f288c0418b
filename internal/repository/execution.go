package repository

import (
	"database/sql"
	"strings"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// ExecutionRepository persists the execution ledger: one row per workflow
// run plus an append-only trail of per-action outcomes.
type ExecutionRepository struct {
	db    *sql.DB
	clock core.Clock
}

const EXECUTION_COLUMNS = ` id, workflow_id, tenant_id, subject_id, trigger_data, definition,
		       status, failure_reason, started_at, completed_at, created, modified `

func NewExecutionRepository(db *sql.DB, clock core.Clock) *ExecutionRepository {
	return &ExecutionRepository{db: db, clock: clock}
}

func scanExecution(scan func(dest ...any) error) (*domain.WorkflowExecution, error) {
	var ex domain.WorkflowExecution
	err := scan(
		&ex.ID,
		&ex.WorkflowID,
		&ex.TenantID,
		&ex.SubjectID,
		&ex.TriggerData,
		&ex.Definition,
		&ex.Status,
		&ex.FailureReason,
		&ex.StartedAt,
		&ex.CompletedAt,
		&ex.Created,
		&ex.Modified,
	)
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (r *ExecutionRepository) Save(ex *domain.WorkflowExecution) error {
	query := `
		INSERT INTO executions (
			id, workflow_id, tenant_id, subject_id, trigger_data, definition,
			status, failure_reason, started_at, completed_at, created, modified
		) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `,
		          ` + placeholder(7) + `, ` + placeholder(8) + `, ` + placeholder(9) + `, ` + placeholder(10) + `, ` + placeholder(11) + `, ` + placeholder(12) + `)
	`
	_, err := r.db.Exec(query,
		ex.ID, ex.WorkflowID, ex.TenantID, ex.SubjectID, ex.TriggerData, ex.Definition,
		ex.Status, ex.FailureReason,
		formatDateInDatabaseNull(ex.StartedAt), formatDateInDatabaseNull(ex.CompletedAt),
		formatDateInDatabase(ex.Created), formatDateInDatabase(ex.Modified))
	return err
}

func (r *ExecutionRepository) FindByID(tenantID string, id string) (*domain.WorkflowExecution, error) {
	query := `
		SELECT ` + EXECUTION_COLUMNS + `
		FROM executions WHERE id = ` + placeholder(1) + ` AND tenant_id = ` + placeholder(2) + `
	`
	row := r.db.QueryRow(query, id, tenantID)
	ex, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// GetByID fetches by primary key without tenant scoping. Engine internal;
// the API goes through FindByID.
func (r *ExecutionRepository) GetByID(id string) (*domain.WorkflowExecution, error) {
	query := `
		SELECT ` + EXECUTION_COLUMNS + `
		FROM executions WHERE id = ` + placeholder(1) + `
	`
	row := r.db.QueryRow(query, id)
	ex, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// UpdateStatusGuarded moves an execution from one status to another and
// reports whether this caller won. The WHERE clause on the previous status
// is the forward-only guard; a second engine loses on rowsAffected.
func (r *ExecutionRepository) UpdateStatusGuarded(id string, from string, to string) (bool, error) {
	query := `
		UPDATE executions
		SET status = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
	`
	if to == domain.ExecutionRunning {
		query += `, started_at = ` + nowFunc(r.clock)
	}
	query += `
		WHERE id = ` + placeholder(2) + ` AND status = ` + placeholder(3) + `
	`
	res, err := r.db.Exec(query, to, id, from)
	if err != nil {
		return false, err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// SetFinalized stamps the terminal status, completed_at and an optional
// failure reason, guarded on the row still being RUNNING.
func (r *ExecutionRepository) SetFinalized(id string, status string, failureReason sql.NullString) (bool, error) {
	query := `
		UPDATE executions
		SET status = ` + placeholder(1) + `, failure_reason = ` + placeholder(2) + `,
		    completed_at = ` + nowFunc(r.clock) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(3) + ` AND status = ` + placeholder(4) + `
	`
	res, err := r.db.Exec(query, status, failureReason, id, domain.ExecutionRunning)
	if err != nil {
		return false, err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// InsertActionResult appends one action outcome to the trail. Replays of the
// same (execution, index) pair are silently ignored so a duplicate wake-up
// never duplicates history.
func (r *ExecutionRepository) InsertActionResult(action *domain.ExecutionAction) error {
	query := insertVerb() + ` INTO execution_actions (
			execution_id, action_index, action_type, outcome, reason, date_time
		) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `)` +
		conflictIgnore("execution_id, action_index")
	_, err := r.db.Exec(query,
		action.ExecutionID, action.ActionIndex, action.ActionType, action.Outcome,
		action.Reason, formatDateInDatabase(action.DateTime))
	return err
}

func (r *ExecutionRepository) FindActionsByExecutionID(executionID string) (*[]domain.ExecutionAction, error) {
	query := `
		SELECT id, execution_id, action_index, action_type, outcome, reason, date_time
		FROM execution_actions
		WHERE execution_id = ` + placeholder(1) + `
		ORDER BY action_index ASC
	`
	rows, err := r.db.Query(query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.ExecutionAction
	for rows.Next() {
		var a domain.ExecutionAction
		err := rows.Scan(&a.ID, &a.ExecutionID, &a.ActionIndex, &a.ActionType, &a.Outcome, &a.Reason, &a.DateTime)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return &actions, rows.Err()
}

// SearchExecutions filters the ledger by the optional criteria in the
// request. TenantID is mandatory, everything else narrows.
func (r *ExecutionRepository) SearchExecutions(req *models.SearchExecutionsRequest) (*[]domain.WorkflowExecution, error) {
	var conditions []string
	var args []interface{}
	idx := 1

	conditions = append(conditions, "tenant_id = "+placeholder(idx))
	args = append(args, req.TenantID)
	idx++

	if req.WorkflowID != 0 {
		conditions = append(conditions, "workflow_id = "+placeholder(idx))
		args = append(args, req.WorkflowID)
		idx++
	}
	if req.SubjectID != "" {
		conditions = append(conditions, "subject_id = "+placeholder(idx))
		args = append(args, req.SubjectID)
		idx++
	}
	if req.Status != "" {
		conditions = append(conditions, "status = "+placeholder(idx))
		args = append(args, req.Status)
		idx++
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + EXECUTION_COLUMNS + `
		FROM executions
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created DESC
		LIMIT ` + placeholder(idx) + ` OFFSET ` + placeholder(idx+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []domain.WorkflowExecution
	for rows.Next() {
		ex, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *ex)
	}
	return &executions, rows.Err()
}
