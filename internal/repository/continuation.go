package repository

import (
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// ContinuationRepository stores the wake-up calendar: one row per suspended
// execution, keyed by the action index to resume at and the time it is due.
type ContinuationRepository struct {
	db    *sql.DB
	clock core.Clock
}

const CONTINUATION_COLUMNS = ` id, execution_id, action_index, due_time, engine_id, created, modified `

func NewContinuationRepository(db *sql.DB, clock core.Clock) *ContinuationRepository {
	return &ContinuationRepository{db: db, clock: clock}
}

func scanContinuation(scan func(dest ...any) error) (*domain.Continuation, error) {
	var c domain.Continuation
	err := scan(&c.ID, &c.ExecutionID, &c.ActionIndex, &c.DueTime, &c.EngineID, &c.Created, &c.Modified)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContinuationRepository) Save(c *domain.Continuation) (int64, error) {
	base := `
		INSERT INTO continuations (execution_id, action_index, due_time, engine_id, created, modified)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, NULL, ` + nowFunc(r.clock) + `, ` + nowFunc(r.clock) + `)
	`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, c.ExecutionID, c.ActionIndex, formatDateInDatabase(c.DueTime)).Scan(&c.ID)
	} else {
		res, e := r.db.Exec(base, c.ExecutionID, c.ActionIndex, formatDateInDatabase(c.DueTime))
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				c.ID = id
			}
		}
	}
	return c.ID, err
}

// FindDue returns up to batchSize unclaimed continuations whose due_time has
// passed, oldest first.
func (r *ContinuationRepository) FindDue(batchSize int) (*[]domain.Continuation, error) {
	query := `
		SELECT ` + CONTINUATION_COLUMNS + `
		FROM continuations
		WHERE ` + dateBeforeNow("due_time", r.clock) + `
		  AND engine_id IS NULL
		ORDER BY due_time ASC
		LIMIT ` + placeholder(1) + `
	`
	rows, err := r.db.Query(query, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var continuations []domain.Continuation
	for rows.Next() {
		c, err := scanContinuation(rows.Scan)
		if err != nil {
			return nil, err
		}
		continuations = append(continuations, *c)
	}
	return &continuations, rows.Err()
}

// Claim marks a continuation as owned by this engine. The compare-and-set on
// the modified timestamp means only one of several competing engines wins.
func (r *ContinuationRepository) Claim(c *domain.Continuation, engineID int64) (bool, error) {
	query := `
		UPDATE continuations
		SET engine_id = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + ` AND engine_id IS NULL AND modified = ` + placeholder(3) + `
	`
	res, err := r.db.Exec(query, engineID, c.ID, formatDateInDatabase(c.Modified))
	if err != nil {
		return false, err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// Unclaim releases a claimed continuation back to the pool so another poll
// cycle can pick it up.
func (r *ContinuationRepository) Unclaim(id int64) error {
	query := `
		UPDATE continuations
		SET engine_id = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// FindStuck returns claimed continuations whose claim has gone quiet for
// longer than the repair threshold, typically because their engine died
// mid-resume.
func (r *ContinuationRepository) FindStuck(olderThanMinutes int) (*[]domain.Continuation, error) {
	cutoff := r.clock.Now().Add(-time.Duration(olderThanMinutes) * time.Minute)
	cutoffClock := core.FixedClock{FixedTime: cutoff}
	query := `
		SELECT ` + CONTINUATION_COLUMNS + `
		FROM continuations
		WHERE engine_id IS NOT NULL
		  AND ` + dateBeforeNow("modified", cutoffClock) + `
		ORDER BY due_time ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var continuations []domain.Continuation
	for rows.Next() {
		c, err := scanContinuation(rows.Scan)
		if err != nil {
			return nil, err
		}
		continuations = append(continuations, *c)
	}
	return &continuations, rows.Err()
}

func (r *ContinuationRepository) DeleteByID(id int64) error {
	query := `
		DELETE FROM continuations WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *ContinuationRepository) FindByExecutionID(executionID string) (*[]domain.Continuation, error) {
	query := `
		SELECT ` + CONTINUATION_COLUMNS + `
		FROM continuations
		WHERE execution_id = ` + placeholder(1) + `
		ORDER BY action_index ASC
	`
	rows, err := r.db.Query(query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var continuations []domain.Continuation
	for rows.Next() {
		c, err := scanContinuation(rows.Scan)
		if err != nil {
			return nil, err
		}
		continuations = append(continuations, *c)
	}
	return &continuations, rows.Err()
}
