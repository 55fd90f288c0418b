package repository

import (
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// EngineRepository tracks running engine instances so the status endpoint
// and the stuck-continuation repair loop know who is alive.
type EngineRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewEngineRepository(db *sql.DB, clock core.Clock) *EngineRepository {
	return &EngineRepository{db: db, clock: clock}
}

func (r *EngineRepository) Save(e *domain.EngineInstance) (int64, error) {
	base := `
		INSERT INTO engines (name, started, last_active)
		VALUES (` + placeholder(1) + `, ` + nowFunc(r.clock) + `, ` + nowFunc(r.clock) + `)
	`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, e.Name).Scan(&e.ID)
	} else {
		res, e2 := r.db.Exec(base, e.Name)
		if e2 != nil {
			err = e2
		} else {
			id, e3 := res.LastInsertId()
			if e3 != nil {
				err = e3
			} else {
				e.ID = id
			}
		}
	}
	return e.ID, err
}

func (r *EngineRepository) UpdateLastActive(id int64) error {
	query := `
		UPDATE engines SET last_active = ` + nowFunc(r.clock) + ` WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// GetByLastActive lists engines seen within the last maxAgeMinutes.
func (r *EngineRepository) GetByLastActive(maxAgeMinutes int) (*[]domain.EngineInstance, error) {
	cutoff := r.clock.Now().UTC().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	query := `
		SELECT id, name, started, last_active
		FROM engines
		WHERE last_active > ` + placeholder(1) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, formatDateInDatabase(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var engines []domain.EngineInstance
	for rows.Next() {
		var e domain.EngineInstance
		err := rows.Scan(&e.ID, &e.Name, &e.Started, &e.LastActive)
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	return &engines, rows.Err()
}

func (r *EngineRepository) DeleteByID(id int64) error {
	query := `
		DELETE FROM engines WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}
