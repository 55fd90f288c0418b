package repository

import (
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

type UserRepository struct {
	db    *sql.DB
	clock core.Clock
}

const USER_COLUMNS = ` id, username, password, session_id, api_key, session_expiry, created, enabled `

func NewUserRepository(db *sql.DB, clock core.Clock) *UserRepository {
	return &UserRepository{db: db, clock: clock}
}

func scanUser(scan func(dest ...any) error) (*domain.User, error) {
	var u domain.User
	err := scan(&u.ID, &u.Username, &u.Password, &u.SessionID, &u.ApiKey, &u.SessionExpiry, &u.Created, &u.Enabled)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Save(u *domain.User) (int64, error) {
	base := `
		INSERT INTO users (username, password, session_id, api_key, session_expiry, created, enabled)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `,
		        ` + placeholder(5) + `, ` + nowFunc(r.clock) + `, ` + placeholder(6) + `)
	`
	var err error
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, u.Username, u.Password, u.SessionID, u.ApiKey,
			formatDateInDatabaseNull(u.SessionExpiry), u.Enabled).Scan(&u.ID)
	} else {
		res, e := r.db.Exec(base, u.Username, u.Password, u.SessionID, u.ApiKey,
			formatDateInDatabaseNull(u.SessionExpiry), u.Enabled)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				u.ID = id
			}
		}
	}
	return u.ID, err
}

func (r *UserRepository) FindByUsername(username string) (*domain.User, error) {
	query := `
		SELECT ` + USER_COLUMNS + ` FROM users WHERE username = ` + placeholder(1) + `
	`
	row := r.db.QueryRow(query, username)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) FindByID(id int64) (*domain.User, error) {
	query := `
		SELECT ` + USER_COLUMNS + ` FROM users WHERE id = ` + placeholder(1) + `
	`
	row := r.db.QueryRow(query, id)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindBySessionID only returns a user whose session has not expired yet.
func (r *UserRepository) FindBySessionID(sessionID string, now time.Time) (*domain.User, error) {
	query := `
		SELECT ` + USER_COLUMNS + ` FROM users
		WHERE session_id = ` + placeholder(1) + ` AND session_expiry > ` + placeholder(2) + `
	`
	row := r.db.QueryRow(query, sessionID, formatDateInDatabase(now))
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) FindByApiKey(apiKey string) (*domain.User, error) {
	query := `
		SELECT ` + USER_COLUMNS + ` FROM users WHERE api_key = ` + placeholder(1) + `
	`
	row := r.db.QueryRow(query, apiKey)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) UpdateSession(id int64, sessionID string, expiry sql.NullTime) error {
	query := `
		UPDATE users
		SET session_id = ` + placeholder(1) + `, session_expiry = ` + placeholder(2) + `
		WHERE id = ` + placeholder(3) + `
	`
	_, err := r.db.Exec(query, sessionID, formatDateInDatabaseNull(expiry), id)
	return err
}

func (r *UserRepository) ClearSessionBySessionID(sessionID string) error {
	query := `
		UPDATE users SET session_id = NULL, session_expiry = NULL WHERE session_id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, sessionID)
	return err
}

func (r *UserRepository) FindAll() (*[]domain.User, error) {
	query := `
		SELECT ` + USER_COLUMNS + ` FROM users ORDER BY id ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return &users, rows.Err()
}

func (r *UserRepository) DeleteByID(id int64) error {
	query := `
		DELETE FROM users WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// CountUsers is used at startup to decide whether to bootstrap an admin user.
func (r *UserRepository) CountUsers() (int64, error) {
	var count int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
