package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/livefeed/backend/internal/models"
)

const (
	pgUniqueViolation = "23505"
	pgInvalidTextRepr = "22P02"
	userColumns       = `id, email, name, password, status, post_ids, created_at`
)

// PostgresStore handles user CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users and uploads tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email      VARCHAR(255) UNIQUE NOT NULL,
			name       VARCHAR(100) NOT NULL,
			password   VARCHAR(255) NOT NULL,
			status     TEXT         NOT NULL DEFAULT 'I am new!',
			post_ids   TEXT[]       NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ  DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS uploads (
			path       TEXT PRIMARY KEY,
			owner_id   UUID        NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate uploads: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, name, hashedPassword string) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		email, name, hashedPassword, models.DefaultStatus,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUsersByIDs loads every user in ids, keyed by id. Unknown ids are
// skipped.
func (s *PostgresStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return out, nil
}

// AppendPost adds postID to the user's post list.
func (s *PostgresStore) AppendPost(ctx context.Context, userID, postID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET post_ids = array_append(post_ids, $2) WHERE id = $1`,
		userID, postID,
	)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, userID, status string) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET status = $2 WHERE id = $1 RETURNING `+userColumns,
		userID, status,
	)
	return scanUser(row)
}

// RecordUpload stores who uploaded the image at path.
func (s *PostgresStore) RecordUpload(ctx context.Context, path, ownerID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO uploads (path, owner_id) VALUES ($1, $2)`, path, ownerID)
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *PostgresStore) UploadOwner(ctx context.Context, path string) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT owner_id::text FROM uploads WHERE path = $1`, path).Scan(&owner)
	if err != nil {
		return "", mapPgErr(err)
	}
	return owner, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.Status, &u.PostIDs, &u.CreatedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func mapPgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgInvalidTextRepr:
			// Malformed uuid in a lookup.
			return ErrNotFound
		}
	}
	return err
}
