// Package users provides a PostgreSQL-backed repository for account rows.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/dbx"
	"github.com/mvrcrypto/customapi/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, username, picture_uri, salt, password_hash, hash_version`

// Create inserts a new account row. Email is lowercased on the way in; the
// unique index on lower(email) rejects a concurrent duplicate.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, username, picture_uri, salt, password_hash, hash_version)
		VALUES (lower($1), $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PictureURI, user.Salt, user.PasswordHash, user.HashVersion).
		Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Email = strings.ToLower(user.Email)
	return user, nil
}

// GetByID returns the account row with the given id, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks an account up case-insensitively by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// EmailTaken reports whether email is registered, optionally excluding one
// account (for updates against the requester's own row).
func (r *PostgresRepository) EmailTaken(ctx context.Context, email string, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`
	args := []any{email}
	if excludeID != "" {
		query = `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`
		args = append(args, excludeID)
	}
	var taken bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

// UsernameTaken reports whether username is in use, optionally excluding one
// account. There is no store-level uniqueness constraint for usernames, so
// two concurrent writers can still both pass this check.
func (r *PostgresRepository) UsernameTaken(ctx context.Context, username string, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	args := []any{username}
	if excludeID != "" {
		query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`
		args = append(args, excludeID)
	}
	var taken bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

// Update writes only the fields supplied in patch. A patch with nothing set
// is a no-op. Updating a missing row yields common.ErrorNotFound.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch *Patch) error {
	var set []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Email != nil {
		add("email", strings.ToLower(*patch.Email))
	}
	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.PictureURI != nil {
		add("picture_uri", *patch.PictureURI)
	}
	if patch.SetCredentials {
		add("salt", patch.Salt)
		add("password_hash", patch.PasswordHash)
		add("hash_version", patch.HashVersion)
	}

	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes the account row. Token rows cascade via the FK.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PictureURI,
		&user.Salt, &user.PasswordHash, &user.HashVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
