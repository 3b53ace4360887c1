package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/dbx"
	"github.com/dmitrijs2005/blindauth/internal/server/models"
	"github.com/georgysavva/scany/v2/sqlscan"
)

const userColumns = `id, name, email, password_hash, email_verified, deleted, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (name, email, password_hash, email_verified)
         VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.EmailVerified).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, dbx.StoreError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE lower(email) = lower($1) AND deleted = false
		 `
	return r.get(ctx, query, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1 AND deleted = false
		 `
	return r.get(ctx, query, id)
}

func (r *PostgresRepository) LockByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1 AND deleted = false
		 FOR UPDATE
		 `
	return r.get(ctx, query, id)
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET email_verified = true
		 WHERE id = $1 AND deleted = false
		 `
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET deleted = true
		 WHERE id = $1 AND deleted = false
		 `
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	if err := sqlscan.Get(ctx, r.db, user, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, dbx.StoreError(err)
	}
	return user, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbx.StoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.StoreError(err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", args[0], common.ErrNotFound)
	}
	return nil
}
