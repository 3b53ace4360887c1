package verificationtokens

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/dbx"
	"github.com/dmitrijs2005/blindauth/internal/server/models"
	"github.com/georgysavva/scany/v2/sqlscan"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.EmailVerificationToken) error {
	query :=
		`INSERT INTO email_verification_tokens (token_digest, user_id, created_at, expires_at)
         VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	if err := r.db.QueryRowContext(ctx, query, t.Digest, t.UserID, t.CreatedAt, t.ExpiresAt).Scan(&t.ID); err != nil {
		return dbx.StoreError(err)
	}
	return nil
}

func (r *PostgresRepository) FindValid(ctx context.Context, userID, digest string, now time.Time) (*models.EmailVerificationToken, error) {
	query :=
		`SELECT id, token_digest, user_id, created_at, expires_at, verified_at
		 FROM email_verification_tokens
		 WHERE user_id = $1 AND token_digest = $2 AND verified_at IS NULL AND expires_at > $3
		 `

	t := &models.EmailVerificationToken{}
	if err := sqlscan.Get(ctx, r.db, t, query, userID, digest, now); err != nil {
		if sqlscan.NotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, dbx.StoreError(err)
	}
	return t, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	query :=
		`UPDATE email_verification_tokens SET verified_at = $2
		 WHERE id = $1 AND verified_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, dbx.StoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.StoreError(err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) LatestCreatedAt(ctx context.Context, userID string) (time.Time, error) {
	query :=
		`SELECT max(created_at) FROM email_verification_tokens
		 WHERE user_id = $1
		 `

	var latest sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&latest); err != nil {
		return time.Time{}, dbx.StoreError(err)
	}
	if !latest.Valid {
		return time.Time{}, common.ErrNotFound
	}
	return latest.Time, nil
}

func (r *PostgresRepository) DeleteUnused(ctx context.Context, userID string) (int64, error) {
	query :=
		`DELETE FROM email_verification_tokens
		 WHERE user_id = $1 AND verified_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, dbx.StoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.StoreError(err)
	}
	return n, nil
}
