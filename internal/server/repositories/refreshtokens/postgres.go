package refreshtokens

import (
	"context"
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

func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) error {

	query :=
		`INSERT INTO refresh_tokens (token_digest, access_token_id, user_id, created_at, created_by_ip, expires_at)
         VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		t.Digest, t.AccessTokenID, t.UserID, t.CreatedAt, t.CreatedByIP, t.ExpiresAt).Scan(&t.ID)

	if err != nil {
		return dbx.StoreError(err)
	}

	return nil
}

func (r *PostgresRepository) FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	query :=
		`SELECT id, token_digest, access_token_id, user_id, created_at, created_by_ip, expires_at,
		        revoked_at, revoked_by_ip, replaced_by_token_id, used
		 FROM refresh_tokens
		 WHERE token_digest = $1
		 `

	t := &models.RefreshToken{}
	if err := sqlscan.Get(ctx, r.db, t, query, digest); err != nil {
		if sqlscan.NotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, dbx.StoreError(err)
	}

	return t, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, at time.Time, ip string) (bool, error) {
	query :=
		`UPDATE refresh_tokens
		 SET used = true, revoked_at = $2, revoked_by_ip = $3
		 WHERE id = $1 AND used = false AND revoked_at IS NULL
		 `

	n, err := r.exec(ctx, query, id, at, ip)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) SetReplacedBy(ctx context.Context, id, successorID string) error {
	query :=
		`UPDATE refresh_tokens SET replaced_by_token_id = $2
		 WHERE id = $1
		 `

	n, err := r.exec(ctx, query, id, successorID)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time, ip string) error {
	query :=
		`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3
		 WHERE id = $1 AND revoked_at IS NULL
		 `

	_, err := r.exec(ctx, query, id, at, ip)
	return err
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time, ip string) (int64, error) {
	query :=
		`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3
		 WHERE user_id = $1 AND revoked_at IS NULL
		 `

	return r.exec(ctx, query, userID, at, ip)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, dbx.StoreError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.StoreError(err)
	}
	return n, nil
}
