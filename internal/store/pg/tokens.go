package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// RefreshTokens lee la tabla refresh_token que mantiene el token issuer.
type RefreshTokens struct{ pool *pgxpool.Pool }

var refreshTokenTable = table[repository.RefreshToken]{
	name:    "refresh_token",
	columns: []string{"id", "tenant_id", "client_id", "user_id", "token_hash", "issued_at", "expires_at", "revoked_at"},
	scan: func(row pgx.Row) (*repository.RefreshToken, error) {
		var t repository.RefreshToken
		if err := row.Scan(&t.ID, &t.TenantID, &t.ClientID, &t.UserID, &t.TokenHash,
			&t.IssuedAt, &t.ExpiresAt, &t.RevokedAt); err != nil {
			return nil, err
		}
		return &t, nil
	},
}

func (r *RefreshTokens) GetByHash(ctx context.Context, tenantID, tokenHash string) (*repository.RefreshToken, error) {
	return refreshTokenTable.one(ctx, r.pool,
		refreshTokenTable.selectWhere("tenant_id = $1 AND token_hash = $2"), tenantID, tokenHash)
}

var _ repository.RefreshTokenRepository = (*RefreshTokens)(nil)
