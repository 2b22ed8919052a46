package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// Challenges: la PK es la clave viva (tenant, client, user, device), así el
// upsert reemplaza el challenge anterior en un solo statement.
type Challenges struct{ pool *pgxpool.Pool }

var challengeTable = table[repository.Challenge]{
	name: "biometric_challenge",
	columns: []string{
		"tenant_id", "client_id", "user_id", "device", "state",
		"refresh_token_hash", "created_at", "expires_at",
	},
	scan: func(row pgx.Row) (*repository.Challenge, error) {
		var ch repository.Challenge
		if err := row.Scan(&ch.TenantID, &ch.ClientID, &ch.UserID, &ch.Device, &ch.State,
			&ch.RefreshTokenHash, &ch.CreatedAt, &ch.ExpiresAt); err != nil {
			return nil, err
		}
		return &ch, nil
	},
}

func (r *Challenges) Put(ctx context.Context, ch repository.Challenge) error {
	const query = `
		INSERT INTO biometric_challenge
			(tenant_id, client_id, user_id, device_id, device, state, refresh_token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, client_id, user_id, device_id) DO UPDATE SET
			device = EXCLUDED.device,
			state = EXCLUDED.state,
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err := r.pool.Exec(ctx, query,
		ch.TenantID, ch.ClientID, ch.UserID, ch.Device.DeviceID, ch.Device, ch.State,
		ch.RefreshTokenHash, ch.CreatedAt, ch.ExpiresAt,
	)
	return mapErr(err)
}

// Take borra y devuelve en el mismo statement: dos completions concurrentes
// del mismo state nunca obtienen ambas la fila.
func (r *Challenges) Take(ctx context.Context, tenantID, clientID, state string) (*repository.Challenge, error) {
	query := `DELETE FROM biometric_challenge WHERE tenant_id = $1 AND client_id = $2 AND state = $3 RETURNING ` + challengeTable.cols()
	return challengeTable.one(ctx, r.pool, query, tenantID, clientID, state)
}

var _ repository.ChallengeRepository = (*Challenges)(nil)
