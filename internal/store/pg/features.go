package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

type FeatureConfigs struct{ pool *pgxpool.Pool }

func (r *FeatureConfigs) GetConfig(ctx context.Context, tenantID, key string) ([]byte, error) {
	const query = `SELECT config FROM tenant_feature_config WHERE tenant_id = $1 AND feature_key = $2`
	var raw []byte
	err := r.pool.QueryRow(ctx, query, tenantID, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return raw, err
}

// PutConfig hace upsert del documento. Lo usa el comando de seed; el
// path de administración real es externo y llama a Registry.Invalidate.
func (r *FeatureConfigs) PutConfig(ctx context.Context, tenantID, key string, raw []byte) error {
	const query = `
		INSERT INTO tenant_feature_config (tenant_id, feature_key, config, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, feature_key) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, tenantID, key, raw)
	return err
}

var _ repository.FeatureConfigRepository = (*FeatureConfigs)(nil)
