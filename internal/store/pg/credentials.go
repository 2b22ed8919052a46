package pg

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

type Credentials struct{ pool *pgxpool.Pool }

var credentialTable = table[repository.Credential]{
	name: "biometric_credential",
	columns: []string{
		"id", "tenant_id", "credential_id", "user_id", "device_id", "platform",
		"public_key", "binding_type", "alg", "sign_count", "aaguid", "is_active",
		"first_use_complete", "device_name", "created_at", "updated_at", "last_used_at",
	},
	scan: func(row pgx.Row) (*repository.Credential, error) {
		var (
			c         repository.Credential
			signCount int64
		)
		err := row.Scan(&c.ID, &c.TenantID, &c.CredentialID, &c.UserID, &c.DeviceID, &c.Platform,
			&c.PublicKey, &c.BindingType, &c.Alg, &signCount, &c.AAGUID, &c.IsActive,
			&c.FirstUseComplete, &c.DeviceName, &c.CreatedAt, &c.UpdatedAt, &c.LastUsedAt)
		if err != nil {
			return nil, err
		}
		c.SignCount = uint64(signCount) // CHECK (sign_count >= 0)
		return &c, nil
	},
}

func (r *Credentials) Create(ctx context.Context, c repository.Credential) error {
	if c.SignCount > math.MaxInt64 {
		return repository.ErrInvalidInput
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO biometric_credential
			(id, tenant_id, credential_id, user_id, device_id, platform, public_key, binding_type,
			 alg, sign_count, aaguid, is_active, first_use_complete, device_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID, c.TenantID, c.CredentialID, c.UserID, c.DeviceID, c.Platform, c.PublicKey, c.BindingType,
		c.Alg, int64(c.SignCount), c.AAGUID, c.IsActive, c.FirstUseComplete, c.DeviceName, c.CreatedAt, c.UpdatedAt,
	)
	return mapErr(err)
}

func (r *Credentials) Get(ctx context.Context, tenantID, credentialID string) (*repository.Credential, error) {
	return credentialTable.one(ctx, r.pool,
		credentialTable.selectWhere("tenant_id = $1 AND credential_id = $2"), tenantID, credentialID)
}

func (r *Credentials) FindActiveByDevice(ctx context.Context, tenantID, userID, deviceID string) (*repository.Credential, error) {
	return credentialTable.one(ctx, r.pool,
		credentialTable.selectWhere("tenant_id = $1 AND user_id = $2 AND device_id = $3 AND is_active")+
			" ORDER BY created_at DESC LIMIT 1",
		tenantID, userID, deviceID)
}

// CompareAndSetSignCount es un único UPDATE condicional. Sin fila ⇒ otro
// escritor ganó o la credencial fue revocada: ErrConflict, nunca sobrescribe.
func (r *Credentials) CompareAndSetSignCount(ctx context.Context, tenantID, credentialID string, expected, next uint64, usedAt time.Time) (*repository.Credential, error) {
	if expected > math.MaxInt64 || next > math.MaxInt64 {
		return nil, repository.ErrInvalidInput
	}
	query := `
		UPDATE biometric_credential
		SET sign_count = $4, first_use_complete = TRUE, updated_at = $5, last_used_at = $5
		WHERE tenant_id = $1 AND credential_id = $2 AND sign_count = $3 AND is_active
		RETURNING ` + credentialTable.cols()
	c, err := credentialTable.one(ctx, r.pool, query, tenantID, credentialID, int64(expected), int64(next), usedAt)
	if repository.IsNotFound(err) {
		return nil, repository.ErrConflict
	}
	return c, err
}

// Revoke es idempotente y nunca reactiva.
func (r *Credentials) Revoke(ctx context.Context, tenantID, credentialID string, at time.Time) error {
	const query = `
		UPDATE biometric_credential
		SET updated_at = CASE WHEN is_active THEN $3 ELSE updated_at END, is_active = FALSE
		WHERE tenant_id = $1 AND credential_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, tenantID, credentialID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.CredentialRepository = (*Credentials)(nil)
