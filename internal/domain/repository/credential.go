package repository

import (
	"context"
	"time"
)

// Credential es una credencial biométrica enrolada.
//
// Estados: ENROLLED (FirstUseComplete=false) → ACTIVE → REVOKED (terminal).
type Credential struct {
	ID               string // uuid de fila
	TenantID         string
	CredentialID     string // único por tenant, lo elige el dispositivo
	UserID           string
	DeviceID         string
	Platform         string
	PublicKey        string // forma codificada tal como se recibió
	BindingType      string
	Alg              string
	SignCount        uint64
	AAGUID           string
	IsActive         bool
	FirstUseComplete bool
	DeviceName       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastUsedAt       *time.Time
}

// CredentialRepository persiste credenciales biométricas.
type CredentialRepository interface {
	// Create inserta la credencial. ErrConflict si el credential_id ya existe en el tenant.
	Create(ctx context.Context, c Credential) error

	// Get retorna la credencial (activa o no). ErrNotFound si no existe.
	Get(ctx context.Context, tenantID, credentialID string) (*Credential, error)

	// FindActiveByDevice retorna la credencial activa más reciente del
	// usuario en ese dispositivo. ErrNotFound si no hay.
	FindActiveByDevice(ctx context.Context, tenantID, userID, deviceID string) (*Credential, error)

	// CompareAndSetSignCount escribe next solo si el valor guardado es expected
	// y la credencial sigue activa; marca first_use_complete. Un solo UPDATE
	// condicional. ErrConflict si no coincide o está revocada.
	CompareAndSetSignCount(ctx context.Context, tenantID, credentialID string, expected, next uint64, usedAt time.Time) (*Credential, error)

	// Revoke desactiva la credencial. Nunca reactiva. ErrNotFound si no existe.
	Revoke(ctx context.Context, tenantID, credentialID string, at time.Time) error
}
