package repository

import (
	"context"
	"time"
)

// RefreshToken representa un token de refresco emitido por el issuer externo.
type RefreshToken struct {
	ID        string
	UserID    string
	TenantID  string
	ClientID  string // client_id texto (no UUID)
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Usable reporta si el token no está revocado ni vencido en now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// RefreshTokenRepository es la vista de solo lectura sobre refresh tokens.
// La emisión y rotación pertenecen al token issuer.
type RefreshTokenRepository interface {
	// GetByHash busca un token por su hash.
	// Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tenantID, tokenHash string) (*RefreshToken, error)
}
