package repository

import (
	"context"
	"time"
)

// DeviceMetadata describe el dispositivo que firma el challenge.
type DeviceMetadata struct {
	Platform    string `json:"platform"` // ios | android
	DeviceID    string `json:"device_id"`
	DeviceModel string `json:"device_model,omitempty"`
	OSVersion   string `json:"os_version,omitempty"`
	AppVersion  string `json:"app_version,omitempty"`
	DeviceName  string `json:"device_name,omitempty"`
}

// Challenge es un challenge biométrico pendiente.
// Solo hay uno vivo por (tenant, client, user, device).
type Challenge struct {
	TenantID string         `json:"tenant_id"`
	ClientID string         `json:"client_id"`
	UserID   string         `json:"user_id"`
	Device   DeviceMetadata `json:"device"`
	State    string         `json:"state"`
	// RefreshTokenHash es SHA256Base64URL del refresh token; nunca el token crudo.
	RefreshTokenHash string    `json:"refresh_token_hash"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Expired aplica la expiración perezosa.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ChallengeRepository persiste challenges.
type ChallengeRepository interface {
	// Put guarda el challenge reemplazando el vivo para la misma
	// (tenant, client, user, device). El state anterior deja de existir.
	Put(ctx context.Context, ch Challenge) error

	// Take busca y borra atómicamente el challenge por state.
	// Retorna ErrNotFound si no existe. No mira la expiración.
	Take(ctx context.Context, tenantID, clientID, state string) (*Challenge, error)
}
