package biometric

import (
	"context"
	"time"

	"github.com/dropDatabas3/trustcore/internal/challenge"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

type ChallengeRequest struct {
	RefreshToken   string                   `json:"refresh_token"`
	ClientID       string                   `json:"client_id"`
	DeviceMetadata challenge.DeviceMetadata `json:"device_metadata"`
}

type ChallengeResponse struct {
	State        string `json:"state"`
	Challenge    string `json:"challenge"`
	ExpiresIn    int    `json:"expires_in"`
	CredentialID string `json:"credential_id,omitempty"`
}

type CompletionRequest struct {
	RefreshToken   string                   `json:"refresh_token"`
	State          string                   `json:"state"`
	ClientID       string                   `json:"client_id"`
	CredentialID   string                   `json:"credential_id"`
	PublicKey      string                   `json:"public_key"`
	Signature      string                   `json:"signature"`
	Alg            string                   `json:"alg,omitempty"`          // default ES256
	BindingType    string                   `json:"binding_type,omitempty"` // default biometric
	AAGUID         string                   `json:"aaguid,omitempty"`
	DeviceMetadata challenge.DeviceMetadata `json:"device_metadata"`
}

type LoginRequest struct {
	ClientID      string `json:"client_id"`
	CredentialID  string `json:"credential_id"`
	SignedPayload string `json:"signed_payload"`
	Signature     string `json:"signature"`
	Counter       uint64 `json:"counter"`
}

const (
	VerdictEnrollment = "enrollment"
	VerdictLogin      = "login"
)

// Verdict es lo que sale del core hacia el token issuer y la auditoría.
type Verdict struct {
	Kind            string    `json:"kind"`
	TenantID        string    `json:"tenant_id"`
	ClientID        string    `json:"client_id"`
	UserID          string    `json:"user_id"`
	CredentialID    string    `json:"credential_id"`
	DeviceID        string    `json:"device_id"`
	FirstUse        bool      `json:"first_use"`
	TrustEscalation bool      `json:"trust_escalation"`
	DecidedAt       time.Time `json:"decided_at"`
	// RefreshTokenHash: token de continuidad de sesión ligado en el enrolamiento.
	RefreshTokenHash string `json:"-"`
	// TokenPolicy es la feature "token" del tenant, nil si no está configurada.
	TokenPolicy *tenantconfig.TokenPolicy `json:"-"`
	// Tokens es la respuesta del issuer, si hay uno configurado.
	Tokens any `json:"tokens,omitempty"`
}

// TokenIssuer convierte un veredicto en la respuesta de tokens para el usuario.
// Vive fuera del core.
type TokenIssuer interface {
	Issue(ctx context.Context, v Verdict) (any, error)
}
