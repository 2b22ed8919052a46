package tenantconfig

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// PasswordPinBlockPolicy: política de bloqueo por intentos fallidos.
type PasswordPinBlockPolicy struct {
	AttemptsAllowed       int `json:"attempts_allowed"`
	AttemptsWindowSeconds int `json:"attempts_window_seconds"`
	BlockIntervalSeconds  int `json:"block_interval_seconds"`
}

func (p *PasswordPinBlockPolicy) normalize() error {
	if p.AttemptsAllowed <= 0 {
		return errors.New("attempts_allowed must be positive")
	}
	if p.AttemptsWindowSeconds <= 0 {
		return errors.New("attempts_window_seconds must be positive")
	}
	if p.BlockIntervalSeconds <= 0 {
		return errors.New("block_interval_seconds must be positive")
	}
	return nil
}

// AttemptPolicy convierte la política a duraciones para el store.
func (p PasswordPinBlockPolicy) AttemptPolicy() repository.AttemptPolicy {
	return repository.AttemptPolicy{
		Allowed: p.AttemptsAllowed,
		Window:  time.Duration(p.AttemptsWindowSeconds) * time.Second,
		Block:   time.Duration(p.BlockIntervalSeconds) * time.Second,
	}
}

// Valores soportados por el verificador.
var (
	SupportedPlatforms    = []string{"ios", "android"}
	SupportedAlgorithms   = []string{"ES256", "ES384", "ES512", "RS256", "PS256", "EdDSA"}
	SupportedBindingTypes = []string{"biometric", "device_credential"}
)

// BiometricPolicy: política del login biométrico.
type BiometricPolicy struct {
	ChallengeTTLSeconds int      `json:"challenge_ttl_seconds"`
	AllowedPlatforms    []string `json:"allowed_platforms"`
	AllowedAlgorithms   []string `json:"allowed_algorithms"`
	AllowedBindingTypes []string `json:"allowed_binding_types"`
}

func (p *BiometricPolicy) normalize() error {
	if p.ChallengeTTLSeconds == 0 {
		p.ChallengeTTLSeconds = 120
	}
	if p.ChallengeTTLSeconds < 0 {
		return errors.New("challenge_ttl_seconds must be positive")
	}
	if len(p.AllowedPlatforms) == 0 {
		p.AllowedPlatforms = []string{"ios", "android"}
	}
	if len(p.AllowedAlgorithms) == 0 {
		p.AllowedAlgorithms = []string{"ES256", "RS256", "EdDSA"}
	}
	if len(p.AllowedBindingTypes) == 0 {
		p.AllowedBindingTypes = []string{"biometric", "device_credential"}
	}
	for i, v := range p.AllowedPlatforms {
		p.AllowedPlatforms[i] = strings.ToLower(strings.TrimSpace(v))
	}
	if err := subset("allowed_platforms", p.AllowedPlatforms, SupportedPlatforms); err != nil {
		return err
	}
	if err := subset("allowed_algorithms", p.AllowedAlgorithms, SupportedAlgorithms); err != nil {
		return err
	}
	return subset("allowed_binding_types", p.AllowedBindingTypes, SupportedBindingTypes)
}

func (p BiometricPolicy) ChallengeTTL() time.Duration {
	return time.Duration(p.ChallengeTTLSeconds) * time.Second
}

func (p BiometricPolicy) AllowsPlatform(v string) bool {
	return slices.Contains(p.AllowedPlatforms, strings.ToLower(v))
}

func (p BiometricPolicy) AllowsAlgorithm(v string) bool {
	return slices.Contains(p.AllowedAlgorithms, v)
}

func (p BiometricPolicy) AllowsBindingType(v string) bool {
	return slices.Contains(p.AllowedBindingTypes, v)
}

// TokenPolicy la consume el token issuer externo.
type TokenPolicy struct {
	AccessTokenTTLSeconds  int    `json:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds int    `json:"refresh_token_ttl_seconds"`
	Issuer                 string `json:"issuer,omitempty"`
}

func (p *TokenPolicy) normalize() error {
	if p.AccessTokenTTLSeconds == 0 {
		p.AccessTokenTTLSeconds = 900
	}
	if p.RefreshTokenTTLSeconds == 0 {
		p.RefreshTokenTTLSeconds = 2592000 // 30d
	}
	if p.AccessTokenTTLSeconds < 0 || p.RefreshTokenTTLSeconds < 0 {
		return errors.New("token ttl must be positive")
	}
	if p.RefreshTokenTTLSeconds < p.AccessTokenTTLSeconds {
		return errors.New("refresh_token_ttl_seconds must be >= access_token_ttl_seconds")
	}
	return nil
}

// IdentityProviderPolicy: una por cada idp_*.
type IdentityProviderPolicy struct {
	ClientID       string   `json:"client_id"`
	AllowedClients []string `json:"allowed_clients,omitempty"`
	Scopes         []string `json:"scopes,omitempty"`
}

func (p *IdentityProviderPolicy) normalize() error {
	p.ClientID = strings.TrimSpace(p.ClientID)
	if p.ClientID == "" {
		return errors.New("client_id is required")
	}
	if len(p.Scopes) == 0 {
		p.Scopes = []string{"openid", "email", "profile"}
	}
	return nil
}

// AllowsClient: lista vacía ⇒ todos los clients del tenant.
func (p IdentityProviderPolicy) AllowsClient(clientID string) bool {
	return len(p.AllowedClients) == 0 || slices.Contains(p.AllowedClients, clientID)
}

func subset(field string, got, allowed []string) error {
	for _, v := range got {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("%s: unsupported value %q", field, v)
		}
	}
	return nil
}
