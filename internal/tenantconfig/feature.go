package tenantconfig

import (
	"encoding/json"
	"fmt"
)

// FeatureKey es el nombre de un sub-config del tenant. Conjunto cerrado.
type FeatureKey string

const (
	KeyPasswordPinBlock FeatureKey = "password_pin_block"
	KeyBiometric        FeatureKey = "biometric"
	KeyToken            FeatureKey = "token"
	KeyIDPGoogle        FeatureKey = "idp_google"
	KeyIDPApple         FeatureKey = "idp_apple"
	KeyIDPMicrosoft     FeatureKey = "idp_microsoft"
)

// Keys lista todas las features conocidas.
var Keys = []FeatureKey{
	KeyPasswordPinBlock,
	KeyBiometric,
	KeyToken,
	KeyIDPGoogle,
	KeyIDPApple,
	KeyIDPMicrosoft,
}

// ParseKey valida un nombre de feature recibido de afuera.
func ParseKey(s string) (FeatureKey, bool) {
	for _, k := range Keys {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Feature describe cómo decodificar y normalizar un sub-config.
type Feature[T any] struct {
	Key FeatureKey
	// Normalize aplica defaults y valida. Un error ⇒ el config se trata como ausente.
	Normalize func(*T) error
}

func (f Feature[T]) decode(raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", f.Key, err)
	}
	if f.Normalize != nil {
		if err := f.Normalize(&v); err != nil {
			return v, fmt.Errorf("validate %s: %w", f.Key, err)
		}
	}
	return v, nil
}

// Result es el resultado de una búsqueda opcional: Found(Config) o NotConfigured.
type Result[T any] struct {
	Found  bool
	Config T
}

// Features predefinidas.
var (
	PasswordPinBlock = Feature[PasswordPinBlockPolicy]{Key: KeyPasswordPinBlock, Normalize: (*PasswordPinBlockPolicy).normalize}
	Biometric        = Feature[BiometricPolicy]{Key: KeyBiometric, Normalize: (*BiometricPolicy).normalize}
	Token            = Feature[TokenPolicy]{Key: KeyToken, Normalize: (*TokenPolicy).normalize}
	Google           = Feature[IdentityProviderPolicy]{Key: KeyIDPGoogle, Normalize: (*IdentityProviderPolicy).normalize}
	Apple            = Feature[IdentityProviderPolicy]{Key: KeyIDPApple, Normalize: (*IdentityProviderPolicy).normalize}
	Microsoft        = Feature[IdentityProviderPolicy]{Key: KeyIDPMicrosoft, Normalize: (*IdentityProviderPolicy).normalize}
)

// Validate decodifica y normaliza raw como lo haría el registry. Lo usan las
// herramientas que escriben configs antes de persistirlas.
func Validate(key FeatureKey, raw []byte) error {
	var err error
	switch key {
	case KeyPasswordPinBlock:
		_, err = PasswordPinBlock.decode(raw)
	case KeyBiometric:
		_, err = Biometric.decode(raw)
	case KeyToken:
		_, err = Token.decode(raw)
	case KeyIDPGoogle:
		_, err = Google.decode(raw)
	case KeyIDPApple:
		_, err = Apple.decode(raw)
	case KeyIDPMicrosoft:
		_, err = Microsoft.decode(raw)
	default:
		err = fmt.Errorf("unknown feature %q", key)
	}
	return err
}
