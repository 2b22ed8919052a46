package repository

import "context"

// FeatureConfigRepository es la fuente de configuración por tenant.
//
// GetConfig retorna el documento crudo (JSON) de un feature del tenant,
// o ErrNotFound si el tenant no lo tiene configurado. La validación y
// los defaults los aplica tenantconfig, no el store.
type FeatureConfigRepository interface {
	GetConfig(ctx context.Context, tenantID, featureKey string) ([]byte, error)
}
