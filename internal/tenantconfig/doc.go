// Package tenantconfig resuelve la configuración de features por tenant.
//
// Cada feature es opcional y fail-closed: o está completa (defaults aplicados y
// validada) o no existe. Un documento guardado que no valida se trata como
// ausente y se loguea en nivel error; nunca se completa con defaults parciales.
//
// Uso:
//
//	pol, err := tenantconfig.Required(ctx, reg, tenantID, tenantconfig.Biometric)
//	if err != nil {
//	    return err // FeatureNotConfigured o InternalError (reintentable)
//	}
//
//	res, err := tenantconfig.Optional(ctx, reg, tenantID, tenantconfig.Google)
//	if err == nil && res.Found { ... }
//
// El Registry es read-through: cachea resultados positivos y negativos y
// coalesce las cargas en frío por (tenant, feature) con singleflight.
package tenantconfig
