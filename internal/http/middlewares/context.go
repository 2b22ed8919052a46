package middlewares

import "context"

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxTenantKey    ctxKey = "tenant_id"
)

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTenantID inyecta el tenant de la ruta en el contexto.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxTenantKey, tenantID)
}

// GetTenantID obtiene el tenant del contexto ("" si la ruta no tiene tenant).
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxTenantKey).(string); ok {
		return v
	}
	return ""
}
