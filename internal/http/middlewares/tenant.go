package middlewares

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// WithTenantScope toma {tenant} de la ruta, lo guarda en el contexto y lo
// agrega al logger del request. Debe montarse dentro del grupo /t/{tenant}.
func WithTenantScope() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(chi.URLParam(r, "tenant"))
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithTenantID(r.Context(), tenantID)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.TenantID(tenantID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
