package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// RequireAdminKey protege la vía administrativa con una API key estática
// (header X-Admin-API-Key o Authorization: Bearer <key>).
// Key vacía ⇒ las rutas admin responden 401 siempre.
func RequireAdminKey(key string) Middleware {
	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get("X-Admin-API-Key"))
			if got == "" {
				if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
					got = strings.TrimSpace(auth[7:])
				}
			}
			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				logger.From(r.Context()).Warn("admin key rejected", logger.Layer("middleware"))
				apperrors.WriteError(w, apperrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
