// Package router arma el árbol chi del servicio: rutas tenant-scoped bajo
// /v1/t/{tenant}, vía admin bajo /v1/admin y sondas operativas.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/http/controllers"
	mw "github.com/dropDatabas3/trustcore/internal/http/middlewares"
	"github.com/dropDatabas3/trustcore/internal/rate"
)

// Deps contiene las dependencias del router. Biometric, Attempts y Admin son
// obligatorios; el resto es opcional.
type Deps struct {
	Biometric *controllers.BiometricController
	Attempts  *controllers.AttemptsController
	Admin     *controllers.AdminController
	Health    *controllers.HealthController

	AdminAPIKey string
	RateLimiter rate.Limiter // nil ⇒ sin rate limit
	Metrics     http.Handler // nil ⇒ sin /metrics
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.WriteError(w, apperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.WriteError(w, apperrors.ErrMethodNotAllowed)
	})

	// ─── Operativas (sin rate limit) ───
	if d.Health != nil {
		r.Get("/readyz", d.Health.Readyz)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// ─── Tenant-scoped ───
	r.Route("/v1/t/{tenant}", func(r chi.Router) {
		r.Use(
			mw.WithSecurityHeaders(),
			mw.WithNoStore(),
			mw.WithTenantScope(),
			mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.RateLimiter, KeyFunc: mw.DefaultRateKey}),
		)

		r.Post("/biometric/challenge", d.Biometric.Challenge)
		r.Post("/biometric/complete", d.Biometric.Complete)
		r.Post("/biometric/verify", d.Biometric.Verify)

		r.Post("/attempts/check", d.Attempts.Check)
		r.Post("/attempts/record", d.Attempts.Record)
		r.Post("/attempts/verify", d.Attempts.Verify)
	})

	// ─── Admin ───
	r.Route("/v1/admin/t/{tenant}", func(r chi.Router) {
		r.Use(
			mw.WithSecurityHeaders(),
			mw.WithNoStore(),
			mw.WithTenantScope(),
			mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.RateLimiter, KeyFunc: mw.IPPathRateKey}),
			mw.RequireAdminKey(d.AdminAPIKey),
		)

		r.Post("/features/invalidate", d.Admin.InvalidateTenant)
		r.Post("/features/{feature}/invalidate", d.Admin.InvalidateFeature)
		r.Post("/credentials/{id}/revoke", d.Admin.RevokeCredential)
	})

	return r
}
