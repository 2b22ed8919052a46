package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewaresMountOnChi(t *testing.T) {
	r := chi.NewRouter()
	r.Use(WithRecover(), WithRequestID())
	r.Route("/t/{tenant}", func(r chi.Router) {
		r.Use(WithSecurityHeaders(), WithNoStore(), WithTenantScope())
		r.Get("/who", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(GetTenantID(r.Context()) + "|" + GetRequestID(r.Context())))
		})
		r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})

	req := httptest.NewRequest(http.MethodGet, "/t/acme/who", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme|rid-1", rec.Body.String())
	assert.Equal(t, "rid-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t/acme/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
