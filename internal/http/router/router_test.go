package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustcore/internal/biometric"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/http/controllers"
	"github.com/dropDatabas3/trustcore/internal/limiter"
	"github.com/dropDatabas3/trustcore/internal/login"
	"github.com/dropDatabas3/trustcore/internal/rate"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

type fakeBiometric struct {
	tenant string
	err    error
}

func (f *fakeBiometric) RequestChallenge(_ context.Context, tenantID string, req biometric.ChallengeRequest) (*biometric.ChallengeResponse, error) {
	f.tenant = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &biometric.ChallengeResponse{State: "st", Challenge: "st", ExpiresIn: 120}, nil
}

func (f *fakeBiometric) Complete(_ context.Context, tenantID string, _ biometric.CompletionRequest) (*biometric.Verdict, error) {
	f.tenant = tenantID
	return nil, f.err
}

func (f *fakeBiometric) Verify(_ context.Context, tenantID string, req biometric.LoginRequest) (*biometric.Verdict, error) {
	f.tenant = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &biometric.Verdict{Kind: biometric.VerdictLogin, TenantID: tenantID, CredentialID: req.CredentialID}, nil
}

func (f *fakeBiometric) Revoke(_ context.Context, tenantID, _ string) error {
	f.tenant = tenantID
	return f.err
}

type fakeAttempts struct{ key limiter.AttemptKey }

func (f *fakeAttempts) Check(_ context.Context, key limiter.AttemptKey) (limiter.Verdict, error) {
	f.key = key
	return limiter.Verdict{Allowed: true, RemainingAttempts: 3}, nil
}

func (f *fakeAttempts) RecordAttempt(_ context.Context, key limiter.AttemptKey, success bool) (limiter.Verdict, error) {
	f.key = key
	if success {
		return limiter.Verdict{Allowed: true, RemainingAttempts: 3}, nil
	}
	return limiter.Verdict{Allowed: true, RemainingAttempts: 2}, nil
}

type fakeGuard struct{}

func (fakeGuard) Attempt(_ context.Context, _ limiter.AttemptKey, presented, _ string) (login.Result, error) {
	if presented != "1234" {
		return login.Result{}, apperrors.ErrInvalidCredentials.WithMeta("remaining_attempts", 2)
	}
	return login.Result{Verdict: limiter.Verdict{Allowed: true, RemainingAttempts: 3}}, nil
}

type fakeInvalidator struct {
	tenant string
	keys   []tenantconfig.FeatureKey
	all    bool
}

func (f *fakeInvalidator) Invalidate(tenantID string, key tenantconfig.FeatureKey) {
	f.tenant = tenantID
	f.keys = append(f.keys, key)
}

func (f *fakeInvalidator) InvalidateTenant(tenantID string) {
	f.tenant = tenantID
	f.all = true
}

type fixture struct {
	h    http.Handler
	bio  *fakeBiometric
	att  *fakeAttempts
	inv  *fakeInvalidator
	down bool
}

func newFixture(t *testing.T, rl rate.Limiter) *fixture {
	t.Helper()
	f := &fixture{bio: &fakeBiometric{}, att: &fakeAttempts{}, inv: &fakeInvalidator{}}
	checks := map[string]controllers.Check{
		"postgres": func(context.Context) error {
			if f.down {
				return errors.New("dial tcp: refused")
			}
			return nil
		},
	}
	f.h = New(Deps{
		Biometric:   controllers.NewBiometricController(f.bio),
		Attempts:    controllers.NewAttemptsController(f.att, fakeGuard{}),
		Admin:       controllers.NewAdminController(f.inv, f.bio),
		Health:      controllers.NewHealthController(checks, "test"),
		AdminAPIKey: "s3cret",
		RateLimiter: rl,
	})
	return f
}

func (f *fixture) do(method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestBiometricChallenge_OK(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/v1/t/acme/biometric/challenge",
		`{"client_id":"mobile","refresh_token":"rt","device_id":"d1","platform":"ios"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", f.bio.tenant)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp biometric.ChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "st", resp.State)
}

func TestBiometric_DomainErrorMapped(t *testing.T) {
	f := newFixture(t, nil)
	f.bio.err = apperrors.ErrFeatureNotConfigured

	rec := f.do(http.MethodPost, "/v1/t/acme/biometric/verify", `{"credential_id":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FEATURE_NOT_CONFIGURED", errorCode(t, rec))
}

func TestBiometric_InvalidJSON(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/v1/t/acme/biometric/complete", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/v1/t/acme/biometric/complete", ``)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/v1/t/acme/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = f.do(http.MethodGet, "/v1/t/acme/biometric/verify", ``)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAttempts(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/v1/t/acme/attempts/record",
		`{"identifier_type":"pin","identifier":"u1","success":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, limiter.AttemptKey{TenantID: "acme", Type: "pin", Identifier: "u1"}, f.att.key)

	var v limiter.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Allowed)
	assert.Equal(t, 2, v.RemainingAttempts)

	rec = f.do(http.MethodPost, "/v1/t/acme/attempts/verify",
		`{"identifier_type":"pin","identifier":"u1","secret":"0000","secret_hash":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/v1/t/acme/attempts/verify",
		`{"identifier_type":"pin","identifier":"u1","secret":"1234","secret_hash":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rehash":false`)

	rec = f.do(http.MethodPost, "/v1/t/acme/attempts/verify", `{"identifier_type":"pin","identifier":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_RequiresKey(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/v1/admin/t/acme/features/biometric/invalidate", ``)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.inv.keys)

	rec = f.do(http.MethodPost, "/v1/admin/t/acme/features/biometric/invalidate", ``, "X-Admin-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/v1/admin/t/acme/features/biometric/invalidate", ``, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []tenantconfig.FeatureKey{tenantconfig.KeyBiometric}, f.inv.keys)
	assert.Equal(t, "acme", f.inv.tenant)
}

func TestAdmin_Features(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/v1/admin/t/acme/features/bogus/invalidate", ``, "X-Admin-API-Key", "s3cret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/v1/admin/t/acme/features/invalidate", ``, "X-Admin-API-Key", "s3cret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, f.inv.all)
}

func TestAdmin_Revoke(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/v1/admin/t/acme/credentials/c1/revoke", ``, "X-Admin-API-Key", "s3cret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "acme", f.bio.tenant)

	f.bio.err = apperrors.ErrCredentialNotFound
	rec = f.do(http.MethodPost, "/v1/admin/t/acme/credentials/c2/revoke", ``, "X-Admin-API-Key", "s3cret")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	rl := rate.NewMemoryLimiter(1, time.Minute)
	f := newFixture(t, rl)

	body := `{"client_id":"mobile","refresh_token":"rt","device_id":"d1","platform":"ios"}`
	rec := f.do(http.MethodPost, "/v1/t/acme/biometric/challenge", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/v1/t/acme/biometric/challenge", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// readyz no pasa por el limiter
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", ``).Code)
	}
}

func TestReadyz(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/readyz", ``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"up"`)

	f.down = true
	rec = f.do(http.MethodGet, "/readyz", ``)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"down"`)
}
