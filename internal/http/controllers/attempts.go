package controllers

import (
	"context"
	"net/http"

	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/limiter"
	"github.com/dropDatabas3/trustcore/internal/login"
)

type AttemptService interface {
	Check(ctx context.Context, key limiter.AttemptKey) (limiter.Verdict, error)
	RecordAttempt(ctx context.Context, key limiter.AttemptKey, success bool) (limiter.Verdict, error)
}

type SecretGuard interface {
	Attempt(ctx context.Context, key limiter.AttemptKey, presented, storedPHC string) (login.Result, error)
}

type attemptRequest struct {
	IdentifierType string `json:"identifier_type"`
	Identifier     string `json:"identifier"`
	Success        bool   `json:"success"`
	// Solo /attempts/verify
	Secret     string `json:"secret,omitempty"`
	SecretHash string `json:"secret_hash,omitempty"`
}

type verifyResponse struct {
	limiter.Verdict
	Rehash bool `json:"rehash"`
}

type AttemptsController struct {
	svc   AttemptService
	guard SecretGuard
}

func NewAttemptsController(svc AttemptService, guard SecretGuard) *AttemptsController {
	return &AttemptsController{svc: svc, guard: guard}
}

func (c *AttemptsController) key(w http.ResponseWriter, r *http.Request, req *attemptRequest) (limiter.AttemptKey, bool) {
	tenantID, err := tenantParam(r)
	if err == nil {
		err = decode(w, r, req)
	}
	if err != nil {
		apperrors.WriteError(w, err)
		return limiter.AttemptKey{}, false
	}
	return limiter.AttemptKey{TenantID: tenantID, Type: req.IdentifierType, Identifier: req.Identifier}, true
}

// Check maneja POST /v1/t/{tenant}/attempts/check
func (c *AttemptsController) Check(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	key, ok := c.key(w, r, &req)
	if !ok {
		return
	}
	v, err := c.svc.Check(r.Context(), key)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Record maneja POST /v1/t/{tenant}/attempts/record
func (c *AttemptsController) Record(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	key, ok := c.key(w, r, &req)
	if !ok {
		return
	}
	v, err := c.svc.RecordAttempt(r.Context(), key, req.Success)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Verify maneja POST /v1/t/{tenant}/attempts/verify: chequea un secreto
// contra su hash argon2id bajo el limitador.
func (c *AttemptsController) Verify(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	key, ok := c.key(w, r, &req)
	if !ok {
		return
	}
	if req.Secret == "" {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("secret is required"))
		return
	}
	res, err := c.guard.Attempt(r.Context(), key, req.Secret, req.SecretHash)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Verdict: res.Verdict, Rehash: res.Rehash})
}
