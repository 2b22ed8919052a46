package controllers

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/trustcore/internal/biometric"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// BiometricService es la fachada biometric.Service vista desde HTTP.
type BiometricService interface {
	RequestChallenge(ctx context.Context, tenantID string, req biometric.ChallengeRequest) (*biometric.ChallengeResponse, error)
	Complete(ctx context.Context, tenantID string, req biometric.CompletionRequest) (*biometric.Verdict, error)
	Verify(ctx context.Context, tenantID string, req biometric.LoginRequest) (*biometric.Verdict, error)
	Revoke(ctx context.Context, tenantID, credentialID string) error
}

type BiometricController struct {
	svc BiometricService
}

func NewBiometricController(svc BiometricService) *BiometricController {
	return &BiometricController{svc: svc}
}

// Challenge maneja POST /v1/t/{tenant}/biometric/challenge
func (c *BiometricController) Challenge(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	var req biometric.ChallengeRequest
	if err := decode(w, r, &req); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	resp, err := c.svc.RequestChallenge(r.Context(), tenantID, req)
	if err != nil {
		c.fail(w, r, "BiometricController.Challenge", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Complete maneja POST /v1/t/{tenant}/biometric/complete
func (c *BiometricController) Complete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	var req biometric.CompletionRequest
	if err := decode(w, r, &req); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	v, err := c.svc.Complete(r.Context(), tenantID, req)
	if err != nil {
		c.fail(w, r, "BiometricController.Complete", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Verify maneja POST /v1/t/{tenant}/biometric/verify
func (c *BiometricController) Verify(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	var req biometric.LoginRequest
	if err := decode(w, r, &req); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	v, err := c.svc.Verify(r.Context(), tenantID, req)
	if err != nil {
		c.fail(w, r, "BiometricController.Verify", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *BiometricController) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	appErr := apperrors.FromError(err)
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op(op))
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
	} else {
		log.Debug("request rejected", logger.String("code", appErr.Code))
	}
	apperrors.WriteError(w, appErr)
}
