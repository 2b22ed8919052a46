package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
	"github.com/dropDatabas3/trustcore/internal/validation"
)

// FeatureInvalidator: hooks de invalidación del registry.
type FeatureInvalidator interface {
	Invalidate(tenantID string, key tenantconfig.FeatureKey)
	InvalidateTenant(tenantID string)
}

type CredentialRevoker interface {
	Revoke(ctx context.Context, tenantID, credentialID string) error
}

type AdminController struct {
	features FeatureInvalidator
	revoker  CredentialRevoker
}

func NewAdminController(features FeatureInvalidator, revoker CredentialRevoker) *AdminController {
	return &AdminController{features: features, revoker: revoker}
}

// InvalidateFeature maneja POST /v1/admin/t/{tenant}/features/{feature}/invalidate
func (c *AdminController) InvalidateFeature(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	key, ok := tenantconfig.ParseKey(chi.URLParam(r, "feature"))
	if !ok {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("unknown feature"))
		return
	}
	c.features.Invalidate(tenantID, key)
	logger.From(r.Context()).Info("feature cache invalidated",
		logger.TenantID(tenantID), logger.Feature(string(key)))
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateTenant maneja POST /v1/admin/t/{tenant}/features/invalidate
func (c *AdminController) InvalidateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	c.features.InvalidateTenant(tenantID)
	logger.From(r.Context()).Info("tenant feature cache invalidated", logger.TenantID(tenantID))
	w.WriteHeader(http.StatusNoContent)
}

// RevokeCredential maneja POST /v1/admin/t/{tenant}/credentials/{id}/revoke
func (c *AdminController) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	credID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !validation.ValidCredentialID(credID) {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("invalid credential id"))
		return
	}
	if err := c.revoker.Revoke(r.Context(), tenantID, credID); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
