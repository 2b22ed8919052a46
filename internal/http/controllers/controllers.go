// Package controllers traduce HTTP ⇄ servicios del core. No tiene lógica de
// dominio: decodifica, llama al servicio y escribe JSON o el error de dominio.
package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/validation"
)

const maxBody = 64 << 10

func tenantParam(r *http.Request) (string, error) {
	t := strings.TrimSpace(chi.URLParam(r, "tenant"))
	if !validation.ValidTenantID(t) {
		return "", apperrors.ErrBadRequest.WithDetail("invalid tenant")
	}
	return t, nil
}

// decode lee un body JSON acotado. Body vacío o inválido ⇒ BadRequest.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.ErrBadRequest.WithDetail("body too large")
		case errors.Is(err, io.EOF):
			return apperrors.ErrBadRequest.WithDetail("empty body")
		default:
			return apperrors.ErrBadRequest.WithDetail("invalid json")
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
