// Package errors define el conjunto cerrado de errores de dominio del core de confianza.
//
// Cada Kind lleva su status HTTP y mensaje; los valores predefinidos se construyen
// una sola vez al iniciar el proceso. La comparación es por Kind (errors.Is), nunca
// por string de código.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind identifica la clase de error. El conjunto es cerrado.
type Kind uint8

const (
	KindInternal Kind = iota
	KindBadRequest
	KindFeatureNotConfigured
	KindInvalidPublicKey
	KindInvalidSignature
	KindChallengeNotFound
	KindCredentialNotFound
	KindCredentialRevoked
	KindCredentialAlreadyExists
	KindMaxLoginAttemptsExceeded
	KindInvalidCredentials
	KindInvalidRefreshToken
	KindConflict

	// Kinds de transporte: solo los emite la capa HTTP.
	KindUnauthorized
	KindNotFound
	KindMethodNotAllowed
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindInternal:                 "InternalError",
	KindBadRequest:               "BadRequest",
	KindFeatureNotConfigured:     "FeatureNotConfigured",
	KindInvalidPublicKey:         "InvalidPublicKey",
	KindInvalidSignature:         "InvalidSignature",
	KindChallengeNotFound:        "ChallengeNotFound",
	KindCredentialNotFound:       "CredentialNotFound",
	KindCredentialRevoked:        "CredentialRevoked",
	KindCredentialAlreadyExists:  "CredentialAlreadyExists",
	KindMaxLoginAttemptsExceeded: "MaxLoginAttemptsExceeded",
	KindInvalidCredentials:       "InvalidCredentials",
	KindInvalidRefreshToken:      "InvalidRefreshToken",
	KindConflict:                 "Conflict",
	KindUnauthorized:             "Unauthorized",
	KindNotFound:                 "NotFound",
	KindMethodNotAllowed:         "MethodNotAllowed",
	KindRateLimited:              "RateLimited",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// AppError es el error estándar del core.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	Detail     string
	Metadata   map[string]any
	HTTPStatus int
	// Retryable indica que el caller puede reintentar la misma operación.
	// Solo InternalError y Conflict lo son.
	Retryable bool
	// Err es la causa original; se loguea, nunca se expone al cliente.
	Err error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is compara por Kind, así errors.Is(err, ErrInvalidSignature) funciona
// aunque err sea una copia con causa o detalle.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail devuelve una COPIA con detalle adicional.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// WithMeta devuelve una COPIA con un campo de metadata agregado.
func (e *AppError) WithMeta(key string, value any) *AppError {
	c := *e
	c.Metadata = make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	c.Metadata[key] = value
	return &c
}

func newKind(kind Kind, status int, code, message string, retryable bool) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Retryable:  retryable,
	}
}

// FromError convierte cualquier error en *AppError.
// Lo que no es AppError se clasifica como InternalError conservando la causa.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// KindOf retorna el Kind de err, o KindInternal si no es un AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reporta si err es un AppError del Kind dado.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// 400
var (
	ErrBadRequest = newKind(KindBadRequest, http.StatusBadRequest,
		"BAD_REQUEST", "La solicitud contiene parámetros inválidos o faltantes.", false)

	ErrFeatureNotConfigured = newKind(KindFeatureNotConfigured, http.StatusBadRequest,
		"FEATURE_NOT_CONFIGURED", "La funcionalidad no está configurada para este tenant.", false)

	ErrInvalidPublicKey = newKind(KindInvalidPublicKey, http.StatusBadRequest,
		"INVALID_PUBLIC_KEY", "La clave pública es inválida o no está soportada.", false)

	ErrChallengeNotFound = newKind(KindChallengeNotFound, http.StatusBadRequest,
		"CHALLENGE_NOT_FOUND", "El challenge no existe o expiró.", false)

	ErrMaxLoginAttemptsExceeded = newKind(KindMaxLoginAttemptsExceeded, http.StatusBadRequest,
		"MAX_LOGIN_ATTEMPTS_EXCEEDED", "Se superó la cantidad máxima de intentos. Intente más tarde.", false)
)

// 401
var (
	ErrInvalidSignature = newKind(KindInvalidSignature, http.StatusUnauthorized,
		"INVALID_SIGNATURE", "La firma no es válida.", false)

	ErrInvalidCredentials = newKind(KindInvalidCredentials, http.StatusUnauthorized,
		"INVALID_CREDENTIALS", "Las credenciales proporcionadas son inválidas.", false)

	ErrInvalidRefreshToken = newKind(KindInvalidRefreshToken, http.StatusUnauthorized,
		"INVALID_REFRESH_TOKEN", "El refresh token es inválido o expiró.", false)
)

// 403
var (
	ErrCredentialRevoked = newKind(KindCredentialRevoked, http.StatusForbidden,
		"CREDENTIAL_REVOKED", "La credencial fue revocada.", false)
)

// 404
var (
	ErrCredentialNotFound = newKind(KindCredentialNotFound, http.StatusNotFound,
		"CREDENTIAL_NOT_FOUND", "La credencial no existe.", false)
)

// 409
var (
	ErrCredentialAlreadyExists = newKind(KindCredentialAlreadyExists, http.StatusConflict,
		"CREDENTIAL_ALREADY_EXISTS", "La credencial ya está registrada.", false)

	// ErrConflict: el compare-and-set perdió contra otra escritura concurrente.
	ErrConflict = newKind(KindConflict, http.StatusConflict,
		"CONFLICT", "El estado cambió durante la operación. Reintente.", true)
)

// Transporte
var (
	ErrUnauthorized = newKind(KindUnauthorized, http.StatusUnauthorized,
		"UNAUTHORIZED", "Se requiere autenticación.", false)

	ErrNotFound = newKind(KindNotFound, http.StatusNotFound,
		"NOT_FOUND", "El recurso solicitado no existe.", false)

	ErrMethodNotAllowed = newKind(KindMethodNotAllowed, http.StatusMethodNotAllowed,
		"METHOD_NOT_ALLOWED", "Método HTTP no permitido.", false)

	ErrRateLimited = newKind(KindRateLimited, http.StatusTooManyRequests,
		"RATE_LIMITED", "Demasiadas solicitudes. Intente más tarde.", true)
)

// 500
var (
	ErrInternal = newKind(KindInternal, http.StatusInternalServerError,
		"INTERNAL_ERROR", "Ocurrió un error interno. Reintente.", true)
)
