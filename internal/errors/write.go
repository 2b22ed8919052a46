package errors

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Detail   string         `json:"detail,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// WriteError escribe {"error":{code,message,metadata}} con el status del Kind.
// La causa (Err) nunca se serializa. El detalle se omite en 5xx.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	body := errorBody{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Metadata: appErr.Metadata,
	}
	if appErr.HTTPStatus < http.StatusInternalServerError {
		body.Detail = appErr.Detail
	}
	if appErr.Retryable && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", "1")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: body})
}
