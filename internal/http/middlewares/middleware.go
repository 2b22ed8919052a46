// Package middlewares agrupa los decoradores HTTP del servicio. Se montan con
// chi (router.Use / Group), así que cada uno respeta la firma de chi.
package middlewares

import "net/http"

// Middleware es un decorador de http.Handler.
type Middleware func(http.Handler) http.Handler
