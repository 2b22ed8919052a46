// Package redis implementa los stores de intentos y challenges sobre Redis.
//
// Cada mutación es un único script Lua: el servidor la ejecuta de forma
// atómica, así que dos instancias del servicio nunca intercalan un
// read-modify-write sobre la misma clave.
package redis

import (
	"context"
	"strings"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/trustcore/internal/security/token"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // default "trustcore:"
}

// NewClient crea el cliente y verifica la conexión.
func NewClient(ctx context.Context, opts Options) (*rdb.Client, error) {
	c := rdb.NewClient(&rdb.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func normPrefix(p string) string {
	if p == "" {
		return "trustcore:"
	}
	if !strings.HasSuffix(p, ":") {
		p += ":"
	}
	return p
}

// part hashea segmentos provistos por el usuario: sin PII en las claves
// y sin ':' que rompa el esquema.
func part(s string) string { return tokens.SHA256Base64URL(s) }
