package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }

// ─── Negocio ───

// TenantID identifica al tenant dueño de la operación.
func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }

// ClientID es el client_id de la app que origina el request.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

// CredentialID identifica una credencial biométrica. No es secreto.
func CredentialID(v string) zap.Field { return zap.String("credential_id", v) }

func DeviceID(v string) zap.Field { return zap.String("device_id", v) }

// Feature es la clave de configuración por tenant consultada.
func Feature(v string) zap.Field { return zap.String("feature", v) }

// Identifier es el identificador (email, teléfono, username) de un intento de login.
// Puede ser PII: usar solo en debug.
func Identifier(v string) zap.Field { return zap.String("identifier", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// ─── Genéricos ───

func Count(v int) zap.Field                  { return zap.Int("count", v) }
func Key(v string) zap.Field                 { return zap.String("key", v) }
func Any(key string, v any) zap.Field        { return zap.Any(key, v) }
func String(key, v string) zap.Field         { return zap.String(key, v) }
func Int(key string, v int) zap.Field        { return zap.Int(key, v) }
func Uint64(key string, v uint64) zap.Field  { return zap.Uint64(key, v) }
func Bool(key string, v bool) zap.Field      { return zap.Bool(key, v) }
func Time(key string, v time.Time) zap.Field { return zap.Time(key, v) }
