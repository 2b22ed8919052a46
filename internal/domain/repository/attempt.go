package repository

import (
	"context"
	"time"
)

// AttemptKey identifica un contador de intentos.
type AttemptKey struct {
	TenantID string
	// Type es el tipo de identificador: email, phone, username, user_id, pin.
	Type       string
	Identifier string
}

// AttemptPolicy es la política de bloqueo ya normalizada a duraciones.
type AttemptPolicy struct {
	Allowed int
	Window  time.Duration
	Block   time.Duration
}

// AttemptRecord es el estado de una ventana de intentos fallidos.
// BlockedUntil en cero significa "sin bloqueo".
type AttemptRecord struct {
	Count        int
	WindowStart  time.Time
	BlockedUntil time.Time
}

// Blocked reporta si hay un bloqueo vigente en now.
func (r AttemptRecord) Blocked(now time.Time) bool {
	return !r.BlockedUntil.IsZero() && now.Before(r.BlockedUntil)
}

// Live reporta si el registro todavía tiene efecto en now (ventana o bloqueo).
func (r AttemptRecord) Live(p AttemptPolicy, now time.Time) bool {
	if r.Blocked(now) {
		return true
	}
	if !r.BlockedUntil.IsZero() {
		return false
	}
	return r.Count > 0 && now.Sub(r.WindowStart) < p.Window
}

// ApplyFailure es la transición de un intento fallido.
//
//   - bloqueo vigente: el registro no cambia (no consume slot)
//   - ventana vencida, bloqueo vencido o registro nuevo: count = 1, ventana en now
//   - si no: count++
//   - count > Allowed: BlockedUntil = now + Block
//
// La usan los backends que mutan en Go (memory, pg). El script Lua de Redis
// implementa la misma tabla.
func ApplyFailure(r AttemptRecord, p AttemptPolicy, now time.Time) AttemptRecord {
	if r.Blocked(now) {
		return r
	}
	if !r.Live(p, now) {
		r = AttemptRecord{Count: 1, WindowStart: now}
	} else {
		r.Count++
	}
	if r.Count > p.Allowed {
		r.BlockedUntil = now.Add(p.Block)
	}
	return r
}

// AttemptTTL es cuánto debe sobrevivir un registro: max(resto de ventana, bloqueo).
func AttemptTTL(r AttemptRecord, p AttemptPolicy, now time.Time) time.Duration {
	ttl := r.WindowStart.Add(p.Window).Sub(now)
	if r.Blocked(now) {
		if b := r.BlockedUntil.Sub(now); b > ttl {
			ttl = b
		}
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl
}

// AttemptRepository persiste los contadores del limitador.
type AttemptRepository interface {
	// Get retorna el registro actual, o ErrNotFound si no hay uno vivo.
	Get(ctx context.Context, key AttemptKey, p AttemptPolicy, now time.Time) (*AttemptRecord, error)

	// RegisterFailure aplica ApplyFailure de forma atómica en el store
	// y retorna el registro resultante.
	RegisterFailure(ctx context.Context, key AttemptKey, p AttemptPolicy, now time.Time) (*AttemptRecord, error)

	// ResetUnlessBlocked borra el registro salvo que haya un bloqueo vigente.
	// Retorna el registro resultante (cero si se borró).
	ResetUnlessBlocked(ctx context.Context, key AttemptKey, now time.Time) (*AttemptRecord, error)
}
