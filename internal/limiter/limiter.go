// Package limiter implementa el bloqueo por intentos fallidos de password/PIN.
//
// Máquina de estados por (tenant, tipo, identificador): OPEN → BLOCKED → OPEN.
// La ventana es fija y se indexa por su inicio (no es un log de intentos),
// así el estado por identificador es O(1). Toda transición es atómica en el store.
package limiter

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
	"github.com/dropDatabas3/trustcore/internal/util"
)

type AttemptKey = repository.AttemptKey

// IdentifierTypes son los tipos de identificador aceptados.
var IdentifierTypes = []string{"email", "phone", "username", "user_id", "pin"}

// Verdict es la respuesta del limitador.
type Verdict struct {
	Allowed           bool       `json:"allowed"`
	RemainingAttempts int        `json:"remaining_attempts"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
}

type Options struct {
	Registry *tenantconfig.Registry
	Store    repository.AttemptRepository
	Timeout  time.Duration    // default 2s
	Now      func() time.Time // default time.Now
}

type Limiter struct {
	reg     *tenantconfig.Registry
	store   repository.AttemptRepository
	timeout time.Duration
	now     func() time.Time
}

func New(opts Options) (*Limiter, error) {
	if opts.Registry == nil || opts.Store == nil {
		return nil, errors.New("limiter: registry and store are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Limiter{reg: opts.Registry, store: opts.Store, timeout: opts.Timeout, now: opts.Now}, nil
}

// normalizeKey valida la clave y unifica mayúsculas en identificadores textuales.
func normalizeKey(key AttemptKey) (AttemptKey, error) {
	key.TenantID = strings.TrimSpace(key.TenantID)
	key.Type = strings.ToLower(strings.TrimSpace(key.Type))
	key.Identifier = strings.TrimSpace(key.Identifier)
	if key.TenantID == "" || key.Identifier == "" {
		return key, apperrors.ErrBadRequest.WithDetail("tenant and identifier are required")
	}
	if !slices.Contains(IdentifierTypes, key.Type) {
		return key, apperrors.ErrBadRequest.WithDetail("unsupported identifier type")
	}
	if key.Type == "email" || key.Type == "username" {
		key.Identifier = strings.ToLower(key.Identifier)
	}
	return key, nil
}

func (l *Limiter) policy(ctx context.Context, tenantID string) (repository.AttemptPolicy, error) {
	pol, err := tenantconfig.Required(ctx, l.reg, tenantID, tenantconfig.PasswordPinBlock)
	if err != nil {
		return repository.AttemptPolicy{}, err
	}
	return pol.AttemptPolicy(), nil
}

// Check es la consulta previa a un intento. No consume slots.
// Un bloqueo vigente se informa en el Verdict (Allowed=false), sin error.
func (l *Limiter) Check(ctx context.Context, key AttemptKey) (Verdict, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Verdict{}, err
	}
	p, err := l.policy(ctx, key.TenantID)
	if err != nil {
		return Verdict{}, err
	}
	now := l.now()

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	rec, err := l.store.Get(cctx, key, p, now)
	switch {
	case repository.IsNotFound(err):
		return Verdict{Allowed: true, RemainingAttempts: p.Allowed}, nil
	case err != nil:
		return Verdict{}, l.storeErr(ctx, key, "get", err)
	}
	return verdictFor(*rec, p, now), nil
}

// RecordAttempt registra el resultado de un intento.
//
//   - bloqueo vigente ⇒ Allowed=false, MaxLoginAttemptsExceeded, sin consumir slot
//   - success ⇒ reset
//   - fallo ⇒ incremento atómico; superar AttemptsAllowed bloquea por BlockInterval
func (l *Limiter) RecordAttempt(ctx context.Context, key AttemptKey, success bool) (Verdict, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Verdict{}, err
	}
	p, err := l.policy(ctx, key.TenantID)
	if err != nil {
		return Verdict{}, err
	}
	now := l.now()

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var rec *repository.AttemptRecord
	if success {
		rec, err = l.store.ResetUnlessBlocked(cctx, key, now)
		if err != nil {
			return Verdict{}, l.storeErr(ctx, key, "reset", err)
		}
	} else {
		rec, err = l.store.RegisterFailure(cctx, key, p, now)
		if err != nil {
			return Verdict{}, l.storeErr(ctx, key, "register_failure", err)
		}
	}

	v := verdictFor(*rec, p, now)
	if !v.Allowed {
		metrics.AttemptVerdicts.WithLabelValues("blocked").Inc()
		logger.From(ctx).Info("attempt blocked",
			logger.Component("limiter"),
			logger.TenantID(key.TenantID),
			logger.String("identifier_type", key.Type),
			logger.Identifier(util.MaskIdentifier(key.Type, key.Identifier)),
			logger.Time("blocked_until", *v.BlockedUntil),
		)
		return v, apperrors.ErrMaxLoginAttemptsExceeded.
			WithMeta("blocked_until", v.BlockedUntil.UTC().Format(time.RFC3339))
	}
	if success {
		metrics.AttemptVerdicts.WithLabelValues("reset").Inc()
	} else {
		metrics.AttemptVerdicts.WithLabelValues("allowed").Inc()
	}
	return v, nil
}

func verdictFor(rec repository.AttemptRecord, p repository.AttemptPolicy, now time.Time) Verdict {
	if rec.Blocked(now) {
		bu := rec.BlockedUntil
		return Verdict{Allowed: false, RemainingAttempts: 0, BlockedUntil: &bu}
	}
	count := 0
	if rec.Live(p, now) {
		count = rec.Count
	}
	return Verdict{Allowed: true, RemainingAttempts: max(0, p.Allowed-count)}
}

func (l *Limiter) storeErr(ctx context.Context, key AttemptKey, op string, err error) error {
	metrics.AttemptVerdicts.WithLabelValues("error").Inc()
	logger.From(ctx).Error("attempt store failed",
		logger.Component("limiter"),
		logger.Op(op),
		logger.TenantID(key.TenantID),
		logger.Err(err),
	)
	return apperrors.FromStore(err)
}
