// Package login combina el limitador de intentos con la verificación de
// secretos (password/PIN) hasheados con argon2id.
package login

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/limiter"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/security/password"
)

// AttemptLimiter es lo que Guard necesita del limitador.
type AttemptLimiter interface {
	Check(ctx context.Context, key limiter.AttemptKey) (limiter.Verdict, error)
	RecordAttempt(ctx context.Context, key limiter.AttemptKey, success bool) (limiter.Verdict, error)
}

type Result struct {
	Verdict limiter.Verdict
	// Rehash: el hash guardado usa parámetros viejos; el caller debería
	// regenerarlo con el secreto que acaba de validar.
	Rehash bool
}

type Guard struct {
	limiter AttemptLimiter
	params  password.Params

	dummyOnce sync.Once
	dummy     string
}

func NewGuard(l AttemptLimiter, params password.Params) *Guard {
	if params == (password.Params{}) {
		params = password.Default
	}
	return &Guard{limiter: l, params: params}
}

// Attempt valida presented contra storedPHC bajo el limitador.
// Un caller bloqueado nunca llega a comparar el hash. storedPHC vacío
// (usuario inexistente) se compara contra un hash descartable para que el
// costo sea el mismo.
func (g *Guard) Attempt(ctx context.Context, key limiter.AttemptKey, presented, storedPHC string) (Result, error) {
	v, err := g.limiter.Check(ctx, key)
	if err != nil {
		return Result{Verdict: v}, err
	}
	if !v.Allowed {
		e := apperrors.ErrMaxLoginAttemptsExceeded
		if v.BlockedUntil != nil {
			e = e.WithMeta("blocked_until", v.BlockedUntil.UTC().Format(time.RFC3339))
		}
		return Result{Verdict: v}, e
	}

	ok := false
	if storedPHC == "" {
		password.Verify(presented, g.dummyHash())
	} else {
		ok = password.Verify(presented, storedPHC)
	}

	v, err = g.limiter.RecordAttempt(ctx, key, ok)
	if err != nil {
		return Result{Verdict: v}, err
	}
	if !ok {
		logger.From(ctx).Debug("secret mismatch",
			logger.TenantID(key.TenantID), logger.String("identifier_type", key.Type),
			logger.Int("remaining_attempts", v.RemainingAttempts))
		return Result{Verdict: v}, apperrors.ErrInvalidCredentials.
			WithMeta("remaining_attempts", v.RemainingAttempts)
	}
	return Result{Verdict: v, Rehash: password.NeedsRehash(storedPHC, g.params)}, nil
}

func (g *Guard) dummyHash() string {
	g.dummyOnce.Do(func() {
		h, err := password.Hash(g.params, "trustcore-dummy-secret")
		if err != nil {
			logger.L().Error("dummy hash generation failed", logger.Err(err))
			return
		}
		g.dummy = h
	})
	return g.dummy
}
