package app

import (
	"context"
	"time"

	"github.com/dropDatabas3/trustcore/internal/audit"
	"github.com/dropDatabas3/trustcore/internal/limiter"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// auditedLimiter emite login.attempt_recorded por cada RecordAttempt que
// llega al store, incluido el que dispara el bloqueo. Check no se audita.
type auditedLimiter struct {
	*limiter.Limiter
	rec audit.Recorder
	now func() time.Time
}

func (l *auditedLimiter) RecordAttempt(ctx context.Context, key limiter.AttemptKey, success bool) (limiter.Verdict, error) {
	v, err := l.Limiter.RecordAttempt(ctx, key, success)
	if err != nil && v.BlockedUntil == nil {
		return v, err
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	meta := map[string]any{
		"identifier_type":    key.Type,
		"remaining_attempts": v.RemainingAttempts,
	}
	if v.BlockedUntil != nil {
		meta["blocked_until"] = v.BlockedUntil.UTC()
	}
	ev := audit.Event{Type: audit.EventAttemptRecorded, TenantID: key.TenantID, Outcome: outcome, At: l.now(), Meta: meta}
	if aerr := l.rec.Record(ctx, ev); aerr != nil {
		logger.From(ctx).Warn("audit record failed", logger.TenantID(key.TenantID), logger.Err(aerr))
	}
	return v, err
}
