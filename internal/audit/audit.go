// Package audit entrega los veredictos del core a un registro externo.
// El core no persiste auditoría: solo publica eventos (log, AMQP o ambos).
package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// Tipos de evento.
const (
	EventChallengeIssued    = "biometric.challenge_issued"
	EventCredentialEnrolled = "biometric.credential_enrolled"
	EventLoginVerified      = "biometric.login_verified"
	EventCredentialRevoked  = "biometric.credential_revoked"
	EventAttemptRecorded    = "login.attempt_recorded"
)

type Event struct {
	Type         string         `json:"type"`
	TenantID     string         `json:"tenant_id"`
	ClientID     string         `json:"client_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	CredentialID string         `json:"credential_id,omitempty"`
	DeviceID     string         `json:"device_id,omitempty"`
	Outcome      string         `json:"outcome"` // "ok" o el código de error
	At           time.Time      `json:"at"`
	Meta         map[string]any `json:"meta,omitempty"`
}

type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder escribe cada evento como una línea de log estructurada.
type LogRecorder struct {
	log *zap.Logger
}

func NewLogRecorder(l *zap.Logger) *LogRecorder {
	if l == nil {
		l = logger.Named("audit")
	}
	return &LogRecorder{log: l}
}

func (r *LogRecorder) Record(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("event", ev.Type),
		logger.TenantID(ev.TenantID),
		zap.String("outcome", ev.Outcome),
		logger.Time("at", ev.At),
	}
	if ev.ClientID != "" {
		fields = append(fields, logger.ClientID(ev.ClientID))
	}
	if ev.UserID != "" {
		fields = append(fields, logger.UserID(ev.UserID))
	}
	if ev.CredentialID != "" {
		fields = append(fields, logger.CredentialID(ev.CredentialID))
	}
	if ev.DeviceID != "" {
		fields = append(fields, logger.DeviceID(ev.DeviceID))
	}
	if len(ev.Meta) > 0 {
		fields = append(fields, zap.Any("meta", ev.Meta))
	}
	r.log.Info("audit", fields...)
	return nil
}

// Multi reparte el evento a todos los recorders; no corta en el primer error.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop descarta todo.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
