// Package challenge emite y consume challenges biométricos.
//
// Hay a lo sumo un challenge vivo por (tenant, client, user, device): emitir uno
// nuevo invalida el anterior. Completar consume el challenge al buscarlo, aunque
// la verificación de firma posterior falle. La expiración es perezosa: se mira
// al consumir y un challenge vencido es indistinguible de uno inexistente.
package challenge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
)

// StateBytes es la entropía del state (256 bits).
const StateBytes = 32

type (
	Challenge      = repository.Challenge
	DeviceMetadata = repository.DeviceMetadata
)

// IssueInput identifica a quién se le emite el challenge.
type IssueInput struct {
	TenantID string
	ClientID string
	UserID   string
	Device   DeviceMetadata
	// RefreshToken crudo; solo se guarda su hash.
	RefreshToken string
}

type Options struct {
	Repo    repository.ChallengeRepository
	Timeout time.Duration    // default 2s
	Now     func() time.Time // default time.Now
	// NewState genera el nonce. Default: 32 bytes aleatorios en base64url.
	NewState func() (string, error)
}

type Store struct {
	repo     repository.ChallengeRepository
	timeout  time.Duration
	now      func() time.Time
	newState func() (string, error)
}

func NewStore(opts Options) (*Store, error) {
	if opts.Repo == nil {
		return nil, errors.New("challenge: repository is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewState == nil {
		opts.NewState = func() (string, error) { return tokens.GenerateOpaqueToken(StateBytes) }
	}
	return &Store{repo: opts.Repo, timeout: opts.Timeout, now: opts.Now, newState: opts.NewState}, nil
}

// Issue genera y guarda un challenge nuevo, reemplazando el vivo para la misma clave.
func (s *Store) Issue(ctx context.Context, in IssueInput, ttl time.Duration) (*Challenge, error) {
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.ClientID) == "" ||
		strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.Device.DeviceID) == "" {
		return nil, apperrors.ErrBadRequest.WithDetail("tenant, client, user and device_id are required")
	}
	if ttl <= 0 {
		return nil, apperrors.ErrBadRequest.WithDetail("challenge ttl must be positive")
	}

	state, err := s.newState()
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	now := s.now().UTC()
	ch := Challenge{
		TenantID:  in.TenantID,
		ClientID:  in.ClientID,
		UserID:    in.UserID,
		Device:    in.Device,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if in.RefreshToken != "" {
		ch.RefreshTokenHash = tokens.SHA256Base64URL(in.RefreshToken)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Put(cctx, ch); err != nil {
		logger.From(ctx).Error("challenge put failed",
			logger.Component("challenge"), logger.TenantID(in.TenantID), logger.Err(err))
		return nil, apperrors.FromStore(err)
	}
	metrics.ChallengeEvents.WithLabelValues("issued").Inc()
	return &ch, nil
}

// Complete consume el challenge. Missing o vencido ⇒ ChallengeNotFound.
func (s *Store) Complete(ctx context.Context, tenantID, clientID, state string) (*Challenge, error) {
	if state == "" {
		return nil, apperrors.ErrChallengeNotFound
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ch, err := s.repo.Take(cctx, tenantID, clientID, state)
	if repository.IsNotFound(err) {
		metrics.ChallengeEvents.WithLabelValues("not_found").Inc()
		return nil, apperrors.ErrChallengeNotFound
	}
	if err != nil {
		logger.From(ctx).Error("challenge take failed",
			logger.Component("challenge"), logger.TenantID(tenantID), logger.Err(err))
		return nil, apperrors.FromStore(err)
	}

	if ch.Expired(s.now()) {
		metrics.ChallengeEvents.WithLabelValues("expired").Inc()
		return nil, apperrors.ErrChallengeNotFound
	}
	metrics.ChallengeEvents.WithLabelValues("completed").Inc()
	return ch, nil
}

// BoundTo reporta si el challenge fue emitido para ese refresh token crudo.
func BoundTo(ch *Challenge, refreshToken string) bool {
	if ch.RefreshTokenHash == "" || refreshToken == "" {
		return false
	}
	return tokens.EqualHash(ch.RefreshTokenHash, tokens.SHA256Base64URL(refreshToken))
}
