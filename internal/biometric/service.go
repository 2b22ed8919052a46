// Package biometric es la fachada del login biométrico: challenge, enrolamiento,
// verificación y revocación. Cada operación resuelve primero la feature
// "biometric" del tenant; sin configuración no se toca ningún store.
package biometric

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/trustcore/internal/audit"
	"github.com/dropDatabas3/trustcore/internal/challenge"
	"github.com/dropDatabas3/trustcore/internal/credential"
	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

type Options struct {
	Registry      *tenantconfig.Registry
	Challenges    *challenge.Store
	Credentials   *credential.Store
	Verifier      *credential.Verifier
	RefreshTokens repository.RefreshTokenRepository
	Issuer        TokenIssuer    // opcional
	Audit         audit.Recorder // default audit.Nop
	Timeout       time.Duration
	Now           func() time.Time
}

type Service struct {
	reg      *tenantconfig.Registry
	chals    *challenge.Store
	creds    *credential.Store
	verifier *credential.Verifier
	rts      repository.RefreshTokenRepository
	issuer   TokenIssuer
	audit    audit.Recorder
	timeout  time.Duration
	now      func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Registry == nil || opts.Challenges == nil || opts.Credentials == nil ||
		opts.Verifier == nil || opts.RefreshTokens == nil {
		return nil, errors.New("biometric: registry, challenges, credentials, verifier and refresh tokens are required")
	}
	if opts.Audit == nil {
		opts.Audit = audit.Nop{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		reg:      opts.Registry,
		chals:    opts.Challenges,
		creds:    opts.Credentials,
		verifier: opts.Verifier,
		rts:      opts.RefreshTokens,
		issuer:   opts.Issuer,
		audit:    opts.Audit,
		timeout:  opts.Timeout,
		now:      opts.Now,
	}, nil
}

func (s *Service) policy(ctx context.Context, tenantID string) (tenantconfig.BiometricPolicy, error) {
	return tenantconfig.Required(ctx, s.reg, tenantID, tenantconfig.Biometric)
}

// RequestChallenge emite un challenge para el usuario dueño del refresh token.
func (s *Service) RequestChallenge(ctx context.Context, tenantID string, req ChallengeRequest) (*ChallengeResponse, error) {
	pol, err := s.policy(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if req.ClientID == "" || req.RefreshToken == "" || strings.TrimSpace(req.DeviceMetadata.DeviceID) == "" {
		return nil, apperrors.ErrBadRequest.WithDetail("refresh_token, client_id and device_metadata.device_id are required")
	}
	if !pol.AllowsPlatform(req.DeviceMetadata.Platform) {
		return nil, apperrors.ErrBadRequest.WithDetail("platform not allowed")
	}
	req.DeviceMetadata.Platform = strings.ToLower(req.DeviceMetadata.Platform)

	rt, err := s.resolveRefreshToken(ctx, tenantID, req.ClientID, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	ch, err := s.chals.Issue(ctx, challenge.IssueInput{
		TenantID:     tenantID,
		ClientID:     req.ClientID,
		UserID:       rt.UserID,
		Device:       req.DeviceMetadata,
		RefreshToken: req.RefreshToken,
	}, pol.ChallengeTTL())
	if err != nil {
		return nil, err
	}

	resp := &ChallengeResponse{
		State:     ch.State,
		Challenge: ch.State,
		ExpiresIn: pol.ChallengeTTLSeconds,
	}
	existing, err := s.creds.ActiveForDevice(ctx, tenantID, rt.UserID, req.DeviceMetadata.DeviceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		resp.CredentialID = existing.CredentialID
	}

	s.record(ctx, audit.Event{
		Type: audit.EventChallengeIssued, TenantID: tenantID, ClientID: req.ClientID,
		UserID: rt.UserID, DeviceID: req.DeviceMetadata.DeviceID, Outcome: "ok",
	})
	return resp, nil
}

// Complete finaliza el enrolamiento y entrega el veredicto al issuer.
func (s *Service) Complete(ctx context.Context, tenantID string, req CompletionRequest) (*Verdict, error) {
	pol, err := s.policy(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if req.ClientID == "" || req.RefreshToken == "" {
		return nil, apperrors.ErrBadRequest.WithDetail("refresh_token and client_id are required")
	}
	if req.Alg == "" {
		req.Alg = string(credential.ES256)
	}
	if req.BindingType == "" {
		req.BindingType = "biometric"
	}
	if _, err := s.resolveRefreshToken(ctx, tenantID, req.ClientID, req.RefreshToken); err != nil {
		return nil, err
	}

	enr, err := s.verifier.Complete(ctx, pol, credential.EnrollInput{
		TenantID:     tenantID,
		ClientID:     req.ClientID,
		State:        req.State,
		RefreshToken: req.RefreshToken,
		Device:       req.DeviceMetadata,
		CredentialID: req.CredentialID,
		PublicKey:    req.PublicKey,
		Alg:          req.Alg,
		BindingType:  req.BindingType,
		AAGUID:       req.AAGUID,
		Signature:    req.Signature,
	})
	if err != nil {
		s.record(ctx, audit.Event{
			Type: audit.EventCredentialEnrolled, TenantID: tenantID, ClientID: req.ClientID,
			CredentialID: req.CredentialID, DeviceID: req.DeviceMetadata.DeviceID, Outcome: codeOf(err),
		})
		return nil, err
	}

	v := Verdict{
		Kind:             VerdictEnrollment,
		TenantID:         tenantID,
		ClientID:         req.ClientID,
		UserID:           enr.Credential.UserID,
		CredentialID:     enr.Credential.CredentialID,
		DeviceID:         enr.Credential.DeviceID,
		DecidedAt:        s.now().UTC(),
		RefreshTokenHash: enr.Challenge.RefreshTokenHash,
	}
	return s.deliver(ctx, v, audit.EventCredentialEnrolled)
}

// Verify valida un login biométrico.
func (s *Service) Verify(ctx context.Context, tenantID string, req LoginRequest) (*Verdict, error) {
	pol, err := s.policy(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	res, err := s.verifier.Verify(ctx, pol, credential.LoginInput{
		TenantID:      tenantID,
		CredentialID:  req.CredentialID,
		SignedPayload: req.SignedPayload,
		Signature:     req.Signature,
		Counter:       req.Counter,
	})
	if err != nil {
		s.record(ctx, audit.Event{
			Type: audit.EventLoginVerified, TenantID: tenantID, ClientID: req.ClientID,
			CredentialID: req.CredentialID, Outcome: codeOf(err),
		})
		return nil, err
	}

	v := Verdict{
		Kind:            VerdictLogin,
		TenantID:        tenantID,
		ClientID:        req.ClientID,
		UserID:          res.Credential.UserID,
		CredentialID:    res.Credential.CredentialID,
		DeviceID:        res.Credential.DeviceID,
		FirstUse:        res.FirstUse,
		TrustEscalation: res.TrustEscalation,
		DecidedAt:       s.now().UTC(),
	}
	return s.deliver(ctx, v, audit.EventLoginVerified)
}

// Revoke es la vía administrativa: desactiva la credencial para siempre.
func (s *Service) Revoke(ctx context.Context, tenantID, credentialID string) error {
	if _, err := s.policy(ctx, tenantID); err != nil {
		return err
	}
	if strings.TrimSpace(credentialID) == "" {
		return apperrors.ErrBadRequest.WithDetail("credential_id is required")
	}
	if err := s.creds.Revoke(ctx, tenantID, credentialID); err != nil {
		return err
	}
	s.record(ctx, audit.Event{
		Type: audit.EventCredentialRevoked, TenantID: tenantID, CredentialID: credentialID, Outcome: "ok",
	})
	return nil
}

// resolveRefreshToken: inexistente, revocado, vencido o de otro client ⇒ InvalidRefreshToken.
func (s *Service) resolveRefreshToken(ctx context.Context, tenantID, clientID, raw string) (*repository.RefreshToken, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rt, err := s.rts.GetByHash(cctx, tenantID, tokens.SHA256Base64URL(raw))
	if repository.IsNotFound(err) {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	if err != nil {
		logger.From(ctx).Error("refresh token lookup failed",
			logger.Component("biometric"), logger.TenantID(tenantID), logger.Err(err))
		return nil, apperrors.FromStore(err)
	}
	if !rt.Usable(s.now()) || rt.ClientID != clientID {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	return rt, nil
}

func (s *Service) deliver(ctx context.Context, v Verdict, event string) (*Verdict, error) {
	if s.issuer != nil {
		tp, err := tenantconfig.Optional(ctx, s.reg, v.TenantID, tenantconfig.Token)
		if err != nil {
			return nil, err
		}
		if tp.Found {
			v.TokenPolicy = &tp.Config
		}
		out, err := s.issuer.Issue(ctx, v)
		if err != nil {
			logger.From(ctx).Error("token issuer failed",
				logger.TenantID(v.TenantID), logger.CredentialID(v.CredentialID), logger.Err(err))
			return nil, apperrors.FromError(err)
		}
		v.Tokens = out
	}
	s.record(ctx, audit.Event{
		Type: event, TenantID: v.TenantID, ClientID: v.ClientID, UserID: v.UserID,
		CredentialID: v.CredentialID, DeviceID: v.DeviceID, Outcome: "ok",
		Meta: map[string]any{"first_use": v.FirstUse, "trust_escalation": v.TrustEscalation},
	})
	return &v, nil
}

// record no falla la operación: la auditoría es best-effort.
func (s *Service) record(ctx context.Context, ev audit.Event) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		logger.From(ctx).Warn("audit record failed", logger.String("event", ev.Type), logger.Err(err))
	}
}

func codeOf(err error) string {
	return apperrors.FromError(err).Code
}
