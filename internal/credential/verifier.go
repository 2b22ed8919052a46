// Package credential enrola y verifica credenciales biométricas atadas a un device.
//
// Ciclo de vida: ENROLLED (first_use_complete=false) → ACTIVE → REVOKED.
// REVOKED es terminal y solo se alcanza por la vía administrativa.
// El anti-replay es un compare-and-set del sign_count en el store: dos logins
// concurrentes con el mismo contador no pueden ganar ambos.
package credential

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/trustcore/internal/challenge"
	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

// ChallengeConsumer consume un challenge vivo (challenge.Store lo implementa).
type ChallengeConsumer interface {
	Complete(ctx context.Context, tenantID, clientID, state string) (*challenge.Challenge, error)
}

type EnrollInput struct {
	TenantID     string
	ClientID     string
	State        string
	RefreshToken string
	Device       challenge.DeviceMetadata

	CredentialID string
	PublicKey    string
	Alg          string
	BindingType  string
	AAGUID       string
	// Signature en base64 sobre el state del challenge.
	Signature string
}

type Enrollment struct {
	Credential *Credential
	// Challenge consumido; lleva el user y el hash del refresh token que el
	// token issuer usa para la continuidad de sesión.
	Challenge *challenge.Challenge
}

type LoginInput struct {
	TenantID     string
	CredentialID string
	// SignedPayload es "<counter>.<nonce>" (ver LoginPayload).
	SignedPayload string
	Signature     string
	// Counter es opcional; si viene, tiene que coincidir con el firmado.
	Counter uint64
}

type Verification struct {
	Credential *Credential
	// FirstUse: este login completó el primer uso de la credencial.
	FirstUse bool
	// TrustEscalation solo es true si la credencial ya había completado su
	// primer uso antes de este login.
	TrustEscalation bool
}

type Verifier struct {
	challenges ChallengeConsumer
	store      *Store
	now        func() time.Time
}

func NewVerifier(challenges ChallengeConsumer, store *Store, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{challenges: challenges, store: store, now: now}
}

// Complete finaliza el enrolamiento. El challenge se consume antes de chequear
// la firma, así que un fallo posterior igual lo invalida.
func (v *Verifier) Complete(ctx context.Context, policy tenantconfig.BiometricPolicy, in EnrollInput) (*Enrollment, error) {
	log := logger.From(ctx).With(logger.Op("enroll"), logger.TenantID(in.TenantID), logger.CredentialID(in.CredentialID))

	if strings.TrimSpace(in.CredentialID) == "" || in.PublicKey == "" || in.Signature == "" || in.State == "" {
		return nil, decide("enroll", apperrors.ErrBadRequest.WithDetail("credential_id, public_key, signature and state are required"))
	}
	alg, err := ParseAlgorithm(in.Alg)
	if err != nil || !policy.AllowsAlgorithm(in.Alg) {
		return nil, decide("enroll", apperrors.ErrBadRequest.WithDetail("algorithm not allowed"))
	}
	if !policy.AllowsBindingType(in.BindingType) {
		return nil, decide("enroll", apperrors.ErrBadRequest.WithDetail("binding_type not allowed"))
	}

	ch, err := v.challenges.Complete(ctx, in.TenantID, in.ClientID, in.State)
	if err != nil {
		return nil, decide("enroll", err)
	}
	if !challenge.BoundTo(ch, in.RefreshToken) || ch.Device.DeviceID != in.Device.DeviceID {
		log.Warn("challenge binding mismatch", logger.DeviceID(in.Device.DeviceID))
		return nil, decide("enroll", apperrors.ErrChallengeNotFound)
	}

	key, err := ParsePublicKey(in.PublicKey, alg)
	if err != nil {
		log.Info("public key rejected", logger.Err(err))
		return nil, decide("enroll", apperrors.ErrInvalidPublicKey)
	}
	sig, err := decodeB64(in.Signature)
	if err != nil {
		return nil, decide("enroll", apperrors.ErrInvalidSignature)
	}
	if err := key.Verify([]byte(ch.State), sig); err != nil {
		log.Info("enrollment signature rejected", logger.Err(err))
		return nil, decide("enroll", apperrors.ErrInvalidSignature)
	}

	now := v.now().UTC()
	cred := Credential{
		TenantID:         in.TenantID,
		CredentialID:     in.CredentialID,
		UserID:           ch.UserID,
		DeviceID:         ch.Device.DeviceID,
		Platform:         strings.ToLower(ch.Device.Platform),
		PublicKey:        in.PublicKey,
		BindingType:      in.BindingType,
		Alg:              string(alg),
		SignCount:        0,
		AAGUID:           in.AAGUID,
		IsActive:         true,
		FirstUseComplete: false,
		DeviceName:       ch.Device.DeviceName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := v.store.create(ctx, cred); err != nil {
		return nil, decide("enroll", err)
	}
	log.Info("credential enrolled", logger.UserID(cred.UserID), logger.DeviceID(cred.DeviceID))
	decide("enroll", nil)
	return &Enrollment{Credential: &cred, Challenge: ch}, nil
}

// Verify valida un login: firma sobre SignedPayload y contador firmado
// estrictamente mayor al almacenado, aplicado con compare-and-set.
func (v *Verifier) Verify(ctx context.Context, policy tenantconfig.BiometricPolicy, in LoginInput) (*Verification, error) {
	log := logger.From(ctx).With(logger.Op("verify"), logger.TenantID(in.TenantID), logger.CredentialID(in.CredentialID))

	if strings.TrimSpace(in.CredentialID) == "" || in.Signature == "" {
		return nil, decide("verify", apperrors.ErrBadRequest.WithDetail("credential_id and signature are required"))
	}

	cred, err := v.store.Get(ctx, in.TenantID, in.CredentialID)
	if err != nil {
		return nil, decide("verify", err)
	}
	if !cred.IsActive {
		return nil, decide("verify", apperrors.ErrCredentialRevoked)
	}

	alg, err := ParseAlgorithm(cred.Alg)
	if err != nil || !policy.AllowsAlgorithm(cred.Alg) {
		log.Warn("stored algorithm no longer allowed", logger.String("alg", cred.Alg))
		return nil, decide("verify", apperrors.ErrInvalidSignature)
	}
	key, err := ParsePublicKey(cred.PublicKey, alg)
	if err != nil {
		log.Error("stored public key unparseable", logger.Err(err))
		return nil, decide("verify", apperrors.ErrInvalidPublicKey)
	}
	sig, err := decodeB64(in.Signature)
	if err != nil {
		return nil, decide("verify", apperrors.ErrInvalidSignature)
	}
	if err := key.Verify([]byte(in.SignedPayload), sig); err != nil {
		log.Info("login signature rejected", logger.Err(err))
		return nil, decide("verify", apperrors.ErrInvalidSignature)
	}

	counter, err := SignedCounter(in.SignedPayload)
	if err != nil {
		log.Info("signed payload rejected", logger.Err(err))
		return nil, decide("verify", apperrors.ErrInvalidSignature)
	}
	if in.Counter != 0 && in.Counter != counter {
		log.Warn("counter does not match signed payload",
			logger.Uint64("signed", counter), logger.Uint64("presented", in.Counter))
		return nil, decide("verify", apperrors.ErrInvalidSignature)
	}

	// Replay: el contador firmado tiene que crecer.
	if counter <= cred.SignCount {
		log.Warn("sign count replay",
			logger.Uint64("stored", cred.SignCount), logger.Uint64("presented", counter))
		return nil, decide("verify", apperrors.ErrInvalidSignature)
	}

	updated, err := v.store.compareAndSet(ctx, in.TenantID, in.CredentialID, cred.SignCount, counter)
	if errors.Is(err, repository.ErrConflict) {
		return nil, decide("verify", v.resolveConflict(ctx, in.TenantID, in.CredentialID, counter))
	}
	if err != nil {
		return nil, decide("verify", err)
	}

	decide("verify", nil)
	return &Verification{
		Credential:      updated,
		FirstUse:        !cred.FirstUseComplete,
		TrustEscalation: cred.FirstUseComplete,
	}, nil
}

// resolveConflict relee la fila tras perder el CAS. Un contador que ya quedó
// alcanzado es un replay; cualquier otro caso es reintentable.
func (v *Verifier) resolveConflict(ctx context.Context, tenantID, credentialID string, counter uint64) error {
	cur, err := v.store.Get(ctx, tenantID, credentialID)
	if err != nil {
		return err
	}
	if !cur.IsActive {
		return apperrors.ErrCredentialRevoked
	}
	if counter <= cur.SignCount {
		return apperrors.ErrInvalidSignature
	}
	return apperrors.ErrConflict
}

func decide(op string, err error) error {
	code := "ok"
	if err != nil {
		code = apperrors.FromError(err).Code
	}
	metrics.CredentialDecisions.WithLabelValues(op, code).Inc()
	return err
}
