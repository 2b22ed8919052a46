package biometric

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustcore/internal/audit"
	"github.com/dropDatabas3/trustcore/internal/challenge"
	"github.com/dropDatabas3/trustcore/internal/credential"
	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
	"github.com/dropDatabas3/trustcore/internal/store/memory"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Wrappers que cuentan accesos a cada store.
type countingChallenges struct {
	repository.ChallengeRepository
	n *atomic.Int32
}

func (c countingChallenges) Put(ctx context.Context, ch repository.Challenge) error {
	c.n.Add(1)
	return c.ChallengeRepository.Put(ctx, ch)
}

func (c countingChallenges) Take(ctx context.Context, t, cl, s string) (*repository.Challenge, error) {
	c.n.Add(1)
	return c.ChallengeRepository.Take(ctx, t, cl, s)
}

type countingCredentials struct {
	repository.CredentialRepository
	n *atomic.Int32
}

func (c countingCredentials) Get(ctx context.Context, t, id string) (*repository.Credential, error) {
	c.n.Add(1)
	return c.CredentialRepository.Get(ctx, t, id)
}

func (c countingCredentials) Revoke(ctx context.Context, t, id string, at time.Time) error {
	c.n.Add(1)
	return c.CredentialRepository.Revoke(ctx, t, id, at)
}

type countingTokens struct {
	repository.RefreshTokenRepository
	n *atomic.Int32
}

func (c countingTokens) GetByHash(ctx context.Context, t, h string) (*repository.RefreshToken, error) {
	c.n.Add(1)
	return c.RefreshTokenRepository.GetByHash(ctx, t, h)
}

type collector struct{ events []audit.Event }

func (c *collector) Record(_ context.Context, ev audit.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type issuer struct{ got []Verdict }

func (i *issuer) Issue(_ context.Context, v Verdict) (any, error) {
	i.got = append(i.got, v)
	return map[string]string{"access_token": "at-" + v.CredentialID}, nil
}

type env struct {
	src      *memory.FeatureConfigs
	svc      *Service
	storeOps *atomic.Int32
	audit    *collector
	issuer   *issuer
	rts      *memory.RefreshTokens
	key      *ecdsa.PrivateKey
	pub      string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := func() time.Time { return now }

	src := memory.NewFeatureConfigs()
	require.NoError(t, src.PutValue("acme", string(tenantconfig.KeyBiometric), tenantconfig.BiometricPolicy{}))
	reg, err := tenantconfig.NewRegistry(tenantconfig.Options{Source: src})
	require.NoError(t, err)

	ops := &atomic.Int32{}
	chals, err := challenge.NewStore(challenge.Options{
		Repo: countingChallenges{memory.NewChallenges(), ops},
		Now:  clock,
	})
	require.NoError(t, err)
	creds := credential.NewStore(countingCredentials{memory.NewCredentials(), ops}, time.Second, clock)

	rts := memory.NewRefreshTokens()
	rts.Add(repository.RefreshToken{
		ID: "rt-id", UserID: "u1", TenantID: "acme", ClientID: "mobile",
		TokenHash: tokens.SHA256Base64URL("rt-1"), IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour),
	})

	col, iss := &collector{}, &issuer{}
	svc, err := NewService(Options{
		Registry:      reg,
		Challenges:    chals,
		Credentials:   creds,
		Verifier:      credential.NewVerifier(chals, creds, clock),
		RefreshTokens: countingTokens{rts, ops},
		Issuer:        iss,
		Audit:         col,
		Now:           clock,
	})
	require.NoError(t, err)

	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	return &env{src: src, svc: svc, storeOps: ops, audit: col, issuer: iss, rts: rts, key: k, pub: base64.StdEncoding.EncodeToString(der)}
}

func (e *env) sign(t *testing.T, msg string) string {
	t.Helper()
	d := sha256.Sum256([]byte(msg))
	sig, err := ecdsa.SignASN1(rand.Reader, e.key, d[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

var device = challenge.DeviceMetadata{Platform: "iOS", DeviceID: "d1", DeviceName: "iPhone"}

func TestUnconfiguredTenantNeverTouchesStores(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.RequestChallenge(ctx, "globex", ChallengeRequest{RefreshToken: "rt-1", ClientID: "mobile", DeviceMetadata: device})
	assert.True(t, apperrors.IsKind(err, apperrors.KindFeatureNotConfigured))
	_, err = e.svc.Complete(ctx, "globex", CompletionRequest{RefreshToken: "rt-1", ClientID: "mobile", State: "x"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindFeatureNotConfigured))
	_, err = e.svc.Verify(ctx, "globex", LoginRequest{CredentialID: "cred-1", Signature: "x", Counter: 1})
	assert.True(t, apperrors.IsKind(err, apperrors.KindFeatureNotConfigured))
	err = e.svc.Revoke(ctx, "globex", "cred-1")
	assert.True(t, apperrors.IsKind(err, apperrors.KindFeatureNotConfigured))

	assert.Equal(t, int32(0), e.storeOps.Load())
	assert.Empty(t, e.audit.events)
}

func TestEnrollLoginRevokeFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.svc.RequestChallenge(ctx, "acme", ChallengeRequest{RefreshToken: "rt-1", ClientID: "mobile", DeviceMetadata: device})
	require.NoError(t, err)
	assert.Equal(t, resp.State, resp.Challenge)
	assert.Equal(t, 120, resp.ExpiresIn)
	assert.Empty(t, resp.CredentialID)

	v, err := e.svc.Complete(ctx, "acme", CompletionRequest{
		RefreshToken: "rt-1", State: resp.State, ClientID: "mobile",
		CredentialID: "cred-1", PublicKey: e.pub, Signature: e.sign(t, resp.State),
		DeviceMetadata: device,
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictEnrollment, v.Kind)
	assert.Equal(t, "u1", v.UserID)
	assert.Equal(t, tokens.SHA256Base64URL("rt-1"), v.RefreshTokenHash)
	assert.Equal(t, map[string]string{"access_token": "at-cred-1"}, v.Tokens)

	resp, err = e.svc.RequestChallenge(ctx, "acme", ChallengeRequest{RefreshToken: "rt-1", ClientID: "mobile", DeviceMetadata: device})
	require.NoError(t, err)
	assert.Equal(t, "cred-1", resp.CredentialID)

	login := func(counter uint64) (*Verdict, error) {
		payload := credential.LoginPayload(counter, "n")
		return e.svc.Verify(ctx, "acme", LoginRequest{
			ClientID: "mobile", CredentialID: "cred-1", SignedPayload: payload, Signature: e.sign(t, payload), Counter: counter,
		})
	}
	v, err = login(1)
	require.NoError(t, err)
	assert.True(t, v.FirstUse)
	assert.False(t, v.TrustEscalation)
	v, err = login(2)
	require.NoError(t, err)
	assert.True(t, v.TrustEscalation)

	require.NoError(t, e.svc.Revoke(ctx, "acme", "cred-1"))
	_, err = login(3)
	assert.True(t, apperrors.IsKind(err, apperrors.KindCredentialRevoked))

	assert.Len(t, e.issuer.got, 3)
	types := make([]string, 0, len(e.audit.events))
	for _, ev := range e.audit.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		audit.EventChallengeIssued,
		audit.EventCredentialEnrolled,
		audit.EventChallengeIssued,
		audit.EventLoginVerified,
		audit.EventLoginVerified,
		audit.EventCredentialRevoked,
		audit.EventLoginVerified,
	}, types)
	assert.Equal(t, "CREDENTIAL_REVOKED", e.audit.events[6].Outcome)
}

func TestRequestChallenge_RefreshTokenRejections(t *testing.T) {
	e := newEnv(t)
	revokedAt := now.Add(-time.Minute)
	e.rts.Add(repository.RefreshToken{UserID: "u1", TenantID: "acme", ClientID: "mobile",
		TokenHash: tokens.SHA256Base64URL("rt-revoked"), ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt})
	e.rts.Add(repository.RefreshToken{UserID: "u1", TenantID: "acme", ClientID: "mobile",
		TokenHash: tokens.SHA256Base64URL("rt-expired"), ExpiresAt: now})

	cases := map[string]ChallengeRequest{
		"unknown":      {RefreshToken: "nope", ClientID: "mobile", DeviceMetadata: device},
		"other client": {RefreshToken: "rt-1", ClientID: "web", DeviceMetadata: device},
		"revoked":      {RefreshToken: "rt-revoked", ClientID: "mobile", DeviceMetadata: device},
		"expired":      {RefreshToken: "rt-expired", ClientID: "mobile", DeviceMetadata: device},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.RequestChallenge(context.Background(), "acme", req)
			assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRefreshToken), "got %v", err)
		})
	}
}

func TestRequestChallenge_PlatformNotAllowed(t *testing.T) {
	e := newEnv(t)
	d := device
	d.Platform = "windows"
	_, err := e.svc.RequestChallenge(context.Background(), "acme", ChallengeRequest{RefreshToken: "rt-1", ClientID: "mobile", DeviceMetadata: d})
	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))
}

func TestComplete_IssuerReceivesTokenPolicy(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.src.PutValue("acme", string(tenantconfig.KeyToken), tenantconfig.TokenPolicy{AccessTokenTTLSeconds: 300}))
	ctx := context.Background()

	resp, err := e.svc.RequestChallenge(ctx, "acme", ChallengeRequest{RefreshToken: "rt-1", ClientID: "mobile", DeviceMetadata: device})
	require.NoError(t, err)
	_, err = e.svc.Complete(ctx, "acme", CompletionRequest{
		RefreshToken: "rt-1", State: resp.State, ClientID: "mobile",
		CredentialID: "cred-1", PublicKey: e.pub, Signature: e.sign(t, resp.State),
		DeviceMetadata: device,
	})
	require.NoError(t, err)

	require.Len(t, e.issuer.got, 1)
	tp := e.issuer.got[0].TokenPolicy
	require.NotNil(t, tp)
	assert.Equal(t, 300, tp.AccessTokenTTLSeconds)
	assert.Equal(t, 2592000, tp.RefreshTokenTTLSeconds)
}

func TestComplete_NoTokenPolicyConfigured(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.svc.RequestChallenge(ctx, "acme", ChallengeRequest{RefreshToken: "rt-1", ClientID: "mobile", DeviceMetadata: device})
	require.NoError(t, err)
	_, err = e.svc.Complete(ctx, "acme", CompletionRequest{
		RefreshToken: "rt-1", State: resp.State, ClientID: "mobile",
		CredentialID: "cred-1", PublicKey: e.pub, Signature: e.sign(t, resp.State),
		DeviceMetadata: device,
	})
	require.NoError(t, err)
	require.Len(t, e.issuer.got, 1)
	assert.Nil(t, e.issuer.got[0].TokenPolicy)
}
