package credential

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustcore/internal/challenge"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/store/memory"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

var policy = tenantconfig.BiometricPolicy{
	ChallengeTTLSeconds: 120,
	AllowedPlatforms:    []string{"ios", "android"},
	AllowedAlgorithms:   []string{"ES256", "RS256", "EdDSA"},
	AllowedBindingTypes: []string{"biometric", "device_credential"},
}

type fixture struct {
	challenges *challenge.Store
	creds      *memory.Credentials
	store      *Store
	verifier   *Verifier
	key        *ecdsa.PrivateKey
	pub        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	cs, err := challenge.NewStore(challenge.Options{Repo: memory.NewChallenges(), Now: now})
	require.NoError(t, err)
	creds := memory.NewCredentials()
	st := NewStore(creds, time.Second, now)
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &fixture{
		challenges: cs,
		creds:      creds,
		store:      st,
		verifier:   NewVerifier(cs, st, now),
		key:        k,
		pub:        spkiB64(t, &k.PublicKey, base64.StdEncoding),
	}
}

func (f *fixture) issue(t *testing.T) *challenge.Challenge {
	t.Helper()
	ch, err := f.challenges.Issue(context.Background(), challenge.IssueInput{
		TenantID: "acme", ClientID: "mobile", UserID: "u1",
		Device:       challenge.DeviceMetadata{Platform: "ios", DeviceID: "d1", DeviceName: "iPhone"},
		RefreshToken: "rt-1",
	}, 2*time.Minute)
	require.NoError(t, err)
	return ch
}

func (f *fixture) enrollInput(t *testing.T, ch *challenge.Challenge) EnrollInput {
	return EnrollInput{
		TenantID: "acme", ClientID: "mobile", State: ch.State, RefreshToken: "rt-1",
		Device:       challenge.DeviceMetadata{Platform: "ios", DeviceID: "d1"},
		CredentialID: "cred-1", PublicKey: f.pub, Alg: "ES256", BindingType: "biometric",
		Signature: base64.StdEncoding.EncodeToString(signES256(t, f.key, []byte(ch.State))),
	}
}

func (f *fixture) enroll(t *testing.T) {
	t.Helper()
	_, err := f.verifier.Complete(context.Background(), policy, f.enrollInput(t, f.issue(t)))
	require.NoError(t, err)
}

func (f *fixture) login(t *testing.T, counter uint64) LoginInput {
	payload := LoginPayload(counter, "bm9uY2U")
	return LoginInput{
		TenantID: "acme", CredentialID: "cred-1", SignedPayload: payload, Counter: counter,
		Signature: base64.RawURLEncoding.EncodeToString(signES256(t, f.key, []byte(payload))),
	}
}

func TestComplete_EnrollsCredential(t *testing.T) {
	f := newFixture(t)
	ch := f.issue(t)

	res, err := f.verifier.Complete(context.Background(), policy, f.enrollInput(t, ch))
	require.NoError(t, err)
	c := res.Credential
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "d1", c.DeviceID)
	assert.Equal(t, "iPhone", c.DeviceName)
	assert.Equal(t, uint64(0), c.SignCount)
	assert.True(t, c.IsActive)
	assert.False(t, c.FirstUseComplete)
	assert.Equal(t, ch.RefreshTokenHash, res.Challenge.RefreshTokenHash)

	stored, err := f.store.Get(context.Background(), "acme", "cred-1")
	require.NoError(t, err)
	assert.Equal(t, f.pub, stored.PublicKey)
}

func TestComplete_BadSignatureStillConsumesChallenge(t *testing.T) {
	f := newFixture(t)
	ch := f.issue(t)
	in := f.enrollInput(t, ch)
	good := in.Signature
	in.Signature = base64.StdEncoding.EncodeToString(signES256(t, f.key, []byte("wrong")))

	_, err := f.verifier.Complete(context.Background(), policy, in)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidSignature))

	in.Signature = good
	_, err = f.verifier.Complete(context.Background(), policy, in)
	assert.True(t, apperrors.IsKind(err, apperrors.KindChallengeNotFound))
}

func TestComplete_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EnrollInput)
		kind   apperrors.Kind
	}{
		{"other refresh token", func(in *EnrollInput) { in.RefreshToken = "rt-2" }, apperrors.KindChallengeNotFound},
		{"other device", func(in *EnrollInput) { in.Device.DeviceID = "d2" }, apperrors.KindChallengeNotFound},
		{"unknown state", func(in *EnrollInput) { in.State = "nope" }, apperrors.KindChallengeNotFound},
		{"bad public key", func(in *EnrollInput) { in.PublicKey = "Zm9vYmFy" }, apperrors.KindInvalidPublicKey},
		{"alg not allowed", func(in *EnrollInput) { in.Alg = "ES384" }, apperrors.KindBadRequest},
		{"binding not allowed", func(in *EnrollInput) { in.BindingType = "pin" }, apperrors.KindBadRequest},
		{"signature not base64", func(in *EnrollInput) { in.Signature = "***" }, apperrors.KindInvalidSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			in := f.enrollInput(t, f.issue(t))
			tc.mutate(&in)
			_, err := f.verifier.Complete(context.Background(), policy, in)
			assert.True(t, apperrors.IsKind(err, tc.kind), "got %v", err)
		})
	}
}

func TestComplete_DuplicateCredential(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)

	_, err := f.verifier.Complete(context.Background(), policy, f.enrollInput(t, f.issue(t)))
	assert.True(t, apperrors.IsKind(err, apperrors.KindCredentialAlreadyExists))
}

func TestVerify_CounterMustIncrease(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	ctx := context.Background()

	first, err := f.verifier.Verify(ctx, policy, f.login(t, 5))
	require.NoError(t, err)
	assert.True(t, first.FirstUse)
	assert.False(t, first.TrustEscalation)
	assert.True(t, first.Credential.FirstUseComplete)

	_, err = f.verifier.Verify(ctx, policy, f.login(t, 5))
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidSignature))

	second, err := f.verifier.Verify(ctx, policy, f.login(t, 6))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), second.Credential.SignCount)
	assert.False(t, second.FirstUse)
	assert.True(t, second.TrustEscalation)
}

func TestVerify_ReplayedRequestFails(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	in := f.login(t, 1)

	_, err := f.verifier.Verify(context.Background(), policy, in)
	require.NoError(t, err)
	_, err = f.verifier.Verify(context.Background(), policy, in)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidSignature))
}

func TestVerify_CounterOverflowFailsSafe(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	_, err := f.verifier.Verify(context.Background(), policy, f.login(t, math.MaxInt64+1))
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidSignature))
}

func TestVerify_CapturedSignatureWithHigherCounterFails(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	ctx := context.Background()
	captured := f.login(t, 6)
	_, err := f.verifier.Verify(ctx, policy, captured)
	require.NoError(t, err)

	for _, counter := range []uint64{7, 1 << 62} {
		replay := captured
		replay.Counter = counter
		_, err = f.verifier.Verify(ctx, policy, replay)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidSignature), "counter %d: %v", counter, err)
	}

	c, err := f.store.Get(ctx, "acme", "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), c.SignCount)

	next, err := f.verifier.Verify(ctx, policy, f.login(t, 7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), next.Credential.SignCount)
}

func TestVerify_CounterTakenFromSignedPayload(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	in := f.login(t, 4)
	in.Counter = 0

	res, err := f.verifier.Verify(context.Background(), policy, in)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Credential.SignCount)
}

func TestVerify_MalformedPayloadRejected(t *testing.T) {
	for _, payload := range []string{"login-payload", "5.", ".nonce", "-1.n", "+5.n", "99999999999999999999.n"} {
		t.Run(payload, func(t *testing.T) {
			f := newFixture(t)
			f.enroll(t)
			in := LoginInput{
				TenantID: "acme", CredentialID: "cred-1", SignedPayload: payload,
				Signature: base64.RawURLEncoding.EncodeToString(signES256(t, f.key, []byte(payload))),
			}
			_, err := f.verifier.Verify(context.Background(), policy, in)
			assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidSignature), "got %v", err)
		})
	}
}

func TestSignedCounter(t *testing.T) {
	n, err := SignedCounter(LoginPayload(42, "abc"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	_, err = SignedCounter("9223372036854775808.abc")
	assert.Error(t, err)
	n, err = SignedCounter("9223372036854775807.abc")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxInt64), n)
}

func TestVerify_BadSignatureDoesNotAdvanceCounter(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	in := f.login(t, 3)
	in.SignedPayload = LoginPayload(3, "tampered")

	_, err := f.verifier.Verify(context.Background(), policy, in)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidSignature))
	c, err := f.store.Get(context.Background(), "acme", "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), c.SignCount)
}

func TestVerify_RevokedAlwaysFails(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	require.NoError(t, f.store.Revoke(context.Background(), "acme", "cred-1"))
	require.NoError(t, f.store.Revoke(context.Background(), "acme", "cred-1"))

	_, err := f.verifier.Verify(context.Background(), policy, f.login(t, 10))
	assert.True(t, apperrors.IsKind(err, apperrors.KindCredentialRevoked))
}

func TestVerify_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.verifier.Verify(context.Background(), policy, f.login(t, 1))
	assert.True(t, apperrors.IsKind(err, apperrors.KindCredentialNotFound))

	err = f.store.Revoke(context.Background(), "acme", "missing")
	assert.True(t, apperrors.IsKind(err, apperrors.KindCredentialNotFound))
}

func TestVerify_ConcurrentSameCounterSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	in := f.login(t, 1)

	const n = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		bad int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.verifier.Verify(context.Background(), policy, in)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperrors.IsKind(err, apperrors.KindInvalidSignature) {
				bad++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, bad)
}

func TestActiveForDevice(t *testing.T) {
	f := newFixture(t)
	c, err := f.store.ActiveForDevice(context.Background(), "acme", "u1", "d1")
	require.NoError(t, err)
	assert.Nil(t, c)

	f.enroll(t)
	c, err = f.store.ActiveForDevice(context.Background(), "acme", "u1", "d1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "cred-1", c.CredentialID)
}
