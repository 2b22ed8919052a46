package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/store/memory"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type countingAttempts struct {
	repository.AttemptRepository
	calls int
}

func (c *countingAttempts) Get(ctx context.Context, k repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	c.calls++
	return c.AttemptRepository.Get(ctx, k, p, now)
}

func (c *countingAttempts) RegisterFailure(ctx context.Context, k repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	c.calls++
	return c.AttemptRepository.RegisterFailure(ctx, k, p, now)
}

func newLimiter(t *testing.T, withPolicy bool) (*Limiter, *clock, *countingAttempts) {
	t.Helper()
	src := memory.NewFeatureConfigs()
	if withPolicy {
		require.NoError(t, src.PutValue("acme", string(tenantconfig.KeyPasswordPinBlock), tenantconfig.PasswordPinBlockPolicy{
			AttemptsAllowed:       3,
			AttemptsWindowSeconds: 60,
			BlockIntervalSeconds:  300,
		}))
	}
	reg, err := tenantconfig.NewRegistry(tenantconfig.Options{Source: src})
	require.NoError(t, err)

	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := &countingAttempts{AttemptRepository: memory.NewAttempts()}
	l, err := New(Options{Registry: reg, Store: store, Now: clk.Now})
	require.NoError(t, err)
	return l, clk, store
}

var u1 = AttemptKey{TenantID: "acme", Type: "email", Identifier: "u1@example.com"}

func TestRecordAttempt_FourFailuresBlockForInterval(t *testing.T) {
	l, clk, _ := newLimiter(t, true)
	ctx := context.Background()
	start := clk.Now()

	for i, want := range []int{2, 1, 0} {
		v, err := l.RecordAttempt(ctx, u1, false)
		require.NoError(t, err, "attempt %d", i+1)
		assert.True(t, v.Allowed)
		assert.Equal(t, want, v.RemainingAttempts)
		clk.Advance(3 * time.Second)
	}

	v, err := l.RecordAttempt(ctx, u1, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMaxLoginAttemptsExceeded))
	assert.False(t, v.Allowed)
	require.NotNil(t, v.BlockedUntil)
	assert.Equal(t, start.Add(9*time.Second).Add(300*time.Second), *v.BlockedUntil)
	assert.NotEmpty(t, apperrors.FromError(err).Metadata["blocked_until"])
}

func TestRecordAttempt_BlockedDoesNotConsumeSlot(t *testing.T) {
	l, clk, _ := newLimiter(t, true)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = l.RecordAttempt(ctx, u1, false)
	}
	first, _ := l.Check(ctx, u1)
	require.False(t, first.Allowed)

	clk.Advance(time.Minute)
	v, err := l.RecordAttempt(ctx, u1, false)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMaxLoginAttemptsExceeded))
	assert.Equal(t, *first.BlockedUntil, *v.BlockedUntil, "block is not extended")

	// un éxito durante el bloqueo tampoco lo levanta
	_, err = l.RecordAttempt(ctx, u1, true)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMaxLoginAttemptsExceeded))

	// vencido el bloqueo, la ventana arranca de nuevo
	clk.Advance(5 * time.Minute)
	v, err = l.RecordAttempt(ctx, u1, false)
	require.NoError(t, err)
	assert.Equal(t, 2, v.RemainingAttempts)
}

func TestRecordAttempt_SuccessResets(t *testing.T) {
	l, _, _ := newLimiter(t, true)
	ctx := context.Background()

	_, _ = l.RecordAttempt(ctx, u1, false)
	_, _ = l.RecordAttempt(ctx, u1, false)
	v, err := l.RecordAttempt(ctx, u1, true)
	require.NoError(t, err)
	assert.Equal(t, 3, v.RemainingAttempts)

	v, err = l.Check(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, 3, v.RemainingAttempts)
}

func TestRecordAttempt_WindowExpiryRestartsCount(t *testing.T) {
	l, clk, _ := newLimiter(t, true)
	ctx := context.Background()

	_, _ = l.RecordAttempt(ctx, u1, false)
	_, _ = l.RecordAttempt(ctx, u1, false)
	_, _ = l.RecordAttempt(ctx, u1, false)
	clk.Advance(61 * time.Second)

	v, err := l.RecordAttempt(ctx, u1, false)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, 2, v.RemainingAttempts)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l, _, _ := newLimiter(t, true)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _ = l.RecordAttempt(ctx, u1, false)
	}
	other := u1
	other.Identifier = "u2@example.com"
	v, err := l.Check(ctx, other)
	require.NoError(t, err)
	assert.True(t, v.Allowed)

	// case-insensitive para email
	upper := u1
	upper.Identifier = "U1@Example.com"
	v, err = l.Check(ctx, upper)
	require.NoError(t, err)
	assert.False(t, v.Allowed)
}

func TestNotConfigured_NoStoreAccess(t *testing.T) {
	l, _, store := newLimiter(t, false)
	ctx := context.Background()

	_, err := l.RecordAttempt(ctx, u1, false)
	assert.True(t, apperrors.IsKind(err, apperrors.KindFeatureNotConfigured))
	_, err = l.Check(ctx, u1)
	assert.True(t, apperrors.IsKind(err, apperrors.KindFeatureNotConfigured))
	assert.Zero(t, store.calls)
}

func TestInvalidKey(t *testing.T) {
	l, _, _ := newLimiter(t, true)
	_, err := l.Check(context.Background(), AttemptKey{TenantID: "acme", Type: "fax", Identifier: "x"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))
}
