package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/cache"
	"github.com/pribylovaa/flexibill/internal/config"
	"github.com/pribylovaa/flexibill/internal/provider"
	"github.com/pribylovaa/flexibill/internal/retry"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type balance struct {
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
}

// newTestGateway собирает Gateway с порогами 5/30s/2, кэшем в памяти и
// политикой без пауз.
func newTestGateway(t *testing.T, policy retry.Policy, hooks Hooks) (*Gateway, *breaker.Registry, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := breaker.NewRegistry(
		breaker.WithClassifier(Classify),
		breaker.WithClock(clock.Now),
		breaker.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	cfg := Config{
		Breakers: config.BreakersConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			SuccessThreshold: 2,
		},
		CacheTTL: time.Hour,
	}

	return New(reg, cache.NewMemory(), policy, cfg, WithHooks(hooks)), reg, clock
}

func fastPolicy(maxRetries int, attemptTimeout time.Duration) retry.Policy {
	return retry.Policy{
		MaxRetries:     maxRetries,
		BaseDelay:      time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		AttemptTimeout: attemptTimeout,
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	require.Equal(t, breaker.Success, Classify(nil))
	require.Equal(t, breaker.Neutral, Classify(context.Canceled))
	require.Equal(t, breaker.Failure, Classify(context.DeadlineExceeded))
	require.Equal(t, breaker.Failure, Classify(&provider.Error{Status: 503, Code: "SERVICE_UNAVAILABLE"}))
	require.Equal(t, breaker.Success, Classify(&provider.Error{Status: 400, Code: "ITEM_LOGIN_REQUIRED"}))
	require.Equal(t, breaker.Success, Classify(errors.New("validation failed")))
}

// Пять таймаутов открывают автомат, шестой вызов обслуживается из кэша.
func TestCall_FiveTimeoutsThenCachedSixth(t *testing.T) {
	t.Parallel()

	var results sync.Map
	hooks := Hooks{OnResult: func(dep, result string, _ time.Duration) {
		v, _ := results.LoadOrStore(result, new(atomic.Int32))
		v.(*atomic.Int32).Add(1)
	}}
	g, reg, _ := newTestGateway(t, fastPolicy(0, 20*time.Millisecond), hooks)
	ctx := context.Background()

	want := []balance{{AccountID: "a1", Amount: 42}}
	got, err := Call(ctx, g, "plaid-api", "accounts:item-1", func(ctx context.Context) ([]balance, error) {
		return want, nil
	})
	require.NoError(t, err)
	require.Equal(t, want, got)

	var calls atomic.Int32
	hang := func(ctx context.Context) ([]balance, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	for i := 0; i < 5; i++ {
		_, err := Call(ctx, g, "plaid-api", "accounts:item-1", hang)
		var depErr *DependencyError
		require.True(t, errors.As(err, &depErr), "call %d: %v", i, err)
		require.True(t, depErr.Transient)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	require.Equal(t, int32(5), calls.Load())

	b, ok := reg.Get("plaid-api")
	require.True(t, ok)
	require.Equal(t, breaker.Open, b.State())

	got, err = Call(ctx, g, "plaid-api", "accounts:item-1", hang)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, int32(5), calls.Load(), "при открытом автомате зависимость не вызывается")

	fb, _ := results.Load(ResultCacheFallback)
	require.NotNil(t, fb)
	require.Equal(t, int32(1), fb.(*atomic.Int32).Load())
}

func TestCall_OpenWithoutCache_ReturnsOpenError(t *testing.T) {
	t.Parallel()

	g, _, clock := newTestGateway(t, fastPolicy(0, 0), Hooks{})
	ctx := context.Background()
	down := &provider.Error{Status: 503, Code: "SERVICE_UNAVAILABLE"}

	for i := 0; i < 5; i++ {
		_, err := Call(ctx, g, "plaid-api", "", func(ctx context.Context) (int, error) { return 0, down })
		require.ErrorIs(t, err, down)
	}

	_, err := Call(ctx, g, "plaid-api", "missing-key", func(ctx context.Context) (int, error) { return 1, nil })
	var openErr *breaker.OpenError
	require.True(t, errors.As(err, &openErr))
	require.ErrorIs(t, err, breaker.ErrOpen)
	require.Equal(t, "plaid-api", openErr.Name)
	require.Equal(t, clock.Now().Add(30*time.Second), openErr.RetryAt)

	// После таймаута сброса пробные вызовы закрывают автомат.
	clock.Advance(30 * time.Second)
	for i := 0; i < 2; i++ {
		v, err := Call(ctx, g, "plaid-api", "", func(ctx context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		require.Equal(t, 7, v)
	}
	require.Equal(t, breaker.Closed, g.Breaker("plaid-api").State())
}

func TestCall_BusinessErrorNotRetriedNotCounted(t *testing.T) {
	t.Parallel()

	g, _, _ := newTestGateway(t, fastPolicy(3, 0), Hooks{})
	ctx := context.Background()
	bizErr := &provider.Error{Status: 400, Type: "ITEM_ERROR", Code: "ITEM_LOGIN_REQUIRED"}

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		_, err := Call(ctx, g, "plaid-api", "k", func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "", bizErr
		})
		var depErr *DependencyError
		require.True(t, errors.As(err, &depErr))
		require.False(t, depErr.Transient)
		require.Same(t, bizErr, errors.Unwrap(err))
	}

	require.Equal(t, int32(10), calls.Load(), "бизнес-ошибка не повторяется")
	snap := g.Breaker("plaid-api").Snapshot()
	require.Equal(t, breaker.Closed, snap.State)
	require.Zero(t, snap.Failures)
}

func TestCall_TransientRetriedThenSuccess(t *testing.T) {
	t.Parallel()

	var retries atomic.Int32
	g, _, _ := newTestGateway(t, fastPolicy(3, 0), Hooks{
		OnRetry: func(string, int, error) { retries.Add(1) },
	})

	var calls atomic.Int32
	v, err := Call(context.Background(), g, "plaid-api", "", func(ctx context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", &provider.Error{Status: 429, Code: "RATE_LIMIT_EXCEEDED"}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, int32(2), retries.Load())

	// Повторы внутри одного вызова — одна запись в автомате.
	require.Zero(t, g.Breaker("plaid-api").Snapshot().Failures)
}

func TestCall_CallerCancelIsNeutral(t *testing.T) {
	t.Parallel()

	g, _, _ := newTestGateway(t, fastPolicy(3, 0), Hooks{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 10; i++ {
		_, err := Call(ctx, g, "plaid-api", "", func(ctx context.Context) (int, error) { return 0, ctx.Err() })
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Equal(t, breaker.Closed, g.Breaker("plaid-api").State())
}

func TestCall_PerDependencyIsolationAndOverrides(t *testing.T) {
	t.Parallel()

	g, _, _ := newTestGateway(t, fastPolicy(0, 0), Hooks{})
	g.cfg.Breakers.Overrides = map[string]config.BreakerConfig{"plaid-api": {FailureThreshold: 3}}
	ctx := context.Background()
	transient := &provider.Error{Status: 500, Code: "INTERNAL_SERVER_ERROR"}

	for i := 0; i < 3; i++ {
		_, _ = Call(ctx, g, "plaid-api", "", func(ctx context.Context) (int, error) { return 0, transient })
	}
	require.Equal(t, breaker.Open, g.Breaker("plaid-api").State())
	require.Equal(t, breaker.Closed, g.Breaker("other-api").State())

	v, err := Call(ctx, g, "other-api", "", func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, v)
}
