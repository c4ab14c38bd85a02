package breaker

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
)

var errDown = errors.New("dependency down")

// fakeClock — управляемое время для проверки таймаута сброса.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
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

// transitions собирает переходы автомата.
type transitions struct {
	mu  sync.Mutex
	log [][2]State
}

func (tr *transitions) hook(_ string, from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.log = append(tr.log, [2]State{from, to})
}

func (tr *transitions) all() [][2]State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([][2]State(nil), tr.log...)
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBreaker(clock *fakeClock, tr *transitions) *Breaker {
	return New(Settings{
		Name:             "provider",
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
		SuccessThreshold: 2,
		Now:              clock.Now,
		OnStateChange:    tr.hook,
		Logger:           silentLogger(),
	})
}

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestNew_AppliesDefaults(t *testing.T) {
	t.Parallel()

	b := New(Settings{Name: "x"})
	s := b.Snapshot()

	require.Equal(t, Closed, s.State)
	require.Equal(t, DefaultFailureThreshold, s.FailureThreshold)
	require.Equal(t, DefaultResetTimeout, s.ResetTimeout)
	require.Equal(t, DefaultSuccessThreshold, s.SuccessThreshold)
}

func TestBreaker_OpensAfterThresholdAndShortCircuits(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tr := &transitions{}
	b := newTestBreaker(clock, tr)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, b.Execute(ctx, fail, nil), errDown)
		require.Equal(t, Closed, b.State())
	}
	require.Equal(t, 2, b.Snapshot().Failures)

	require.ErrorIs(t, b.Execute(ctx, fail, nil), errDown)
	require.Equal(t, Open, b.State())

	var invoked bool
	err := b.Execute(ctx, func(context.Context) error {
		invoked = true
		return nil
	}, nil)

	require.False(t, invoked, "в Open функция не должна вызываться")
	require.ErrorIs(t, err, ErrOpen)

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "provider", openErr.Name)
	require.Equal(t, clock.Now().Add(time.Minute), openErr.RetryAt)

	require.Equal(t, [][2]State{{Closed, Open}}, tr.all())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := newTestBreaker(newFakeClock(), &transitions{})
	ctx := context.Background()

	_ = b.Execute(ctx, fail, nil)
	_ = b.Execute(ctx, fail, nil)
	require.NoError(t, b.Execute(ctx, ok, nil))
	require.Equal(t, 0, b.Snapshot().Failures)

	_ = b.Execute(ctx, fail, nil)
	_ = b.Execute(ctx, fail, nil)
	require.Equal(t, Closed, b.State(), "счётчик должен считать только подряд идущие сбои")
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tr := &transitions{}
	b := newTestBreaker(clock, tr)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail, nil)
	}
	require.Equal(t, Open, b.State())

	clock.Advance(time.Minute)

	require.NoError(t, b.Execute(ctx, ok, nil))
	require.Equal(t, HalfOpen, b.State())
	require.Equal(t, 1, b.Snapshot().Successes)

	require.NoError(t, b.Execute(ctx, ok, nil))
	require.Equal(t, Closed, b.State())

	s := b.Snapshot()
	require.Equal(t, 0, s.Failures)
	require.Equal(t, 0, s.Successes)

	require.Equal(t, [][2]State{{Closed, Open}, {Open, HalfOpen}, {HalfOpen, Closed}}, tr.all())
}

func TestBreaker_HalfOpenFailureReopensImmediately(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tr := &transitions{}
	b := newTestBreaker(clock, tr)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail, nil)
	}
	clock.Advance(time.Minute)

	require.NoError(t, b.Execute(ctx, ok, nil))
	require.Equal(t, 1, b.Snapshot().Successes)

	clock.Advance(time.Second)
	require.ErrorIs(t, b.Execute(ctx, fail, nil), errDown)

	s := b.Snapshot()
	require.Equal(t, Open, s.State)
	require.Equal(t, 0, s.Successes)
	require.Equal(t, clock.Now(), s.LastFailure, "время сбоя обновляется при повторном открытии")

	// Новый таймаут отсчитывается от последнего сбоя.
	clock.Advance(30 * time.Second)
	require.ErrorIs(t, b.Execute(ctx, ok, nil), ErrOpen)
}

func TestBreaker_NotBeforeResetTimeout(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newTestBreaker(clock, &transitions{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail, nil)
	}

	clock.Advance(time.Minute - time.Millisecond)
	require.ErrorIs(t, b.Execute(ctx, ok, nil), ErrOpen)
	require.Equal(t, Open, b.State())
}

func TestBreaker_HalfOpenLimitsConcurrentProbes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newTestBreaker(clock, &transitions{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail, nil)
	}
	clock.Advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup

	// Две пробы (SuccessThreshold=2) зависают внутри fn.
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(ctx, func(context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			}, nil)
		}()
	}
	<-started
	<-started

	// Третья проба отклоняется, пока первые две не завершились.
	require.ErrorIs(t, b.Execute(ctx, ok, nil), ErrOpen)

	close(release)
	wg.Wait()

	require.Equal(t, Closed, b.State())
}

func TestBreaker_NeutralOutcomeDoesNotCount(t *testing.T) {
	t.Parallel()

	b := newTestBreaker(newFakeClock(), &transitions{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := b.Execute(ctx, func(context.Context) error { return context.Canceled }, nil)
		require.ErrorIs(t, err, context.Canceled)
	}

	require.Equal(t, Closed, b.State())
	require.Equal(t, 0, b.Snapshot().Failures)
}

func TestBreaker_CustomClassifierTreatsBusinessErrorsAsSuccess(t *testing.T) {
	t.Parallel()

	business := errors.New("invalid request")
	b := New(Settings{
		Name:             "provider",
		FailureThreshold: 1,
		Classify: func(err error) Outcome {
			if err == nil || errors.Is(err, business) {
				return Success
			}
			return Failure
		},
		Logger: silentLogger(),
	})

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, b.Execute(context.Background(), func(context.Context) error { return business }, nil), business)
	}
	require.Equal(t, Closed, b.State())
}

func TestBreaker_FallbackReceivesClassifiedError(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newTestBreaker(clock, &transitions{})
	ctx := context.Background()

	var causes []error
	fallback := func(_ context.Context, cause error) error {
		causes = append(causes, cause)
		return nil
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Execute(ctx, fail, fallback))
	}
	require.Equal(t, Open, b.State(), "сбои учитываются даже при успешном fallback")

	require.NoError(t, b.Execute(ctx, ok, fallback))
	require.Len(t, causes, 4)
	require.ErrorIs(t, causes[0], errDown)
	require.ErrorIs(t, causes[3], ErrOpen)
}

func TestBreaker_ConcurrentFailuresTripOnce(t *testing.T) {
	t.Parallel()

	tr := &transitions{}
	b := newTestBreaker(newFakeClock(), tr)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), fail, nil)
		}()
	}
	wg.Wait()

	require.Equal(t, Open, b.State())
	require.Equal(t, [][2]State{{Closed, Open}}, tr.all(), "переход в Open должен произойти ровно один раз")
}

func TestBreaker_StaleResultIsIgnored(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newTestBreaker(clock, &transitions{})
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})

	// Медленный успешный вызов стартует в Closed.
	go func() {
		defer close(done)
		_ = b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		}, nil)
	}()
	<-started

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail, nil)
	}
	require.Equal(t, Open, b.State())

	close(release)
	<-done

	s := b.Snapshot()
	require.Equal(t, Open, s.State, "успех из прошлого поколения не должен влиять на Open")
	require.Equal(t, 3, s.Failures)
}

func TestBreaker_PanicCountsAsFailure(t *testing.T) {
	t.Parallel()

	b := newTestBreaker(newFakeClock(), &transitions{})

	require.Panics(t, func() {
		_ = b.Execute(context.Background(), func(context.Context) error { panic("boom") }, nil)
	})
	require.Equal(t, 1, b.Snapshot().Failures)
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	tr := &transitions{}
	b := newTestBreaker(newFakeClock(), tr)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail, nil)
	}
	b.Reset()

	s := b.Snapshot()
	require.Equal(t, Closed, s.State)
	require.Equal(t, 0, s.Failures)
	require.Equal(t, [][2]State{{Closed, Open}, {Open, Closed}}, tr.all())
}

func TestDo_ReturnsValueOrFallback(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newTestBreaker(clock, &transitions{})
	ctx := context.Background()

	v, err := Do(ctx, b, func(context.Context) (int, error) { return 42, nil }, nil)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	var calls int32
	fallback := func(_ context.Context, cause error) (int, error) {
		atomic.AddInt32(&calls, 1)
		if errors.Is(cause, ErrOpen) {
			return -1, nil
		}
		return 0, cause
	}

	for i := 0; i < 3; i++ {
		_, err := Do(ctx, b, func(context.Context) (int, error) { return 0, errDown }, fallback)
		require.ErrorIs(t, err, errDown)
	}

	v, err = Do(ctx, b, func(context.Context) (int, error) { return 7, nil }, fallback)
	require.NoError(t, err)
	require.Equal(t, -1, v)
	require.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "closed", Closed.String())
	require.Equal(t, "open", Open.String())
	require.Equal(t, "half_open", HalfOpen.String())
	require.Equal(t, "state(9)", State(9).String())
}
