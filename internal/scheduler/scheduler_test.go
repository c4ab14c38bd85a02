package scheduler

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

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// observed собирает результаты запусков.
type observed struct {
	mu  sync.Mutex
	got map[string]int
}

func (o *observed) hook(_ string, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.got == nil {
		o.got = map[string]int{}
	}
	o.got[result]++
}

func (o *observed) count(result string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.got[result]
}

func runAsync(t *testing.T, s *Scheduler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return cancel, done
}

func TestEvery_Validation(t *testing.T) {
	t.Parallel()

	s := New(silentLogger())
	require.Error(t, s.Every("zero", 0, false, func(context.Context) error { return nil }))
	require.Error(t, s.Every("nil", time.Second, false, nil))
	require.NoError(t, s.Every("ok", time.Second, false, func(context.Context) error { return nil }))
}

func TestRun_RunNowAndTicks(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(silentLogger())
	require.NoError(t, s.Every("cleanup", 10*time.Millisecond, true, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_RunNowFiresBeforeFirstTick(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	s := New(silentLogger())
	require.NoError(t, s.Every("initial", time.Hour, true, func(context.Context) error {
		fired <- struct{}{}
		return nil
	}))

	cancel, done := runAsync(t, s)
	defer func() { cancel(); <-done }()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("runNow job did not fire")
	}
}

func TestRun_SkipIfBusy(t *testing.T) {
	t.Parallel()

	obs := &observed{}
	release := make(chan struct{})
	var started atomic.Int32

	s := New(silentLogger(), WithObserver(obs.hook))
	require.NoError(t, s.Every("slow", 5*time.Millisecond, true, func(ctx context.Context) error {
		started.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool { return obs.count(ResultSkipped) >= 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), started.Load(), "пока запуск идёт, новые не стартуют")

	close(release)
	require.Eventually(t, func() bool { return started.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRun_PanicRecoveredAndErrorsReported(t *testing.T) {
	t.Parallel()

	obs := &observed{}
	var calls atomic.Int32
	s := New(silentLogger(), WithObserver(obs.hook))
	require.NoError(t, s.Every("flaky", 5*time.Millisecond, true, func(context.Context) error {
		switch calls.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return errors.New("db down")
		default:
			return nil
		}
	}))

	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool { return obs.count(ResultOK) >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, 1, obs.count(ResultPanic))
	require.Equal(t, 1, obs.count(ResultError))
}

func TestRun_WaitsForInFlightJob(t *testing.T) {
	t.Parallel()

	var finished atomic.Bool
	entered := make(chan struct{})
	s := New(silentLogger())
	require.NoError(t, s.Every("sweep", time.Hour, true, func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}))

	cancel, done := runAsync(t, s)
	<-entered
	cancel()
	<-done

	require.True(t, finished.Load(), "Run возвращается только после завершения задачи")
}

func TestRun_Twice(t *testing.T) {
	t.Parallel()

	s := New(silentLogger())
	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool { return s.started.Load() }, time.Second, time.Millisecond)

	require.Error(t, s.Run(context.Background()))
	require.Error(t, s.Every("late", time.Second, false, func(context.Context) error { return nil }))

	cancel()
	<-done
}
