package log

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому t.Parallel() не используется.

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capHandler собирает атрибуты последней записи, включая базовые из With.
type capHandler struct {
	base []slog.Attr
	last *map[string]any
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+4)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})
	*h.last = out
	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &capHandler{base: append(append([]slog.Attr{}, h.base...), attrs...), last: h.last}
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func TestFrom_ReturnsDefault_WhenNoLoggerInContext(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := newSilent()
	slog.SetDefault(def)

	require.Equal(t, def, From(context.Background()))
}

func TestIntoAndFrom_RoundTrip(t *testing.T) {
	l := newSilent()
	ctx := Into(context.Background(), l)

	require.Equal(t, l, From(ctx))
}

func TestFrom_IgnoresWrongTypeAndNil(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	def := newSilent()
	slog.SetDefault(def)

	ctxWrong := context.WithValue(context.Background(), loggerKey{}, "not-a-logger")
	require.Equal(t, def, From(ctxWrong))

	var nilLogger *slog.Logger
	ctxNil := context.WithValue(context.Background(), loggerKey{}, nilLogger)
	require.Equal(t, def, From(ctxNil))
}

func TestInto_NilLoggerKeepsContext(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, ctx, Into(ctx, nil))
}

func TestWithAttrs_AddsAttrsWithoutTouchingParent(t *testing.T) {
	last := map[string]any{}
	h := &capHandler{last: &last}
	parent := Into(context.Background(), slog.New(h))

	child := WithAttrs(parent, slog.String("family_id", "fam-1"))
	From(child).Info("child")

	require.Equal(t, "fam-1", last["family_id"])

	From(parent).Info("parent")
	_, leaked := last["family_id"]
	require.False(t, leaked, "атрибуты дочернего контекста не должны попадать в родительский логгер")
}

func TestWithAttrs_NoAttrs_ReturnsSameContext(t *testing.T) {
	ctx := Into(context.Background(), newSilent())
	require.Equal(t, ctx, WithAttrs(ctx))
}

func TestInto_PreservesCancellation(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	child := Into(parent, newSilent())

	select {
	case <-child.Done():
		require.ErrorIs(t, child.Err(), context.DeadlineExceeded)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("ожидали дедлайн у дочернего контекста")
	}
}
