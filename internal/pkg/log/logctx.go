// log хранит request-scoped *slog.Logger в context.Context.
//
// Транспорт кладёт логгер с request_id в контекст запроса, дальше сервисы
// и хранилища пишут через From(ctx) и наследуют корреляцию.
package log

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// Into кладёт логгер в контекст. nil не сохраняется.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}

	return context.WithValue(ctx, loggerKey{}, l)
}

// From достаёт логгер из контекста; без него возвращает slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

// WithAttrs возвращает контекст с логгером, дополненным attrs.
// Логгер родительского контекста не меняется.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}

	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}

	return Into(ctx, From(ctx).With(args...))
}
