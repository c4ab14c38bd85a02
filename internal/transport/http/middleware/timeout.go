package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/flexibill/internal/pkg/log"
)

// errRequestTimeout — причина отмены по серверному дедлайну запроса.
var errRequestTimeout = errors.New("request timeout exceeded")

// Timeout ограничивает обработку запроса дедлайном d; более ранний дедлайн
// сохраняется. Значение <=0 делает мидлвар no-op. Срабатывание именно
// серверного дедлайна отмечается в логе запроса.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeoutCause(r.Context(), d, errRequestTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(context.Cause(ctx), errRequestTimeout) {
				log.From(ctx).Warn("request_timeout",
					slog.String("path", r.URL.Path),
					slog.Duration("timeout", d),
				)
			}
		})
	}
}
