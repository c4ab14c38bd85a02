package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/flexibill/internal/metrics"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/transport/http/apierrors"
)

var errPanic = errors.New("internal")

// Recover перехватывает panic и отвечает 500/internal.
// Детали паники пишутся только в лог, m (может быть nil) считает панику
// по шаблону маршрута.
func Recover(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Обрыв соединения самим net/http пробрасываем дальше.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				route := ""
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					route = rctx.RoutePattern()
				}

				log.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic_recovered",
					slog.String("path", r.URL.Path),
					slog.String("route", route),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				m.Panic("http", route)

				apierrors.WriteError(w, r, errPanic)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
