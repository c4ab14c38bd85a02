package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Livez — процесс жив.
func (h *Handlers) Livez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// pingTimeout — дедлайн проверки одного хранилища.
const pingTimeout = 2 * time.Second

// Pinger — хранилище, доступность которого входит в готовность.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz — процесс готов принимать трафик: флаг Ready выставлен и все
// хранилища из Pingers отвечают. Открытые автоматы готовность не снимают:
// деградация провайдера обслуживается кэшем и 503 на конкретных маршрутах,
// а список таких автоматов виден в ответе.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil && !h.Ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}

	if failed := h.pingAll(r.Context()); len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "failed": failed})
		return
	}

	out := map[string]any{"status": "ok"}
	if h.Breakers != nil {
		if open := openBreakers(h.Breakers); len(open) > 0 {
			out["open_breakers"] = open
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) pingAll(ctx context.Context) []string {
	var failed []string
	for name, p := range h.Pingers {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	return failed
}

// Metrics — обработчик /metrics.
func (h *Handlers) Metrics() http.Handler {
	g := h.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
