// metrics — коллекторы Prometheus сервиса.
//
// Коллекторы регистрируются на переданном prometheus.Registerer (в main —
// prometheus.DefaultRegisterer, в тестах — отдельный реестр). Все методы
// безопасны для nil-получателя: сервисы могут работать без метрик.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/gateway"
)

const namespace = "flexibill"

// Metrics содержит все коллекторы приложения.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DependencyCallsTotal   *prometheus.CounterVec
	DependencyCallDuration *prometheus.HistogramVec
	DependencyRetriesTotal *prometheus.CounterVec

	BreakerState            *prometheus.GaugeVec
	BreakerTransitionsTotal *prometheus.CounterVec

	TokenRotationsTotal  *prometheus.CounterVec
	TokenReuseTotal      prometheus.Counter
	TokensCleanedTotal   prometheus.Counter
	SchedulerRunsTotal   *prometheus.CounterVec
	SuspiciousUsersGauge prometheus.Gauge

	WebhooksTotal *prometheus.CounterVec

	PanicsTotal *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их на reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		),
		DependencyCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_calls_total",
				Help:      "Calls to external dependencies by result",
			},
			[]string{"dependency", "result"},
		),
		DependencyCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dependency_call_duration_seconds",
				Help:      "External dependency call duration including retries",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"dependency"},
		),
		DependencyRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_retries_total",
				Help:      "Retries of external dependency calls",
			},
			[]string{"dependency"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half_open",
			},
			[]string{"dependency"},
		),
		BreakerTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"dependency", "from", "to"},
		),
		TokenRotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_rotations_total",
				Help:      "Refresh token rotations by status",
			},
			[]string{"status"},
		),
		TokenReuseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_reuse_detected_total",
			Help:      "Refresh token reuse detections",
		}),
		TokensCleanedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_cleaned_total",
			Help:      "Expired refresh tokens revoked by cleanup",
		}),
		SchedulerRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_runs_total",
				Help:      "Background job runs by result",
			},
			[]string{"job", "result"},
		),
		SuspiciousUsersGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suspicious_users",
			Help:      "Users flagged by the last suspicious activity check",
		}),
		WebhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_total",
				Help:      "Provider webhooks by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		PanicsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panics_recovered_total",
				Help:      "Panics recovered in request handlers",
			},
			[]string{"transport", "handler"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DependencyCallsTotal,
		m.DependencyCallDuration,
		m.DependencyRetriesTotal,
		m.BreakerState,
		m.BreakerTransitionsTotal,
		m.TokenRotationsTotal,
		m.TokenReuseTotal,
		m.TokensCleanedTotal,
		m.SchedulerRunsTotal,
		m.SuspiciousUsersGauge,
		m.WebhooksTotal,
		m.PanicsTotal,
	)

	return m
}

// ObserveHTTP учитывает HTTP-запрос. route — шаблон маршрута, не сырой путь.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// GatewayHooks возвращает хуки gateway, пишущие в коллекторы зависимостей.
func (m *Metrics) GatewayHooks() gateway.Hooks {
	if m == nil {
		return gateway.Hooks{}
	}

	return gateway.Hooks{
		OnRetry: func(dependency string, _ int, _ error) {
			m.DependencyRetriesTotal.WithLabelValues(dependency).Inc()
		},
		OnResult: func(dependency, result string, elapsed time.Duration) {
			m.DependencyCallsTotal.WithLabelValues(dependency, result).Inc()
			m.DependencyCallDuration.WithLabelValues(dependency).Observe(elapsed.Seconds())
		},
	}
}

// BreakerStateChanged — хук реестра автоматов.
func (m *Metrics) BreakerStateChanged(name string, from, to breaker.State) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(to))
	m.BreakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
}

// TokenRotation учитывает исход ротации.
func (m *Metrics) TokenRotation(status string) {
	if m == nil {
		return
	}
	m.TokenRotationsTotal.WithLabelValues(status).Inc()
}

// TokenReuse учитывает обнаруженное повторное использование.
func (m *Metrics) TokenReuse() {
	if m == nil {
		return
	}
	m.TokenReuseTotal.Inc()
}

// TokensCleaned добавляет число отозванных при очистке токенов.
func (m *Metrics) TokensCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensCleanedTotal.Add(float64(n))
}

// SuspiciousUsers фиксирует результат последней проверки.
func (m *Metrics) SuspiciousUsers(n int) {
	if m == nil {
		return
	}
	m.SuspiciousUsersGauge.Set(float64(n))
}

// JobRun учитывает запуск фоновой задачи; result — ok, error, panic или skipped.
func (m *Metrics) JobRun(job, result string) {
	if m == nil {
		return
	}
	m.SchedulerRunsTotal.WithLabelValues(job, result).Inc()
}

// Webhook учитывает обработку webhook.
func (m *Metrics) Webhook(typ, outcome string) {
	if m == nil {
		return
	}
	if typ == "" {
		typ = "unknown"
	}
	m.WebhooksTotal.WithLabelValues(typ, outcome).Inc()
}

// Panic учитывает перехваченную панику. transport — http или grpc,
// handler — шаблон маршрута или полное имя gRPC-метода.
func (m *Metrics) Panic(transport, handler string) {
	if m == nil {
		return
	}
	if handler == "" {
		handler = "unknown"
	}
	m.PanicsTotal.WithLabelValues(transport, handler).Inc()
}
