// gateway — единая точка вызова внешних зависимостей.
//
// Порядок обработки вызова:
//  1. circuit breaker зависимости (из общего реестра);
//  2. внутри него RetryPolicy с дедлайном на каждую попытку;
//  3. при успехе результат кладётся в кэш по ключу идемпотентности;
//  4. кэш читается только как fallback, когда автомат открыт.
//
// Бизнес-ошибки зависимости не повторяются и не считаются сбоями автомата.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/cache"
	"github.com/pribylovaa/flexibill/internal/config"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/retry"
)

// DefaultCacheTTL — срок жизни закэшированного ответа по умолчанию.
const DefaultCacheTTL = time.Hour

// Исходы вызова для хуков и метрик.
const (
	ResultSuccess       = "success"
	ResultError         = "error"
	ResultOpen          = "open"
	ResultCacheFallback = "cache_fallback"
)

// Config — пороги автоматов и TTL кэша.
type Config struct {
	Breakers config.BreakersConfig
	CacheTTL time.Duration
}

// Hooks — обратные вызовы для метрик. Любое поле может быть nil.
type Hooks struct {
	OnRetry  func(dependency string, attempt int, err error)
	OnResult func(dependency, result string, elapsed time.Duration)
}

// Gateway хранит зависимости вызова. Создаётся в main и передаётся сервисам.
type Gateway struct {
	registry *breaker.Registry
	cache    cache.ResponseCache
	policy   retry.Policy
	cfg      Config
	hooks    Hooks
	now      func() time.Time
}

// Option настраивает Gateway.
type Option func(*Gateway)

// WithHooks задаёт хуки метрик.
func WithHooks(h Hooks) Option {
	return func(g *Gateway) { g.hooks = h }
}

// WithClock подменяет источник времени (для замеров длительности).
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New создаёт Gateway. cache может быть nil: тогда fallback недоступен.
func New(registry *breaker.Registry, c cache.ResponseCache, policy retry.Policy, cfg Config, opts ...Option) *Gateway {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	g := &Gateway{
		registry: registry,
		cache:    c,
		policy:   policy,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Classify — классификатор исходов для реестра автоматов:
// временная ошибка — сбой, отмена вызывающим — нейтрально,
// успех и бизнес-ошибка — успех (зависимость ответила корректно).
func Classify(err error) breaker.Outcome {
	switch {
	case err == nil:
		return breaker.Success
	case errors.Is(err, context.Canceled):
		return breaker.Neutral
	case retry.IsTransient(err):
		return breaker.Failure
	default:
		return breaker.Success
	}
}

// Breaker возвращает автомат зависимости с порогами из конфигурации.
func (g *Gateway) Breaker(dependency string) *breaker.Breaker {
	bc := g.cfg.Breakers.For(dependency)
	return g.registry.GetOrCreate(dependency, bc.FailureThreshold, bc.ResetTimeout, bc.SuccessThreshold)
}

// Call выполняет fn через автомат и политику повторов зависимости.
//
// key — ключ идемпотентности для кэша; пустой key отключает кэширование.
// Ошибки: *breaker.OpenError, если автомат открыт и кэша нет; иначе
// *DependencyError с исходной ошибкой внутри.
func Call[T any](ctx context.Context, g *Gateway, dependency, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	lg := log.From(ctx).With(slog.String("dependency", dependency))
	started := g.now()

	policy := g.policy
	base := policy.OnRetry
	policy.OnRetry = func(ctx context.Context, attempt int, delay time.Duration, err error) {
		lg.Warn("dependency_retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("err", err.Error()),
		)
		if g.hooks.OnRetry != nil {
			g.hooks.OnRetry(dependency, attempt, err)
		}
		if base != nil {
			base(ctx, attempt, delay, err)
		}
	}

	fromCache := false
	fallback := func(ctx context.Context, cause error) (T, error) {
		if !errors.Is(cause, breaker.ErrOpen) || key == "" {
			return zero, cause
		}

		v, ok := cached[T](ctx, g, dependency, key)
		if !ok {
			return zero, cause
		}

		fromCache = true
		lg.Info("dependency_served_from_cache", slog.String("key", key))
		return v, nil
	}

	res, err := breaker.Do(ctx, g.Breaker(dependency), func(ctx context.Context) (T, error) {
		return retry.Do(ctx, policy, fn)
	}, fallback)

	elapsed := g.now().Sub(started)
	switch {
	case err == nil && fromCache:
		g.result(dependency, ResultCacheFallback, elapsed)
		return res, nil
	case err == nil:
		g.result(dependency, ResultSuccess, elapsed)
		if key != "" {
			store(ctx, g, dependency, key, res)
		}
		return res, nil
	case errors.Is(err, breaker.ErrOpen):
		g.result(dependency, ResultOpen, elapsed)
		lg.Warn("dependency_unavailable", slog.String("err", err.Error()))
		return zero, err
	default:
		g.result(dependency, ResultError, elapsed)
		return zero, &DependencyError{
			Dependency: dependency,
			Transient:  classifyTransient(policy, err),
			Err:        err,
		}
	}
}

func (g *Gateway) result(dependency, result string, elapsed time.Duration) {
	if g.hooks.OnResult != nil {
		g.hooks.OnResult(dependency, result, elapsed)
	}
}

func cacheKey(dependency, key string) string {
	return dependency + ":" + key
}

// cached читает значение из кэша. Ошибки кэша не фатальны: это просто промах.
func cached[T any](ctx context.Context, g *Gateway, dependency, key string) (T, bool) {
	var v T
	if g.cache == nil {
		return v, false
	}

	raw, ok, err := g.cache.Get(ctx, cacheKey(dependency, key))
	if err != nil {
		log.From(ctx).Warn("cache_get_failed",
			slog.String("dependency", dependency),
			slog.String("err", err.Error()),
		)
		return v, false
	}
	if !ok {
		return v, false
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		log.From(ctx).Warn("cache_decode_failed",
			slog.String("dependency", dependency),
			slog.String("err", err.Error()),
		)
		return v, false
	}

	return v, true
}

// store пишет значение в кэш с TTL; ошибки только логируются.
func store[T any](ctx context.Context, g *Gateway, dependency, key string, v T) {
	if g.cache == nil {
		return
	}

	raw, err := json.Marshal(v)
	if err == nil {
		err = g.cache.Set(ctx, cacheKey(dependency, key), raw, g.cfg.CacheTTL)
	}
	if err != nil {
		log.From(ctx).Warn("cache_set_failed",
			slog.String("dependency", dependency),
			slog.String("err", err.Error()),
		)
	}
}
