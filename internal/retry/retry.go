// retry реализует политику повторов вызовов внешних зависимостей:
// классификацию ошибок на временные/постоянные и экспоненциальный backoff
// с джиттером.
//
// Основные аспекты:
//   - Повторяются только временные ошибки (сеть, таймауты, HTTP 5xx/429,
//     коды провайдера из allow-list). Бизнес-ошибки возвращаются сразу.
//   - Каждая попытка получает собственный дедлайн (AttemptTimeout);
//     истечение дедлайна попытки — временная ошибка.
//   - Отмена вызывающей стороной (context.Canceled) прерывает цикл без повторов.
//   - Наружу отдаётся исходная ошибка последней попытки без обёрток.
package retry

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// Значения по умолчанию.
const (
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 30 * time.Second
	DefaultAttemptTimeout = 10 * time.Second

	// maxJitter — верхняя граница множителя джиттера: [1.0, 1.25].
	maxJitter = 0.25
)

// Коды ошибок провайдера, которые означают временную недоступность.
var transientCodes = map[string]struct{}{
	"RATE_LIMIT_EXCEEDED":   {},
	"INTERNAL_SERVER_ERROR": {},
	"SERVICE_UNAVAILABLE":   {},
	"PLANNED_MAINTENANCE":   {},
}

// httpStatuser реализуют ошибки, несущие HTTP-статус ответа зависимости.
type httpStatuser interface {
	HTTPStatus() int
}

// errorCoder реализуют ошибки, несущие машинный код провайдера.
type errorCoder interface {
	ErrorCode() string
}

// IsTransient сообщает, имеет ли смысл повторить вызов после err.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Отмена вызывающей стороной — не проблема зависимости.
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var sc httpStatuser
	if errors.As(err, &sc) {
		s := sc.HTTPStatus()
		if s >= 500 || s == 429 {
			return true
		}
	}

	var ec errorCoder
	if errors.As(err, &ec) {
		if _, ok := transientCodes[ec.ErrorCode()]; ok {
			return true
		}
	}

	// *url.Error и *net.OpError реализуют net.Error: любая транспортная ошибка.
	var ne net.Error
	return errors.As(err, &ne)
}

// Backoff возвращает паузу перед повтором номер attempt (с нуля):
// min(maxDelay, base * 2^attempt * jitter), jitter равномерно в [1.0, 1.25].
// maxDelay <= 0 означает отсутствие верхней границы.
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	return backoff(attempt, base, maxDelay, rand.Float64())
}

func backoff(attempt int, base, maxDelay time.Duration, r float64) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	d := float64(base) * math.Pow(2, float64(attempt)) * (1 + maxJitter*r)

	if maxDelay > 0 && d >= float64(maxDelay) {
		return maxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(d)
}

// Policy — параметры повторов одной зависимости.
type Policy struct {
	// MaxRetries — число повторов после первой попытки.
	MaxRetries int
	// BaseDelay и MaxDelay — параметры Backoff.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// AttemptTimeout — дедлайн каждой попытки; 0 — без отдельного дедлайна.
	AttemptTimeout time.Duration
	// Classify переопределяет IsTransient.
	Classify func(error) bool
	// OnRetry вызывается перед паузой: attempt — номер предстоящего повтора (с 1).
	OnRetry func(ctx context.Context, attempt int, delay time.Duration, err error)
}

// DefaultPolicy возвращает политику со значениями по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// ShouldRetry сообщает, нужен ли повтор после attempt уже сделанных повторов.
func (p Policy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}

	if p.Classify != nil {
		return p.Classify(err)
	}

	return IsTransient(err)
}

// BackoffDuration — пауза перед повтором attempt по параметрам политики.
func (p Policy) BackoffDuration(attempt int) time.Duration {
	return Backoff(attempt, p.BaseDelay, p.MaxDelay)
}

// Do выполняет fn с повторами по политике p.
// Возвращает результат первой успешной попытки либо исходную ошибку последней.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		res, err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return res, nil
		}

		// Родительский контекст завершён: дальнейшие попытки бессмысленны.
		if ctx.Err() != nil {
			return zero, err
		}

		if !p.ShouldRetry(attempt, err) {
			return zero, err
		}

		delay := p.BackoffDuration(attempt)
		if p.OnRetry != nil {
			p.OnRetry(ctx, attempt+1, delay, err)
		}

		if !sleep(ctx, delay) {
			return zero, err
		}
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(actx)
}

// sleep ждёт d либо завершения ctx; false — если ctx завершился раньше.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
