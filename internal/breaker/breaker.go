// breaker реализует circuit breaker для внешних зависимостей.
//
// Основные аспекты:
//   - Состояние (режим + счётчики) хранится неизменяемым снимком и меняется
//     только через CompareAndSwap всего снимка, поэтому конкурентные вызовы
//     не могут дважды перевести автомат или потерять счётчик.
//   - Каждый переход увеличивает generation; результат вызова, начатого
//     в предыдущем поколении, игнорируется.
//   - В HalfOpen одновременно пропускается не больше SuccessThreshold пробных
//     вызовов; любая ошибка пробы сразу возвращает автомат в Open.
//   - Execute — единственная точка входа: ошибка fn сначала учитывается
//     автоматом и только потом возвращается или передаётся в fallback.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Значения по умолчанию.
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
	DefaultSuccessThreshold = 2
)

// State — режим автомата.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome — результат вызова с точки зрения здоровья зависимости.
type Outcome int

const (
	// Success — зависимость ответила (в том числе бизнес-ошибкой).
	Success Outcome = iota
	// Failure — зависимость нездорова: сеть, таймаут, 5xx.
	Failure
	// Neutral — вызов не говорит о здоровье зависимости (отмена клиентом).
	Neutral
)

// ErrOpen — вызов отклонён без обращения к зависимости.
// Транспорт: HTTP 503 "service temporarily unavailable".
var ErrOpen = errors.New("circuit breaker is open")

// OpenError уточняет ErrOpen именем зависимости и моментом следующей пробы.
type OpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry at %s", e.Name, e.RetryAt.Format(time.RFC3339))
}

// Is позволяет проверять errors.Is(err, ErrOpen).
func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// DefaultClassify: nil — успех, отмена вызывающим — нейтрально, остальное — сбой.
func DefaultClassify(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.Canceled):
		return Neutral
	default:
		return Failure
	}
}

// Settings — параметры одного автомата.
type Settings struct {
	Name             string
	FailureThreshold int
	ResetTimeout     time.Duration
	SuccessThreshold int

	// Classify переводит ошибку fn в Outcome; nil — DefaultClassify.
	Classify func(error) Outcome
	// OnStateChange вызывается синхронно после успешного перехода.
	OnStateChange func(name string, from, to State)
	// Now — источник времени; nil — time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// snapshot — неизменяемый кортеж состояния.
type snapshot struct {
	state       State
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
	generation  uint64
}

// Snapshot — публичный срез состояния для статуса и метрик.
type Snapshot struct {
	Name             string
	State            State
	Failures         int
	Successes        int
	LastFailure      time.Time
	FailureThreshold int
	ResetTimeout     time.Duration
	SuccessThreshold int
}

// Breaker — circuit breaker одной зависимости. Безопасен для конкурентного использования.
type Breaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	successThreshold int

	classify      func(error) Outcome
	onStateChange func(name string, from, to State)
	now           func() time.Time
	log           *slog.Logger

	state atomic.Pointer[snapshot]
}

// New создаёт автомат в состоянии Closed. Неположительные пороги заменяются значениями по умолчанию.
func New(s Settings) *Breaker {
	b := &Breaker{
		name:             s.Name,
		failureThreshold: s.FailureThreshold,
		resetTimeout:     s.ResetTimeout,
		successThreshold: s.SuccessThreshold,
		classify:         s.Classify,
		onStateChange:    s.OnStateChange,
		now:              s.Now,
		log:              s.Logger,
	}

	if b.failureThreshold <= 0 {
		b.failureThreshold = DefaultFailureThreshold
	}
	if b.resetTimeout <= 0 {
		b.resetTimeout = DefaultResetTimeout
	}
	if b.successThreshold <= 0 {
		b.successThreshold = DefaultSuccessThreshold
	}
	if b.classify == nil {
		b.classify = DefaultClassify
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.log == nil {
		b.log = slog.Default()
	}

	b.state.Store(&snapshot{state: Closed})

	return b
}

// Name возвращает имя зависимости.
func (b *Breaker) Name() string { return b.name }

// State возвращает текущий режим.
func (b *Breaker) State() State { return b.state.Load().state }

// Snapshot возвращает согласованный срез состояния.
func (b *Breaker) Snapshot() Snapshot {
	cur := b.state.Load()

	return Snapshot{
		Name:             b.name,
		State:            cur.state,
		Failures:         cur.failures,
		Successes:        cur.successes,
		LastFailure:      cur.lastFailure,
		FailureThreshold: b.failureThreshold,
		ResetTimeout:     b.resetTimeout,
		SuccessThreshold: b.successThreshold,
	}
}

// Reset принудительно переводит автомат в Closed с обнулёнными счётчиками.
func (b *Breaker) Reset() {
	for {
		cur := b.state.Load()
		next := &snapshot{state: Closed, generation: cur.generation + 1}
		if b.state.CompareAndSwap(cur, next) {
			if cur.state != Closed {
				b.notify(cur.state, Closed)
			}
			return
		}
	}
}

// Execute выполняет fn под защитой автомата.
//
// Если автомат открыт, fn не вызывается: fallback получает *OpenError,
// а без fallback *OpenError возвращается вызывающему. Ошибка fn сначала
// учитывается автоматом, затем передаётся в fallback (если задан) или наружу.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error, fallback func(ctx context.Context, cause error) error) error {
	gen, err := b.admit()
	if err != nil {
		if fallback != nil {
			return fallback(ctx, err)
		}
		return err
	}

	err = b.call(ctx, gen, fn)
	if err != nil && fallback != nil {
		return fallback(ctx, err)
	}

	return err
}

// call выполняет fn и учитывает результат; паника считается сбоем и пробрасывается дальше.
func (b *Breaker) call(ctx context.Context, gen uint64, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.record(gen, Failure)
			panic(r)
		}
	}()

	err = fn(ctx)
	b.record(gen, b.classify(err))

	return err
}

// admit решает, можно ли выполнить вызов, и возвращает поколение, в котором он начат.
func (b *Breaker) admit() (uint64, error) {
	for {
		cur := b.state.Load()

		switch cur.state {
		case Closed:
			return cur.generation, nil

		case Open:
			retryAt := cur.lastFailure.Add(b.resetTimeout)
			if b.now().Before(retryAt) {
				return 0, &OpenError{Name: b.name, RetryAt: retryAt}
			}

			// Таймаут истёк: текущий вызов становится первой пробой.
			next := &snapshot{
				state:       HalfOpen,
				probes:      1,
				lastFailure: cur.lastFailure,
				generation:  cur.generation + 1,
			}
			if b.state.CompareAndSwap(cur, next) {
				b.notify(Open, HalfOpen)
				return next.generation, nil
			}

		case HalfOpen:
			if cur.probes >= b.successThreshold {
				return 0, &OpenError{Name: b.name, RetryAt: b.now()}
			}

			next := *cur
			next.probes++
			if b.state.CompareAndSwap(cur, &next) {
				return next.generation, nil
			}
		}
	}
}

// record применяет результат вызова поколения gen к автомату.
func (b *Breaker) record(gen uint64, outcome Outcome) {
	for {
		cur := b.state.Load()
		if cur.generation != gen {
			// Вызов начат до последнего перехода: его результат уже неактуален.
			return
		}

		next := *cur

		switch cur.state {
		case Closed:
			switch outcome {
			case Success:
				if cur.failures == 0 {
					return
				}
				next.failures = 0
			case Failure:
				next.failures++
				next.lastFailure = b.now()
				if next.failures >= b.failureThreshold {
					next.state = Open
					next.generation++
				}
			default:
				return
			}

		case HalfOpen:
			if next.probes > 0 {
				next.probes--
			}

			switch outcome {
			case Success:
				next.successes++
				if next.successes >= b.successThreshold {
					next = snapshot{
						state:       Closed,
						lastFailure: cur.lastFailure,
						generation:  cur.generation + 1,
					}
				}
			case Failure:
				next = snapshot{
					state:       Open,
					lastFailure: b.now(),
					generation:  cur.generation + 1,
				}
			}

		default:
			return
		}

		if b.state.CompareAndSwap(cur, &next) {
			if next.state != cur.state {
				b.notify(cur.state, next.state)
			}
			return
		}
	}
}

func (b *Breaker) notify(from, to State) {
	lvl := slog.LevelInfo
	if to == Open {
		lvl = slog.LevelWarn
	}

	b.log.Log(context.Background(), lvl, "breaker_state_changed",
		slog.String("dependency", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)

	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// Do — типизированная обёртка над Execute.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error), fallback func(ctx context.Context, cause error) (T, error)) (T, error) {
	var res T

	inner := func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		res = v
		return nil
	}

	var fb func(context.Context, error) error
	if fallback != nil {
		fb = func(ctx context.Context, cause error) error {
			v, err := fallback(ctx, cause)
			if err != nil {
				return err
			}
			res = v
			return nil
		}
	}

	if err := b.Execute(ctx, inner, fb); err != nil {
		var zero T
		return zero, err
	}

	return res, nil
}
