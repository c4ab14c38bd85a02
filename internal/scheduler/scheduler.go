// scheduler запускает периодические фоновые задачи процесса.
//
// Каждая задача работает на своём тикере. Если предыдущий запуск ещё не
// завершился, очередной тик пропускается. Паника внутри задачи
// перехватывается и логируется, планировщик продолжает работу.
// Run блокируется до отмены контекста и ожидания выполняющихся задач.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pribylovaa/flexibill/internal/pkg/log"
)

// Job — тело фоновой задачи. ctx отменяется при остановке процесса.
type Job func(ctx context.Context) error

// Результаты запуска для наблюдателя.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultPanic   = "panic"
	ResultSkipped = "skipped"
)

type task struct {
	name     string
	interval time.Duration
	runNow   bool
	job      Job
	busy     atomic.Bool
}

// Scheduler — набор периодических задач.
type Scheduler struct {
	log     *slog.Logger
	tasks   []*task
	observe func(job, result string)
	started atomic.Bool
}

// Option настраивает Scheduler.
type Option func(*Scheduler)

// WithObserver задаёт обратный вызов для метрик запусков.
func WithObserver(f func(job, result string)) Option {
	return func(s *Scheduler) { s.observe = f }
}

// New создаёт пустой планировщик.
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{log: logger}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Every регистрирует задачу с периодом interval. runNow — выполнить
// первый запуск сразу при старте Run. Регистрация после Run — ошибка.
func (s *Scheduler) Every(name string, interval time.Duration, runNow bool, job Job) error {
	if s.started.Load() {
		return errors.New("scheduler: already running")
	}
	if interval <= 0 {
		return fmt.Errorf("scheduler: job %q: interval must be > 0", name)
	}
	if job == nil {
		return fmt.Errorf("scheduler: job %q: nil job", name)
	}

	s.tasks = append(s.tasks, &task{name: name, interval: interval, runNow: runNow, job: job})

	return nil
}

// Run запускает все задачи и блокируется до отмены ctx.
// Возвращает управление только после завершения выполняющихся запусков.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("scheduler: already running")
	}

	var loops, runs sync.WaitGroup
	for _, t := range s.tasks {
		loops.Add(1)
		go func(t *task) {
			defer loops.Done()
			s.loop(ctx, t, &runs)
		}(t)
	}

	s.log.Info("scheduler_started", slog.Int("jobs", len(s.tasks)))

	<-ctx.Done()
	loops.Wait()
	runs.Wait()

	s.log.Info("scheduler_stopped")

	return nil
}

func (s *Scheduler) loop(ctx context.Context, t *task, runs *sync.WaitGroup) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	if t.runNow {
		s.fire(ctx, t, runs)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, t, runs)
		}
	}
}

// fire запускает задачу в отдельной горутине, если она не занята.
func (s *Scheduler) fire(ctx context.Context, t *task, runs *sync.WaitGroup) {
	if ctx.Err() != nil {
		return
	}

	if !t.busy.CompareAndSwap(false, true) {
		s.log.Warn("job_skipped_busy", slog.String("job", t.name))
		s.report(t.name, ResultSkipped)
		return
	}

	runs.Add(1)
	go func() {
		defer runs.Done()
		defer t.busy.Store(false)
		s.report(t.name, s.run(ctx, t))
	}()
}

func (s *Scheduler) run(ctx context.Context, t *task) (result string) {
	lg := s.log.With(slog.String("job", t.name))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			lg.Error("job_panic", slog.Any("panic", r))
			result = ResultPanic
		}
	}()

	if err := t.job(log.Into(ctx, lg)); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			lg.Info("job_interrupted", slog.Duration("elapsed", time.Since(started)))
			return ResultError
		}
		lg.Error("job_failed",
			slog.Duration("elapsed", time.Since(started)),
			slog.String("err", err.Error()),
		)
		return ResultError
	}

	lg.Debug("job_done", slog.Duration("elapsed", time.Since(started)))

	return ResultOK
}

func (s *Scheduler) report(job, result string) {
	if s.observe != nil {
		s.observe(job, result)
	}
}
