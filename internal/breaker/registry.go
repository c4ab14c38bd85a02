package breaker

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry хранит по одному автомату на имя зависимости.
// Создаётся в main и передаётся потребителям явно; состояние живёт в памяти
// процесса, после рестарта все автоматы стартуют в Closed.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker

	classify func(error) Outcome
	hooks    []func(name string, from, to State)
	now      func() time.Time
	log      *slog.Logger
}

// Option настраивает Registry.
type Option func(*Registry)

// WithClassifier задаёт классификатор ошибок для всех автоматов реестра.
func WithClassifier(f func(error) Outcome) Option {
	return func(r *Registry) { r.classify = f }
}

// WithStateChangeHook добавляет обработчик переходов (метрики, health и т.п.).
func WithStateChangeHook(f func(name string, from, to State)) Option {
	return func(r *Registry) {
		if f != nil {
			r.hooks = append(r.hooks, f)
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger задаёт логгер переходов.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{breakers: make(map[string]*Breaker)}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetOrCreate возвращает автомат name, создавая его при первом обращении.
// Идемпотентен: параметры последующих вызовов игнорируются, действует первая конфигурация.
func (r *Registry) GetOrCreate(name string, failureThreshold int, resetTimeout time.Duration, successThreshold int) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b = New(Settings{
		Name:             name,
		FailureThreshold: failureThreshold,
		ResetTimeout:     resetTimeout,
		SuccessThreshold: successThreshold,
		Classify:         r.classify,
		OnStateChange:    r.fanout,
		Now:              r.now,
		Logger:           r.log,
	})
	r.breakers[name] = b

	return b
}

// Get возвращает автомат без создания.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.breakers[name]
	return b, ok
}

// ResetAll переводит все автоматы в Closed.
func (r *Registry) ResetAll() {
	for _, b := range r.list() {
		b.Reset()
	}
}

// Status возвращает срезы состояния всех автоматов, отсортированные по имени.
func (r *Registry) Status() []Snapshot {
	list := r.list()
	out := make([]Snapshot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func (r *Registry) list() []*Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b)
	}

	return out
}

func (r *Registry) fanout(name string, from, to State) {
	for _, h := range r.hooks {
		h(name, from, to)
	}
}
