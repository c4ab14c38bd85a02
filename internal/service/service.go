// service содержит бизнес-логику сессий и интеграции с провайдером:
// выпуск и ротацию refresh-токенов с обнаружением повторного использования,
// фоновую очистку, обработку webhook и связывание банковских счетов.
//
// Основные аспекты:
//   - Ожидаемые исходы проверки токенов (неизвестен, истёк, отозван,
//     повторное использование) возвращаются как Status; error зарезервирован
//     для инфраструктурных сбоев.
//   - Смысл валидности токенов и семейств определяет только TokenService,
//     хранилище выполняет условные обновления атомарно.
//   - Экземпляры сервисов безопасны для конкурентного использования при
//     потокобезопасном хранилище.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/flexibill/internal/metrics"
	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/storage/memory"
)

var (
	// ErrAuthentication — общий отказ аутентификации. Клиент не узнаёт причину.
	// Транспорт: HTTP 401 / codes.Unauthenticated.
	ErrAuthentication = errors.New("authentication failed")

	// ErrSecurityIncident — обнаружено повторное использование refresh-токена.
	// errors.Is(err, ErrAuthentication) == true: клиент видит обычный 401.
	ErrSecurityIncident = fmt.Errorf("security incident: %w", ErrAuthentication)

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный refresh-токен.
	// Транспорт: HTTP 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrInvalidArgument — пустой или некорректный аргумент.
	// Транспорт: HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound — семейство, элемент или пользователь не найдены.
	// Транспорт: HTTP 404.
	ErrNotFound = errors.New("not found")
)

// IncidentRecorder — журнал инцидентов безопасности (MongoDB или память).
type IncidentRecorder interface {
	Record(ctx context.Context, incident models.SecurityIncident) error
	Since(ctx context.Context, since time.Time, limit int) ([]models.SecurityIncident, error)
}

type options struct {
	incidents IncidentRecorder
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option настраивает TokenService и CleanupService.
type Option func(*options)

// WithIncidents задаёт журнал инцидентов.
func WithIncidents(r IncidentRecorder) Option {
	return func(o *options) { o.incidents = r }
}

// WithMetrics задаёт коллекторы Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.incidents == nil {
		o.incidents = memory.NewIncidents()
	}

	return o
}
