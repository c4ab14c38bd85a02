package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/config"
	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/scheduler"
	"github.com/pribylovaa/flexibill/internal/storage"
)

// Имена фоновых задач.
const (
	JobTokenCleanup   = "token_cleanup"
	JobSuspiciousScan = "suspicious_activity_check"
)

// CleanupService — фоновое обслуживание refresh-токенов.
type CleanupService struct {
	storage storage.TokenStorage
	cfg     config.CleanupConfig
	opts    options
}

// NewCleanupService создаёт CleanupService.
func NewCleanupService(st storage.TokenStorage, cfg config.CleanupConfig, opts ...Option) *CleanupService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.SuspiciousWindow <= 0 {
		cfg.SuspiciousWindow = 24 * time.Hour
	}

	return &CleanupService{
		storage: st,
		cfg:     cfg,
		opts:    buildOptions(opts),
	}
}

// CleanupExpiredTokens помечает отозванными все просроченные токены пачками
// по cfg.BatchSize. Каждая пачка фиксируется отдельно, поэтому прерванный
// проход безопасно продолжить следующим запуском.
func (c *CleanupService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	const op = "service.cleanup.CleanupExpiredTokens"

	lg := log.From(ctx)
	now := c.opts.now().UTC()

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			c.opts.metrics.TokensCleaned(total)
			return total, fmt.Errorf("%s: %w", op, err)
		}

		n, err := c.storage.RevokeExpiredTokens(ctx, now, c.cfg.BatchSize)
		total += n
		if err != nil {
			c.opts.metrics.TokensCleaned(total)
			lg.Error("cleanup_sweep_failed",
				slog.String("op", op),
				slog.Int64("revoked", total),
				slog.String("err", err.Error()),
			)
			return total, fmt.Errorf("%s: %w", op, err)
		}

		if n < int64(c.cfg.BatchSize) {
			break
		}
	}

	c.opts.metrics.TokensCleaned(total)
	lg.Info("cleanup_sweep_done", slog.Int64("revoked", total))

	return total, nil
}

// CheckSuspiciousActivity возвращает пользователей, у которых за окно
// cfg.SuspiciousWindow было обнаружено повторное использование токена.
// Только оповещение: каждый пользователь записывается в журнал инцидентов.
func (c *CleanupService) CheckSuspiciousActivity(ctx context.Context) ([]uuid.UUID, error) {
	const op = "service.cleanup.CheckSuspiciousActivity"

	lg := log.From(ctx)
	now := c.opts.now().UTC()

	users, err := c.storage.SuspiciousUsers(ctx, now.Add(-c.cfg.SuspiciousWindow))
	if err != nil {
		lg.Error("suspicious_check_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.opts.metrics.SuspiciousUsers(len(users))

	for _, uid := range users {
		lg.Warn("suspicious_activity_detected", slog.String("user_id", uid.String()))

		err := c.opts.incidents.Record(ctx, models.SecurityIncident{
			ID:        uuid.New(),
			Kind:      models.IncidentSuspiciousActivity,
			UserID:    uid,
			Detail:    fmt.Sprintf("refresh token reuse within %s", c.cfg.SuspiciousWindow),
			CreatedAt: now,
		})
		if err != nil {
			lg.Error("incident_record_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return users, nil
}

// RevokeAllUserTokens отзывает все семейства и токены пользователя.
func (c *CleanupService) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "service.cleanup.RevokeAllUserTokens"

	lg := log.From(ctx)

	if userID == uuid.Nil {
		return 0, fmt.Errorf("%s: user id: %w", op, ErrInvalidArgument)
	}

	now := c.opts.now().UTC()
	families, tokens, err := c.storage.RevokeUserTokens(ctx, userID, models.RevokeAdmin, now)
	if err != nil {
		lg.Error("revoke_user_tokens_failed",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_tokens_revoked",
		slog.String("user_id", userID.String()),
		slog.Int64("families", families),
		slog.Int64("tokens", tokens),
	)

	err = c.opts.incidents.Record(ctx, models.SecurityIncident{
		ID:        uuid.New(),
		Kind:      models.IncidentRevokeAll,
		UserID:    userID,
		Detail:    fmt.Sprintf("revoked %d families, %d tokens", families, tokens),
		CreatedAt: now,
	})
	if err != nil {
		lg.Error("incident_record_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return tokens, nil
}

// Incidents возвращает записи журнала начиная с since.
func (c *CleanupService) Incidents(ctx context.Context, since time.Time, limit int) ([]models.SecurityIncident, error) {
	const op = "service.cleanup.Incidents"

	out, err := c.opts.incidents.Since(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Schedule регистрирует фоновые задачи: очистку (первый запуск сразу)
// и проверку подозрительной активности.
func (c *CleanupService) Schedule(s *scheduler.Scheduler) error {
	const op = "service.cleanup.Schedule"

	err := s.Every(JobTokenCleanup, c.cfg.Interval, true, func(ctx context.Context) error {
		_, err := c.CleanupExpiredTokens(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.Every(JobSuspiciousScan, c.cfg.SuspiciousInterval, false, func(ctx context.Context) error {
		_, err := c.CheckSuspiciousActivity(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
